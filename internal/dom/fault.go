package dom

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrWrongVariant is raised when variant-specific data is requested from
	// a node of another variant.
	ErrWrongVariant = stderrors.New("wrong node variant")

	// ErrAlreadyParented is raised when a node that still has a parent is
	// appended somewhere else.
	ErrAlreadyParented = stderrors.New("node already has a parent")

	// ErrNoParent is raised by sibling-relative insertion on a detached node.
	ErrNoParent = stderrors.New("node has no parent")

	// ErrNilNode is raised when a nil node is appended.
	ErrNilNode = stderrors.New("nil node")

	// ErrInconsistentTree is raised when a parent pointer and a children
	// list disagree.
	ErrInconsistentTree = stderrors.New("inconsistent parent and child links")
)

// Fault is the panic value raised when a caller breaks a precondition of a
// tree operation. Faults are not meant to be handled node by node; catch
// them once around a whole build-and-inject cycle with CatchFault.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("dom: %s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func fault(op string, err error, format string, args ...any) error {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return errors.WithStack(&Fault{Op: op, Err: err})
}

func wrongVariant(want string, n *Node) error {
	return fault("access", ErrWrongVariant, "want %s, have %s", want, n.Type())
}

// CatchFault recovers a fault raised by this package and stores it in *errp.
// It must be called directly by a deferred statement. Panics that are not
// faults are re-raised.
func CatchFault(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		panic(r)
	}
	var f *Fault
	if !errors.As(err, &f) {
		panic(r)
	}
	*errp = err
}
