package dom

import "slices"

// QuirksMode is the document compatibility mode chosen by the tree builder.
type QuirksMode uint8

const (
	NoQuirks QuirksMode = iota
	LimitedQuirks
	Quirks
)

// ElementFlags carries the tree builder's per-element creation hints.
type ElementFlags struct {
	Template                            bool
	MathMLAnnotationXMLIntegrationPoint bool
}

// NodeOrText is the payload of an append: either an existing node or text
// that may be merged into a neighbouring text node. Build it with AppendNode
// or AppendText; the zero value is empty text.
type NodeOrText struct {
	Node   *Node
	Text   string
	isNode bool
}

// AppendNode wraps n for Append and AppendBeforeSibling. Appending a nil
// node faults.
func AppendNode(n *Node) NodeOrText { return NodeOrText{Node: n, isNode: true} }

// AppendText wraps s for Append and AppendBeforeSibling.
func AppendText(s string) NodeOrText { return NodeOrText{Text: s} }

func (c NodeOrText) isText() bool { return !c.isNode }

// node returns the wrapped node, faulting when it is nil.
func (c NodeOrText) node(op string) *Node {
	if c.Node == nil {
		panic(fault(op, ErrNilNode, ""))
	}
	return c.Node
}

// Sink is the set of callbacks an HTML tree-construction algorithm uses to
// build and rearrange a tree.
type Sink interface {
	ParseError(msg string)
	GetDocument() *Node
	GetTemplateContents(target *Node) *Node
	SetQuirksMode(mode QuirksMode)
	SameNode(x, y *Node) bool
	ElemName(target *Node) QualName
	IsMathMLAnnotationXMLIntegrationPoint(target *Node) bool

	CreateElement(name QualName, attrs []Attribute, flags ElementFlags) *Node
	CreateComment(text string) *Node
	CreatePI(target, data string) *Node

	Append(parent *Node, child NodeOrText)
	AppendBeforeSibling(sibling *Node, child NodeOrText)
	AppendBasedOnParentNode(element, prevElement *Node, child NodeOrText)
	AppendDoctypeToDocument(name, publicID, systemID string)
	AddAttrsIfMissing(target *Node, attrs []Attribute)
	RemoveFromParent(target *Node)
	ReparentChildren(node, newParent *Node)
}

// Tree is a parsed document: the root node plus the diagnostics gathered
// while it was built. It implements Sink.
type Tree struct {
	Document   *Node
	Errors     []string
	QuirksMode QuirksMode
}

var _ Sink = (*Tree)(nil)

// New returns a tree holding only an empty document node.
func New() *Tree {
	return &Tree{Document: newNode(&Document{})}
}

// ParseError records a diagnostic. It never changes the tree.
func (t *Tree) ParseError(msg string) {
	t.Errors = append(t.Errors, msg)
}

func (t *Tree) GetDocument() *Node { return t.Document }

// GetTemplateContents returns the contents document of a template element.
// It faults on anything else.
func (t *Tree) GetTemplateContents(target *Node) *Node {
	el := target.Element()
	if el.TemplateContents == nil {
		panic(fault("template contents", ErrWrongVariant, "<%s> is not a template", el.Name))
	}
	return el.TemplateContents
}

func (t *Tree) SetQuirksMode(mode QuirksMode) { t.QuirksMode = mode }

// SameNode compares handles by identity.
func (t *Tree) SameNode(x, y *Node) bool { return x == y }

func (t *Tree) ElemName(target *Node) QualName { return target.Element().Name }

func (t *Tree) IsMathMLAnnotationXMLIntegrationPoint(target *Node) bool {
	return target.Element().MathMLAnnotationXMLIntegrationPoint
}

// CreateElement returns a new unparented element. Template elements get an
// empty document of their own as contents.
func (t *Tree) CreateElement(name QualName, attrs []Attribute, flags ElementFlags) *Node {
	el := &Element{
		Name:                                name,
		Attrs:                               attrs,
		MathMLAnnotationXMLIntegrationPoint: flags.MathMLAnnotationXMLIntegrationPoint,
	}
	if flags.Template {
		el.TemplateContents = newNode(&Document{})
	}
	return newNode(el)
}

func (t *Tree) CreateComment(text string) *Node {
	return newNode(&Comment{Contents: text})
}

func (t *Tree) CreatePI(target, data string) *Node {
	return newNode(&ProcessingInstruction{Target: target, Contents: data})
}

// Append adds child as the last child of parent. Text is merged into the
// current last child when that is a text node. A node that already has a
// parent faults; detach it first.
func (t *Tree) Append(parent *Node, child NodeOrText) {
	if child.isText() {
		if last := parent.LastChild(); last != nil && appendToExistingText(last, child.Text) {
			return
		}
		attach(parent, NewText(child.Text))
		return
	}
	attach(parent, child.node("append"))
}

// AppendBeforeSibling inserts child immediately before sibling. Text is
// merged into a preceding text node when there is one. A node attached
// elsewhere is moved. It faults when sibling has no parent.
func (t *Tree) AppendBeforeSibling(sibling *Node, child NodeOrText) {
	if !child.isText() {
		child.node("append before sibling")
	}
	parent, i := parentAndIndex(sibling)
	if parent == nil {
		panic(fault("append before sibling", ErrNoParent, ""))
	}

	var node *Node
	switch {
	case child.isText() && i == 0:
		node = NewText(child.Text)
	case child.isText():
		if appendToExistingText(parent.children[i-1], child.Text) {
			return
		}
		node = NewText(child.Text)
	default:
		node = child.Node
		if node == sibling {
			return
		}
	}

	if node.parent != nil {
		detach(node)
		// Detaching from the same parent may have shifted the sibling.
		i = parent.index(sibling)
	}
	insert(parent, i, node)
}

// AppendBasedOnParentNode inserts before element when element is attached,
// and appends to prevElement otherwise.
func (t *Tree) AppendBasedOnParentNode(element, prevElement *Node, child NodeOrText) {
	if element.HasParent() {
		t.AppendBeforeSibling(element, child)
		return
	}
	t.Append(prevElement, child)
}

func (t *Tree) AppendDoctypeToDocument(name, publicID, systemID string) {
	attach(t.Document, newNode(&Doctype{Name: name, PublicID: publicID, SystemID: systemID}))
}

// AddAttrsIfMissing appends each attribute whose name the element does not
// already carry. Existing values win.
func (t *Tree) AddAttrsIfMissing(target *Node, attrs []Attribute) {
	el := target.Element()
	seen := make(map[QualName]struct{}, len(el.Attrs)+len(attrs))
	for _, a := range el.Attrs {
		seen[a.Name] = struct{}{}
	}
	for _, a := range attrs {
		if _, ok := seen[a.Name]; ok {
			continue
		}
		seen[a.Name] = struct{}{}
		el.Attrs = append(el.Attrs, a)
	}
}

// RemoveFromParent detaches target. Detached nodes are left alone.
func (t *Tree) RemoveFromParent(target *Node) {
	if target.parent != nil {
		detach(target)
	}
}

// ReparentChildren moves every child of node, in order, to the end of
// newParent's children.
func (t *Tree) ReparentChildren(node, newParent *Node) {
	if node == newParent {
		return
	}
	moved := node.children
	for _, child := range moved {
		if child.parent != node {
			panic(fault("reparent children", ErrInconsistentTree, "child of %s points elsewhere", describe(node)))
		}
	}
	for _, child := range moved {
		child.parent = newParent
	}
	newParent.children = append(newParent.children, moved...)
	node.children = nil
}

func appendToExistingText(prev *Node, s string) bool {
	t, ok := prev.data.(*Text)
	if !ok {
		return false
	}
	t.push(s)
	return true
}

func attach(parent, child *Node) {
	if child.parent != nil {
		panic(fault("append", ErrAlreadyParented, "%s under %s", describe(child), describe(child.parent)))
	}
	child.parent = parent
	parent.children = append(parent.children, child)
}

func insert(parent *Node, i int, child *Node) {
	parent.children = slices.Insert(parent.children, i, child)
	child.parent = parent
}

// parentAndIndex locates target among its parent's children.
func parentAndIndex(target *Node) (*Node, int) {
	parent := target.parent
	if parent == nil {
		return nil, -1
	}
	i := parent.index(target)
	if i < 0 {
		panic(fault("lookup", ErrInconsistentTree, "%s missing from its parent's children", describe(target)))
	}
	return parent, i
}

func detach(target *Node) {
	parent, i := parentAndIndex(target)
	parent.children = slices.Delete(parent.children, i, i+1)
	target.parent = nil
}

func describe(n *Node) string {
	if el, ok := n.data.(*Element); ok {
		return "<" + el.Name.String() + ">"
	}
	return n.Type().String()
}
