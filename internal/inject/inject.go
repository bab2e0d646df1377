// Package inject grafts prepared content into parsed documents at every
// element with a given local name.
//
// A fragment is a single node and a node has a single parent, so one
// fragment can be placed under at most one target. IntoTree faults on the
// second match instead of moving or copying the fragment; callers that want
// every match filled use Each, which builds a fresh fragment per match.
package inject

import (
	"fmt"

	"graft/internal/dom"
	"graft/internal/markup"
)

// Inject parses src, appends the first node of fragment to the element named
// target, and renders the result. When no element matches, the document is
// returned re-rendered but otherwise unchanged.
func Inject(src, target, fragment string) (string, error) {
	frag, err := markup.ParseFragment(fragment, "")
	if err != nil {
		return "", err
	}
	tree, err := markup.ParseDocumentString(src)
	if err != nil {
		return "", err
	}
	if _, err := IntoTree(tree, target, frag); err != nil {
		return "", err
	}
	return markup.RenderString(tree)
}

// IntoTree appends frag as the last child of each element whose local name
// is target, visiting the tree in document order. It returns the number of
// matching elements. A second match reports dom.ErrAlreadyParented; the
// tree must then be discarded.
func IntoTree(tree *dom.Tree, target string, frag *dom.Node) (matched int, err error) {
	defer dom.CatchFault(&err)

	walk(tree.Document, target, func(el *dom.Node) {
		matched++
		tree.Append(el, dom.AppendNode(frag))
	})
	return matched, nil
}

// Each appends a node built by newFragment to every element whose local name
// is target. newFragment is called once per match.
func Each(tree *dom.Tree, target string, newFragment func() (*dom.Node, error)) (matched int, err error) {
	defer dom.CatchFault(&err)

	var buildErr error
	walk(tree.Document, target, func(el *dom.Node) {
		if buildErr != nil {
			return
		}
		frag, err := newFragment()
		if err != nil {
			buildErr = fmt.Errorf("failed to build fragment for match %d: %w", matched+1, err)
			return
		}
		matched++
		tree.Append(el, dom.AppendNode(frag))
	})
	return matched, buildErr
}

// EachString is Each with fragments parsed from source.
func EachString(tree *dom.Tree, target, fragment string) (int, error) {
	return Each(tree, target, func() (*dom.Node, error) {
		return markup.ParseFragment(fragment, "")
	})
}

// walk visits root and its descendants in document order and calls visit for
// every element named target. Each node's children are captured before
// visit runs, so nodes appended by visit are not walked.
func walk(root *dom.Node, target string, visit func(*dom.Node)) {
	stack := []*dom.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := n.Children()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}

		if n.Type() == dom.ElementNode && n.Name().Local == target {
			visit(n)
		}
	}
}
