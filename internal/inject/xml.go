package inject

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"

	"graft/internal/markup"
)

// ErrAlreadyParented is returned by IntoXML when the fragment element would
// need a second parent.
var ErrAlreadyParented = errors.New("fragment element already has a parent")

// ParseXMLFragment parses src as a standalone XML element and detaches it
// from its scratch document.
func ParseXMLFragment(src string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(src); err != nil {
		return nil, fmt.Errorf("failed to parse XML fragment: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: %q", markup.ErrMalformedFragment, src)
	}
	doc.RemoveChild(root)
	return root, nil
}

// IntoXML appends frag to every element whose local name is target, in
// document order, and returns the number of matches. Like IntoTree it will
// not give the fragment a second parent: the second match returns
// ErrAlreadyParented.
func IntoXML(doc *etree.Document, target string, frag *etree.Element) (int, error) {
	matched := 0
	var err error
	walkXML(&doc.Element, target, func(el *etree.Element) bool {
		matched++
		if frag.Parent() != nil {
			err = fmt.Errorf("%w: match %d <%s>", ErrAlreadyParented, matched, el.FullTag())
			return false
		}
		el.AddChild(frag)
		return true
	})
	return matched, err
}

// EachXML appends a copy of frag to every element whose local name is
// target.
func EachXML(doc *etree.Document, target string, frag *etree.Element) int {
	matched := 0
	walkXML(&doc.Element, target, func(el *etree.Element) bool {
		matched++
		el.AddChild(frag.Copy())
		return true
	})
	return matched
}

func walkXML(root *etree.Element, target string, visit func(*etree.Element) bool) {
	stack := []*etree.Element{root}
	for len(stack) > 0 {
		el := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := el.ChildElements()
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}

		if el.Tag == target {
			if !visit(el) {
				return
			}
		}
	}
}
