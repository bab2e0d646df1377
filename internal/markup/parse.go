// Package markup connects the document tree to golang.org/x/net/html: the
// x/net/html tokenizer and tree-construction algorithm drive a dom.Sink, and
// html.Render serializes the result.
package markup

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"graft/internal/dom"
)

// ErrMalformedFragment is returned when fragment source yields no node to
// inject.
var ErrMalformedFragment = errors.New("fragment has no content")

// DefaultFragmentContext is the element fragments are parsed inside when the
// caller names none.
const DefaultFragmentContext = "body"

// ParseDocument parses a complete HTML document into a new tree.
func ParseDocument(r io.Reader) (*dom.Tree, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	tree := dom.New()
	b := &builder{sink: tree}
	b.children(tree.GetDocument(), root)
	b.detectQuirks(root)
	return tree, nil
}

// ParseDocumentString is ParseDocument over a string.
func ParseDocumentString(src string) (*dom.Tree, error) {
	return ParseDocument(strings.NewReader(src))
}

// ParseFragment parses src as the contents of a context element (body when
// context is empty) and returns its first top-level node, detached and
// ready to be appended into another tree.
func ParseFragment(src, context string) (*dom.Node, error) {
	if context == "" {
		context = DefaultFragmentContext
	}
	ctx := &html.Node{
		Type:     html.ElementNode,
		Data:     context,
		DataAtom: atom.Lookup([]byte(context)),
	}
	nodes, err := html.ParseFragment(strings.NewReader(src), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	// Stage the parsed nodes under a throwaway container so text coalescing
	// and ownership follow the same rules as a full document.
	scratch := dom.New()
	container := scratch.CreateElement(dom.HTMLName("html"), nil, dom.ElementFlags{})
	scratch.Append(scratch.GetDocument(), dom.AppendNode(container))

	b := &builder{sink: scratch}
	for _, n := range nodes {
		b.node(container, n)
	}

	first := container.FirstChild()
	if first == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedFragment, src)
	}
	scratch.RemoveFromParent(first)
	return first, nil
}

// builder replays an x/net/html tree through sink operations.
type builder struct {
	sink       dom.Sink
	hasDoctype bool
}

func (b *builder) children(parent *dom.Node, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.node(parent, c)
	}
}

func (b *builder) node(parent *dom.Node, n *html.Node) {
	switch n.Type {
	case html.DoctypeNode:
		var public, system string
		for _, a := range n.Attr {
			switch a.Key {
			case "public":
				public = a.Val
			case "system":
				system = a.Val
			}
		}
		b.hasDoctype = true
		b.sink.AppendDoctypeToDocument(n.Data, public, system)
	case html.ElementNode:
		el := b.sink.CreateElement(elementName(n.Namespace, n.Data), convertAttrs(n.Attr), flagsFor(n))
		b.sink.Append(parent, dom.AppendNode(el))
		if n.Namespace == "" && n.DataAtom == atom.Template {
			b.children(b.sink.GetTemplateContents(el), n)
			return
		}
		b.children(el, n)
	case html.TextNode:
		b.sink.Append(parent, dom.AppendText(n.Data))
	case html.CommentNode:
		b.sink.Append(parent, dom.AppendNode(b.sink.CreateComment(n.Data)))
	default:
		b.sink.ParseError(fmt.Sprintf("unexpected node type %d", n.Type))
	}
}

// detectQuirks decides the compatibility mode from the document's doctype;
// x/net/html keeps its own flag private. Malformed doctypes that the
// tokenizer forces into quirks mode are not distinguished.
func (b *builder) detectQuirks(root *html.Node) {
	if !b.hasDoctype {
		b.sink.ParseError("missing-doctype")
		b.sink.SetQuirksMode(dom.Quirks)
		return
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.DoctypeNode {
			continue
		}
		var public, system doctypeID
		for _, a := range c.Attr {
			switch a.Key {
			case "public":
				public = doctypeID{value: a.Val, present: true}
			case "system":
				system = doctypeID{value: a.Val, present: true}
			}
		}
		b.sink.SetQuirksMode(doctypeMode(c.Data, public, system))
		return
	}
	b.sink.SetQuirksMode(dom.NoQuirks)
}

func convertAttrs(attrs []html.Attribute) []dom.Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]dom.Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = dom.Attribute{Name: attrName(a.Namespace, a.Key), Value: a.Val}
	}
	return out
}

func flagsFor(n *html.Node) dom.ElementFlags {
	var flags dom.ElementFlags
	switch n.Namespace {
	case "":
		flags.Template = n.DataAtom == atom.Template
	case "math":
		if n.Data == "annotation-xml" {
			for _, a := range n.Attr {
				if a.Namespace == "" && a.Key == "encoding" {
					enc := strings.ToLower(a.Val)
					flags.MathMLAnnotationXMLIntegrationPoint = enc == "text/html" || enc == "application/xhtml+xml"
				}
			}
		}
	}
	return flags
}
