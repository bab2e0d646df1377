package markup

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"graft/internal/dom"
)

// Render writes the tree as HTML.
func Render(w io.Writer, tree *dom.Tree) error {
	return RenderNode(w, tree.Document)
}

// RenderNode writes n and its descendants as HTML.
func RenderNode(w io.Writer, n *dom.Node) error {
	if err := html.Render(w, toNet(n)); err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}
	return nil
}

// RenderString renders the tree into a string.
func RenderString(tree *dom.Tree) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, tree); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// toNet copies a subtree into x/net/html nodes for html.Render.
func toNet(n *dom.Node) *html.Node {
	out := &html.Node{}
	children := n.Children()

	switch d := n.Data().(type) {
	case *dom.Document:
		out.Type = html.DocumentNode
	case *dom.Doctype:
		out.Type = html.DoctypeNode
		out.Data = d.Name
		if d.PublicID != "" {
			out.Attr = append(out.Attr, html.Attribute{Key: "public", Val: d.PublicID})
		}
		if d.SystemID != "" {
			out.Attr = append(out.Attr, html.Attribute{Key: "system", Val: d.SystemID})
		}
	case *dom.Text:
		out.Type = html.TextNode
		out.Data = d.Contents()
	case *dom.Comment:
		out.Type = html.CommentNode
		out.Data = d.Contents
	case *dom.ProcessingInstruction:
		out.Type = html.RawNode
		out.Data = "<?" + d.Target + " " + d.Contents + ">"
	case *dom.Element:
		out.Type = html.ElementNode
		out.Data = d.Name.Local
		out.Namespace = shortSpace(d.Name.Space)
		if out.Namespace == "" {
			out.DataAtom = atom.Lookup([]byte(d.Name.Local))
		}
		for _, a := range d.Attrs {
			out.Attr = append(out.Attr, html.Attribute{
				Namespace: attrPrefix(a.Name),
				Key:       a.Name.Local,
				Val:       a.Value,
			})
		}
		// x/net/html keeps template contents as the template's children.
		if d.TemplateContents != nil {
			children = append(slices.Clone(d.TemplateContents.Children()), children...)
		}
	}

	for _, c := range children {
		out.AppendChild(toNet(c))
	}
	return out
}
