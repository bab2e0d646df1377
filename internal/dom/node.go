// Package dom holds the mutable document tree that the HTML tree builder
// populates and the injectors rewrite.
//
// Parents own their children through an ordered slice; a child refers back
// to its parent with a plain pointer that is only used for lookup. A node is
// listed in at most one parent's children at a time, and it has a parent
// exactly when it is listed. Every operation in this package keeps that
// true, and faults (panics with a *Fault) when a caller asks it not to.
package dom

import "strings"

// NodeType identifies the variant held by a Node.
type NodeType uint8

const (
	DocumentNode NodeType = iota + 1
	DoctypeNode
	TextNode
	CommentNode
	ElementNode
	ProcessingInstructionNode
)

func (t NodeType) String() string {
	switch t {
	case DocumentNode:
		return "document"
	case DoctypeNode:
		return "doctype"
	case TextNode:
		return "text"
	case CommentNode:
		return "comment"
	case ElementNode:
		return "element"
	case ProcessingInstructionNode:
		return "processing-instruction"
	default:
		return "unknown"
	}
}

// Namespace URIs used for qualified names.
const (
	NamespaceHTML   = "http://www.w3.org/1999/xhtml"
	NamespaceMathML = "http://www.w3.org/1998/Math/MathML"
	NamespaceSVG    = "http://www.w3.org/2000/svg"
	NamespaceXLink  = "http://www.w3.org/1999/xlink"
	NamespaceXML    = "http://www.w3.org/XML/1998/namespace"
	NamespaceXMLNS  = "http://www.w3.org/2000/xmlns/"
)

// QualName is a namespace-qualified element or attribute name.
type QualName struct {
	Prefix string
	Space  string
	Local  string
}

// HTMLName returns the qualified name of an element in the HTML namespace.
func HTMLName(local string) QualName {
	return QualName{Space: NamespaceHTML, Local: local}
}

// AttrName returns the qualified name of an attribute in no namespace.
func AttrName(local string) QualName {
	return QualName{Local: local}
}

func (q QualName) String() string {
	if q.Prefix != "" {
		return q.Prefix + ":" + q.Local
	}
	return q.Local
}

// Attribute is a single element attribute.
type Attribute struct {
	Name  QualName
	Value string
}

// Data is the variant payload of a Node. The implementations in this package
// are the only ones.
type Data interface {
	nodeType() NodeType
}

// Document marks the root of a tree or of template contents.
type Document struct{}

// Doctype is a <!DOCTYPE> declaration.
type Doctype struct {
	Name     string
	PublicID string
	SystemID string
}

// Text is a run of character data. Its buffer grows in place when adjacent
// text is coalesced into it.
type Text struct {
	buf strings.Builder
}

// Contents returns the accumulated character data.
func (t *Text) Contents() string { return t.buf.String() }

func (t *Text) push(s string) { t.buf.WriteString(s) }

// Comment is a comment node.
type Comment struct {
	Contents string
}

// Element is an element with its attributes.
type Element struct {
	Name  QualName
	Attrs []Attribute

	// TemplateContents is the document fragment owned by a <template>; nil
	// for every other element.
	TemplateContents *Node

	MathMLAnnotationXMLIntegrationPoint bool
}

// ProcessingInstruction is a <?target contents> node.
type ProcessingInstruction struct {
	Target   string
	Contents string
}

func (*Document) nodeType() NodeType              { return DocumentNode }
func (*Doctype) nodeType() NodeType               { return DoctypeNode }
func (*Text) nodeType() NodeType                  { return TextNode }
func (*Comment) nodeType() NodeType               { return CommentNode }
func (*Element) nodeType() NodeType               { return ElementNode }
func (*ProcessingInstruction) nodeType() NodeType { return ProcessingInstructionNode }

// Node is a handle to one node in a tree. Handles compare by identity.
type Node struct {
	parent   *Node
	children []*Node
	data     Data
}

func newNode(data Data) *Node {
	return &Node{data: data}
}

// NewText returns an unparented text node holding s.
func NewText(s string) *Node {
	t := &Text{}
	t.push(s)
	return newNode(t)
}

// Type reports the node's variant.
func (n *Node) Type() NodeType { return n.data.nodeType() }

// Data returns the variant payload for type switches.
func (n *Node) Data() Data { return n.data }

// Parent returns the node's parent, or nil when it is detached.
func (n *Node) Parent() *Node { return n.parent }

// HasParent reports whether the node is currently attached.
func (n *Node) HasParent() bool { return n.parent != nil }

// Children returns the node's children in document order. The slice is
// owned by the node and must not be modified.
func (n *Node) Children() []*Node { return n.children }

// FirstChild returns the first child, or nil.
func (n *Node) FirstChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[0]
}

// LastChild returns the last child, or nil.
func (n *Node) LastChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[len(n.children)-1]
}

// Element returns the element payload. It faults on any other variant.
func (n *Node) Element() *Element {
	el, ok := n.data.(*Element)
	if !ok {
		panic(wrongVariant("element", n))
	}
	return el
}

// Text returns the text payload. It faults on any other variant.
func (n *Node) Text() *Text {
	t, ok := n.data.(*Text)
	if !ok {
		panic(wrongVariant("text", n))
	}
	return t
}

// Name returns the element's qualified name. It faults on non-elements.
func (n *Node) Name() QualName { return n.Element().Name }

// Attrs returns the element's attributes in source order. It faults on
// non-elements.
func (n *Node) Attrs() []Attribute { return n.Element().Attrs }

// Attr returns the value of the no-namespace attribute local, if present.
func (n *Node) Attr(local string) (string, bool) {
	for _, a := range n.Element().Attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// IsElement reports whether the node is an element whose local name is
// local, in any namespace.
func (n *Node) IsElement(local string) bool {
	el, ok := n.data.(*Element)
	return ok && el.Name.Local == local
}

// TextContent concatenates the text of n and its descendants.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.collectText(&sb)
	return sb.String()
}

func (n *Node) collectText(sb *strings.Builder) {
	if t, ok := n.data.(*Text); ok {
		sb.WriteString(t.Contents())
		return
	}
	for _, c := range n.children {
		c.collectText(sb)
	}
}

// index returns the position of child in n's children, or -1.
func (n *Node) index(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}
