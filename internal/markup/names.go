package markup

import (
	"graft/internal/dom"
)

// x/net/html spells namespaces with short names; the tree stores URIs.
var (
	elementSpaces = map[string]string{
		"":     dom.NamespaceHTML,
		"svg":  dom.NamespaceSVG,
		"math": dom.NamespaceMathML,
	}
	attrSpaces = map[string]string{
		"xlink": dom.NamespaceXLink,
		"xml":   dom.NamespaceXML,
		"xmlns": dom.NamespaceXMLNS,
	}
)

func elementName(space, local string) dom.QualName {
	uri, ok := elementSpaces[space]
	if !ok {
		uri = space
	}
	return dom.QualName{Space: uri, Local: local}
}

func attrName(space, local string) dom.QualName {
	if space == "" {
		return dom.AttrName(local)
	}
	uri, ok := attrSpaces[space]
	if !ok {
		uri = space
	}
	return dom.QualName{Prefix: space, Space: uri, Local: local}
}

func shortSpace(uri string) string {
	for short, u := range elementSpaces {
		if u == uri {
			return short
		}
	}
	return uri
}

func attrPrefix(q dom.QualName) string {
	if q.Prefix != "" || q.Space == "" {
		return q.Prefix
	}
	for short, u := range attrSpaces {
		if u == q.Space {
			return short
		}
	}
	return q.Space
}
