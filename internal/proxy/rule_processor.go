// This file holds the rule pipeline shared by every document type. Directive
// rules rewrite the raw body first; element rules then run against a single
// parsed tree which is rendered once at the end.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"

	"graft/internal/config"
	"graft/internal/dom"
	"graft/internal/markup"
	"graft/internal/rules"
)

// ParserFunc parses a rewritten body into a document.
type ParserFunc[T any] func(src string) (T, error)

// ProcessorFunc applies one rule to a parsed document.
type ProcessorFunc[T any] func(rule *rules.Rule, ctx context.Context, url *url.URL, document T) error

// RendererFunc serializes a document back to bytes.
type RendererFunc[T any] func(document T) ([]byte, error)

// processWithRules runs the configured rules for mimeType over body.
func (p *Proxy) processWithRules(
	req *http.Request,
	body []byte,
	mimeType string,
	ruleConfigs []config.RuleConfig,
) ([]byte, error) {
	loaded := make([]*rules.Rule, 0, len(ruleConfigs))
	for _, ruleConfig := range ruleConfigs {
		rule := p.rules.GetRule(mimeType, ruleConfig.Name)
		if rule == nil {
			return nil, fmt.Errorf("rule not found: %s/%s", mimeType, ruleConfig.Name)
		}
		loaded = append(loaded, rule)
	}

	ctx := req.Context()
	src := string(body)

	var treeRules []*rules.Rule
	for _, rule := range loaded {
		if rule.RewritesSource() {
			src = rule.ProcessSource(ctx, req.URL, src)
		}
		if rule.RewritesTree() {
			treeRules = append(treeRules, rule)
		}
	}

	if len(treeRules) == 0 {
		return []byte(src), nil
	}

	if isHTMLMimeType(mimeType) {
		return processTree(req, src, treeRules, parseHTML, processHTML, renderHTML)
	}
	return processTree(req, src, treeRules, parseXML, processXML, renderXML)
}

func processTree[T any](
	req *http.Request,
	src string,
	treeRules []*rules.Rule,
	parser ParserFunc[T],
	processor ProcessorFunc[T],
	renderer RendererFunc[T],
) ([]byte, error) {
	document, err := parser(src)
	if err != nil {
		return nil, err
	}

	ctx := req.Context()
	for _, rule := range treeRules {
		if err := processor(rule, ctx, req.URL, document); err != nil {
			return nil, fmt.Errorf("rule %s failed: %w", rule.Name(), err)
		}
	}

	return renderer(document)
}

// HTML processing functions
func parseHTML(src string) (*dom.Tree, error) {
	tree, err := markup.ParseDocument(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return tree, nil
}

func processHTML(rule *rules.Rule, ctx context.Context, url *url.URL, tree *dom.Tree) error {
	return rule.ProcessHTMLTree(ctx, url, tree)
}

func renderHTML(tree *dom.Tree) ([]byte, error) {
	var buf bytes.Buffer
	if err := markup.Render(&buf, tree); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// XML processing functions
func parseXML(src string) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(src); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return doc, nil
}

func processXML(rule *rules.Rule, ctx context.Context, url *url.URL, doc *etree.Document) error {
	return rule.ProcessXMLTree(ctx, url, doc)
}

func renderXML(doc *etree.Document) ([]byte, error) {
	output, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize XML: %w", err)
	}
	return output, nil
}
