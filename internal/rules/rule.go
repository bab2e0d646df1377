package rules

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/beevik/etree"

	"graft/internal/config"
	"graft/internal/directive"
	"graft/internal/dom"
	"graft/internal/inject"
	"graft/internal/markup"
)

// Rule is a validated rewrite ready to run against responses.
//
// Directive rules rewrite raw source in ProcessSource; element rules graft a
// fragment into a parsed tree in ProcessHTMLTree or ProcessXMLTree. Each
// method is a no-op for the other kind.
type Rule struct {
	cfg      config.RuleConfig
	mimeType string
	syntax   directive.Syntax
}

func newRule(cfg config.RuleConfig, mimeType string) (*Rule, error) {
	r := &Rule{cfg: cfg, mimeType: mimeType, syntax: directive.Default}

	switch cfg.Kind {
	case config.KindDirective:
		if cfg.Open != "" {
			r.syntax = directive.Syntax{Open: cfg.Open, Close: cfg.Close}
		}
	case config.KindElement:
		// Fail at load time rather than on the first response.
		if isHTMLMimeType(mimeType) {
			if _, err := markup.ParseFragment(cfg.Fragment, cfg.Context); err != nil {
				return nil, err
			}
		} else if _, err := inject.ParseXMLFragment(cfg.Fragment); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}

	return r, nil
}

func (r *Rule) Name() string { return r.cfg.Name }

func (r *Rule) Kind() string { return r.cfg.Kind }

// RewritesSource reports whether the rule works on raw text.
func (r *Rule) RewritesSource() bool { return r.cfg.Kind == config.KindDirective }

// RewritesTree reports whether the rule needs a parsed document.
func (r *Rule) RewritesTree() bool { return r.cfg.Kind == config.KindElement }

// ProcessSource expands the rule's directives in src.
func (r *Rule) ProcessSource(ctx context.Context, url *url.URL, src string) string {
	if !r.RewritesSource() {
		return src
	}
	out := r.syntax.Substitute(src, r.cfg.Values)
	slog.DebugContext(ctx, "Applied directive rule", "rule", r.cfg.Name, "url", urlString(url), "changed", out != src)
	return out
}

// ProcessHTMLTree appends the rule's fragment to its target elements.
func (r *Rule) ProcessHTMLTree(ctx context.Context, url *url.URL, tree *dom.Tree) error {
	if !r.RewritesTree() || tree == nil {
		return nil
	}

	var (
		matched int
		err     error
	)
	if r.cfg.Each {
		matched, err = inject.Each(tree, r.cfg.Target, func() (*dom.Node, error) {
			return markup.ParseFragment(r.cfg.Fragment, r.cfg.Context)
		})
	} else {
		var frag *dom.Node
		frag, err = markup.ParseFragment(r.cfg.Fragment, r.cfg.Context)
		if err == nil {
			matched, err = inject.IntoTree(tree, r.cfg.Target, frag)
		}
	}
	if err != nil {
		return fmt.Errorf("rule %s: %w", r.cfg.Name, err)
	}

	slog.DebugContext(ctx, "Applied element rule", "rule", r.cfg.Name, "url", urlString(url), "target", r.cfg.Target, "matches", matched)
	return nil
}

// ProcessXMLTree appends the rule's fragment to its target elements.
func (r *Rule) ProcessXMLTree(ctx context.Context, url *url.URL, doc *etree.Document) error {
	if !r.RewritesTree() || doc == nil {
		return nil
	}

	frag, err := inject.ParseXMLFragment(r.cfg.Fragment)
	if err != nil {
		return fmt.Errorf("rule %s: %w", r.cfg.Name, err)
	}

	var matched int
	if r.cfg.Each {
		matched = inject.EachXML(doc, r.cfg.Target, frag)
	} else if matched, err = inject.IntoXML(doc, r.cfg.Target, frag); err != nil {
		return fmt.Errorf("rule %s: %w", r.cfg.Name, err)
	}

	slog.DebugContext(ctx, "Applied element rule", "rule", r.cfg.Name, "url", urlString(url), "target", r.cfg.Target, "matches", matched)
	return nil
}

func urlString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func isHTMLMimeType(mimeType string) bool {
	return mimeType == "text/html" || mimeType == "application/xhtml+xml"
}
