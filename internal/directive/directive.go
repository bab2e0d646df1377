// Package directive expands placeholder directives embedded in raw markup,
// such as <!--#echo var="hello" -->, from a table of values. It works on
// text only: nothing is parsed and nothing is escaped.
package directive

import "strings"

// Default directive delimiters.
const (
	DefaultOpen  = "<!--#"
	DefaultClose = "-->"
)

// Syntax holds the delimiters of a directive.
type Syntax struct {
	Open  string
	Close string
}

// Default is the server-side-include comment syntax.
var Default = Syntax{Open: DefaultOpen, Close: DefaultClose}

// Substitute expands directives in src with the default syntax.
func Substitute(src string, values map[string]string) string {
	return Default.Substitute(src, values)
}

// Substitute replaces each directive in src, from its opening marker through
// its terminator, with the value of its key. Keys missing from values expand
// to nothing. An opening marker with no terminator after it is left as is,
// and text before the first opening marker is never rewritten.
func (s Syntax) Substitute(src string, values map[string]string) string {
	if s.Open == "" || s.Close == "" {
		return src
	}
	segments := strings.Split(src, s.Open)
	if len(segments) == 1 {
		return src
	}

	var sb strings.Builder
	sb.Grow(len(src))
	sb.WriteString(segments[0])
	for _, seg := range segments[1:] {
		body, rest, ok := strings.Cut(seg, s.Close)
		if !ok {
			sb.WriteString(s.Open)
			sb.WriteString(seg)
			continue
		}
		sb.WriteString(values[Key(body)])
		sb.WriteString(rest)
	}
	return sb.String()
}

// Key extracts the lookup key from the body of a directive: the text after
// the last '=', trimmed, with one pair of surrounding double quotes removed.
// A body without '=' is used whole.
func Key(body string) string {
	if i := strings.LastIndexByte(body, '='); i >= 0 {
		body = body[i+1:]
	}
	key := strings.TrimSpace(body)
	if len(key) >= 2 && key[0] == '"' && key[len(key)-1] == '"' {
		key = key[1 : len(key)-1]
	}
	return key
}

// Keys returns the keys referenced by directives in src, in order of
// appearance, including keys that have no value.
func (s Syntax) Keys(src string) []string {
	if s.Open == "" || s.Close == "" {
		return nil
	}
	var keys []string
	segments := strings.Split(src, s.Open)
	for _, seg := range segments[1:] {
		if body, _, ok := strings.Cut(seg, s.Close); ok {
			keys = append(keys, Key(body))
		}
	}
	return keys
}
