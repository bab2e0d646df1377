package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graft/internal/dom"
)

func findFirst(n *dom.Node, local string) *dom.Node {
	if n.IsElement(local) {
		return n
	}
	for _, c := range n.Children() {
		if found := findFirst(c, local); found != nil {
			return found
		}
	}
	return nil
}

func TestParseDocumentRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "already normalized",
			in:   "<html><head></head><body></body></html>",
			want: "<html><head></head><body></body></html>",
		},
		{
			name: "doctype kept",
			in:   "<!DOCTYPE html><html><head><title>t</title></head><body><p>a</p></body></html>",
			want: "<!DOCTYPE html><html><head><title>t</title></head><body><p>a</p></body></html>",
		},
		{
			name: "implied elements",
			in:   "<p>one<p>two",
			want: "<html><head></head><body><p>one</p><p>two</p></body></html>",
		},
		{
			name: "comments and entities",
			in:   "<body><!-- note -->a &amp; b</body>",
			want: "<html><head></head><body><!-- note -->a &amp; b</body></html>",
		},
		{
			name: "template contents",
			in:   "<template><b>x</b></template>",
			want: "<html><head><template><b>x</b></template></head><body></body></html>",
		},
		{
			name: "foreign content",
			in:   `<svg viewBox="0 0 1 1"><a xlink:href="#x"></a></svg>`,
			want: `<html><head></head><body><svg viewBox="0 0 1 1"><a xlink:href="#x"></a></svg></body></html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := ParseDocumentString(tt.in)
			require.NoError(t, err)

			out, err := RenderString(tree)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestParseDocumentTemplateContents(t *testing.T) {
	tree, err := ParseDocumentString("<template><b>x</b>y</template>")
	require.NoError(t, err)

	tmpl := findFirst(tree.Document, "template")
	require.NotNil(t, tmpl)
	assert.Empty(t, tmpl.Children())

	contents := tree.GetTemplateContents(tmpl)
	require.Len(t, contents.Children(), 2)
	assert.True(t, contents.FirstChild().IsElement("b"))
	assert.Equal(t, "xy", contents.TextContent())
}

func TestParseDocumentNamespaces(t *testing.T) {
	src := `<svg><a xlink:href="#x"></a></svg>` +
		`<math><annotation-xml encoding="text/html"></annotation-xml></math>`
	tree, err := ParseDocumentString(src)
	require.NoError(t, err)

	svg := findFirst(tree.Document, "svg")
	require.NotNil(t, svg)
	assert.Equal(t, dom.NamespaceSVG, svg.Name().Space)

	a := findFirst(svg, "a")
	require.NotNil(t, a)
	assert.Equal(t, []dom.Attribute{{
		Name:  dom.QualName{Prefix: "xlink", Space: dom.NamespaceXLink, Local: "href"},
		Value: "#x",
	}}, a.Attrs())

	ax := findFirst(tree.Document, "annotation-xml")
	require.NotNil(t, ax)
	assert.Equal(t, dom.NamespaceMathML, ax.Name().Space)
	assert.True(t, tree.IsMathMLAnnotationXMLIntegrationPoint(ax))

	body := findFirst(tree.Document, "body")
	assert.Equal(t, dom.HTMLName("body"), body.Name())
}

func TestParseDocumentQuirks(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		mode       dom.QuirksMode
		wantErrors []string
	}{
		{"html doctype", "<!DOCTYPE html><p>x", dom.NoQuirks, nil},
		{"no doctype", "<p>x", dom.Quirks, []string{"missing-doctype"}},
		{"other doctype", "<!DOCTYPE foo><p>x", dom.Quirks, nil},
		{"html 4.0 transitional", `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 4.0 Transitional//EN"><p>x`, dom.Quirks, nil},
		{"html 3.2 lower case", `<!DOCTYPE html PUBLIC "-//w3c//dtd html 3.2 final//en"><p>x`, dom.Quirks, nil},
		{"ibm system id", `<!DOCTYPE html SYSTEM "http://www.ibm.com/data/dtd/v11/ibmxhtml1-transitional.dtd"><p>x`, dom.Quirks, nil},
		{"html 4.01 transitional without system id", `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 4.01 Transitional//EN"><p>x`, dom.Quirks, nil},
		{"html 4.01 transitional with system id", `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 4.01 Transitional//EN" "http://www.w3.org/TR/html4/loose.dtd"><p>x`, dom.LimitedQuirks, nil},
		{"xhtml 1.0 transitional", `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd"><p>x`, dom.LimitedQuirks, nil},
		{"html 4.01 strict", `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 4.01//EN" "http://www.w3.org/TR/html4/strict.dtd"><p>x`, dom.NoQuirks, nil},
		{"legacy compat", `<!DOCTYPE html SYSTEM "about:legacy-compat"><p>x`, dom.NoQuirks, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := ParseDocumentString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.mode, tree.QuirksMode)
			assert.Equal(t, tt.wantErrors, tree.Errors)
		})
	}
}

func TestParseDocumentCoalescesText(t *testing.T) {
	tree, err := ParseDocumentString("<body>a&amp;b&lt;c</body>")
	require.NoError(t, err)

	body := findFirst(tree.Document, "body")
	require.Len(t, body.Children(), 1)
	assert.Equal(t, "a&b<c", body.FirstChild().Text().Contents())
}

func TestParseFragment(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		context string
		want    string
	}{
		{"text", "hello world", "", "hello world"},
		{"element", `<script async src="https://example.com/a.js"></script>`, "",
			`<script async="" src="https://example.com/a.js"></script>`},
		{"head content in body context", "<title>Test", "", "<title>Test</title>"},
		{"first node only", "<b>a</b><i>b</i>", "", "<b>a</b>"},
		{"table context", "<tr><td>x</td></tr>", "tbody", "<tr><td>x</td></tr>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, err := ParseFragment(tt.src, tt.context)
			require.NoError(t, err)
			assert.False(t, frag.HasParent())

			var sb strings.Builder
			require.NoError(t, RenderNode(&sb, frag))
			assert.Equal(t, tt.want, sb.String())
		})
	}
}

func TestParseFragmentMalformed(t *testing.T) {
	for _, src := range []string{"", "</p-never-opened>"} {
		_, err := ParseFragment(src, "")
		require.ErrorIs(t, err, ErrMalformedFragment, "source %q", src)
	}
}

func TestRenderProcessingInstruction(t *testing.T) {
	tree := dom.New()
	tree.Append(tree.Document, dom.AppendNode(tree.CreatePI("xml-stylesheet", `href="a.css"`)))

	out, err := RenderString(tree)
	require.NoError(t, err)
	assert.Equal(t, `<?xml-stylesheet href="a.css">`, out)
}
