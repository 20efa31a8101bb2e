package htmltext

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

func attributeOptions(specs ...string) Options {
	opts := DefaultOptions()
	opts.Attributes = specs
	return opts
}

func TestAttributePositionalFidelity(t *testing.T) {
	doc := `<p title="Tip &amp; trick">Hi</p>` +
		`<img src="a.gif" alt="Company logo">` +
		`<img alt=Logo src=b.gif/>` +
		`<meta name="Description" content="About this help">` +
		`<meta name="author" content="Jane Doe">` +
		`<IMG ALT='Quoted "name"'>`

	segments, err := Extract("a.htm", []byte(doc), attributeOptions("img@alt", "*@title", "meta@content"))
	require.NoError(t, err)

	want := []struct {
		original  string
		attribute string
	}{
		{"Tip & trick", "title"},
		{"Hi", ""},
		{"Company logo", "alt"},
		{"Logo", "alt"},
		{"About this help", "content"},
		{`Quoted "name"`, "alt"},
	}
	require.Len(t, segments, len(want))
	for i, s := range segments {
		assert.Equal(t, want[i].original, s.Original)
		assert.Equal(t, want[i].attribute, s.Attribute)
		assert.Equal(t, i, s.Index)
		assert.Equal(t, s.Original, html.UnescapeString(doc[s.Start:s.End]))
		s.SetTranslation(fmt.Sprintf("[%d]", i))
	}
	segments[2].SetTranslation(`Firmen "ACME" & Co`)
	segments[3].SetTranslation("Mein Logo")

	out, err := Reinsert([]byte(doc), segments)
	require.NoError(t, err)

	assert.Equal(t, `<p title="[0]">[1]</p>`+
		`<img src="a.gif" alt="Firmen &#34;ACME&#34; &amp; Co">`+
		`<img alt="Mein Logo" src=b.gif/>`+
		`<meta name="Description" content="[4]">`+
		`<meta name="author" content="Jane Doe">`+
		`<IMG ALT='[5]'>`, string(out))
}

func TestAttributesAreOptIn(t *testing.T) {
	doc := `<img alt="Picture"><a title="Tooltip">Link</a>`

	segments, err := Extract("a.htm", []byte(doc), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "Link", segments[0].Original)
}

func TestAttributesInSkippedElements(t *testing.T) {
	doc := `<pre><img alt="Diagram"></pre><code title="Shell tip">ls -l</code>`

	segments, err := Extract("a.htm", []byte(doc), attributeOptions("img@alt", "*@title"))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "Shell tip", segments[0].Original)
}

func TestSitemapNames(t *testing.T) {
	doc := "<UL>\r\n\t<LI> <OBJECT type=\"text/sitemap\">\r\n" +
		"\t\t<param name=\"Name\" value=\"Getting Started\">\r\n" +
		"\t\t<param name=\"Local\" value=\"intro.htm\">\r\n" +
		"\t\t</OBJECT>\r\n</UL>\r\n"

	segments, err := Extract("contents.hhc", []byte(doc), attributeOptions(SitemapNames))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "Getting Started", segments[0].Original)

	segments[0].SetTranslation("入门")
	out, err := Reinsert([]byte(doc), segments)
	require.NoError(t, err)
	assert.Contains(t, string(out), `<param name="Name" value="入门">`)
	assert.Contains(t, string(out), `<param name="Local" value="intro.htm">`)
}

func TestValidateAttributes(t *testing.T) {
	tests := []struct {
		spec  string
		valid bool
	}{
		{"img@alt", true},
		{"*@title", true},
		{" META@Content ", true},
		{"", true},
		{"img", false},
		{"@alt", false},
		{"img@", false},
		{"img@*", false},
		{"img@alt@x", false},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			err := ValidateAttributes([]string{tt.spec})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperr.Is(err, apperr.CodeConfig))
			}
		})
	}
}

func TestScanAttributes(t *testing.T) {
	tag := []byte(`<a href=x.htm TITLE = "Go on" checked data-x='1'>`)

	attrs := scanAttributes(tag)
	require.Len(t, attrs, 4)

	names := []string{"href", "title", "checked", "data-x"}
	values := []string{"x.htm", "Go on", "", "1"}
	for i, a := range attrs {
		assert.Equal(t, names[i], a.name)
		assert.Equal(t, values[i], a.value(tag))
	}
	assert.True(t, attrs[0].unquoted)
	assert.False(t, attrs[1].unquoted)
	assert.Equal(t, -1, attrs[2].valueStart)
}
