package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trackingPrefix = "(function(){function c(){var b=a.contentDocument||a.contentWindow.document;if(b){var d=b.createElement('script');"

func newTestNormalizer() *Normalizer {
	return New(Options{
		TrackingScriptPrefixes: []string{trackingPrefix},
		BeaconAttributes:       []string{"data-cf-beacon", "data-cfemail"},
		IndentSize:             4,
	})
}

func TestNormalize_RemovesTrackingScript(t *testing.T) {
	raw := `<html><head><title>T</title></head><body><p>hi</p>` +
		`<script>` + trackingPrefix + `d.innerHTML="window.__CF$cv$params={r:'8c1f',t:'MTcy'}";}}})();</script>` +
		`<script>console.log("kept")</script></body></html>`

	out, err := newTestNormalizer().Normalize([]byte(raw))
	require.NoError(t, err)

	assert.NotContains(t, out, "__CF$cv$params")
	assert.Contains(t, out, `console.log("kept")`)
}

func TestNormalize_StripsLinkQueries(t *testing.T) {
	raw := `<html><head><link rel="stylesheet" href="/style.css?ver=6.4"></head>` +
		`<body><a href="https://example.test/about?ref=1">About</a><a href="/faq#top">FAQ</a>` +
		`<img src="/logo.png?v=2"></body></html>`

	out, err := newTestNormalizer().Normalize([]byte(raw))
	require.NoError(t, err)

	assert.Contains(t, out, `href="/style.css"`)
	assert.Contains(t, out, `href="https://example.test/about"`)
	assert.Contains(t, out, `href="/faq"`)
	assert.NotContains(t, out, "?ref=1")
	// only hyperlinks and stylesheet links are rewritten
	assert.Contains(t, out, `src="/logo.png?v=2"`)
}

func TestNormalize_RemovesBeaconAttributes(t *testing.T) {
	raw := `<html><body><a href="/cdn-cgi/l/email-protection" class="__cf_email__" data-cfemail="8ae3e4">[email]</a>` +
		`<script defer src="https://static.cloudflareinsights.com/beacon.min.js" data-cf-beacon='{"token":"abc"}'></script></body></html>`

	out, err := newTestNormalizer().Normalize([]byte(raw))
	require.NoError(t, err)

	assert.NotContains(t, out, "data-cfemail")
	assert.NotContains(t, out, "data-cf-beacon")
	assert.Contains(t, out, `class="__cf_email__"`)
}

func TestNormalize_RotatingTrackingIsStable(t *testing.T) {
	page := func(token string) string {
		return `<html><body><p>Same content</p><a href="/x?utm=` + token + `">x</a>` +
			`<span data-cfemail="` + token + `">mail</span>` +
			`<script>` + trackingPrefix + token + `</script></body></html>`
	}

	n := newTestNormalizer()
	first, err := n.Normalize([]byte(page("aaa")))
	require.NoError(t, err)
	second, err := n.Normalize([]byte(page("bbb")))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNormalize_Idempotent(t *testing.T) {
	docs := []string{
		`<p>fragment only</p>`,
		`<!DOCTYPE html><html lang="pl"><head><meta charset="utf-8"><title>Tom &amp; Jerry</title>` +
			`<style>body { color: red; }</style></head><body><!-- nav --><nav><ul><li><a href="/">Home</a></li>` +
			`<li>  Two
			lines </li></ul></nav><main><h1>Title <small>sub</small></h1><p>Some <b>bold</b> and <i> spaced </i> text.<br>Next line</p>` +
			`<pre>
  keep   this
    exactly</pre><div>text<div>nested <code>x  =  1</code></div><span>tail</span></div>` +
			`<table><tr><td>1</td><td>2 &lt; 3</td></tr></table>` +
			`<svg viewBox="0 0 10 10"><path d="M0 0L10 10"/></svg>` +
			`<textarea>
 raw</textarea><select><option value="1">One</option></select>` +
			`<p>non&nbsp;breaking</p></main></body></html>`,
		`<html><body>   <div>   </div><p></p>loose text<img src="a.png" alt="a &quot;b&quot;"></body></html>`,
	}

	n := newTestNormalizer()
	for _, doc := range docs {
		once, err := n.Normalize([]byte(doc))
		require.NoError(t, err)
		twice, err := n.Normalize([]byte(once))
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestNormalize_PrettyPrints(t *testing.T) {
	out, err := newTestNormalizer().Normalize([]byte(`<html><head><title>T</title></head><body><div><p>Hello <b>world</b></p></div></body></html>`))
	require.NoError(t, err)

	want := strings.Join([]string{
		"<html>",
		"    <head>",
		"        <title>T</title>",
		"    </head>",
		"    <body>",
		"        <div>",
		"            <p>Hello <b>world</b></p>",
		"        </div>",
		"    </body>",
		"</html>",
		"",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestNormalize_PreservesPreformatted(t *testing.T) {
	raw := "<html><body><pre>a\n   b\tc</pre><ul><li>one\n   two</li></ul></body></html>"

	out, err := newTestNormalizer().Normalize([]byte(raw))
	require.NoError(t, err)

	assert.Contains(t, out, "<pre>a\n   b\tc</pre>")
	assert.Contains(t, out, "<li>one\n   two</li>")
}

func TestNormalize_IndentSize(t *testing.T) {
	n := New(Options{IndentSize: 2})
	out, err := n.Normalize([]byte(`<div><p>x</p></div>`))
	require.NoError(t, err)

	assert.Contains(t, out, "\n    <div>\n      <p>x</p>\n    </div>\n")
	assert.Equal(t, 2, n.IndentSize())
}
