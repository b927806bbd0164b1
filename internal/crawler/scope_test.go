package crawler

import (
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestScope(t *testing.T) {
	s := NewScope([]string{"https://Example.test/", "https://blog.example.test", "https://example.test"})

	assert.Equal(t, []string{"https://example.test", "https://blog.example.test"}, s.Origins())

	assert.True(t, s.Contains(mustParse(t, "https://example.test/about")))
	assert.True(t, s.Contains(mustParse(t, "https://blog.example.test/")))
	assert.False(t, s.Contains(mustParse(t, "http://example.test/about")))
	assert.False(t, s.Contains(mustParse(t, "https://example.test.evil.test/")))
	assert.False(t, s.Contains(mustParse(t, "https://example.test:8443/")))

	assert.True(t, s.AllowsHost(mustParse(t, "http://example.test/about")))
	assert.False(t, s.AllowsHost(mustParse(t, "https://cdn.other.test/x.js")))
}

func TestAssetExt(t *testing.T) {
	exts := extensionSet([]string{".CSS", "png", "pdf"})

	ext, ok := assetExt(mustParse(t, "https://a.test/static/Style.CSS"), exts)
	assert.True(t, ok)
	assert.Equal(t, "css", ext)

	_, ok = assetExt(mustParse(t, "https://a.test/page"), exts)
	assert.False(t, ok)

	_, ok = assetExt(mustParse(t, "https://a.test/app.js"), exts)
	assert.False(t, ok)
}

func TestAssetDestination(t *testing.T) {
	tests := []struct {
		name     string
		pagePath string
		raw      string
		ext      string
		want     string
		ok       bool
	}{
		{"plain", "a.test/about.html", "https://a.test/static/style.css", "css", filepath.Join("a.test", "css", "style.css"), true},
		{"escaped", "a.test/index.html", "https://a.test/img/my%20logo.png", "png", filepath.Join("a.test", "png", "my-logo.png"), true},
		{"no name", "a.test/index.html", "https://a.test/", "png", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := assetDestination(tt.pagePath, mustParse(t, tt.raw), tt.ext)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
