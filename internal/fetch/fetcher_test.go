package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Seen-Agent", r.UserAgent())
		w.Header().Set("X-Seen-Language", r.Header.Get("Accept-Language"))
		_, _ = w.Write([]byte("<html><body>" + r.UserAgent() + "|" + r.Header.Get("Accept-Language") + "</body></html>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/away", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://elsewhere.invalid/landing", http.StatusFound)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/brotli", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte("<html><body>compressed</body></html>"))
		_ = bw.Close()

		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	})

	mux.HandleFunc("/report.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(bytes.Repeat([]byte("x"), 5000))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, _ *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write([]byte("<html><head><meta charset=\"iso-8859-1\"></head><body>caf\xe9</body></html>"))
		_ = bw.Close()

		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(srv *httptest.Server) *Fetcher {
	base, _ := url.Parse(srv.URL)
	return New(Options{
		UserAgent:      "mirror-test/1.0",
		AcceptLanguage: "pl;q=0.7",
		Timeout:        5 * time.Second,
		AllowRedirect: func(u *url.URL) bool {
			return u.Host == base.Host
		},
	})
}

func TestFetch_Success(t *testing.T) {
	srv := newTestServer(t)
	f := newTestFetcher(srv)

	resp, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsHTML())
	assert.Contains(t, string(resp.Body), "mirror-test/1.0|pl;q=0.7")
}

func TestFetch_NotFound(t *testing.T) {
	srv := newTestServer(t)
	f := newTestFetcher(srv)

	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)
}

func TestFetch_RedirectOutOfScope(t *testing.T) {
	srv := newTestServer(t)
	f := newTestFetcher(srv)

	_, err := f.Fetch(context.Background(), srv.URL+"/away")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRedirectOutOfScope)
}

func TestFetch_RedirectInScope(t *testing.T) {
	srv := newTestServer(t)
	f := newTestFetcher(srv)

	resp, err := f.Fetch(context.Background(), srv.URL+"/moved")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/page", resp.URL)
}

func TestFetch_Brotli(t *testing.T) {
	srv := newTestServer(t)
	f := newTestFetcher(srv)

	resp, err := f.Fetch(context.Background(), srv.URL+"/brotli")
	require.NoError(t, err)
	assert.Equal(t, "<html><body>compressed</body></html>", string(resp.Body))
}

func TestFetch_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t)
	f := New(Options{MaxBodyBytes: 1000})

	resp, err := f.Fetch(context.Background(), srv.URL+"/report.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Nil(t, resp)
}

func TestFetch_BodyAtLimit(t *testing.T) {
	srv := newTestServer(t)
	f := New(Options{MaxBodyBytes: 5000})

	resp, err := f.Fetch(context.Background(), srv.URL+"/report.pdf")
	require.NoError(t, err)
	assert.Len(t, resp.Body, 5000)
}

func TestFetch_BrotliWithDeclaredCharset(t *testing.T) {
	srv := newTestServer(t)
	f := newTestFetcher(srv)

	resp, err := f.Fetch(context.Background(), srv.URL+"/latin1")
	require.NoError(t, err)
	assert.True(t, resp.Transcoded)
	assert.Contains(t, string(resp.Body), "café")
}

func TestFetch_CanceledContext(t *testing.T) {
	srv := newTestServer(t)
	f := newTestFetcher(srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, srv.URL+"/page")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponse_IsHTML(t *testing.T) {
	cases := map[string]bool{
		"":                         true,
		"text/html; charset=utf-8": true,
		"application/xhtml+xml":    true,
		"application/pdf":          false,
		"image/png":                false,
		"text/css":                 false,
	}
	for ct, want := range cases {
		assert.Equal(t, want, (&Response{ContentType: ct}).IsHTML(), ct)
	}
}

func TestTranscoded(t *testing.T) {
	cases := map[string]bool{
		"":                               false,
		"text/html":                      false,
		"text/html; charset=utf-8":       false,
		"text/html; charset=UTF8":        false,
		"text/html; charset=iso-8859-2":  true,
		"text/css; charset=windows-1250": true,
		"image/svg+xml; charset=latin1":  false,
	}
	for ct, want := range cases {
		assert.Equal(t, want, transcoded(ct), ct)
	}
}
