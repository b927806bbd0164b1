package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

var (
	// ErrStatus marks a response with a non-success status code
	ErrStatus = errors.New("unexpected status")
	// ErrRedirectOutOfScope marks a redirect to a host outside the crawl
	ErrRedirectOutOfScope = errors.New("redirect leaves the configured origins")
	// ErrBodyTooLarge marks a response longer than Options.MaxBodyBytes
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

const (
	ctxResponse = "mirror.response"
	ctxError    = "mirror.error"
	maxRedirect = 10
)

// Options configures the HTTP side of the crawl
type Options struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	// MaxBodyBytes rejects longer bodies; 0 means unlimited
	MaxBodyBytes int
	// AllowRedirect decides whether a redirect target may be followed; nil allows all
	AllowRedirect func(*url.URL) bool
}

// Response is a fetched resource
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	// Transcoded is set when a declared non-UTF-8 charset was converted to UTF-8
	Transcoded bool
}

// IsHTML reports whether the response declares an HTML body (or declares nothing)
func (r *Response) IsHTML() bool {
	ct := strings.ToLower(r.ContentType)
	return ct == "" || strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// Fetcher issues GET requests through a colly collector
type Fetcher struct {
	collector *colly.Collector
}

// New creates a fetcher with browser-like headers
func New(opts Options) *Fetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.MaxDepth(0),
	)
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	// colly truncates silently; reading one byte past the limit lets OnResponse reject the body
	c.MaxBodySize = 0
	if opts.MaxBodyBytes > 0 {
		c.MaxBodySize = opts.MaxBodyBytes + 1
	}
	c.WithTransport(&brotliTransport{base: http.DefaultTransport})
	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}

	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirect {
			return fmt.Errorf("stopped after %d redirects", maxRedirect)
		}
		if opts.AllowRedirect != nil && !opts.AllowRedirect(req.URL) {
			return fmt.Errorf("%w: %s", ErrRedirectOutOfScope, req.URL)
		}
		return nil
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
		if opts.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", opts.AcceptLanguage)
		}
		r.Headers.Set("Accept-Encoding", "gzip, br")
	})

	c.OnResponse(func(r *colly.Response) {
		if opts.MaxBodyBytes > 0 && len(r.Body) > opts.MaxBodyBytes {
			r.Ctx.Put(ctxError, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, opts.MaxBodyBytes))
			return
		}

		contentType := r.Headers.Get("Content-Type")
		r.Ctx.Put(ctxResponse, &Response{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: contentType,
			Body:        r.Body,
			Transcoded:  transcoded(contentType),
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		if r.StatusCode != 0 {
			err = fmt.Errorf("%w: %d", ErrStatus, r.StatusCode)
		}
		r.Ctx.Put(ctxError, err)
	})

	return &Fetcher{collector: c}
}

// Fetch downloads rawURL. Any non-success outcome is returned as an error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx := colly.NewContext()
	err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil)

	if cbErr, ok := reqCtx.GetAny(ctxError).(error); ok && cbErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, cbErr)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	resp, ok := reqCtx.GetAny(ctxResponse).(*Response)
	if !ok {
		return nil, fmt.Errorf("fetch %s: no response received", rawURL)
	}
	return resp, nil
}

// transcoded follows colly's rule for converting a response body to UTF-8
func transcoded(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, binary := range []string{"image/", "video/", "audio/", "font/"} {
		if strings.Contains(ct, binary) {
			return false
		}
	}
	if !strings.Contains(ct, "charset") {
		return false
	}
	return !strings.Contains(ct, "utf-8") && !strings.Contains(ct, "utf8")
}

// brotliTransport decodes br responses before colly applies its body limit and charset conversion
type brotliTransport struct {
	base http.RoundTripper
}

func (t *brotliTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.base.RoundTrip(req)
	if err != nil || !strings.EqualFold(res.Header.Get("Content-Encoding"), "br") {
		return res, err
	}

	res.Body = &brotliBody{Reader: brotli.NewReader(res.Body), body: res.Body}
	res.Header.Del("Content-Encoding")
	res.Header.Del("Content-Length")
	res.ContentLength = -1
	res.Uncompressed = true
	return res, nil
}

type brotliBody struct {
	*brotli.Reader
	body io.ReadCloser
}

func (b *brotliBody) Close() error {
	return b.body.Close()
}
