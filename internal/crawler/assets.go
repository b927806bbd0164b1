package crawler

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/alvmarrod/site-mirror/internal/metrics"
	"github.com/alvmarrod/site-mirror/internal/mirror"
	"github.com/alvmarrod/site-mirror/internal/normalize"
	"github.com/kennygrant/sanitize"
	"github.com/sirupsen/logrus"
)

// Elements and attributes that may reference a static asset
var assetSelectors = []struct {
	selector string
	attr     string
}{
	{"link[href]", "href"},
	{"script[src]", "src"},
	{"img[src]", "src"},
	{"source[src]", "src"},
	{"video[src]", "src"},
	{"audio[src]", "src"},
	{"embed[src]", "src"},
	{"a[href]", "href"},
}

var safeFileName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// AssetResolver mirrors the static files a page references
type AssetResolver struct {
	fetcher    Fetcher
	writer     *mirror.Writer
	scope      *Scope
	exts       map[string]bool
	indentSize int
}

// NewAssetResolver creates a resolver storing assets through writer
func NewAssetResolver(fetcher Fetcher, writer *mirror.Writer, scope *Scope, exts map[string]bool, indentSize int) *AssetResolver {
	return &AssetResolver{
		fetcher:    fetcher,
		writer:     writer,
		scope:      scope,
		exts:       exts,
		indentSize: indentSize,
	}
}

// Resolve downloads every in-scope asset of doc that is not mirrored yet.
// Failures are logged and counted; they never abort the page.
func (r *AssetResolver) Resolve(ctx context.Context, doc *goquery.Document, pageURL *url.URL, pagePath string, tracker *metrics.Tracker) {
	seen := make(map[string]bool)

	for _, as := range assetSelectors {
		doc.Find(as.selector).Each(func(_ int, s *goquery.Selection) {
			if ctx.Err() != nil {
				return
			}
			raw, _ := s.Attr(as.attr)
			u, ext, ok := r.assetURL(pageURL, raw)
			if !ok || seen[u.String()] {
				return
			}
			seen[u.String()] = true

			dest, ok := assetDestination(pagePath, u, ext)
			if !ok {
				logrus.Debugf("No file name for asset %s", u)
				return
			}
			r.download(ctx, u, ext, dest, tracker)
		})
	}
}

// assetURL resolves raw against the page and keeps it only if it is a tracked, in-scope asset
func (r *AssetResolver) assetURL(pageURL *url.URL, raw string) (*url.URL, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return nil, "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return nil, "", false
	}
	abs := pageURL.ResolveReference(ref)
	abs.RawQuery = ""
	abs.ForceQuery = false
	abs.Fragment = ""
	abs.RawFragment = ""

	ext, ok := assetExt(abs, r.exts)
	if !ok || !r.scope.Contains(abs) {
		return nil, "", false
	}
	return abs, ext, true
}

// assetDestination places an asset in the <ext> directory next to the page
func assetDestination(pagePath string, u *url.URL, ext string) (string, bool) {
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" || name == "." || name == "/" {
		return "", false
	}
	if !safeFileName.MatchString(name) {
		name = sanitize.Name(name)
	}
	if name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	return filepath.Join(filepath.Dir(pagePath), ext, name), true
}

func (r *AssetResolver) download(ctx context.Context, u *url.URL, ext, dest string, tracker *metrics.Tracker) {
	created, err := r.writer.WriteNew(dest, func() ([]byte, error) {
		resp, err := r.fetcher.Fetch(ctx, u.String())
		if err != nil {
			return nil, err
		}
		switch ext {
		case "css":
			return []byte(normalize.FormatCSS(string(resp.Body))), nil
		case "js":
			return []byte(normalize.FormatJS(string(resp.Body), r.indentSize)), nil
		default:
			return resp.Body, nil
		}
	})

	switch {
	case err != nil:
		logrus.Warnf("Failed to mirror asset %s: %v", u, err)
		tracker.IncrementAssetsFailed()
	case created:
		logrus.Debugf("Downloaded asset %s -> %s", u, dest)
		tracker.IncrementAssetsDownloaded()
	default:
		tracker.IncrementAssetsSkipped()
	}
}
