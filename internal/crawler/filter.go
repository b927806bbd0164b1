package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link schemes that never lead to a mirrored page
var skippedSchemes = []string{"mailto:", "tel:", "javascript:", "data:"}

// pageSelector is the only query parameter that addresses a distinct page
const pageSelector = "page="

// LinkFilter decides which hyperlinks join the frontier
type LinkFilter struct {
	ExcludedSegments []string
	AssetExtensions  map[string]bool
}

// IsExcludedLink reports whether href is empty, fragment-only, uses a non-page scheme
// or contains an excluded path segment
func IsExcludedLink(href string, excludedSegments []string) bool {
	h := strings.TrimSpace(href)
	if h == "" || strings.HasPrefix(h, "#") {
		return true
	}

	lower := strings.ToLower(h)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}

	for _, seg := range excludedSegments {
		if seg != "" && strings.Contains(h, seg) {
			return true
		}
	}
	return false
}

// Canonicalize returns the frontier key of u: no fragment, no query except the
// page selector, and "/" for an empty path
func Canonicalize(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	c.ForceQuery = false
	c.Host = strings.ToLower(c.Host)
	c.Scheme = strings.ToLower(c.Scheme)

	query := ""
	for _, part := range strings.Split(c.RawQuery, "&") {
		if strings.HasPrefix(part, pageSelector) {
			query = part
			break
		}
	}
	c.RawQuery = query

	if c.Path == "" {
		c.Path = "/"
		c.RawPath = ""
	}
	return c.String()
}

// ExtractLinks returns the canonical same-origin page links of doc, in document order and without duplicates
func ExtractLinks(doc *goquery.Document, pageURL *url.URL, origin string, filter LinkFilter) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if IsExcludedLink(href, filter.ExcludedSegments) {
			return
		}

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := pageURL.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if OriginOf(abs) != origin {
			return
		}
		if _, isAsset := assetExt(abs, filter.AssetExtensions); isAsset {
			return
		}

		link := Canonicalize(abs)
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links
}
