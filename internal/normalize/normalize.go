// Package normalize turns fetched markup into a canonical, diff-stable form.
package normalize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Options selects what the normalizer strips and how it indents
type Options struct {
	TrackingScriptPrefixes []string
	BeaconAttributes       []string
	IndentSize             int
}

// Normalizer cleans volatile fragments out of HTML and pretty-prints it
type Normalizer struct {
	opts   Options
	indent string
}

// New creates a normalizer; an IndentSize of 0 means 4 spaces
func New(opts Options) *Normalizer {
	if opts.IndentSize <= 0 {
		opts.IndentSize = 4
	}
	return &Normalizer{
		opts:   opts,
		indent: strings.Repeat(" ", opts.IndentSize),
	}
}

// IndentSize returns the indentation width used for pages and scripts
func (n *Normalizer) IndentSize() int {
	return n.opts.IndentSize
}

// Normalize returns the canonical text of raw. Feeding the result back in returns it unchanged.
func (n *Normalizer) Normalize(raw []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	n.removeTrackingScripts(doc)
	stripLinkQueries(doc)
	n.removeBeaconAttributes(doc)

	return Pretty(doc.Nodes[0], n.indent), nil
}

func (n *Normalizer) removeTrackingScripts(doc *goquery.Document) {
	if len(n.opts.TrackingScriptPrefixes) == 0 {
		return
	}
	doc.Find("script").FilterFunction(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		for _, prefix := range n.opts.TrackingScriptPrefixes {
			if prefix != "" && strings.HasPrefix(body, prefix) {
				return true
			}
		}
		return false
	}).Remove()
}

// stripLinkQueries drops query strings and fragments so ?utm=... variants render identically
func stripLinkQueries(doc *goquery.Document) {
	doc.Find("a[href], link[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if i := strings.IndexAny(href, "?#"); i >= 0 {
			s.SetAttr("href", href[:i])
		}
	})
}

func (n *Normalizer) removeBeaconAttributes(doc *goquery.Document) {
	for _, attr := range n.opts.BeaconAttributes {
		if attr == "" {
			continue
		}
		doc.Find("[" + attr + "]").RemoveAttr(attr)
	}
}
