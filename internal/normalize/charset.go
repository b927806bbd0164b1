package normalize

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const utf8ContentType = "text/html; charset=utf-8"

// DeclareUTF8 rewrites the meta charset declarations of a page whose bytes were converted to UTF-8.
// Pages without a conflicting declaration are returned unchanged.
func DeclareUTF8(raw []byte) []byte {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return raw
	}

	changed := false
	doc.Find("meta[charset]").Each(func(_ int, s *goquery.Selection) {
		if cs, _ := s.Attr("charset"); !isUTF8(cs) {
			s.SetAttr("charset", "utf-8")
			changed = true
		}
	})
	doc.Find("meta[http-equiv][content]").Each(func(_ int, s *goquery.Selection) {
		equiv, _ := s.Attr("http-equiv")
		content, _ := s.Attr("content")
		if !strings.EqualFold(strings.TrimSpace(equiv), "content-type") {
			return
		}
		if i := strings.Index(strings.ToLower(content), "charset="); i >= 0 && !isUTF8(content[i+len("charset="):]) {
			s.SetAttr("content", utf8ContentType)
			changed = true
		}
	})
	if !changed {
		return raw
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc.Nodes[0]); err != nil {
		return raw
	}
	return buf.Bytes()
}

func isUTF8(charset string) bool {
	cs := strings.ToLower(strings.Trim(strings.TrimSpace(charset), `"'`))
	return cs == "utf-8" || cs == "utf8"
}
