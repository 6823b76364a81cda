package freezer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkAttrs lists the element/attribute pairs that can carry crawlable
// references.
var linkAttrs = []struct {
	selector string
	attr     string
}{
	{"a[href]", "href"},
	{"link[href]", "href"},
	{"img[src]", "src"},
	{"script[src]", "src"},
	{"iframe[src]", "src"},
	{"source[src]", "src"},
}

// ExtractLinks parses HTML and returns every candidate reference found, in
// document order. References that cannot point at a page (fragments,
// mailto, javascript, data URIs) are dropped here; resolving and
// classifying the rest is the crawler's job.
func ExtractLinks(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var refs []string
	for _, la := range linkAttrs {
		doc.Find(la.selector).Each(func(_ int, sel *goquery.Selection) {
			val, ok := sel.Attr(la.attr)
			if !ok {
				return
			}
			if ref := strings.TrimSpace(val); crawlableRef(ref) {
				refs = append(refs, ref)
			}
		})
	}
	return refs, nil
}

// crawlableRef filters out references that can never resolve to a page.
func crawlableRef(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return false
	}
	lower := strings.ToLower(ref)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}
