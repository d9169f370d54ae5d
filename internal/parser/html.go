package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mixelka/mailarchive/internal/decode"
)

// cidAttributes are the HTML attributes that can point at another part.
var cidAttributes = []string{"src", "href", "background"}

// ContentIDReferences returns the Content-IDs an HTML document links to
// through cid: URLs.
func ContentIDReferences(html string) (map[string]bool, error) {
	refs := make(map[string]bool)
	if html == "" {
		return refs, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	doc.Find("[src], [href], [background]").Each(func(i int, s *goquery.Selection) {
		for _, attr := range cidAttributes {
			v, ok := s.Attr(attr)
			if !ok {
				continue
			}
			v = strings.TrimSpace(v)
			if len(v) < 4 || !strings.EqualFold(v[:4], "cid:") {
				continue
			}
			cid := v[4:]
			if unescaped, err := url.PathUnescape(cid); err == nil {
				cid = unescaped
			}
			if cid = trimContentID(cid); cid != "" {
				refs[cid] = true
			}
		}
	})

	return refs, nil
}

// referencedContentIDs collects cid: links from every HTML entity in the tree.
// Unparsable HTML contributes nothing.
func referencedContentIDs(tree *Tree) map[string]bool {
	rootCharset := decode.ResolveCharset(tree.Root().Header, decode.DefaultCharset)
	refs := make(map[string]bool)
	for i := range tree.Nodes {
		n := &tree.Nodes[i]
		if n.ContentType() != "text/html" {
			continue
		}
		html := decode.Bytes(n.Payload(), decode.ResolveCharset(n.Header, rootCharset))
		found, err := ContentIDReferences(html)
		if err != nil {
			continue
		}
		for cid := range found {
			refs[cid] = true
		}
	}
	return refs
}
