package webclient

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DOMScanner parses the body as HTML and finds token inputs wherever
// they sit in the document. Use it against applications whose templates
// reorder attributes or insert whitespace the PatternScanner will not
// match. Unparseable bodies yield no forms.
type DOMScanner struct{}

func (DOMScanner) Scan(body string) map[string]string {
	forms := make(map[string]string)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return forms
	}
	doc.Find(`input[name="_formname"]`).Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("value")
		if name == "" {
			return
		}
		var key string
		if prev := sel.Prev(); prev.Is(`input[name="_formkey"]`) {
			key, _ = prev.Attr("value")
		}
		forms[name] = key
	})
	return forms
}
