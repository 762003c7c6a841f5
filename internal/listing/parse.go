package listing

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

// ExtractLinks returns the absolute job links on an index page in document
// order, without duplicates.
func ExtractLinks(doc *goquery.Document, baseURL, selector string) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		abs, err := crawler.ResolveURL(baseURL, href)
		if err != nil {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// ParseTotalPages reads the page count from the pagination control: the
// second-to-last item holds the last page number.
func ParseTotalPages(doc *goquery.Document, selector string) (int, bool) {
	items := doc.Find(selector)
	if items.Length() < 2 {
		return 0, false
	}
	text := strings.TrimSpace(items.Eq(items.Length() - 2).Text())
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
