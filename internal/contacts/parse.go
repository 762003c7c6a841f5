package contacts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

var (
	emailPattern   = regexp.MustCompile(`[\w.-]+@[\w.-]+`)
	websitePattern = regexp.MustCompile(`https?://[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern   = regexp.MustCompile(`(?:\+|0)\d[\d /()-]{5,}\d`)
)

// ParseCompanyContacts reads the company contacts page. Name, position and
// phone come from the element text; the email from the mailto href.
func ParseCompanyContacts(body string, sel crawler.Selectors) (crawler.ContactCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return crawler.EmptyContact(), fmt.Errorf("parse contacts page: %w", err)
	}

	var website string
	if href, ok := doc.Find("ul").First().Find("a[href]").First().Attr("href"); ok {
		website = href
	}

	var email string
	if href, ok := doc.Find(sel.ContactEmail).First().Attr("href"); ok {
		email = stripScheme(href, "mailto:")
	}

	return crawler.ContactCandidate{
		Website:  website,
		FullName: firstText(doc.Selection, sel.ContactName),
		Position: firstText(doc.Selection, sel.ContactPosition),
		Phone:    firstText(doc.Selection, sel.ContactPhone),
		Email:    email,
	}.Normalize(), nil
}

// ParseAdditionalInfo reads the in-page additional information panel. Only
// website, phone and email are populated. Anchors are preferred; the panel's
// visible text is scanned when an anchor is missing.
func ParseAdditionalInfo(fragment string) (crawler.ContactCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return crawler.EmptyContact(), fmt.Errorf("parse additional info: %w", err)
	}
	text := visibleText(doc.Selection)

	phone := firstText(doc.Selection, `a[href^="tel:"]`)
	if phone == "" {
		if href, ok := doc.Find(`a[href^="tel:"]`).First().Attr("href"); ok {
			phone = stripScheme(href, "tel:")
		}
	}
	if phone == "" {
		phone = strings.TrimSpace(phonePattern.FindString(text))
	}

	var email string
	if a := doc.Find(`a[href^="mailto:"]`).First(); a.Length() > 0 {
		href, _ := a.Attr("href")
		email = stripScheme(href, "mailto:")
		if email == "" {
			email = strings.TrimSpace(a.Text())
		}
	}
	if email == "" {
		email = emailPattern.FindString(text)
	}

	var website string
	if href, ok := doc.Find(`a[href^="http"]`).First().Attr("href"); ok {
		website = strings.TrimSpace(href)
	}
	if website == "" {
		website = websitePattern.FindString(text)
	}

	c := crawler.EmptyContact()
	c.Website = crawler.OrSentinel(website)
	c.Phone = crawler.OrSentinel(phone)
	c.Email = crawler.OrSentinel(email)
	return c, nil
}

func firstText(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func stripScheme(href, scheme string) string {
	v := strings.TrimSpace(href)
	if len(v) >= len(scheme) && strings.EqualFold(v[:len(scheme)], scheme) {
		v = v[len(scheme):]
	}
	if i := strings.IndexByte(v, '?'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// visibleText joins the non-empty text nodes with newlines, skipping scripts
// and styles.
func visibleText(s *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
			case "script", "style", "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(s)
	return strings.Join(parts, "\n")
}
