package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ResolveURL makes href absolute against base.
func ResolveURL(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("empty href")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

// PageURL returns the listing index URL for the given 1-based page.
func PageURL(startURL string, page int) (string, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return "", fmt.Errorf("parse start url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ContactsURL rewrites a company profile URL to its contacts page.
func ContactsURL(companyURL string) string {
	return strings.Replace(companyURL, "/jobs.html", "/kontakte.html#menu", 1)
}
