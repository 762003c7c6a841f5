// Package extractor turns one job detail page into a crawler.JobRecord.
package extractor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/logging"
	"github.com/JakeFAU/stepstone-harvester/internal/metrics"
)

// ContactResolver fills in the contact fields for a job page.
type ContactResolver interface {
	Resolve(ctx context.Context, page crawler.Page, companyURL string) crawler.ContactCandidate
}

// Extractor reads job detail pages on a browser session.
type Extractor struct {
	baseURL  string
	sel      crawler.Selectors
	contacts ContactResolver
	clock    crawler.Clock
	ids      crawler.IDGenerator
	logger   *zap.Logger
}

// New builds an Extractor. Relative company links are resolved against baseURL.
func New(
	baseURL string,
	sel crawler.Selectors,
	contacts ContactResolver,
	clock crawler.Clock,
	ids crawler.IDGenerator,
	logger *zap.Logger,
) *Extractor {
	return &Extractor{
		baseURL:  baseURL,
		sel:      sel,
		contacts: contacts,
		clock:    clock,
		ids:      ids,
		logger:   logging.OrNop(logger).Named("extractor"),
	}
}

// Extract opens a page on session, reads the listing at url and returns the
// completed record. The page is closed on every path.
func (e *Extractor) Extract(ctx context.Context, session crawler.Session, url string) (record crawler.JobRecord, err error) {
	start := time.Now()
	logger := e.logger.With(zap.String("url", url), zap.Int("session", session.Index()))
	defer func() {
		metrics.ObserveExtractionDuration(time.Since(start))
		var extractErr *crawler.ExtractionError
		if errors.As(err, &extractErr) {
			metrics.ObserveExtractionFailure(extractErr.Step)
		}
	}()

	page, err := session.NewPage(ctx)
	if err != nil {
		return crawler.JobRecord{}, &crawler.ExtractionError{URL: url, Step: "open_page", Err: err}
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			logger.Debug("failed to close page", zap.Error(closeErr))
		}
	}()

	logger.Info("scraping job listing")
	if err := page.Navigate(ctx, url); err != nil {
		return crawler.JobRecord{}, &crawler.ExtractionError{URL: url, Step: "navigate", Err: err}
	}
	now := e.clock.Now()

	record = crawler.JobRecord{
		Platform:  crawler.Platform,
		SourceURL: url,
		ScrapedAt: now,
	}
	required := []struct {
		step     string
		selector string
		dst      *string
	}{
		{"title", e.sel.Title, &record.Title},
		{"employment_type", e.sel.EmploymentType, &record.EmploymentType},
		{"location", e.sel.Location, &record.Location},
		{"company_name", e.sel.CompanyName, &record.CompanyName},
	}
	for _, field := range required {
		text, err := page.Text(ctx, field.selector)
		if err != nil {
			return crawler.JobRecord{}, &crawler.ExtractionError{URL: url, Step: field.step, Err: err}
		}
		*field.dst = text
	}

	companyURL := e.companyLink(ctx, page, logger)
	record.ListedAt = crawler.ParseListedAt(e.postedPhrase(ctx, page, logger), now)

	contact := crawler.EmptyContact()
	if companyURL != "" {
		contact = e.contacts.Resolve(ctx, page, companyURL)
	}
	record = record.ApplyContact(contact)

	id, err := e.ids.NewID()
	if err != nil {
		return crawler.JobRecord{}, &crawler.ExtractionError{URL: url, Step: "id", Err: err}
	}
	record.ID = id

	logger.Info("job listing scraped", zap.String("job_id", id), zap.String("company", record.CompanyName))
	return record.Normalize(), nil
}

// companyLink returns the absolute company profile URL, or "" when the
// listing has none.
func (e *Extractor) companyLink(ctx context.Context, page crawler.Page, logger *zap.Logger) string {
	found, err := page.Exists(ctx, e.sel.CompanyLink)
	if err != nil || !found {
		return ""
	}
	href, ok, err := page.Attr(ctx, e.sel.CompanyLink, "href")
	if err != nil || !ok || crawler.IsSentinel(href) {
		return ""
	}
	abs, err := crawler.ResolveURL(e.baseURL, href)
	if err != nil {
		logger.Debug("ignoring malformed company link", zap.String("href", href), zap.Error(err))
		return ""
	}
	return abs
}

func (e *Extractor) postedPhrase(ctx context.Context, page crawler.Page, logger *zap.Logger) string {
	found, err := page.Exists(ctx, e.sel.PostedAt)
	if err != nil || !found {
		return ""
	}
	phrase, err := page.Text(ctx, e.sel.PostedAt)
	if err != nil {
		logger.Debug("posted date unreadable", zap.Error(err))
		return ""
	}
	return phrase
}
