// Package contacts resolves company contact details from the company
// contacts page and the job page's additional information panel.
package contacts

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/logging"
)

// DefaultCookieWait is the pause after accepting the cookie banner.
const DefaultCookieWait = time.Second

// Config tunes the resolver.
type Config struct {
	CookieWait time.Duration
	// FetchOptions override the fetch client defaults for the contacts page.
	FetchOptions *crawler.FetchOptions
}

// Resolver combines both contact sources. It never returns an error; every
// failure degrades to sentinel values.
type Resolver struct {
	fetcher crawler.Fetcher
	clock   crawler.Clock
	sel     crawler.Selectors
	cfg     Config
	logger  *zap.Logger
}

// New builds a Resolver.
func New(fetcher crawler.Fetcher, clock crawler.Clock, sel crawler.Selectors, cfg Config, logger *zap.Logger) *Resolver {
	if cfg.CookieWait < 0 {
		cfg.CookieWait = DefaultCookieWait
	}
	return &Resolver{
		fetcher: fetcher,
		clock:   clock,
		sel:     sel,
		cfg:     cfg,
		logger:  logging.OrNop(logger).Named("contacts"),
	}
}

// Resolve queries the primary source, then the secondary one on page, and
// merges them.
func (r *Resolver) Resolve(ctx context.Context, page crawler.Page, companyURL string) crawler.ContactCandidate {
	primary := r.Primary(ctx, companyURL)
	secondary := r.Secondary(ctx, page)
	return crawler.MergeContacts(primary, secondary)
}

// Primary fetches and parses the company contacts page.
func (r *Resolver) Primary(ctx context.Context, companyURL string) crawler.ContactCandidate {
	contactsURL := crawler.ContactsURL(companyURL)
	r.logger.Debug("fetching company contacts", zap.String("url", contactsURL))

	resp, err := r.fetcher.Fetch(ctx, crawler.FetchRequest{URL: contactsURL, Options: r.cfg.FetchOptions})
	if err != nil {
		return r.fail("company_page", "fetch", contactsURL, err)
	}
	candidate, err := ParseCompanyContacts(string(resp.Body), r.sel)
	if err != nil {
		return r.fail("company_page", "parse", contactsURL, err)
	}
	return candidate
}

// Secondary reads the additional information panel of the open job page.
func (r *Resolver) Secondary(ctx context.Context, page crawler.Page) crawler.ContactCandidate {
	cookies := r.DismissCookies(ctx, page)
	overlay := r.HideLoginOverlay(ctx, page)
	r.logger.Debug("page preparation",
		zap.Stringer("cookies", cookies),
		zap.Stringer("login_overlay", overlay),
	)

	found, err := page.Exists(ctx, r.sel.MoreInfo)
	if err != nil {
		return r.fail("additional_info", "locate", "", err)
	}
	if !found {
		return r.fail("additional_info", "locate", "", errors.New("more info control not found"))
	}
	if err := page.Click(ctx, r.sel.MoreInfo); err != nil {
		return r.fail("additional_info", "expand", "", err)
	}
	fragment, err := page.InnerHTML(ctx, r.sel.AdditionalInfo)
	if err != nil {
		return r.fail("additional_info", "read", "", err)
	}
	candidate, err := ParseAdditionalInfo(fragment)
	if err != nil {
		return r.fail("additional_info", "parse", "", err)
	}
	return candidate
}

// DismissCookies accepts the cookie banner when present and waits briefly.
func (r *Resolver) DismissCookies(ctx context.Context, page crawler.Page) crawler.StepResult {
	found, err := page.Exists(ctx, r.sel.CookieAccept)
	if err != nil {
		r.logger.Debug("cookie banner lookup failed", zap.Error(err))
		return crawler.StepFailed
	}
	if !found {
		return crawler.StepNotFound
	}
	if err := page.Click(ctx, r.sel.CookieAccept); err != nil {
		r.logger.Debug("cookie banner click failed", zap.Error(err))
		return crawler.StepFailed
	}
	if err := r.clock.Sleep(ctx, r.cfg.CookieWait); err != nil {
		return crawler.StepFailed
	}
	return crawler.StepPerformed
}

// HideLoginOverlay hides the login modal if it is visible.
func (r *Resolver) HideLoginOverlay(ctx context.Context, page crawler.Page) crawler.StepResult {
	visible, err := page.Visible(ctx, r.sel.LoginOverlay)
	if err != nil {
		r.logger.Debug("login overlay lookup failed", zap.Error(err))
		return crawler.StepFailed
	}
	if !visible {
		return crawler.StepNotFound
	}
	if err := page.Hide(ctx, r.sel.LoginOverlay); err != nil {
		r.logger.Debug("login overlay hide failed", zap.Error(err))
		return crawler.StepFailed
	}
	return crawler.StepPerformed
}

func (r *Resolver) fail(source, step, url string, err error) crawler.ContactCandidate {
	resolveErr := &crawler.ContactResolutionError{Source: source, Step: step, Err: err}
	fields := []zap.Field{zap.Error(resolveErr)}
	if url != "" {
		fields = append(fields, zap.String("url", url))
	}
	r.logger.Warn("contact source unavailable", fields...)
	return crawler.EmptyContact()
}
