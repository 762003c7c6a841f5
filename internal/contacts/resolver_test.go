package contacts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/crawler/crawlertest"
)

const companyURL = "https://www.stepstone.de/cmp/de/acme-123/jobs.html"
const contactsURL = "https://www.stepstone.de/cmp/de/acme-123/kontakte.html#menu"

func newResolver(f crawler.Fetcher, clock crawler.Clock) *Resolver {
	return New(f, clock, crawler.DefaultSelectors(), Config{
		CookieWait:   time.Second,
		FetchOptions: &crawler.FetchOptions{RenderJS: false},
	}, nil)
}

func panelPage(fragment string) *crawlertest.Page {
	sel := crawler.DefaultSelectors()
	p := crawlertest.NewPage()
	p.Texts[sel.MoreInfo] = "Mehr anzeigen"
	p.HTML[sel.AdditionalInfo] = fragment
	return p
}

func TestResolvePrimaryWinsSecondaryFillsGaps(t *testing.T) {
	t.Parallel()

	fetcher := crawlertest.NewFetcher()
	fetcher.Responses[contactsURL] = crawler.FetchResponse{Body: []byte(`<html><body>
		<span class="at-contact-name">Max Mustermann</span>
		<span class="at-contact-position">Recruiter</span>
		<a class="at-contact-email" href="mailto:max@acme.example">Mail</a>
	</body></html>`)}

	page := panelPage(`<a href="tel:+49301234">+49 30 1234</a>
		<a href="mailto:other@acme.example">x</a>
		<a href="https://acme.example">acme</a>`)

	r := newResolver(fetcher, &crawlertest.Clock{})
	got := r.Resolve(context.Background(), page, companyURL)

	require.Equal(t, crawler.ContactCandidate{
		Website:  "https://acme.example",
		FullName: "Max Mustermann",
		Position: "Recruiter",
		Phone:    "+49 30 1234",
		Email:    "max@acme.example",
	}, got)
	require.Equal(t, []string{contactsURL}, fetcher.RequestedURLs())
	require.NotNil(t, fetcher.Requests[0].Options)
	require.False(t, fetcher.Requests[0].Options.RenderJS)
}

func TestResolvePrimaryFailureDegradesToSecondary(t *testing.T) {
	t.Parallel()

	fetcher := crawlertest.NewFetcher()
	fetcher.Errs[contactsURL] = &crawler.FetchError{Kind: crawler.FetchExhausted, URL: contactsURL, Attempts: 3}

	page := panelPage(`<p>Kontakt: jobs@acme.example</p>`)
	r := newResolver(fetcher, &crawlertest.Clock{})
	got := r.Resolve(context.Background(), page, companyURL)

	require.Equal(t, crawler.Sentinel, got.FullName)
	require.Equal(t, crawler.Sentinel, got.Position)
	require.Equal(t, crawler.Sentinel, got.Phone)
	require.Equal(t, "jobs@acme.example", got.Email)
}

func TestResolveBothSourcesFail(t *testing.T) {
	t.Parallel()

	fetcher := crawlertest.NewFetcher()
	page := crawlertest.NewPage()

	r := newResolver(fetcher, &crawlertest.Clock{})
	got := r.Resolve(context.Background(), page, companyURL)
	require.Equal(t, crawler.EmptyContact(), got)
}

func TestSecondaryClickFailureIsSentinel(t *testing.T) {
	t.Parallel()

	sel := crawler.DefaultSelectors()
	page := panelPage(`<a href="tel:+49301234">+49 30 1234</a>`)
	page.Errs["click:"+sel.MoreInfo] = errors.New("not clickable")

	r := newResolver(crawlertest.NewFetcher(), &crawlertest.Clock{})
	require.Equal(t, crawler.EmptyContact(), r.Secondary(context.Background(), page))
}

func TestDismissCookies(t *testing.T) {
	t.Parallel()

	sel := crawler.DefaultSelectors()

	t.Run("performed", func(t *testing.T) {
		t.Parallel()
		page := crawlertest.NewPage()
		page.Visibility[sel.CookieAccept] = true
		clock := &crawlertest.Clock{}

		r := newResolver(crawlertest.NewFetcher(), clock)
		require.Equal(t, crawler.StepPerformed, r.DismissCookies(context.Background(), page))
		require.Equal(t, []string{sel.CookieAccept}, page.Clicks)
		require.Equal(t, []time.Duration{time.Second}, clock.Sleeps)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		clock := &crawlertest.Clock{}
		r := newResolver(crawlertest.NewFetcher(), clock)
		require.Equal(t, crawler.StepNotFound, r.DismissCookies(context.Background(), crawlertest.NewPage()))
		require.Empty(t, clock.Sleeps)
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()
		page := crawlertest.NewPage()
		page.Visibility[sel.CookieAccept] = true
		page.Errs["click:"+sel.CookieAccept] = errors.New("detached")

		r := newResolver(crawlertest.NewFetcher(), &crawlertest.Clock{})
		require.Equal(t, crawler.StepFailed, r.DismissCookies(context.Background(), page))
	})
}

func TestHideLoginOverlay(t *testing.T) {
	t.Parallel()

	sel := crawler.DefaultSelectors()

	t.Run("performed", func(t *testing.T) {
		t.Parallel()
		page := crawlertest.NewPage()
		page.Visibility[sel.LoginOverlay] = true

		r := newResolver(crawlertest.NewFetcher(), &crawlertest.Clock{})
		require.Equal(t, crawler.StepPerformed, r.HideLoginOverlay(context.Background(), page))
		require.Equal(t, []string{sel.LoginOverlay}, page.Hidden)
	})

	t.Run("not visible", func(t *testing.T) {
		t.Parallel()
		page := crawlertest.NewPage()
		r := newResolver(crawlertest.NewFetcher(), &crawlertest.Clock{})
		require.Equal(t, crawler.StepNotFound, r.HideLoginOverlay(context.Background(), page))
		require.Empty(t, page.Hidden)
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()
		page := crawlertest.NewPage()
		page.Errs["visible:"+sel.LoginOverlay] = errors.New("eval failed")
		r := newResolver(crawlertest.NewFetcher(), &crawlertest.Clock{})
		require.Equal(t, crawler.StepFailed, r.HideLoginOverlay(context.Background(), page))
	})
}

func TestOptionalStepFailuresStillReadPanel(t *testing.T) {
	t.Parallel()

	sel := crawler.DefaultSelectors()
	page := panelPage(`<a href="mailto:jobs@acme.example">x</a>`)
	page.Errs["exists:"+sel.CookieAccept] = errors.New("boom")
	page.Errs["visible:"+sel.LoginOverlay] = errors.New("boom")

	r := newResolver(crawlertest.NewFetcher(), &crawlertest.Clock{})
	got := r.Secondary(context.Background(), page)
	require.Equal(t, "jobs@acme.example", got.Email)
}
