// Package collyfetcher implements crawler.Fetcher against the remote
// scraping proxy using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/metrics"
)

const defaultTimeout = 60 * time.Second

// Config controls how requests are routed through the proxy API.
type Config struct {
	APIURL    string
	APIKey    string
	Options   crawler.FetchOptions
	UserAgent string
	Timeout   time.Duration
}

// Waiter blocks until an outbound request for url may proceed.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements crawler.Fetcher using the Colly collector. Each call
// performs exactly one proxy request; retries are layered on top.
type Fetcher struct {
	cfg           Config
	apiURL        *url.URL
	limiter       Waiter
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. limiter may be nil.
func New(cfg Config, limiter Waiter) (*Fetcher, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("proxy api url is required")
	}
	apiURL, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy api url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	// Every call targets the same proxy endpoint, so revisits must be allowed.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	// Clones share the backend client, so the timeout is set once here.
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		apiURL:        apiURL,
		limiter:       limiter,
		baseCollector: c,
	}, nil
}

// Fetch executes a single proxied GET for request.URL.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, request.URL); err != nil {
			return crawler.FetchResponse{}, err
		}
	}

	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, f.proxyURL(request), &fetchErr); err != nil {
		if crawler.IsServerError(err) {
			metrics.ObserveFetchAttempt("server_error")
		} else {
			metrics.ObserveFetchAttempt("error")
		}
		return crawler.FetchResponse{}, err
	}
	metrics.ObserveFetchAttempt("ok")
	return result, nil
}

func (f *Fetcher) buildCollector(
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request crawler.FetchRequest,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        request.URL,
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
			Attempts:   1,
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = &crawler.StatusError{URL: request.URL, Code: r.StatusCode}
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// proxyURL encodes the target and the proxy options as query parameters.
func (f *Fetcher) proxyURL(request crawler.FetchRequest) string {
	opts := f.cfg.Options
	if request.Options != nil {
		opts = *request.Options
	}
	u := *f.apiURL
	q := u.Query()
	q.Set("api_key", f.cfg.APIKey)
	q.Set("url", request.URL)
	q.Set("render_js", strconv.FormatBool(opts.RenderJS))
	q.Set("premium_proxy", strconv.FormatBool(opts.PremiumProxy))
	if opts.CountryCode != "" {
		q.Set("country_code", opts.CountryCode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
