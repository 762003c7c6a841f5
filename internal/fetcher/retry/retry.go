// Package retry wraps a crawler.Fetcher with a retry policy.
package retry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/logging"
	"github.com/JakeFAU/stepstone-harvester/internal/metrics"
)

// Policy is a crawler.RetryPolicy that also bounds the number of attempts.
type Policy interface {
	crawler.RetryPolicy
	MaxAttempts() int
}

// Fetcher retries server-side failures of the wrapped fetcher.
type Fetcher struct {
	next   crawler.Fetcher
	policy Policy
	clock  crawler.Clock
	logger *zap.Logger
}

// New builds a retrying Fetcher.
func New(next crawler.Fetcher, policy Policy, clock crawler.Clock, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		next:   next,
		policy: policy,
		clock:  clock,
		logger: logging.OrNop(logger).Named("fetch"),
	}
}

// Fetch performs up to policy.MaxAttempts() attempts. Terminal failures are
// reported as *crawler.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := f.next.Fetch(ctx, request)
		if err == nil {
			resp.Attempts = attempt
			return resp, nil
		}

		if !f.policy.ShouldRetry(err, attempt) {
			return crawler.FetchResponse{}, f.terminal(request.URL, attempt, err)
		}

		delay := f.policy.Backoff(attempt)
		metrics.ObserveFetchAttempt("retry")
		f.logger.Warn("fetch failed, retrying",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := f.clock.Sleep(ctx, delay); err != nil {
			return crawler.FetchResponse{}, &crawler.FetchError{
				Kind:     crawler.FetchNonRetryable,
				URL:      request.URL,
				Attempts: attempt,
				Err:      err,
			}
		}
	}
}

func (f *Fetcher) terminal(url string, attempt int, err error) error {
	kind := crawler.FetchNonRetryable
	if crawler.IsServerError(err) && !isCanceled(err) {
		kind = crawler.FetchExhausted
		metrics.ObserveFetchAttempt("exhausted")
	}
	f.logger.Error("fetch failed",
		zap.String("url", url),
		zap.Int("attempts", attempt),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return &crawler.FetchError{Kind: kind, URL: url, Attempts: attempt, Err: err}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var (
	_ crawler.Fetcher = (*Fetcher)(nil)
	_ Policy          = (*crawler.FixedDelayRetryPolicy)(nil)
)
