package crawler

import (
	"context"
	"time"
)

// Fetcher performs a single logical fetch of a URL through the remote fetch
// service.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Page is one open tab on a remote browser session. Implementations are not
// safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Exists reports whether selector matches at least one node without waiting.
	Exists(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Attr(ctx context.Context, selector, name string) (string, bool, error)
	InnerHTML(ctx context.Context, selector string) (string, error)
	Click(ctx context.Context, selector string) error
	Visible(ctx context.Context, selector string) (bool, error)
	// Hide sets display:none on every node matching selector.
	Hide(ctx context.Context, selector string) error
	Close() error
}

// Session is a long-lived remote browser connection able to open pages.
type Session interface {
	Index() int
	NewPage(ctx context.Context) (Page, error)
}

// Sink receives completed records.
type Sink interface {
	Append(ctx context.Context, record JobRecord) error
}

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time and waits (useful for testing).
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
