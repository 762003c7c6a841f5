// Package crawlertest provides in-memory fakes of the crawler collaborator
// interfaces for use in tests.
package crawlertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

// ErrNoNode is returned when a selector has no scripted content.
var ErrNoNode = errors.New("no node matches selector")

// Page is a scripted crawler.Page. Errors are keyed by "op:selector", for
// example "click:#btn", or by "navigate" and "close".
type Page struct {
	mu sync.Mutex

	Texts      map[string]string
	Attrs      map[string]map[string]string
	HTML       map[string]string
	Visibility map[string]bool
	Errs       map[string]error

	Navigated []string
	Clicks    []string
	Hidden    []string
	Closed    int
}

// NewPage returns an empty scripted page.
func NewPage() *Page {
	return &Page{
		Texts:      map[string]string{},
		Attrs:      map[string]map[string]string{},
		HTML:       map[string]string{},
		Visibility: map[string]bool{},
		Errs:       map[string]error{},
	}
}

func (p *Page) err(key string) error {
	return p.Errs[key]
}

func (p *Page) has(selector string) bool {
	if _, ok := p.Texts[selector]; ok {
		return true
	}
	if _, ok := p.Attrs[selector]; ok {
		return true
	}
	if _, ok := p.HTML[selector]; ok {
		return true
	}
	_, ok := p.Visibility[selector]
	return ok
}

// Navigate records the URL.
func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigated = append(p.Navigated, url)
	return p.err("navigate")
}

// Exists reports whether any content is scripted for selector.
func (p *Page) Exists(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.err("exists:" + selector); err != nil {
		return false, err
	}
	return p.has(selector), nil
}

// Text returns the scripted text.
func (p *Page) Text(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.err("text:" + selector); err != nil {
		return "", err
	}
	text, ok := p.Texts[selector]
	if !ok {
		return "", fmt.Errorf("text %q: %w", selector, ErrNoNode)
	}
	return text, nil
}

// Attr returns the scripted attribute.
func (p *Page) Attr(_ context.Context, selector, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.err("attr:" + selector); err != nil {
		return "", false, err
	}
	attrs, ok := p.Attrs[selector]
	if !ok {
		return "", false, fmt.Errorf("attr %q: %w", selector, ErrNoNode)
	}
	v, ok := attrs[name]
	return v, ok, nil
}

// InnerHTML returns the scripted markup.
func (p *Page) InnerHTML(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.err("html:" + selector); err != nil {
		return "", err
	}
	html, ok := p.HTML[selector]
	if !ok {
		return "", fmt.Errorf("inner html %q: %w", selector, ErrNoNode)
	}
	return html, nil
}

// Click records the click.
func (p *Page) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.err("click:" + selector); err != nil {
		return err
	}
	if !p.has(selector) {
		return fmt.Errorf("click %q: %w", selector, ErrNoNode)
	}
	p.Clicks = append(p.Clicks, selector)
	return nil
}

// Visible returns the scripted visibility.
func (p *Page) Visible(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.err("visible:" + selector); err != nil {
		return false, err
	}
	return p.Visibility[selector], nil
}

// Hide records the selector.
func (p *Page) Hide(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.err("hide:" + selector); err != nil {
		return err
	}
	p.Hidden = append(p.Hidden, selector)
	return nil
}

// Close counts the call.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed++
	return p.err("close")
}

// ClosedCount returns how many times Close was called.
func (p *Page) ClosedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}

// Session hands out pages from a factory.
type Session struct {
	ID      int
	NewFunc func(ctx context.Context) (crawler.Page, error)
}

// Index returns the session index.
func (s *Session) Index() int {
	return s.ID
}

// NewPage delegates to NewFunc.
func (s *Session) NewPage(ctx context.Context) (crawler.Page, error) {
	if s.NewFunc == nil {
		return NewPage(), nil
	}
	return s.NewFunc(ctx)
}

// Fetcher serves canned responses keyed by URL.
type Fetcher struct {
	mu        sync.Mutex
	Responses map[string]crawler.FetchResponse
	Errs      map[string]error
	Requests  []crawler.FetchRequest
}

// NewFetcher returns an empty Fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Responses: map[string]crawler.FetchResponse{},
		Errs:      map[string]error{},
	}
}

// Fetch returns the canned response or error for request.URL.
func (f *Fetcher) Fetch(_ context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, request)
	if err, ok := f.Errs[request.URL]; ok {
		return crawler.FetchResponse{}, err
	}
	resp, ok := f.Responses[request.URL]
	if !ok {
		return crawler.FetchResponse{}, &crawler.StatusError{URL: request.URL, Code: 404}
	}
	return resp, nil
}

// RequestedURLs returns the URLs fetched so far, in order.
func (f *Fetcher) RequestedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, 0, len(f.Requests))
	for _, r := range f.Requests {
		urls = append(urls, r.URL)
	}
	return urls
}

// Clock is a fixed clock that records sleeps without blocking.
type Clock struct {
	mu     sync.Mutex
	Fixed  time.Time
	Sleeps []time.Duration
}

// Now returns the fixed time.
func (c *Clock) Now() time.Time {
	return c.Fixed
}

// Sleep records d and returns the context error, if any.
func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.Sleeps = append(c.Sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

// IDs yields sequential ids.
type IDs struct {
	mu   sync.Mutex
	next int
	Err  error
}

// NewID returns "id-1", "id-2", ...
func (g *IDs) NewID() (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

// Sink collects appended records.
type Sink struct {
	mu      sync.Mutex
	Records []crawler.JobRecord
	Err     error
}

// Append stores record.
func (s *Sink) Append(_ context.Context, record crawler.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Records = append(s.Records, record)
	return nil
}

// Snapshot returns a copy of the stored records.
func (s *Sink) Snapshot() []crawler.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crawler.JobRecord(nil), s.Records...)
}

var (
	_ crawler.Page        = (*Page)(nil)
	_ crawler.Session     = (*Session)(nil)
	_ crawler.Fetcher     = (*Fetcher)(nil)
	_ crawler.Clock       = (*Clock)(nil)
	_ crawler.IDGenerator = (*IDs)(nil)
	_ crawler.Sink        = (*Sink)(nil)
)
