// Package listing walks the paginated job index and hands each page's links
// to the dispatcher.
package listing

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/logging"
	"github.com/JakeFAU/stepstone-harvester/internal/metrics"
)

// ErrAborted is returned when the walk stops because an index page could not
// be fetched or parsed.
var ErrAborted = errors.New("listing walk aborted")

// State is the walker's position in its per-page cycle.
type State int

// Walker states. Done and Aborted are terminal.
const (
	StateFetching State = iota
	StateExtracting
	StateDispatching
	StateAdvancing
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateDispatching:
		return "dispatching"
	case StateAdvancing:
		return "advancing"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Dispatcher processes one batch of job links.
type Dispatcher interface {
	Dispatch(ctx context.Context, links []string) crawler.BatchResult
}

// Config controls the walk. MaxPages of 0 means no limit.
type Config struct {
	StartURL     string
	BaseURL      string
	MaxPages     int
	FetchOptions *crawler.FetchOptions
}

// Summary describes a finished walk.
type Summary struct {
	Pages      int
	TotalPages int
	Links      int
	Batches    crawler.BatchResult
	Final      State
}

// Walker drives the index traversal. Pages are processed strictly in order
// and a page's batch finishes before the next page is fetched.
type Walker struct {
	cfg        Config
	fetcher    crawler.Fetcher
	dispatcher Dispatcher
	sel        crawler.Selectors
	logger     *zap.Logger
}

// New builds a Walker.
func New(cfg Config, fetcher crawler.Fetcher, dispatcher Dispatcher, sel crawler.Selectors, logger *zap.Logger) (*Walker, error) {
	if cfg.StartURL == "" {
		return nil, errors.New("start url is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = cfg.StartURL
	}
	if cfg.MaxPages < 0 {
		return nil, fmt.Errorf("max pages must be >= 0, got %d", cfg.MaxPages)
	}
	return &Walker{
		cfg:        cfg,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		sel:        sel,
		logger:     logging.OrNop(logger).Named("listing"),
	}, nil
}

// Walk visits index pages from page 1 until the last known page, an empty
// page, the page limit, or an error. Every link found is dispatched once.
func (w *Walker) Walk(ctx context.Context) (Summary, error) {
	var summary Summary
	enter := func(state State, page int) {
		summary.Final = state
		w.logger.Debug("walker state", zap.Stringer("state", state), zap.Int("page", page))
	}

	for page := 1; ; page++ {
		if w.cfg.MaxPages > 0 && page > w.cfg.MaxPages {
			w.logger.Info("page limit reached", zap.Int("max_pages", w.cfg.MaxPages))
			enter(StateDone, page)
			return summary, nil
		}
		if err := ctx.Err(); err != nil {
			enter(StateAborted, page)
			return summary, fmt.Errorf("%w: page %d: %w", ErrAborted, page, err)
		}

		enter(StateFetching, page)
		links, err := w.fetchLinks(ctx, page, &summary)
		if err != nil {
			metrics.ObserveIndexPage("error")
			enter(StateAborted, page)
			w.logger.Error("index page failed", zap.Int("page", page), zap.Error(err))
			return summary, fmt.Errorf("%w: page %d: %w", ErrAborted, page, err)
		}
		summary.Pages++

		enter(StateExtracting, page)
		if len(links) == 0 {
			metrics.ObserveIndexPage("empty")
			w.logger.Info("no job links found, stopping", zap.Int("page", page))
			enter(StateDone, page)
			return summary, nil
		}
		metrics.ObserveIndexPage("ok")

		enter(StateDispatching, page)
		w.logger.Info("dispatching page", zap.Int("page", page), zap.Int("links", len(links)))
		result := w.dispatcher.Dispatch(ctx, links)
		summary.Links += len(links)
		summary.Batches.Add(result)

		if summary.TotalPages > 0 && page >= summary.TotalPages {
			w.logger.Info("last page reached", zap.Int("page", page), zap.Int("total_pages", summary.TotalPages))
			enter(StateDone, page)
			return summary, nil
		}
		enter(StateAdvancing, page)
	}
}

// fetchLinks fetches and parses one index page. The page count is read from
// the first page only.
func (w *Walker) fetchLinks(ctx context.Context, page int, summary *Summary) ([]string, error) {
	pageURL, err := crawler.PageURL(w.cfg.StartURL, page)
	if err != nil {
		return nil, err
	}
	w.logger.Info("scraping index page", zap.Int("page", page), zap.String("url", pageURL))

	resp, err := w.fetcher.Fetch(ctx, crawler.FetchRequest{URL: pageURL, Options: w.cfg.FetchOptions})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse index page: %w", err)
	}

	if page == 1 {
		if total, ok := ParseTotalPages(doc, w.sel.PaginationItems); ok {
			summary.TotalPages = total
			w.logger.Info("pagination discovered", zap.Int("total_pages", total))
		} else {
			w.logger.Warn("pagination not found, walking until an empty page")
		}
	}
	return ExtractLinks(doc, w.cfg.BaseURL, w.sel.ListingLink), nil
}
