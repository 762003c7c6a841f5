// Package dispatcher fans a batch of job links out over the browser session
// pool and waits for all of them to finish.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/logging"
	"github.com/JakeFAU/stepstone-harvester/internal/metrics"
)

// DefaultJobDelay is the pause a unit holds its slot after finishing.
const DefaultJobDelay = time.Second

// Pool hands out sessions by index.
type Pool interface {
	Size() int
	Session(i int) crawler.Session
}

// Extractor produces a record for one job link.
type Extractor interface {
	Extract(ctx context.Context, session crawler.Session, url string) (crawler.JobRecord, error)
}

// Config bounds concurrency. MaxConcurrent of 0 means the pool size.
type Config struct {
	MaxConcurrent int
	JobDelay      time.Duration
}

// Dispatcher runs one batch at a time.
type Dispatcher struct {
	pool      Pool
	extractor Extractor
	sink      crawler.Sink
	clock     crawler.Clock
	jobDelay  time.Duration
	sem       *semaphore.Weighted
	// sessionLocks keeps at most one unit on each session.
	sessionLocks []sync.Mutex
	logger       *zap.Logger
}

// New creates a Dispatcher. MaxConcurrent may not exceed the pool size.
func New(
	cfg Config,
	pool Pool,
	extractor Extractor,
	sink crawler.Sink,
	clock crawler.Clock,
	logger *zap.Logger,
) (*Dispatcher, error) {
	size := pool.Size()
	if size <= 0 {
		return nil, errors.New("session pool is empty")
	}
	limit := cfg.MaxConcurrent
	if limit == 0 {
		limit = size
	}
	if limit < 0 || limit > size {
		return nil, fmt.Errorf("max concurrent must be between 1 and the session count %d, got %d", size, limit)
	}
	if cfg.JobDelay < 0 {
		cfg.JobDelay = DefaultJobDelay
	}
	return &Dispatcher{
		pool:         pool,
		extractor:    extractor,
		sink:         sink,
		clock:        clock,
		jobDelay:     cfg.JobDelay,
		sem:          semaphore.NewWeighted(int64(limit)),
		sessionLocks: make([]sync.Mutex, size),
		logger:       logging.OrNop(logger).Named("dispatcher"),
	}, nil
}

type unitOutcome int

const (
	unitSucceeded unitOutcome = iota
	unitFailed
	unitSinkFailed
)

// Dispatch processes links concurrently and returns once every admitted unit
// has finished. A failing unit never affects its siblings. Cancelling ctx
// stops admitting new units.
func (d *Dispatcher) Dispatch(ctx context.Context, links []string) crawler.BatchResult {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		result crawler.BatchResult
	)

	for i, link := range links {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.logger.Warn("batch interrupted", zap.Int("remaining", len(links)-i), zap.Error(err))
			break
		}
		result.Dispatched++
		g.Go(func() error {
			defer d.sem.Release(1)
			metrics.IncInFlight()
			defer metrics.DecInFlight()

			outcome := d.runUnit(ctx, i, link)

			mu.Lock()
			switch outcome {
			case unitSucceeded:
				result.Succeeded++
			case unitSinkFailed:
				result.Succeeded++
				result.SinkErrors++
			default:
				result.Failed++
			}
			mu.Unlock()

			if d.jobDelay > 0 {
				_ = d.clock.Sleep(ctx, d.jobDelay)
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.ObserveLinksDispatched(result.Dispatched)
	d.logger.Info("batch complete",
		zap.Int("dispatched", result.Dispatched),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("sink_errors", result.SinkErrors),
	)
	return result
}

func (d *Dispatcher) runUnit(ctx context.Context, i int, link string) (outcome unitOutcome) {
	idx := i % len(d.sessionLocks)
	lock := &d.sessionLocks[idx]
	// Taken after the gate slot; a unit blocked here keeps that slot idle.
	lock.Lock()
	defer lock.Unlock()

	logger := d.logger.With(zap.String("url", link), zap.Int("session", idx))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
			outcome = unitFailed
		}
	}()

	record, err := d.extractor.Extract(ctx, d.pool.Session(i), link)
	if err != nil {
		logger.Error("failed to scrape job listing", zap.Error(err))
		return unitFailed
	}
	metrics.ObserveRecord()

	if err := d.sink.Append(ctx, record); err != nil {
		logger.Error("failed to store job record", zap.String("job_id", record.ID), zap.Error(err))
		return unitSinkFailed
	}
	return unitSucceeded
}
