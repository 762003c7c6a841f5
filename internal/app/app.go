// Package app initializes and holds long-lived harvester services, acting as
// a dependency injection container for the harvest command.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/stepstone-harvester/internal/api"
	"github.com/JakeFAU/stepstone-harvester/internal/browser"
	"github.com/JakeFAU/stepstone-harvester/internal/clock/system"
	"github.com/JakeFAU/stepstone-harvester/internal/config"
	"github.com/JakeFAU/stepstone-harvester/internal/contacts"
	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/dispatcher"
	"github.com/JakeFAU/stepstone-harvester/internal/extractor"
	collyfetcher "github.com/JakeFAU/stepstone-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/stepstone-harvester/internal/fetcher/retry"
	uuidgen "github.com/JakeFAU/stepstone-harvester/internal/id/uuid"
	"github.com/JakeFAU/stepstone-harvester/internal/listing"
	"github.com/JakeFAU/stepstone-harvester/internal/logging"
	"github.com/JakeFAU/stepstone-harvester/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/stepstone-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/stepstone-harvester/internal/storage"
	"github.com/JakeFAU/stepstone-harvester/internal/storage/gcs"
	"github.com/JakeFAU/stepstone-harvester/internal/storage/local"
	"github.com/JakeFAU/stepstone-harvester/internal/storage/postgres"
)

type walker interface {
	Walk(ctx context.Context) (listing.Summary, error)
}

type runRecorder interface {
	Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	Finish(ctx context.Context, runID uuid.UUID, summary postgres.RunSummary) error
}

type exporter interface {
	Export(ctx context.Context, localPath string) (string, error)
}

type opsServer interface {
	ListenAndServe(ctx context.Context, addr string) error
	SetReady(ready bool)
	SetStatus(status string)
}

// closer releases one service on shutdown.
type closer struct {
	name  string
	close func() error
}

// App holds the wired harvesting pipeline and its optional side services.
type App struct {
	logger   *zap.Logger
	clock    crawler.Clock
	walker   walker
	csvPath  string
	runs     runRecorder
	exporter exporter
	server   opsServer
	addr     string
	closers  []closer
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// New connects every configured service and wires the pipeline. Services
// opened before a failure are closed before returning the error.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	logger = logging.OrNop(logger)
	a := &App{
		logger:  logger,
		clock:   system.New(),
		csvPath: cfg.Output.CSVPath,
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logger.Info("initializing harvester services")

	fetcher, err := newFetcher(cfg, a.clock, logger)
	if err != nil {
		return nil, err
	}
	sink, err := a.buildSinks(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := browser.New(ctx, browser.Config{
		WSURL:      cfg.Browser.WSURL,
		Token:      cfg.Browser.Token,
		TokenParam: cfg.Browser.TokenParam,
		Sessions:   cfg.Browser.Sessions,
		NavTimeout: cfg.Browser.NavTimeout,
		OpTimeout:  cfg.Browser.OpTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init browser pool: %w", err)
	}
	a.addCloser("browser", pool.Close)

	a.walker, err = newWalker(cfg, fetcher, pool, sink, a.clock, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.GCSBucket != "" {
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.addCloser("gcs", client.Close)
		exp, err := gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket, Prefix: cfg.Storage.Prefix}, time.Now)
		if err != nil {
			return nil, fmt.Errorf("init gcs exporter: %w", err)
		}
		a.exporter = exp
	}

	if cfg.Server.Port > 0 {
		a.server = api.NewServer(logger)
		a.addr = api.Addr(cfg.Server.Port)
	}

	logger.Info("harvester services initialized")
	return a, nil
}

// newFetcher layers rate limiting and fixed-delay retries over the proxy transport.
func newFetcher(cfg config.Config, clock crawler.Clock, logger *zap.Logger) (crawler.Fetcher, error) {
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
	})
	transport, err := collyfetcher.New(collyfetcher.Config{
		APIURL:    cfg.Fetch.APIURL,
		APIKey:    cfg.Fetch.APIKey,
		Options:   cfg.FetchOptions(),
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.Timeout,
	}, limiter)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	policy := crawler.NewFixedDelayRetryPolicy(cfg.Fetch.MaxAttempts, cfg.Fetch.RetryDelay)
	return retry.New(transport, policy, clock, logger), nil
}

// newWalker assembles extractor, dispatcher and walker around an open pool.
func newWalker(
	cfg config.Config,
	fetcher crawler.Fetcher,
	pool dispatcher.Pool,
	sink crawler.Sink,
	clock crawler.Clock,
	logger *zap.Logger,
) (*listing.Walker, error) {
	sel := crawler.DefaultSelectors()
	resolver := contacts.New(fetcher, clock, sel, contacts.Config{CookieWait: cfg.Browser.CookieWait}, logger)
	ext := extractor.New(cfg.Scrape.BaseURL, sel, resolver, clock, uuidgen.New(), logger)

	disp, err := dispatcher.New(dispatcher.Config{
		MaxConcurrent: cfg.Browser.MaxConcurrent,
		JobDelay:      cfg.Scrape.JobDelay,
	}, pool, ext, sink, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("init dispatcher: %w", err)
	}

	w, err := listing.New(listing.Config{
		StartURL: cfg.Scrape.StartURL,
		BaseURL:  cfg.Scrape.BaseURL,
		MaxPages: cfg.Scrape.MaxPages,
	}, fetcher, disp, sel, logger)
	if err != nil {
		return nil, fmt.Errorf("init walker: %w", err)
	}
	return w, nil
}

// buildSinks opens the CSV sink plus the optional Postgres and Pub/Sub mirrors.
func (a *App) buildSinks(ctx context.Context, cfg config.Config) (*storage.MultiSink, error) {
	csvSink, err := local.NewCSVSink(local.Config{Path: cfg.Output.CSVPath})
	if err != nil {
		return nil, fmt.Errorf("init csv sink: %w", err)
	}
	sinks := []storage.NamedSink{csvSink}

	if cfg.DB.DSN != "" {
		pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.DB.DSN, MaxConns: cfg.DB.MaxConns})
		if err != nil {
			return nil, err
		}
		records, err := postgres.NewRecordStoreWithPool(pool, cfg.DB.Table)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init record store: %w", err)
		}
		a.addCloser("postgres", func() error {
			records.Close()
			return nil
		})
		if err := records.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		runs, err := postgres.NewRunStoreWithPool(pool)
		if err != nil {
			return nil, fmt.Errorf("init run store: %w", err)
		}
		if err := runs.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.runs = runs
		sinks = append(sinks, records)
	}

	if cfg.PubSub.TopicID != "" {
		pub, err := pubsubpublisher.Connect(ctx, pubsubpublisher.Config{
			ProjectID: cfg.PubSub.ProjectID,
			TopicID:   cfg.PubSub.TopicID,
		})
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.addCloser("pubsub", pub.Close)
		sinks = append(sinks, pub)
	}

	multi := storage.NewMultiSink(a.logger, sinks...)
	a.logger.Info("record sinks configured", zap.Strings("sinks", multi.Names()))
	return multi, nil
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// Run walks the listing index once. The run is recorded in Postgres and the
// CSV exported to GCS when those services are configured; both happen even
// when the walk aborts. The walk error is returned alongside its summary.
func (a *App) Run(ctx context.Context) (listing.Summary, error) {
	runID := uuid.New()
	logger := a.logger.With(zap.String("run_id", runID.String()))
	bg := context.WithoutCancel(ctx)

	var g errgroup.Group
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if a.server != nil {
		g.Go(func() error {
			return a.server.ListenAndServe(serverCtx, a.addr)
		})
		a.server.SetReady(true)
		a.server.SetStatus("walking")
	}

	if a.runs != nil {
		if err := a.runs.Start(ctx, runID, a.clock.Now()); err != nil {
			logger.Warn("record run start failed", zap.Error(err))
		}
	}

	logger.Info("harvest started")
	summary, walkErr := a.walker.Walk(ctx)
	status := postgres.RunSucceeded
	if walkErr != nil {
		status = postgres.RunAborted
	}
	logger.Info("harvest finished",
		zap.String("status", status),
		zap.Int("pages", summary.Pages),
		zap.Int("total_pages", summary.TotalPages),
		zap.Int("links", summary.Links),
		zap.Int("succeeded", summary.Batches.Succeeded),
		zap.Int("failed", summary.Batches.Failed),
		zap.Int("sink_errors", summary.Batches.SinkErrors),
		zap.Error(walkErr),
	)

	if a.runs != nil {
		err := a.runs.Finish(bg, runID, postgres.RunSummary{
			Status:     status,
			Pages:      summary.Pages,
			TotalPages: summary.TotalPages,
			Links:      summary.Links,
			Batches:    summary.Batches,
			FinishedAt: a.clock.Now(),
		})
		if err != nil {
			logger.Warn("record run finish failed", zap.Error(err))
		}
	}

	var exportErr error
	if a.exporter != nil {
		if a.server != nil {
			a.server.SetStatus("exporting")
		}
		uri, err := a.exporter.Export(bg, a.csvPath)
		if err != nil {
			exportErr = fmt.Errorf("export csv: %w", err)
			logger.Error("csv export failed", zap.Error(err))
		} else {
			logger.Info("csv exported", zap.String("uri", uri))
		}
	}

	if a.server != nil {
		a.server.SetStatus(status)
		stopServer()
		if err := g.Wait(); err != nil {
			logger.Warn("ops server stopped with error", zap.Error(err))
		}
	}

	return summary, errors.Join(walkErr, exportErr)
}

// Close shuts services down in reverse order of creation. It is safe to call
// more than once.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
	// Sync errors on stderr/stdout are expected and not actionable.
	_ = a.logger.Sync()
}
