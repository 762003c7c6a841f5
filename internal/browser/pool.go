// Package browser maintains a fixed pool of remote browser sessions.
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/logging"
)

// Defaults applied by New when a Config field is left at its zero value.
const (
	DefaultTokenParam = "token"
	DefaultNavTimeout = 60 * time.Second
	DefaultOpTimeout  = 15 * time.Second
)

// Config describes how to reach the remote browser service.
type Config struct {
	WSURL      string
	Token      string
	TokenParam string
	Sessions   int
	NavTimeout time.Duration
	OpTimeout  time.Duration
}

// Endpoint returns the websocket URL with the auth token attached.
func (c Config) Endpoint() (string, error) {
	u, err := url.Parse(c.WSURL)
	if err != nil {
		return "", fmt.Errorf("parse browser ws url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("browser ws url must use ws or wss, got %q", u.Scheme)
	}
	if c.Token != "" {
		param := c.TokenParam
		if param == "" {
			param = DefaultTokenParam
		}
		q := u.Query()
		q.Set(param, c.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c Config) withDefaults() Config {
	if c.TokenParam == "" {
		c.TokenParam = DefaultTokenParam
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = DefaultNavTimeout
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	return c
}

// Conn is an open session that can be released.
type Conn interface {
	crawler.Session
	Close() error
}

type dialFunc func(ctx context.Context, cfg Config, index int) (Conn, error)

// Pool owns exactly Size() sessions for the duration of a run.
type Pool struct {
	sessions  []Conn
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// New opens cfg.Sessions remote sessions. If any session fails to open, the
// ones already opened are closed and the error is returned.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Pool, error) {
	return newPool(ctx, cfg, logger, dialChromedp)
}

func newPool(ctx context.Context, cfg Config, logger *zap.Logger, dial dialFunc) (*Pool, error) {
	if cfg.Sessions <= 0 {
		return nil, fmt.Errorf("browser sessions must be > 0, got %d", cfg.Sessions)
	}
	cfg = cfg.withDefaults()
	if _, err := cfg.Endpoint(); err != nil {
		return nil, err
	}

	p := &Pool{
		sessions: make([]Conn, 0, cfg.Sessions),
		logger:   logging.OrNop(logger).Named("browser"),
	}
	for i := 0; i < cfg.Sessions; i++ {
		start := time.Now()
		conn, err := dial(ctx, cfg, i)
		if err != nil {
			p.logger.Error("failed to open browser session", zap.Int("session", i), zap.Error(err))
			_ = p.Close()
			return nil, fmt.Errorf("open browser session %d: %w", i, err)
		}
		p.sessions = append(p.sessions, conn)
		p.logger.Debug("browser session ready", zap.Int("session", i), zap.Duration("startup", time.Since(start)))
	}
	p.logger.Info("browser pool initialized", zap.Int("sessions", len(p.sessions)))
	return p, nil
}

// Size returns the number of open sessions.
func (p *Pool) Size() int {
	return len(p.sessions)
}

// Session returns session i modulo the pool size.
func (p *Pool) Session(i int) crawler.Session {
	n := len(p.sessions)
	idx := i % n
	if idx < 0 {
		idx += n
	}
	return p.sessions[idx]
}

// Close releases every session. Individual failures are logged and joined;
// it is safe to call more than once.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		for _, s := range p.sessions {
			if err := closeSafely(s); err != nil {
				p.logger.Warn("error closing browser session", zap.Int("session", s.Index()), zap.Error(err))
				errs = append(errs, err)
			}
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

func closeSafely(s Conn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic closing session %d: %v", s.Index(), r)
		}
	}()
	return s.Close()
}

// forwardCancel cancels when parent is done, until the returned stop func
// runs. cancel is never called once stop has returned.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	stop := context.AfterFunc(parent, cancel)
	return func() { stop() }
}
