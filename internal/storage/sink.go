// Package storage fans job records out to the configured sinks.
package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
	"github.com/JakeFAU/stepstone-harvester/internal/logging"
	"github.com/JakeFAU/stepstone-harvester/internal/metrics"
)

// NamedSink is a crawler.Sink with a stable name for logs and metrics.
type NamedSink interface {
	crawler.Sink
	Name() string
}

// MultiSink appends every record to all of its sinks. A failing sink does not
// stop the others; all failures are returned joined.
type MultiSink struct {
	sinks  []NamedSink
	logger *zap.Logger
}

// NewMultiSink builds a MultiSink. Nil sinks are skipped.
func NewMultiSink(logger *zap.Logger, sinks ...NamedSink) *MultiSink {
	m := &MultiSink{logger: logging.OrNop(logger).Named("sink")}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Names lists the configured sinks in order.
func (m *MultiSink) Names() []string {
	names := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Append implements crawler.Sink.
func (m *MultiSink) Append(ctx context.Context, record crawler.JobRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(ctx, record); err != nil {
			metrics.ObserveSinkError(s.Name())
			m.logger.Warn("sink append failed",
				zap.String("sink", s.Name()),
				zap.String("job_id", record.ID),
				zap.Error(err),
			)
			errs = append(errs, &crawler.SinkError{Sink: s.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}
