package export

import (
	"context"
	"time"

	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// Exporter writes one run's rows to every configured sink in order.
type Exporter struct {
	sinks   []Sink
	metrics *prometheus.PipelineMetrics
	logger  logging.Logger
}

// NewExporter creates an exporter.  metrics may be nil.
func NewExporter(metrics *prometheus.PipelineMetrics, logger logging.Logger, sinks ...Sink) *Exporter {
	return &Exporter{sinks: sinks, metrics: metrics, logger: logging.OrNop(logger)}
}

// Sinks returns the configured sink names.
func (e *Exporter) Sinks() []string {
	names := make([]string, len(e.sinks))
	for i, s := range e.sinks {
		names[i] = s.Name()
	}
	return names
}

// Export writes rows to each sink and stops at the first failure.
func (e *Exporter) Export(ctx context.Context, rows []Row) error {
	for _, sink := range e.sinks {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := sink.Write(ctx, rows); err != nil {
			e.logger.Error("export failed", logging.String("sink", sink.Name()), logging.Err(err))
			return errors.Wrapf(err, errors.ErrCodeExportFailed, "export to %s", sink.Name())
		}
		elapsed := time.Since(start)
		e.metrics.RecordExport(sink.Name(), len(rows), elapsed)
		e.logger.Info("records exported",
			logging.String("sink", sink.Name()),
			logging.Int("rows", len(rows)),
			logging.Duration("elapsed", elapsed))
	}
	return nil
}

// Close closes every sink and returns the first error.
func (e *Exporter) Close() error {
	var first error
	for _, sink := range e.sinks {
		if err := sink.Close(); err != nil {
			e.logger.Warn("sink close failed", logging.String("sink", sink.Name()), logging.Err(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
