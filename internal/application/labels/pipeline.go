package labels

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/label-traiter/internal/domain/label"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/label-traiter/internal/intelligence/entity_stream"
	"github.com/turtacn/label-traiter/internal/intelligence/quality"
	"github.com/turtacn/label-traiter/internal/intelligence/resolution"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// Config holds the per-run pipeline settings.
type Config struct {
	Encoding     string
	LengthCutoff int
	ScoreCutoff  float64
	AlwaysDelete []label.Category
	Workers      int
}

// Result is the outcome of a run.  Labels holds every processed label,
// kept or not, ordered by identifier.
type Result struct {
	Labels  []*label.Label
	Summary quality.Summary
}

// Kept returns the labels that passed the filter, in identifier order.
func (r *Result) Kept() []*label.Label {
	out := make([]*label.Label, 0, r.Summary.Kept)
	for _, lb := range r.Labels {
		if lb.Outcome.Kept() {
			out = append(out, lb)
		}
	}
	return out
}

// UnknownCounter counts entities dropped because their category is unknown.
// Its Observe method is meant for entity_stream.Options.OnUnknown and is safe
// for concurrent use.
type UnknownCounter struct {
	n       atomic.Int64
	metrics *prometheus.PipelineMetrics
	logger  logging.Logger
}

// NewUnknownCounter creates a counter.  metrics may be nil.
func NewUnknownCounter(metrics *prometheus.PipelineMetrics, logger logging.Logger) *UnknownCounter {
	return &UnknownCounter{metrics: metrics, logger: logging.OrNop(logger)}
}

// Observe records one dropped entity.
func (c *UnknownCounter) Observe(category string) {
	c.n.Add(1)
	c.metrics.RecordUnknownEntity(category)
	c.logger.Debug("unknown entity category ignored", logging.String("category", category))
}

// Count is the number of entities observed so far.
func (c *UnknownCounter) Count() int {
	if c == nil {
		return 0
	}
	return int(c.n.Load())
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l logging.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.OrNop(l) }
}

// WithMetrics sets the metrics the pipeline records into.
func WithMetrics(m *prometheus.PipelineMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithUnknownCounter makes the run summary report the counter's growth.
func WithUnknownCounter(c *UnknownCounter) Option {
	return func(p *Pipeline) { p.unknown = c }
}

// Pipeline processes label files.  It is safe to Run more than once.
type Pipeline struct {
	cfg     Config
	source  entity_stream.Source
	chain   *resolution.Chain
	scorer  *quality.Scorer
	unknown *UnknownCounter
	metrics *prometheus.PipelineMetrics
	logger  logging.Logger
}

// NewPipeline creates a pipeline reading entities from source and scoring
// text with scorer.
func NewPipeline(cfg Config, source entity_stream.Source, scorer *quality.Scorer, opts ...Option) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	p := &Pipeline{
		cfg:    cfg,
		source: source,
		scorer: scorer,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.chain = resolution.DefaultChain(cfg.AlwaysDelete, func(stage string, dropped int) {
		p.metrics.RecordDropped(stage, dropped)
	})
	return p
}

// Process reads, resolves, scores and filters one label.
func (p *Pipeline) Process(ctx context.Context, path string) (*label.Label, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	lb, err := ReadLabel(path, p.cfg.Encoding)
	if err != nil {
		return nil, err
	}

	entities, err := p.source.Entities(ctx, lb.Identifier, lb.Text)
	if err != nil {
		return nil, err
	}
	lb.Entities = p.chain.Apply(entities)

	score := p.scorer.Score(lb.Text)
	lb.WordCount = score.WordCount
	lb.ValidWords = score.ValidWords
	lb.Score = score.Value
	lb.Outcome = quality.Decide(score.WordCount, score.Value, p.cfg.LengthCutoff, p.cfg.ScoreCutoff)

	p.metrics.RecordLabel(lb.Outcome.String(), time.Since(start))
	if !lb.Outcome.Kept() {
		p.logger.Debug("label rejected",
			logging.Identifier(lb.Identifier),
			logging.String("outcome", lb.Outcome.String()),
			logging.Int("word_count", lb.WordCount),
			logging.Float64("score", lb.Score))
	}
	return lb, nil
}

// Run processes paths with up to cfg.Workers labels in flight.  The first
// failure cancels the remaining work and is returned.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Result, error) {
	unknownBefore := p.unknown.Count()

	results := make([]*label.Label, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			lb, err := p.Process(gctx, path)
			if err != nil {
				p.metrics.RecordLabel(prometheus.OutcomeFailed, 0)
				return errors.Wrap(err, errors.CodeUnknown, "process label")
			}
			results[i] = lb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Error("label run aborted", logging.Err(err))
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Identifier < results[j].Identifier
	})

	res := &Result{Labels: results}
	for _, lb := range results {
		res.Summary.Add(lb.Outcome)
	}
	res.Summary.UnknownEntities = p.unknown.Count() - unknownBefore

	p.logger.Info("labels processed",
		logging.Int("total", res.Summary.Total),
		logging.Int("kept", res.Summary.Kept),
		logging.Int("too_short", res.Summary.TooShort),
		logging.Int("low_score", res.Summary.LowScore))
	return res, nil
}
