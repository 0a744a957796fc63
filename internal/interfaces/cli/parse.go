package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/label-traiter/internal/application/export"
	"github.com/turtacn/label-traiter/internal/application/labels"
	"github.com/turtacn/label-traiter/internal/application/reporting"
	"github.com/turtacn/label-traiter/internal/config"
	"github.com/turtacn/label-traiter/internal/domain/label"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/label-traiter/internal/intelligence/entity_stream"
	"github.com/turtacn/label-traiter/internal/intelligence/quality"
	"github.com/turtacn/label-traiter/pkg/errors"
)

func newParseCommand(svc services) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Process a directory of label texts and export the kept labels",
		Long: "parse reads every label text in --text-dir together with its entity file,\n" +
			"resolves the entities, filters labels by length and vocabulary score, and\n" +
			"writes the configured outputs.  Any unreadable input aborts the run.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			return runParse(cmd.Context(), cliCtx, svc, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("text-dir", "", "directory of label text files (required unless set in config)")
	bindFlag(f, "text-dir", "input.text_dir")
	f.String("entities-dir", "", "directory of <identifier>.json entity files (default: --text-dir)")
	bindFlag(f, "entities-dir", "input.entities_dir")
	f.String("pattern", config.DefaultPattern, "glob selecting label files in --text-dir")
	bindFlag(f, "pattern", "input.pattern")
	f.String("encoding", config.DefaultEncoding, "encoding of the label texts")
	bindFlag(f, "encoding", "input.encoding")
	f.Int("limit", 0, "process at most this many labels (0 means all)")
	bindFlag(f, "limit", "input.limit")
	f.Int("offset", 0, "skip this many labels before --limit applies")
	bindFlag(f, "offset", "input.offset")

	f.Int("length-cutoff", config.DefaultLengthCutoff, "reject labels with fewer words")
	bindFlag(f, "length-cutoff", "pipeline.length_cutoff")
	f.Float64("score-cutoff", config.DefaultScoreCutoff, "reject labels whose vocabulary score is lower")
	bindFlag(f, "score-cutoff", "pipeline.score_cutoff")
	f.StringSlice("always-delete", nil, "entity category removed from every label (repeatable)")
	bindFlag(f, "always-delete", "pipeline.always_delete")
	f.Bool("ignore-unknown", false, "drop entities with an unknown category instead of failing")
	bindFlag(f, "ignore-unknown", "pipeline.ignore_unknown_categories")
	f.Int("workers", 0, "labels processed concurrently (default: number of CPUs)")
	bindFlag(f, "workers", "pipeline.workers")

	f.StringSlice("vocabulary", nil, "word list or zip archive of word lists (repeatable)")
	bindFlag(f, "vocabulary", "vocabulary.files")
	f.String("vocabulary-redis-key", "", "Redis SET holding additional vocabulary words")
	bindFlag(f, "vocabulary-redis-key", "vocabulary.redis_key")

	f.String("json-output", "", "write all kept records to this JSON file")
	bindFlag(f, "json-output", "output.json_output")
	f.String("traiter-dir", "", "write one <identifier>.json record per kept label here")
	bindFlag(f, "traiter-dir", "output.traiter_dir")
	f.StringSlice("sink", nil, "also export records to kafka, opensearch or postgres (repeatable)")
	bindFlag(f, "sink", "output.sinks")

	f.String("html-file", "", "write the HTML review report to this file")
	bindFlag(f, "html-file", "report.html_file")
	f.String("image-dir", "", "directory of label images embedded in the report")
	bindFlag(f, "image-dir", "report.image_dir")
	f.String("image-source", config.DefaultImageSource, "where report images come from: dir or minio")
	bindFlag(f, "image-source", "report.image_source")
	f.String("spotlight", "", "entity category given its own colour in the report")
	bindFlag(f, "spotlight", "report.spotlight")

	f.String("metrics-file", "", "write run metrics in node-exporter textfile format")
	bindFlag(f, "metrics-file", "metrics.file")
	return cmd
}

// runParse performs one batch run.
func runParse(ctx context.Context, cliCtx *CLIContext, svc services, out io.Writer) (err error) {
	cfg := cliCtx.Config
	if err := cfg.ValidateRun(); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "invalid run configuration")
	}

	runID := uuid.NewString()
	logger := cliCtx.Logger.With(logging.RunID(runID))

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: cfg.Metrics.Namespace}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewPipelineMetrics(collector)
	defer func() {
		metrics.RecordRunFinished(time.Now(), err == nil)
		if cfg.Metrics.File == "" {
			return
		}
		if werr := collector.WriteTextfile(cfg.Metrics.File); werr != nil {
			logger.Warn("metrics textfile not written", logging.Path(cfg.Metrics.File), logging.Err(werr))
		}
	}()

	alwaysDelete, err := label.ParseCategories(cfg.Pipeline.AlwaysDelete)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "pipeline.always_delete")
	}
	var spotlight label.Category
	if cfg.Report.Spotlight != "" {
		if spotlight, err = label.ParseCategory(cfg.Report.Spotlight); err != nil {
			return errors.Wrap(err, errors.ErrCodeValidation, "report.spotlight")
		}
	}

	vocab, err := buildVocabulary(ctx, cfg, svc, logger)
	if err != nil {
		return err
	}
	metrics.RecordVocabulary(vocab.Len())
	if vocab.Len() == 0 {
		logger.Warn("vocabulary is empty; every non-empty label will score 0")
	}

	paths, err := labels.Discover(cfg.Input.TextDir, cfg.Input.Pattern, cfg.Input.Limit, cfg.Input.Offset)
	if err != nil {
		return err
	}
	logger.Info("run started", logging.Path(cfg.Input.TextDir), logging.Int("labels", len(paths)))

	exporter, err := buildExporter(ctx, cfg, svc, runID, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := exporter.Close(); cerr != nil {
			logger.Warn("closing sinks failed", logging.Err(cerr))
		}
	}()

	counter := labels.NewUnknownCounter(metrics, logger)
	entitiesDir := cfg.Input.EntitiesDir
	if entitiesDir == "" {
		entitiesDir = cfg.Input.TextDir
	}
	source := entity_stream.NewDirSource(entitiesDir, entity_stream.Options{
		IgnoreUnknown: cfg.Pipeline.IgnoreUnknownCategories,
		OnUnknown:     counter.Observe,
	}, logger)

	pipeline := labels.NewPipeline(labels.Config{
		Encoding:     cfg.Input.Encoding,
		LengthCutoff: cfg.Pipeline.LengthCutoff,
		ScoreCutoff:  cfg.Pipeline.ScoreCutoff,
		AlwaysDelete: alwaysDelete,
		Workers:      cfg.Pipeline.Workers,
	}, source, quality.NewScorer(vocab),
		labels.WithLogger(logger),
		labels.WithMetrics(metrics),
		labels.WithUnknownCounter(counter))

	res, err := pipeline.Run(ctx, paths)
	if err != nil {
		return err
	}

	if err := exporter.Export(ctx, export.KeptRows(res.Labels)); err != nil {
		return err
	}

	if cfg.Report.HTMLFile != "" {
		images, err := buildImageSource(ctx, cfg, svc, logger)
		if err != nil {
			return err
		}
		reporter := reporting.NewReporter(reporting.Options{
			LengthCutoff: cfg.Pipeline.LengthCutoff,
			ScoreCutoff:  cfg.Pipeline.ScoreCutoff,
			Spotlight:    spotlight,
			Images:       images,
		}, logger)
		if err := reporter.WriteFile(ctx, cfg.Report.HTMLFile, res.Labels, res.Summary); err != nil {
			return err
		}
	}

	printSummary(out, res.Summary, cfg)
	return nil
}

func buildVocabulary(ctx context.Context, cfg *config.Config, svc services, logger logging.Logger) (*quality.Vocabulary, error) {
	builder := quality.NewVocabularyBuilder(logger)
	for _, path := range cfg.Vocabulary.Files {
		builder.Add(quality.SourceForPath(path))
	}
	if cfg.Vocabulary.RedisKey != "" {
		set, err := svc.openWordSet(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeVocabularySource, "open vocabulary store")
		}
		defer set.Close()
		builder.Add(quality.RedisSetSource{Client: set, Key: cfg.Vocabulary.RedisKey})
	}
	return builder.Build(ctx)
}

// buildExporter opens every configured destination.  Sinks opened before a
// failure are closed again.
func buildExporter(ctx context.Context, cfg *config.Config, svc services, runID string,
	metrics *prometheus.PipelineMetrics, logger logging.Logger) (*export.Exporter, error) {
	var sinks []export.Sink
	fail := func(err error, name string) (*export.Exporter, error) {
		for _, s := range sinks {
			_ = s.Close()
		}
		return nil, errors.Wrapf(err, errors.ErrCodeExportFailed, "open %s sink", name)
	}

	if cfg.Output.JSONOutput != "" {
		sinks = append(sinks, export.CombinedFile{Path: cfg.Output.JSONOutput})
	}
	if cfg.Output.TraiterDir != "" {
		sinks = append(sinks, export.PerLabelDir{Dir: cfg.Output.TraiterDir})
	}
	if cfg.HasSink(config.SinkKafka) {
		producer, err := svc.openPublisher(cfg.Kafka, logger)
		if err != nil {
			return fail(err, config.SinkKafka)
		}
		sinks = append(sinks, export.NewKafkaSink(producer, runID))
	}
	if cfg.HasSink(config.SinkOpenSearch) {
		indexer, err := svc.openIndexer(ctx, cfg.OpenSearch, logger)
		if err != nil {
			return fail(err, config.SinkOpenSearch)
		}
		sinks = append(sinks, export.NewOpenSearchSink(indexer, cfg.OpenSearch.Index))
	}
	if cfg.HasSink(config.SinkPostgres) {
		repo, closeFn, err := svc.openUpserter(ctx, cfg.Postgres, logger)
		if err != nil {
			return fail(err, config.SinkPostgres)
		}
		sinks = append(sinks, export.NewPostgresSink(repo, runID, closeFn))
	}
	return export.NewExporter(metrics, logger, sinks...), nil
}

func buildImageSource(ctx context.Context, cfg *config.Config, svc services, logger logging.Logger) (reporting.ImageSource, error) {
	switch cfg.Report.ImageSource {
	case config.ImageSourceMinIO:
		store, err := svc.openImageStore(ctx, cfg.MinIO, logger)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeReportFailed, "open image bucket")
		}
		return reporting.BucketImages{Store: store}, nil
	default:
		if cfg.Report.ImageDir == "" {
			return nil, nil
		}
		return reporting.DirImages{Dir: cfg.Report.ImageDir}, nil
	}
}

func printSummary(out io.Writer, s quality.Summary, cfg *config.Config) {
	lines := reporting.SummaryLines(s, cfg.Pipeline.LengthCutoff, cfg.Pipeline.ScoreCutoff)
	rows := make([][]string, 0, len(lines)+1)
	for _, l := range lines {
		rows = append(rows, []string{l.Name, l.Value})
	}
	if s.UnknownEntities > 0 {
		rows = append(rows, []string{"Unknown entities dropped", fmt.Sprint(s.UnknownEntities)})
	}
	fmt.Fprint(out, FormatTable([]string{"Name", "Value"}, rows))
}
