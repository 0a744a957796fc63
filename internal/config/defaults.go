package config

import (
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultPattern  = "*.txt"
	DefaultEncoding = "utf-8"

	DefaultLengthCutoff = 10
	DefaultScoreCutoff  = 0.7

	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"

	DefaultMetricsNamespace = "labeltraiter"

	DefaultImageSource = ImageSourceDir

	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaTopic        = "label-records"
	DefaultKafkaBatchSize    = 100
	DefaultKafkaRequiredAcks = -1
	DefaultKafkaWriteTimeout = 10 * time.Second

	DefaultOpenSearchAddress  = "http://localhost:9200"
	DefaultOpenSearchIndex    = "label-records"
	DefaultOpenSearchBulkSize = 500

	DefaultPostgresHost     = "localhost"
	DefaultPostgresPort     = 5432
	DefaultPostgresDBName   = "labeltraiter"
	DefaultPostgresSSLMode  = "disable"
	DefaultPostgresMaxConns = 4
	DefaultPostgresTable    = "label_records"

	DefaultMinIOEndpoint = "localhost:9000"

	DefaultRedisAddr        = "localhost:6379"
	DefaultRedisDialTimeout = 5 * time.Second
)

// DefaultWorkers is the default fan-out for per-label processing.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// setViperDefaults registers every key with viper.  Besides supplying the
// lowest-precedence values this makes each key visible to AutomaticEnv during
// Unmarshal, which only consults the environment for keys it knows about.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("input.text_dir", "")
	v.SetDefault("input.entities_dir", "")
	v.SetDefault("input.pattern", DefaultPattern)
	v.SetDefault("input.encoding", DefaultEncoding)
	v.SetDefault("input.limit", 0)
	v.SetDefault("input.offset", 0)

	v.SetDefault("pipeline.length_cutoff", DefaultLengthCutoff)
	v.SetDefault("pipeline.score_cutoff", DefaultScoreCutoff)
	v.SetDefault("pipeline.always_delete", []string{})
	v.SetDefault("pipeline.ignore_unknown_categories", false)
	v.SetDefault("pipeline.workers", DefaultWorkers())

	v.SetDefault("vocabulary.files", []string{})
	v.SetDefault("vocabulary.redis_key", "")

	v.SetDefault("output.json_output", "")
	v.SetDefault("output.traiter_dir", "")
	v.SetDefault("output.sinks", []string{})

	v.SetDefault("report.html_file", "")
	v.SetDefault("report.image_dir", "")
	v.SetDefault("report.spotlight", "")
	v.SetDefault("report.image_source", DefaultImageSource)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)

	v.SetDefault("metrics.namespace", DefaultMetricsNamespace)
	v.SetDefault("metrics.file", "")

	v.SetDefault("minio.endpoint", DefaultMinIOEndpoint)
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "")
	v.SetDefault("minio.prefix", "")
	v.SetDefault("minio.region", "")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("kafka.brokers", []string{DefaultKafkaBroker})
	v.SetDefault("kafka.topic", DefaultKafkaTopic)
	v.SetDefault("kafka.batch_size", DefaultKafkaBatchSize)
	v.SetDefault("kafka.required_acks", DefaultKafkaRequiredAcks)
	v.SetDefault("kafka.write_timeout", DefaultKafkaWriteTimeout)

	v.SetDefault("opensearch.addresses", []string{DefaultOpenSearchAddress})
	v.SetDefault("opensearch.user", "")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.index", DefaultOpenSearchIndex)
	v.SetDefault("opensearch.insecure_skip_verify", false)
	v.SetDefault("opensearch.bulk_batch_size", DefaultOpenSearchBulkSize)

	v.SetDefault("postgres.host", DefaultPostgresHost)
	v.SetDefault("postgres.port", DefaultPostgresPort)
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.db_name", DefaultPostgresDBName)
	v.SetDefault("postgres.ssl_mode", DefaultPostgresSSLMode)
	v.SetDefault("postgres.max_conns", DefaultPostgresMaxConns)
	v.SetDefault("postgres.table", DefaultPostgresTable)

	v.SetDefault("redis.addr", DefaultRedisAddr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dial_timeout", DefaultRedisDialTimeout)
}

// ApplyDefaults fills zero-value fields for which zero is never a meaningful
// setting.  Cutoffs, limit and offset are left alone because zero is a valid
// choice for each of them.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Input ─────────────────────────────────────────────────────────────────
	if cfg.Input.Pattern == "" {
		cfg.Input.Pattern = DefaultPattern
	}
	if cfg.Input.Encoding == "" {
		cfg.Input.Encoding = DefaultEncoding
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = DefaultWorkers()
	}

	// ── Report / Log / Metrics ────────────────────────────────────────────────
	if cfg.Report.ImageSource == "" {
		cfg.Report.ImageSource = DefaultImageSource
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if cfg.Kafka.BatchSize <= 0 {
		cfg.Kafka.BatchSize = DefaultKafkaBatchSize
	}
	if cfg.Kafka.WriteTimeout <= 0 {
		cfg.Kafka.WriteTimeout = DefaultKafkaWriteTimeout
	}

	// ── OpenSearch ────────────────────────────────────────────────────────────
	if cfg.OpenSearch.BulkBatchSize <= 0 {
		cfg.OpenSearch.BulkBatchSize = DefaultOpenSearchBulkSize
	}

	// ── Postgres ──────────────────────────────────────────────────────────────
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = DefaultPostgresSSLMode
	}
	if cfg.Postgres.MaxConns <= 0 {
		cfg.Postgres.MaxConns = DefaultPostgresMaxConns
	}
	if cfg.Postgres.Table == "" {
		cfg.Postgres.Table = DefaultPostgresTable
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.DialTimeout <= 0 {
		cfg.Redis.DialTimeout = DefaultRedisDialTimeout
	}
}

// NewDefaultConfig returns a Config populated with every default.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Input: InputConfig{
			Pattern:  DefaultPattern,
			Encoding: DefaultEncoding,
		},
		Pipeline: PipelineConfig{
			LengthCutoff: DefaultLengthCutoff,
			ScoreCutoff:  DefaultScoreCutoff,
			Workers:      DefaultWorkers(),
		},
		Report:  ReportConfig{ImageSource: DefaultImageSource},
		Log:     LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Metrics: MetricsConfig{Namespace: DefaultMetricsNamespace},
		MinIO:   MinIOConfig{Endpoint: DefaultMinIOEndpoint},
		Kafka: KafkaConfig{
			Brokers:      []string{DefaultKafkaBroker},
			Topic:        DefaultKafkaTopic,
			RequiredAcks: DefaultKafkaRequiredAcks,
		},
		OpenSearch: OpenSearchConfig{
			Addresses: []string{DefaultOpenSearchAddress},
			Index:     DefaultOpenSearchIndex,
		},
		Postgres: PostgresConfig{
			Host:   DefaultPostgresHost,
			Port:   DefaultPostgresPort,
			DBName: DefaultPostgresDBName,
		},
		Redis: RedisConfig{Addr: DefaultRedisAddr},
	}
	ApplyDefaults(cfg)
	return cfg
}
