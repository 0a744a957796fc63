// Package config defines the configuration structures for label-traiter.
// No I/O or parsing logic lives here, only plain data types and validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// InputConfig locates the label texts and the extraction engine output.
type InputConfig struct {
	TextDir     string `mapstructure:"text_dir"`
	EntitiesDir string `mapstructure:"entities_dir"`
	Pattern     string `mapstructure:"pattern"`
	Encoding    string `mapstructure:"encoding"`
	// Limit of 0 means no limit.
	Limit  int `mapstructure:"limit"`
	Offset int `mapstructure:"offset"`
}

// PipelineConfig holds the entity and quality tunables.
type PipelineConfig struct {
	LengthCutoff            int      `mapstructure:"length_cutoff"`
	ScoreCutoff             float64  `mapstructure:"score_cutoff"`
	AlwaysDelete            []string `mapstructure:"always_delete"`
	IgnoreUnknownCategories bool     `mapstructure:"ignore_unknown_categories"`
	Workers                 int      `mapstructure:"workers"`
}

// VocabularyConfig lists the vocabulary sources.  Files may be plain word
// lists or zip archives of word lists.
type VocabularyConfig struct {
	Files    []string `mapstructure:"files"`
	RedisKey string   `mapstructure:"redis_key"`
}

// OutputConfig selects the export destinations.
type OutputConfig struct {
	JSONOutput string `mapstructure:"json_output"`
	TraiterDir string `mapstructure:"traiter_dir"`
	// Sinks names additional record sinks: kafka, opensearch, postgres.
	Sinks []string `mapstructure:"sinks"`
}

// ReportConfig controls the HTML report.
type ReportConfig struct {
	HTMLFile  string `mapstructure:"html_file"`
	ImageDir  string `mapstructure:"image_dir"`
	Spotlight string `mapstructure:"spotlight"`
	// ImageSource is "dir" or "minio".
	ImageSource string `mapstructure:"image_source"`
}

// LogConfig holds logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the textfile metrics dump.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	File      string `mapstructure:"file"`
}

// MinIOConfig holds MinIO / S3-compatible object-storage parameters.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// KafkaConfig holds producer parameters for the record sink.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	RequiredAcks int           `mapstructure:"required_acks"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// OpenSearchConfig holds OpenSearch cluster connection parameters.
type OpenSearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	User               string   `mapstructure:"user"`
	Password           string   `mapstructure:"password"`
	Index              string   `mapstructure:"index"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	BulkBatchSize      int      `mapstructure:"bulk_batch_size"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
	Table    string `mapstructure:"table"`
}

// DSN renders the connection string understood by pgxpool.ParseConfig.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Input      InputConfig      `mapstructure:"input"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Vocabulary VocabularyConfig `mapstructure:"vocabulary"`
	Output     OutputConfig     `mapstructure:"output"`
	Report     ReportConfig     `mapstructure:"report"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
}

// Sink names accepted in output.sinks.
const (
	SinkKafka      = "kafka"
	SinkOpenSearch = "opensearch"
	SinkPostgres   = "postgres"
)

// Image source names accepted in report.image_source.
const (
	ImageSourceDir   = "dir"
	ImageSourceMinIO = "minio"
)

// HasSink reports whether name is listed in output.sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Output.Sinks {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate checks settings that every command depends on.  It returns the
// first error encountered.
func (c *Config) Validate() error {
	if c.Pipeline.LengthCutoff < 0 {
		return fmt.Errorf("config: pipeline.length_cutoff must be ≥ 0, got %d", c.Pipeline.LengthCutoff)
	}
	if c.Pipeline.ScoreCutoff < 0 || c.Pipeline.ScoreCutoff > 1 {
		return fmt.Errorf("config: pipeline.score_cutoff %v is out of range [0, 1]", c.Pipeline.ScoreCutoff)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("config: pipeline.workers must be ≥ 1, got %d", c.Pipeline.Workers)
	}
	if c.Input.Limit < 0 {
		return fmt.Errorf("config: input.limit must be ≥ 0, got %d", c.Input.Limit)
	}
	if c.Input.Offset < 0 {
		return fmt.Errorf("config: input.offset must be ≥ 0, got %d", c.Input.Offset)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	switch c.Report.ImageSource {
	case ImageSourceDir, ImageSourceMinIO:
	default:
		return fmt.Errorf("config: report.image_source %q is invalid; expected dir|minio", c.Report.ImageSource)
	}

	for _, s := range c.Output.Sinks {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case SinkKafka, SinkOpenSearch, SinkPostgres:
		default:
			return fmt.Errorf("config: output.sinks entry %q is invalid; expected kafka|opensearch|postgres", s)
		}
	}
	return nil
}

// ValidateRun checks the settings needed by a batch run on top of Validate.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Input.TextDir == "" {
		return fmt.Errorf("config: input.text_dir is required")
	}
	if c.HasSink(SinkKafka) {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("config: kafka.topic is required")
		}
	}
	if c.HasSink(SinkOpenSearch) {
		if len(c.OpenSearch.Addresses) == 0 {
			return fmt.Errorf("config: opensearch.addresses must contain at least one address")
		}
		if c.OpenSearch.Index == "" {
			return fmt.Errorf("config: opensearch.index is required")
		}
	}
	if c.HasSink(SinkPostgres) {
		if c.Postgres.Host == "" {
			return fmt.Errorf("config: postgres.host is required")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			return fmt.Errorf("config: postgres.port %d is out of range [1, 65535]", c.Postgres.Port)
		}
		if c.Postgres.Table == "" {
			return fmt.Errorf("config: postgres.table is required")
		}
	}
	if c.Vocabulary.RedisKey != "" && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when vocabulary.redis_key is set")
	}
	if c.Report.HTMLFile != "" && c.Report.ImageSource == ImageSourceMinIO {
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			return fmt.Errorf("config: minio.endpoint and minio.bucket are required for the minio image source")
		}
	}
	return nil
}
