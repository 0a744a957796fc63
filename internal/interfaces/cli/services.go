package cli

import (
	"context"

	"github.com/turtacn/label-traiter/internal/application/export"
	"github.com/turtacn/label-traiter/internal/application/reporting"
	"github.com/turtacn/label-traiter/internal/config"
	"github.com/turtacn/label-traiter/internal/infrastructure/database/postgres"
	"github.com/turtacn/label-traiter/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/label-traiter/internal/infrastructure/database/redis"
	"github.com/turtacn/label-traiter/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/internal/infrastructure/search/opensearch"
	"github.com/turtacn/label-traiter/internal/infrastructure/storage/minio"
	"github.com/turtacn/label-traiter/internal/intelligence/quality"
)

// wordSet is a vocabulary SET store that must be closed after use.
type wordSet interface {
	quality.SetMembers
	Close() error
}

// services opens the external systems a run may talk to.  Tests replace
// them with fakes.
type services struct {
	openWordSet    func(ctx context.Context, cfg config.RedisConfig, log logging.Logger) (wordSet, error)
	openPublisher  func(cfg config.KafkaConfig, log logging.Logger) (export.Publisher, error)
	openIndexer    func(ctx context.Context, cfg config.OpenSearchConfig, log logging.Logger) (export.Indexer, error)
	openUpserter   func(ctx context.Context, cfg config.PostgresConfig, log logging.Logger) (export.Upserter, func(), error)
	openImageStore func(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (reporting.ObjectStore, error)
}

func defaultServices() services {
	return services{
		openWordSet:    openRedis,
		openPublisher:  openKafka,
		openIndexer:    openOpenSearch,
		openUpserter:   openPostgres,
		openImageStore: openMinIO,
	}
}

func openRedis(ctx context.Context, cfg config.RedisConfig, log logging.Logger) (wordSet, error) {
	client, err := redis.NewClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func openKafka(cfg config.KafkaConfig, log logging.Logger) (export.Publisher, error) {
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		RequiredAcks: cfg.RequiredAcks,
		BatchSize:    cfg.BatchSize,
		WriteTimeout: cfg.WriteTimeout,
	}, log)
	if err != nil {
		return nil, err
	}
	return producer, nil
}

func openOpenSearch(ctx context.Context, cfg config.OpenSearchConfig, log logging.Logger) (export.Indexer, error) {
	client, err := opensearch.NewClient(ctx, opensearch.ClientConfig{
		Addresses:          cfg.Addresses,
		Username:           cfg.User,
		Password:           cfg.Password,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, log)
	if err != nil {
		return nil, err
	}
	return opensearch.NewIndexer(client, opensearch.IndexerConfig{BulkBatchSize: cfg.BulkBatchSize}, log), nil
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig, log logging.Logger) (export.Upserter, func(), error) {
	conn, err := postgres.NewConnection(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	repo, err := repositories.NewLabelRecordRepository(conn.Pool(), cfg.Table, log)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return repo, conn.Close, nil
}

func openMinIO(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (reporting.ObjectStore, error) {
	api, err := minio.NewObjectAPI(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return minio.NewObjectRepository(api, cfg.Bucket, cfg.Prefix, log), nil
}
