package export

import (
	"context"
	"strings"

	"github.com/turtacn/label-traiter/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/label-traiter/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/label-traiter/internal/infrastructure/search/opensearch"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// Sink receives the rows of one run.
type Sink interface {
	Name() string
	Write(ctx context.Context, rows []Row) error
	Close() error
}

// Sink names for the service destinations.
const (
	SinkKafka      = "kafka"
	SinkOpenSearch = "opensearch"
	SinkPostgres   = "postgres"
)

// Publisher is the part of kafka.Producer the Kafka sink uses.
type Publisher interface {
	PublishBatch(ctx context.Context, msgs []kafka.Message) (*kafka.BatchResult, error)
	Close() error
}

// KafkaSink publishes one message per row, keyed by identifier.
type KafkaSink struct {
	producer Publisher
	runID    string
}

// NewKafkaSink creates a Kafka sink.  runID is sent as a message header.
func NewKafkaSink(producer Publisher, runID string) *KafkaSink {
	return &KafkaSink{producer: producer, runID: runID}
}

func (s *KafkaSink) Name() string { return SinkKafka }

func (s *KafkaSink) Write(ctx context.Context, rows []Row) error {
	msgs := make([]kafka.Message, 0, len(rows))
	for _, row := range rows {
		value, err := row.MarshalJSON()
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeSerialization, "encode record %s", row.Identifier)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(row.Identifier),
			Value:   value,
			Headers: map[string]string{"run_id": s.runID},
		})
	}

	res, err := s.producer.PublishBatch(ctx, msgs)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSinkFailed, "publish records")
	}
	if res.Failed > 0 {
		keys := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			keys = append(keys, e.Key)
		}
		return errors.Newf(errors.ErrCodeSinkFailed, "%d of %d records rejected by kafka: %s",
			res.Failed, len(msgs), strings.Join(keys, ", "))
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.producer.Close() }

// Indexer is the part of opensearch.Indexer the OpenSearch sink uses.
type Indexer interface {
	EnsureIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error
	BulkIndex(ctx context.Context, indexName string, docs []opensearch.Document) (*opensearch.BulkResult, error)
}

// OpenSearchSink indexes rows with the identifier as document id, so a rerun
// overwrites the earlier documents.
type OpenSearchSink struct {
	indexer Indexer
	index   string
	ensured bool
}

// NewOpenSearchSink creates an OpenSearch sink writing to index.
func NewOpenSearchSink(indexer Indexer, index string) *OpenSearchSink {
	return &OpenSearchSink{indexer: indexer, index: index}
}

func (s *OpenSearchSink) Name() string { return SinkOpenSearch }

func (s *OpenSearchSink) Write(ctx context.Context, rows []Row) error {
	if !s.ensured {
		if err := s.indexer.EnsureIndex(ctx, s.index, opensearch.LabelRecordMapping()); err != nil {
			return err
		}
		s.ensured = true
	}

	docs := make([]opensearch.Document, len(rows))
	for i, row := range rows {
		docs[i] = opensearch.Document{ID: row.Identifier, Body: row}
	}
	res, err := s.indexer.BulkIndex(ctx, s.index, docs)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		first := res.Errors[0]
		return errors.Newf(errors.ErrCodeSinkFailed, "%d of %d records rejected by opensearch; first %s: %s",
			res.Failed, len(docs), first.DocID, first.Reason)
	}
	return nil
}

func (s *OpenSearchSink) Close() error { return nil }

// Upserter is the part of repositories.LabelRecordRepository the Postgres
// sink uses.
type Upserter interface {
	EnsureSchema(ctx context.Context) error
	UpsertBatch(ctx context.Context, records []repositories.LabelRecord) (int64, error)
}

// PostgresSink upserts rows keyed by identifier.
type PostgresSink struct {
	repo    Upserter
	runID   string
	closeFn func()
	ensured bool
}

// NewPostgresSink creates a Postgres sink.  closeFn, if not nil, is called
// on Close to release the connection.
func NewPostgresSink(repo Upserter, runID string, closeFn func()) *PostgresSink {
	return &PostgresSink{repo: repo, runID: runID, closeFn: closeFn}
}

func (s *PostgresSink) Name() string { return SinkPostgres }

func (s *PostgresSink) Write(ctx context.Context, rows []Row) error {
	if !s.ensured {
		if err := s.repo.EnsureSchema(ctx); err != nil {
			return err
		}
		s.ensured = true
	}

	records := make([]repositories.LabelRecord, len(rows))
	for i, row := range rows {
		raw, err := row.RecordJSON()
		if err != nil {
			return errors.Wrapf(err, errors.ErrCodeSerialization, "encode record %s", row.Identifier)
		}
		records[i] = repositories.LabelRecord{
			Identifier: row.Identifier,
			WordCount:  row.WordCount,
			ValidWords: row.ValidWords,
			Score:      row.Score,
			Record:     raw,
			RunID:      s.runID,
		}
	}
	_, err := s.repo.UpsertBatch(ctx, records)
	return err
}

func (s *PostgresSink) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
