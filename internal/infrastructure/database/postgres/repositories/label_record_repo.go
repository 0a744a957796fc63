// Package repositories holds the PostgreSQL repositories.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// Database is the part of *pgxpool.Pool the repository needs.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// LabelRecord is one exported label row.
type LabelRecord struct {
	Identifier string
	WordCount  int
	ValidWords int
	Score      float64
	Record     json.RawMessage
	RunID      string
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// LabelRecordRepository upserts label records keyed by identifier.
type LabelRecordRepository struct {
	db     Database
	table  string
	logger logging.Logger
	now    func() time.Time
}

// NewLabelRecordRepository creates a repository writing to table, which may
// be schema-qualified.
func NewLabelRecordRepository(db Database, table string, logger logging.Logger) (*LabelRecordRepository, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, errors.Newf(errors.ErrCodeValidation, "invalid table name %q", table)
	}
	return &LabelRecordRepository{
		db:     db,
		table:  table,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}, nil
}

// EnsureSchema creates the table when it is missing.
func (r *LabelRecordRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			identifier  TEXT PRIMARY KEY,
			word_count  INTEGER NOT NULL,
			valid_words INTEGER NOT NULL,
			score       DOUBLE PRECISION NOT NULL,
			record      JSONB NOT NULL,
			run_id      TEXT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`, r.table))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSinkFailed, "failed to create label record table")
	}
	return nil
}

func (r *LabelRecordRepository) upsertSQL() string {
	return fmt.Sprintf(`
		INSERT INTO %s (identifier, word_count, valid_words, score, record, run_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (identifier) DO UPDATE SET
			word_count  = EXCLUDED.word_count,
			valid_words = EXCLUDED.valid_words,
			score       = EXCLUDED.score,
			record      = EXCLUDED.record,
			run_id      = EXCLUDED.run_id,
			updated_at  = EXCLUDED.updated_at`, r.table)
}

// UpsertBatch writes records in one round trip.  Existing rows with the same
// identifier are replaced.
func (r *LabelRecordRepository) UpsertBatch(ctx context.Context, records []LabelRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := r.upsertSQL()
	now := r.now().UTC()
	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(query, rec.Identifier, rec.WordCount, rec.ValidWords, rec.Score, []byte(rec.Record), rec.RunID, now)
	}

	br := r.db.SendBatch(ctx, batch)
	var affected int64
	for _, rec := range records {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return affected, errors.Wrapf(err, errors.ErrCodeSinkFailed, "failed to upsert label record %s", rec.Identifier)
		}
		affected += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return affected, errors.Wrap(err, errors.ErrCodeSinkFailed, "failed to finish label record batch")
	}

	r.logger.Debug("label records upserted",
		logging.String("table", r.table),
		logging.Int64("rows", affected))
	return affected, nil
}
