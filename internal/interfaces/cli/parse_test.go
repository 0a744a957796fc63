package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/label-traiter/internal/application/export"
	"github.com/turtacn/label-traiter/internal/application/reporting"
	"github.com/turtacn/label-traiter/internal/config"
	"github.com/turtacn/label-traiter/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/label-traiter/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/internal/infrastructure/search/opensearch"
	"github.com/turtacn/label-traiter/pkg/errors"
)

const goodText = "Quercus alba on the edge of a bog near the old mill road"

type fixture struct {
	textDir string
	vocab   string
	out     string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		textDir: filepath.Join(root, "texts"),
		vocab:   filepath.Join(root, "words.txt"),
		out:     filepath.Join(root, "out"),
	}
	require.NoError(t, os.MkdirAll(f.textDir, 0o755))
	require.NoError(t, os.MkdirAll(f.out, 0o755))
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(f.textDir, name), []byte(body), 0o644))
	}
	write("a.txt", goodText)
	write("a.json", `[{"category":"habitat","start":30,"end":33,"payload":{"habitat":"bog"}}]`)
	write("b.txt", "Quercus alba")
	write("c.txt", "zz qq xx vv ww kk jj hh gg ff dd ss")
	require.NoError(t, os.WriteFile(f.vocab, []byte(strings.Join(strings.Fields(goodText), "\n")), 0o644))
	return f
}

type fakePublisher struct {
	msgs   []kafka.Message
	closed bool
}

func (p *fakePublisher) PublishBatch(_ context.Context, msgs []kafka.Message) (*kafka.BatchResult, error) {
	p.msgs = append(p.msgs, msgs...)
	return &kafka.BatchResult{Succeeded: len(msgs)}, nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type fakeIndexer struct {
	index string
	docs  []opensearch.Document
}

func (i *fakeIndexer) EnsureIndex(_ context.Context, index string, _ map[string]interface{}) error {
	i.index = index
	return nil
}

func (i *fakeIndexer) BulkIndex(_ context.Context, _ string, docs []opensearch.Document) (*opensearch.BulkResult, error) {
	i.docs = append(i.docs, docs...)
	return &opensearch.BulkResult{Succeeded: len(docs)}, nil
}

type fakeUpserter struct {
	records []repositories.LabelRecord
}

func (u *fakeUpserter) EnsureSchema(context.Context) error { return nil }

func (u *fakeUpserter) UpsertBatch(_ context.Context, records []repositories.LabelRecord) (int64, error) {
	u.records = append(u.records, records...)
	return int64(len(records)), nil
}

type fakeWordSet struct {
	words  []string
	closed bool
}

func (s *fakeWordSet) SMembers(context.Context, string) ([]string, error) { return s.words, nil }

func (s *fakeWordSet) Close() error {
	s.closed = true
	return nil
}

type fakeObjectStore struct{}

func (fakeObjectStore) FindByStem(_ context.Context, stem string) (string, bool, error) {
	return "scans/" + stem + ".png", stem == "a", nil
}

func (fakeObjectStore) Get(context.Context, string) ([]byte, error) {
	return []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), nil
}

func TestParse_FileOutputs(t *testing.T) {
	f := newFixture(t)
	combined := filepath.Join(f.out, "all.json")
	traiter := filepath.Join(f.out, "traiter")
	html := filepath.Join(f.out, "report.html")
	metrics := filepath.Join(f.out, "run.prom")

	cmd, out := testRoot(services{}, "parse",
		"--text-dir", f.textDir,
		"--vocabulary", f.vocab,
		"--json-output", combined,
		"--traiter-dir", traiter,
		"--html-file", html,
		"--metrics-file", metrics,
		"--length-cutoff", "5",
		"--score-cutoff", "0.5",
		"--workers", "2",
		"--spotlight", "habitat")
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Regexp(t, `Total labels\s+3\n`, out.String())
	assert.Regexp(t, `Kept\s+1\n`, out.String())
	assert.Regexp(t, `Too short\s+1\n`, out.String())
	assert.Regexp(t, `Score too low\s+1\n`, out.String())

	data, err := os.ReadFile(combined)
	require.NoError(t, err)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["identifier"])
	assert.Equal(t, "bog", rows[0]["habitat"])
	assert.EqualValues(t, 13, rows[0]["word_count"])

	one, err := os.ReadFile(filepath.Join(traiter, "a.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"habitat":"bog"}`, string(one))
	assert.NoFileExists(t, filepath.Join(traiter, "b.json"))

	page, err := os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(page), `<mark class="cat-habitat spotlight" title="habitat">bog</mark>`)

	prom, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `labeltraiter_labels_processed_total{outcome="kept"} 1`)
	assert.Contains(t, string(prom), `labeltraiter_export_rows_total{sink="json_file"} 1`)
	assert.Contains(t, string(prom), "labeltraiter_last_run_success 1")
}

func TestParse_ServiceSinks(t *testing.T) {
	f := newFixture(t)
	pub := &fakePublisher{}
	idx := &fakeIndexer{}
	ups := &fakeUpserter{}
	pgClosed := false
	svc := services{
		openPublisher: func(config.KafkaConfig, logging.Logger) (export.Publisher, error) { return pub, nil },
		openIndexer: func(context.Context, config.OpenSearchConfig, logging.Logger) (export.Indexer, error) {
			return idx, nil
		},
		openUpserter: func(context.Context, config.PostgresConfig, logging.Logger) (export.Upserter, func(), error) {
			return ups, func() { pgClosed = true }, nil
		},
	}

	cmd, _ := testRoot(svc, "parse", "--text-dir", f.textDir, "--vocabulary", f.vocab,
		"--length-cutoff", "5", "--score-cutoff", "0.5",
		"--sink", "kafka", "--sink", "opensearch", "--sink", "postgres")
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "a", string(pub.msgs[0].Key))
	assert.NotEmpty(t, pub.msgs[0].Headers["run_id"])
	assert.True(t, pub.closed)

	assert.Equal(t, config.DefaultOpenSearchIndex, idx.index)
	require.Len(t, idx.docs, 1)
	assert.Equal(t, "a", idx.docs[0].ID)

	require.Len(t, ups.records, 1)
	assert.Equal(t, "a", ups.records[0].Identifier)
	assert.Equal(t, pub.msgs[0].Headers["run_id"], ups.records[0].RunID)
	assert.True(t, pgClosed)
}

func TestParse_SinkOpenFailureClosesOpenedSinks(t *testing.T) {
	f := newFixture(t)
	pub := &fakePublisher{}
	svc := services{
		openPublisher: func(config.KafkaConfig, logging.Logger) (export.Publisher, error) { return pub, nil },
		openIndexer: func(context.Context, config.OpenSearchConfig, logging.Logger) (export.Indexer, error) {
			return nil, errors.New(errors.ErrCodeUnavailable, "cluster down")
		},
	}
	cmd, _ := testRoot(svc, "parse", "--text-dir", f.textDir, "--sink", "kafka", "--sink", "opensearch")
	err := cmd.ExecuteContext(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeExportFailed), "got %v", err)
	assert.True(t, pub.closed)
}

func TestParse_RedisVocabulary(t *testing.T) {
	f := newFixture(t)
	set := &fakeWordSet{words: strings.Fields(goodText)}
	svc := services{
		openWordSet: func(context.Context, config.RedisConfig, logging.Logger) (wordSet, error) { return set, nil },
	}
	combined := filepath.Join(f.out, "all.json")
	cmd, _ := testRoot(svc, "parse", "--text-dir", f.textDir, "--vocabulary-redis-key", "words",
		"--json-output", combined, "--length-cutoff", "5", "--score-cutoff", "0.5")
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.True(t, set.closed)

	data, err := os.ReadFile(combined)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"identifier": "a"`)
}

func TestParse_BucketImages(t *testing.T) {
	f := newFixture(t)
	svc := services{
		openImageStore: func(context.Context, config.MinIOConfig, logging.Logger) (reporting.ObjectStore, error) {
			return fakeObjectStore{}, nil
		},
	}
	t.Setenv("LABELTRAITER_MINIO_BUCKET", "labels")
	html := filepath.Join(f.out, "report.html")
	cmd, _ := testRoot(svc, "parse", "--text-dir", f.textDir, "--vocabulary", f.vocab,
		"--html-file", html, "--image-source", "minio", "--length-cutoff", "5", "--score-cutoff", "0.5")
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	page, err := os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(page), `src="data:image/png;base64,`)
}

func TestParse_Errors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"missing text dir", []string{"parse"}, errors.ErrCodeValidation},
		{"unknown spotlight", []string{"parse", "--text-dir", f.textDir, "--spotlight", "sex"}, errors.ErrCodeValidation},
		{"unknown always-delete", []string{"parse", "--text-dir", f.textDir, "--always-delete", "sex"}, errors.ErrCodeValidation},
		{"unreadable text dir", []string{"parse", "--text-dir", filepath.Join(f.out, "none")}, errors.ErrCodeInputAccess},
		{"missing vocabulary", []string{"parse", "--text-dir", f.textDir, "--vocabulary", filepath.Join(f.out, "none.txt")}, errors.ErrCodeVocabularySource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _ := testRoot(services{}, tt.args...)
			err := cmd.ExecuteContext(context.Background())
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestParse_UnknownCategoryAbortsUnlessIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.textDir, "b.json"),
		[]byte(`[{"category":"sex","start":0,"end":3,"payload":{}}]`), 0o644))

	cmd, _ := testRoot(services{}, "parse", "--text-dir", f.textDir, "--vocabulary", f.vocab)
	err := cmd.ExecuteContext(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownCategory), "got %v", err)

	cmd, out := testRoot(services{}, "parse", "--text-dir", f.textDir, "--vocabulary", f.vocab, "--ignore-unknown")
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Regexp(t, `Unknown entities dropped\s+1\n`, out.String())
}
