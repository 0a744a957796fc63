package quality

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// Vocabulary is a read-only set of lowercase NFC words.  It is built once per
// run and shared by every worker.
type Vocabulary struct {
	words map[string]struct{}
}

// NewVocabulary builds a vocabulary from words, lowercasing each.
func NewVocabulary(words ...string) *Vocabulary {
	v := &Vocabulary{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if w = fold(strings.TrimSpace(w)); w != "" {
			v.words[w] = struct{}{}
		}
	}
	return v
}

// Contains reports whether the lowercase form of word is known.
func (v *Vocabulary) Contains(word string) bool {
	if v == nil {
		return false
	}
	_, ok := v.words[fold(word)]
	return ok
}

// Len is the number of distinct words.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.words)
}

// Words returns the vocabulary in sorted order.
func (v *Vocabulary) Words() []string {
	if v == nil {
		return nil
	}
	out := make([]string, 0, len(v.words))
	for w := range v.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Sources
// ─────────────────────────────────────────────────────────────────────────────

// VocabularySource feeds terms into a builder.  A term may be a phrase; the
// builder keeps each of its words.
type VocabularySource interface {
	Name() string
	Load(ctx context.Context, emit func(term string)) error
}

// SetMembers is the slice of a Redis client a RedisSetSource needs.
type SetMembers interface {
	SMembers(ctx context.Context, key string) ([]string, error)
}

// WordsSource is an in-memory list of terms.
type WordsSource []string

func (WordsSource) Name() string { return "words" }

func (s WordsSource) Load(_ context.Context, emit func(string)) error {
	for _, t := range s {
		emit(t)
	}
	return nil
}

// WordListFile is a text file with one term per line.  Blank lines and lines
// starting with '#' are skipped.
type WordListFile struct {
	Path string
}

func (f WordListFile) Name() string { return f.Path }

func (f WordListFile) Load(_ context.Context, emit func(string)) error {
	fh, err := os.Open(f.Path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeVocabularySource, "open word list %s", f.Path)
	}
	defer fh.Close()
	if err := readLines(fh, emit); err != nil {
		return errors.Wrapf(err, errors.ErrCodeVocabularySource, "read word list %s", f.Path)
	}
	return nil
}

// ZipArchive is a zip of term files.  CSV entries contribute their "pattern"
// column; any other entry is read as a word list.
type ZipArchive struct {
	Path string
}

func (z ZipArchive) Name() string { return z.Path }

func (z ZipArchive) Load(ctx context.Context, emit func(string)) error {
	zr, err := zip.OpenReader(z.Path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeVocabularySource, "open term archive %s", z.Path)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := loadZipEntry(entry, emit); err != nil {
			return errors.Wrapf(err, errors.ErrCodeVocabularySource, "read %s in %s", entry.Name, z.Path)
		}
	}
	return nil
}

func loadZipEntry(entry *zip.File, emit func(string)) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	if strings.EqualFold(filepath.Ext(entry.Name), ".csv") {
		return readPatternColumn(rc, emit)
	}
	return readLines(rc, emit)
}

// RedisSetSource reads every member of a Redis set.
type RedisSetSource struct {
	Client SetMembers
	Key    string
}

func (s RedisSetSource) Name() string { return "redis:" + s.Key }

func (s RedisSetSource) Load(ctx context.Context, emit func(string)) error {
	members, err := s.Client.SMembers(ctx, s.Key)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeVocabularySource, "read vocabulary set %s", s.Key)
	}
	for _, m := range members {
		emit(m)
	}
	return nil
}

// SourceForPath picks ZipArchive for .zip files and WordListFile otherwise.
func SourceForPath(path string) VocabularySource {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return ZipArchive{Path: path}
	}
	return WordListFile{Path: path}
}

func readLines(r io.Reader, emit func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		emit(line)
	}
	return sc.Err()
}

func readPatternColumn(r io.Reader, emit func(string)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), "pattern") {
			col = i
			break
		}
	}
	if col < 0 {
		return errors.New(errors.ErrCodeVocabularySource, `csv term file has no "pattern" column`)
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if col < len(rec) {
			emit(rec[col])
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Builder
// ─────────────────────────────────────────────────────────────────────────────

// VocabularyBuilder merges several sources into one Vocabulary.
type VocabularyBuilder struct {
	sources []VocabularySource
	logger  logging.Logger
}

// NewVocabularyBuilder creates an empty builder.
func NewVocabularyBuilder(logger logging.Logger) *VocabularyBuilder {
	return &VocabularyBuilder{logger: logging.OrNop(logger)}
}

// Add appends sources and returns the builder.
func (b *VocabularyBuilder) Add(sources ...VocabularySource) *VocabularyBuilder {
	b.sources = append(b.sources, sources...)
	return b
}

// Build loads every source in order.  Each term is lowercased and split on
// whitespace, so "Quercus alba" adds "quercus" and "alba".
func (b *VocabularyBuilder) Build(ctx context.Context) (*Vocabulary, error) {
	words := make(map[string]struct{})
	for _, src := range b.sources {
		before := len(words)
		err := src.Load(ctx, func(term string) {
			for _, w := range strings.Fields(fold(term)) {
				words[w] = struct{}{}
			}
		})
		if err != nil {
			return nil, err
		}
		b.logger.Debug("vocabulary source loaded",
			logging.String("source", src.Name()),
			logging.Int("new_words", len(words)-before))
	}
	b.logger.Info("vocabulary built", logging.Int("words", len(words)), logging.Int("sources", len(b.sources)))
	return &Vocabulary{words: words}, nil
}

// fold is the form words are stored and looked up in.
func fold(s string) string {
	return norm.NFC.String(strings.ToLower(s))
}
