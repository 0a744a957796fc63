package label

import (
	"path/filepath"
	"strings"
)

// Outcome is the filter decision for a label.
type Outcome int

const (
	OutcomeKeep Outcome = iota
	OutcomeTooShort
	OutcomeLowScore
)

func (o Outcome) String() string {
	switch o {
	case OutcomeKeep:
		return "kept"
	case OutcomeTooShort:
		return "too_short"
	case OutcomeLowScore:
		return "low_score"
	default:
		return "unknown"
	}
}

// Kept reports whether the outcome keeps the label.
func (o Outcome) Kept() bool { return o == OutcomeKeep }

// Label is one specimen-label text.  It is built at ingestion, gains its
// entities and score during processing, and is read-only afterwards.
type Label struct {
	Identifier string
	Path       string
	Text       string
	Encoding   string

	Entities []Entity

	WordCount  int
	ValidWords int
	Score      float64
	Outcome    Outcome
}

// IdentifierFromPath derives a label identifier from its file stem:
// "/dir/sub/my_label.txt" → "my_label".
func IdentifierFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
