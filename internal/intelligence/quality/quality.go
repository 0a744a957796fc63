// Package quality scores label text against a vocabulary and decides which
// labels are worth keeping.
package quality

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/label-traiter/internal/domain/label"
)

// Score is the text quality of one label.
type Score struct {
	WordCount  int
	ValidWords int
	Value      float64
}

// Scorer measures the share of a text's words found in a vocabulary.
type Scorer struct {
	vocab *Vocabulary
}

// NewScorer creates a Scorer over vocab.  A nil vocabulary knows no words.
func NewScorer(vocab *Vocabulary) *Scorer {
	return &Scorer{vocab: vocab}
}

// Score splits text on whitespace and counts the words the vocabulary knows.
// Punctuation stays attached to its word.  Text is compared in NFC form.
func (s *Scorer) Score(text string) Score {
	words := strings.Fields(norm.NFC.String(text))
	valid := 0
	for _, w := range words {
		if s.vocab.Contains(w) {
			valid++
		}
	}
	sc := Score{WordCount: len(words), ValidWords: valid}
	if sc.WordCount > 0 {
		sc.Value = float64(valid) / float64(sc.WordCount)
	}
	return sc
}

// Decide applies the length check before the score check.
func Decide(wordCount int, score float64, lengthCutoff int, scoreCutoff float64) label.Outcome {
	switch {
	case wordCount < lengthCutoff:
		return label.OutcomeTooShort
	case score < scoreCutoff:
		return label.OutcomeLowScore
	default:
		return label.OutcomeKeep
	}
}

// Summary counts filter outcomes.  Merging is commutative so per-worker
// summaries can be combined in any order.
type Summary struct {
	Total           int
	Kept            int
	TooShort        int
	LowScore        int
	UnknownEntities int
}

// Add counts one outcome.
func (s *Summary) Add(o label.Outcome) {
	s.Total++
	switch o {
	case label.OutcomeKeep:
		s.Kept++
	case label.OutcomeTooShort:
		s.TooShort++
	case label.OutcomeLowScore:
		s.LowScore++
	}
}

// Merge returns the sum of s and o.
func (s Summary) Merge(o Summary) Summary {
	return Summary{
		Total:           s.Total + o.Total,
		Kept:            s.Kept + o.Kept,
		TooShort:        s.TooShort + o.TooShort,
		LowScore:        s.LowScore + o.LowScore,
		UnknownEntities: s.UnknownEntities + o.UnknownEntities,
	}
}

// Removed is the number of rejected labels.
func (s Summary) Removed() int { return s.TooShort + s.LowScore }
