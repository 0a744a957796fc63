// Package export turns kept labels into standardized records and writes them
// to files and record sinks.
package export

import (
	"bytes"
	"sort"

	"github.com/turtacn/label-traiter/internal/domain/dwc"
	"github.com/turtacn/label-traiter/internal/domain/label"
)

// Row is one exported label: its scoring metadata plus the Darwin Core
// record built from its surviving entities.
type Row struct {
	Identifier string
	WordCount  int
	ValidWords int
	Score      float64
	Record     *dwc.Record
}

// NewRow builds the row for lb.  The label is not modified.
func NewRow(lb *label.Label) Row {
	return Row{
		Identifier: lb.Identifier,
		WordCount:  lb.WordCount,
		ValidWords: lb.ValidWords,
		Score:      lb.Score,
		Record:     label.ToRecord(lb.Entities),
	}
}

// KeptRows builds rows for the kept labels, ordered by identifier.
func KeptRows(labels []*label.Label) []Row {
	rows := make([]Row, 0, len(labels))
	for _, lb := range labels {
		if lb.Outcome.Kept() {
			rows = append(rows, NewRow(lb))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Identifier < rows[j].Identifier })
	return rows
}

// RecordJSON encodes only the record fields.
func (r Row) RecordJSON() ([]byte, error) {
	if r.Record == nil {
		return []byte("{}"), nil
	}
	return r.Record.MarshalJSON()
}

// MarshalJSON writes identifier, word_count, valid_words and score first,
// followed by the record terms in sorted order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, v interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := dwc.Marshal(key, "")
		if err != nil {
			return err
		}
		val, err := dwc.Marshal(v, "")
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	head := []struct {
		key string
		val interface{}
	}{
		{"identifier", r.Identifier},
		{"word_count", r.WordCount},
		{"valid_words", r.ValidWords},
		{"score", r.Score},
	}
	for _, h := range head {
		if err := write(h.key, h.val); err != nil {
			return nil, err
		}
	}

	if r.Record != nil {
		fields := r.Record.ToMap()
		for _, k := range r.Record.Keys() {
			if err := write(k, fields[k]); err != nil {
				return nil, err
			}
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
