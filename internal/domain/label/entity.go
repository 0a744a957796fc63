// Package label defines specimen labels, the entities an extraction engine
// finds in them, and the closed set of category payloads.
package label

import (
	"encoding/json"
	"sort"

	"github.com/turtacn/label-traiter/internal/domain/dwc"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// Entity is a claimed character span [Start, End) of a label's text.
// Offsets count characters (runes), not bytes.  Seq is the emission order
// from the engine and breaks start-offset ties.
type Entity struct {
	Start   int
	End     int
	Seq     int
	Payload Payload
}

// Category returns the payload's category.
func (e Entity) Category() Category {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Category()
}

// Len is the span length in characters.
func (e Entity) Len() int { return e.End - e.Start }

// IDNumber returns the id_number payload when e is one.
func (e Entity) IDNumber() (*IDNumber, bool) {
	p, ok := e.Payload.(*IDNumber)
	return p, ok
}

// IsRecordNumber reports whether e is an id_number of type record_number.
func (e Entity) IsRecordNumber() bool {
	p, ok := e.IDNumber()
	return ok && p.Type == IDTypeRecordNumber
}

// RawEntity is the wire form of an entity as emitted by the engine.
type RawEntity struct {
	Category string          `json:"category"`
	Start    int             `json:"start"`
	End      int             `json:"end"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NewEntity validates raw and builds an Entity.  An unknown category yields
// ErrCodeUnknownCategory; a bad payload yields ErrCodeMalformedPayload; a
// bad span yields ErrCodeEntityContract.
func NewEntity(raw RawEntity, seq int) (Entity, error) {
	cat, err := ParseCategory(raw.Category)
	if err != nil {
		return Entity{}, err
	}
	if raw.Start < 0 || raw.End <= raw.Start {
		return Entity{}, errors.Newf(errors.ErrCodeEntityContract,
			"%s entity has invalid span [%d, %d)", cat, raw.Start, raw.End)
	}
	p, err := DecodePayload(cat, raw.Payload)
	if err != nil {
		return Entity{}, err
	}
	return Entity{Start: raw.Start, End: raw.End, Seq: seq, Payload: p}, nil
}

// SortEntities returns a copy of entities ordered by start offset, ties
// broken by emission order.
func SortEntities(entities []Entity) []Entity {
	out := make([]Entity, len(entities))
	copy(out, entities)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// CheckNonOverlapping returns an ErrCodeEntityContract error when sorted
// entities overlap or run past textLen characters.  textLen < 0 skips the
// bound check.
func CheckNonOverlapping(sorted []Entity, textLen int) error {
	for i, e := range sorted {
		if textLen >= 0 && e.End > textLen {
			return errors.Newf(errors.ErrCodeEntityContract,
				"%s entity [%d, %d) runs past text length %d", e.Category(), e.Start, e.End, textLen)
		}
		if i > 0 && e.Start < sorted[i-1].End {
			prev := sorted[i-1]
			return errors.Newf(errors.ErrCodeEntityContract,
				"%s entity [%d, %d) overlaps %s entity [%d, %d)",
				e.Category(), e.Start, e.End, prev.Category(), prev.Start, prev.End)
		}
	}
	return nil
}

// ToRecord maps entities into a Darwin Core record in order, so later
// entities win on conflicting terms.
func ToRecord(entities []Entity) *dwc.Record {
	r := dwc.New()
	for _, e := range entities {
		if e.Payload != nil {
			e.Payload.ToDwC(r)
		}
	}
	return r
}
