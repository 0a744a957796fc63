// Package entity_stream adapts the output of the external extraction engine
// into ordered, validated label entities.
package entity_stream

import (
	"context"
	"encoding/json"
	"io"
	"unicode/utf8"

	"github.com/turtacn/label-traiter/internal/domain/label"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// Source yields the entities the engine found in one label's text, sorted
// by start offset with ties kept in emission order.
type Source interface {
	Entities(ctx context.Context, identifier, text string) ([]label.Entity, error)
}

// Options controls how raw engine output is turned into entities.
type Options struct {
	// IgnoreUnknown drops entities whose category is not in the closed set
	// instead of failing the label.
	IgnoreUnknown bool
	// OnUnknown is called with the tag of every dropped unknown entity.
	OnUnknown func(category string)
}

// Build validates raws in emission order, sorts them and checks that no two
// spans overlap and none runs past the end of text.
func Build(raws []label.RawEntity, text string, opts Options) ([]label.Entity, error) {
	entities := make([]label.Entity, 0, len(raws))
	for i, raw := range raws {
		e, err := label.NewEntity(raw, i)
		if err != nil {
			if opts.IgnoreUnknown && errors.IsCode(err, errors.ErrCodeUnknownCategory) {
				if opts.OnUnknown != nil {
					opts.OnUnknown(raw.Category)
				}
				continue
			}
			return nil, err
		}
		entities = append(entities, e)
	}

	sorted := label.SortEntities(entities)
	if err := label.CheckNonOverlapping(sorted, utf8.RuneCountInString(text)); err != nil {
		return nil, err
	}
	return sorted, nil
}

// Decode reads a JSON array of raw entities.
func Decode(r io.Reader) ([]label.RawEntity, error) {
	var raws []label.RawEntity
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeEntityContract, "entity stream is not a JSON array of entities")
	}
	return raws, nil
}

// StaticSource serves fixed raw entities per identifier.  It backs tests and
// callers that already hold engine output in memory.
type StaticSource struct {
	Raw     map[string][]label.RawEntity
	Options Options
}

// Entities implements Source.
func (s *StaticSource) Entities(ctx context.Context, identifier, text string) ([]label.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Build(s.Raw[identifier], text, s.Options)
}
