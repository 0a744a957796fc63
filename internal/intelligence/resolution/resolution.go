// Package resolution holds the post-extraction stages that turn a label's
// raw entity stream into its final entity set.
//
// Every stage takes an ordered, read-only slice and returns a new one.  No
// stage reorders the entities it keeps.
package resolution

import (
	"github.com/turtacn/label-traiter/internal/domain/label"
)

// Stage is one step of post-extraction cleanup.
type Stage interface {
	Name() string
	Apply(entities []label.Entity) []label.Entity
}

// Stage names, also used as the metrics "stage" label.
const (
	StageConflictResolver = "conflict_resolver"
	StageSuppressor       = "suppressor"
)

// ─────────────────────────────────────────────────────────────────────────────
// Conflict resolver
// ─────────────────────────────────────────────────────────────────────────────

// ConflictResolver drops always-delete categories and keeps only the last
// record number in the document; record numbers tend to sit at the end of a
// label.
type ConflictResolver struct {
	alwaysDelete map[label.Category]struct{}
}

// NewConflictResolver creates a resolver that removes every entity of the
// given categories.
func NewConflictResolver(alwaysDelete []label.Category) *ConflictResolver {
	set := make(map[label.Category]struct{}, len(alwaysDelete))
	for _, c := range alwaysDelete {
		set[c] = struct{}{}
	}
	return &ConflictResolver{alwaysDelete: set}
}

func (*ConflictResolver) Name() string { return StageConflictResolver }

// Apply walks from the end so that the first record number seen is the
// latest one.
func (r *ConflictResolver) Apply(entities []label.Entity) []label.Entity {
	kept := make([]label.Entity, 0, len(entities))
	recordNumberFound := false

	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		if _, drop := r.alwaysDelete[e.Category()]; drop {
			continue
		}
		if e.IsRecordNumber() {
			if recordNumberFound {
				continue
			}
			recordNumberFound = true
		}
		kept = append(kept, e)
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// ─────────────────────────────────────────────────────────────────────────────
// Suppressor
// ─────────────────────────────────────────────────────────────────────────────

// Suppressor removes id_number entities without a cue once any id_number in
// the label has one.
type Suppressor struct{}

// NewSuppressor creates a Suppressor.
func NewSuppressor() *Suppressor { return &Suppressor{} }

func (*Suppressor) Name() string { return StageSuppressor }

func (*Suppressor) Apply(entities []label.Entity) []label.Entity {
	anyLabeled := false
	for _, e := range entities {
		if p, ok := e.IDNumber(); ok && p.HasLabel {
			anyLabeled = true
			break
		}
	}

	kept := make([]label.Entity, 0, len(entities))
	for _, e := range entities {
		if p, ok := e.IDNumber(); ok && anyLabeled && !p.HasLabel {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

// ─────────────────────────────────────────────────────────────────────────────
// Chain
// ─────────────────────────────────────────────────────────────────────────────

// DropObserver is told how many entities each stage removed.
type DropObserver func(stage string, dropped int)

// Chain runs a fixed list of stages in order.
type Chain struct {
	stages   []Stage
	observer DropObserver
}

// NewChain creates a chain over stages.  observer may be nil.
func NewChain(observer DropObserver, stages ...Stage) *Chain {
	return &Chain{stages: stages, observer: observer}
}

// DefaultChain is the standard order: conflict resolution, then suppression.
func DefaultChain(alwaysDelete []label.Category, observer DropObserver) *Chain {
	return NewChain(observer, NewConflictResolver(alwaysDelete), NewSuppressor())
}

// Stages returns the stage names in run order.
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Apply runs every stage.  The input slice is never modified.
func (c *Chain) Apply(entities []label.Entity) []label.Entity {
	out := entities
	for _, s := range c.stages {
		next := s.Apply(out)
		if c.observer != nil {
			c.observer(s.Name(), len(out)-len(next))
		}
		out = next
	}
	if out == nil {
		return []label.Entity{}
	}
	return out
}
