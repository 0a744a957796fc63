package label

import (
	"sort"
	"strings"

	"github.com/turtacn/label-traiter/pkg/errors"
)

// Category is the closed set of entity kinds the extraction engine emits.
type Category string

const (
	CategoryIDNumber      Category = "id_number"
	CategoryAdminUnit     Category = "admin_unit"
	CategoryLocality      Category = "locality"
	CategoryHabitat       Category = "habitat"
	CategoryElevation     Category = "elevation"
	CategoryColor         Category = "color"
	CategoryPart          Category = "part"
	CategorySubpart       Category = "subpart"
	CategoryPlantDuration Category = "plant_duration"
	CategoryCollector     Category = "collector"
	CategoryDeterminer    Category = "determiner"
	CategoryEventDate     Category = "event_date"
	CategoryTaxon         Category = "taxon"
	CategoryLatLong       Category = "lat_long"
	CategoryTRS           Category = "trs"
)

func (c Category) String() string { return string(c) }

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := payloadFactories[c]
	return ok
}

// ParseCategory turns an engine tag into a Category.  Unknown tags are an
// ErrCodeUnknownCategory error.
func ParseCategory(tag string) (Category, error) {
	c := Category(strings.TrimSpace(tag))
	if !c.Valid() {
		return "", errors.Newf(errors.ErrCodeUnknownCategory, "unknown entity category %q", tag)
	}
	return c, nil
}

// ParseCategories parses a list of tags, stopping at the first unknown one.
func ParseCategories(tags []string) ([]Category, error) {
	out := make([]Category, 0, len(tags))
	for _, t := range tags {
		c, err := ParseCategory(t)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Categories lists every known category in sorted order.
func Categories() []Category {
	out := make([]Category, 0, len(payloadFactories))
	for c := range payloadFactories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
