// Package dwc holds the Darwin Core record that label entities are mapped
// into.  Terms are set by name; the nested dynamicProperties object is merged
// key by key instead of being replaced wholesale.
package dwc

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Darwin Core terms written by the label pipeline.
const (
	RecordNumber                  = "recordNumber"
	CatalogNumber                 = "catalogNumber"
	RecordedBy                    = "recordedBy"
	RecordedByID                  = "recordedByID"
	IdentifiedBy                  = "identifiedBy"
	Country                       = "country"
	StateProvince                 = "stateProvince"
	County                        = "county"
	Locality                      = "locality"
	Habitat                       = "habitat"
	MinimumElevationInMeters      = "minimumElevationInMeters"
	MaximumElevationInMeters      = "maximumElevationInMeters"
	VerbatimElevation             = "verbatimElevation"
	EventDate                     = "eventDate"
	VerbatimEventDate             = "verbatimEventDate"
	ScientificName                = "scientificName"
	ScientificNameAuthorship      = "scientificNameAuthorship"
	TaxonRank                     = "taxonRank"
	DecimalLatitude               = "decimalLatitude"
	DecimalLongitude              = "decimalLongitude"
	GeodeticDatum                 = "geodeticDatum"
	CoordinateUncertaintyInMeters = "coordinateUncertaintyInMeters"
	VerbatimCoordinates           = "verbatimCoordinates"

	// DynamicProperties holds fields with no dedicated term.
	DynamicProperties = "dynamicProperties"
)

// Record is a mutable Darwin Core record under construction.  It is not safe
// for concurrent use; each label builds its own.
type Record struct {
	terms   map[string]interface{}
	dynamic map[string]interface{}
}

// New returns an empty Record.
func New() *Record {
	return &Record{
		terms:   make(map[string]interface{}),
		dynamic: make(map[string]interface{}),
	}
}

// Set stores value under term, replacing any earlier value.  Empty strings
// and nil are ignored so that absent payload fields contribute nothing.
// Setting DynamicProperties with a map merges it instead.
func (r *Record) Set(term string, value interface{}) {
	if isEmpty(value) {
		return
	}
	if term == DynamicProperties {
		if m, ok := value.(map[string]interface{}); ok {
			for k, v := range m {
				r.SetDynamic(k, v)
			}
			return
		}
	}
	r.terms[term] = value
}

// SetDynamic stores value under key inside dynamicProperties.
func (r *Record) SetDynamic(key string, value interface{}) {
	if isEmpty(value) {
		return
	}
	r.dynamic[key] = value
}

// Get returns the value of a term.
func (r *Record) Get(term string) (interface{}, bool) {
	if term == DynamicProperties {
		if len(r.dynamic) == 0 {
			return nil, false
		}
		return r.Dynamic(), true
	}
	v, ok := r.terms[term]
	return v, ok
}

// Dynamic returns a copy of dynamicProperties.
func (r *Record) Dynamic() map[string]interface{} {
	out := make(map[string]interface{}, len(r.dynamic))
	for k, v := range r.dynamic {
		out[k] = v
	}
	return out
}

// Len counts top-level terms, with dynamicProperties counted once when set.
func (r *Record) Len() int {
	n := len(r.terms)
	if len(r.dynamic) > 0 {
		n++
	}
	return n
}

// Keys returns the top-level term names in sorted order.
func (r *Record) Keys() []string {
	keys := make([]string, 0, r.Len())
	for k := range r.terms {
		keys = append(keys, k)
	}
	if len(r.dynamic) > 0 {
		keys = append(keys, DynamicProperties)
	}
	sort.Strings(keys)
	return keys
}

// ToMap flattens the record into a fresh map.
func (r *Record) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, r.Len())
	for k, v := range r.terms {
		out[k] = v
	}
	if len(r.dynamic) > 0 {
		out[DynamicProperties] = r.Dynamic()
	}
	return out
}

// MarshalJSON encodes the record as a flat object with sorted keys.
func (r *Record) MarshalJSON() ([]byte, error) {
	return Marshal(r.ToMap(), "")
}

// Marshal encodes v as JSON without escaping <, > and &, indenting each
// level by indent when it is not empty.  No trailing newline is written.
func Marshal(v interface{}, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case map[string]interface{}:
		return len(t) == 0
	}
	return false
}
