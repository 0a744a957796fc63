package label

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/turtacn/label-traiter/internal/domain/dwc"
	"github.com/turtacn/label-traiter/pkg/errors"
)

// Payload is the category-specific part of an entity.  The set of
// implementations is closed: only this package can add variants.
type Payload interface {
	Category() Category
	// ToDwC writes the payload's Darwin Core terms into r.
	ToDwC(r *dwc.Record)
	validate() error
}

// payloadFactories maps each category to a constructor for its variant.
var payloadFactories = map[Category]func() Payload{
	CategoryIDNumber:      func() Payload { return &IDNumber{} },
	CategoryAdminUnit:     func() Payload { return &AdminUnit{} },
	CategoryLocality:      func() Payload { return &Locality{} },
	CategoryHabitat:       func() Payload { return &Habitat{} },
	CategoryElevation:     func() Payload { return &Elevation{} },
	CategoryColor:         func() Payload { return &Color{} },
	CategoryPart:          func() Payload { return &Part{} },
	CategorySubpart:       func() Payload { return &Subpart{} },
	CategoryPlantDuration: func() Payload { return &PlantDuration{} },
	CategoryCollector:     func() Payload { return &Collector{} },
	CategoryDeterminer:    func() Payload { return &Determiner{} },
	CategoryEventDate:     func() Payload { return &EventDate{} },
	CategoryTaxon:         func() Payload { return &Taxon{} },
	CategoryLatLong:       func() Payload { return &LatLong{} },
	CategoryTRS:           func() Payload { return &TRS{} },
}

// DecodePayload builds the variant for category from its JSON form.  Unknown
// fields, wrong types and failed variant checks are ErrCodeMalformedPayload.
func DecodePayload(category Category, raw json.RawMessage) (Payload, error) {
	factory, ok := payloadFactories[category]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownCategory, "unknown entity category %q", category)
	}
	p := factory()
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(p); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeMalformedPayload, "decode %s payload", category)
		}
	}
	if err := p.validate(); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeMalformedPayload, "invalid %s payload", category)
	}
	return p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// id_number
// ─────────────────────────────────────────────────────────────────────────────

// IDType distinguishes id_number subtypes by their contextual cue.
type IDType string

const (
	IDTypeRecordNumber    IDType = "record_number"
	IDTypeAccessionNumber IDType = "accession_number"
	IDTypeCollectorID     IDType = "collector_id"
)

// idTerms maps each IDType to the term it fills.
var idTerms = map[IDType]string{
	IDTypeRecordNumber:    dwc.RecordNumber,
	IDTypeAccessionNumber: dwc.CatalogNumber,
	IDTypeCollectorID:     dwc.RecordedByID,
}

// IDNumber is a record, accession or collector number.  HasLabel is set
// when an explicit cue such as "No." preceded the digits.
type IDNumber struct {
	Number   string `json:"number"`
	Type     IDType `json:"type"`
	HasLabel bool   `json:"has_label"`
}

func (*IDNumber) Category() Category { return CategoryIDNumber }

func (p *IDNumber) validate() error {
	if p.Number == "" {
		return fmt.Errorf("number is empty")
	}
	for _, r := range p.Number {
		if r < '0' || r > '9' {
			return fmt.Errorf("number %q is not all digits", p.Number)
		}
	}
	if _, ok := idTerms[p.Type]; !ok {
		return fmt.Errorf("type %q is not one of record_number, accession_number, collector_id", p.Type)
	}
	return nil
}

// ToDwC fills the type's term and, when cued, <term>IsLabeled in
// dynamicProperties.
func (p *IDNumber) ToDwC(r *dwc.Record) {
	term := idTerms[p.Type]
	r.Set(term, p.Number)
	if p.HasLabel {
		r.SetDynamic(term+"IsLabeled", true)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Place
// ─────────────────────────────────────────────────────────────────────────────

// AdminUnit is a country, state, province or county mention.
type AdminUnit struct {
	Country  string `json:"country,omitempty"`
	USState  string `json:"us_state,omitempty"`
	USCounty string `json:"us_county,omitempty"`
	Province string `json:"province,omitempty"`
}

func (*AdminUnit) Category() Category { return CategoryAdminUnit }

func (p *AdminUnit) validate() error {
	if p.Country == "" && p.USState == "" && p.USCounty == "" && p.Province == "" {
		return fmt.Errorf("admin unit has no fields")
	}
	if p.USState != "" && p.Province != "" {
		return fmt.Errorf("admin unit has both us_state and province")
	}
	return nil
}

func (p *AdminUnit) ToDwC(r *dwc.Record) {
	r.Set(dwc.Country, p.Country)
	r.Set(dwc.StateProvince, p.USState)
	r.Set(dwc.StateProvince, p.Province)
	r.Set(dwc.County, p.USCounty)
}

// Locality is free-text place description.  Labeled marks a "LOCATION:" cue.
type Locality struct {
	Locality string `json:"locality"`
	Labeled  bool   `json:"labeled,omitempty"`
}

func (*Locality) Category() Category { return CategoryLocality }

func (p *Locality) validate() error {
	if strings.TrimSpace(p.Locality) == "" {
		return fmt.Errorf("locality is empty")
	}
	return nil
}

func (p *Locality) ToDwC(r *dwc.Record) {
	r.Set(dwc.Locality, p.Locality)
	if p.Labeled {
		r.SetDynamic("localityIsLabeled", true)
	}
}

// Habitat is a habitat description.
type Habitat struct {
	Habitat string `json:"habitat"`
}

func (*Habitat) Category() Category { return CategoryHabitat }

func (p *Habitat) validate() error {
	if strings.TrimSpace(p.Habitat) == "" {
		return fmt.Errorf("habitat is empty")
	}
	return nil
}

func (p *Habitat) ToDwC(r *dwc.Record) { r.Set(dwc.Habitat, p.Habitat) }

// feetToMeters converts label elevations given in feet.
const feetToMeters = 0.3048

// Elevation is a single elevation or a range.  Units are "m" or "ft".
type Elevation struct {
	Elevation     float64  `json:"elevation"`
	ElevationHigh *float64 `json:"elevation_high,omitempty"`
	Units         string   `json:"units"`
}

func (*Elevation) Category() Category { return CategoryElevation }

func (p *Elevation) validate() error {
	switch p.Units {
	case "m", "ft":
	default:
		return fmt.Errorf("units %q is not m or ft", p.Units)
	}
	if p.ElevationHigh != nil && *p.ElevationHigh < p.Elevation {
		return fmt.Errorf("elevation_high %v is below elevation %v", *p.ElevationHigh, p.Elevation)
	}
	return nil
}

func (p *Elevation) meters(v float64) float64 {
	if p.Units == "ft" {
		v *= feetToMeters
	}
	return math.Round(v*10) / 10
}

func (p *Elevation) ToDwC(r *dwc.Record) {
	r.Set(dwc.MinimumElevationInMeters, p.meters(p.Elevation))
	if p.ElevationHigh != nil {
		r.Set(dwc.MaximumElevationInMeters, p.meters(*p.ElevationHigh))
		r.Set(dwc.VerbatimElevation, fmt.Sprintf("%g-%g %s", p.Elevation, *p.ElevationHigh, p.Units))
		return
	}
	r.Set(dwc.VerbatimElevation, fmt.Sprintf("%g %s", p.Elevation, p.Units))
}

// LatLong is a coordinate pair in decimal degrees.
type LatLong struct {
	Lat         float64  `json:"lat"`
	Long        float64  `json:"long"`
	Datum       string   `json:"datum,omitempty"`
	Uncertainty *float64 `json:"uncertainty,omitempty"`
	Verbatim    string   `json:"lat_long,omitempty"`
}

func (*LatLong) Category() Category { return CategoryLatLong }

func (p *LatLong) validate() error {
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("lat %v is out of range", p.Lat)
	}
	if p.Long < -180 || p.Long > 180 {
		return fmt.Errorf("long %v is out of range", p.Long)
	}
	return nil
}

func (p *LatLong) ToDwC(r *dwc.Record) {
	r.Set(dwc.DecimalLatitude, p.Lat)
	r.Set(dwc.DecimalLongitude, p.Long)
	r.Set(dwc.GeodeticDatum, p.Datum)
	if p.Uncertainty != nil {
		r.Set(dwc.CoordinateUncertaintyInMeters, *p.Uncertainty)
	}
	r.Set(dwc.VerbatimCoordinates, p.Verbatim)
}

// TRS is a township/range/section survey reference.
type TRS struct {
	TRS string `json:"trs"`
}

func (*TRS) Category() Category { return CategoryTRS }

func (p *TRS) validate() error {
	if strings.TrimSpace(p.TRS) == "" {
		return fmt.Errorf("trs is empty")
	}
	return nil
}

func (p *TRS) ToDwC(r *dwc.Record) { r.SetDynamic("trs", p.TRS) }

// ─────────────────────────────────────────────────────────────────────────────
// Plant traits
// ─────────────────────────────────────────────────────────────────────────────

// Color is a colour, optionally attached to a part or subpart.
type Color struct {
	Color   string `json:"color"`
	Part    string `json:"part,omitempty"`
	Subpart string `json:"subpart,omitempty"`
}

func (*Color) Category() Category { return CategoryColor }

func (p *Color) validate() error {
	if p.Color == "" {
		return fmt.Errorf("color is empty")
	}
	return nil
}

// ToDwC keys the colour by what it describes, e.g. fruitColor or lobeColor.
func (p *Color) ToDwC(r *dwc.Record) {
	key := "color"
	switch {
	case p.Subpart != "":
		key = camel(p.Subpart) + "Color"
	case p.Part != "":
		key = camel(p.Part) + "Color"
	}
	r.SetDynamic(key, p.Color)
}

// Part is a plant part such as "fruit" or "tree".
type Part struct {
	Part string `json:"part"`
	Type string `json:"type,omitempty"`
}

func (*Part) Category() Category { return CategoryPart }

func (p *Part) validate() error {
	if p.Part == "" {
		return fmt.Errorf("part is empty")
	}
	return nil
}

func (p *Part) ToDwC(r *dwc.Record) {
	key := "part"
	if p.Type != "" {
		key = camel(p.Type)
	}
	r.SetDynamic(key, p.Part)
}

// Subpart is a plant subpart such as "lobe".
type Subpart struct {
	Subpart string `json:"subpart"`
}

func (*Subpart) Category() Category { return CategorySubpart }

func (p *Subpart) validate() error {
	if p.Subpart == "" {
		return fmt.Errorf("subpart is empty")
	}
	return nil
}

func (p *Subpart) ToDwC(r *dwc.Record) { r.SetDynamic("subpart", p.Subpart) }

// PlantDuration is annual, biennial, perennial and the like.
type PlantDuration struct {
	PlantDuration string `json:"plant_duration"`
}

func (*PlantDuration) Category() Category { return CategoryPlantDuration }

func (p *PlantDuration) validate() error {
	if p.PlantDuration == "" {
		return fmt.Errorf("plant_duration is empty")
	}
	return nil
}

func (p *PlantDuration) ToDwC(r *dwc.Record) { r.SetDynamic("plantDuration", p.PlantDuration) }

// ─────────────────────────────────────────────────────────────────────────────
// People, dates, names
// ─────────────────────────────────────────────────────────────────────────────

// Collector lists the collecting people in label order.
type Collector struct {
	Collector []string `json:"collector"`
}

func (*Collector) Category() Category { return CategoryCollector }

func (p *Collector) validate() error {
	if len(p.Collector) == 0 {
		return fmt.Errorf("collector is empty")
	}
	return nil
}

func (p *Collector) ToDwC(r *dwc.Record) {
	r.Set(dwc.RecordedBy, strings.Join(p.Collector, " | "))
}

// Determiner is the person who identified the specimen.
type Determiner struct {
	Determiner string `json:"determiner"`
}

func (*Determiner) Category() Category { return CategoryDeterminer }

func (p *Determiner) validate() error {
	if p.Determiner == "" {
		return fmt.Errorf("determiner is empty")
	}
	return nil
}

func (p *Determiner) ToDwC(r *dwc.Record) { r.Set(dwc.IdentifiedBy, p.Determiner) }

// EventDate is a collection date, normalised to ISO 8601 where possible.
type EventDate struct {
	Date     string `json:"date"`
	Verbatim string `json:"verbatim,omitempty"`
}

func (*EventDate) Category() Category { return CategoryEventDate }

func (p *EventDate) validate() error {
	if p.Date == "" && p.Verbatim == "" {
		return fmt.Errorf("event date has neither date nor verbatim")
	}
	return nil
}

func (p *EventDate) ToDwC(r *dwc.Record) {
	r.Set(dwc.EventDate, p.Date)
	r.Set(dwc.VerbatimEventDate, p.Verbatim)
}

// Taxon is a scientific name.
type Taxon struct {
	Taxon     string `json:"taxon"`
	Rank      string `json:"rank,omitempty"`
	Authority string `json:"authority,omitempty"`
}

func (*Taxon) Category() Category { return CategoryTaxon }

func (p *Taxon) validate() error {
	if p.Taxon == "" {
		return fmt.Errorf("taxon is empty")
	}
	return nil
}

func (p *Taxon) ToDwC(r *dwc.Record) {
	r.Set(dwc.ScientificName, p.Taxon)
	r.Set(dwc.TaxonRank, p.Rank)
	r.Set(dwc.ScientificNameAuthorship, p.Authority)
}

// camel turns "fruit_part" or "leaf part" into "fruitPart".
func camel(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	for i := 1; i < len(parts); i++ {
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
