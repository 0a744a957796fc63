// Package reporting renders the HTML review report for a run: each kept
// label's text with its entities highlighted, the label image when one is
// available, and the run summary.
package reporting

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/turtacn/label-traiter/internal/domain/dwc"
	"github.com/turtacn/label-traiter/internal/domain/label"
	"github.com/turtacn/label-traiter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/label-traiter/internal/intelligence/quality"
	"github.com/turtacn/label-traiter/pkg/errors"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(funcMap()).ParseFS(templateFS, "templates/report.html.tmpl"))

// Options configures the report.
type Options struct {
	Title        string
	LengthCutoff int
	ScoreCutoff  float64
	// Spotlight gets its own highlight colour.  Empty means none.
	Spotlight label.Category
	// Images may be nil.
	Images ImageSource
	// Unhighlighted categories are listed with the label but not marked in
	// its text.
	Unhighlighted []label.Category
}

// DefaultUnhighlighted are categories whose spans are not marked in the text.
var DefaultUnhighlighted = []label.Category{label.CategoryTRS}

// Segment is a run of label text, highlighted when Category is set.
type Segment struct {
	Text      string
	Category  string
	Spotlight bool
}

// Field is one Darwin Core term of an entity.
type Field struct {
	Term  string
	Value string
}

// Trait is one entity as listed beside the text.
type Trait struct {
	Category  string
	Text      string
	Spotlight bool
	Fields    []Field
}

// LabelView is one label as rendered.
type LabelView struct {
	Identifier string
	WordCount  int
	ValidWords int
	Score      float64
	Segments   []Segment
	Traits     []Trait
	ImageURI   template.URL
}

// SummaryLine is one row of the summary block.
type SummaryLine struct {
	Name  string
	Value string
}

// View is the data handed to the template.
type View struct {
	Title       string
	GeneratedAt time.Time
	Categories  []string
	Spotlight   string
	Labels      []LabelView
	Summary     []SummaryLine
}

// Reporter renders reports.
type Reporter struct {
	opts   Options
	logger logging.Logger
	now    func() time.Time
}

// NewReporter creates a reporter.
func NewReporter(opts Options, logger logging.Logger) *Reporter {
	if opts.Title == "" {
		opts.Title = "Label traits"
	}
	if opts.Unhighlighted == nil {
		opts.Unhighlighted = DefaultUnhighlighted
	}
	return &Reporter{opts: opts, logger: logging.OrNop(logger), now: time.Now}
}

// SummaryLines is the summary block in display order.
func SummaryLines(s quality.Summary, lengthCutoff int, scoreCutoff float64) []SummaryLine {
	return []SummaryLine{
		{"Total labels", fmt.Sprint(s.Total)},
		{"Kept", fmt.Sprint(s.Kept)},
		{"Total removed", fmt.Sprint(s.Removed())},
		{"Too short", fmt.Sprint(s.TooShort)},
		{"Score too low", fmt.Sprint(s.LowScore)},
		{"Length cutoff", fmt.Sprint(lengthCutoff)},
		{"Score cutoff", fmt.Sprint(scoreCutoff)},
	}
}

// Build assembles the view for the kept labels in identifier order.  An
// image that cannot be read is logged and left out.
func (r *Reporter) Build(ctx context.Context, labels []*label.Label, summary quality.Summary) (*View, error) {
	kept := make([]*label.Label, 0, len(labels))
	for _, lb := range labels {
		if lb.Outcome.Kept() {
			kept = append(kept, lb)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Identifier < kept[j].Identifier })

	view := &View{
		Title:       r.opts.Title,
		GeneratedAt: r.now(),
		Spotlight:   r.opts.Spotlight.String(),
		Summary:     SummaryLines(summary, r.opts.LengthCutoff, r.opts.ScoreCutoff),
	}
	for _, c := range label.Categories() {
		view.Categories = append(view.Categories, c.String())
	}

	for _, lb := range kept {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lv := LabelView{
			Identifier: lb.Identifier,
			WordCount:  lb.WordCount,
			ValidWords: lb.ValidWords,
			Score:      lb.Score,
			Segments:   r.segments(lb),
			Traits:     r.traits(lb),
		}
		if r.opts.Images != nil {
			img, err := r.opts.Images.Image(ctx, lb.Identifier)
			if err != nil {
				r.logger.Warn("label image skipped", logging.Identifier(lb.Identifier), logging.Err(err))
			} else if img != nil {
				lv.ImageURI = template.URL(img.DataURI())
			}
		}
		view.Labels = append(view.Labels, lv)
	}
	return view, nil
}

func (r *Reporter) highlighted(c label.Category) bool {
	for _, u := range r.opts.Unhighlighted {
		if u == c {
			return false
		}
	}
	return true
}

// segments splits the text at entity boundaries.  Entities are sorted and
// non-overlapping with rune offsets.
func (r *Reporter) segments(lb *label.Label) []Segment {
	text := []rune(lb.Text)
	var out []Segment
	pos := 0
	for _, e := range lb.Entities {
		if !r.highlighted(e.Category()) || e.Start < pos || e.End > len(text) {
			continue
		}
		if e.Start > pos {
			out = append(out, Segment{Text: string(text[pos:e.Start])})
		}
		out = append(out, Segment{
			Text:      string(text[e.Start:e.End]),
			Category:  e.Category().String(),
			Spotlight: r.opts.Spotlight != "" && e.Category() == r.opts.Spotlight,
		})
		pos = e.End
	}
	if pos < len(text) {
		out = append(out, Segment{Text: string(text[pos:])})
	}
	return out
}

func (r *Reporter) traits(lb *label.Label) []Trait {
	text := []rune(lb.Text)
	out := make([]Trait, 0, len(lb.Entities))
	for _, e := range lb.Entities {
		t := Trait{
			Category:  e.Category().String(),
			Spotlight: r.opts.Spotlight != "" && e.Category() == r.opts.Spotlight,
		}
		if e.End <= len(text) {
			t.Text = string(text[e.Start:e.End])
		}
		if e.Payload != nil {
			rec := dwc.New()
			e.Payload.ToDwC(rec)
			fields := rec.ToMap()
			for _, k := range rec.Keys() {
				t.Fields = append(t.Fields, Field{Term: k, Value: formatValue(fields[k])})
			}
		}
		out = append(out, t)
	}
	return out
}

func formatValue(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Sprint(v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s: %v", k, m[k])
	}
	return buf.String()
}

// Render writes the report HTML for view to w.
func Render(w io.Writer, view *View) error {
	if err := reportTemplate.Execute(w, view); err != nil {
		return errors.Wrap(err, errors.ErrCodeReportFailed, "render report")
	}
	return nil
}

// WriteFile builds and renders the report to path.
func (r *Reporter) WriteFile(ctx context.Context, path string, labels []*label.Label, summary quality.Summary) error {
	view, err := r.Build(ctx, labels, summary)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Render(&buf, view); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrCodeReportFailed, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrCodeReportFailed, "write %s", path)
	}
	r.logger.Info("report written", logging.Path(path), logging.Int("labels", len(view.Labels)))
	return nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"formatNumber": func(v float64, decimals int) string {
			return fmt.Sprintf("%.*f", decimals, v)
		},
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"hue": categoryHue,
	}
}

// categoryHue spreads the categories around the colour wheel.
func categoryHue(category string) int {
	cats := label.Categories()
	for i, c := range cats {
		if c.String() == category {
			return i * 360 / len(cats)
		}
	}
	return 0
}
