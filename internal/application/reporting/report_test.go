package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/label-traiter/internal/domain/label"
	"github.com/turtacn/label-traiter/internal/intelligence/quality"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func entity(t *testing.T, category string, start, end int, payload string) label.Entity {
	t.Helper()
	e, err := label.NewEntity(label.RawEntity{Category: category, Start: start, End: end, Payload: json.RawMessage(payload)}, start)
	require.NoError(t, err)
	return e
}

// "Süd bog T1N No. 55"
func testLabel(t *testing.T) *label.Label {
	return &label.Label{
		Identifier: "lbl",
		Text:       "Süd bog T1N No. 55",
		WordCount:  5, ValidWords: 4, Score: 0.8,
		Outcome: label.OutcomeKeep,
		Entities: []label.Entity{
			entity(t, "habitat", 4, 7, `{"habitat":"bog"}`),
			entity(t, "trs", 8, 11, `{"trs":"T1N"}`),
			entity(t, "id_number", 12, 18, `{"number":"55","type":"record_number","has_label":true}`),
		},
	}
}

type mockImages struct{ mock.Mock }

func (m *mockImages) Image(ctx context.Context, identifier string) (*Image, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Image), args.Error(1)
}

func TestSummaryLines(t *testing.T) {
	lines := SummaryLines(quality.Summary{Total: 10, Kept: 6, TooShort: 3, LowScore: 1}, 20, 0.5)
	assert.Equal(t, []SummaryLine{
		{"Total labels", "10"},
		{"Kept", "6"},
		{"Total removed", "4"},
		{"Too short", "3"},
		{"Score too low", "1"},
		{"Length cutoff", "20"},
		{"Score cutoff", "0.5"},
	}, lines)
}

func TestBuild_Segments(t *testing.T) {
	r := NewReporter(Options{Spotlight: label.CategoryIDNumber}, nil)
	rejected := &label.Label{Identifier: "aaa", Outcome: label.OutcomeTooShort}

	view, err := r.Build(context.Background(), []*label.Label{testLabel(t), rejected}, quality.Summary{})
	require.NoError(t, err)
	require.Len(t, view.Labels, 1)

	lv := view.Labels[0]
	assert.Equal(t, []Segment{
		{Text: "Süd "},
		{Text: "bog", Category: "habitat"},
		{Text: " T1N "},
		{Text: "No. 55", Category: "id_number", Spotlight: true},
	}, lv.Segments)

	require.Len(t, lv.Traits, 3)
	assert.Equal(t, "trs", lv.Traits[1].Category)
	assert.Equal(t, "T1N", lv.Traits[1].Text)
	assert.True(t, lv.Traits[2].Spotlight)
	assert.Equal(t, []Field{
		{Term: "dynamicProperties", Value: "recordNumberIsLabeled: true"},
		{Term: "recordNumber", Value: "55"},
	}, lv.Traits[2].Fields)
	assert.Empty(t, lv.ImageURI)
	assert.Equal(t, "id_number", view.Spotlight)
}

func TestBuild_Images(t *testing.T) {
	ctx := context.Background()

	t.Run("embedded", func(t *testing.T) {
		images := new(mockImages)
		images.On("Image", mock.Anything, "lbl").Return(&Image{MIMEType: "image/png", Data: []byte("x")}, nil)
		view, err := NewReporter(Options{Images: images}, nil).Build(ctx, []*label.Label{testLabel(t)}, quality.Summary{})
		require.NoError(t, err)
		assert.EqualValues(t, "data:image/png;base64,eA==", view.Labels[0].ImageURI)
	})

	t.Run("missing", func(t *testing.T) {
		images := new(mockImages)
		images.On("Image", mock.Anything, "lbl").Return(nil, nil)
		view, err := NewReporter(Options{Images: images}, nil).Build(ctx, []*label.Label{testLabel(t)}, quality.Summary{})
		require.NoError(t, err)
		assert.Empty(t, view.Labels[0].ImageURI)
	})

	t.Run("unreadable is skipped", func(t *testing.T) {
		images := new(mockImages)
		images.On("Image", mock.Anything, "lbl").Return(nil, errors.New("permission denied"))
		view, err := NewReporter(Options{Images: images}, nil).Build(ctx, []*label.Label{testLabel(t)}, quality.Summary{})
		require.NoError(t, err)
		assert.Empty(t, view.Labels[0].ImageURI)
	})
}

func TestRender(t *testing.T) {
	r := NewReporter(Options{LengthCutoff: 3, ScoreCutoff: 0.5, Spotlight: label.CategoryHabitat}, nil)
	r.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }

	lb := testLabel(t)
	lb.Text = "Süd <b> T1N No. 55"
	view, err := r.Build(context.Background(), []*label.Label{lb}, quality.Summary{Total: 2, Kept: 1, LowScore: 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, view))
	html := buf.String()

	assert.Contains(t, html, `<mark class="cat-habitat spotlight" title="habitat">&lt;b&gt;</mark>`)
	assert.Contains(t, html, `<mark class="cat-id_number" title="id_number">No. 55</mark>`)
	assert.NotContains(t, html, `title="trs"`)
	assert.Contains(t, html, "<td>Total removed:</td><td>1</td>")
	assert.Contains(t, html, "<td>Score cutoff:</td><td>0.5</td>")
	assert.Contains(t, html, "Generated 2024-05-01 09:30:00")
	assert.Contains(t, html, "score: 0.80")
	assert.Contains(t, html, ".cat-habitat {")
}

func TestWriteFile(t *testing.T) {
	imgDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(imgDir, "lbl.png"), pngHeader, 0o644))

	out := filepath.Join(t.TempDir(), "report", "labels.html")
	r := NewReporter(Options{Images: DirImages{Dir: imgDir}}, nil)
	require.NoError(t, r.WriteFile(context.Background(), out, []*label.Label{testLabel(t)}, quality.Summary{Total: 1, Kept: 1}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `src="data:image/png;base64,`))
}

func TestCategoryHue(t *testing.T) {
	seen := map[int]bool{}
	for _, c := range label.Categories() {
		h := categoryHue(c.String())
		assert.False(t, seen[h], "hue %d reused", h)
		seen[h] = true
	}
	assert.Equal(t, 0, categoryHue("nope"))
}
