package prometheus

import "time"

// Outcome label values for LabelsProcessedTotal.
const (
	OutcomeKept     = "kept"
	OutcomeTooShort = "too_short"
	OutcomeLowScore = "low_score"
	OutcomeFailed   = "failed"
)

// DefaultLabelDurationBuckets covers per-label processing, which is dominated
// by text decoding and the entity stream read.
var DefaultLabelDurationBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1}

// PipelineMetrics holds the metrics recorded during one batch run.
type PipelineMetrics struct {
	LabelsProcessedTotal CounterVec
	EntitiesDroppedTotal CounterVec
	UnknownEntitiesTotal CounterVec
	LabelDuration        HistogramVec
	ExportRowsTotal      CounterVec
	ExportDuration       HistogramVec
	VocabularySize       GaugeVec
	LastRunTimestamp     GaugeVec
	LastRunSuccess       GaugeVec
}

// NewPipelineMetrics registers the pipeline metrics on collector.
func NewPipelineMetrics(collector MetricsCollector) *PipelineMetrics {
	return &PipelineMetrics{
		LabelsProcessedTotal: collector.RegisterCounter("labels_processed_total",
			"Labels processed, by filter outcome.", "outcome"),
		EntitiesDroppedTotal: collector.RegisterCounter("entities_dropped_total",
			"Entities removed by a pipeline stage.", "stage"),
		UnknownEntitiesTotal: collector.RegisterCounter("unknown_entities_total",
			"Entities with an unrecognised category that were ignored.", "category"),
		LabelDuration: collector.RegisterHistogram("label_duration_seconds",
			"Time spent processing a single label.", DefaultLabelDurationBuckets),
		ExportRowsTotal: collector.RegisterCounter("export_rows_total",
			"Records written, by destination.", "sink"),
		ExportDuration: collector.RegisterHistogram("export_duration_seconds",
			"Time spent writing to a destination.", nil, "sink"),
		VocabularySize: collector.RegisterGauge("vocabulary_size",
			"Distinct tokens in the run vocabulary."),
		LastRunTimestamp: collector.RegisterGauge("last_run_timestamp_seconds",
			"Unix time the last run finished."),
		LastRunSuccess: collector.RegisterGauge("last_run_success",
			"1 when the last run completed without a fatal error."),
	}
}

// RecordLabel counts one label outcome and its processing time.
func (m *PipelineMetrics) RecordLabel(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.LabelsProcessedTotal.WithLabelValues(outcome).Inc()
	m.LabelDuration.WithLabelValues().Observe(d.Seconds())
}

// RecordDropped counts entities a stage removed.
func (m *PipelineMetrics) RecordDropped(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EntitiesDroppedTotal.WithLabelValues(stage).Add(float64(n))
}

// RecordUnknownEntity counts an ignored entity with an unrecognised category.
func (m *PipelineMetrics) RecordUnknownEntity(category string) {
	if m == nil {
		return
	}
	m.UnknownEntitiesTotal.WithLabelValues(category).Inc()
}

// RecordExport counts rows written to a destination.
func (m *PipelineMetrics) RecordExport(sink string, rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.ExportRowsTotal.WithLabelValues(sink).Add(float64(rows))
	m.ExportDuration.WithLabelValues(sink).Observe(d.Seconds())
}

// RecordVocabulary sets the vocabulary size gauge.
func (m *PipelineMetrics) RecordVocabulary(size int) {
	if m == nil {
		return
	}
	m.VocabularySize.WithLabelValues().Set(float64(size))
}

// RecordRunFinished stamps the end of a run.
func (m *PipelineMetrics) RecordRunFinished(at time.Time, ok bool) {
	if m == nil {
		return
	}
	m.LastRunTimestamp.WithLabelValues().Set(float64(at.Unix()))
	v := 0.0
	if ok {
		v = 1
	}
	m.LastRunSuccess.WithLabelValues().Set(v)
}
