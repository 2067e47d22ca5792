package entity

// MetricsReport is one model's evaluation result, persisted as a metrics JSON
// file.
type MetricsReport struct {
	ModelPath        string             `json:"model_path"`
	NumSamples       int                `json:"num_samples"`
	Metrics          map[string]float64 `json:"metrics"`
	RequestedMetrics []string           `json:"requested_metrics"`
}

// PredictionRecord is one ndjson line of a predictions log.
type PredictionRecord struct {
	Text           string  `json:"text"`
	TrueLabel      string  `json:"true_label"`
	PredictedLabel string  `json:"predicted_label"`
	Confidence     float64 `json:"confidence"`
}

// MetricComparison holds one metric's baseline/fine-tuned pairing.
// PercentChange is 0 when the baseline value is 0.
type MetricComparison struct {
	Baseline      float64 `json:"baseline"`
	FineTuned     float64 `json:"fine_tuned"`
	AbsoluteDiff  float64 `json:"absolute_diff"`
	PercentChange float64 `json:"percent_change"`
}

// ComparisonResult is the comparison.json document: both source reports plus
// the per-metric deltas. Improvements lists the metrics whose absolute
// difference is strictly positive.
type ComparisonResult struct {
	Baseline     MetricsReport               `json:"baseline"`
	FineTuned    MetricsReport               `json:"fine_tuned"`
	Comparison   map[string]MetricComparison `json:"comparison"`
	Improvements []string                    `json:"improvements"`
}
