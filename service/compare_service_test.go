package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejosephstevens/model-experiments/entity"
)

func metricsReport(modelPath string, metrics map[string]float64) entity.MetricsReport {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	return entity.MetricsReport{
		ModelPath:        modelPath,
		NumSamples:       100,
		Metrics:          metrics,
		RequestedMetrics: names,
	}
}

func TestBuildComparisonComputesDiffs(t *testing.T) {
	baseline := metricsReport("models/base", map[string]float64{
		"accuracy": 0.80,
		"f1":       0.75,
	})
	fineTuned := metricsReport("models/fine-tuned", map[string]float64{
		"accuracy": 0.85,
		"f1":       0.70,
	})

	result, err := BuildComparison(baseline, fineTuned)
	require.NoError(t, err)

	accuracy := result.Comparison["accuracy"]
	assert.InDelta(t, 0.05, accuracy.AbsoluteDiff, 1e-9)
	assert.InDelta(t, 6.25, accuracy.PercentChange, 1e-9)

	f1 := result.Comparison["f1"]
	assert.InDelta(t, -0.05, f1.AbsoluteDiff, 1e-9)

	// Only metrics that got better are listed.
	assert.Equal(t, []string{"accuracy"}, result.Improvements)
}

func TestBuildComparisonZeroBaseline(t *testing.T) {
	baseline := metricsReport("models/base", map[string]float64{"f1": 0})
	fineTuned := metricsReport("models/fine-tuned", map[string]float64{"f1": 0.6})

	result, err := BuildComparison(baseline, fineTuned)
	require.NoError(t, err)

	f1 := result.Comparison["f1"]
	assert.InDelta(t, 0.6, f1.AbsoluteDiff, 1e-9)
	assert.Zero(t, f1.PercentChange)
	assert.Equal(t, []string{"f1"}, result.Improvements)
}

func TestBuildComparisonIgnoresUnsharedMetrics(t *testing.T) {
	baseline := metricsReport("models/base", map[string]float64{
		"accuracy": 0.80,
		"recall":   0.70,
	})
	fineTuned := metricsReport("models/fine-tuned", map[string]float64{
		"accuracy":  0.82,
		"precision": 0.90,
	})

	result, err := BuildComparison(baseline, fineTuned)
	require.NoError(t, err)

	assert.Len(t, result.Comparison, 1)
	assert.Contains(t, result.Comparison, "accuracy")
}

func TestBuildComparisonNoCommonMetrics(t *testing.T) {
	baseline := metricsReport("models/base", map[string]float64{"accuracy": 0.80})
	fineTuned := metricsReport("models/fine-tuned", map[string]float64{"recall": 0.70})

	_, err := BuildComparison(baseline, fineTuned)
	assert.ErrorIs(t, err, ErrNoCommonMetrics)
}

func TestCompareServicePersistsComparisonAndReport(t *testing.T) {
	tmpDir := t.TempDir()
	baselinePath := filepath.Join(tmpDir, "base_model_metrics.json")
	fineTunedPath := filepath.Join(tmpDir, "fine_tuned_metrics.json")
	require.NoError(t, writeJSONFile(baselinePath, metricsReport("models/base", map[string]float64{"accuracy": 0.80})))
	require.NoError(t, writeJSONFile(fineTunedPath, metricsReport("models/fine-tuned", map[string]float64{"accuracy": 0.85})))

	outputDir := filepath.Join(tmpDir, "comparison")
	outcome, err := NewCompareService().Compare(CompareRequest{
		BaselinePath:  baselinePath,
		FineTunedPath: fineTunedPath,
		OutputDir:     outputDir,
		Format:        ComparisonFormatTable,
		SaveReport:    true,
	})
	require.NoError(t, err)

	assert.Contains(t, outcome.Rendered, "accuracy")
	assert.Contains(t, outcome.Rendered, "improved: accuracy")

	var persisted entity.ComparisonResult
	require.NoError(t, readJSONFile(filepath.Join(outputDir, ComparisonFileName), &persisted))
	assert.Equal(t, outcome.Result.Improvements, persisted.Improvements)

	report, err := os.ReadFile(filepath.Join(outputDir, ComparisonReportName))
	require.NoError(t, err)
	assert.Contains(t, string(report), "<table>")
	assert.Contains(t, string(report), "models/fine-tuned")
}

func TestCompareServiceRejectsUnknownFormat(t *testing.T) {
	_, err := NewCompareService().Compare(CompareRequest{Format: "xml"})
	assert.ErrorIs(t, err, ErrInvalidComparisonFormat)
}

func TestCompareServiceMissingBaseline(t *testing.T) {
	tmpDir := t.TempDir()
	fineTunedPath := filepath.Join(tmpDir, "fine_tuned_metrics.json")
	require.NoError(t, writeJSONFile(fineTunedPath, metricsReport("models/fine-tuned", map[string]float64{"accuracy": 0.85})))

	_, err := NewCompareService().Compare(CompareRequest{
		BaselinePath:  filepath.Join(tmpDir, "missing.json"),
		FineTunedPath: fineTunedPath,
	})
	assert.ErrorIs(t, err, ErrBaselineMetricsNotFound)
}
