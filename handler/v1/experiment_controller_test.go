package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejosephstevens/model-experiments/dao"
	"github.com/thejosephstevens/model-experiments/entity"
)

func seedExperiment(t *testing.T, record *entity.ExperimentRecord) {
	t.Helper()
	require.NoError(t, dao.NewExperimentDAO().Save(context.Background(), record))
}

func TestExperimentAPI(t *testing.T) {
	experimentID := fmt.Sprintf("exp_20260830_103000_imdb_%d", time.Now().UnixNano())
	seedExperiment(t, &entity.ExperimentRecord{
		ExperimentID: experimentID,
		DatasetName:  "imdb",
		ModelName:    "distilbert-base-uncased",
		Profile:      "quick",
		ConfigHash:   "deadbeef",
		Status:       entity.ExperimentStatusCompleted,
		Directory:    t.TempDir(),
	})

	t.Run("List Experiments", func(t *testing.T) {
		w := performRequest(testRouter, "GET", "/v1/experiments?page=1&page_size=10", nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var result entity.PageResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Total >= 1)
	})

	t.Run("Filter Experiments", func(t *testing.T) {
		w := performRequest(testRouter, "GET", "/v1/experiments?dataset_name=imdb&status=completed", nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var result entity.PageResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Total >= 1)
	})

	t.Run("Get Experiment", func(t *testing.T) {
		w := performRequest(testRouter, "GET", "/v1/experiments/"+experimentID, nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var record entity.ExperimentRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
		assert.Equal(t, experimentID, record.ExperimentID)
		assert.Equal(t, "distilbert-base-uncased", record.ModelName)
	})

	t.Run("Get Missing Experiment", func(t *testing.T) {
		w := performRequest(testRouter, "GET", "/v1/experiments/exp_no_such_run", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestExperimentComparisonAPI(t *testing.T) {
	dir := t.TempDir()
	experimentID := fmt.Sprintf("exp_20260830_110000_sst2_%d", time.Now().UnixNano())
	seedExperiment(t, &entity.ExperimentRecord{
		ExperimentID: experimentID,
		DatasetName:  "sst2",
		ModelName:    "distilbert-base-uncased",
		Profile:      "default",
		Status:       entity.ExperimentStatusCompleted,
		Directory:    dir,
	})

	want := entity.ComparisonResult{
		Baseline:  entity.MetricsReport{ModelPath: "models/base", NumSamples: 100, Metrics: map[string]float64{"accuracy": 0.5}},
		FineTuned: entity.MetricsReport{ModelPath: "models/fine-tuned", NumSamples: 100, Metrics: map[string]float64{"accuracy": 0.9}},
		Comparison: map[string]entity.MetricComparison{
			"accuracy": {Baseline: 0.5, FineTuned: 0.9, AbsoluteDiff: 0.4, PercentChange: 80},
		},
		Improvements: []string{"accuracy"},
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "comparison"), 0o755))
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "comparison", "comparison.json"), raw, 0o644))

	t.Run("Get Comparison", func(t *testing.T) {
		w := performRequest(testRouter, "GET", "/v1/experiments/"+experimentID+"/comparison", nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var got entity.ComparisonResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, want.Comparison["accuracy"], got.Comparison["accuracy"])
		assert.Equal(t, []string{"accuracy"}, got.Improvements)
	})

	t.Run("Comparison File Missing", func(t *testing.T) {
		missingID := fmt.Sprintf("exp_20260830_120000_imdb_%d", time.Now().UnixNano())
		seedExperiment(t, &entity.ExperimentRecord{
			ExperimentID: missingID,
			DatasetName:  "imdb",
			ModelName:    "bert-base-uncased",
			Profile:      "quick",
			Status:       entity.ExperimentStatusFailed,
			Directory:    t.TempDir(),
		})

		w := performRequest(testRouter, "GET", "/v1/experiments/"+missingID+"/comparison", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRunnerAPIWithoutRedis(t *testing.T) {
	// Redis 未初始化时应返回 503 而不是 panic
	w := performRequest(testRouter, "GET", "/v1/runners", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
