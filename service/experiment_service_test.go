package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejosephstevens/model-experiments/entity"
	"github.com/thejosephstevens/model-experiments/mlbackend"
)

type fakeRegistry struct {
	saved     []*entity.ExperimentRecord
	statuses  []string
	stages    []string
	saveErr   error
	updateErr error
}

func (f *fakeRegistry) Save(ctx context.Context, record *entity.ExperimentRecord) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, record)
	return nil
}

func (f *fakeRegistry) UpdateStatus(ctx context.Context, experimentID, status, failureStage string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.statuses = append(f.statuses, status)
	f.stages = append(f.stages, failureStage)
	return nil
}

func newExperimentFixture(backend mlbackend.Client, registry ExperimentRegistry) *ExperimentService {
	svc := NewExperimentService(backend, registry)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	}
	return svc
}

func TestExperimentServiceRunFullPipeline(t *testing.T) {
	baseDir := t.TempDir()
	mock := mlbackend.NewMockClient()
	registry := &fakeRegistry{}
	svc := newExperimentFixture(mock, registry)

	result, err := svc.Run(context.Background(), ExperimentRequest{
		DatasetName: "imdb",
		ModelName:   "distilbert/distilbert-base-uncased",
		Profile:     "quick",
		BaseDir:     baseDir,
	})
	require.NoError(t, err)

	assert.Equal(t, "exp_20260830_103000_imdb_distilbert-base-uncased", result.Summary.ExperimentID)
	assert.Equal(t, "quick", result.Summary.Profile)
	assert.False(t, result.Summary.TrainSkipped)
	require.NotNil(t, result.Summary.ProfileConfig.MaxSamples)
	assert.Equal(t, 100, *result.Summary.ProfileConfig.MaxSamples)

	root := result.Summary.Directories.ExperimentRoot
	for _, path := range []string{
		filepath.Join(root, ExperimentMetadataFileName),
		result.Summary.Files.BaseMetrics,
		result.Summary.Files.FineTunedMetrics,
		result.Summary.Files.BasePredictions,
		result.Summary.Files.FineTunedPredictions,
		result.Summary.Files.ComparisonJSON,
		result.Summary.Files.ComparisonReport,
		filepath.Join(result.Summary.Directories.FineTunedModel, TrainingMetadataFileName),
	} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	// Every backend operation ran exactly once, except the two evaluations.
	assert.Equal(t, 1, mock.DownloadDatasetCalled)
	assert.Equal(t, 1, mock.DownloadModelCalled)
	assert.Equal(t, 1, mock.TrainCalled)
	assert.Equal(t, 2, mock.PredictCalled)
	assert.Equal(t, 2, mock.ComputeMetricsCalled)

	require.Len(t, registry.saved, 1)
	assert.Equal(t, entity.ExperimentStatusRunning, registry.saved[0].Status)
	assert.Equal(t, []string{entity.ExperimentStatusCompleted}, registry.statuses)
}

func TestExperimentServiceRunUsesValidationSplitFallback(t *testing.T) {
	baseDir := t.TempDir()
	mock := mlbackend.NewMockClient()
	// Dataset with a validation split but no test split: training and
	// evaluation both fall back to validation.
	mock.SplitsByName = map[string]map[string][]entity.Example{
		"custom": {
			"train": {
				{Text: "good", Label: "positive"},
				{Text: "bad", Label: "negative"},
			},
			"validation": {
				{Text: "fine", Label: "positive"},
			},
		},
	}
	svc := newExperimentFixture(mock, nil)

	result, err := svc.Run(context.Background(), ExperimentRequest{
		DatasetName: "custom",
		ModelName:   "distilbert-base-uncased",
		Profile:     "quick",
		BaseDir:     baseDir,
	})
	require.NoError(t, err)

	validationPath := filepath.Join(result.Summary.Directories.Data, "validation", splitDataFileName)
	assert.Equal(t, validationPath, mock.LastTrainRequest.ValDataPath)

	var report entity.MetricsReport
	require.NoError(t, readJSONFile(result.Summary.Files.FineTunedMetrics, &report))
	assert.Equal(t, 1, report.NumSamples)
}

func TestExperimentServiceRunPrefersTestSplitForTraining(t *testing.T) {
	baseDir := t.TempDir()
	mock := mlbackend.NewMockClient()
	// All three splits present: the test split is the held-out file for both
	// the trainer's validation data and the evaluations.
	mock.SplitsByName = map[string]map[string][]entity.Example{
		"custom": {
			"train": {
				{Text: "good", Label: "positive"},
				{Text: "bad", Label: "negative"},
			},
			"validation": {
				{Text: "fine", Label: "positive"},
			},
			"test": {
				{Text: "great", Label: "positive"},
				{Text: "awful", Label: "negative"},
			},
		},
	}
	svc := newExperimentFixture(mock, nil)

	result, err := svc.Run(context.Background(), ExperimentRequest{
		DatasetName: "custom",
		ModelName:   "distilbert-base-uncased",
		Profile:     "quick",
		BaseDir:     baseDir,
	})
	require.NoError(t, err)

	testPath := filepath.Join(result.Summary.Directories.Data, "test", splitDataFileName)
	assert.Equal(t, testPath, mock.LastTrainRequest.ValDataPath)

	var report entity.MetricsReport
	require.NoError(t, readJSONFile(result.Summary.Files.FineTunedMetrics, &report))
	assert.Equal(t, 2, report.NumSamples)
}

func TestExperimentServiceRunNoEvaluationSplit(t *testing.T) {
	baseDir := t.TempDir()
	mock := mlbackend.NewMockClient()
	mock.SplitsByName = map[string]map[string][]entity.Example{
		"trainonly": {
			"train": {{Text: "good", Label: "positive"}},
		},
	}
	svc := newExperimentFixture(mock, nil)

	_, err := svc.Run(context.Background(), ExperimentRequest{
		DatasetName: "trainonly",
		ModelName:   "distilbert-base-uncased",
		Profile:     "quick",
		BaseDir:     baseDir,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEvaluationSplit)

	var expErr *ExperimentError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, StageDatasetDownload, expErr.Stage)
}

func TestExperimentServiceRunStageFailureKeepsPartialOutputs(t *testing.T) {
	baseDir := t.TempDir()
	mock := mlbackend.NewMockClient()
	mock.TrainError = errors.New("runner crashed")
	registry := &fakeRegistry{}
	svc := newExperimentFixture(mock, registry)

	_, err := svc.Run(context.Background(), ExperimentRequest{
		DatasetName: "imdb",
		ModelName:   "distilbert-base-uncased",
		Profile:     "quick",
		BaseDir:     baseDir,
	})
	require.Error(t, err)

	var expErr *ExperimentError
	require.ErrorAs(t, err, &expErr)
	assert.Equal(t, StageTraining, expErr.Stage)
	assert.Contains(t, expErr.Error(), expErr.Dir)

	// Earlier stage outputs survive for a re-run.
	dataDir := filepath.Join(expErr.Dir, "data", "train", splitDataFileName)
	_, statErr := os.Stat(dataDir)
	assert.NoError(t, statErr)

	// No experiment manifest for a failed run.
	_, statErr = os.Stat(filepath.Join(expErr.Dir, ExperimentMetadataFileName))
	assert.True(t, os.IsNotExist(statErr))

	assert.Equal(t, []string{entity.ExperimentStatusFailed}, registry.statuses)
	assert.Equal(t, []string{StageTraining}, registry.stages)
}

func TestExperimentServiceRunRegistryFailureDoesNotBlock(t *testing.T) {
	baseDir := t.TempDir()
	registry := &fakeRegistry{saveErr: errors.New("disk full")}
	svc := newExperimentFixture(mlbackend.NewMockClient(), registry)

	result, err := svc.Run(context.Background(), ExperimentRequest{
		DatasetName: "imdb",
		ModelName:   "distilbert-base-uncased",
		Profile:     "quick",
		BaseDir:     baseDir,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Summary.ExperimentID)
	assert.Empty(t, registry.statuses)
}

func TestExperimentServiceRunUnknownProfile(t *testing.T) {
	svc := newExperimentFixture(mlbackend.NewMockClient(), nil)

	_, err := svc.Run(context.Background(), ExperimentRequest{
		DatasetName: "imdb",
		ModelName:   "distilbert-base-uncased",
		Profile:     "turbo",
	})
	assert.ErrorIs(t, err, ErrUnknownProfile)
}

func TestGenerateExperimentIDSanitizes(t *testing.T) {
	at := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)

	id := generateExperimentID(at, "glue mrpc", "org/some model")
	assert.Equal(t, "exp_20260830_103000_glue_mrpc_some_model", id)
}
