package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thejosephstevens/model-experiments/entity"
)

type cacheFixture struct {
	artifactDir   string
	trainDataPath string
	valDataPath   string
	cfg           entity.TrainingConfig
	metadata      entity.TrainingMetadata
}

// newCacheFixture builds an artifact directory that passes every check.
func newCacheFixture(t *testing.T) *cacheFixture {
	t.Helper()
	tmpDir := t.TempDir()

	trainDataPath := filepath.Join(tmpDir, "train.jsonl")
	valDataPath := filepath.Join(tmpDir, "validation.jsonl")
	require.NoError(t, os.WriteFile(trainDataPath, []byte(`{"text":"a","label":1}`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(valDataPath, []byte(`{"text":"b","label":0}`+"\n"), 0o644))

	cfg := entity.TrainingConfig{
		ModelName:                 "distilbert-base-uncased",
		Epochs:                    3,
		BatchSize:                 16,
		LearningRate:              2e-5,
		WarmupSteps:               100,
		SaveSteps:                 500,
		LoggingSteps:              50,
		EvalSteps:                 250,
		MaxLength:                 512,
		GradientAccumulationSteps: 2,
		Seed:                      42,
	}
	fingerprint, err := cfg.Fingerprint()
	require.NoError(t, err)

	trainMTime, err := fileMTime(trainDataPath)
	require.NoError(t, err)
	valMTime, err := fileMTime(valDataPath)
	require.NoError(t, err)

	artifactDir := filepath.Join(tmpDir, "fine-tuned")
	require.NoError(t, os.MkdirAll(artifactDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "config.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(artifactDir, "pytorch_model.bin"), []byte("weights"), 0o644))

	metadata := entity.TrainingMetadata{
		ModelName:         cfg.ModelName,
		TrainDataPath:     trainDataPath,
		TrainDataMTime:    trainMTime,
		ValDataPath:       valDataPath,
		ValDataMTime:      valMTime,
		ConfigHash:        fingerprint,
		TrainingParams:    cfg,
		TrainingSamples:   8,
		ValidationSamples: 2,
		TotalSteps:        24,
		Completed:         true,
	}

	fixture := &cacheFixture{
		artifactDir:   artifactDir,
		trainDataPath: trainDataPath,
		valDataPath:   valDataPath,
		cfg:           cfg,
		metadata:      metadata,
	}
	fixture.writeMetadata(t)
	return fixture
}

func (f *cacheFixture) writeMetadata(t *testing.T) {
	t.Helper()
	require.NoError(t, writeJSONFile(filepath.Join(f.artifactDir, TrainingMetadataFileName), f.metadata))
}

func (f *cacheFixture) validate() CacheDecision {
	return NewTrainingCacheService().Validate(f.artifactDir, f.cfg, f.trainDataPath, f.valDataPath)
}

func TestTrainingCacheServiceValidateHit(t *testing.T) {
	fixture := newCacheFixture(t)

	decision := fixture.validate()

	assert.True(t, decision.Valid)
	assert.Equal(t, CacheMissNone, decision.Reason)
	require.NotNil(t, decision.Metadata)
	assert.Equal(t, fixture.metadata.ConfigHash, decision.Metadata.ConfigHash)
}

func TestTrainingCacheServiceValidateMetadataMissing(t *testing.T) {
	fixture := newCacheFixture(t)
	require.NoError(t, os.Remove(filepath.Join(fixture.artifactDir, TrainingMetadataFileName)))

	decision := fixture.validate()

	assert.False(t, decision.Valid)
	assert.Equal(t, CacheMissMetadataMissing, decision.Reason)
}

func TestTrainingCacheServiceValidateIncompleteRun(t *testing.T) {
	fixture := newCacheFixture(t)
	fixture.metadata.Completed = false
	fixture.writeMetadata(t)

	decision := fixture.validate()

	assert.False(t, decision.Valid)
	assert.Equal(t, CacheMissIncompleteRun, decision.Reason)
}

func TestTrainingCacheServiceValidateModelChanged(t *testing.T) {
	fixture := newCacheFixture(t)
	fixture.cfg.ModelName = "bert-base-uncased"

	decision := fixture.validate()

	assert.False(t, decision.Valid)
	assert.Equal(t, CacheMissModelChanged, decision.Reason)
}

func TestTrainingCacheServiceValidateConfigChanged(t *testing.T) {
	fixture := newCacheFixture(t)
	fixture.cfg.Epochs = 4

	decision := fixture.validate()

	assert.False(t, decision.Valid)
	assert.Equal(t, CacheMissConfigChanged, decision.Reason)
	assert.Contains(t, decision.Detail, "cached ")
}

func TestTrainingCacheServiceValidateInputPathChanged(t *testing.T) {
	fixture := newCacheFixture(t)
	moved := filepath.Join(t.TempDir(), "train.jsonl")
	data, err := os.ReadFile(fixture.trainDataPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(moved, data, 0o644))
	fixture.trainDataPath = moved

	decision := fixture.validate()

	assert.False(t, decision.Valid)
	assert.Equal(t, CacheMissInputPathChanged, decision.Reason)
}

func TestTrainingCacheServiceValidateInputMissing(t *testing.T) {
	fixture := newCacheFixture(t)
	require.NoError(t, os.Remove(fixture.valDataPath))

	decision := fixture.validate()

	assert.False(t, decision.Valid)
	assert.Equal(t, CacheMissInputMissing, decision.Reason)
	assert.Equal(t, fixture.valDataPath, decision.Detail)
}

func TestTrainingCacheServiceValidateInputModified(t *testing.T) {
	fixture := newCacheFixture(t)
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(fixture.trainDataPath, later, later))

	decision := fixture.validate()

	assert.False(t, decision.Valid)
	assert.Equal(t, CacheMissInputModified, decision.Reason)
}

func TestTrainingCacheServiceValidateInputTouchedSameContent(t *testing.T) {
	fixture := newCacheFixture(t)
	// Same bytes, new timestamp: exact-equality comparison must still miss.
	data, err := os.ReadFile(fixture.trainDataPath)
	require.NoError(t, err)
	later := time.Now().Add(3 * time.Second)
	require.NoError(t, os.WriteFile(fixture.trainDataPath, data, 0o644))
	require.NoError(t, os.Chtimes(fixture.trainDataPath, later, later))

	decision := fixture.validate()

	assert.False(t, decision.Valid)
	assert.Equal(t, CacheMissInputModified, decision.Reason)
}

func TestTrainingCacheServiceValidateArtifactFilesMissing(t *testing.T) {
	fixture := newCacheFixture(t)
	require.NoError(t, os.Remove(filepath.Join(fixture.artifactDir, "pytorch_model.bin")))

	decision := fixture.validate()

	assert.False(t, decision.Valid)
	assert.Equal(t, CacheMissArtifactMissing, decision.Reason)
}

func TestTrainingCacheServiceValidateAcceptsAlternateWeightFormat(t *testing.T) {
	fixture := newCacheFixture(t)
	require.NoError(t, os.Remove(filepath.Join(fixture.artifactDir, "pytorch_model.bin")))
	require.NoError(t, os.WriteFile(filepath.Join(fixture.artifactDir, "model.safetensors"), []byte("weights"), 0o644))

	decision := fixture.validate()

	assert.True(t, decision.Valid)
}

func TestTrainingCacheServiceValidateStopsAtFirstFailure(t *testing.T) {
	fixture := newCacheFixture(t)
	// Both the completed flag and the model name are wrong; the earlier check
	// must win.
	fixture.metadata.Completed = false
	fixture.writeMetadata(t)
	fixture.cfg.ModelName = "bert-base-uncased"

	decision := fixture.validate()

	assert.Equal(t, CacheMissIncompleteRun, decision.Reason)
}
