package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thejosephstevens/model-experiments/entity"
	"github.com/thejosephstevens/model-experiments/mlbackend"
)

// Pipeline stage names, in execution order.
const (
	StageSetup               = "setup"
	StageDatasetDownload     = "dataset_download"
	StageModelDownload       = "model_download"
	StageTraining            = "training"
	StageBaseEvaluation      = "base_evaluation"
	StageFineTunedEvaluation = "fine_tuned_evaluation"
	StageComparison          = "comparison"
)

const ExperimentMetadataFileName = "experiment_metadata.json"

var ErrNoEvaluationSplit = errors.New("dataset has neither test nor validation split")

// ExperimentError reports which stage of a pipeline run failed and where its
// partial outputs live. Earlier stage outputs are deliberately left in place
// so a re-run can reuse them.
type ExperimentError struct {
	Stage string
	Dir   string
	Err   error
}

func (e *ExperimentError) Error() string {
	return fmt.Sprintf("experiment failed at stage %s (outputs under %s): %v", e.Stage, e.Dir, e.Err)
}

func (e *ExperimentError) Unwrap() error {
	return e.Err
}

// ExperimentRegistry records pipeline runs. dao.ExperimentDAO implements it;
// a nil registry disables recording.
type ExperimentRegistry interface {
	Save(ctx context.Context, record *entity.ExperimentRecord) error
	UpdateStatus(ctx context.Context, experimentID, status, failureStage string) error
}

// ExperimentRequest names the inputs of one end-to-end run.
type ExperimentRequest struct {
	DatasetName string
	ModelName   string
	Profile     string
	BaseDir     string // experiments land under <BaseDir>/<experiment-id>
	Metrics     []string
	Force       bool // re-train even when the cache is valid
}

// ExperimentResult is the in-memory counterpart of experiment_metadata.json
// plus the computed comparison.
type ExperimentResult struct {
	Summary    entity.ExperimentSummary
	Comparison entity.ComparisonResult
}

// ExperimentService runs the whole fine-tune-and-compare pipeline: dataset
// download, base model download, fine-tuning, two evaluation passes, and the
// comparison, each stage writing into its own subdirectory of a fresh
// experiment tree.
type ExperimentService struct {
	Datasets *DatasetService
	Models   *ModelService
	Training *TrainingService
	Evaluate *EvaluateService
	Compare  *CompareService
	Registry ExperimentRegistry

	// now is swapped in tests to pin the experiment id.
	now func() time.Time
}

func NewExperimentService(backend mlbackend.Client, registry ExperimentRegistry) *ExperimentService {
	return &ExperimentService{
		Datasets: NewDatasetService(backend),
		Models:   NewModelService(backend),
		Training: NewTrainingService(backend),
		Evaluate: NewEvaluateService(backend),
		Compare:  NewCompareService(),
		Registry: registry,
		now:      time.Now,
	}
}

// Run executes the pipeline. Any stage failure aborts the run and is reported
// as an ExperimentError; nothing is rolled back.
func (s *ExperimentService) Run(ctx context.Context, req ExperimentRequest) (ExperimentResult, error) {
	logger := serviceLogger().With("service", "ExperimentService", "method", "Run")

	profile, err := ResolveProfile(req.Profile)
	if err != nil {
		return ExperimentResult{}, err
	}
	cfg := profile.Config
	cfg.ModelName = req.ModelName
	if err := cfg.Validate(); err != nil {
		return ExperimentResult{}, err
	}

	startedAt := s.now()
	experimentID := generateExperimentID(startedAt, req.DatasetName, req.ModelName)
	dirs := experimentDirectories(filepath.Join(req.BaseDir, experimentID))
	logger.Info("starting experiment",
		"experiment_id", experimentID, "dataset", req.DatasetName,
		"model", req.ModelName, "profile", req.Profile)

	fingerprint, err := cfg.Fingerprint()
	if err != nil {
		return ExperimentResult{}, err
	}

	record := &entity.ExperimentRecord{
		ExperimentID: experimentID,
		DatasetName:  req.DatasetName,
		ModelName:    req.ModelName,
		Profile:      req.Profile,
		ConfigHash:   fingerprint,
		Status:       entity.ExperimentStatusRunning,
		Directory:    dirs.ExperimentRoot,
	}
	registry := s.Registry
	if registry != nil {
		// A registry outage must not block the run itself.
		if err := registry.Save(ctx, record); err != nil {
			logger.Warn("registry save failed, continuing without registry", "error", err)
			registry = nil
		}
	}

	result, runErr := s.runStages(ctx, req, profile, cfg, experimentID, startedAt, fingerprint, dirs)
	if runErr != nil {
		recordStatus(ctx, registry, experimentID, entity.ExperimentStatusFailed, stageOf(runErr))
		return ExperimentResult{}, runErr
	}
	recordStatus(ctx, registry, experimentID, entity.ExperimentStatusCompleted, "")

	logger.Info("experiment success",
		"experiment_id", experimentID, "improvements", result.Comparison.Improvements)
	return result, nil
}

func (s *ExperimentService) runStages(
	ctx context.Context,
	req ExperimentRequest,
	profile TrainingProfile,
	cfg entity.TrainingConfig,
	experimentID string,
	startedAt time.Time,
	fingerprint string,
	dirs entity.ExperimentDirectories,
) (ExperimentResult, error) {
	if err := createExperimentTree(dirs); err != nil {
		return ExperimentResult{}, &ExperimentError{Stage: StageSetup, Dir: dirs.ExperimentRoot, Err: err}
	}

	// Stage 1: dataset.
	if _, err := s.Datasets.Download(ctx, req.DatasetName, dirs.Data, profile.MaxSamples, dirs.Cache, false); err != nil {
		return ExperimentResult{}, &ExperimentError{Stage: StageDatasetDownload, Dir: dirs.ExperimentRoot, Err: err}
	}
	trainPath, evalPath, err := resolveSplitPaths(dirs.Data)
	if err != nil {
		return ExperimentResult{}, &ExperimentError{Stage: StageDatasetDownload, Dir: dirs.ExperimentRoot, Err: err}
	}

	// Stage 2: base model.
	if _, err := s.Models.Download(ctx, req.ModelName, dirs.BaseModel, dirs.Cache, false); err != nil {
		return ExperimentResult{}, &ExperimentError{Stage: StageModelDownload, Dir: dirs.ExperimentRoot, Err: err}
	}

	// Stage 3: fine-tuning.
	trainOutcome, err := s.Training.Train(ctx, TrainingRequest{
		Config:        cfg,
		TrainDataPath: trainPath,
		ValDataPath:   evalPath,
		OutputDir:     dirs.FineTunedModel,
		WorkDir:       dirs.Cache,
		Force:         req.Force,
	})
	if err != nil {
		return ExperimentResult{}, &ExperimentError{Stage: StageTraining, Dir: dirs.ExperimentRoot, Err: err}
	}

	files := experimentFiles(dirs)
	metrics := req.Metrics
	if len(metrics) == 0 {
		metrics = DefaultMetrics
	}

	// Stages 4 and 5: evaluate base and fine-tuned over the same held-out data.
	if _, err := s.Evaluate.Evaluate(ctx, EvaluateRequest{
		ModelPath:          dirs.BaseModel,
		TestDataPath:       evalPath,
		OutputFile:         files.BaseMetrics,
		BatchSize:          defaultEvalBatchSize,
		MaxLength:          cfg.MaxLength,
		Metrics:            metrics,
		PredictionsLogPath: files.BasePredictions,
	}); err != nil {
		return ExperimentResult{}, &ExperimentError{Stage: StageBaseEvaluation, Dir: dirs.ExperimentRoot, Err: err}
	}
	if _, err := s.Evaluate.Evaluate(ctx, EvaluateRequest{
		ModelPath:          dirs.FineTunedModel,
		TestDataPath:       evalPath,
		OutputFile:         files.FineTunedMetrics,
		BatchSize:          defaultEvalBatchSize,
		MaxLength:          cfg.MaxLength,
		Metrics:            metrics,
		PredictionsLogPath: files.FineTunedPredictions,
	}); err != nil {
		return ExperimentResult{}, &ExperimentError{Stage: StageFineTunedEvaluation, Dir: dirs.ExperimentRoot, Err: err}
	}

	// Stage 6: comparison.
	compareOutcome, err := s.Compare.Compare(CompareRequest{
		BaselinePath:  files.BaseMetrics,
		FineTunedPath: files.FineTunedMetrics,
		OutputDir:     dirs.Comparison,
		Format:        ComparisonFormatJSON,
		SaveReport:    true,
	})
	if err != nil {
		return ExperimentResult{}, &ExperimentError{Stage: StageComparison, Dir: dirs.ExperimentRoot, Err: err}
	}

	summary := entity.ExperimentSummary{
		ExperimentID: experimentID,
		DatasetName:  req.DatasetName,
		ModelName:    req.ModelName,
		Profile:      req.Profile,
		ProfileConfig: entity.ProfileConfig{
			Description: profile.Description,
			MaxSamples:  maxSamplesPtr(profile.MaxSamples),
			Training:    cfg,
		},
		ConfigHash:   fingerprint,
		TrainSkipped: trainOutcome.Skipped,
		Timestamp:    startedAt.Format(time.RFC3339),
		Directories:  dirs,
		Files:        files,
	}
	summaryPath := filepath.Join(dirs.ExperimentRoot, ExperimentMetadataFileName)
	if err := writeJSONFileAtomic(summaryPath, summary); err != nil {
		return ExperimentResult{}, &ExperimentError{Stage: StageComparison, Dir: dirs.ExperimentRoot, Err: err}
	}

	return ExperimentResult{Summary: summary, Comparison: compareOutcome.Result}, nil
}

const defaultEvalBatchSize = 32

func recordStatus(ctx context.Context, registry ExperimentRegistry, experimentID, status, failureStage string) {
	if registry == nil {
		return
	}
	if err := registry.UpdateStatus(ctx, experimentID, status, failureStage); err != nil {
		serviceLogger().Warn("registry status update failed",
			"experiment_id", experimentID, "status", status, "error", err)
	}
}

// generateExperimentID builds exp_<timestamp>_<dataset>_<model>, with the
// model reduced to its last path segment and unsafe characters replaced.
func generateExperimentID(at time.Time, datasetName, modelName string) string {
	modelShort := modelName
	if idx := strings.LastIndex(modelShort, "/"); idx >= 0 {
		modelShort = modelShort[idx+1:]
	}
	return fmt.Sprintf("exp_%s_%s_%s",
		at.Format("20060102_150405"),
		sanitizePathComponent(datasetName),
		sanitizePathComponent(modelShort))
}

func experimentDirectories(root string) entity.ExperimentDirectories {
	return entity.ExperimentDirectories{
		ExperimentRoot: root,
		Data:           filepath.Join(root, "data"),
		BaseModel:      filepath.Join(root, "models", "base"),
		FineTunedModel: filepath.Join(root, "models", "fine-tuned"),
		Metrics:        filepath.Join(root, "metrics"),
		Predictions:    filepath.Join(root, "predictions"),
		Comparison:     filepath.Join(root, "comparison"),
		Cache:          filepath.Join(root, "cache"),
	}
}

func experimentFiles(dirs entity.ExperimentDirectories) entity.ExperimentFiles {
	return entity.ExperimentFiles{
		BaseMetrics:          filepath.Join(dirs.Metrics, "base_model_metrics.json"),
		FineTunedMetrics:     filepath.Join(dirs.Metrics, "fine_tuned_metrics.json"),
		BasePredictions:      filepath.Join(dirs.Predictions, "base_predictions.jsonl"),
		FineTunedPredictions: filepath.Join(dirs.Predictions, "fine_tuned_predictions.jsonl"),
		ComparisonJSON:       filepath.Join(dirs.Comparison, ComparisonFileName),
		ComparisonReport:     filepath.Join(dirs.Comparison, ComparisonReportName),
	}
}

func createExperimentTree(dirs entity.ExperimentDirectories) error {
	for _, dir := range []string{
		dirs.ExperimentRoot, dirs.Data, dirs.BaseModel, dirs.FineTunedModel,
		dirs.Metrics, dirs.Predictions, dirs.Comparison, dirs.Cache,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s failed: %w", dir, err)
		}
	}
	return nil
}

// resolveSplitPaths picks the data files for the run. One held-out file
// serves both as the trainer's validation data and as the evaluation data:
// the test split when present, otherwise the validation split. A dataset
// with neither cannot be evaluated.
func resolveSplitPaths(dataDir string) (trainPath, evalPath string, err error) {
	trainPath = filepath.Join(dataDir, "train", splitDataFileName)
	validationPath := filepath.Join(dataDir, "validation", splitDataFileName)
	testPath := filepath.Join(dataDir, "test", splitDataFileName)

	switch {
	case fileExists(testPath):
		evalPath = testPath
	case fileExists(validationPath):
		evalPath = validationPath
	default:
		return "", "", fmt.Errorf("%w: %s", ErrNoEvaluationSplit, dataDir)
	}
	return trainPath, evalPath, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func stageOf(err error) string {
	var expErr *ExperimentError
	if errors.As(err, &expErr) {
		return expErr.Stage
	}
	return ""
}
