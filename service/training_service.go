package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thejosephstevens/model-experiments/entity"
	"github.com/thejosephstevens/model-experiments/mlbackend"
)

var (
	ErrTrainDataNotFound = errors.New("training data not found")
	ErrValDataNotFound   = errors.New("validation data not found")
	ErrTrainDirRequired  = errors.New("training output dir is required")
)

// TrainingRequest describes one fine-tuning invocation.
type TrainingRequest struct {
	Config        entity.TrainingConfig
	TrainDataPath string
	ValDataPath   string
	OutputDir     string
	WorkDir       string
	Force         bool // bypass the cache check
}

// TrainingOutcome reports whether training actually ran or the cached
// artifact was reused.
type TrainingOutcome struct {
	Skipped     bool
	Fingerprint string
	Metadata    entity.TrainingMetadata
}

// TrainingService fronts the runner's training loop with the fingerprint +
// cache short-circuit, and owns the training_metadata.json lifecycle.
type TrainingService struct {
	Backend mlbackend.Client
	Cache   *TrainingCacheService
}

func NewTrainingService(backend mlbackend.Client) *TrainingService {
	return &TrainingService{
		Backend: backend,
		Cache:   NewTrainingCacheService(),
	}
}

// Train validates inputs, consults the cache, and on a miss runs the backend
// trainer. Metadata with completed=true is only written after the runner has
// fully written the model files, and the write itself is atomic; a run killed
// mid-training therefore leaves an artifact the next cache check rejects.
func (s *TrainingService) Train(ctx context.Context, req TrainingRequest) (TrainingOutcome, error) {
	logger := serviceLogger().With("service", "TrainingService", "method", "Train")

	if err := req.Config.Validate(); err != nil {
		return TrainingOutcome{}, err
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return TrainingOutcome{}, ErrTrainDirRequired
	}
	if _, err := os.Stat(req.TrainDataPath); err != nil {
		return TrainingOutcome{}, fmt.Errorf("%w: %s", ErrTrainDataNotFound, req.TrainDataPath)
	}
	if _, err := os.Stat(req.ValDataPath); err != nil {
		return TrainingOutcome{}, fmt.Errorf("%w: %s", ErrValDataNotFound, req.ValDataPath)
	}

	fingerprint, err := req.Config.Fingerprint()
	if err != nil {
		return TrainingOutcome{}, err
	}

	if !req.Force {
		decision := s.Cache.Validate(req.OutputDir, req.Config, req.TrainDataPath, req.ValDataPath)
		if decision.Valid {
			logger.Info("training cache hit, skipping training",
				"model", req.Config.ModelName,
				"config_hash", fingerprint,
				"output_dir", req.OutputDir,
			)
			return TrainingOutcome{
				Skipped:     true,
				Fingerprint: fingerprint,
				Metadata:    *decision.Metadata,
			}, nil
		}
		logger.Info("training cache miss",
			"reason", string(decision.Reason),
			"detail", decision.Detail,
			"output_dir", req.OutputDir,
		)
	}

	logger.Info("training begin",
		"model", req.Config.ModelName,
		"epochs", req.Config.Epochs,
		"batch_size", req.Config.BatchSize,
		"config_hash", fingerprint,
	)
	result, err := s.Backend.Train(ctx, mlbackend.TrainRequest{
		Config:        req.Config,
		TrainDataPath: req.TrainDataPath,
		ValDataPath:   req.ValDataPath,
		OutputDir:     req.OutputDir,
		WorkDir:       req.WorkDir,
	})
	if err != nil {
		return TrainingOutcome{}, fmt.Errorf("training failed: %w", err)
	}

	trainMTime, err := fileMTime(req.TrainDataPath)
	if err != nil {
		return TrainingOutcome{}, fmt.Errorf("stat training data failed: %w", err)
	}
	valMTime, err := fileMTime(req.ValDataPath)
	if err != nil {
		return TrainingOutcome{}, fmt.Errorf("stat validation data failed: %w", err)
	}

	metadata := entity.TrainingMetadata{
		ModelName:         req.Config.ModelName,
		TrainDataPath:     req.TrainDataPath,
		TrainDataMTime:    trainMTime,
		ValDataPath:       req.ValDataPath,
		ValDataMTime:      valMTime,
		ConfigHash:        fingerprint,
		TrainingParams:    req.Config,
		TrainingSamples:   result.TrainingSamples,
		ValidationSamples: result.ValidationSamples,
		TotalSteps:        result.TotalSteps,
		Completed:         true,
	}
	metadataPath := s.MetadataPath(req.OutputDir)
	if err := writeJSONFileAtomic(metadataPath, metadata); err != nil {
		return TrainingOutcome{}, fmt.Errorf("persist training metadata failed: %w", err)
	}

	logger.Info("training success",
		"model", req.Config.ModelName,
		"training_samples", result.TrainingSamples,
		"validation_samples", result.ValidationSamples,
		"total_steps", result.TotalSteps,
	)
	return TrainingOutcome{
		Fingerprint: fingerprint,
		Metadata:    metadata,
	}, nil
}

func (s *TrainingService) MetadataPath(outputDir string) string {
	return filepath.Join(outputDir, TrainingMetadataFileName)
}
