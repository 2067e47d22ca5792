package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/thejosephstevens/model-experiments/entity"
	"github.com/thejosephstevens/model-experiments/mlbackend"
)

var (
	ErrModelNameRequired = errors.New("model name is required")
	ErrModelDirRequired  = errors.New("model output dir is required")
)

const ModelMetadataFileName = "model_metadata.json"

// ModelDownloadResult reports where the base model landed and whether an
// existing copy was reused.
type ModelDownloadResult struct {
	Name      string `json:"name"`
	ModelType string `json:"model_type"`
	SavedPath string `json:"saved_path"`
	Skipped   bool   `json:"skipped"`
}

// ModelService materializes pretrained models (plus tokenizer files) on disk
// and records the model_metadata.json sidecar.
type ModelService struct {
	Backend mlbackend.Client
}

func NewModelService(backend mlbackend.Client) *ModelService {
	return &ModelService{Backend: backend}
}

// Download fetches the named model into outputDir. An existing sidecar
// short-circuits the download; force always refreshes.
func (s *ModelService) Download(ctx context.Context, name, outputDir, cacheDir string, force bool) (ModelDownloadResult, error) {
	logger := serviceLogger().With("service", "ModelService", "method", "Download")

	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return ModelDownloadResult{}, ErrModelNameRequired
	}
	if strings.TrimSpace(outputDir) == "" {
		return ModelDownloadResult{}, ErrModelDirRequired
	}

	metadataPath := filepath.Join(outputDir, ModelMetadataFileName)
	if !force {
		var metadata entity.ModelMetadata
		if err := readJSONFile(metadataPath, &metadata); err == nil && metadata.Name == trimmedName {
			logger.Info("model already materialized, skipping download",
				"model", trimmedName, "output_dir", outputDir)
			return ModelDownloadResult{
				Name:      metadata.Name,
				ModelType: metadata.ModelType,
				SavedPath: metadata.SavedPath,
				Skipped:   true,
			}, nil
		}
	}

	logger.Info("download model begin", "model", trimmedName, "output_dir", outputDir)
	result, err := s.Backend.DownloadModel(ctx, mlbackend.ModelRequest{
		Name:      trimmedName,
		OutputDir: outputDir,
		CacheDir:  cacheDir,
	})
	if err != nil {
		return ModelDownloadResult{}, fmt.Errorf("download model failed: %w", err)
	}

	metadata := entity.ModelMetadata{
		Name:      trimmedName,
		ModelType: result.ModelType,
		SavedPath: result.SavedPath,
	}
	if trimmed := strings.TrimSpace(cacheDir); trimmed != "" {
		metadata.CacheDir = &trimmed
	}
	if err := writeJSONFile(metadataPath, metadata); err != nil {
		return ModelDownloadResult{}, fmt.Errorf("persist model metadata failed: %w", err)
	}

	logger.Info("download model success", "model", trimmedName, "model_type", result.ModelType)
	return ModelDownloadResult{
		Name:      trimmedName,
		ModelType: result.ModelType,
		SavedPath: result.SavedPath,
	}, nil
}
