package service

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/thejosephstevens/model-experiments/entity"
)

// CacheMissReason identifies which validation check rejected a previously
// trained artifact. Misses are informational, not errors: they simply mean
// training runs again.
type CacheMissReason string

const (
	CacheMissNone             CacheMissReason = ""
	CacheMissMetadataMissing  CacheMissReason = "metadata missing or unreadable"
	CacheMissIncompleteRun    CacheMissReason = "previous run incomplete"
	CacheMissModelChanged     CacheMissReason = "model changed"
	CacheMissConfigChanged    CacheMissReason = "config changed"
	CacheMissInputPathChanged CacheMissReason = "input path changed"
	CacheMissInputMissing     CacheMissReason = "input missing"
	CacheMissInputModified    CacheMissReason = "input modified"
	CacheMissArtifactMissing  CacheMissReason = "artifact files missing"
)

// CacheDecision is the outcome of a cache validation: either the artifact is
// reusable, or the first failing check with detail for diagnostics.
type CacheDecision struct {
	Valid    bool
	Reason   CacheMissReason
	Detail   string
	Metadata *entity.TrainingMetadata
}

const TrainingMetadataFileName = "training_metadata.json"

// modelConfigFileName is the configuration descriptor every materialized
// model directory must carry.
const modelConfigFileName = "config.json"

// weightFileNames are the accepted weight serialization formats; at least one
// must exist for an artifact directory to count as a usable model.
var weightFileNames = []string{
	"pytorch_model.bin",
	"model.safetensors",
	"tf_model.h5",
	"model.ckpt.index",
	"flax_model.msgpack",
}

// TrainingCacheService decides whether an existing fine-tuned artifact can be
// reused for a requested configuration and inputs. Purely read-only.
type TrainingCacheService struct{}

func NewTrainingCacheService() *TrainingCacheService {
	return &TrainingCacheService{}
}

// Validate runs the invalidation checks in order and stops at the first
// failure. Timestamps are compared for exact equality, not newer-than: a
// touched or re-copied input re-trains even when its content is unchanged.
// That conservative trade is deliberate; content hashing is out of scope.
func (s *TrainingCacheService) Validate(artifactDir string, cfg entity.TrainingConfig, trainDataPath, valDataPath string) CacheDecision {
	metadataPath := filepath.Join(artifactDir, TrainingMetadataFileName)

	var metadata entity.TrainingMetadata
	if err := readJSONFile(metadataPath, &metadata); err != nil {
		return miss(CacheMissMetadataMissing, err.Error())
	}

	if !metadata.Completed {
		return miss(CacheMissIncompleteRun, "completed flag is false")
	}

	if metadata.ModelName != cfg.ModelName {
		return miss(CacheMissModelChanged,
			fmt.Sprintf("cached %q, requested %q", metadata.ModelName, cfg.ModelName))
	}

	fingerprint, err := cfg.Fingerprint()
	if err != nil {
		return miss(CacheMissConfigChanged, err.Error())
	}
	if metadata.ConfigHash != fingerprint {
		return miss(CacheMissConfigChanged,
			fmt.Sprintf("cached %s, requested %s", metadata.ConfigHash, fingerprint))
	}

	if metadata.TrainDataPath != trainDataPath || metadata.ValDataPath != valDataPath {
		return miss(CacheMissInputPathChanged,
			fmt.Sprintf("cached (%s, %s), requested (%s, %s)",
				metadata.TrainDataPath, metadata.ValDataPath, trainDataPath, valDataPath))
	}

	trainMTime, err := fileMTime(trainDataPath)
	if err != nil {
		return miss(CacheMissInputMissing, trainDataPath)
	}
	valMTime, err := fileMTime(valDataPath)
	if err != nil {
		return miss(CacheMissInputMissing, valDataPath)
	}

	if metadata.TrainDataMTime != trainMTime {
		return miss(CacheMissInputModified, trainDataPath)
	}
	if metadata.ValDataMTime != valMTime {
		return miss(CacheMissInputModified, valDataPath)
	}

	if detail, ok := hasModelArtifacts(artifactDir); !ok {
		return miss(CacheMissArtifactMissing, detail)
	}

	return CacheDecision{Valid: true, Metadata: &metadata}
}

func miss(reason CacheMissReason, detail string) CacheDecision {
	return CacheDecision{Reason: reason, Detail: detail}
}

// hasModelArtifacts checks that the directory still holds the config
// descriptor and at least one weight file, guarding against metadata that
// outlived its outputs.
func hasModelArtifacts(artifactDir string) (string, bool) {
	configPath := filepath.Join(artifactDir, modelConfigFileName)
	if _, err := os.Stat(configPath); err != nil {
		return configPath, false
	}

	for _, name := range weightFileNames {
		if _, err := os.Stat(filepath.Join(artifactDir, name)); err == nil {
			return "", true
		}
	}
	return fmt.Sprintf("no weight file in %s", artifactDir), false
}
