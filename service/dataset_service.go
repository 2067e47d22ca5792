package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/thejosephstevens/model-experiments/entity"
	"github.com/thejosephstevens/model-experiments/mlbackend"
)

var (
	ErrDatasetNameRequired  = errors.New("dataset name is required")
	ErrDatasetDirRequired   = errors.New("dataset output dir is required")
	ErrDatasetInputNotFound = errors.New("dataset input file not found")
	ErrNoSplitsReturned     = errors.New("dataset provider returned no splits")
	ErrInvalidSplitRatio    = errors.New("split ratios must be between 0 and 1")
	ErrSplitRatioSum        = errors.New("train and validation ratios must sum to 1.0")
	ErrDatasetTooSmall      = errors.New("dataset needs at least two examples to split")
)

const (
	DatasetManifestFileName = "metadata.json"
	splitDataFileName       = "data.jsonl"
)

// DatasetDownloadResult reports what a download materialized (or found
// already materialized).
type DatasetDownloadResult struct {
	Name         string   `json:"name"`
	OutputDir    string   `json:"output_dir"`
	Splits       []string `json:"splits"`
	TotalSamples int      `json:"total_samples"`
	Skipped      bool     `json:"skipped"`
}

// SplitResult reports the outcome of a local train/validation split.
type SplitResult struct {
	OutputDir       string `json:"output_dir"`
	TrainCount      int    `json:"train_count"`
	ValidationCount int    `json:"validation_count"`
}

// DatasetService materializes hub datasets on disk: one directory per split
// with a data.jsonl, plus a manifest.
type DatasetService struct {
	Backend mlbackend.Client
}

func NewDatasetService(backend mlbackend.Client) *DatasetService {
	return &DatasetService{Backend: backend}
}

// Download fetches the named dataset and persists its splits under outputDir.
// An existing manifest short-circuits the download unless force is set.
func (s *DatasetService) Download(ctx context.Context, name, outputDir string, maxSamples int, cacheDir string, force bool) (DatasetDownloadResult, error) {
	logger := serviceLogger().With("service", "DatasetService", "method", "Download")

	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return DatasetDownloadResult{}, ErrDatasetNameRequired
	}
	if strings.TrimSpace(outputDir) == "" {
		return DatasetDownloadResult{}, ErrDatasetDirRequired
	}

	manifestPath := filepath.Join(outputDir, DatasetManifestFileName)
	if !force {
		var manifest entity.DatasetManifest
		if err := readJSONFile(manifestPath, &manifest); err == nil {
			logger.Info("dataset already materialized, skipping download",
				"dataset", trimmedName, "output_dir", outputDir)
			return DatasetDownloadResult{
				Name:         manifest.Name,
				OutputDir:    outputDir,
				Splits:       manifest.Splits,
				TotalSamples: manifest.TotalSamples,
				Skipped:      true,
			}, nil
		}
	}

	logger.Info("download dataset begin", "dataset", trimmedName, "max_samples", maxSamples)
	result, err := s.Backend.DownloadDataset(ctx, mlbackend.DatasetRequest{
		Name:       trimmedName,
		MaxSamples: maxSamples,
		CacheDir:   cacheDir,
	})
	if err != nil {
		return DatasetDownloadResult{}, fmt.Errorf("download dataset failed: %w", err)
	}
	if len(result.Splits) == 0 {
		return DatasetDownloadResult{}, ErrNoSplitsReturned
	}

	splitNames := make([]string, 0, len(result.Splits))
	for splitName := range result.Splits {
		splitNames = append(splitNames, splitName)
	}
	sort.Strings(splitNames)

	total := 0
	counts := make(map[string]int, len(splitNames))
	for _, splitName := range splitNames {
		examples := result.Splits[splitName]
		dataPath := filepath.Join(outputDir, splitName, splitDataFileName)
		if err := writeExamples(dataPath, examples); err != nil {
			return DatasetDownloadResult{}, fmt.Errorf("persist split %q failed: %w", splitName, err)
		}
		counts[splitName] = len(examples)
		total += len(examples)
	}

	manifest := entity.DatasetManifest{
		Name:         trimmedName,
		TotalSamples: total,
		Splits:       splitNames,
		MaxSamples:   maxSamplesPtr(maxSamples),
		SplitCounts:  counts,
	}
	if err := writeJSONFile(manifestPath, manifest); err != nil {
		return DatasetDownloadResult{}, fmt.Errorf("persist dataset manifest failed: %w", err)
	}

	logger.Info("download dataset success",
		"dataset", trimmedName, "splits", splitNames, "total_samples", total)
	return DatasetDownloadResult{
		Name:         trimmedName,
		OutputDir:    outputDir,
		Splits:       splitNames,
		TotalSamples: total,
	}, nil
}

// Split partitions one data.jsonl into train/validation directories. Ratios
// are validated before anything is written.
func (s *DatasetService) Split(inputPath, outputDir string, trainRatio, valRatio float64, seed int64, stratify bool) (SplitResult, error) {
	logger := serviceLogger().With("service", "DatasetService", "method", "Split")

	if trainRatio <= 0 || trainRatio >= 1 || valRatio <= 0 || valRatio >= 1 {
		return SplitResult{}, ErrInvalidSplitRatio
	}
	if math.Abs(trainRatio+valRatio-1.0) > 0.001 {
		return SplitResult{}, ErrSplitRatioSum
	}
	if _, err := os.Stat(inputPath); err != nil {
		return SplitResult{}, fmt.Errorf("%w: %s", ErrDatasetInputNotFound, inputPath)
	}

	examples, err := readExamples(inputPath)
	if err != nil {
		return SplitResult{}, fmt.Errorf("read input dataset failed: %w", err)
	}
	if len(examples) == 0 {
		return SplitResult{}, ErrEmptyDataFile
	}
	// Fewer than two examples cannot leave both sides non-empty.
	if len(examples) < 2 {
		return SplitResult{}, ErrDatasetTooSmall
	}

	rng := rand.New(rand.NewSource(seed))

	var train, validation []entity.Example
	if stratify {
		train, validation = stratifiedSplit(examples, trainRatio, rng)
	} else {
		shuffled := make([]entity.Example, len(examples))
		copy(shuffled, examples)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		cut := splitIndex(len(shuffled), trainRatio)
		train, validation = shuffled[:cut], shuffled[cut:]
	}

	if err := writeExamples(filepath.Join(outputDir, "train", splitDataFileName), train); err != nil {
		return SplitResult{}, fmt.Errorf("persist train split failed: %w", err)
	}
	if err := writeExamples(filepath.Join(outputDir, "validation", splitDataFileName), validation); err != nil {
		return SplitResult{}, fmt.Errorf("persist validation split failed: %w", err)
	}

	manifest := entity.DatasetManifest{
		Name:         strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)),
		TotalSamples: len(examples),
		Splits:       []string{"train", "validation"},
		SplitCounts: map[string]int{
			"train":      len(train),
			"validation": len(validation),
		},
	}
	if err := writeJSONFile(filepath.Join(outputDir, DatasetManifestFileName), manifest); err != nil {
		return SplitResult{}, fmt.Errorf("persist split manifest failed: %w", err)
	}

	logger.Info("split dataset success",
		"input", inputPath, "train", len(train), "validation", len(validation), "stratified", stratify)
	return SplitResult{
		OutputDir:       outputDir,
		TrainCount:      len(train),
		ValidationCount: len(validation),
	}, nil
}

// stratifiedSplit keeps the label distribution of both halves close to the
// source by splitting each label group separately.
func stratifiedSplit(examples []entity.Example, trainRatio float64, rng *rand.Rand) (train, validation []entity.Example) {
	groups := make(map[string][]entity.Example)
	labels := make([]string, 0)
	for _, example := range examples {
		if _, ok := groups[example.Label]; !ok {
			labels = append(labels, example.Label)
		}
		groups[example.Label] = append(groups[example.Label], example)
	}
	sort.Strings(labels)

	for _, label := range labels {
		group := groups[label]
		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		cut := splitIndex(len(group), trainRatio)
		train = append(train, group[:cut]...)
		validation = append(validation, group[cut:]...)
	}

	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(validation), func(i, j int) { validation[i], validation[j] = validation[j], validation[i] })
	return train, validation
}

func splitIndex(total int, trainRatio float64) int {
	cut := int(math.Round(float64(total) * trainRatio))
	if cut < 1 {
		cut = 1
	}
	if cut >= total {
		cut = total - 1
	}
	return cut
}
