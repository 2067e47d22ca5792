// Package mlbackend is the boundary to the ML runner that owns model loading,
// tokenization, the training loop, inference, and metric formulas. The rest of
// the repository only ever sees this interface, so the runner is substitutable
// with a mock in tests.
package mlbackend

import (
	"context"

	"github.com/thejosephstevens/model-experiments/entity"
)

// DatasetRequest asks the runner for one hub dataset, optionally capped.
type DatasetRequest struct {
	Name       string `json:"name"`
	MaxSamples int    `json:"max_samples"` // 0 = no cap
	CacheDir   string `json:"cache_dir,omitempty"`
}

// DatasetResult carries the downloaded splits; persistence is the caller's
// job.
type DatasetResult struct {
	Splits map[string][]entity.Example `json:"splits"`
}

// ModelRequest asks the runner to materialize a pretrained model plus its
// tokenizer under OutputDir (runner and CLI share a filesystem).
type ModelRequest struct {
	Name      string `json:"name"`
	OutputDir string `json:"output_dir"`
	CacheDir  string `json:"cache_dir,omitempty"`
}

type ModelResult struct {
	ModelType string `json:"model_type"`
	SavedPath string `json:"saved_path"`
}

// TrainRequest describes one fine-tuning run. The runner writes the trained
// model and tokenizer files into OutputDir and its logs/checkpoints into
// WorkDir.
type TrainRequest struct {
	Config        entity.TrainingConfig `json:"config"`
	TrainDataPath string                `json:"train_data_path"`
	ValDataPath   string                `json:"val_data_path"`
	OutputDir     string                `json:"output_dir"`
	WorkDir       string                `json:"work_dir,omitempty"`
}

type TrainResult struct {
	TrainingSamples   int `json:"training_samples"`
	ValidationSamples int `json:"validation_samples"`
	TotalSteps        int `json:"total_steps"`
}

// PredictRequest asks the model at ModelPath to classify Texts.
type PredictRequest struct {
	ModelPath string   `json:"model_path"`
	Texts     []string `json:"texts"`
	BatchSize int      `json:"batch_size"`
	MaxLength int      `json:"max_length"`
}

type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type PredictResult struct {
	Predictions []Prediction `json:"predictions"`
}

// MetricsRequest pairs true and predicted labels with the metric names to
// compute (accuracy, f1, precision, recall; f1/precision/recall weighted).
type MetricsRequest struct {
	TrueLabels      []string `json:"true_labels"`
	PredictedLabels []string `json:"predicted_labels"`
	Metrics         []string `json:"metrics"`
}

type MetricsResult struct {
	Scores map[string]float64 `json:"scores"`
}

// Client defines the runner operations the pipeline depends on.
type Client interface {
	DownloadDataset(ctx context.Context, req DatasetRequest) (*DatasetResult, error)
	DownloadModel(ctx context.Context, req ModelRequest) (*ModelResult, error)
	Train(ctx context.Context, req TrainRequest) (*TrainResult, error)
	Predict(ctx context.Context, req PredictRequest) (*PredictResult, error)
	ComputeMetrics(ctx context.Context, req MetricsRequest) (*MetricsResult, error)
}

// Ensure both implementations satisfy the interface.
var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*MockClient)(nil)
)
