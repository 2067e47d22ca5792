package mlbackend

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/thejosephstevens/model-experiments/entity"
)

// MockClient is an in-process Client for tests. It tracks calls, supports
// error injection, and writes plausible artifact files so directory-level
// checks (cache validation, metadata sidecars) behave as with a real runner.
type MockClient struct {
	Mu sync.Mutex

	// Canned responses
	SplitsByName map[string]map[string][]entity.Example
	ModelType    string
	TrainTotals  TrainResult
	Predictions  []Prediction
	Scores       map[string]float64

	// Error injection
	DownloadDatasetError error
	DownloadModelError   error
	TrainError           error
	PredictError         error
	ComputeMetricsError  error

	// Call tracking
	DownloadDatasetCalled int
	DownloadModelCalled   int
	TrainCalled           int
	PredictCalled         int
	ComputeMetricsCalled  int

	// Captured parameters
	LastDatasetRequest DatasetRequest
	LastModelRequest   ModelRequest
	LastTrainRequest   TrainRequest
	LastPredictRequest PredictRequest
	LastMetricsRequest MetricsRequest
}

func NewMockClient() *MockClient {
	return &MockClient{
		ModelType: "distilbert",
		TrainTotals: TrainResult{
			TrainingSamples:   8,
			ValidationSamples: 2,
			TotalSteps:        24,
		},
	}
}

func (m *MockClient) DownloadDataset(ctx context.Context, req DatasetRequest) (*DatasetResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	m.DownloadDatasetCalled++
	m.LastDatasetRequest = req
	if m.DownloadDatasetError != nil {
		return nil, m.DownloadDatasetError
	}

	splits, ok := m.SplitsByName[req.Name]
	if !ok {
		splits = defaultSplits()
	}
	capped := make(map[string][]entity.Example, len(splits))
	for name, examples := range splits {
		if req.MaxSamples > 0 && len(examples) > req.MaxSamples {
			examples = examples[:req.MaxSamples]
		}
		capped[name] = examples
	}
	return &DatasetResult{Splits: capped}, nil
}

func (m *MockClient) DownloadModel(ctx context.Context, req ModelRequest) (*ModelResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	m.DownloadModelCalled++
	m.LastModelRequest = req
	if m.DownloadModelError != nil {
		return nil, m.DownloadModelError
	}

	if err := writeModelFiles(req.OutputDir); err != nil {
		return nil, err
	}
	return &ModelResult{ModelType: m.ModelType, SavedPath: req.OutputDir}, nil
}

func (m *MockClient) Train(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	m.TrainCalled++
	m.LastTrainRequest = req
	if m.TrainError != nil {
		return nil, m.TrainError
	}

	if err := writeModelFiles(req.OutputDir); err != nil {
		return nil, err
	}
	totals := m.TrainTotals
	return &totals, nil
}

func (m *MockClient) Predict(ctx context.Context, req PredictRequest) (*PredictResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	m.PredictCalled++
	m.LastPredictRequest = req
	if m.PredictError != nil {
		return nil, m.PredictError
	}

	if len(m.Predictions) > 0 {
		if len(m.Predictions) != len(req.Texts) {
			preds := make([]Prediction, len(req.Texts))
			for i := range preds {
				preds[i] = m.Predictions[i%len(m.Predictions)]
			}
			return &PredictResult{Predictions: preds}, nil
		}
		return &PredictResult{Predictions: m.Predictions}, nil
	}

	preds := make([]Prediction, len(req.Texts))
	for i := range preds {
		preds[i] = Prediction{Label: "positive", Confidence: 0.9}
	}
	return &PredictResult{Predictions: preds}, nil
}

func (m *MockClient) ComputeMetrics(ctx context.Context, req MetricsRequest) (*MetricsResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	m.ComputeMetricsCalled++
	m.LastMetricsRequest = req
	if m.ComputeMetricsError != nil {
		return nil, m.ComputeMetricsError
	}

	if m.Scores != nil {
		scores := make(map[string]float64, len(m.Scores))
		for name, value := range m.Scores {
			scores[name] = value
		}
		return &MetricsResult{Scores: scores}, nil
	}

	// Without canned scores, fill every requested metric with plain accuracy.
	matches := 0
	for i := range req.TrueLabels {
		if i < len(req.PredictedLabels) && req.TrueLabels[i] == req.PredictedLabels[i] {
			matches++
		}
	}
	accuracy := 0.0
	if len(req.TrueLabels) > 0 {
		accuracy = float64(matches) / float64(len(req.TrueLabels))
	}
	scores := make(map[string]float64, len(req.Metrics))
	for _, name := range req.Metrics {
		scores[name] = accuracy
	}
	return &MetricsResult{Scores: scores}, nil
}

func writeModelFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := map[string]string{
		"config.json":           `{"architectures":["MockForSequenceClassification"]}`,
		"pytorch_model.bin":     "mock-weights",
		"tokenizer_config.json": `{"tokenizer_class":"MockTokenizer"}`,
		"vocab.txt":             "[PAD]\n[UNK]\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func defaultSplits() map[string][]entity.Example {
	return map[string][]entity.Example{
		"train": {
			{Text: "a delightful film", Label: "positive"},
			{Text: "truly awful pacing", Label: "negative"},
			{Text: "great performances all around", Label: "positive"},
			{Text: "i want those hours back", Label: "negative"},
		},
		"test": {
			{Text: "surprisingly moving", Label: "positive"},
			{Text: "flat and forgettable", Label: "negative"},
		},
	}
}
