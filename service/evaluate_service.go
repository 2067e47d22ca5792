package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thejosephstevens/model-experiments/entity"
	"github.com/thejosephstevens/model-experiments/mlbackend"
)

var (
	ErrModelPathNotFound   = errors.New("model path not found")
	ErrTestDataNotFound    = errors.New("test data not found")
	ErrUnknownMetric       = errors.New("unknown metric")
	ErrNoMetricsRequested  = errors.New("at least one metric is required")
	ErrPredictionCountSkew = errors.New("prediction count does not match example count")
)

// DefaultMetrics is the fixed metric vocabulary: f1, precision and recall are
// weighted averages.
var DefaultMetrics = []string{"accuracy", "f1", "precision", "recall"}

// EvaluateRequest describes one evaluation pass of a model over a data file.
type EvaluateRequest struct {
	ModelPath          string
	TestDataPath       string
	OutputFile         string
	BatchSize          int
	MaxLength          int
	Metrics            []string
	PredictionsLogPath string // optional ndjson per-example log
}

// EvaluateService runs a model over held-out data through the backend and
// persists the resulting MetricsReport.
type EvaluateService struct {
	Backend mlbackend.Client
}

func NewEvaluateService(backend mlbackend.Client) *EvaluateService {
	return &EvaluateService{Backend: backend}
}

func (s *EvaluateService) Evaluate(ctx context.Context, req EvaluateRequest) (entity.MetricsReport, error) {
	logger := serviceLogger().With("service", "EvaluateService", "method", "Evaluate")

	if _, err := os.Stat(req.ModelPath); err != nil {
		return entity.MetricsReport{}, fmt.Errorf("%w: %s", ErrModelPathNotFound, req.ModelPath)
	}
	if _, err := os.Stat(req.TestDataPath); err != nil {
		return entity.MetricsReport{}, fmt.Errorf("%w: %s", ErrTestDataNotFound, req.TestDataPath)
	}
	metrics, err := normalizeMetricNames(req.Metrics)
	if err != nil {
		return entity.MetricsReport{}, err
	}

	examples, err := readExamples(req.TestDataPath)
	if err != nil {
		return entity.MetricsReport{}, fmt.Errorf("read test data failed: %w", err)
	}
	if len(examples) == 0 {
		return entity.MetricsReport{}, ErrEmptyDataFile
	}

	texts := make([]string, len(examples))
	trueLabels := make([]string, len(examples))
	for i, example := range examples {
		texts[i] = example.Text
		trueLabels[i] = example.Label
	}

	logger.Info("evaluation begin",
		"model_path", req.ModelPath, "num_samples", len(examples), "metrics", metrics)

	predictResult, err := s.Backend.Predict(ctx, mlbackend.PredictRequest{
		ModelPath: req.ModelPath,
		Texts:     texts,
		BatchSize: req.BatchSize,
		MaxLength: req.MaxLength,
	})
	if err != nil {
		return entity.MetricsReport{}, fmt.Errorf("predict failed: %w", err)
	}
	if len(predictResult.Predictions) != len(examples) {
		return entity.MetricsReport{}, fmt.Errorf("%w: got %d, want %d",
			ErrPredictionCountSkew, len(predictResult.Predictions), len(examples))
	}

	predictedLabels := make([]string, len(predictResult.Predictions))
	for i, prediction := range predictResult.Predictions {
		predictedLabels[i] = prediction.Label
	}

	metricsResult, err := s.Backend.ComputeMetrics(ctx, mlbackend.MetricsRequest{
		TrueLabels:      trueLabels,
		PredictedLabels: predictedLabels,
		Metrics:         metrics,
	})
	if err != nil {
		return entity.MetricsReport{}, fmt.Errorf("compute metrics failed: %w", err)
	}

	report := entity.MetricsReport{
		ModelPath:        req.ModelPath,
		NumSamples:       len(examples),
		Metrics:          metricsResult.Scores,
		RequestedMetrics: metrics,
	}
	if strings.TrimSpace(req.OutputFile) != "" {
		if err := writeJSONFile(req.OutputFile, report); err != nil {
			return entity.MetricsReport{}, fmt.Errorf("persist metrics failed: %w", err)
		}
	}

	if strings.TrimSpace(req.PredictionsLogPath) != "" {
		if err := writePredictionsLog(req.PredictionsLogPath, examples, predictResult.Predictions); err != nil {
			return entity.MetricsReport{}, fmt.Errorf("persist predictions failed: %w", err)
		}
	}

	logger.Info("evaluation success",
		"model_path", req.ModelPath, "num_samples", len(examples), "scores", metricsResult.Scores)
	return report, nil
}

func normalizeMetricNames(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, ErrNoMetricsRequested
	}
	known := make(map[string]struct{}, len(DefaultMetrics))
	for _, name := range DefaultMetrics {
		known[name] = struct{}{}
	}

	normalized := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		value := strings.ToLower(strings.TrimSpace(name))
		if value == "" {
			continue
		}
		if _, ok := known[value]; !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownMetric, name, DefaultMetrics)
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		normalized = append(normalized, value)
	}
	if len(normalized) == 0 {
		return nil, ErrNoMetricsRequested
	}
	return normalized, nil
}

func writePredictionsLog(path string, examples []entity.Example, predictions []mlbackend.Prediction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir failed: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create predictions log failed: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for i, example := range examples {
		record := entity.PredictionRecord{
			Text:           example.Text,
			TrueLabel:      example.Label,
			PredictedLabel: predictions[i].Label,
			Confidence:     predictions[i].Confidence,
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal prediction failed: %w", err)
		}
		if _, err := writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write prediction failed: %w", err)
		}
	}
	return writer.Flush()
}
