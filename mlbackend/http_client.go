package mlbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	datasetDownloadPath = "/api/v1/dataset/download"
	modelDownloadPath   = "/api/v1/model/download"
	trainPath           = "/api/v1/train"
	predictPath         = "/api/v1/predict"
	metricsPath         = "/api/v1/metrics"
)

var ErrBackendBaseURLRequired = errors.New("backend base url is required")

// HTTPClient talks JSON-over-HTTP to a runner service.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, ErrBackendBaseURLRequired
	}
	return &HTTPClient{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) DownloadDataset(ctx context.Context, req DatasetRequest) (*DatasetResult, error) {
	var result DatasetResult
	if err := c.post(ctx, datasetDownloadPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) DownloadModel(ctx context.Context, req ModelRequest) (*ModelResult, error) {
	var result ModelResult
	if err := c.post(ctx, modelDownloadPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Train(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	var result TrainResult
	if err := c.post(ctx, trainPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) Predict(ctx context.Context, req PredictRequest) (*PredictResult, error) {
	var result PredictResult
	if err := c.post(ctx, predictPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) ComputeMetrics(ctx context.Context, req MetricsRequest) (*MetricsResult, error) {
	var result MetricsResult
	if err := c.post(ctx, metricsPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func (c *HTTPClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call runner failed (path=%s): %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read runner response failed (path=%s): %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope errorEnvelope
		if err := json.Unmarshal(respBody, &envelope); err == nil && strings.TrimSpace(envelope.Error) != "" {
			return fmt.Errorf("runner error (path=%s status=%d): %s", path, resp.StatusCode, envelope.Error)
		}
		return fmt.Errorf("runner error (path=%s status=%d): %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode runner response failed (path=%s): %w", path, err)
	}
	return nil
}
