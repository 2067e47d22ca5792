package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidTrainingConfig = errors.New("invalid training config")

// TrainingConfig holds every hyperparameter a fine-tuning run depends on.
// Two configs with equal fields always produce the same fingerprint, no
// matter how the struct was populated.
type TrainingConfig struct {
	ModelName                 string  `json:"model_name" yaml:"model_name"`
	Epochs                    int     `json:"epochs" yaml:"epochs"`
	BatchSize                 int     `json:"batch_size" yaml:"batch_size"`
	LearningRate              float64 `json:"learning_rate" yaml:"learning_rate"`
	WarmupSteps               int     `json:"warmup_steps" yaml:"warmup_steps"`
	SaveSteps                 int     `json:"save_steps" yaml:"save_steps"`
	LoggingSteps              int     `json:"logging_steps" yaml:"logging_steps"`
	EvalSteps                 int     `json:"eval_steps" yaml:"eval_steps"`
	MaxLength                 int     `json:"max_length" yaml:"max_length"`
	GradientAccumulationSteps int     `json:"gradient_accumulation_steps" yaml:"gradient_accumulation_steps"`
	FP16                      bool    `json:"fp16" yaml:"fp16"`
	Seed                      int     `json:"seed" yaml:"seed"`
}

// Validate rejects partial or nonsensical configs before they are hashed or
// handed to the training backend.
func (c TrainingConfig) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name is required", ErrInvalidTrainingConfig)
	}
	if c.Epochs < 1 {
		return fmt.Errorf("%w: epochs must be >= 1, got %d", ErrInvalidTrainingConfig, c.Epochs)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch_size must be >= 1, got %d", ErrInvalidTrainingConfig, c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w: learning_rate must be > 0, got %g", ErrInvalidTrainingConfig, c.LearningRate)
	}
	if c.WarmupSteps < 0 {
		return fmt.Errorf("%w: warmup_steps must be >= 0, got %d", ErrInvalidTrainingConfig, c.WarmupSteps)
	}
	if c.SaveSteps < 1 {
		return fmt.Errorf("%w: save_steps must be >= 1, got %d", ErrInvalidTrainingConfig, c.SaveSteps)
	}
	if c.LoggingSteps < 1 {
		return fmt.Errorf("%w: logging_steps must be >= 1, got %d", ErrInvalidTrainingConfig, c.LoggingSteps)
	}
	if c.EvalSteps < 1 {
		return fmt.Errorf("%w: eval_steps must be >= 1, got %d", ErrInvalidTrainingConfig, c.EvalSteps)
	}
	if c.MaxLength < 1 {
		return fmt.Errorf("%w: max_length must be >= 1, got %d", ErrInvalidTrainingConfig, c.MaxLength)
	}
	if c.GradientAccumulationSteps < 1 {
		return fmt.Errorf("%w: gradient_accumulation_steps must be >= 1, got %d", ErrInvalidTrainingConfig, c.GradientAccumulationSteps)
	}
	return nil
}

// flatten renders the config as a flat key/value map with stable string
// encodings. Floats use the shortest round-trip form so the canonical text is
// identical across processes.
func (c TrainingConfig) flatten() map[string]string {
	return map[string]string{
		"model_name":                  strings.TrimSpace(c.ModelName),
		"epochs":                      strconv.Itoa(c.Epochs),
		"batch_size":                  strconv.Itoa(c.BatchSize),
		"learning_rate":               strconv.FormatFloat(c.LearningRate, 'g', -1, 64),
		"warmup_steps":                strconv.Itoa(c.WarmupSteps),
		"save_steps":                  strconv.Itoa(c.SaveSteps),
		"logging_steps":               strconv.Itoa(c.LoggingSteps),
		"eval_steps":                  strconv.Itoa(c.EvalSteps),
		"max_length":                  strconv.Itoa(c.MaxLength),
		"gradient_accumulation_steps": strconv.Itoa(c.GradientAccumulationSteps),
		"fp16":                        strconv.FormatBool(c.FP16),
		"seed":                        strconv.Itoa(c.Seed),
	}
}

// CanonicalString returns the sorted-key textual form the fingerprint is
// computed over. Key order never depends on struct field order.
func (c TrainingConfig) CanonicalString() string {
	flat := c.flatten()
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(flat[key])
		b.WriteByte('\n')
	}
	return b.String()
}

// Fingerprint returns the hex SHA-256 digest of the canonical form. It is the
// cache key for trained artifacts: any single field change yields a different
// digest.
func (c TrainingConfig) Fingerprint() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(c.CanonicalString()))
	return hex.EncodeToString(sum[:]), nil
}
