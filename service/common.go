package service

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/thejosephstevens/model-experiments/config"
	"github.com/thejosephstevens/model-experiments/entity"
)

func serviceLogger() *slog.Logger {
	if config.AppLogger != nil {
		return config.AppLogger.With("layer", "service")
	}
	if config.AppConfig == nil {
		return slog.Default().With("layer", "service")
	}

	logger := config.EnsureLoggerInitialized()
	if logger == nil {
		return slog.Default().With("layer", "service")
	}
	return logger.With("layer", "service")
}

var ErrEmptyDataFile = errors.New("data file contains no examples")

// writeJSONFile persists v as indented JSON, creating parent directories.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir failed: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json failed: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write json file failed: %w", err)
	}
	return nil
}

// writeJSONFileAtomic writes to a temp file in the target directory and
// renames it into place, so readers never observe a partially written
// document.
func writeJSONFileAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir failed: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json failed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file failed: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file failed: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file failed: %w", err)
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse json failed (path=%s): %w", path, err)
	}
	return nil
}

// readExamples loads a data.jsonl file, one JSON example per line. Blank
// lines are skipped.
func readExamples(path string) ([]entity.Example, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var examples []entity.Example
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var example entity.Example
		if err := json.Unmarshal([]byte(raw), &example); err != nil {
			return nil, fmt.Errorf("parse example failed (path=%s line=%d): %w", path, line, err)
		}
		examples = append(examples, example)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read data file failed: %w", err)
	}
	return examples, nil
}

func writeExamples(path string, examples []entity.Example) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir failed: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create data file failed: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, example := range examples {
		data, err := json.Marshal(example)
		if err != nil {
			return fmt.Errorf("marshal example failed: %w", err)
		}
		if _, err := writer.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write example failed: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush data file failed: %w", err)
	}
	return nil
}

// fileMTime returns a file's modification time as epoch seconds with
// fractional part, the representation stored in training metadata. Using the
// same computation on both sides keeps the exact-equality comparison honest.
func fileMTime(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return float64(info.ModTime().UnixNano()) / 1e9, nil
}

// sanitizePathComponent replaces path separators and whitespace so
// user-supplied hub identifiers never nest or escape directories.
func sanitizePathComponent(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/', r == '\\', unicode.IsSpace(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
