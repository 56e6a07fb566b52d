// internal/output/json.go
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/valpere/FeedHarvester/internal/harvest"
)

// JSONWriter writes records as one JSON array. Records are buffered and
// written on Close.
type JSONWriter struct {
	filename string
	pretty   bool
	records  []harvest.Record
	closed   bool
}

// NewJSONWriter creates a new JSON writer
func NewJSONWriter(filename string, pretty bool) (*JSONWriter, error) {
	if filename == "" {
		return nil, fmt.Errorf("JSON file path is required")
	}
	return &JSONWriter{filename: filename, pretty: pretty, records: []harvest.Record{}}, nil
}

// Write buffers records
func (w *JSONWriter) Write(ctx context.Context, records []harvest.Record) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	w.records = append(w.records, records...)
	return ctx.Err()
}

// Close writes the buffered records to the file
func (w *JSONWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var (
		data []byte
		err  error
	)
	if w.pretty {
		data, err = json.MarshalIndent(w.records, "", "  ")
	} else {
		data, err = json.Marshal(w.records)
	}
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return writeFile(w.filename, append(data, '\n'))
}

// YAMLWriter writes records as one YAML sequence on Close
type YAMLWriter struct {
	filename string
	records  []harvest.Record
	closed   bool
}

// NewYAMLWriter creates a new YAML writer
func NewYAMLWriter(filename string) (*YAMLWriter, error) {
	if filename == "" {
		return nil, fmt.Errorf("YAML file path is required")
	}
	return &YAMLWriter{filename: filename, records: []harvest.Record{}}, nil
}

// Write buffers records
func (w *YAMLWriter) Write(ctx context.Context, records []harvest.Record) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}
	w.records = append(w.records, records...)
	return ctx.Err()
}

// Close writes the buffered records to the file
func (w *YAMLWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	data, err := yaml.Marshal(w.records)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return writeFile(w.filename, data)
}

// writeFile creates parent directories and writes data
func writeFile(filename string, data []byte) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}
