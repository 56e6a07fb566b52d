// internal/output/csv.go
package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valpere/FeedHarvester/internal/harvest"
)

// CSVWriter streams records as CSV rows. The header comes from the
// first written record's columns.
type CSVWriter struct {
	filename string
	file     *os.File
	writer   *csv.Writer
	columns  []string
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if filename == "" {
		return nil, fmt.Errorf("CSV file path is required")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	return &CSVWriter{
		filename: filename,
		file:     file,
		writer:   csv.NewWriter(file),
	}, nil
}

// Write writes records to the CSV file
func (w *CSVWriter) Write(ctx context.Context, records []harvest.Record) error {
	if w.writer == nil {
		return fmt.Errorf("writer is closed")
	}
	table := NewTable(records)
	if len(table.Rows) == 0 {
		return nil
	}

	if w.columns == nil {
		w.columns = table.Columns
		if err := w.writer.Write(w.columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	} else if len(table.Columns) != len(w.columns) {
		return fmt.Errorf("record kind %s does not match the CSV header", table.Kind)
	}

	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = cellString(v)
		}
		if err := w.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Close closes the CSV writer
func (w *CSVWriter) Close() error {
	if w.writer != nil {
		w.writer.Flush()
		w.writer = nil
	}
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
