// internal/output/excel.go
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/FeedHarvester/internal/harvest"
)

// DefaultExcelMaxCellLength is the maximum characters in a single Excel cell
const DefaultExcelMaxCellLength = 32767

// ExcelWriter writes records to one sheet of an .xlsx workbook, named
// after the record kind. The workbook is saved on Close.
type ExcelWriter struct {
	filename  string
	file      *excelize.File
	sheetName string
	columns   []string
	row       int
}

// NewExcelWriter creates a new Excel writer
func NewExcelWriter(filename string) (*ExcelWriter, error) {
	if filename == "" {
		return nil, fmt.Errorf("Excel file path is required")
	}
	return &ExcelWriter{
		filename: filename,
		file:     excelize.NewFile(),
		row:      1,
	}, nil
}

// Write appends records as rows
func (w *ExcelWriter) Write(ctx context.Context, records []harvest.Record) error {
	if w.file == nil {
		return fmt.Errorf("writer is closed")
	}
	table := NewTable(records)
	if len(table.Rows) == 0 {
		return nil
	}

	if w.columns == nil {
		if err := w.writeHeader(table); err != nil {
			return err
		}
	} else if len(table.Columns) != len(w.columns) {
		return fmt.Errorf("record kind %s does not match the sheet header", table.Kind)
	}

	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		cells := make([]interface{}, len(row))
		for i, v := range row {
			cells[i] = excelValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, w.row)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(w.sheetName, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", w.row, err)
		}
		w.row++
	}
	return nil
}

// writeHeader names the sheet and writes a styled, frozen header row
func (w *ExcelWriter) writeHeader(table Table) error {
	w.columns = table.Columns
	w.sheetName = defaultTableName(table.Kind)

	defaultSheet := w.file.GetSheetName(0)
	if err := w.file.SetSheetName(defaultSheet, w.sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(w.columns))
	for i, c := range w.columns {
		header[i] = c
	}
	if err := w.file.SetSheetRow(w.sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(w.columns), 1)
	if err != nil {
		return err
	}
	if err := w.file.SetCellStyle(w.sheetName, "A1", last, style); err != nil {
		return err
	}

	if err := w.file.SetPanes(w.sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	w.row = 2
	return nil
}

// Close applies the auto filter and saves the workbook
func (w *ExcelWriter) Close() error {
	if w.file == nil {
		return nil
	}
	defer func() {
		w.file.Close()
		w.file = nil
	}()

	if w.columns != nil && w.row > 2 {
		lastCol, err := excelize.ColumnNumberToName(len(w.columns))
		if err != nil {
			return err
		}
		ref := fmt.Sprintf("A1:%s%d", lastCol, w.row-1)
		if err := w.file.AutoFilter(w.sheetName, ref, nil); err != nil {
			return fmt.Errorf("failed to apply auto filter: %w", err)
		}
	}

	if dir := filepath.Dir(w.filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return w.file.SaveAs(w.filename)
}

// excelValue truncates long text to the cell limit
func excelValue(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if runes := []rune(s); len(runes) > DefaultExcelMaxCellLength {
		return string(runes[:DefaultExcelMaxCellLength])
	}
	return s
}
