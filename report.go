package attrs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	metricsSheet     = "metrics"
	annotationsSheet = "annotations"
)

var annotationHeader = []string{"id", "successfully_labeled", "label", "error_type", "error_message", "diagnostics", "raw_response"}

// ExportReport writes metric results and annotations to an xlsx workbook
// with a "metrics" and an "annotations" sheet.
func ExportReport(path string, results []MetricResult, anns []*LLMAnnotation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create output directory: %w", err)
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	if err := file.SetSheetName(file.GetSheetName(0), metricsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRow(file, metricsSheet, 1, []any{"name", "value"}); err != nil {
		return err
	}
	for i, r := range results {
		if err := writeRow(file, metricsSheet, i+2, []any{r.Name, r.Value}); err != nil {
			return err
		}
	}
	if err := file.SetColWidth(metricsSheet, "A", "A", 40); err != nil {
		return fmt.Errorf("set width for A: %w", err)
	}

	if _, err := file.NewSheet(annotationsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	header := make([]any, len(annotationHeader))
	for i, h := range annotationHeader {
		header[i] = h
	}
	if err := writeRow(file, annotationsSheet, 1, header); err != nil {
		return err
	}
	for i, a := range anns {
		if a == nil {
			continue
		}
		var errType, errMsg string
		if a.Error != nil {
			errType, errMsg = string(a.Error.Type), a.Error.Message
		}
		diags := ""
		if len(a.Diagnostics) > 0 {
			diags = compactJSON(a.Diagnostics)
		}
		row := []any{a.ID, a.SuccessfullyLabeled, compactJSON(a.Label), errType, errMsg, diags, a.RawResponse}
		if err := writeRow(file, annotationsSheet, i+2, row); err != nil {
			return err
		}
	}
	if err := file.SetColWidth(annotationsSheet, "C", "C", 60); err != nil {
		return fmt.Errorf("set width for C: %w", err)
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

func writeRow(file *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("convert cell: %w", err)
		}
		if err := file.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
