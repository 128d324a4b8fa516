// Package export writes query results to files: spreadsheets and charts.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
)

const sheetName = "result"

// Excel writes tables as .xlsx files under a directory.
type Excel struct {
	dir string
}

// NewExcel creates an Excel writer for dir.
func NewExcel(dir string) *Excel {
	return &Excel{dir: dir}
}

// Write stores t in a new workbook with a bold header row and returns its path.
func (x *Excel) Write(t answer.Table) (string, error) {
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%w: table has no columns", domain.ErrNoTabularResult)
	}
	if err := os.MkdirAll(x.dir, 0o750); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("create style: %w", err)
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return "", fmt.Errorf("style header: %w", err)
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", fmt.Errorf("cell name: %w", err)
		}
		values := make([]any, len(row))
		copy(values, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	path := filepath.Join(x.dir, "export_"+uuid.NewString()+".xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}
