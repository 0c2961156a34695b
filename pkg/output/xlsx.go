package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/vignelab/vignelab/pkg/ingest"
)

// Sheet names of the exported workbook.
const (
	dataSheet    = "data"
	summarySheet = "summary"
)

// WriteXLSX exports a table as a workbook with a data sheet holding every
// column and a summary sheet with per-column statistics.
func WriteXLSX(tbl *ingest.Table, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", dataSheet)
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("adding sheet: %w", err)
	}

	for j, name := range tbl.Columns {
		if err := setCell(f, dataSheet, j+1, 1, name); err != nil {
			return err
		}
		for i, v := range tbl.Data[name] {
			if err := setCell(f, dataSheet, j+1, i+2, v); err != nil {
				return err
			}
		}
	}

	header := []any{"Column", "Count", "Min", "Max", "Mean", "Last"}
	for j, h := range header {
		if err := setCell(f, summarySheet, j+1, 1, h); err != nil {
			return err
		}
	}
	report := NewTableReport("export", tbl)
	for i, c := range report.Columns {
		row := []any{c.Name, c.Count, c.Min, c.Max, c.Mean, c.Last}
		for j, v := range row {
			if err := setCell(f, summarySheet, j+1, i+2, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}
