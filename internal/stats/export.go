package stats

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/verte-zerg/typespeed/internal/model"
)

// ExportSheet is the worksheet that receives exported results.
const ExportSheet = "Sheet1"

var exportHeader = []interface{}{"Date", "WPM", "Accuracy", "User"}

// ExportXLSX writes results to a spreadsheet at path, one row per result.
func ExportXLSX(path string, results []model.Result) error {
	f := excelize.NewFile()
	defer func() {
		// Best-effort close of the in-memory workbook.
		_ = f.Close()
	}()

	if err := f.SetSheetRow(ExportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		row := []interface{}{
			r.Timestamp.Format(model.TimestampLayout),
			r.WPM,
			r.Accuracy,
			r.Username,
		}
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save spreadsheet: %w", err)
	}
	return nil
}
