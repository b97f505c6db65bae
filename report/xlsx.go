package report

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/tripsuite/booking-contract-tests/apitest"
	"github.com/tripsuite/booking-contract-tests/framework"
)

const (
	sheetNameFormat = "Report_%s"
	sheetTimeFormat = "2006-01-02_15-04-05"
	defaultSheet    = "Sheet1"

	failedFill = "FF5900"
	slowFill   = "FFEB9C"
)

var xlsxHeaders = []string{
	"Test", "Service", "Attempt", "Method", "URL", "Status",
	"Result", "Duration (ms)", "Detail", "Error", "Trace parent", "Curl",
}

var xlsxColumnWidths = []float64{40, 16, 8, 8, 50, 8, 8, 14, 40, 50, 30, 80}

// WriteXLSX adds a sheet with one row per request to the workbook at path, creating the
// workbook if it does not exist. It returns the name of the new sheet.
func WriteXLSX(path string, results framework.Results, records []apitest.Record, now time.Time) (string, error) {
	f, created, err := openWorkbook(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheet := fmt.Sprintf(sheetNameFormat, now.Format(sheetTimeFormat))
	if _, err := f.NewSheet(sheet); err != nil {
		return "", fmt.Errorf("cannot create sheet %s: %w", sheet, err)
	}
	if created {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return "", err
		}
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return "", err
	}
	f.SetActiveSheet(index)

	failedStyle, err := fillStyle(f, failedFill)
	if err != nil {
		return "", err
	}
	slowStyle, err := fillStyle(f, slowFill)
	if err != nil {
		return "", err
	}

	for i, width := range xlsxColumnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return "", err
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &xlsxHeaders); err != nil {
		return "", err
	}

	for i, r := range records {
		row := i + 2
		if err := writeRecord(f, sheet, row, r); err != nil {
			return "", err
		}
		style := 0
		switch {
		case !r.Result.Pass:
			style = failedStyle
		case r.Result.Duration > SlowRequestThreshold:
			style = slowStyle
		}
		if style != 0 {
			last, _ := excelize.CoordinatesToCellName(len(xlsxHeaders), row)
			if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), last, style); err != nil {
				return "", err
			}
		}
	}

	if err := writeSummary(f, sheet, len(records)+3, Summarize(results, records)); err != nil {
		return "", err
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("cannot save report: %w", err)
	}
	return sheet, nil
}

func openWorkbook(path string) (f *excelize.File, created bool, err error) {
	f, err = excelize.OpenFile(path)
	if err == nil {
		return f, false, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	return nil, false, fmt.Errorf("cannot open report %s: %w", path, err)
}

func fillStyle(f *excelize.File, colour string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{colour}},
	})
}

func writeRecord(f *excelize.File, sheet string, row int, r apitest.Record) error {
	result := "PASS"
	if !r.Result.Pass {
		result = "FAIL"
	}
	var attempt interface{}
	if r.Attempt > 0 {
		attempt = r.Attempt
	}
	var status interface{}
	if r.Result.StatusCode != 0 {
		status = r.Result.StatusCode
	}
	cells := []interface{}{
		r.TestID,
		r.Service,
		attempt,
		r.Result.Method,
		r.Result.URL,
		status,
		result,
		r.Result.Duration.Milliseconds(),
		r.Result.Detail,
		r.Result.ErrorMessage,
		r.Result.TraceParent,
		r.Result.Curl,
	}
	return f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &cells)
}

func writeSummary(f *excelize.File, sheet string, startRow int, s Summary) error {
	lines := []string{
		"Test summary",
		fmt.Sprintf("Total tests: %d", s.Tests),
		fmt.Sprintf("Passed: %d", s.Passed),
		fmt.Sprintf("Failed: %d", s.Failed),
		fmt.Sprintf("Skipped: %d", s.Skipped),
		fmt.Sprintf("Requests: %d (%d slow)", s.Requests, s.SlowRequests),
		fmt.Sprintf("Duration: %s", s.Duration.Round(time.Millisecond)),
	}
	for i, line := range lines {
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", startRow+i), line); err != nil {
			return err
		}
	}
	return nil
}
