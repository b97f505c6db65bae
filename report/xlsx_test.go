package report

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tripsuite/booking-contract-tests/apitest"
	"github.com/tripsuite/booking-contract-tests/client"
	"github.com/tripsuite/booking-contract-tests/framework"
)

func sampleRecords() []apitest.Record {
	return []apitest.Record{
		{
			TestID: "car-booking/book car", Service: "car-booking",
			Result: client.Result{Method: "POST", URL: "http://127.0.0.1:8001/car/book", StatusCode: 200,
				Pass: true, Duration: 40 * time.Millisecond, Curl: "curl -X POST http://127.0.0.1:8001/car/book"},
		},
		{
			TestID: "car-booking/get booking", Service: "car-booking",
			Result: client.Result{Method: "GET", URL: "http://127.0.0.1:8001/cars/booking/b1", StatusCode: 404,
				Detail: "Car booking not found", ErrorMessage: "expected status 2xx, got 404: Car booking not found",
				Duration: 10 * time.Millisecond},
		},
		{
			TestID: "user/sign in rate limit", Service: "user", Attempt: 3,
			Result: client.Result{Method: "POST", URL: "http://127.0.0.1:8004/signin", StatusCode: 200,
				Pass: true, Duration: 900 * time.Millisecond},
		},
	}
}

func fillOf(t *testing.T, f *excelize.File, sheet, cell string) string {
	id, err := f.GetCellStyle(sheet, cell)
	require.NoError(t, err)
	if id == 0 {
		return ""
	}
	style, err := f.GetStyle(id)
	require.NoError(t, err)
	if len(style.Fill.Color) == 0 {
		return ""
	}
	return strings.ToUpper(style.Fill.Color[0])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	now := time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)

	sheet, err := WriteXLSX(path, framework.Results{Duration: time.Second}, sampleRecords(), now)
	require.NoError(t, err)
	assert.Equal(t, "Report_2024-07-15_08-00-00", sheet)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheet}, f.GetSheetList())

	header, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.True(t, len(header) >= 4)
	assert.Equal(t, xlsxHeaders, header[0])

	value := func(cell string) string {
		v, err := f.GetCellValue(sheet, cell)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "car-booking/book car", value("A2"))
	assert.Equal(t, "", value("C2"))
	assert.Equal(t, "200", value("F2"))
	assert.Equal(t, "PASS", value("G2"))
	assert.Equal(t, "FAIL", value("G3"))
	assert.Equal(t, "Car booking not found", value("I3"))
	assert.Equal(t, "3", value("C4"))
	assert.Equal(t, "Test summary", value("A6"))
	assert.Equal(t, "Requests: 3 (1 slow)", value("A11"))

	assert.Equal(t, "", fillOf(t, f, sheet, "A2"))
	assert.True(t, strings.HasSuffix(fillOf(t, f, sheet, "A3"), failedFill))
	assert.True(t, strings.HasSuffix(fillOf(t, f, sheet, "L3"), failedFill))
	assert.True(t, strings.HasSuffix(fillOf(t, f, sheet, "A4"), slowFill))
}

func TestWriteXLSXAddsSheetToExistingWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	first := time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)

	_, err := WriteXLSX(path, framework.Results{}, sampleRecords(), first)
	require.NoError(t, err)
	second, err := WriteXLSX(path, framework.Results{}, sampleRecords()[:1], first.Add(time.Hour))
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Report_2024-07-15_08-00-00", "Report_2024-07-15_09-00-00"}, f.GetSheetList())
	assert.Equal(t, second, f.GetSheetName(f.GetActiveSheetIndex()))
}

func TestWriteXLSXFailsForUnreadableWorkbook(t *testing.T) {
	_, err := WriteXLSX(t.TempDir(), framework.Results{}, nil, time.Now())
	assert.Error(t, err)
}
