package export

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/xuri/excelize/v2"

	"econdash/internal/model"
)

func sample() model.Series {
	return model.Series{
		Indicator: model.IndicatorUnemployment,
		Unit:      "Percent",
		Points: []model.Point{
			{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 3.7},
			{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Value: 0.1 + 0.2},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	want := "date,value\n2024-01-01,3.7\n2024-02-01,0.3\n"
	if buf.String() != want {
		t.Errorf("unexpected csv:\n%s", buf.String())
	}
}

func TestWriteCSVEmptySeries(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, model.Series{}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if buf.String() != "date,value\n" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sample()); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	book, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() { _ = book.Close() }()

	rows, err := book.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "date" || rows[0][1] != "value" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "2024-01-01" || rows[1][1] != "3.7" {
		t.Errorf("unexpected first row %v", rows[1])
	}
}

func TestGzipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	zw := Gzip(&buf)
	if err := WriteCSV(zw, sample()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	zr, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "date,value\n2024-01-01,3.7") {
		t.Errorf("unexpected payload %q", data)
	}
}

func TestFileBase(t *testing.T) {
	if got := FileBase(model.IndicatorCPI); got != "cpi_data" {
		t.Errorf("expected cpi_data, got %q", got)
	}
}
