// Package export writes processed series as CSV or Excel workbooks with the
// columns date and value.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"econdash/internal/model"
)

const (
	SheetName = "Sheet1"

	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeGzip = "application/gzip"
)

var header = []string{"date", "value"}

// FileBase is the file name stem used for a series download, e.g. cpi_data.
func FileBase(indicator model.Indicator) string {
	return string(indicator) + "_data"
}

// Precision is the number of decimal places kept in exported values.
const Precision = 6

// FormatValue renders a value rounded to Precision places with trailing
// zeros removed.
func FormatValue(value float64) string {
	return round(value).String()
}

func round(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value).Round(Precision)
}

// WriteCSV writes a header row followed by one row per point. An empty
// series produces only the header.
func WriteCSV(w io.Writer, s model.Series) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	for _, point := range s.Points {
		row := []string{point.Date.Format(model.DateLayout), FormatValue(point.Value)}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("export: csv row %s: %w", row[0], err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes the series to a single-sheet workbook. Dates are stored
// as text in the same layout as the CSV.
func WriteXLSX(w io.Writer, s model.Series) error {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	if err := book.SetSheetRow(SheetName, "A1", &[]any{header[0], header[1]}); err != nil {
		return fmt.Errorf("export: xlsx header: %w", err)
	}
	for i, point := range s.Points {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		value, _ := round(point.Value).Float64()
		row := []any{point.Date.Format(model.DateLayout), value}
		if err := book.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("export: xlsx row %d: %w", i+2, err)
		}
	}

	if _, err := book.WriteTo(w); err != nil {
		return fmt.Errorf("export: xlsx write: %w", err)
	}
	return nil
}

// Gzip wraps w so that everything written is compressed. Callers must Close
// the returned writer to flush the stream.
func Gzip(w io.Writer) io.WriteCloser {
	return gzip.NewWriter(w)
}
