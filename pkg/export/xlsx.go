package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Timetable"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes an optional merged title row, a styled header row and one
// row per record.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	row := 1
	lastCol, _ := excelize.ColumnNumberToName(len(data.Headers))
	if data.Title != "" {
		if err := f.SetCellValue(xlsxSheet, "A1", data.Title); err != nil {
			return nil, fmt.Errorf("write title: %w", err)
		}
		if len(data.Headers) > 1 {
			if err := f.MergeCell(xlsxSheet, "A1", lastCol+"1"); err != nil {
				return nil, fmt.Errorf("merge title: %w", err)
			}
		}
		row++
	}

	for i, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(xlsxSheet, cell, header); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(data.Headers), row)
	if err := f.SetCellStyle(xlsxSheet, first, last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(xlsxSheet, "A", lastCol, 16); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	for _, record := range data.Rows {
		row++
		for i, value := range data.record(record) {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if err := f.SetCellValue(xlsxSheet, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
