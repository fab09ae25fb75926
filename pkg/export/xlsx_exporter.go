package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const xlsxSheet = "Timetable"

// XLSXExporter renders tables as a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs a spreadsheet exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (e *XLSXExporter) Extension() string { return FormatXLSX }

// Render writes an optional merged title row, a styled header row and the body.
func (e *XLSXExporter) Render(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	idx, err := f.NewSheet(xlsxSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(table.Columns))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(xlsxSheet, "A", lastCol, 20); err != nil {
		return nil, err
	}

	row := 1
	if table.Title != "" {
		if err := f.SetCellValue(xlsxSheet, "A1", table.Title); err != nil {
			return nil, err
		}
		if err := f.MergeCell(xlsxSheet, "A1", lastCol+"1"); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(xlsxSheet, "A1", "A1", headerStyle); err != nil {
			return nil, err
		}
		row++
	}

	if err := writeRow(f, row, table.Columns); err != nil {
		return nil, err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(table.Columns), row)
	if err := f.SetCellStyle(xlsxSheet, first, last, headerStyle); err != nil {
		return nil, err
	}

	for _, values := range table.Rows {
		row++
		cells := make([]string, len(table.Columns))
		for i := range table.Columns {
			cells[i] = cellAt(values, i)
		}
		if err := writeRow(f, row, cells); err != nil {
			return nil, err
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(xlsxSheet, cell, &vals); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
