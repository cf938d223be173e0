package decode

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ExcelXML decodes an .xlsx workbook: each sheet's name, then one line per row
// with non-empty cells separated by spaces.
func ExcelXML(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("xlsx: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("xlsx sheet %q: %w", sheet, err)
		}
		b.WriteString(sheet)
		b.WriteByte('\n')
		for _, row := range rows {
			writeRow(&b, row)
		}
	}
	return b.String(), nil
}

// Excel97 decodes a legacy .xls (BIFF) workbook in the same layout as ExcelXML.
func Excel97(raw []byte) (string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(raw), "utf-8")
	if err != nil {
		return "", fmt.Errorf("xls: %w", err)
	}

	var b strings.Builder
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil {
			continue
		}
		b.WriteString(sheet.Name)
		b.WriteByte('\n')
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := xlsRow(sheet, r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol()+1)
			for c := row.FirstCol(); c <= row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			writeRow(&b, cells)
		}
	}
	return b.String(), nil
}

// xlsRow returns row r, or nil when the sheet has no such row.
// WorkSheet.Row dereferences missing rows, so blank rows and empty sheets panic.
func xlsRow(sheet *xls.WorkSheet, r int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(r)
}

func writeRow(b *strings.Builder, cells []string) {
	first := true
	for _, cell := range cells {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if !first {
			b.WriteByte(' ')
		}
		b.WriteString(cell)
		first = false
	}
	if !first {
		b.WriteByte('\n')
	}
}
