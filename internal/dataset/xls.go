package dataset

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/extrame/xls"
)

// xlsReader parses legacy BIFF workbooks.
type xlsReader struct{}

func (xlsReader) Strategy() string { return "xls" }

func (xlsReader) CanRead(name string) bool { return hasSuffixFold(name, ".xls") }

func (xlsReader) Read(content []byte, opt Options) (header []string, records [][]string, err error) {
	// The BIFF decoder panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			header, records = nil, nil
			err = fmt.Errorf("open xls: malformed workbook: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, nil, fmt.Errorf("open xls: %w", err)
	}
	sheet, err := pickXLSSheet(wb, opt)
	if err != nil {
		return nil, nil, err
	}
	var rows []gridRow
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			continue
		}
		cells := make([]string, row.LastCol())
		for j := range cells {
			cells[j] = row.Col(j)
		}
		rows = append(rows, gridRow{index: i, cells: cells})
	}
	return sheetGrid(rows)
}

func pickXLSSheet(wb *xls.WorkBook, opt Options) (*xls.WorkSheet, error) {
	n := wb.NumSheets()
	if opt.SheetName != "" {
		available := make([]string, 0, n)
		for i := 0; i < n; i++ {
			s := wb.GetSheet(i)
			if s == nil {
				continue
			}
			if strings.EqualFold(s.Name, opt.SheetName) {
				return s, nil
			}
			available = append(available, s.Name)
		}
		return nil, fmt.Errorf("sheet '%s' not found; available sheets: %s", opt.SheetName, strings.Join(available, ", "))
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	if idx > n {
		return nil, fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", idx, n)
	}
	s := wb.GetSheet(idx - 1)
	if s == nil {
		return nil, fmt.Errorf("sheet index %d unreadable", idx)
	}
	return s, nil
}
