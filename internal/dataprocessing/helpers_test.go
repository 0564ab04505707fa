package dataprocessing

import (
	"rejectcli/internal/workbook"
)

type coord struct{ row, col int }

// gridSheet builds a sheet from sparse values: strings become String cells,
// float64 and int become Number cells, nil leaves the cell empty.
func gridSheet(name string, values map[coord]any) *workbook.SheetView {
	rows, cols := 0, 0
	for c := range values {
		rows = max(rows, c.row+1)
		cols = max(cols, c.col+1)
	}

	cells := make([][]workbook.Cell, rows)
	for i := range cells {
		cells[i] = make([]workbook.Cell, cols)
	}
	for c, v := range values {
		switch val := v.(type) {
		case string:
			cells[c.row][c.col] = workbook.TextCell(val)
		case float64:
			cells[c.row][c.col] = workbook.NumberCell(val)
		case int:
			cells[c.row][c.col] = workbook.NumberCell(float64(val))
		}
	}
	return workbook.NewSheetView(name, cells)
}

// rowsSheet builds a sheet from dense rows of strings.
func rowsSheet(name string, rows ...[]string) *workbook.SheetView {
	cells := make([][]workbook.Cell, len(rows))
	for r, row := range rows {
		for _, v := range row {
			cells[r] = append(cells[r], workbook.TextCell(v))
		}
	}
	return workbook.NewSheetView(name, cells)
}
