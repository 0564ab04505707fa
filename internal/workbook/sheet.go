package workbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Kind is the scalar type held by a Cell.
type Kind int

const (
	Empty Kind = iota
	String
	Number
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	default:
		return "empty"
	}
}

// Cell is a single spreadsheet value. Text keeps the displayed text when the
// source provides one; Number is only meaningful for Number cells.
type Cell struct {
	Kind   Kind
	Text   string
	Number float64
}

// TextCell returns a String cell, or an Empty cell for blank text.
func TextCell(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{}
	}
	return Cell{Kind: String, Text: s}
}

// NumberCell returns a Number cell.
func NumberCell(v float64) Cell {
	return Cell{Kind: Number, Number: v, Text: strconv.FormatFloat(v, 'f', -1, 64)}
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool {
	return c.Kind == Empty
}

// Value returns the cell as trimmed text. Number cells are rendered in their
// shortest exact decimal form.
func (c Cell) Value() string {
	switch c.Kind {
	case Number:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case String:
		return strings.TrimSpace(c.Text)
	default:
		return ""
	}
}

// SheetView is a named, read-only 2-D grid of cells with 0-based coordinates.
// Rows beyond the stored data but inside the declared extent read as empty.
type SheetView struct {
	name  string
	cells [][]Cell
	rows  int
	cols  int
}

// NewSheetView builds a view whose extent is exactly the given rows.
func NewSheetView(name string, cells [][]Cell) *SheetView {
	return NewSheetViewWithExtent(name, cells, 0, 0)
}

// NewSheetViewWithExtent builds a view with a declared extent, which is
// widened if the stored cells exceed it.
func NewSheetViewWithExtent(name string, cells [][]Cell, rows, cols int) *SheetView {
	if len(cells) > rows {
		rows = len(cells)
	}
	for _, r := range cells {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return &SheetView{name: name, cells: cells, rows: rows, cols: cols}
}

// Name returns the sheet name.
func (s *SheetView) Name() string { return s.name }

// Rows returns the number of rows in the sheet's extent.
func (s *SheetView) Rows() int { return s.rows }

// Cols returns the number of columns in the sheet's extent.
func (s *SheetView) Cols() int { return s.cols }

// InRange reports whether (row, col) lies inside the sheet's extent.
func (s *SheetView) InRange(row, col int) bool {
	return row >= 0 && col >= 0 && row < s.rows && col < s.cols
}

// Cell returns the cell at (row, col).
func (s *SheetView) Cell(row, col int) (Cell, error) {
	if !s.InRange(row, col) {
		return Cell{}, &CellRangeError{Sheet: s.name, Row: row, Col: col, Rows: s.rows, Cols: s.cols}
	}
	if row >= len(s.cells) || col >= len(s.cells[row]) {
		return Cell{}, nil
	}
	return s.cells[row][col], nil
}

// Row returns a copy of the stored cells of a row, without trailing empty
// cells. It is nil for empty rows inside the extent.
func (s *SheetView) Row(row int) ([]Cell, error) {
	if row < 0 || row >= s.rows {
		return nil, &CellRangeError{Sheet: s.name, Row: row, Col: 0, Rows: s.rows, Cols: s.cols}
	}
	if row >= len(s.cells) {
		return nil, nil
	}
	out := make([]Cell, len(s.cells[row]))
	copy(out, s.cells[row])
	return out, nil
}

// DataRows returns the number of rows up to the last stored row.
func (s *SheetView) DataRows() int {
	return len(s.cells)
}

// CellName converts 0-based coordinates to an A1-style reference.
func CellName(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row+1, col+1)
	}
	return name
}
