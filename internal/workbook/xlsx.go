package workbook

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// OpenXLSX reads an Office Open XML workbook from disk.
func OpenXLSX(path string) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filepath.Base(path), err)
	}
	defer f.Close()

	return readXLSX(f, path)
}

// ReadXLSX reads an Office Open XML workbook from r.
func ReadXLSX(r io.Reader, name string) (*Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filepath.Base(name), err)
	}
	defer f.Close()

	return readXLSX(f, name)
}

func readXLSX(f *excelize.File, path string) (*Document, error) {
	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	var sheets []*SheetView
	for _, name := range f.GetSheetList() {
		shown, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrMalformedDocument, name, err)
		}
		raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", ErrMalformedDocument, name, err)
		}

		cells := make([][]Cell, len(shown))
		for r := range shown {
			row := make([]Cell, len(shown[r]))
			for c := range shown[r] {
				rawValue := ""
				if r < len(raw) && c < len(raw[r]) {
					rawValue = raw[r][c]
				}
				row[c] = xlsxCell(f, name, r, c, shown[r][c], rawValue, date1904)
			}
			cells[r] = trimTrailingEmpty(row)
		}

		rows, cols := xlsxExtent(f, name)
		sheets = append(sheets, NewSheetViewWithExtent(name, cells, rows, cols))
	}

	return NewDocument(path, sheets...), nil
}

// xlsxCell types one cell. Numeric storage becomes a Number cell unless the
// cell is a string or carries a date format, in which case dates are rendered
// as YYYY-MM-DD like OpenDocument date values.
func xlsxCell(f *excelize.File, sheet string, r, c int, shown, raw string, date1904 bool) Cell {
	if strings.TrimSpace(shown) == "" && strings.TrimSpace(raw) == "" {
		return Cell{}
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return TextCell(shown)
	}

	axis := CellName(r, c)
	switch ct, _ := f.GetCellType(sheet, axis); ct {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return TextCell(shown)
	}

	if isDateFormatted(f, sheet, axis) {
		if t, err := excelize.ExcelDateToTime(v, date1904); err == nil {
			return Cell{Kind: String, Text: t.Format("2006-01-02")}
		}
	}

	return Cell{Kind: Number, Number: v, Text: shown}
}

func isDateFormatted(f *excelize.File, sheet, axis string) bool {
	idx, err := f.GetCellStyle(sheet, axis)
	if err != nil || idx == 0 {
		return false
	}
	style, err := f.GetStyle(idx)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	switch n := style.NumFmt; {
	case n >= 14 && n <= 17, n == 22:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format renders a date.
// Quoted literals and bracketed sections ([Red], [$-409]) are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	return strings.ContainsAny(cleaned, "dy")
}

func xlsxExtent(f *excelize.File, sheet string) (int, int) {
	dim, err := f.GetSheetDimension(sheet)
	if err != nil || dim == "" {
		return 0, 0
	}
	parts := strings.Split(dim, ":")
	col, row, err := excelize.CellNameToCoordinates(parts[len(parts)-1])
	if err != nil {
		return 0, 0
	}
	return row, col
}

func trimTrailingEmpty(row []Cell) []Cell {
	n := len(row)
	for n > 0 && row[n-1].IsEmpty() {
		n--
	}
	if n == 0 {
		return nil
	}
	return row[:n]
}
