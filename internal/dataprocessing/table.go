package dataprocessing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"rejectcli/internal/workbook"
)

// RowTable is a header-driven view of a row-oriented sheet.
type RowTable struct {
	Sheet     string
	HeaderRow int
	Headers   []string
	Rows      [][]workbook.Cell
}

// NewRowTable reads headers from headerRow (0-based) and treats every later
// stored row as data. Blank headers are named Column_<index>.
func NewRowTable(sheet *workbook.SheetView, headerRow int) (*RowTable, error) {
	header, err := sheet.Row(headerRow)
	if err != nil {
		return nil, fmt.Errorf("header row: %w", err)
	}

	width := len(header)
	var rows [][]workbook.Cell
	for r := headerRow + 1; r < sheet.DataRows(); r++ {
		row, err := sheet.Row(r)
		if err != nil {
			return nil, err
		}
		if len(row) > width {
			width = len(row)
		}
		rows = append(rows, row)
	}

	headers := make([]string, width)
	for i := range headers {
		if i < len(header) && !header[i].IsEmpty() {
			headers[i] = header[i].Value()
		} else {
			headers[i] = fmt.Sprintf("Column_%d", i)
		}
	}

	return &RowTable{Sheet: sheet.Name(), HeaderRow: headerRow, Headers: headers, Rows: rows}, nil
}

// Cell returns the cell of data row i in column col, empty when ragged.
func (t *RowTable) Cell(i, col int) workbook.Cell {
	if i < 0 || i >= len(t.Rows) || col < 0 || col >= len(t.Rows[i]) {
		return workbook.Cell{}
	}
	return t.Rows[i][col]
}

// SheetRow converts data row index i to the 1-based sheet row number.
func (t *RowTable) SheetRow(i int) int {
	return t.HeaderRow + 2 + i
}

// Column finds a header by exact name, then case-insensitively after trimming.
func (t *RowTable) Column(name string) (int, bool) {
	for i, h := range t.Headers {
		if h == name {
			return i, true
		}
	}
	want := strings.TrimSpace(name)
	for i, h := range t.Headers {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i, true
		}
	}
	return -1, false
}

func (t *RowTable) blank(i int) bool {
	for _, c := range t.Rows[i] {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Summarize renders the headers and up to maxRows data rows as text for the
// advisory service, cut at maxBytes.
func Summarize(t *RowTable, maxRows, maxBytes int) string {
	var b strings.Builder
	b.WriteString("Headers: ")
	b.WriteString(strings.Join(t.Headers, ", "))
	b.WriteString("\n\n")

	if maxBytes > 0 && b.Len() > maxBytes {
		return truncateUTF8(b.String(), maxBytes)
	}

	n := 0
	for i := range t.Rows {
		if maxRows > 0 && n >= maxRows {
			break
		}
		if t.blank(i) {
			continue
		}

		pairs := make([]string, len(t.Headers))
		for col, h := range t.Headers {
			pairs[col] = h + "=" + t.Cell(i, col).Value()
		}
		line := strings.Join(pairs, " | ") + "\n"

		if maxBytes > 0 && b.Len()+len(line) > maxBytes {
			break
		}
		b.WriteString(line)
		n++
	}
	return b.String()
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
