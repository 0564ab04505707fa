package workbook

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSheetNotFound is returned when none of the candidate sheet names exist.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrCellOutOfRange is returned for coordinates outside a sheet's extent.
	ErrCellOutOfRange = errors.New("cell out of range")
	// ErrUnsupportedFormat is returned for file types no reader handles.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	// ErrMalformedDocument is returned when a file cannot be decoded.
	ErrMalformedDocument = errors.New("malformed spreadsheet document")
)

// SheetNotFoundError carries the names that were tried and the names present.
type SheetNotFoundError struct {
	Attempted []string
	Available []string
}

func (e *SheetNotFoundError) Error() string {
	return fmt.Sprintf("sheet not found: tried %s, document has %s",
		quoteList(e.Attempted), quoteList(e.Available))
}

func (e *SheetNotFoundError) Unwrap() error {
	return ErrSheetNotFound
}

// CellRangeError describes an access outside a sheet's extent.
type CellRangeError struct {
	Sheet string
	Row   int
	Col   int
	Rows  int
	Cols  int
}

func (e *CellRangeError) Error() string {
	return fmt.Sprintf("cell %s (row %d, col %d) is outside sheet %q of %d rows x %d cols",
		CellName(e.Row, e.Col), e.Row, e.Col, e.Sheet, e.Rows, e.Cols)
}

func (e *CellRangeError) Unwrap() error {
	return ErrCellOutOfRange
}

func quoteList(names []string) string {
	if len(names) == 0 {
		return "[]"
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
