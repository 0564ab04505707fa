package workbook

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Document is an opened spreadsheet. It is read-only and may be shared, but
// each analysis run opens its own.
type Document struct {
	path   string
	sheets []*SheetView
}

// NewDocument wraps already decoded sheets, in document order.
func NewDocument(path string, sheets ...*SheetView) *Document {
	return &Document{path: path, sheets: sheets}
}

// Extensions lists the file extensions Open accepts.
var Extensions = []string{".ods", ".xlsx", ".xlsm"}

// Supported reports whether Open has a reader for name's extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Open reads the document at path, choosing the reader by file extension.
func Open(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ods":
		return OpenODS(path)
	case ".xlsx", ".xlsm":
		return OpenXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// Path returns the file the document was read from.
func (d *Document) Path() string { return d.path }

// Sheets returns the sheets in document order.
func (d *Document) Sheets() []*SheetView {
	out := make([]*SheetView, len(d.sheets))
	copy(out, d.sheets)
	return out
}

// SheetNames returns the sheet names in document order.
func (d *Document) SheetNames() []string {
	names := make([]string, len(d.sheets))
	for i, s := range d.sheets {
		names[i] = s.Name()
	}
	return names
}

// Close releases the decoded sheets.
func (d *Document) Close() error {
	d.sheets = nil
	return nil
}

// Locate returns the first sheet whose name exactly equals a candidate,
// trying candidates in order. It never falls back to another sheet.
func Locate(doc *Document, candidates ...string) (*SheetView, error) {
	for _, name := range candidates {
		for _, s := range doc.sheets {
			if s.Name() == name {
				return s, nil
			}
		}
	}
	return nil, &SheetNotFoundError{
		Attempted: append([]string(nil), candidates...),
		Available: doc.SheetNames(),
	}
}
