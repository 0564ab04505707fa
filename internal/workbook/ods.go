package workbook

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	nsOffice = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
	nsTable  = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsText   = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"

	// Sheet size limits of current office suites. Repeat counts past them are
	// clipped so a styled empty tail cannot inflate memory.
	maxODSRows = 1 << 20
	maxODSCols = 1 << 14
)

// OpenODS reads an OpenDocument spreadsheet from disk.
func OpenODS(path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filepath.Base(path), err)
	}
	defer zr.Close()

	return readODS(&zr.Reader, path)
}

// ReadODS reads an OpenDocument spreadsheet from r; name is recorded as the
// document path.
func ReadODS(r io.ReaderAt, size int64, name string) (*Document, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filepath.Base(name), err)
	}
	return readODS(zr, name)
}

func readODS(zr *zip.Reader, path string) (*Document, error) {
	var content *zip.File
	for _, f := range zr.File {
		if f.Name == "content.xml" {
			content = f
			break
		}
	}
	if content == nil {
		return nil, fmt.Errorf("%w: %s has no content.xml", ErrMalformedDocument, filepath.Base(path))
	}

	rc, err := content.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filepath.Base(path), err)
	}
	defer rc.Close()

	sheets, err := decodeODSContent(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, filepath.Base(path), err)
	}

	return NewDocument(path, sheets...), nil
}

// decodeODSContent streams content.xml and builds one SheetView per table.
func decodeODSContent(r io.Reader) ([]*SheetView, error) {
	dec := xml.NewDecoder(r)

	var (
		sheets []*SheetView
		table  *odsTable
		cell   *odsCell
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch {
			case isTable(el.Name, "table"):
				table = &odsTable{name: attr(el, nsTable, "name")}
			case table == nil:
			case isTable(el.Name, "table-column"):
				table.declaredCols = clip(table.declaredCols+repeatAttr(el, "number-columns-repeated"), maxODSCols)
			case isTable(el.Name, "table-row"):
				table.startRow(repeatAttr(el, "number-rows-repeated"))
			case isTable(el.Name, "table-cell"), isTable(el.Name, "covered-table-cell"):
				cell = newODSCell(el)
			case cell != nil:
				cell.start(el)
			}

		case xml.CharData:
			if cell != nil {
				cell.chars(el)
			}

		case xml.EndElement:
			switch {
			case isTable(el.Name, "table") && table != nil:
				sheets = append(sheets, table.view())
				table = nil
			case table == nil:
			case isTable(el.Name, "table-row"):
				table.endRow()
			case isTable(el.Name, "table-cell"), isTable(el.Name, "covered-table-cell"):
				if cell != nil {
					table.addCell(cell.resolve(), cell.repeat)
					cell = nil
				}
			case cell != nil:
				cell.end(el)
			}
		}
	}

	return sheets, nil
}

// odsTable accumulates one table. Empty rows and cells are counted and only
// materialized once a later value needs them, so trailing blanks are never stored.
type odsTable struct {
	name string
	rows [][]Cell

	pendingRows  int
	declaredRows int
	declaredCols int
	widestRow    int

	row          []Cell
	pendingCells int
	rowRepeat    int
}

func (t *odsTable) startRow(repeat int) {
	t.row = nil
	t.pendingCells = 0
	t.rowRepeat = repeat
}

func (t *odsTable) addCell(c Cell, repeat int) {
	if c.IsEmpty() {
		t.pendingCells = clip(t.pendingCells+repeat, maxODSCols)
		return
	}
	for ; t.pendingCells > 0 && len(t.row) < maxODSCols; t.pendingCells-- {
		t.row = append(t.row, Cell{})
	}
	t.pendingCells = 0
	for i := 0; i < repeat && len(t.row) < maxODSCols; i++ {
		t.row = append(t.row, c)
	}
}

func (t *odsTable) endRow() {
	if width := clip(len(t.row)+t.pendingCells, maxODSCols); width > t.widestRow {
		t.widestRow = width
	}

	if len(t.row) == 0 {
		t.pendingRows = clip(t.pendingRows+t.rowRepeat, maxODSRows)
	} else {
		for ; t.pendingRows > 0 && len(t.rows) < maxODSRows; t.pendingRows-- {
			t.rows = append(t.rows, nil)
		}
		t.pendingRows = 0
		for i := 0; i < t.rowRepeat && len(t.rows) < maxODSRows; i++ {
			t.rows = append(t.rows, t.row)
		}
	}

	t.declaredRows = clip(t.declaredRows+t.rowRepeat, maxODSRows)
	t.row = nil
}

func (t *odsTable) view() *SheetView {
	cols := t.declaredCols
	if t.widestRow > cols {
		cols = t.widestRow
	}
	return NewSheetViewWithExtent(t.name, t.rows, t.declaredRows, cols)
}

// odsCell collects the attributes and paragraph text of one table cell.
type odsCell struct {
	valueType   string
	value       string
	dateValue   string
	timeValue   string
	boolValue   string
	stringValue string
	repeat      int

	text       strings.Builder
	paragraphs int
	inPara     int
	skip       int
}

func newODSCell(el xml.StartElement) *odsCell {
	return &odsCell{
		valueType:   attr(el, nsOffice, "value-type"),
		value:       attr(el, nsOffice, "value"),
		dateValue:   attr(el, nsOffice, "date-value"),
		timeValue:   attr(el, nsOffice, "time-value"),
		boolValue:   attr(el, nsOffice, "boolean-value"),
		stringValue: attr(el, nsOffice, "string-value"),
		repeat:      repeatAttr(el, "number-columns-repeated"),
	}
}

func (c *odsCell) start(el xml.StartElement) {
	if el.Name.Space == nsOffice && el.Name.Local == "annotation" {
		c.skip++
		return
	}
	if c.skip > 0 || el.Name.Space != nsText {
		return
	}

	switch el.Name.Local {
	case "p", "h":
		if c.paragraphs > 0 {
			c.text.WriteByte('\n')
		}
		c.paragraphs++
		c.inPara++
	case "s":
		n, err := strconv.Atoi(attr(el, nsText, "c"))
		if err != nil || n < 1 {
			n = 1
		}
		c.text.WriteString(strings.Repeat(" ", n))
	case "tab":
		c.text.WriteByte('\t')
	case "line-break":
		c.text.WriteByte('\n')
	}
}

func (c *odsCell) end(el xml.EndElement) {
	if el.Name.Space == nsOffice && el.Name.Local == "annotation" {
		c.skip--
		return
	}
	if c.skip == 0 && el.Name.Space == nsText && (el.Name.Local == "p" || el.Name.Local == "h") {
		c.inPara--
	}
}

func (c *odsCell) chars(data xml.CharData) {
	if c.skip == 0 && c.inPara > 0 {
		c.text.Write(data)
	}
}

// resolve turns the typed office attributes into a Cell, falling back to the
// displayed text. Non-finite values stay text.
func (c *odsCell) resolve() Cell {
	text := c.text.String()

	switch c.valueType {
	case "float", "percentage", "currency":
		if v, err := strconv.ParseFloat(c.value, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return Cell{Kind: Number, Number: v, Text: text}
		}
	case "date":
		if d := c.dateValue; d != "" {
			if i := strings.IndexByte(d, 'T'); i >= 0 {
				d = d[:i]
			}
			return Cell{Kind: String, Text: d}
		}
	case "time":
		if c.timeValue != "" {
			return Cell{Kind: String, Text: c.timeValue}
		}
	case "boolean":
		if c.boolValue != "" {
			return Cell{Kind: String, Text: c.boolValue}
		}
	case "string":
		if c.stringValue != "" {
			return TextCell(c.stringValue)
		}
	}

	return TextCell(text)
}

func isTable(name xml.Name, local string) bool {
	return name.Space == nsTable && name.Local == local
}

func attr(el xml.StartElement, space, local string) string {
	for _, a := range el.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func repeatAttr(el xml.StartElement, local string) int {
	n, err := strconv.Atoi(attr(el, nsTable, local))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func clip(n, limit int) int {
	if n > limit {
		return limit
	}
	return n
}
