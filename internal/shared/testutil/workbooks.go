package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Date is a cell value written as a typed date (office:date-value in ODS,
// a date-formatted serial in XLSX). Format: YYYY-MM-DD.
type Date string

// Percent is a numeric cell with percentage formatting. The stored value is
// the fraction, as spreadsheet applications store it.
type Percent float64

// FormulaError is a cell holding a formula error such as "#DIV/0!".
type FormulaError string

// Sheet describes one fixture sheet. Values may be nil, string, int,
// float64, Date, Percent or FormulaError.
type Sheet struct {
	Name string
	Rows [][]any
	// TrailingRows appends a repeated empty row block, as office suites do
	// to declare the full sheet height.
	TrailingRows int
}

// NewSheet returns an empty fixture sheet.
func NewSheet(name string) *Sheet {
	return &Sheet{Name: name}
}

// Set stores v at 0-based (row, col), growing the grid as needed.
func (s *Sheet) Set(row, col int, v any) *Sheet {
	for len(s.Rows) <= row {
		s.Rows = append(s.Rows, nil)
	}
	for len(s.Rows[row]) <= col {
		s.Rows[row] = append(s.Rows[row], nil)
	}
	s.Rows[row][col] = v
	return s
}

// SetRow stores values starting at (row, 0).
func (s *Sheet) SetRow(row int, values ...any) *Sheet {
	for col, v := range values {
		s.Set(row, col, v)
	}
	return s
}

// ODSBytes renders the sheets as an OpenDocument spreadsheet.
func ODSBytes(t testing.TB, sheets ...*Sheet) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// mimetype must be the first, uncompressed entry
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("application/vnd.oasis.opendocument.spreadsheet"))
	require.NoError(t, err)

	w, err = zw.Create("META-INF/manifest.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(odsManifest))
	require.NoError(t, err)

	w, err = zw.Create("content.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(odsContent(sheets)))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteODS writes the sheets as an OpenDocument spreadsheet at path.
func WriteODS(t testing.TB, path string, sheets ...*Sheet) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, ODSBytes(t, sheets...), 0644))
}

// WriteXLSX writes the sheets as an Office Open XML workbook at path.
func WriteXLSX(t testing.TB, path string, sheets ...*Sheet) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	pct, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	require.NoError(t, err)
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)

	for i, sheet := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sheet.Name))
		} else {
			_, err := f.NewSheet(sheet.Name)
			require.NoError(t, err)
		}

		for r, row := range sheet.Rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				axis, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)

				switch val := v.(type) {
				case Date:
					d, err := time.Parse("2006-01-02", string(val))
					require.NoError(t, err)
					require.NoError(t, f.SetCellValue(sheet.Name, axis, d))
					require.NoError(t, f.SetCellStyle(sheet.Name, axis, axis, dateStyle))
				case Percent:
					require.NoError(t, f.SetCellFloat(sheet.Name, axis, float64(val), -1, 64))
					require.NoError(t, f.SetCellStyle(sheet.Name, axis, axis, pct))
				case FormulaError:
					require.NoError(t, f.SetCellStr(sheet.Name, axis, string(val)))
				default:
					require.NoError(t, f.SetCellValue(sheet.Name, axis, val))
				}
			}
		}
	}

	require.NoError(t, f.SaveAs(path))
}

const odsManifest = `<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">
 <manifest:file-entry manifest:full-path="/" manifest:media-type="application/vnd.oasis.opendocument.spreadsheet"/>
 <manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>
</manifest:manifest>`

func odsContent(sheets []*Sheet) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<office:document-content` +
		` xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"` +
		` xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"` +
		` xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"` +
		` xmlns:calcext="urn:org:documentfoundation:names:experimental:calc:xmlns:calcext:1.0"` +
		` office:version="1.2"><office:body><office:spreadsheet>`)

	for _, sheet := range sheets {
		fmt.Fprintf(&b, `<table:table table:name="%s">`, escape(sheet.Name))

		width := 0
		for _, row := range sheet.Rows {
			if len(row) > width {
				width = len(row)
			}
		}
		if width > 0 {
			fmt.Fprintf(&b, `<table:table-column table:number-columns-repeated="%d"/>`, width)
		}

		for _, row := range sheet.Rows {
			b.WriteString(`<table:table-row>`)
			for _, v := range row {
				b.WriteString(odsCell(v))
			}
			b.WriteString(`</table:table-row>`)
		}
		if sheet.TrailingRows > 0 {
			fmt.Fprintf(&b, `<table:table-row table:number-rows-repeated="%d"><table:table-cell table:number-columns-repeated="%d"/></table:table-row>`,
				sheet.TrailingRows, max(width, 1))
		}
		b.WriteString(`</table:table>`)
	}

	b.WriteString(`</office:spreadsheet></office:body></office:document-content>`)
	return b.String()
}

func odsCell(v any) string {
	switch val := v.(type) {
	case nil:
		return `<table:table-cell/>`
	case string:
		if val == "" {
			return `<table:table-cell/>`
		}
		return fmt.Sprintf(`<table:table-cell office:value-type="string"><text:p>%s</text:p></table:table-cell>`, escape(val))
	case int:
		return floatCell(float64(val))
	case float64:
		return floatCell(val)
	case Percent:
		s := strconv.FormatFloat(float64(val), 'f', -1, 64)
		return fmt.Sprintf(`<table:table-cell office:value-type="percentage" office:value="%s"><text:p>%s%%</text:p></table:table-cell>`,
			s, strconv.FormatFloat(float64(val)*100, 'f', 2, 64))
	case Date:
		return fmt.Sprintf(`<table:table-cell office:value-type="date" office:date-value="%sT00:00:00"><text:p>%s</text:p></table:table-cell>`,
			escape(string(val)), escape(string(val)))
	case FormulaError:
		return fmt.Sprintf(`<table:table-cell table:formula="of:=[.A1]/0" office:value-type="string" office:string-value="" calcext:value-type="error"><text:p>%s</text:p></table:table-cell>`,
			escape(string(val)))
	default:
		panic(fmt.Sprintf("testutil: unsupported cell value %T", v))
	}
}

func floatCell(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return fmt.Sprintf(`<table:table-cell office:value-type="float" office:value="%s"><text:p>%s</text:p></table:table-cell>`, s, s)
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
