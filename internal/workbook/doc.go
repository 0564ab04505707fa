// Package workbook provides a read-only, format-neutral view of spreadsheet
// documents.
//
// A Document owns the SheetViews of one opened file. Each SheetView is a
// 0-based grid of Cells; reading outside the sheet's extent returns a
// *CellRangeError rather than an empty value, so callers can tell a missing
// coordinate from an empty cell.
//
// OpenDocument spreadsheets (.ods) are decoded from their content.xml part.
// Office Open XML workbooks (.xlsx, .xlsm) are read through excelize.
//
// Sheets are selected by exact name with Locate, which tries candidate names
// in order and never falls back to another sheet:
//
//	doc, err := workbook.Open(path)
//	if err != nil {
//		return err
//	}
//	defer doc.Close()
//
//	sheet, err := workbook.Locate(doc, "Stamping Rej", "Stamping Rejection")
//	if errors.Is(err, workbook.ErrSheetNotFound) {
//		// wrong file
//	}
package workbook
