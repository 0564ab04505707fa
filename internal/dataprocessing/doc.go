// Package dataprocessing turns rejection spreadsheets into clean, typed data.
//
// # Components
//
// The package is organized around the two sheet shapes it understands:
//
//  1. FixedLayoutExtractor: grand total and per-category subtotals read from
//     fixed coordinates of the aggregate sheet.
//  2. TrendExtractor: dated rejection rates read from a fixed row window of
//     the same sheet, optionally passed through a GapFiller.
//  3. GuidedColumnMapper: a header-driven detail sheet whose date, category
//     and rate columns are named by advisory guidance or by the user.
//  4. CategoryStats and PivotByDate: aggregates over the clean detail table.
//
// DateParser and NumericCoercer are shared by all of them.
//
// # Usage
//
//	sheet, err := workbook.Locate(doc, cfg.Aggregate.SheetNames...)
//	if err != nil {
//	    return err
//	}
//	coercer := dataprocessing.NewNumericCoercer(cfg.ErrorSentinels, true)
//	breakdown, warnings, err := dataprocessing.NewFixedLayoutExtractor(cfg.Aggregate, coercer, logger).Extract(sheet)
//
// # Error Handling
//
// Row-level problems never abort an extraction. They are returned as
// domain.RowWarning values carrying the 1-based sheet row. Sheet-level
// problems are returned as errors and match one of:
//
//   - workbook.ErrCellOutOfRange
//   - ErrEmptyResultSet
//   - ErrManualMappingRequired, together with ErrAdvisoryUnavailable or
//     ErrColumnMappingUnresolved
package dataprocessing
