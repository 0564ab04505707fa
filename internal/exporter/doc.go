// Package exporter writes analysis reports as JSON and as the CSV tables
// users open in their spreadsheet application.
//
// Tables use day-first dates (DateLayout), two decimals for rates and
// percentages, and empty cells for missing values. Files written by
// CSVWriter start with a UTF-8 BOM so Excel detects the encoding.
//
//	exp := exporter.NewReportExporter(outDir, logger)
//	paths, err := exp.Export(report)
package exporter
