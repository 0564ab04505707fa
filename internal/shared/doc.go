// Package shared holds helpers used by more than one package. Its testutil
// subpackage builds in-memory loggers and spreadsheet fixtures for tests:
//
//	logger, logs := testutil.NewTestLogger(t)
//	testutil.WriteODS(t, path, testutil.NewSheet("Size wise Rej").
//	    SetRow(0, "Date", "Thk", "Rej %").
//	    SetRow(1, "01-03-2024", 0.5, 2))
//
// Nothing here may carry business logic.
package shared
