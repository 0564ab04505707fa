// Package files manages the file system side of analysis runs.
//
// Manager stores uploads in scratch directories. Every upload gets its own
// directory, so concurrent runs never share a file and Cleanup removes
// everything a run wrote:
//
//	scratch, err := manager.SaveUpload(part, header.Filename, cfg.Analysis.MaxUploadBytes)
//	if err != nil {
//	    return err
//	}
//	defer scratch.Cleanup()
//
// FindSpreadsheets and ExpandInputs discover workbooks in directories given
// to the command line analyzer.
package files
