package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"rejectcli/internal/workbook"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// FindSpreadsheets lists the readable workbooks directly inside dir, oldest
// first. Office lock files are skipped.
func FindSpreadsheets(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || IsLockFile(name) || !workbook.Supported(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// ExpandInputs replaces directory arguments by the spreadsheets they hold.
// File arguments are kept as given, even unsupported ones, so the caller
// reports them.
func ExpandInputs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			out = append(out, arg)
			continue
		}
		found, err := FindSpreadsheets(arg)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			out = append(out, f.Path)
		}
	}
	return out, nil
}

// IsLockFile reports whether name is an office suite lock file.
func IsLockFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".~lock.")
}
