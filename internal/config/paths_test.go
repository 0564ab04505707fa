package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()
	absReports := filepath.Join(t.TempDir(), "elsewhere")

	paths, err := ResolvePaths(PathsConfig{
		DataDir:    "data",
		UploadsDir: "data/uploads",
		ReportsDir: absReports,
		LogsDir:    "logs",
	}, base)
	require.NoError(t, err)

	assert.Equal(t, base, paths.BaseDir)
	assert.Equal(t, filepath.Join(base, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(base, "data", "uploads"), paths.UploadsDir)
	assert.Equal(t, absReports, paths.ReportsDir)
	assert.Equal(t, filepath.Join(base, "logs"), paths.LogsDir)
}

func TestResolvePathsDefaultsToExecutableDir(t *testing.T) {
	paths, err := ResolvePaths(PathsConfig{DataDir: "data"}, "")
	require.NoError(t, err)

	exeDir, err := ExecutableDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exeDir, "data"), paths.DataDir)
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	paths, err := ResolvePaths(Default().Paths, base)
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())

	for _, dir := range []string{paths.DataDir, paths.UploadsDir, paths.ReportsDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestReportPath(t *testing.T) {
	paths := &Paths{ReportsDir: "/reports"}

	assert.Equal(t, filepath.Join("/reports", "march.breakdown.csv"), paths.ReportPath("/in/march.ods", "breakdown.csv"))
	assert.Equal(t, filepath.Join("/reports", "april.report.json"), paths.ReportPath("april.xlsx", "report.json"))
}

func TestFileExists(t *testing.T) {
	file := filepath.Join(t.TempDir(), "present.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	assert.True(t, FileExists(file))
	assert.False(t, FileExists(file+".missing"))
}
