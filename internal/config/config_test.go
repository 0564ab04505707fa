package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile writes a YAML config into a temp dir and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults without env or file",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"Stamping Rej"}, cfg.Analysis.Aggregate.SheetNames)
				assert.Equal(t, 49, cfg.Analysis.Aggregate.TotalRow)
				assert.Equal(t, 2, cfg.Analysis.Aggregate.TotalCol)
				assert.Len(t, cfg.Analysis.Aggregate.Categories, 21)
				assert.Equal(t, 16, cfg.Analysis.Aggregate.TrendFirstRow)
				assert.Equal(t, 46, cfg.Analysis.Aggregate.TrendLastRow)
				assert.Equal(t, 25, cfg.Analysis.Aggregate.TrendRateCol)
				assert.Equal(t, 5, cfg.Analysis.Aggregate.TopCategories)
				assert.Equal(t, []string{"Size wise Rej"}, cfg.Analysis.Detail.SheetNames)
				assert.Equal(t, "keep", cfg.Analysis.Detail.ZeroRate)
				assert.Equal(t, "drop", cfg.Analysis.Detail.ZeroCategory)
				assert.False(t, cfg.Advisory.Enabled)
				assert.Equal(t, 60*time.Second, cfg.Advisory.Timeout)
			},
		},
		{
			name: "environment variables override defaults",
			env: map[string]string{
				"REJ_SERVER_PORT":                    "9090",
				"REJ_SERVER_READ_TIMEOUT":            "30s",
				"REJ_SECURITY_ALLOWED_ORIGINS":       "http://example.com,https://example.com",
				"REJ_LOGGING_LEVEL":                  "debug",
				"REJ_ANALYSIS_AGGREGATE_SHEET_NAMES": "Stamping Rej,Stamping",
				"REJ_ANALYSIS_DETAIL_ZERO_RATE":      "drop",
				"REJ_ADVISORY_TIMEOUT":               "5s",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, []string{"http://example.com", "https://example.com"}, cfg.Security.AllowedOrigins)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, []string{"Stamping Rej", "Stamping"}, cfg.Analysis.Aggregate.SheetNames)
				assert.Equal(t, "drop", cfg.Analysis.Detail.ZeroRate)
				assert.Equal(t, 5*time.Second, cfg.Advisory.Timeout)
			},
		},
		{
			name: "file overlays defaults and env wins over file",
			env: map[string]string{
				"REJ_SERVER_PORT":   "7070",
				"REJ_LOGGING_LEVEL": "warn",
			},
			file: `
server:
  port: 6060
  read_timeout: 20s
logging:
  level: error
analysis:
  aggregate:
    total_row: 10
    total_col: 1
    categories:
      - {label: Bend, col: 2}
      - {label: Crack, col: 3}
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, 20*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "warn", cfg.Logging.Level)
				assert.Equal(t, 10, cfg.Analysis.Aggregate.TotalRow)
				assert.Equal(t, []CategoryColumn{{Label: "Bend", Col: 2}, {Label: "Crack", Col: 3}}, cfg.Analysis.Aggregate.Categories)
				// untouched keys keep their defaults
				assert.Equal(t, 46, cfg.Analysis.Aggregate.TrendLastRow)
			},
		},
		{
			name:    "invalid port number",
			env:     map[string]string{"REJ_SERVER_PORT": "99999"},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			env:     map[string]string{"REJ_SERVER_READ_TIMEOUT": "-5s"},
			wantErr: true,
		},
		{
			name:    "unknown gap fill strategy",
			env:     map[string]string{"REJ_ANALYSIS_GAP_FILL": "spline"},
			wantErr: true,
		},
		{
			name:    "unknown zero policy",
			env:     map[string]string{"REJ_ANALYSIS_DETAIL_ZERO_CATEGORY": "maybe"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [unterminated",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			} else {
				// point at a directory without config.yaml
				wd, _ := os.Getwd()
				require.NoError(t, os.Chdir(t.TempDir()))
				t.Cleanup(func() { _ = os.Chdir(wd) })
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default config is valid",
			mutate: func(*Config) {},
		},
		{
			name: "inverted trend window",
			mutate: func(c *Config) {
				c.Analysis.Aggregate.TrendFirstRow = 40
				c.Analysis.Aggregate.TrendLastRow = 20
			},
			wantErr: "trend window is inverted",
		},
		{
			name: "date and rate share a column",
			mutate: func(c *Config) {
				c.Analysis.Aggregate.TrendRateCol = c.Analysis.Aggregate.TrendDateCol
			},
			wantErr: "must differ",
		},
		{
			name: "duplicate category column",
			mutate: func(c *Config) {
				c.Analysis.Aggregate.Categories[1].Col = c.Analysis.Aggregate.Categories[0].Col
			},
			wantErr: "share column",
		},
		{
			name: "category on the grand total column",
			mutate: func(c *Config) {
				c.Analysis.Aggregate.Categories[0].Col = c.Analysis.Aggregate.TotalCol
			},
			wantErr: "grand total column",
		},
		{
			name: "no candidate sheet names",
			mutate: func(c *Config) {
				c.Analysis.Detail.SheetNames = nil
			},
			wantErr: "SheetNames",
		},
		{
			name: "advisory enabled without model",
			mutate: func(c *Config) {
				c.Advisory.Enabled = true
				c.Advisory.Model = ""
			},
			wantErr: "Model",
		},
		{
			name: "file output gets a default path",
			mutate: func(c *Config) {
				c.Logging.Output = "file"
				c.Logging.FilePath = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if cfg.Logging.Output != "console" {
				assert.NotEmpty(t, cfg.Logging.FilePath)
			}
		})
	}
}

func TestDefaultCategories(t *testing.T) {
	cats := DefaultCategories()

	require.Len(t, cats, 21)
	assert.Equal(t, CategoryColumn{Label: "Layer Open", Col: 3}, cats[0])
	assert.Equal(t, CategoryColumn{Label: "Lab Sheet", Col: 23}, cats[20])
}

func TestDefaultReturnsFreshCopies(t *testing.T) {
	a := Default()
	b := Default()

	a.Analysis.Aggregate.Categories[0].Label = "changed"
	assert.Equal(t, "Layer Open", b.Analysis.Aggregate.Categories[0].Label)
}
