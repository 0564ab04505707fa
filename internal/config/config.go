package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "REJ"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Advisory  AdvisoryConfig  `yaml:"advisory" envconfig:"ADVISORY"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// AnalysisTimeout bounds a single upload-and-analyze request.
	AnalysisTimeout time.Duration `yaml:"analysis_timeout" envconfig:"ANALYSIS_TIMEOUT" validate:"gt=0"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"min=1"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// APIKeys, when set, must be presented in X-API-Key on /api routes.
	APIKeys        []string        `yaml:"api_keys" envconfig:"API_KEYS"`
	DevMode        bool            `yaml:"dev_mode" envconfig:"DEV_MODE"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	UploadsDir string `yaml:"uploads_dir" envconfig:"UPLOADS_DIR"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// AnalysisConfig describes where the rejection data lives inside a workbook
// and how noisy values are treated.
type AnalysisConfig struct {
	Aggregate AggregateSheetConfig `yaml:"aggregate" envconfig:"AGGREGATE"`
	Detail    DetailSheetConfig    `yaml:"detail" envconfig:"DETAIL"`

	// ErrorSentinels are spreadsheet formula errors read as missing values.
	ErrorSentinels []string `yaml:"error_sentinels" envconfig:"ERROR_SENTINELS"`
	GapFill        string   `yaml:"gap_fill" envconfig:"GAP_FILL" validate:"oneof=none mean neighbors"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
}

// AggregateSheetConfig holds the coordinate contract of the fixed-layout sheet.
// All rows and columns are 0-based.
type AggregateSheetConfig struct {
	SheetNames []string         `yaml:"sheet_names" envconfig:"SHEET_NAMES" validate:"min=1,dive,required"`
	TotalRow   int              `yaml:"total_row" envconfig:"TOTAL_ROW" validate:"gte=0"`
	TotalCol   int              `yaml:"total_col" envconfig:"TOTAL_COL" validate:"gte=0"`
	Categories []CategoryColumn `yaml:"categories" ignored:"true" validate:"min=1,dive"`

	TrendFirstRow int `yaml:"trend_first_row" envconfig:"TREND_FIRST_ROW" validate:"gte=0"`
	TrendLastRow  int `yaml:"trend_last_row" envconfig:"TREND_LAST_ROW" validate:"gte=0"`
	TrendDateCol  int `yaml:"trend_date_col" envconfig:"TREND_DATE_COL" validate:"gte=0"`
	TrendRateCol  int `yaml:"trend_rate_col" envconfig:"TREND_RATE_COL" validate:"gte=0"`

	// TopCategories is how many leading breakdown items the report lists; 0 omits the list.
	TopCategories int `yaml:"top_categories" envconfig:"TOP_CATEGORIES" validate:"gte=0"`
}

// CategoryColumn pairs a rejection category label with its subtotal column.
type CategoryColumn struct {
	Label string `yaml:"label" validate:"required"`
	Col   int    `yaml:"col" validate:"gte=0"`
}

// DetailSheetConfig configures the header-driven, row-oriented sheet.
type DetailSheetConfig struct {
	SheetNames   []string `yaml:"sheet_names" envconfig:"SHEET_NAMES" validate:"min=1,dive,required"`
	HeaderRow    int      `yaml:"header_row" envconfig:"HEADER_ROW" validate:"gte=0"`
	SampleRows   int      `yaml:"sample_rows" envconfig:"SAMPLE_ROWS" validate:"gt=0"`
	SummaryBytes int      `yaml:"summary_bytes" envconfig:"SUMMARY_BYTES" validate:"gt=0"`

	DateKeyword     string `yaml:"date_keyword" envconfig:"DATE_KEYWORD" validate:"required"`
	CategoryKeyword string `yaml:"category_keyword" envconfig:"CATEGORY_KEYWORD" validate:"required"`
	RateKeyword     string `yaml:"rate_keyword" envconfig:"RATE_KEYWORD" validate:"required"`

	// ZeroCategory and ZeroRate decide whether a coerced value of exactly 0
	// keeps or drops the row.
	ZeroCategory string `yaml:"zero_category" envconfig:"ZERO_CATEGORY" validate:"oneof=keep drop"`
	ZeroRate     string `yaml:"zero_rate" envconfig:"ZERO_RATE" validate:"oneof=keep drop"`
}

// AdvisoryConfig configures the external column-identification service.
type AdvisoryConfig struct {
	Enabled    bool          `yaml:"enabled" envconfig:"ENABLED"`
	BaseURL    string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required_if=Enabled true,omitempty,url"`
	APIKey     string        `yaml:"api_key" envconfig:"API_KEY"`
	APIVersion string        `yaml:"api_version" envconfig:"API_VERSION"`
	Model      string        `yaml:"model" envconfig:"MODEL" validate:"required_if=Enabled true"`
	MaxTokens  int           `yaml:"max_tokens" envconfig:"MAX_TOKENS" validate:"gte=0"`
	Timeout    time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
}

// TelemetryConfig mirrors the OpenTelemetry bootstrap options.
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	EnableTracing  bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics  bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Load builds the configuration from defaults, an optional YAML file and
// REJ_* environment variables, in increasing order of precedence. An empty
// path searches the usual locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and the cross-field rules of the coordinate contract.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	agg := c.Analysis.Aggregate
	if agg.TrendLastRow < agg.TrendFirstRow {
		return fmt.Errorf("trend window is inverted: rows %d..%d", agg.TrendFirstRow, agg.TrendLastRow)
	}
	if agg.TrendDateCol == agg.TrendRateCol {
		return fmt.Errorf("trend date and rate columns must differ (both %d)", agg.TrendDateCol)
	}

	seen := make(map[int]string, len(agg.Categories))
	for _, cat := range agg.Categories {
		if cat.Col == agg.TotalCol {
			return fmt.Errorf("category %q shares the grand total column %d", cat.Label, cat.Col)
		}
		if prev, ok := seen[cat.Col]; ok {
			return fmt.Errorf("categories %q and %q share column %d", prev, cat.Label, cat.Col)
		}
		seen[cat.Col] = cat.Label
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// DefaultCategories returns the 21 rejection categories of the stamping
// workbook, paired with their subtotal columns.
func DefaultCategories() []CategoryColumn {
	labels := []string{
		"Layer Open", "Water Mark", "Extra Material", "Bend", "Edge Damage",
		"TWM", "VC", "TC", "Cutting Mist", "Side Damage",
		"Corner Damage", "LT", "FT", "Surf Defect", "Hole Damage",
		"Temp Damage", "Rolling Particle", "TV", "GSD", "Brittle",
		"Lab Sheet",
	}
	cats := make([]CategoryColumn, len(labels))
	for i, label := range labels {
		cats[i] = CategoryColumn{Label: label, Col: 3 + i}
	}
	return cats
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			AnalysisTimeout: 90 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir:    "data",
			UploadsDir: "data/uploads",
			ReportsDir: "data/reports",
			LogsDir:    "logs",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
		Analysis: AnalysisConfig{
			Aggregate: AggregateSheetConfig{
				SheetNames:    []string{"Stamping Rej"},
				TotalRow:      49,
				TotalCol:      2,
				Categories:    DefaultCategories(),
				TrendFirstRow: 16,
				TrendLastRow:  46,
				TrendDateCol:  1,
				TrendRateCol:  25,
				TopCategories: 5,
			},
			Detail: DetailSheetConfig{
				SheetNames:      []string{"Size wise Rej"},
				HeaderRow:       0,
				SampleRows:      50,
				SummaryBytes:    32 << 10,
				DateKeyword:     "date",
				CategoryKeyword: "thickness",
				RateKeyword:     "rejection",
				ZeroCategory:    "drop",
				ZeroRate:        "keep",
			},
			ErrorSentinels: []string{"#DIV/0!", "#VALUE!", "#N/A", "#REF!", "#NUM!", "#NAME?", "#NULL!", "Err:502", "Err:503"},
			GapFill:        "none",
			MaxUploadBytes: 20 << 20,
		},
		Advisory: AdvisoryConfig{
			Enabled:    false,
			BaseURL:    "https://api.anthropic.com",
			APIVersion: "2023-06-01",
			Model:      "claude-3-opus-20240229",
			MaxTokens:  1000,
			Timeout:    60 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "rejectcli",
			Environment:    "development",
			EnableTracing:  false,
			EnableMetrics:  true,
			TraceExporter:  "stdout",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
