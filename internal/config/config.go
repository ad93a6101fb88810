package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces all environment variables (FERROCI_SERVER_PORT, ...)
const EnvPrefix = "FERROCI"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	OpenBrowser     bool          `yaml:"open_browser" envconfig:"OPEN_BROWSER"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// ContentSecurityPolicy replaces the generated GUI policy when set
	ContentSecurityPolicy string `yaml:"content_security_policy" envconfig:"CONTENT_SECURITY_POLICY"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// AnalysisConfig controls parsing, metrics and output files
type AnalysisConfig struct {
	// HeaderLines skips a fixed preamble. Zero means "find the column marker".
	HeaderLines  int    `yaml:"header_lines" envconfig:"HEADER_LINES"`
	ColumnMarker string `yaml:"column_marker" envconfig:"COLUMN_MARKER"`
	// Alignment is one of strict, truncate, interpolate
	Alignment string   `yaml:"alignment" envconfig:"ALIGNMENT"`
	Metrics   []string `yaml:"metrics" envconfig:"METRICS"`

	OutputCSV   string `yaml:"output_csv" envconfig:"OUTPUT_CSV"`
	OutputXLSX  string `yaml:"output_xlsx" envconfig:"OUTPUT_XLSX"`
	PlotFile    string `yaml:"plot_file" envconfig:"PLOT_FILE"`
	SidecarFile string `yaml:"sidecar_file" envconfig:"SIDECAR_FILE"`

	ScanFolderOnReference bool `yaml:"scan_folder_on_reference" envconfig:"SCAN_FOLDER_ON_REFERENCE"`
	SkipProcessed         bool `yaml:"skip_processed" envconfig:"SKIP_PROCESSED"`
	SavePlot              bool `yaml:"save_plot" envconfig:"SAVE_PLOT"`
	// MetadataColumns appends ReferenceFilename and the preamble fields of
	// each sample after the metric columns
	MetadataColumns bool `yaml:"metadata_columns" envconfig:"METADATA_COLUMNS"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
	HistorySize     int           `yaml:"history_size" envconfig:"HISTORY_SIZE"`
}

// TelemetryConfig controls tracing and metrics export
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	TraceStdout    bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT"`
}

// Load builds the configuration from defaults, the optional config file and
// the environment, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable are left as they are, so the
	// environment only overrides what it explicitly sets.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) normalize() {
	c.Analysis.Alignment = strings.ToLower(strings.TrimSpace(c.Analysis.Alignment))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Output = strings.ToLower(strings.TrimSpace(c.Logging.Output))

	metrics := c.Analysis.Metrics[:0]
	for _, m := range c.Analysis.Metrics {
		if m = strings.TrimSpace(m); m != "" {
			metrics = append(metrics, m)
		}
	}
	c.Analysis.Metrics = metrics
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output %q (want console, file or both)", c.Logging.Output)
	}

	if c.Analysis.HeaderLines < 0 {
		return fmt.Errorf("analysis header_lines must not be negative")
	}

	if c.Analysis.HeaderLines == 0 && c.Analysis.ColumnMarker == "" {
		return fmt.Errorf("analysis column_marker is required when header_lines is 0")
	}

	switch c.Analysis.Alignment {
	case AlignmentStrict, AlignmentTruncate, AlignmentInterpolate:
	default:
		return fmt.Errorf("invalid analysis alignment %q", c.Analysis.Alignment)
	}

	if len(c.Analysis.Metrics) == 0 {
		return fmt.Errorf("at least one metric must be enabled")
	}

	outputs := []string{c.Analysis.OutputCSV, c.Analysis.OutputXLSX, c.Analysis.PlotFile, c.Analysis.SidecarFile}
	for _, name := range outputs {
		if name == "" || filepath.Base(name) != name {
			return fmt.Errorf("output file names must be plain file names, got %q", name)
		}
	}

	return nil
}

// getConfigFilePath returns the first config file found next to the
// executable or in the working directory
func getConfigFilePath() string {
	var locations []string
	if paths, err := GetPaths(); err == nil {
		locations = append(locations,
			filepath.Join(paths.ExecutableDir, "config.yaml"),
			filepath.Join(paths.ExecutableDir, "configs", "config.yaml"),
		)
	}
	locations = append(locations, "config.yaml", filepath.Join("configs", "config.yaml"))

	for _, location := range locations {
		if FileExists(location) {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            DefaultPort,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  60 * time.Second,
			MaxUploadBytes:  64 << 20,
			OpenBrowser:     true,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080", "http://127.0.0.1:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Output:      "both",
			FilePath:    "",
			Development: false,
		},
		Analysis: AnalysisConfig{
			HeaderLines:           0,
			ColumnMarker:          DefaultColumnMarker,
			Alignment:             AlignmentStrict,
			Metrics:               []string{MetricSumAbsDifference, MetricMinMaxRange},
			OutputCSV:             DataOutputFilename,
			OutputXLSX:            ExcelOutputFilename,
			PlotFile:              PlotOutputFilename,
			SidecarFile:           ReferenceSidecarFilename,
			ScanFolderOnReference: false,
			SkipProcessed:         true,
			SavePlot:              true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
			HistorySize:     200,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "ferroci",
			MetricsEnabled: true,
			TraceStdout:    false,
		},
	}
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
