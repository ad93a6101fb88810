package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DataOutputFilename, cfg.Analysis.OutputCSV)
	assert.Equal(t, ExcelOutputFilename, cfg.Analysis.OutputXLSX)
	assert.Equal(t, AlignmentStrict, cfg.Analysis.Alignment)
	assert.Equal(t, []string{MetricSumAbsDifference, MetricMinMaxRange}, cfg.Analysis.Metrics)
	assert.True(t, cfg.Analysis.SkipProcessed)
	assert.False(t, cfg.Analysis.ScanFolderOnReference)
	assert.NoError(t, cfg.validate())
}

func TestLoadFrom_NoFile(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, Default().Analysis, cfg.Analysis)
}

func TestLoadFrom_FileOverlaysDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  read_timeout: 5s
analysis:
  header_lines: 25
  alignment: Interpolate
  metrics:
    - Sum_Abs_Difference
    - Peak_Current
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "unset fields keep defaults")
	assert.Equal(t, 25, cfg.Analysis.HeaderLines)
	assert.Equal(t, AlignmentInterpolate, cfg.Analysis.Alignment)
	assert.Equal(t, []string{MetricSumAbsDifference, MetricPeakCurrent}, cfg.Analysis.Metrics)
	assert.Equal(t, DataOutputFilename, cfg.Analysis.OutputCSV)
}

func TestLoadFrom_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
logging:
  level: warn
`)
	t.Setenv("FERROCI_SERVER_PORT", "9191")
	t.Setenv("FERROCI_ANALYSIS_METRICS", "Min_Max_Range, Sum_Abs_Difference")
	t.Setenv("FERROCI_ANALYSIS_SCAN_FOLDER_ON_REFERENCE", "true")
	t.Setenv("FERROCI_ANALYSIS_METADATA_COLUMNS", "true")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, []string{MetricMinMaxRange, MetricSumAbsDifference}, cfg.Analysis.Metrics)
	assert.True(t, cfg.Analysis.ScanFolderOnReference)
	assert.True(t, cfg.Analysis.MetadataColumns)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown alignment",
			yaml:    "analysis:\n  alignment: resample\n",
			wantErr: "invalid analysis alignment",
		},
		{
			name:    "no metrics",
			yaml:    "analysis:\n  metrics: []\n",
			wantErr: "at least one metric",
		},
		{
			name:    "output in subdirectory",
			yaml:    "analysis:\n  output_csv: out/data.csv\n",
			wantErr: "plain file names",
		},
		{
			name:    "no header length and no marker",
			yaml:    "analysis:\n  header_lines: 0\n  column_marker: \"\"\n",
			wantErr: "column_marker is required",
		},
		{
			name:    "negative header length",
			yaml:    "analysis:\n  header_lines: -1\n",
			wantErr: "must not be negative",
		},
		{
			name:    "bad logging output",
			yaml:    "logging:\n  output: syslog\n",
			wantErr: "invalid logging output",
		},
		{
			name:    "malformed yaml",
			yaml:    "server: [",
			wantErr: "failed to load config from file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(writeConfigFile(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerConfig_Addr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8181}
	assert.Equal(t, "127.0.0.1:8181", s.Addr())
}

func TestLoadFrom_ExampleMatchesDefaults(t *testing.T) {
	example, err := LoadFrom(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)

	defaults, err := LoadFrom("")
	require.NoError(t, err)

	assert.Equal(t, defaults, example)
}
