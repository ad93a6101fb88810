package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the application-owned paths. They are always relative to the
// executable, never to the current working directory. Result files are not
// listed here: they live next to the dropped CSV files.
type Paths struct {
	ExecutableDir string
	LogsDir       string
	LogFile       string
	ConfigFile    string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}

	return PathsFor(filepath.Dir(exe)), nil
}

// PathsFor lays out the application paths under a base directory
func PathsFor(baseDir string) *Paths {
	logsDir := filepath.Join(baseDir, "logs")
	return &Paths{
		ExecutableDir: baseDir,
		LogsDir:       logsDir,
		LogFile:       filepath.Join(logsDir, LogFileName),
		ConfigFile:    filepath.Join(baseDir, "config.yaml"),
	}
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("ensured directory exists", slog.String("directory", dir))
	}
	return nil
}

// ResolveLogFile returns the configured log file, defaulting to logs/ferroci.log
// under the executable directory. Relative paths are anchored there as well.
func (p *Paths) ResolveLogFile(configured string) string {
	if configured == "" {
		return p.LogFile
	}
	if filepath.IsAbs(configured) {
		return configured
	}
	return filepath.Join(p.ExecutableDir, configured)
}

// LogPathResolution logs the resolved paths for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	logger.Info("path resolution",
		slog.String("executable_dir", p.ExecutableDir),
		slog.String("logs_dir", p.LogsDir),
		slog.String("log_file", p.LogFile),
		slog.Bool("config_file_present", FileExists(p.ConfigFile)),
	)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
