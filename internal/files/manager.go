package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"ferroci/internal/config"
	apierrors "ferroci/internal/errors"
	"ferroci/pkg/contracts/domain"
)

// Layout names the files the analyzer writes into a working directory
type Layout struct {
	DataCSV  string
	DataXLSX string
	Plot     string
	Sidecar  string
}

// DefaultLayout returns data.csv, data.xlsx, plot.png and the reference sidecar
func DefaultLayout() Layout {
	return Layout{
		DataCSV:  config.DataOutputFilename,
		DataXLSX: config.ExcelOutputFilename,
		Plot:     config.PlotOutputFilename,
		Sidecar:  config.ReferenceSidecarFilename,
	}
}

// LayoutFrom takes the output names from the analysis configuration
func LayoutFrom(cfg config.AnalysisConfig) Layout {
	l := DefaultLayout()
	if cfg.OutputCSV != "" {
		l.DataCSV = cfg.OutputCSV
	}
	if cfg.OutputXLSX != "" {
		l.DataXLSX = cfg.OutputXLSX
	}
	if cfg.PlotFile != "" {
		l.Plot = cfg.PlotFile
	}
	if cfg.SidecarFile != "" {
		l.Sidecar = cfg.SidecarFile
	}
	return l
}

// Names returns every output file name
func (l Layout) Names() []string {
	return []string{l.DataCSV, l.DataXLSX, l.Plot, l.Sidecar}
}

// Manager provides the file operations of one working directory
type Manager struct {
	dir    string
	layout Layout
	logger *slog.Logger
}

// NewManager creates a file manager for dir
func NewManager(dir string, layout Layout, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:    filepath.Clean(dir),
		layout: layout,
		logger: logger.With(slog.String("component", "files"), slog.String("dir", dir)),
	}
}

// ResolveWorkingDir returns the absolute directory of a dropped file
func ResolveWorkingDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return filepath.Dir(abs), nil
}

// Dir returns the working directory
func (m *Manager) Dir() string {
	return m.dir
}

// Layout returns the output file names
func (m *Manager) Layout() Layout {
	return m.layout
}

// Path joins name onto the working directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// CSVPath is the full path of the results CSV
func (m *Manager) CSVPath() string { return m.Path(m.layout.DataCSV) }

// XLSXPath is the full path of the spreadsheet mirror
func (m *Manager) XLSXPath() string { return m.Path(m.layout.DataXLSX) }

// PlotPath is the full path of the saved plot
func (m *Manager) PlotPath() string { return m.Path(m.layout.Plot) }

// SidecarPath is the full path of the reference record
func (m *Manager) SidecarPath() string { return m.Path(m.layout.Sidecar) }

// HasResults reports whether results from an earlier run are present
func (m *Manager) HasResults() bool {
	return config.FileExists(m.CSVPath()) || config.FileExists(m.XLSXPath())
}

// IsOutputFile reports whether name is one of the files the analyzer writes
func (m *Manager) IsOutputFile(name string) bool {
	base := filepath.Base(name)
	for _, out := range m.layout.Names() {
		if strings.EqualFold(base, out) {
			return true
		}
	}
	return false
}

// CheckWritable probes the working directory by creating and removing a file
func (m *Manager) CheckWritable() error {
	probe, err := os.CreateTemp(m.dir, ".ferroci-probe-*")
	if err != nil {
		return apierrors.NewPersistenceError("check writable", m.dir, err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		_ = os.Remove(name)
		return apierrors.NewPersistenceError("check writable", m.dir, err)
	}
	if err := os.Remove(name); err != nil {
		return apierrors.NewPersistenceError("check writable", m.dir, err)
	}
	return nil
}

// SaveReference persists the reference identity next to the outputs
func (m *Manager) SaveReference(rec domain.ReferenceRecord) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return apierrors.NewPersistenceError("encode reference", m.SidecarPath(), err)
	}
	if err := WriteFileAtomic(m.dir, m.layout.Sidecar, data); err != nil {
		return apierrors.NewPersistenceError("write reference", m.SidecarPath(), err)
	}

	m.logger.Info("reference record saved",
		slog.String("file", rec.Filename),
		slog.String("sidecar", m.layout.Sidecar))
	return nil
}

// LoadReference reads the reference record. It returns nil, nil when the
// directory has none.
func (m *Manager) LoadReference() (*domain.ReferenceRecord, error) {
	data, err := os.ReadFile(m.SidecarPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierrors.NewPersistenceError("read reference", m.SidecarPath(), err)
	}

	var rec domain.ReferenceRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, apierrors.NewPersistenceError("decode reference", m.SidecarPath(), err)
	}
	if rec.Filename == "" {
		return nil, apierrors.NewPersistenceError("decode reference", m.SidecarPath(),
			fmt.Errorf("record has no filename"))
	}
	return &rec, nil
}
