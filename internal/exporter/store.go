package exporter

import (
	"log/slog"
	"slices"
	"sync"

	"ferroci/internal/config"
	apierrors "ferroci/internal/errors"
	"ferroci/pkg/contracts/domain"
)

// Store keeps data.csv and its data.xlsx mirror in step. Every change is a
// read of the CSV, an in-memory edit, and a full rewrite of both files, so
// the two always hold the same rows after a successful call.
type Store struct {
	mu       sync.Mutex
	csvPath  string
	xlsxPath string
	logger   *slog.Logger
}

// NewStore creates a results store for the two output paths
func NewStore(csvPath, xlsxPath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		csvPath:  csvPath,
		xlsxPath: xlsxPath,
		logger:   logger.With(slog.String("component", "results_store")),
	}
}

// CSVPath returns the results CSV path
func (s *Store) CSVPath() string { return s.csvPath }

// XLSXPath returns the spreadsheet mirror path
func (s *Store) XLSXPath() string { return s.xlsxPath }

// Load reads the results CSV. A missing file is an empty table unless the
// mirror survived, in which case the CSV is rebuilt from it first.
func (s *Store) Load() (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*Table, error) {
	if !config.FileExists(s.csvPath) && config.FileExists(s.xlsxPath) {
		return s.recoverFromMirror()
	}
	t, err := ReadCSV(s.csvPath)
	if err != nil {
		return nil, apierrors.NewPersistenceError("read", s.csvPath, err)
	}
	return t, nil
}

// recoverFromMirror rewrites a deleted CSV from the spreadsheet mirror
func (s *Store) recoverFromMirror() (*Table, error) {
	t, err := ReadXLSX(s.xlsxPath)
	if err != nil {
		return nil, apierrors.NewPersistenceError("read", s.xlsxPath, err)
	}
	if err := WriteCSV(s.csvPath, t); err != nil {
		return nil, apierrors.NewPersistenceError("write", s.csvPath, err)
	}
	s.logger.Warn("results CSV missing, rebuilt from mirror",
		slog.String("file", s.csvPath),
		slog.Int("rows", t.Len()))
	return t, nil
}

// EnsureHeader creates header-only outputs when they are missing, adds
// columns the file does not have yet, and rebuilds a missing mirror.
func (s *Store) EnsureHeader(columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}

	csvExists := config.FileExists(s.csvPath)
	merged := MergeHeader(t.Header, columns)
	changed := !slices.Equal(merged, t.Header)

	if !csvExists || changed {
		t.Reshape(merged)
		if err := WriteCSV(s.csvPath, t); err != nil {
			return apierrors.NewPersistenceError("write", s.csvPath, err)
		}
	}
	if !csvExists || changed || !config.FileExists(s.xlsxPath) {
		if err := WriteXLSX(s.xlsxPath, t); err != nil {
			return apierrors.NewPersistenceError("write", s.xlsxPath, err)
		}
	}

	s.logger.Debug("results header ensured",
		slog.String("file", s.csvPath),
		slog.Int("columns", len(t.Header)),
		slog.Int("rows", t.Len()))
	return nil
}

// Append adds one row to the CSV and then regenerates the mirror from the
// same table. If the process dies between the two writes the next Append
// rewrites the mirror from the CSV.
func (s *Store) Append(columns []string, row domain.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}

	t.Reshape(MergeHeader(t.Header, columns))
	t.AppendRow(row)

	if err := WriteCSV(s.csvPath, t); err != nil {
		return apierrors.NewPersistenceError("write", s.csvPath, err)
	}
	if err := WriteXLSX(s.xlsxPath, t); err != nil {
		return apierrors.NewPersistenceError("write", s.xlsxPath, err)
	}

	s.logger.Info("result row appended",
		slog.String("file", row.Filename),
		slog.Int("rows", t.Len()))
	return nil
}

// Filenames returns the set of filenames already in the results
func (s *Store) Filenames() (map[string]struct{}, error) {
	t, err := s.Load()
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, t.Len())
	for _, name := range t.Column(domain.ColumnFilename) {
		if name != "" {
			names[name] = struct{}{}
		}
	}
	return names, nil
}

// RowCount returns the number of rows in the results CSV
func (s *Store) RowCount() (int, error) {
	t, err := s.Load()
	if err != nil {
		return 0, err
	}
	return t.Len(), nil
}
