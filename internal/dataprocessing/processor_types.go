package dataprocessing

import (
	"context"

	"ferroci/internal/config"
	"ferroci/pkg/contracts/domain"
	"ferroci/pkg/contracts/events"
)

// ResultsStore persists result rows for one working directory
type ResultsStore interface {
	// EnsureHeader creates header-only outputs when they are missing
	EnsureHeader(columns []string) error
	// Append adds one row to every output file
	Append(columns []string, row domain.ResultRow) error
	// Filenames returns the set of filenames already recorded
	Filenames() (map[string]struct{}, error)
	// RowCount returns the number of recorded rows
	RowCount() (int, error)
}

// Workspace is the file-system view of one working directory
type Workspace interface {
	Dir() string
	IsOutputFile(name string) bool
	HasResults() bool
	CheckWritable() error
	DiscoverCSV() ([]string, error)
	LoadReference() (*domain.ReferenceRecord, error)
	SaveReference(rec domain.ReferenceRecord) error
}

// Reporter receives user-facing status lines (the GUI status log)
type Reporter interface {
	Report(ctx context.Context, entry events.StatusEntry)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(ctx context.Context, entry events.StatusEntry)

// Report calls f
func (f ReporterFunc) Report(ctx context.Context, entry events.StatusEntry) {
	f(ctx, entry)
}

// ProcessingOptions configures processing behavior
type ProcessingOptions struct {
	// Reader controls how instrument files are parsed
	Reader ReaderOptions

	// SkipProcessed ignores files whose name is already in the results
	SkipProcessed bool

	// ScanFolderOnReference processes every other CSV of the folder once the
	// reference is set
	ScanFolderOnReference bool

	// MetadataColumns writes ReferenceFilename and the sample preamble into
	// each result row
	MetadataColumns bool
}

// OptionsFrom builds processing options from the analysis configuration
func OptionsFrom(cfg config.AnalysisConfig) ProcessingOptions {
	return ProcessingOptions{
		Reader:                ReaderOptionsFrom(cfg),
		SkipProcessed:         cfg.SkipProcessed,
		ScanFolderOnReference: cfg.ScanFolderOnReference,
		MetadataColumns:       cfg.MetadataColumns,
	}
}
