package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"ferroci/internal/config"
	apierrors "ferroci/internal/errors"
	"ferroci/internal/infrastructure"
	"ferroci/internal/metrics"
	"ferroci/pkg/contracts/domain"
	"ferroci/pkg/contracts/events"
)

// Processor is the processing state machine of one working directory.
// It is safe for concurrent use; calls are serialized.
type Processor struct {
	mu sync.Mutex

	dir       string
	registry  *metrics.Registry
	store     ResultsStore
	workspace Workspace
	opts      ProcessingOptions
	logger    *slog.Logger
	reporter  Reporter

	state     domain.ProcessorState
	reference *domain.SampleTable
	refRecord *domain.ReferenceRecord
	samples   []*domain.SampleTable
	rows      []domain.ResultRow
}

// NewProcessor creates a processor in the NoReference state.
// Call Restore to pick up a reference persisted by an earlier run.
func NewProcessor(dir string, registry *metrics.Registry, store ResultsStore, workspace Workspace, opts ProcessingOptions, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		dir:       dir,
		registry:  registry,
		store:     store,
		workspace: workspace,
		opts:      opts,
		logger:    logger.With(slog.String("component", "processor"), slog.String("dir", dir)),
		state:     domain.StateNoReference,
	}
}

// SetReporter routes status lines to r
func (p *Processor) SetReporter(r Reporter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reporter = r
}

// Restore re-derives the state from the files on disk. A usable reference
// record moves the processor to ReferenceSet; a results file without one
// leaves it in NoReference so the next drop becomes the reference.
func (p *Processor) Restore(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.workspace.LoadReference()
	if err != nil {
		p.logger.WarnContext(ctx, "reference record unreadable", slog.String("error", err.Error()))
		p.report(ctx, events.LevelWarning, "", "Reference record is unreadable; the next dropped file becomes the reference")
		return nil
	}

	if rec == nil {
		if p.workspace.HasResults() {
			p.logger.WarnContext(ctx, "results exist without a reference record")
			p.report(ctx, events.LevelWarning, "",
				"Existing results found but no reference record; the next dropped file becomes the reference")
		}
		return nil
	}

	refPath := rec.Path
	if _, statErr := os.Stat(refPath); statErr != nil {
		refPath = filepath.Join(p.dir, rec.Filename)
	}

	table, err := ReadSampleCSV(refPath, p.opts.Reader)
	if err != nil {
		p.logger.WarnContext(ctx, "reference file unusable",
			slog.String("file", rec.Filename),
			slog.String("error", err.Error()))
		p.report(ctx, events.LevelWarning, rec.Filename,
			"Reference file could not be read; the next dropped file becomes the reference")
		return nil
	}

	p.reference = table
	p.refRecord = rec
	p.state = domain.StateReferenceSet
	p.restoreSamples(ctx)

	p.logger.InfoContext(ctx, "reference restored",
		slog.String("file", rec.Filename),
		slog.Int("points", table.Len()),
		slog.Int("samples", len(p.samples)))
	p.report(ctx, events.LevelInfo, rec.Filename, fmt.Sprintf("Restored reference %s", rec.Filename))

	return nil
}

// restoreSamples re-reads the files already in the results for plotting
func (p *Processor) restoreSamples(ctx context.Context) {
	names, err := p.store.Filenames()
	if err != nil {
		p.logger.WarnContext(ctx, "cannot list processed files", slog.String("error", err.Error()))
		return
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	slices.Sort(sorted)

	for _, name := range sorted {
		table, err := ReadSampleCSV(filepath.Join(p.dir, name), p.opts.Reader)
		if err != nil {
			p.logger.DebugContext(ctx, "processed file not reloaded",
				slog.String("file", name),
				slog.String("error", err.Error()))
			continue
		}
		p.samples = append(p.samples, table)
	}
}

// Handle processes one dropped file. Parse and metric failures are reported
// in the outcome; only persistence failures are returned as errors.
func (p *Processor) Handle(ctx context.Context, path string) (domain.FileOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle(ctx, path)
}

// HandleBatch processes files in order. The first parsable file of a batch
// dropped in NoReference becomes the reference. Processing stops at the
// first persistence error.
func (p *Processor) HandleBatch(ctx context.Context, paths []string) ([]domain.FileOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	queue := slices.Clone(paths)
	queued := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		queued[cleanAbs(path)] = struct{}{}
	}

	outcomes := make([]domain.FileOutcome, 0, len(queue))
	for i := 0; i < len(queue); i++ {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome, err := p.handle(ctx, queue[i])
		outcomes = append(outcomes, outcome)
		if err != nil {
			return outcomes, err
		}

		if outcome.Kind == domain.OutcomeReference && p.opts.ScanFolderOnReference {
			found, err := p.workspace.DiscoverCSV()
			if err != nil {
				return outcomes, err
			}
			for _, f := range found {
				key := cleanAbs(f)
				if _, ok := queued[key]; ok {
					continue
				}
				queued[key] = struct{}{}
				queue = append(queue, f)
			}
			p.logger.InfoContext(ctx, "folder scan after reference",
				slog.Int("files", len(queue)-i-1))
		}
	}

	return outcomes, nil
}

func (p *Processor) handle(ctx context.Context, path string) (domain.FileOutcome, error) {
	name := filepath.Base(path)
	outcome := domain.FileOutcome{Path: path}

	if !strings.EqualFold(filepath.Ext(name), config.SupportedExtension) {
		return p.skip(ctx, outcome, "not a CSV file"), nil
	}
	if p.workspace.IsOutputFile(name) {
		return p.skip(ctx, outcome, "output file"), nil
	}

	if p.state == domain.StateNoReference {
		return p.setReference(ctx, path)
	}
	return p.processSample(ctx, path)
}

func (p *Processor) setReference(ctx context.Context, path string) (domain.FileOutcome, error) {
	name := filepath.Base(path)
	outcome := domain.FileOutcome{Path: path}

	if err := p.workspace.CheckWritable(); err != nil {
		outcome.Kind = domain.OutcomeFailed
		outcome.Message = err.Error()
		p.reportFailure(ctx, name, "Output folder is not writable", err)
		return outcome, err
	}

	table, err := ReadSampleCSV(path, p.opts.Reader)
	if err != nil {
		return p.fail(ctx, outcome, err), nil
	}

	// The record is written last: a record on disk means the outputs exist.
	if err := p.store.EnsureHeader(p.columns(nil)); err != nil {
		outcome.Kind = domain.OutcomeFailed
		outcome.Message = err.Error()
		p.reportFailure(ctx, name, "Cannot create results file", err)
		return outcome, err
	}
	rec := domain.ReferenceRecord{
		Filename: name,
		Path:     cleanAbs(path),
		SetAt:    time.Now().UTC(),
		Points:   table.Len(),
		Metadata: maps.Clone(table.Metadata),
	}
	if err := p.workspace.SaveReference(rec); err != nil {
		outcome.Kind = domain.OutcomeFailed
		outcome.Message = err.Error()
		p.reportFailure(ctx, name, "Cannot save reference record", err)
		return outcome, err
	}

	p.reference = table
	p.refRecord = &rec
	p.state = domain.StateReferenceSet

	p.logger.InfoContext(ctx, "reference set",
		slog.String("file", name),
		slog.Int("points", table.Len()))
	p.report(ctx, events.LevelSuccess, name, fmt.Sprintf("Reference set: %s (%d points)", name, table.Len()))

	outcome.Kind = domain.OutcomeReference
	outcome.Message = "reference set"
	return outcome, nil
}

func (p *Processor) processSample(ctx context.Context, path string) (domain.FileOutcome, error) {
	name := filepath.Base(path)
	outcome := domain.FileOutcome{Path: path}

	if p.isReference(path) {
		return p.skip(ctx, outcome, "reference file"), nil
	}

	if p.opts.SkipProcessed {
		done, err := p.store.Filenames()
		if err != nil {
			outcome.Kind = domain.OutcomeFailed
			outcome.Message = err.Error()
			p.reportFailure(ctx, name, "Cannot read results", err)
			return outcome, err
		}
		if _, ok := done[name]; ok {
			return p.skip(ctx, outcome, "already processed"), nil
		}
	}

	table, err := ReadSampleCSV(path, p.opts.Reader)
	if err != nil {
		return p.fail(ctx, outcome, err), nil
	}

	values, err := p.registry.Evaluate(table, p.reference)
	if err != nil {
		return p.fail(ctx, outcome, err), nil
	}

	row := domain.ResultRow{
		Filename:  name,
		Path:      cleanAbs(path),
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Metrics:   values,
	}
	if p.opts.MetadataColumns {
		row.ReferenceFilename = p.refRecord.Filename
		row.Metadata = maps.Clone(table.Metadata)
	}
	if err := p.store.Append(p.columns(table), row); err != nil {
		outcome.Kind = domain.OutcomeFailed
		outcome.Message = err.Error()
		p.reportFailure(ctx, name, "Cannot write results", err)
		return outcome, err
	}

	p.rows = append(p.rows, row)
	p.samples = append(p.samples, table)

	attrs := []any{slog.String("file", name)}
	for _, v := range values {
		attrs = append(attrs, slog.Float64(v.Name, v.Value))
	}
	p.logger.InfoContext(ctx, "file processed", attrs...)
	p.report(ctx, events.LevelSuccess, name, fmt.Sprintf("Processed %s", name))

	outcome.Kind = domain.OutcomeProcessed
	outcome.Message = "row appended"
	outcome.Row = &row
	return outcome, nil
}

func (p *Processor) isReference(path string) bool {
	if p.refRecord == nil {
		return false
	}
	abs := cleanAbs(path)
	if abs == cleanAbs(p.refRecord.Path) {
		return true
	}
	return filepath.Dir(abs) == cleanAbs(p.dir) && filepath.Base(abs) == p.refRecord.Filename
}

func (p *Processor) skip(ctx context.Context, outcome domain.FileOutcome, reason string) domain.FileOutcome {
	name := filepath.Base(outcome.Path)
	p.logger.InfoContext(ctx, "file skipped",
		slog.String("file", name),
		slog.String("reason", reason))
	p.report(ctx, events.LevelInfo, name, fmt.Sprintf("Skipping %s: %s", name, reason))

	outcome.Kind = domain.OutcomeSkipped
	outcome.Message = reason
	return outcome
}

func (p *Processor) fail(ctx context.Context, outcome domain.FileOutcome, err error) domain.FileOutcome {
	name := filepath.Base(outcome.Path)
	attrs := []any{
		slog.String("file", name),
		slog.String("error", err.Error()),
	}
	var computeErr *apierrors.MetricComputeError
	if errors.As(err, &computeErr) {
		attrs = append(attrs, slog.String("metric", computeErr.Metric))
	}
	var parseErr *apierrors.ParseError
	if errors.As(err, &parseErr) && parseErr.Line > 0 {
		attrs = append(attrs, slog.Int("line", parseErr.Line))
	}
	p.logger.ErrorContext(ctx, "file rejected", attrs...)
	p.report(ctx, events.LevelError, name, fmt.Sprintf("Error processing %s: %v", name, err))

	outcome.Kind = domain.OutcomeFailed
	outcome.Message = err.Error()
	return outcome
}

func (p *Processor) reportFailure(ctx context.Context, name, msg string, err error) {
	p.logger.ErrorContext(ctx, "persistence failed",
		slog.String("file", name),
		slog.String("error", err.Error()))
	p.report(ctx, events.LevelError, name, fmt.Sprintf("%s: %v", msg, err))
}

func (p *Processor) report(ctx context.Context, level events.Level, file, message string) {
	if p.reporter == nil {
		return
	}
	p.reporter.Report(ctx, events.StatusEntry{
		Level:     level,
		Message:   message,
		File:      file,
		Directory: p.dir,
		Timestamp: time.Now().UTC(),
		TraceID:   infrastructure.GetTraceID(ctx),
	})
}

// columns is the results header produced by this processor
// columns is the header this processor writes. With metadata columns on,
// sample adds its preamble keys in sorted order; keys that clash with a
// standard or metric column are left out.
func (p *Processor) columns(sample *domain.SampleTable) []string {
	cols := append([]string{domain.ColumnFilename, domain.ColumnTimestamp}, p.registry.Names()...)
	if !p.opts.MetadataColumns {
		return cols
	}
	cols = append(cols, domain.ColumnReferenceFilename)
	if sample == nil {
		return cols
	}
	for _, key := range slices.Sorted(maps.Keys(sample.Metadata)) {
		if !slices.Contains(cols, key) {
			cols = append(cols, key)
		}
	}
	return cols
}

// Dir returns the working directory
func (p *Processor) Dir() string {
	return p.dir
}

// State returns the current state
func (p *Processor) State() domain.ProcessorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Reference returns the reference table, or nil in NoReference
func (p *Processor) Reference() *domain.SampleTable {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reference
}

// ReferenceRecord returns a copy of the persisted reference identity
func (p *Processor) ReferenceRecord() *domain.ReferenceRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refRecord == nil {
		return nil
	}
	rec := *p.refRecord
	return &rec
}

// Rows returns the rows appended by this processor
func (p *Processor) Rows() []domain.ResultRow {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.rows)
}

// Samples returns the test curves known to this processor, for plotting
func (p *Processor) Samples() []*domain.SampleTable {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.samples)
}

// Session summarizes the processor for the GUI
func (p *Processor) Session() domain.SessionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := domain.SessionInfo{
		Directory: p.dir,
		State:     p.state,
	}
	if p.refRecord != nil {
		rec := *p.refRecord
		rec.Metadata = maps.Clone(rec.Metadata)
		info.Reference = &rec
	}
	if n, err := p.store.RowCount(); err == nil {
		info.RowCount = n
	}
	return info
}

func cleanAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
