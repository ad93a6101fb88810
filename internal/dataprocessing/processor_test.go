package dataprocessing

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "ferroci/internal/errors"
	"ferroci/internal/exporter"
	"ferroci/internal/files"
	"ferroci/internal/metrics"
	"ferroci/internal/shared/testutil"
	"ferroci/pkg/contracts/domain"
	"ferroci/pkg/contracts/events"
)

func defaultOptions() ProcessingOptions {
	return ProcessingOptions{
		Reader:        DefaultReaderOptions(),
		SkipProcessed: true,
	}
}

type fixture struct {
	dir       string
	processor *Processor
	store     *exporter.Store
	manager   *files.Manager
	logs      *testutil.BufferedSlogHandler
	reporter  *recordingReporter
}

type recordingReporter struct {
	mu      sync.Mutex
	entries []events.StatusEntry
}

func (r *recordingReporter) Report(_ context.Context, e events.StatusEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingReporter) levels() []events.Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Level, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Level
	}
	return out
}

func testRegistry(t *testing.T) *metrics.Registry {
	t.Helper()
	reg, err := metrics.NewRegistryFromNames([]string{"Sum_Abs_Difference", "Min_Max_Range"}, metrics.AlignStrict)
	require.NoError(t, err)
	return reg
}

func newFixture(t *testing.T, dir string, opts ProcessingOptions) *fixture {
	t.Helper()
	logger, logs := testutil.NewTestLogger(t)
	m := files.NewManager(dir, files.DefaultLayout(), logger)
	store := exporter.NewStore(m.CSVPath(), m.XLSXPath(), logger)
	p := NewProcessor(dir, testRegistry(t), store, m, opts, logger)
	rep := &recordingReporter{}
	p.SetReporter(rep)
	require.NoError(t, p.Restore(context.Background()))
	return &fixture{dir: dir, processor: p, store: store, manager: m, logs: logs, reporter: rep}
}

func (f *fixture) rowCount(t *testing.T) int {
	t.Helper()
	n, err := f.store.RowCount()
	require.NoError(t, err)
	return n
}

func TestFirstDropBecomesReference(t *testing.T) {
	f := newFixture(t, t.TempDir(), defaultOptions())
	assert.Equal(t, domain.StateNoReference, f.processor.State())

	ref := testutil.WriteCVFile(t, f.dir, "FERRO_BARE.csv", 1, 1, 1)
	outcome, err := f.processor.Handle(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeReference, outcome.Kind)
	assert.Nil(t, outcome.Row)
	assert.Equal(t, domain.StateReferenceSet, f.processor.State())
	assert.Equal(t, 3, f.processor.Reference().Len())
	assert.Zero(t, f.rowCount(t))
	assert.Empty(t, f.processor.Rows())

	rec, err := f.manager.LoadReference()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "FERRO_BARE.csv", rec.Filename)
	assert.Equal(t, 3, rec.Points)

	header, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Filename", "Timestamp", "Sum_Abs_Difference", "Min_Max_Range"}, header.Header)
	assert.FileExists(t, f.manager.XLSXPath())

	testutil.AssertLogContains(t, f.logs, slog.LevelInfo, "reference set")
	assert.Equal(t, []events.Level{events.LevelSuccess}, f.reporter.levels())
}

func TestReferenceMetadataIsRecorded(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, dir, defaultOptions())

	_, err := f.processor.Handle(context.Background(), testutil.WriteCVFile(t, dir, "ref.csv", 1, 1))
	require.NoError(t, err)

	info := f.processor.Session()
	require.NotNil(t, info.Reference)
	assert.Equal(t, "Cyclic Voltammetry", info.Reference.Metadata["Technique"])

	rec, err := f.manager.LoadReference()
	require.NoError(t, err)
	assert.Equal(t, "CHI760E", rec.Metadata["Instrument Model"])

	restored := newFixture(t, dir, defaultOptions())
	assert.Equal(t, "0.1", restored.processor.Session().Reference.Metadata["Scan Rate (V/s)"])
}

func TestMetadataColumns(t *testing.T) {
	opts := defaultOptions()
	opts.MetadataColumns = true
	f := newFixture(t, t.TempDir(), opts)
	ctx := context.Background()

	_, err := f.processor.Handle(ctx, testutil.WriteCVFile(t, f.dir, "ref.csv", 1, 1))
	require.NoError(t, err)
	header, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Filename", "Timestamp", "Sum_Abs_Difference", "Min_Max_Range", "ReferenceFilename"}, header.Header)

	outcome, err := f.processor.Handle(ctx, testutil.WriteCVFile(t, f.dir, "a.csv", 1, 2))
	require.NoError(t, err)
	require.NotNil(t, outcome.Row)
	assert.Equal(t, "ref.csv", outcome.Row.ReferenceFilename)

	table, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Filename", "Timestamp", "Sum_Abs_Difference", "Min_Max_Range", "ReferenceFilename"}, table.Header[:5])
	assert.Equal(t, []string{"ref.csv"}, table.Column("ReferenceFilename"))
	assert.Equal(t, []string{"Cyclic Voltammetry"}, table.Column("Technique"))
	assert.Equal(t, []string{"0.1"}, table.Column("Scan Rate (V/s)"))

	mirror, err := exporter.ReadXLSX(f.manager.XLSXPath())
	require.NoError(t, err)
	assert.Equal(t, table.Header, mirror.Header)
	assert.Equal(t, table.Rows, mirror.Rows)
}

func TestBatchAppendsOneRowPerFile(t *testing.T) {
	f := newFixture(t, t.TempDir(), defaultOptions())

	paths := []string{
		testutil.WriteCVFile(t, f.dir, "ref.csv", 1, 1, 1),
		testutil.WriteCVFile(t, f.dir, "s3.csv", 1, 2, 3),
		testutil.WriteCVFile(t, f.dir, "s1.csv", 1, 1, 1),
		testutil.WriteCVFile(t, f.dir, "s2.csv", 0, 1, 5),
	}

	outcomes, err := f.processor.HandleBatch(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)
	assert.Equal(t, domain.OutcomeReference, outcomes[0].Kind)
	for _, o := range outcomes[1:] {
		assert.Equal(t, domain.OutcomeProcessed, o.Kind)
		require.NotNil(t, o.Row)
	}

	sum, _ := outcomes[1].Row.Metrics.Get("Sum_Abs_Difference")
	rng, _ := outcomes[1].Row.Metrics.Get("Min_Max_Range")
	assert.Equal(t, 3.0, sum)
	assert.Equal(t, 2.0, rng)

	table, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"s3.csv", "s1.csv", "s2.csv"}, table.Column("Filename"), "rows follow drop order")
	assert.Equal(t, []string{"3", "0", "5"}, table.Column("Sum_Abs_Difference"))
	assert.Len(t, f.processor.Rows(), 3)
	assert.Len(t, f.processor.Samples(), 3)

	mirror, err := exporter.ReadXLSX(f.manager.XLSXPath())
	require.NoError(t, err)
	require.Equal(t, table.Header, mirror.Header)
	require.Equal(t, table.Len(), mirror.Len())
	for r := range table.Rows {
		assert.Equal(t, table.Rows[r][0], mirror.Rows[r][0])
		for c := 2; c < len(table.Header); c++ {
			want, err := strconv.ParseFloat(table.Rows[r][c], 64)
			require.NoError(t, err)
			got, err := strconv.ParseFloat(mirror.Rows[r][c], 64)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestMalformedFileLeavesResultsUntouched(t *testing.T) {
	f := newFixture(t, t.TempDir(), defaultOptions())
	ctx := context.Background()

	_, err := f.processor.Handle(ctx, testutil.WriteCVFile(t, f.dir, "ref.csv", 1, 1, 1))
	require.NoError(t, err)
	_, err = f.processor.Handle(ctx, testutil.WriteCVFile(t, f.dir, "good.csv", 1, 2, 3))
	require.NoError(t, err)

	bad := testutil.WriteRawFile(t, f.dir, "bad.csv", testutil.CVFileContent(1, 2)+"0.1, 1, 2\n")
	outcome, err := f.processor.Handle(ctx, bad)
	require.NoError(t, err, "parse failures are reported, not returned")

	assert.Equal(t, domain.OutcomeFailed, outcome.Kind)
	assert.Contains(t, outcome.Message, "line 28")
	assert.Equal(t, 1, f.rowCount(t))
	assert.Equal(t, domain.StateReferenceSet, f.processor.State())

	testutil.AssertLogContains(t, f.logs, slog.LevelError, "file rejected")
	testutil.AssertLogAttr(t, f.logs, "line", int64(28))
	assert.Equal(t, events.LevelError, f.reporter.levels()[2])
}

func TestMalformedFirstDropKeepsNoReference(t *testing.T) {
	f := newFixture(t, t.TempDir(), defaultOptions())
	ctx := context.Background()

	bad := testutil.WriteRawFile(t, f.dir, "bad.csv", "no marker here\n")
	outcome, err := f.processor.Handle(ctx, bad)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, outcome.Kind)
	assert.Equal(t, domain.StateNoReference, f.processor.State())
	assert.False(t, f.manager.HasResults())

	outcome, err = f.processor.Handle(ctx, testutil.WriteCVFile(t, f.dir, "ref.csv", 1, 2))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeReference, outcome.Kind)
}

func TestMetricFailureIsReported(t *testing.T) {
	f := newFixture(t, t.TempDir(), defaultOptions())
	ctx := context.Background()

	_, err := f.processor.Handle(ctx, testutil.WriteCVFile(t, f.dir, "ref.csv", 1, 1, 1))
	require.NoError(t, err)

	outcome, err := f.processor.Handle(ctx, testutil.WriteCVFile(t, f.dir, "short.csv", 1, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, outcome.Kind)
	assert.Contains(t, outcome.Message, "Sum_Abs_Difference")
	assert.Zero(t, f.rowCount(t))
	testutil.AssertLogAttr(t, f.logs, "metric", "Sum_Abs_Difference")
}

func TestSkippedFiles(t *testing.T) {
	f := newFixture(t, t.TempDir(), defaultOptions())
	ctx := context.Background()

	ref := testutil.WriteCVFile(t, f.dir, "ref.csv", 1, 1, 1)
	sample := testutil.WriteCVFile(t, f.dir, "a.csv", 1, 2, 3)
	_, err := f.processor.HandleBatch(ctx, []string{ref, sample})
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		reason string
	}{
		{"reference dropped again", ref, "reference file"},
		{"results file", f.manager.CSVPath(), "output file"},
		{"spreadsheet mirror", f.manager.XLSXPath(), "output file"},
		{"not a csv", testutil.WriteRawFile(t, f.dir, "notes.txt", "x"), "not a CSV file"},
		{"already processed", sample, "already processed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := f.processor.Handle(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeSkipped, outcome.Kind)
			assert.Equal(t, tt.reason, outcome.Message)
		})
	}

	assert.Equal(t, 1, f.rowCount(t))
}

func TestReprocessWhenSkipProcessedIsOff(t *testing.T) {
	opts := defaultOptions()
	opts.SkipProcessed = false
	f := newFixture(t, t.TempDir(), opts)

	ref := testutil.WriteCVFile(t, f.dir, "ref.csv", 1, 1, 1)
	sample := testutil.WriteCVFile(t, f.dir, "a.csv", 1, 2, 3)
	_, err := f.processor.HandleBatch(context.Background(), []string{ref, sample, sample})
	require.NoError(t, err)

	assert.Equal(t, 2, f.rowCount(t))
}

func TestRestoreFromSidecar(t *testing.T) {
	dir := t.TempDir()
	first := newFixture(t, dir, defaultOptions())
	_, err := first.processor.HandleBatch(context.Background(), []string{
		testutil.WriteCVFile(t, dir, "ref.csv", 1, 1, 1),
		testutil.WriteCVFile(t, dir, "a.csv", 1, 2, 3),
	})
	require.NoError(t, err)

	second := newFixture(t, dir, defaultOptions())
	assert.Equal(t, domain.StateReferenceSet, second.processor.State())
	assert.Equal(t, "ref.csv", second.processor.ReferenceRecord().Filename)
	assert.Len(t, second.processor.Samples(), 1)

	outcome, err := second.processor.Handle(context.Background(), testutil.WriteCVFile(t, dir, "b.csv", 2, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeProcessed, outcome.Kind)
	assert.Equal(t, 2, second.rowCount(t))

	info := second.processor.Session()
	assert.Equal(t, dir, info.Directory)
	assert.Equal(t, 2, info.RowCount)
	require.NotNil(t, info.Reference)
	assert.Equal(t, "ref.csv", info.Reference.Filename)
}

func TestRestoreWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	existing := "\xEF\xBB\xBFFilename,Timestamp,Sum_Abs_Difference,Min_Max_Range\nold.csv,2025-01-01T00:00:00Z,1,1\n"
	testutil.WriteRawFile(t, dir, "data.csv", existing)

	f := newFixture(t, dir, defaultOptions())
	assert.Equal(t, domain.StateNoReference, f.processor.State())
	testutil.AssertLogContains(t, f.logs, slog.LevelWarn, "results exist without a reference record")
	assert.Equal(t, []events.Level{events.LevelWarning}, f.reporter.levels())

	outcome, err := f.processor.Handle(context.Background(), testutil.WriteCVFile(t, dir, "ref.csv", 1, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeReference, outcome.Kind)
	assert.Equal(t, 1, f.rowCount(t), "earlier rows are preserved")
}

func TestRestoreWithMissingReferenceFile(t *testing.T) {
	dir := t.TempDir()
	m := files.NewManager(dir, files.DefaultLayout(), nil)
	require.NoError(t, m.SaveReference(domain.ReferenceRecord{
		Filename: "gone.csv",
		Path:     filepath.Join(dir, "gone.csv"),
	}))

	f := newFixture(t, dir, defaultOptions())
	assert.Equal(t, domain.StateNoReference, f.processor.State())
	testutil.AssertLogContains(t, f.logs, slog.LevelWarn, "reference file unusable")
}

func TestScanFolderOnReference(t *testing.T) {
	opts := defaultOptions()
	opts.ScanFolderOnReference = true
	f := newFixture(t, t.TempDir(), opts)

	ref := testutil.WriteCVFile(t, f.dir, "0_ref.csv", 1, 1, 1)
	testutil.WriteCVFile(t, f.dir, "a.csv", 1, 2, 3)
	testutil.WriteCVFile(t, f.dir, "b.csv", 3, 2, 1)

	outcomes, err := f.processor.HandleBatch(context.Background(), []string{ref})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, domain.OutcomeReference, outcomes[0].Kind)
	assert.Equal(t, filepath.Join(f.dir, "a.csv"), outcomes[1].Path)
	assert.Equal(t, filepath.Join(f.dir, "b.csv"), outcomes[2].Path)
	assert.Equal(t, 2, f.rowCount(t))
}

func TestHandleBatchStopsOnCancel(t *testing.T) {
	f := newFixture(t, t.TempDir(), defaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := f.processor.HandleBatch(ctx, []string{testutil.WriteCVFile(t, f.dir, "ref.csv", 1)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outcomes)
}

// mockStore lets tests inject persistence failures
type mockStore struct {
	mock.Mock
}

func (m *mockStore) EnsureHeader(columns []string) error {
	return m.Called(columns).Error(0)
}

func (m *mockStore) Append(columns []string, row domain.ResultRow) error {
	return m.Called(columns, row).Error(0)
}

func (m *mockStore) Filenames() (map[string]struct{}, error) {
	args := m.Called()
	names, _ := args.Get(0).(map[string]struct{})
	return names, args.Error(1)
}

func (m *mockStore) RowCount() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func TestPersistenceErrorIsReturned(t *testing.T) {
	dir := t.TempDir()
	store := &mockStore{}
	writeErr := apierrors.NewPersistenceError("write", filepath.Join(dir, "data.csv"), os.ErrPermission)

	store.On("EnsureHeader", mock.Anything).Return(nil)
	store.On("Filenames").Return(map[string]struct{}{}, nil)
	store.On("Append", mock.Anything, mock.Anything).Return(writeErr)

	p := NewProcessor(dir, testRegistry(t), store, files.NewManager(dir, files.DefaultLayout(), nil), defaultOptions(), nil)
	ctx := context.Background()

	_, err := p.Handle(ctx, testutil.WriteCVFile(t, dir, "ref.csv", 1, 1, 1))
	require.NoError(t, err)

	paths := []string{
		testutil.WriteCVFile(t, dir, "a.csv", 1, 2, 3),
		testutil.WriteCVFile(t, dir, "b.csv", 1, 2, 3),
	}
	outcomes, err := p.HandleBatch(ctx, paths)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrPermission))
	assert.True(t, apierrors.IsPersistenceError(err))
	require.Len(t, outcomes, 1, "the batch stops at the failing file")
	assert.Equal(t, domain.OutcomeFailed, outcomes[0].Kind)
	assert.Empty(t, p.Rows())
	store.AssertNumberOfCalls(t, "Append", 1)
}

func TestReferenceRecordWrittenAfterOutputs(t *testing.T) {
	dir := t.TempDir()
	m := files.NewManager(dir, files.DefaultLayout(), nil)
	store := &mockStore{}
	store.On("EnsureHeader", mock.Anything).
		Return(apierrors.NewPersistenceError("write", m.CSVPath(), os.ErrPermission)).Once()

	p := NewProcessor(dir, testRegistry(t), store, m, defaultOptions(), nil)
	_, err := p.Handle(context.Background(), testutil.WriteCVFile(t, dir, "ref.csv", 1, 1))
	require.Error(t, err)
	assert.Equal(t, domain.StateNoReference, p.State())
	assert.NoFileExists(t, m.SidecarPath())

	again := newFixture(t, dir, defaultOptions())
	assert.Equal(t, domain.StateNoReference, again.processor.State())
}

func TestUnwritableFolderRejectsReference(t *testing.T) {
	dir := t.TempDir()
	ref := testutil.WriteCVFile(t, dir, "ref.csv", 1, 1)

	missing := filepath.Join(dir, "moved")
	m := files.NewManager(missing, files.DefaultLayout(), nil)
	store := exporter.NewStore(m.CSVPath(), m.XLSXPath(), nil)
	p := NewProcessor(missing, testRegistry(t), store, m, defaultOptions(), nil)

	outcome, err := p.Handle(context.Background(), ref)
	require.Error(t, err)
	assert.True(t, apierrors.IsPersistenceError(err))
	assert.Equal(t, domain.OutcomeFailed, outcome.Kind)
	assert.Equal(t, domain.StateNoReference, p.State())
}
