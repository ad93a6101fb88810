package exporter

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "ferroci/internal/errors"
	"ferroci/pkg/contracts/domain"
)

var testColumns = []string{"Filename", "Timestamp", "Sum_Abs_Difference", "Min_Max_Range"}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "data.csv"), filepath.Join(dir, "data.xlsx"), nil), dir
}

func testRow(name string, sum, rng float64) domain.ResultRow {
	return domain.ResultRow{
		Filename:  name,
		Timestamp: time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC),
		Metrics: domain.MetricValues{
			{Name: "Sum_Abs_Difference", Value: sum},
			{Name: "Min_Max_Range", Value: rng},
		},
	}
}

// assertMirrorMatches checks that both files hold the same header and the
// same values, comparing numeric cells by value.
func assertMirrorMatches(t *testing.T, s *Store) {
	t.Helper()

	fromCSV, err := ReadCSV(s.CSVPath())
	require.NoError(t, err)
	fromXLSX, err := ReadXLSX(s.XLSXPath())
	require.NoError(t, err)

	require.Equal(t, fromCSV.Header, fromXLSX.Header)
	require.Equal(t, fromCSV.Len(), fromXLSX.Len())
	for r := range fromCSV.Rows {
		for c := range fromCSV.Header {
			want, got := fromCSV.Rows[r][c], fromXLSX.Rows[r][c]
			wantNum, wantErr := strconv.ParseFloat(want, 64)
			gotNum, gotErr := strconv.ParseFloat(got, 64)
			if wantErr == nil && gotErr == nil {
				assert.InDelta(t, wantNum, gotNum, 1e-12, "row %d column %s", r, fromCSV.Header[c])
				continue
			}
			assert.Equal(t, want, got, "row %d column %s", r, fromCSV.Header[c])
		}
	}
}

func TestStoreEnsureHeader(t *testing.T) {
	s, _ := newTestStore(t)
	assert.NoFileExists(t, s.CSVPath())

	require.NoError(t, s.EnsureHeader(testColumns))
	assert.FileExists(t, s.CSVPath())
	assert.FileExists(t, s.XLSXPath())

	raw, err := os.ReadFile(s.CSVPath())
	require.NoError(t, err)
	assert.Equal(t, utf8BOM, raw[:3], "CSV must start with a UTF-8 BOM")

	n, err := s.RowCount()
	require.NoError(t, err)
	assert.Zero(t, n)
	assertMirrorMatches(t, s)
}

func TestStoreAppend(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.EnsureHeader(testColumns))

	rows := []domain.ResultRow{
		testRow("FERRO_01.csv", 3, 2),
		testRow("FERRO_02.csv", 1.25e-5, 4.5e-6),
		testRow("FERRO_03.csv", 0, 0),
	}
	for _, row := range rows {
		require.NoError(t, s.Append(testColumns, row))
	}

	table, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, len(rows), table.Len())
	assert.Equal(t, []string{"FERRO_01.csv", "FERRO_02.csv", "FERRO_03.csv"}, table.Column("Filename"))
	assert.Equal(t, []string{"3", "1.25e-05", "0"}, table.Column("Sum_Abs_Difference"))

	names, err := s.Filenames()
	require.NoError(t, err)
	assert.Len(t, names, 3)
	assert.Contains(t, names, "FERRO_02.csv")

	assertMirrorMatches(t, s)
}

func TestStoreAppendWithoutHeader(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Append(testColumns, testRow("a.csv", 1, 1)))

	table, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, testColumns, table.Header)
	assert.Equal(t, 1, table.Len())
	assertMirrorMatches(t, s)
}

func TestStorePreservesUserColumns(t *testing.T) {
	s, _ := newTestStore(t)
	existing := "\xEF\xBB\xBFFilename,Timestamp,Sum_Abs_Difference,Min_Max_Range,Notes\n" +
		"old.csv,2025-09-01T00:00:00Z,1,1,looks fine\n"
	require.NoError(t, os.WriteFile(s.CSVPath(), []byte(existing), 0o644))

	require.NoError(t, s.Append(testColumns, testRow("new.csv", 2, 2)))

	table, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, append(append([]string{}, testColumns...), "Notes"), table.Header)
	assert.Equal(t, []string{"looks fine", ""}, table.Column("Notes"))
	assertMirrorMatches(t, s)
}

func TestStoreKeepsUserCellSpelling(t *testing.T) {
	s, _ := newTestStore(t)
	existing := "\xEF\xBB\xBFFilename,Timestamp,Sum_Abs_Difference,Min_Max_Range,SampleID,Dilution\n" +
		"old.csv,2025-09-01T00:00:00Z,1,1,007,1.50\n"
	require.NoError(t, os.WriteFile(s.CSVPath(), []byte(existing), 0o644))

	require.NoError(t, s.Append(testColumns, testRow("new.csv", 1e-7, 2.5e21)))

	mirror, err := ReadXLSX(s.XLSXPath())
	require.NoError(t, err)
	assert.Equal(t, []string{"007", ""}, mirror.Column("SampleID"))
	assert.Equal(t, []string{"1.50", ""}, mirror.Column("Dilution"))

	before, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, before.Rows, mirror.Rows)

	require.NoError(t, os.Remove(s.CSVPath()))
	rebuilt, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, before.Header, rebuilt.Header)
	assert.Equal(t, before.Rows, rebuilt.Rows)
	assert.Equal(t, []string{"1", "1e-07"}, rebuilt.Column("Sum_Abs_Difference"))
}

func TestStoreAddsNewMetricColumn(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.EnsureHeader(testColumns[:3]))
	require.NoError(t, s.Append(testColumns[:3], domain.ResultRow{
		Filename: "a.csv",
		Metrics:  domain.MetricValues{{Name: "Sum_Abs_Difference", Value: 1}},
	}))

	require.NoError(t, s.EnsureHeader(testColumns))

	table, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, testColumns, table.Header)
	assert.Equal(t, []string{""}, table.Column("Min_Max_Range"))
	assertMirrorMatches(t, s)
}

func TestStoreHealsMissingMirror(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Append(testColumns, testRow("a.csv", 1, 1)))
	require.NoError(t, os.Remove(s.XLSXPath()))

	require.NoError(t, s.EnsureHeader(testColumns))
	assertMirrorMatches(t, s)

	require.NoError(t, os.Remove(s.XLSXPath()))
	require.NoError(t, s.Append(testColumns, testRow("b.csv", 2, 2)))
	assertMirrorMatches(t, s)
}

func TestStoreRecoversCSVFromMirror(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Append(testColumns, testRow("a.csv", 1, 0.5)))
	require.NoError(t, s.Append(testColumns, testRow("b.csv", 2, 0.25)))
	require.NoError(t, os.Remove(s.CSVPath()))

	names, err := s.Filenames()
	require.NoError(t, err)
	assert.Contains(t, names, "a.csv")
	assert.Contains(t, names, "b.csv")
	assert.FileExists(t, s.CSVPath())

	require.NoError(t, s.Append(testColumns, testRow("c.csv", 3, 0.125)))
	n, err := s.RowCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assertMirrorMatches(t, s)
}

func TestStorePersistenceErrors(t *testing.T) {
	t.Run("unreadable CSV", func(t *testing.T) {
		s, _ := newTestStore(t)
		require.NoError(t, os.WriteFile(s.CSVPath(), []byte("a,\"b\n"), 0o644))

		err := s.Append(testColumns, testRow("a.csv", 1, 1))
		require.Error(t, err)

		var pe *apierrors.PersistenceError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, s.CSVPath(), pe.Path)
	})

	t.Run("directory gone", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "removed")
		s := NewStore(filepath.Join(dir, "data.csv"), filepath.Join(dir, "data.xlsx"), nil)

		err := s.EnsureHeader(testColumns)
		assert.True(t, apierrors.IsPersistenceError(err))
	})
}
