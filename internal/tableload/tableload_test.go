package tableload

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
	"github.com/mii-cds/cdstoolbox/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCSVStrategyLoadsAndSentinelFills(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "patients.csv", "id,name\n1,Jane\n2,\n")

	var s CSVStrategy
	tbl, err := s.Load(context.Background(), dir, "patients", config.TableLoaderSpec{FileName: "patients.csv"})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "Jane", tbl.Rows[0]["name"])
	assert.Equal(t, "none", tbl.Rows[1]["name"])
}

func TestCSVStrategyDropsDuplicateRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "patients.csv", "id,name\n1,Jane\n1,Jane\n2,Bob\n")

	var s CSVStrategy
	tbl, err := s.Load(context.Background(), dir, "patients", config.TableLoaderSpec{FileName: "patients.csv"})
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 2)
}

func TestCSVStrategyEmptyTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "id,name\n")

	var s CSVStrategy
	_, err := s.Load(context.Background(), dir, "empty", config.TableLoaderSpec{FileName: "empty.csv"})
	require.Error(t, err)
	assert.True(t, cdserr.Is(err, cdserr.EmptyTable))
}

func TestCSVStrategyMissingFile(t *testing.T) {
	dir := t.TempDir()
	var s CSVStrategy
	_, err := s.Load(context.Background(), dir, "patients", config.TableLoaderSpec{FileName: "nope.csv"})
	require.Error(t, err)
	assert.True(t, cdserr.Is(err, cdserr.UnknownTable))
}

func TestCSVStrategyCustomDelimiter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "patients.csv", "id;name\n1;Jane\n")

	var s CSVStrategy
	tbl, err := s.Load(context.Background(), dir, "patients", config.TableLoaderSpec{
		FileName: "patients.csv",
		CSV:      config.CSVOptions{Delimiter: ";"},
	})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "Jane", tbl.Rows[0]["name"])
}

func TestRegisterAndGetDefaultStrategy(t *testing.T) {
	s, ok := Get("default")
	require.True(t, ok)
	_, ok = s.(CSVStrategy)
	assert.True(t, ok)
}

func TestBadLineRecoverySplitsByByteRange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cases.csv", "id,name,code\nmalformed line with no delimiters at all here\n")

	s := BadLineRecovery{ByteRanges: []ByteRange{{Start: 0, End: 9}, {Start: 10, End: 14}, {Start: 15, End: 19}}}
	tbl, err := s.Load(context.Background(), dir, "cases", config.TableLoaderSpec{FileName: "cases.csv"})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "malformed", tbl.Rows[0]["id"])
}
