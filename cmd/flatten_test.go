package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunFlattenWritesCSVPerResourceType(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "out")

	ndjson := `{"resourceType":"Patient","id":"1","name":{"given":"Jane","family":"Doe"}}` + "\n" +
		`{"resourceType":"Patient","id":"2","name":{"given":"John","family":"Doe"}}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(inputDir, "Patient.ndjson"), []byte(ndjson), 0o644))

	root := NewCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out, &errOut)

	err := root.ExecuteWithArgs(context.Background(), []string{
		"flatten",
		"--input-ndjson-glob", filepath.Join(inputDir, "*.ndjson"),
		"--output-path", outputDir,
		"--workers", "2",
	})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(outputDir, "Patient.csv"))
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 rows
	require.Contains(t, records[0], "name.given")
	require.Contains(t, records[0], "name.family")
}

func TestRunFlattenNoMatchesIsNotAnError(t *testing.T) {
	root := NewCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out, &errOut)

	err := root.ExecuteWithArgs(context.Background(), []string{
		"flatten",
		"--input-ndjson-glob", filepath.Join(t.TempDir(), "*.ndjson"),
		"--output-path", filepath.Join(t.TempDir(), "out"),
	})
	require.NoError(t, err)
}
