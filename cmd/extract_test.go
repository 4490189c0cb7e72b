package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mii-cds/cdstoolbox/internal/ocel"
)

const sampleExtractionConfig = `{
  "defined_objects": {
    "Patient": {
      "Patient": {
        "attributes": [
          {"column": "name", "include": true}
        ]
      }
    }
  },
  "defined_events": {},
  "defined_o2o_relations": {}
}`

func TestRunExtractWritesOCELDocument(t *testing.T) {
	resourcesDir := t.TempDir()
	extractionConfigPath := filepath.Join(t.TempDir(), "extraction.json")
	outputPath := filepath.Join(t.TempDir(), "log.json")

	ndjson := `{"id":"1","name":"Jane"}` + "\n" + `{"id":"2","name":"John"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(resourcesDir, "Patient.ndjson"), []byte(ndjson), 0o644))
	require.NoError(t, os.WriteFile(extractionConfigPath, []byte(sampleExtractionConfig), 0o644))

	root := NewCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out, &errOut)

	err := root.ExecuteWithArgs(context.Background(), []string{
		"extract",
		"--resources-path", resourcesDir,
		"--extraction-config", extractionConfigPath,
		"--output-path", outputPath,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var doc ocel.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Objects, 2)
}

const nestedAttributeExtractionConfig = `{
  "defined_objects": {
    "Patient": {
      "Patient": {
        "attributes": [
          {"column": "name.given", "include": true}
        ]
      }
    }
  },
  "defined_events": {},
  "defined_o2o_relations": {}
}`

func TestRunExtractFlattensNestedResourceFields(t *testing.T) {
	resourcesDir := t.TempDir()
	extractionConfigPath := filepath.Join(t.TempDir(), "extraction.json")
	outputPath := filepath.Join(t.TempDir(), "log.json")

	ndjson := `{"id":"1","name":{"given":"Jane","family":"Doe"}}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(resourcesDir, "Patient.ndjson"), []byte(ndjson), 0o644))
	require.NoError(t, os.WriteFile(extractionConfigPath, []byte(nestedAttributeExtractionConfig), 0o644))

	root := NewCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out, &errOut)

	err := root.ExecuteWithArgs(context.Background(), []string{
		"extract",
		"--resources-path", resourcesDir,
		"--extraction-config", extractionConfigPath,
		"--output-path", outputPath,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var doc ocel.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Objects, 1)
	assert.Equal(t, "Jane", doc.Objects[0].Attrs["name.given"])
}

func TestRunExtractUnsupportedFormatFails(t *testing.T) {
	resourcesDir := t.TempDir()
	extractionConfigPath := filepath.Join(t.TempDir(), "extraction.json")
	require.NoError(t, os.WriteFile(extractionConfigPath, []byte(sampleExtractionConfig), 0o644))

	root := NewCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out, &errOut)

	err := root.ExecuteWithArgs(context.Background(), []string{
		"extract",
		"--resources-path", resourcesDir,
		"--extraction-config", extractionConfigPath,
		"--output-path", filepath.Join(t.TempDir(), "log.xml"),
		"--output-format", "xml",
	})
	require.Error(t, err)
}
