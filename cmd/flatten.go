package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mii-cds/cdstoolbox/internal/flatten"
	"github.com/mii-cds/cdstoolbox/internal/mapping"
	_ "github.com/mii-cds/cdstoolbox/internal/plugin/builtin"
)

type flattenFlags struct {
	inputNDJSONGlob string
	outputPath      string
	workers         int
}

func newFlattenCommand(root *Command) *cobra.Command {
	flags := &flattenFlags{}

	cmd := &cobra.Command{
		Use:   "flatten",
		Short: "Flatten mapped resources into tabular rows, one CSV per resource type",
		RunE: func(c *cobra.Command, args []string) error {
			return runFlatten(c.Context(), root, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.inputNDJSONGlob, "input-ndjson-glob", "", "glob matching NDJSON resource files to flatten (required)")
	f.StringVar(&flags.outputPath, "output-path", "", "folder to write one {ResourceType}.csv per distinct resource type (required)")
	f.IntVar(&flags.workers, "workers", flatten.DefaultPoolSize, "flattening worker pool size")

	_ = cmd.MarkFlagRequired("input-ndjson-glob")
	_ = cmd.MarkFlagRequired("output-path")

	return cmd
}

func runFlatten(ctx context.Context, root *Command, flags *flattenFlags) error {
	logger, err := root.Logger()
	if err != nil {
		return err
	}

	paths, err := filepath.Glob(flags.inputNDJSONGlob)
	if err != nil {
		return fmt.Errorf("invalid --input-ndjson-glob: %w", err)
	}
	if len(paths) == 0 {
		logger.WarnContext(ctx, "no files matched input glob", "glob", flags.inputNDJSONGlob)
		return nil
	}

	constructor := mapping.DefaultConstructor{}
	var resources []mapping.Resource
	for _, path := range paths {
		loaded, err := loadResourcesFromNDJSON(path, constructor)
		if err != nil {
			logger.ErrorContext(ctx, "reading ndjson resources", "path", path, "error", err)
			return err
		}
		resources = append(resources, loaded...)
	}

	pool := flatten.NewPool(flags.workers)
	rows, err := pool.FlattenAll(ctx, resources)
	if err != nil {
		logger.ErrorContext(ctx, "flattening resources", "error", err)
		return err
	}

	if err := os.MkdirAll(flags.outputPath, 0o755); err != nil {
		return err
	}

	byType := map[string][]flatten.Row{}
	for i, row := range rows {
		rt := resources[i].ResourceType()
		byType[rt] = append(byType[rt], row)
	}

	for rt, typeRows := range byType {
		outPath := filepath.Join(flags.outputPath, rt+".csv")
		if err := writeCSV(outPath, typeRows); err != nil {
			logger.ErrorContext(ctx, "writing csv", "resourceType", rt, "error", err)
			return err
		}
	}

	logger.InfoContext(ctx, "flattening complete", "resourceCount", len(resources), "resourceTypes", len(byType))
	return nil
}

func loadResourcesFromNDJSON(path string, constructor mapping.DefaultConstructor) ([]mapping.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	resourceType := fileStem(path)

	var resources []mapping.Resource
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return nil, err
		}
		rt := resourceType
		if t, ok := fields["resourceType"].(string); ok && t != "" {
			rt = t
		}
		resource, err := constructor.Construct(rt, fields)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, nil
}

func fileStem(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// writeCSV writes rows to path using the sorted union of every row's keys
// as the header, so column order is stable across runs.
func writeCSV(path string, rows []flatten.Row) error {
	headerSet := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			headerSet[k] = true
		}
	}
	header := make([]string, 0, len(headerSet))
	for k := range headerSet {
		header = append(header, k)
	}
	sort.Strings(header)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, col := range header {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}
