package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mii-cds/cdstoolbox/internal/extractconfig"
	"github.com/mii-cds/cdstoolbox/internal/extraction"
	"github.com/mii-cds/cdstoolbox/internal/flatten"
	"github.com/mii-cds/cdstoolbox/internal/mapping"
	"github.com/mii-cds/cdstoolbox/internal/ocel"
	_ "github.com/mii-cds/cdstoolbox/internal/plugin/builtin"
	"github.com/mii-cds/cdstoolbox/internal/sentinel"
)

type extractFlags struct {
	resourcesPath    string
	extractionConfig string
	outputPath       string
	outputFormat     string
	workers          int
}

func newExtractCommand(root *Command) *cobra.Command {
	flags := &extractFlags{}

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run pipeline B: build an object-centric event log from extracted resources",
		RunE: func(c *cobra.Command, args []string) error {
			return runExtract(c.Context(), root, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.resourcesPath, "resources-path", "", "folder of {ResourceType}.ndjson files to extract from (required)")
	f.StringVar(&flags.extractionConfig, "extraction-config", "", "path to the extraction configuration document (required)")
	f.StringVar(&flags.outputPath, "output-path", "", "path to write the assembled OCEL document to (required)")
	f.StringVar(&flags.outputFormat, "output-format", "json", "output format (json is the only built-in serializer)")
	f.IntVar(&flags.workers, "workers", flatten.DefaultPoolSize, "resource-flattening worker pool size")

	_ = cmd.MarkFlagRequired("resources-path")
	_ = cmd.MarkFlagRequired("extraction-config")
	_ = cmd.MarkFlagRequired("output-path")

	return cmd
}

func runExtract(ctx context.Context, root *Command, flags *extractFlags) error {
	logger, err := root.Logger()
	if err != nil {
		return err
	}

	cfg, err := extractconfig.Load(flags.extractionConfig)
	if err != nil {
		logger.ErrorContext(ctx, "loading extraction configuration", "error", err)
		return err
	}

	corpus, err := loadCorpus(ctx, flags.resourcesPath, flags.workers)
	if err != nil {
		logger.ErrorContext(ctx, "loading resource corpus", "error", err)
		return err
	}

	engine := &extraction.Engine{Logger: logger}
	result, err := engine.Extract(ctx, corpus, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "extraction failed", "error", err)
		return err
	}

	doc := ocel.Assemble(result)

	var serializer ocel.Serializer
	switch strings.ToLower(flags.outputFormat) {
	case "json", "":
		serializer = ocel.JSONSerializer{}
	default:
		return fmt.Errorf("unsupported output format %q", flags.outputFormat)
	}

	if err := serializer.Write(ctx, doc, flags.outputPath); err != nil {
		logger.ErrorContext(ctx, "writing ocel document", "error", err)
		return err
	}

	logger.InfoContext(ctx, "extraction complete",
		"objects", len(doc.Objects), "events", len(doc.Events),
		"e2oRelations", len(doc.E2ORelations), "o2oRelations", len(doc.O2ORelations))
	return nil
}

// loadCorpus reads every {ResourceType}.ndjson file under dir, runs the
// loaded resources through the flattener pool (so nested resource fields
// extract the same dotted-path columns the flatten command writes), and
// groups the flattened rows back into a Corpus keyed by resource type.
func loadCorpus(ctx context.Context, dir string, workers int) (extraction.Corpus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	constructor := mapping.DefaultConstructor{}
	var resources []mapping.Resource
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ndjson") {
			continue
		}
		loaded, err := loadResourcesFromNDJSON(filepath.Join(dir, entry.Name()), constructor)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		resources = append(resources, loaded...)
	}

	pool := flatten.NewPool(workers)
	flatRows, err := pool.FlattenAll(ctx, resources)
	if err != nil {
		return nil, err
	}

	corpus := extraction.Corpus{}
	for i, flat := range flatRows {
		resourceType := resources[i].ResourceType()
		row := extraction.Row{}
		for k, v := range flat {
			if sentinel.IsAbsent(v) {
				v = sentinel.Value
			}
			row[k] = v
		}
		if _, ok := row["id"]; !ok {
			row["id"] = resources[i].ID()
		}

		tbl, ok := corpus[resourceType]
		if !ok {
			tbl = &extraction.Table{}
			corpus[resourceType] = tbl
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return corpus, nil
}
