package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
	"github.com/mii-cds/cdstoolbox/internal/config"
	"github.com/mii-cds/cdstoolbox/internal/join"
	"github.com/mii-cds/cdstoolbox/internal/log"
	"github.com/mii-cds/cdstoolbox/internal/mapping"
	"github.com/mii-cds/cdstoolbox/internal/plugin"
	_ "github.com/mii-cds/cdstoolbox/internal/plugin/builtin"
	"github.com/mii-cds/cdstoolbox/internal/sink"
	"github.com/mii-cds/cdstoolbox/internal/tableload"
)

type transformFlags struct {
	configPath       string
	dataFolderPath   string
	outputDataFolder string
	processorPaths   []string
	fhirServerURL    string
	retryCount       int
	noFHIRServer     bool
}

func newTransformCommand(root *Command) *cobra.Command {
	flags := &transformFlags{}

	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Run pipeline A: load tables, join, map to resources, publish",
		RunE: func(c *cobra.Command, args []string) error {
			return runTransform(c.Context(), root, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config-path", "", "path to the mapping document (required)")
	f.StringVar(&flags.dataFolderPath, "data-folder-path", "", "root folder containing source table files (required)")
	f.StringVar(&flags.outputDataFolder, "output-data-folder", "", "folder to append NDJSON output to")
	f.StringSliceVar(&flags.processorPaths, "processor-paths", nil, "directories containing dynamically-loaded plugin .so files")
	f.StringVar(&flags.fhirServerURL, "fhir-server-url", "", "base URL of the resource sink's upsert endpoint")
	f.IntVar(&flags.retryCount, "retry-count", 2, "number of retries on sink connection failure")
	f.BoolVar(&flags.noFHIRServer, "no-fhir-server", false, "skip the HTTP upsert even if --fhir-server-url is set")

	_ = cmd.MarkFlagRequired("config-path")
	_ = cmd.MarkFlagRequired("data-folder-path")

	return cmd
}

func runTransform(ctx context.Context, root *Command, flags *transformFlags) error {
	logger, err := root.Logger()
	if err != nil {
		return err
	}

	if err := plugin.LoadFromDir(flags.processorPaths...); err != nil {
		return err
	}

	doc, err := config.Load(flags.configPath)
	if err != nil {
		logger.ErrorContext(ctx, "loading mapping document", "error", err)
		return err
	}

	snk := sink.New(sink.Config{
		BaseURL:      flags.fhirServerURL,
		NoFHIRServer: flags.noFHIRServer,
		OutputFolder: flags.outputDataFolder,
		RetryCount:   flags.retryCount,
	}, logger)
	defer snk.Close()

	engine := mapping.NewEngine()

	for _, m := range doc.MappingsOf() {
		if err := runMapping(ctx, logger, doc, m, engine, snk, flags.dataFolderPath); err != nil {
			logger.ErrorContext(ctx, "mapping failed, continuing with remaining mappings", "resourceType", m.ResourceType, "error", err)
		}
	}

	return nil
}

// runMapping executes one resource mapping's LoadTables -> Join -> Map ->
// Sink cycle. Errors returned here are fatal for this mapping only; the run
// continues with subsequent mappings.
func runMapping(ctx context.Context, logger log.Logger, doc *config.Document, m config.ResourceMapping, engine *mapping.Engine, snk *sink.Sink, dataFolder string) error {
	tables := map[string]*join.Table{}
	loaders := doc.TableLoadersOf()

	for _, name := range m.UsedTables {
		spec, ok := loaders[name]
		if !ok {
			return cdserr.Wrap(cdserr.UnknownTable, cdserr.ScopeMapping, name, "no table loader spec declared", nil)
		}
		strategyName := spec.Strategy
		if strategyName == "" {
			strategyName = "default"
		}
		strategy, ok := tableload.Get(strategyName)
		if !ok {
			return cdserr.Wrap(cdserr.UnknownStrategy, cdserr.ScopeMapping, strategyName, "no such table-load strategy registered", nil)
		}
		tbl, err := strategy.Load(ctx, dataFolder, name, spec)
		if err != nil {
			return err
		}
		tables[name] = tbl
	}

	rowSet, err := join.Plan(tables, m.UsedTables, m.JoinOn)
	if err != nil {
		return err
	}

	template, err := mapping.Parse(m.Fields)
	if err != nil {
		return fmt.Errorf("parsing mapping template for %s: %w", m.ResourceType, err)
	}

	for i, row := range rowSet.Rows {
		resource, err := engine.Transform(m.ResourceType, row, template)
		if err != nil {
			if cdserr.Is(err, cdserr.UnknownProcessor) {
				return fmt.Errorf("mapping %s: %w", m.ResourceType, err)
			}
			logger.WarnContext(ctx, "dropping row", "resourceType", m.ResourceType, "rowIndex", i, "error", err)
			continue
		}
		if err := snk.Publish(ctx, resource); err != nil {
			logger.ErrorContext(ctx, "publishing resource failed", "resourceType", m.ResourceType, "rowIndex", i, "error", err)
		}
	}

	return nil
}
