// Package config loads and exposes the mapping document that drives the
// transform pipeline: resource mappings, table-loader specs, and the set of
// processor names referenced by any mapping template.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
	"github.com/mii-cds/cdstoolbox/internal/join"
)

// CSVOptions are the per-table CSV parsing knobs, merged over a document-wide
// default before being handed to a table-load strategy.
type CSVOptions struct {
	Delimiter string `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	Encoding  string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
}

// ErrorHandling is the optional errorHandling block of a table-loader spec.
// It is decoded and kept on the spec, but no table-load strategy reads it:
// duplicate rows are always dropped and an empty table is always an
// EmptyTable error, whatever Mode says. DedupStrategy is likewise decoded
// and not read.
type ErrorHandling struct {
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// TableLoaderSpec describes how to load one named table.
type TableLoaderSpec struct {
	FileName      string        `json:"file_name" yaml:"file_name"`
	Strategy      string        `json:"loader_strategy,omitempty" yaml:"loader_strategy,omitempty"`
	CSV           CSVOptions    `json:"csv_options,omitempty" yaml:"csv_options,omitempty"`
	ErrorHandling ErrorHandling `json:"errorHandling,omitempty" yaml:"errorHandling,omitempty"`
	DedupStrategy string        `json:"dedupStrategy,omitempty" yaml:"dedupStrategy,omitempty"`
}

// ResourceMapping is one entry of the mapping document: which tables to
// load, how to join them, and the field template to evaluate per joined row.
type ResourceMapping struct {
	ResourceType string      `json:"resourceType" yaml:"resourceType"`
	UsedTables   []string    `json:"usedTables" yaml:"usedTables"`
	JoinOn       []join.Spec `json:"joinOn,omitempty" yaml:"joinOn,omitempty"`
	Fields       any         `json:"fields" yaml:"fields"`
}

// Document is the whole mapping document: an optional bookkeeping version,
// the per-table loader specs, and the ordered resource mappings.
type Document struct {
	Version      string                     `json:"version,omitempty" yaml:"version,omitempty"`
	TableLoaders map[string]TableLoaderSpec `json:"tableLoaders" yaml:"tableLoaders"`
	Mappings     []ResourceMapping          `json:"mappings" yaml:"mappings"`
}

// Load decodes the mapping document at path. JSON is valid YAML, so the same
// decoder handles either extension transparently.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cdserr.Wrap(cdserr.ConfigMissing, cdserr.ScopeRun, path, "reading mapping document", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, cdserr.Wrap(cdserr.ConfigMissing, cdserr.ScopeRun, path, "decoding mapping document", err)
	}
	if len(doc.Mappings) == 0 {
		return nil, cdserr.New(cdserr.ConfigMissing, cdserr.ScopeRun, fmt.Sprintf("%s: no mappings present", path))
	}
	return &doc, nil
}

// MappingsOf returns the document's resource mappings in order.
func (d *Document) MappingsOf() []ResourceMapping {
	return d.Mappings
}

// TableLoadersOf returns the document's per-table loader specs.
func (d *Document) TableLoadersOf() map[string]TableLoaderSpec {
	return d.TableLoaders
}

// ProcessorsOf scans every mapping template for processor-call references
// (a list whose first element is "$name$") and returns the set of processor
// names referenced anywhere in the document, for optional startup
// validation against the plugin registry.
func (d *Document) ProcessorsOf() map[string]bool {
	names := map[string]bool{}
	for _, m := range d.Mappings {
		collectProcessorNames(m.Fields, names)
	}
	return names
}

func collectProcessorNames(node any, out map[string]bool) {
	switch v := node.(type) {
	case map[string]any:
		for _, child := range v {
			collectProcessorNames(child, out)
		}
	case []any:
		if name, ok := processorCallName(v); ok {
			out[name] = true
		}
		for _, child := range v {
			collectProcessorNames(child, out)
		}
	}
}

func processorCallName(list []any) (string, bool) {
	if len(list) == 0 {
		return "", false
	}
	s, ok := list[0].(string)
	if !ok || len(s) < 3 || s[0] != '$' || s[len(s)-1] != '$' {
		return "", false
	}
	return s[1 : len(s)-1], true
}
