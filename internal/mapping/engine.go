package mapping

import (
	"fmt"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
	"github.com/mii-cds/cdstoolbox/internal/join"
	"github.com/mii-cds/cdstoolbox/internal/plugin"
	"github.com/mii-cds/cdstoolbox/internal/sentinel"
)

// Resource is the typed product of a mapping run: a resource type tag plus
// the evaluated field tree, produced by a Constructor.
type Resource interface {
	ResourceType() string
	ID() string
	Fields() map[string]any
}

// Constructor turns an evaluated field tree into a Resource, so the engine
// never depends on a concrete clinical-resource library.
type Constructor interface {
	Construct(resourceType string, fields map[string]any) (Resource, error)
}

// Engine evaluates mapping templates against joined rows.
type Engine struct {
	Constructor Constructor
}

// NewEngine returns an Engine using the default map-backed constructor.
func NewEngine() *Engine {
	return &Engine{Constructor: DefaultConstructor{}}
}

// Transform evaluates tmpl (expected to be a KindMap node, the mapping's
// top-level "fields") against row and constructs the resulting resource.
// Fatal-for-row errors (MissingColumn, ProcessorFailure) and fatal-for-
// mapping errors (UnknownProcessor) are returned as *cdserr.Error so
// callers can distinguish scope.
func (e *Engine) Transform(resourceType string, row join.Row, tmpl Node) (Resource, error) {
	value, ok, err := e.eval(row, tmpl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, cdserr.New(cdserr.MissingColumn, cdserr.ScopeRow, "mapping template resolved to nothing")
	}
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("mapping: top-level template must evaluate to a map, got %T", value)
	}
	return e.Constructor.Construct(resourceType, fields)
}

// eval returns (value, present, err). present is false whenever the uniform
// omission rule (spec invariant 1) applies: a literal/column value equal to
// the sentinel, or a column reference that resolved to a sentinel value.
func (e *Engine) eval(row join.Row, n Node) (any, bool, error) {
	switch n.Kind {
	case KindLiteral:
		if sentinel.IsAbsent(n.Literal) {
			return nil, false, nil
		}
		return n.Literal, true, nil

	case KindColumn:
		v, found := row.Resolve(n.Column)
		if !found {
			return nil, false, cdserr.Wrap(cdserr.MissingColumn, cdserr.ScopeRow, n.Column, "unknown column reference", nil)
		}
		if sentinel.IsAbsent(v) {
			return nil, false, nil
		}
		return v, true, nil

	case KindProcessorCall:
		fn, _, ok := plugin.LookupProcessor(n.Processor)
		if !ok {
			return nil, false, cdserr.Wrap(cdserr.UnknownProcessor, cdserr.ScopeMapping, n.Processor, "unregistered processor", nil)
		}
		args := make([]string, 0, len(n.Args))
		for _, a := range n.Args {
			v, found := row.Resolve(a.Column)
			if !found {
				return nil, false, cdserr.Wrap(cdserr.MissingColumn, cdserr.ScopeRow, a.Column, "unknown column reference", nil)
			}
			args = append(args, v)
		}
		result, err := fn(args...)
		if err != nil {
			return nil, false, cdserr.Wrap(cdserr.ProcessorFailure, cdserr.ScopeRow, n.Processor, "processor call failed", err)
		}
		if s, ok := result.(string); ok && sentinel.IsAbsent(s) {
			return nil, false, nil
		}
		return result, true, nil

	case KindMap:
		out := make(map[string]any, len(n.Map))
		for key, child := range n.Map {
			v, ok, err := e.eval(row, child)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				continue
			}
			out[key] = v
		}
		return out, true, nil

	case KindList:
		out := make([]any, 0, len(n.List))
		for _, child := range n.List {
			v, ok, err := e.eval(row, child)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				continue
			}
			out = append(out, v)
		}
		return out, true, nil

	default:
		return nil, false, fmt.Errorf("mapping: unknown node kind %v", n.Kind)
	}
}
