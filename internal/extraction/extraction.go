// Package extraction builds an object-centric event log from a corpus of
// source resource rows, per an extraction configuration document. It runs
// three sequential scans — objects, events (plus event-object relations),
// then object-to-object relations — matching the dependency order of the
// known-object set each scan relies on.
package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
	"github.com/mii-cds/cdstoolbox/internal/condexpr"
	"github.com/mii-cds/cdstoolbox/internal/extractconfig"
	"github.com/mii-cds/cdstoolbox/internal/log"
	"github.com/mii-cds/cdstoolbox/internal/plugin"
	"github.com/mii-cds/cdstoolbox/internal/sentinel"
)

// Row is one source record, keyed by column name. Every row must carry an
// "id" column used to build object/event identities.
type Row map[string]string

// Table is an ordered set of rows for one source resource type.
type Table struct {
	Rows []Row
}

// Corpus maps a source resource type to its loaded table.
type Corpus map[string]*Table

// Object is one emitted OCEL object.
type Object struct {
	OID   string
	Type  string
	Attrs map[string]string
}

// Event is one emitted OCEL event.
type Event struct {
	EID       string
	Activity  string
	Timestamp string
	Attrs     map[string]string
}

// E2ORelation relates an event to an object.
type E2ORelation struct {
	EID       string
	OID       string
	Qualifier string
}

// O2ORelation relates two objects.
type O2ORelation struct {
	SourceOID string
	TargetOID string
	Qualifier string
}

// Result is the four-stream output handed to the OCEL serializer.
type Result struct {
	Objects      []Object
	Events       []Event
	E2ORelations []E2ORelation
	O2ORelations []O2ORelation
}

// Engine runs the three extraction scans.
type Engine struct {
	Logger log.Logger
}

// Extract runs the object, event, and object-to-object scans in sequence
// over corpus per cfg, returning the combined four-stream result.
func (e *Engine) Extract(ctx context.Context, corpus Corpus, cfg *extractconfig.Document) (*Result, error) {
	res := &Result{}
	knownObjects := map[string]bool{}

	if err := e.scanObjects(ctx, corpus, cfg, res, knownObjects); err != nil {
		return nil, err
	}
	if err := e.scanEvents(ctx, corpus, cfg, res, knownObjects); err != nil {
		return nil, err
	}
	if err := e.scanO2O(ctx, corpus, cfg, res, knownObjects); err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) scanObjects(ctx context.Context, corpus Corpus, cfg *extractconfig.Document, res *Result, known map[string]bool) error {
	for resourceType, objectDefs := range cfg.DefinedObjects {
		table, ok := corpus[resourceType]
		if !ok {
			continue
		}
		for objectName, def := range objectDefs {
			for _, row := range table.Rows {
				obj, ok, err := e.acceptAndBuildObject(ctx, objectName, resourceType, row, def)
				if err != nil {
					if e.Logger != nil {
						e.Logger.WarnContext(ctx, "dropping object row", "object", objectName, "error", err)
					}
					continue
				}
				if !ok {
					continue
				}
				res.Objects = append(res.Objects, obj)
				known[obj.OID] = true
			}
		}
	}
	return nil
}

// acceptAndBuildObject applies each attribute's include/condition/modifier
// per spec.md §4.8's object scan, emitting {oid, type, attrs} on acceptance.
func (e *Engine) acceptAndBuildObject(ctx context.Context, objectName, resourceType string, row Row, def extractconfig.ObjectDefinition) (Object, bool, error) {
	attrs := map[string]string{}
	for _, attr := range def.Attributes {
		if !attr.Include {
			continue
		}
		value := row[attr.Column]
		ok, err := evaluateAttributeCondition(attr.Condition, attr.ConditionValue, value)
		if err != nil {
			return Object{}, false, err
		}
		if !ok {
			return Object{}, false, nil
		}
		final, err := applyModifier(attr.Modifier, attr.ModifierValue, value)
		if err != nil {
			return Object{}, false, err
		}
		attrs[attr.Column] = final
	}

	id, ok := row["id"]
	if !ok {
		return Object{}, false, fmt.Errorf("row missing id column")
	}
	return Object{
		OID:   objectName + "-" + id,
		Type:  resourceType,
		Attrs: attrs,
	}, true, nil
}

func (e *Engine) scanEvents(ctx context.Context, corpus Corpus, cfg *extractconfig.Document, res *Result, known map[string]bool) error {
	for resourceType, eventDefs := range cfg.DefinedEvents {
		table, ok := corpus[resourceType]
		if !ok {
			continue
		}
		for _, def := range eventDefs {
			for _, row := range table.Rows {
				e.emitEvent(ctx, resourceType, row, def, res, known)
			}
		}
	}
	return nil
}

func (e *Engine) emitEvent(ctx context.Context, resourceType string, row Row, def extractconfig.EventDefinition, res *Result, known map[string]bool) {
	ts := row[def.TimestampColumn]
	if sentinel.IsAbsent(ts) {
		if e.Logger != nil {
			e.Logger.DebugContext(ctx, "dropping event with missing timestamp", "event", def.EventName, "column", def.TimestampColumn)
		}
		return
	}

	id, ok := row["id"]
	if !ok {
		return
	}

	activity := def.EventName
	attrs := map[string]string{}
	for _, attr := range def.Attributes {
		value := row[attr.Column]
		final, err := applyModifier(attr.Modifier, attr.ModifierValue, value)
		if err != nil {
			if e.Logger != nil {
				e.Logger.WarnContext(ctx, "modifier failed, using raw value", "event", def.EventName, "column", attr.Column, "error", err)
			}
			final = value
		}

		// add_to_event_name applies unconditionally of include/condition:
		// it names the activity regardless of whether the attribute itself
		// ends up recorded on the event.
		if attr.AddToEventName && !sentinel.IsAbsent(final) && strings.TrimSpace(final) != "" {
			activity += "_" + final
		}

		if !attr.Include {
			continue
		}
		ok, err := evaluateAttributeCondition(attr.Condition, attr.ConditionValue, value)
		if err != nil || !ok {
			continue
		}
		attrs[attr.Column] = final
	}

	eid := def.EventName + "-" + id
	res.Events = append(res.Events, Event{
		EID:       eid,
		Activity:  activity,
		Timestamp: ts,
		Attrs:     attrs,
	})

	for _, rel := range def.Relations {
		e.emitEventRelation(ctx, resourceType, row, id, eid, rel, res, known)
	}
}

// emitEventRelation implements the object-aware relation path (the open
// question in spec.md §9 resolved in favor of this path). When the related
// object is the event's own resource type, it emits a relation to
// "{resourceType}-{rowID}" with an empty qualifier (logged at Debug);
// otherwise it resolves the "{Type}/{id}" reference column against the
// known-object set.
func (e *Engine) emitEventRelation(ctx context.Context, resourceType string, row Row, rowID, eid string, rel extractconfig.Relation, res *Result, known map[string]bool) {
	if rel.RelatedObject == resourceType {
		if e.Logger != nil {
			e.Logger.DebugContext(ctx, "same-resource-type relation linked to the event's own row", "event", eid, "relatedObject", rel.RelatedObject)
		}
		oid := resourceType + "-" + rowID
		res.E2ORelations = append(res.E2ORelations, E2ORelation{EID: eid, OID: oid, Qualifier: ""})
		return
	}

	ref := row[rel.ReferenceColumn]
	if sentinel.IsAbsent(ref) {
		return
	}
	_, id, ok := splitReference(ref)
	if !ok {
		if e.Logger != nil {
			e.Logger.WarnContext(ctx, "dropping o2o-shaped event relation without a slash", "event", eid, "reference", ref)
		}
		return
	}

	relatedOid := rel.RelatedObject + "-" + id
	if !known[relatedOid] {
		if trimmed, ok := strings.CutSuffix(relatedOid, ".0"); ok && known[trimmed] {
			relatedOid = trimmed
		} else {
			if e.Logger != nil {
				e.Logger.WarnContext(ctx, "dropping event relation to unknown object", "event", eid, "oid", relatedOid)
			}
			return
		}
	}

	res.E2ORelations = append(res.E2ORelations, E2ORelation{EID: eid, OID: relatedOid, Qualifier: rel.Qualifier})
}

func (e *Engine) scanO2O(ctx context.Context, corpus Corpus, cfg *extractconfig.Document, res *Result, known map[string]bool) error {
	for resourceType, entries := range cfg.DefinedO2ORelations {
		table, ok := corpus[resourceType]
		if !ok {
			continue
		}
		for _, entry := range entries {
			for _, row := range table.Rows {
				e.emitO2O(ctx, row, entry, res, known)
			}
		}
	}
	return nil
}

func (e *Engine) emitO2O(ctx context.Context, row Row, entry extractconfig.O2ORelation, res *Result, known map[string]bool) {
	value := row[entry.TargetField]
	ok, err := evaluateAttributeCondition(entry.Condition, entry.ConditionParam, value)
	if err != nil || !ok {
		return
	}

	ref := row[entry.ReferenceColumn]
	if sentinel.IsAbsent(ref) {
		return
	}

	sourceID, ok := row["id"]
	if !ok {
		return
	}
	sourceOID := entry.SourceObject + "-" + sourceID
	targetOID := entry.RelatedObject + "-" + lastPathSegment(ref)

	if !known[sourceOID] || !known[targetOID] {
		return
	}
	res.O2ORelations = append(res.O2ORelations, O2ORelation{
		SourceOID: sourceOID,
		TargetOID: targetOID,
		Qualifier: entry.Qualifier,
	})
}

// evaluateAttributeCondition evaluates expr (a condition name's expression)
// against value, resolving the named condition once and passing it to
// condexpr. An empty/unset name always passes.
func evaluateAttributeCondition(name, expr, value string) (bool, error) {
	if name == "" {
		return true, nil
	}
	cond, ok := plugin.LookupCondition(name)
	if !ok {
		return false, cdserr.Wrap(cdserr.UnknownProcessor, cdserr.ScopeRow, name, "unregistered condition", nil)
	}
	if expr == "" {
		return true, nil
	}
	return condexpr.Evaluate(expr, value, condexpr.ConditionFunc(cond))
}

func applyModifier(name, param, value string) (string, error) {
	if name == "" {
		return value, nil
	}
	mod, ok := plugin.LookupModifier(name)
	if !ok {
		return "", cdserr.Wrap(cdserr.UnknownProcessor, cdserr.ScopeRow, name, "unregistered modifier", nil)
	}
	return mod(param, value)
}

// splitReference parses a "{Type}/{id}" reference column value.
func splitReference(ref string) (resourceType, id string, ok bool) {
	idx := strings.IndexByte(ref, '/')
	if idx < 0 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}

// lastPathSegment returns the final "/"-separated segment of ref, or ref
// itself if it has no slash.
func lastPathSegment(ref string) string {
	idx := strings.LastIndexByte(ref, '/')
	if idx < 0 {
		return ref
	}
	return ref[idx+1:]
}
