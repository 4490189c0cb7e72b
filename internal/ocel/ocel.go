// Package ocel assembles the extraction engine's four result streams into
// the object-centric event log document shape and serializes it to disk.
package ocel

import (
	"context"

	"github.com/mii-cds/cdstoolbox/internal/extraction"
)

// ObjectRecord is one OCEL object row in the serialized document.
type ObjectRecord struct {
	OID   string            `json:"oid"`
	Type  string            `json:"type"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// EventRecord is one OCEL event row in the serialized document.
type EventRecord struct {
	EID       string            `json:"eid"`
	Activity  string            `json:"activity"`
	Timestamp string            `json:"timestamp"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// E2ORecord relates an event to an object.
type E2ORecord struct {
	EID       string `json:"eid"`
	OID       string `json:"oid"`
	Qualifier string `json:"qualifier,omitempty"`
}

// O2ORecord relates two objects.
type O2ORecord struct {
	SourceOID string `json:"source_oid"`
	TargetOID string `json:"target_oid"`
	Qualifier string `json:"qualifier,omitempty"`
}

// Document is the four-stream OCEL input shape of spec.md §6.
type Document struct {
	Objects      []ObjectRecord `json:"objects"`
	Events       []EventRecord  `json:"events"`
	E2ORelations []E2ORecord    `json:"e2o_relations"`
	O2ORelations []O2ORecord    `json:"o2o_relations"`
}

// Assemble converts an extraction.Result into the serializable Document
// shape.
func Assemble(res *extraction.Result) *Document {
	doc := &Document{
		Objects:      make([]ObjectRecord, 0, len(res.Objects)),
		Events:       make([]EventRecord, 0, len(res.Events)),
		E2ORelations: make([]E2ORecord, 0, len(res.E2ORelations)),
		O2ORelations: make([]O2ORecord, 0, len(res.O2ORelations)),
	}
	for _, o := range res.Objects {
		doc.Objects = append(doc.Objects, ObjectRecord{OID: o.OID, Type: o.Type, Attrs: o.Attrs})
	}
	for _, e := range res.Events {
		doc.Events = append(doc.Events, EventRecord{EID: e.EID, Activity: e.Activity, Timestamp: e.Timestamp, Attrs: e.Attrs})
	}
	for _, r := range res.E2ORelations {
		doc.E2ORelations = append(doc.E2ORelations, E2ORecord{EID: r.EID, OID: r.OID, Qualifier: r.Qualifier})
	}
	for _, r := range res.O2ORelations {
		doc.O2ORelations = append(doc.O2ORelations, O2ORecord{SourceOID: r.SourceOID, TargetOID: r.TargetOID, Qualifier: r.Qualifier})
	}
	return doc
}

// Serializer writes an assembled Document to path. Kept as an interface
// per design note 9 so a real OCEL-writing library can be substituted
// without touching the extraction engine.
type Serializer interface {
	Write(ctx context.Context, doc *Document, path string) error
}
