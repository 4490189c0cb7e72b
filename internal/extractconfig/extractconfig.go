// Package extractconfig loads and persists the extraction configuration
// document: object/event/o2o-relation definitions per source resource type,
// plus the query used to fetch source resources.
package extractconfig

import (
	"encoding/json"
	"os"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
)

// Attribute is one column extracted into an object or event record, with its
// optional include-condition and output modifier.
type Attribute struct {
	Column           string `json:"column"`
	Include          bool   `json:"include"`
	Condition        string `json:"condition,omitempty"`
	ConditionValue   string `json:"condition_value,omitempty"`
	Modifier         string `json:"modifier,omitempty"`
	ModifierValue    string `json:"modifier_value,omitempty"`
	AddToEventName   bool   `json:"add_to_event_name,omitempty"`
}

// Relation is one event-object relation declared on an event definition.
type Relation struct {
	ReferenceColumn string `json:"reference_column"`
	Qualifier       string `json:"qualifier,omitempty"`
	RelatedObject   string `json:"related_object"`
	TargetField     string `json:"target_field,omitempty"`
	Condition       string `json:"condition,omitempty"`
	ConditionParam  string `json:"condition_param,omitempty"`
}

// ObjectDefinition produces candidate object rows with identity
// "{objectName}-{row.id}".
type ObjectDefinition struct {
	Attributes []Attribute `json:"attributes"`
}

// EventDefinition produces event rows with identity "{event_name}-{row.id}"
// plus the event-object relations declared on it.
type EventDefinition struct {
	EventName        string      `json:"event_name"`
	TimestampColumn  string      `json:"timestamp_column"`
	Attributes       []Attribute `json:"attributes"`
	Relations        []Relation  `json:"relations"`
}

// O2ORelation is one object-to-object relation entry.
type O2ORelation struct {
	SourceObject    string `json:"source_object"`
	TargetField     string `json:"target_field"`
	Condition       string `json:"condition,omitempty"`
	ConditionParam  string `json:"condition_param,omitempty"`
	ReferenceColumn string `json:"reference_column"`
	Qualifier       string `json:"qualifier,omitempty"`
	RelatedObject   string `json:"related_object"`
}

// Document is the extraction configuration file, round-trippable via
// Load/Save.
type Document struct {
	DefinedObjects    map[string]map[string]ObjectDefinition `json:"defined_objects"`
	DefinedEvents     map[string]map[string]EventDefinition  `json:"defined_events"`
	DefinedO2ORelations map[string][]O2ORelation              `json:"defined_o2o_relations"`
	FHIRQuery         string                                 `json:"fhir_query,omitempty"`
}

// Load decodes an extraction configuration document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cdserr.Wrap(cdserr.ConfigMissing, cdserr.ScopeRun, path, "reading extraction configuration", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, cdserr.Wrap(cdserr.ConfigMissing, cdserr.ScopeRun, path, "decoding extraction configuration", err)
	}
	return &doc, nil
}

// Save writes doc to path as indented JSON.
func Save(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return cdserr.Wrap(cdserr.ConfigMissing, cdserr.ScopeRun, path, "encoding extraction configuration", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return cdserr.Wrap(cdserr.ConfigMissing, cdserr.ScopeRun, path, "writing extraction configuration", err)
	}
	return nil
}
