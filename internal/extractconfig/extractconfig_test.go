package extractconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
)

func sampleDocument() *Document {
	return &Document{
		DefinedObjects: map[string]map[string]ObjectDefinition{
			"Encounter": {
				"Encounter": {Attributes: []Attribute{{Column: "status", Include: true}}},
			},
		},
		DefinedEvents: map[string]map[string]EventDefinition{
			"Encounter": {
				"admission": {
					EventName:       "admission",
					TimestampColumn: "admit_time",
					Relations: []Relation{
						{ReferenceColumn: "encounter_reference", RelatedObject: "Encounter", Qualifier: "context"},
					},
				},
			},
		},
		DefinedO2ORelations: map[string][]O2ORelation{
			"Encounter": {
				{SourceObject: "Encounter", ReferenceColumn: "location_reference", RelatedObject: "Location"},
			},
		},
		FHIRQuery: "Encounter?_count=50",
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extraction.json")
	doc := sampleDocument()

	require.NoError(t, Save(path, doc))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc, loaded)
}

func TestLoadMissingFileIsConfigMissing(t *testing.T) {
	_, err := Load("/nonexistent/extraction.json")
	require.Error(t, err)
	assert.True(t, cdserr.Is(err, cdserr.ConfigMissing))
}
