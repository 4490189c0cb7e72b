package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mii-cds/cdstoolbox/internal/plugin/builtin"

	"github.com/mii-cds/cdstoolbox/internal/cdserr"
	"github.com/mii-cds/cdstoolbox/internal/join"
)

func rowOf(values map[string]string) join.Row {
	return join.Row{Values: values, Unprefixed: values}
}

func TestParseClassifiesReferenceKinds(t *testing.T) {
	raw := map[string]any{
		"resourceType": "Patient",
		"id":           "%patient_id%",
		"gender":       "none",
		"name":         []any{"$process_name$", "%family%", "%given%"},
	}
	n, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, KindMap, n.Kind)
	assert.Equal(t, KindLiteral, n.Map["resourceType"].Kind)
	assert.Equal(t, KindColumn, n.Map["id"].Kind)
	assert.Equal(t, "patient_id", n.Map["id"].Column)
	assert.Equal(t, KindProcessorCall, n.Map["name"].Kind)
	assert.Equal(t, "process_name", n.Map["name"].Processor)
}

func TestTransformLiteralSentinelOmitsField(t *testing.T) {
	raw := map[string]any{
		"resourceType": "Patient",
		"gender":       "none",
		"id":           "abc",
	}
	n, err := Parse(raw)
	require.NoError(t, err)

	e := NewEngine()
	res, err := e.Transform("Patient", rowOf(nil), n)
	require.NoError(t, err)
	_, hasGender := res.Fields()["gender"]
	assert.False(t, hasGender)
	assert.Equal(t, "abc", res.Fields()["id"])
}

func TestTransformColumnSentinelOmitsField(t *testing.T) {
	raw := map[string]any{
		"resourceType": "Patient",
		"name":         "%missing_value%",
	}
	n, err := Parse(raw)
	require.NoError(t, err)

	e := NewEngine()
	row := rowOf(map[string]string{"missing_value": "none"})
	res, err := e.Transform("Patient", row, n)
	require.NoError(t, err)
	_, ok := res.Fields()["name"]
	assert.False(t, ok)
}

func TestTransformUnknownColumnIsMissingColumn(t *testing.T) {
	raw := map[string]any{
		"resourceType": "Patient",
		"name":         "%nope%",
	}
	n, err := Parse(raw)
	require.NoError(t, err)

	e := NewEngine()
	_, err = e.Transform("Patient", rowOf(map[string]string{"other": "x"}), n)
	require.Error(t, err)
	assert.True(t, cdserr.Is(err, cdserr.MissingColumn))
}

func TestTransformProcessorCall(t *testing.T) {
	raw := map[string]any{
		"resourceType": "Patient",
		"name":         []any{"$process_name$", "%family%", "%given%"},
	}
	n, err := Parse(raw)
	require.NoError(t, err)

	e := NewEngine()
	row := rowOf(map[string]string{"family": "Doe", "given": "Jane"})
	res, err := e.Transform("Patient", row, n)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", res.Fields()["name"])
}

func TestTransformUnregisteredProcessorIsUnknownProcessor(t *testing.T) {
	raw := map[string]any{
		"resourceType": "Patient",
		"name":         []any{"$does_not_exist$", "%family%"},
	}
	n, err := Parse(raw)
	require.NoError(t, err)

	e := NewEngine()
	_, err = e.Transform("Patient", rowOf(map[string]string{"family": "Doe"}), n)
	require.Error(t, err)
	assert.True(t, cdserr.Is(err, cdserr.UnknownProcessor))
}

func TestTransformListElementWise(t *testing.T) {
	raw := map[string]any{
		"resourceType": "Patient",
		"tags":         []any{"%a%", "none", "%b%"},
	}
	n, err := Parse(raw)
	require.NoError(t, err)

	e := NewEngine()
	row := rowOf(map[string]string{"a": "x", "b": "y"})
	res, err := e.Transform("Patient", row, n)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, res.Fields()["tags"])
}
