package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mii-cds/cdstoolbox/internal/plugin"
)

func TestBuiltinsAreRegistered(t *testing.T) {
	_, _, ok := plugin.LookupProcessor("process_name")
	assert.True(t, ok)

	_, ok = plugin.LookupCondition("notequals")
	assert.True(t, ok)

	_, ok = plugin.LookupModifier("firstnchars")
	assert.True(t, ok)
}

func TestProcessName(t *testing.T) {
	v, err := processName("Doe", "Jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", v)
}

func TestProcessNameDropsAbsentParts(t *testing.T) {
	v, err := processName("none", "Jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane", v)
}

func TestFirstNChars(t *testing.T) {
	v, err := firstNChars("3", "Pneumonia")
	require.NoError(t, err)
	assert.Equal(t, "Pne", v)
}

func TestFirstNCharsRejectsNonInteger(t *testing.T) {
	_, err := firstNChars("abc", "Pneumonia")
	assert.Error(t, err)
}

func TestNotEquals(t *testing.T) {
	ok, err := notEquals("female", " male ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = notEquals("male", "male")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDateRange(t *testing.T) {
	ok, err := dateRange("2023-01-01:2023-12-31", "2023-05-01T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = dateRange("2023-01-01:2023-12-31", "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.False(t, ok)
}
