package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/beacon/internal/compiler"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

func TestLevelFromFlag(t *testing.T) {
	level, err := levelFromFlag("")
	require.NoError(t, err)
	assert.Equal(t, "normal", string(level))

	level, err = levelFromFlag("strict")
	require.NoError(t, err)
	assert.Equal(t, "strict", string(level))

	level, err = levelFromFlag("relaxed")
	require.NoError(t, err)
	assert.Equal(t, "relaxed", string(level))

	_, err = levelFromFlag("bogus")
	require.Error(t, err)
}

func TestRoundtripManifest_SucceedsOnACompiledProgram(t *testing.T) {
	yamlText := `
version: 3
rules:
  - name: high_temp
    description: flags a hot furnace
    condition:
      comparison: { sensor: furnace.temp, op: ">", value: 90 }
    actions:
      - set: { key: alarm, value_expression: "1", emit: always }
`
	entries := []ruleset.CatalogEntry{
		{ID: "furnace.temp", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
		{ID: "alarm", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
	}
	program, diags := compiler.Compile([]byte(yamlText), "rules.yaml", entries, compiler.DefaultOptions())
	require.False(t, diags.HasErrors(), "unexpected errors: %v", diags.Errors())

	require.NoError(t, roundtripManifest(program))
}
