package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/beacon/pkg/fsm"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

func TestCompile_SimpleRuleSetProducesRunnableProgram(t *testing.T) {
	yamlText := `
version: 3
rules:
  - name: high_temp
    description: flags a hot furnace
    inputs:
      - id: furnace.temp
        required: true
    condition:
      comparison: { sensor: furnace.temp, op: ">", value: 90 }
    actions:
      - set: { key: alarm, value_expression: "1", emit: always }
`
	entries := []ruleset.CatalogEntry{
		{ID: "furnace.temp", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
		{ID: "alarm", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
	}

	program, diags := Compile([]byte(yamlText), "rules.yaml", entries, DefaultOptions())
	require.False(t, diags.HasErrors(), "unexpected errors: %v", diags.Errors())
	require.NotNil(t, program)
	require.Len(t, program.Rules, 1)
	assert.Equal(t, "high_temp", program.Rules[0].Name)
	assert.Equal(t, 0, program.Rules[0].Layer)
}

func TestCompile_SchemaErrorHaltsBeforeDepgraphOrIR(t *testing.T) {
	yamlText := `
version: 3
rules:
  - name: broken
    condition:
      not_a_real_condition_kind: { sensor: x, op: ">", value: 1 }
`
	_, diags := Compile([]byte(yamlText), "rules.yaml", nil, DefaultOptions())
	assert.True(t, diags.HasErrors())
}

func TestCompileWithLifecycle_SuccessReachesLowered(t *testing.T) {
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

	program, lifecycle, diags := CompileWithLifecycle([]byte(yamlText), "rules.yaml", entries, DefaultOptions())
	require.False(t, diags.HasErrors(), "unexpected errors: %v", diags.Errors())
	require.NotNil(t, program)

	snap := lifecycle.Snapshot()
	require.Contains(t, snap, "high_temp")
	assert.Equal(t, fsm.StageLowered, snap["high_temp"])
}

func TestCompileWithLifecycle_SchemaFailureRejectsEveryDraft(t *testing.T) {
	yamlText := `
version: 3
rules:
  - name: broken
    condition:
      not_a_real_condition_kind: { sensor: x, op: ">", value: 1 }
  - name: also_fine
    condition:
      comparison: { sensor: x, op: ">", value: 1 }
    actions: []
`
	program, lifecycle, diags := CompileWithLifecycle([]byte(yamlText), "rules.yaml", nil, DefaultOptions())
	require.True(t, diags.HasErrors())
	assert.Nil(t, program)

	snap := lifecycle.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, fsm.StageRejected, snap["broken"])
	assert.Equal(t, fsm.StageRejected, snap["also_fine"], "schema validation fails the whole batch, not just the offending rule")
}

func TestCompileWithLifecycle_CatalogFailureRejectsAtResolved(t *testing.T) {
	yamlText := `
version: 3
rules:
  - name: unknown_sensor
    condition:
      comparison: { sensor: furnace.temp, op: ">", value: 90 }
    actions:
      - set: { key: alarm, value_expression: "1", emit: always }
`
	program, lifecycle, diags := CompileWithLifecycle([]byte(yamlText), "rules.yaml", nil, DefaultOptions())
	require.True(t, diags.HasErrors())
	assert.Nil(t, program)

	snap := lifecycle.Snapshot()
	assert.Equal(t, fsm.StageRejected, snap["unknown_sensor"])
}

func TestCompile_UnknownSensorIsCatalogError(t *testing.T) {
	yamlText := `
version: 3
rules:
  - name: uses_unknown
    condition:
      comparison: { sensor: ghost.sensor, op: ">", value: 1 }
    actions: []
`
	_, diags := Compile([]byte(yamlText), "rules.yaml", nil, DefaultOptions())
	require.True(t, diags.HasErrors())
}

func TestCompile_LayeringAcrossDependentRules(t *testing.T) {
	yamlText := `
version: 3
rules:
  - name: producer
    inputs:
      - id: temperature
        required: true
    condition:
      comparison: { sensor: temperature, op: ">", value: 30 }
    actions:
      - set: { key: high_temp, value_expression: "1", emit: always }
  - name: consumer
    inputs:
      - id: high_temp
        required: true
      - id: humidity
        required: true
    condition:
      expression: { text: "high_temp == 1 && humidity < 30" }
    actions:
      - set: { key: alert, value_expression: "1", emit: always }
`
	entries := []ruleset.CatalogEntry{
		{ID: "temperature", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
		{ID: "humidity", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
		{ID: "high_temp", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
		{ID: "alert", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
	}

	program, diags := Compile([]byte(yamlText), "rules.yaml", entries, DefaultOptions())
	require.False(t, diags.HasErrors(), "unexpected errors: %v", diags.Errors())
	require.Len(t, program.Rules, 2)

	byName := map[string]int{}
	for _, r := range program.Rules {
		byName[r.Name] = r.Layer
	}
	assert.Equal(t, 0, byName["producer"])
	assert.Equal(t, 1, byName["consumer"])
}
