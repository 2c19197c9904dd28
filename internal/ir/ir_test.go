package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/beacon/internal/catalog"
	"github.com/beaconhq/beacon/internal/depgraph"
	"github.com/beaconhq/beacon/internal/loader"
	"github.com/beaconhq/beacon/internal/schema"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

func analyze(t *testing.T, yamlText string, entries []ruleset.CatalogEntry) *depgraph.Analysis {
	t.Helper()
	doc, d := loader.Load([]byte(yamlText), "rules.yaml")
	require.Nil(t, d)
	vrs, diags := schema.Validate(doc, schema.LevelRelaxed)
	require.False(t, diags.HasErrors(), "schema: %v", diags.Errors())
	rrs, diags := catalog.Resolve(vrs, catalog.NewCatalog(entries), catalog.ResolveOptions{})
	require.False(t, diags.HasErrors(), "catalog: %v", diags.Errors())
	analysis, diags := depgraph.Analyze(rrs, 10)
	require.False(t, diags.HasErrors(), "depgraph: %v", diags.Errors())
	return analysis
}

func TestLower_SimpleComparisonRule(t *testing.T) {
	analysis := analyze(t, `
version: 3
rules:
  - name: high_temp
    description: d
    condition:
      comparison: { sensor: furnace.temp, op: ">", value: 90 }
    actions:
      - log: { message: "too hot", emit: always }
`, []ruleset.CatalogEntry{
		{ID: "furnace.temp", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
	})

	program, diags := Lower(analysis)
	require.False(t, diags.HasErrors())
	require.Len(t, program.Rules, 1)

	rule := program.Rules[0]
	assert.Equal(t, "high_temp", rule.Name)
	cmp, ok := rule.Condition.(*ComparisonIR)
	require.True(t, ok)
	assert.Equal(t, "furnace.temp", cmp.Sensor)

	require.Len(t, rule.Actions, 1)
	assert.Equal(t, "log", rule.Actions[0].Kind)
	assert.Equal(t, "too hot", rule.Actions[0].Message)

	_, inTable := program.SymbolTable["furnace.temp"]
	assert.True(t, inTable)
}

func TestLower_ExpressionConditionCompiled(t *testing.T) {
	analysis := analyze(t, `
version: 3
rules:
  - name: r1
    description: d
    condition:
      expression: { text: "a + b > 10" }
    actions: []
`, []ruleset.CatalogEntry{
		{ID: "a", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
		{ID: "b", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
	})

	program, diags := Lower(analysis)
	require.False(t, diags.HasErrors())
	require.Len(t, program.Rules, 1)

	expr, ok := program.Rules[0].Condition.(*ExpressionIR)
	require.True(t, ok)
	assert.Equal(t, "a + b > 10", expr.Compiled.Text)
	require.NotNil(t, expr.Compiled.AST)

	_, hasA := program.SymbolTable["a"]
	_, hasB := program.SymbolTable["b"]
	assert.True(t, hasA)
	assert.True(t, hasB)
}

func TestLower_SetActionValueExpressionCompiled(t *testing.T) {
	analysis := analyze(t, `
version: 3
rules:
  - name: producer
    description: d
    condition: { comparison: { sensor: a, op: ">", value: 1 } }
    actions:
      - set: { key: derived, value_expression: "a * 2", emit: on_change }
`, []ruleset.CatalogEntry{
		{ID: "a", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
		{ID: "derived", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
	})

	program, diags := Lower(analysis)
	require.False(t, diags.HasErrors())

	action := program.Rules[0].Actions[0]
	assert.Equal(t, "set", action.Kind)
	assert.Equal(t, "derived", action.Key)
	assert.Equal(t, ruleset.EmitOnChange, action.Emit)
	require.NotNil(t, action.ValueExpression)
	assert.Equal(t, "a * 2", action.ValueExpression.Text)
}

func TestLower_DisallowedFunctionCallRejected(t *testing.T) {
	analysis := analyze(t, `
version: 3
rules:
  - name: r1
    description: d
    condition: { comparison: { sensor: a, op: ">", value: 1 } }
    actions:
      - set: { key: derived, value_expression: "unknown_fn(a)", emit: always }
`, []ruleset.CatalogEntry{
		{ID: "a", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
		{ID: "derived", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
	})

	_, diags := Lower(analysis)
	require.True(t, diags.HasErrors())
	assert.Equal(t, "ExpressionError", string(diags.Errors()[0].Kind))
}

func TestLower_LayersPreserved(t *testing.T) {
	analysis := analyze(t, `
version: 3
rules:
  - name: producer
    description: d
    condition: { comparison: { sensor: a, op: ">", value: 1 } }
    actions:
      - set: { key: derived, value_expression: "a + 1", emit: always }
  - name: consumer
    description: d
    condition: { comparison: { sensor: derived, op: ">", value: 1 } }
    actions: []
`, []ruleset.CatalogEntry{
		{ID: "a", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
		{ID: "derived", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
	})

	program, diags := Lower(analysis)
	require.False(t, diags.HasErrors())

	byName := map[string]RuleIR{}
	for _, r := range program.Rules {
		byName[r.Name] = r
	}
	assert.Equal(t, 0, byName["producer"].Layer)
	assert.Equal(t, 1, byName["consumer"].Layer)
}

func TestLower_SymbolTableIsStableAndSorted(t *testing.T) {
	analysis := analyze(t, `
version: 3
rules:
  - name: r1
    description: d
    condition: { comparison: { sensor: zeta, op: ">", value: 1 } }
    actions:
      - set: { key: alpha, value_expression: "zeta + 1", emit: always }
`, []ruleset.CatalogEntry{
		{ID: "zeta", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
		{ID: "alpha", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
	})

	program, diags := Lower(analysis)
	require.False(t, diags.HasErrors())

	assert.Less(t, program.SymbolTable["alpha"], program.SymbolTable["r1"])
	assert.Less(t, program.SymbolTable["r1"], program.SymbolTable["zeta"])
}
