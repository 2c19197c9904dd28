package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beaconhq/beacon/internal/catalog"
	"github.com/beaconhq/beacon/internal/loader"
	"github.com/beaconhq/beacon/internal/schema"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

func resolve(t *testing.T, yamlText string, entries []ruleset.CatalogEntry) *catalog.ResolvedRuleSet {
	t.Helper()
	doc, d := loader.Load([]byte(yamlText), "rules.yaml")
	require.Nil(t, d)
	vrs, diags := schema.Validate(doc, schema.LevelRelaxed)
	require.False(t, diags.HasErrors())
	rrs, diags := catalog.Resolve(vrs, catalog.NewCatalog(entries), catalog.ResolveOptions{})
	require.False(t, diags.HasErrors())
	return rrs
}

func TestAnalyze_LinearChainLayering(t *testing.T) {
	rrs := resolve(t, `
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

	analysis, diags := Analyze(rrs, 10)
	require.False(t, diags.HasErrors())
	require.Len(t, analysis.LayeredRules, 2)

	byName := map[string]LayeredRule{}
	for _, lr := range analysis.LayeredRules {
		byName[lr.Rule.Name] = lr
	}
	assert.Equal(t, 0, byName["producer"].Layer)
	assert.Equal(t, 1, byName["consumer"].Layer)
}

func TestAnalyze_CycleDetected(t *testing.T) {
	rrs := resolve(t, `
version: 3
rules:
  - name: r1
    description: d
    condition: { comparison: { sensor: b, op: ">", value: 1 } }
    actions:
      - set: { key: a, value_expression: "b + 1", emit: always }
  - name: r2
    description: d
    condition: { comparison: { sensor: a, op: ">", value: 1 } }
    actions:
      - set: { key: b, value_expression: "a + 1", emit: always }
`, []ruleset.CatalogEntry{
		{ID: "a", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
		{ID: "b", Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber},
	})

	_, diags := Analyze(rrs, 10)
	require.True(t, diags.HasErrors())
	assert.Equal(t, "CycleDetected", string(diags.Errors()[0].Kind))
}

func TestAnalyze_DepthExceededWarning(t *testing.T) {
	entries := []ruleset.CatalogEntry{
		{ID: "s0", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
	}
	yamlText := `
version: 3
rules:
  - name: r0
    description: d
    condition: { comparison: { sensor: s0, op: ">", value: 1 } }
    actions:
      - set: { key: s1, value_expression: "s0 + 1", emit: always }
`
	for i := 1; i <= 3; i++ {
		entries = append(entries, ruleset.CatalogEntry{ID: sensorName(i), Kind: ruleset.SensorVirtual, Type: ruleset.TypeNumber})
		yamlText += ruleChain(i)
	}

	rrs := resolve(t, yamlText, entries)
	analysis, diags := Analyze(rrs, 1)
	require.False(t, diags.HasErrors())
	require.NotEmpty(t, diags.Warnings())
	assert.Equal(t, "DepthExceeded", string(diags.Warnings()[0].Kind))
	require.NotNil(t, analysis)
}

func sensorName(i int) string {
	return "s" + string(rune('0'+i))
}

func ruleChain(i int) string {
	return `
  - name: r` + string(rune('0'+i)) + `
    description: d
    condition: { comparison: { sensor: ` + sensorName(i-1) + `, op: ">", value: 1 } }
    actions:
      - set: { key: ` + sensorName(i) + `, value_expression: "` + sensorName(i-1) + ` + 1", emit: always }
`
}

func TestAnalyze_TemporalDependenciesCollected(t *testing.T) {
	rrs := resolve(t, `
version: 3
rules:
  - name: r1
    description: d
    condition:
      threshold_over_time:
        sensor: a
        op: ">"
        threshold: 10
        duration: 5s
    actions: []
`, []ruleset.CatalogEntry{
		{ID: "a", Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber},
	})

	analysis, diags := Analyze(rrs, 10)
	require.False(t, diags.HasErrors())
	require.Len(t, analysis.TemporalDependencies, 1)
	assert.Equal(t, "a", analysis.TemporalDependencies[0].Sensor)
	assert.Equal(t, int64(5000), analysis.TemporalDependencies[0].Duration)
}
