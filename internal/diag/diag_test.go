package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostic_IsWarning(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		want bool
	}{
		{name: "parse error is fatal", kind: KindParseError, want: false},
		{name: "schema error is fatal", kind: KindSchemaError, want: false},
		{name: "catalog error is fatal", kind: KindCatalogError, want: false},
		{name: "cycle detected is fatal", kind: KindCycleDetected, want: false},
		{name: "expression error is fatal", kind: KindExpressionError, want: false},
		{name: "depth exceeded is a warning", kind: KindDepthExceeded, want: true},
		{name: "runtime indeterminate is a warning", kind: KindRuntimeIndeterminate, want: true},
		{name: "io error is a warning", kind: KindIOError, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(tt.kind, "boom")
			assert.Equal(t, tt.want, d.IsWarning())
		})
	}
}

func TestDiagnostic_Error(t *testing.T) {
	d := New(KindSchemaError, "missing required field").
		WithRule("high_temp").
		WithSource("rules.yaml", 12)

	require.Contains(t, d.Error(), "SchemaError")
	assert.Contains(t, d.Error(), "high_temp")
	assert.Contains(t, d.Error(), "rules.yaml:12")
}

func TestDiagnostic_Context(t *testing.T) {
	d := New(KindCatalogError, "unknown sensor", "sensor", "furnace.temp")
	require.NotNil(t, d.Context)
	assert.Equal(t, "furnace.temp", d.Context["sensor"])
}

func TestDiagnostics_ErrorsAndWarnings(t *testing.T) {
	var ds Diagnostics
	ds.Add(New(KindSchemaError, "bad enum"))
	ds.Add(New(KindDepthExceeded, "chain too long"))
	ds.Add(New(KindIOError, "store unreachable"))

	assert.Len(t, ds.Errors(), 1)
	assert.Len(t, ds.Warnings(), 2)
	assert.True(t, ds.HasErrors())
	assert.Len(t, ds.All(), 3)
}

func TestDiagnostics_Merge(t *testing.T) {
	var a, b Diagnostics
	a.Add(New(KindSchemaError, "a"))
	b.Add(New(KindCatalogError, "b"))

	a.Merge(&b)
	assert.Len(t, a.All(), 2)
}

func TestDiagnostics_NoErrors(t *testing.T) {
	var ds Diagnostics
	ds.Add(New(KindDepthExceeded, "ok, just a warning"))
	assert.False(t, ds.HasErrors())
}
