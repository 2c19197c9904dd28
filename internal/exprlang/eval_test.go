package exprlang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(values map[string]interface{}) Lookup {
	return func(name string) (interface{}, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestEval_Arithmetic(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]interface{}
		want float64
	}{
		{name: "addition", expr: "1 + 2", want: 3},
		{name: "precedence", expr: "2 + 3 * 4", want: 14},
		{name: "parens", expr: "(2 + 3) * 4", want: 20},
		{name: "identifier", expr: "temp * 2", vars: map[string]interface{}{"temp": 21.5}, want: 43},
		{name: "unary minus", expr: "-5 + 10", want: 5},
		{name: "modulo", expr: "7 % 3", want: 1},
		{name: "function call", expr: "max(1, 2, 3)", want: 3},
		{name: "nested function", expr: "abs(-4) + sqrt(9)", want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ast, err := Parse(tt.expr)
			require.NoError(t, err)

			got, err := Eval(ast, lookupFrom(tt.vars))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Boolean(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]interface{}
		want bool
	}{
		{name: "comparison true", expr: "5 > 3", want: true},
		{name: "comparison false", expr: "5 < 3", want: false},
		{name: "and", expr: "true && false", want: false},
		{name: "or", expr: "true || false", want: true},
		{name: "negation", expr: "!false", want: true},
		{name: "mixed", expr: "temp > 90 && !alarm_silenced", vars: map[string]interface{}{"temp": 95.0, "alarm_silenced": false}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ast, err := Parse(tt.expr)
			require.NoError(t, err)

			got, err := Eval(ast, lookupFrom(tt.vars))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_DivisionByZeroIsIndeterminate(t *testing.T) {
	ast, err := Parse("10 / 0")
	require.NoError(t, err)

	_, err = Eval(ast, lookupFrom(nil))
	require.Error(t, err)
	assert.True(t, IsIndeterminate(err))
}

func TestEval_MissingIdentifierIsIndeterminate(t *testing.T) {
	ast, err := Parse("missing_sensor + 1")
	require.NoError(t, err)

	_, err = Eval(ast, lookupFrom(nil))
	require.Error(t, err)
	assert.True(t, IsIndeterminate(err))
}

func TestEval_DisallowedFunction(t *testing.T) {
	ast, err := Parse("exec(1)")
	require.NoError(t, err)

	_, err = Eval(ast, lookupFrom(nil))
	require.Error(t, err)
	assert.False(t, IsIndeterminate(err))
}

func TestIdentifiers(t *testing.T) {
	ast, err := Parse("furnace_temp > 90 && !abs(delta) > threshold")
	require.NoError(t, err)

	ids := Identifiers(ast)
	assert.Contains(t, ids, "furnace_temp")
	assert.Contains(t, ids, "delta")
	assert.Contains(t, ids, "threshold")
	assert.NotContains(t, ids, "abs")
}
