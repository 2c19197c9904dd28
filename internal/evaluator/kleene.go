package evaluator

import (
	"github.com/beaconhq/beacon/internal/exprlang"
	"github.com/beaconhq/beacon/internal/ir"
	"github.com/beaconhq/beacon/internal/ringbuffer"
	"github.com/beaconhq/beacon/pkg/fsm"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// lookupFunc resolves a sensor identifier to its current cycle value.
// ok is false when the sensor has no value available this cycle.
type lookupFunc func(sensor string) (value interface{}, ok bool)

// windowFunc returns every retained sample for sensor over the trailing
// duration, guard sample included, per the Ring Buffer Manager contract
// (spec §4.6).
type windowFunc func(sensor string, duration int64) []ringbuffer.Sample

// coverageFunc reports whether sensor has been observed for at least
// duration, i.e. now−firstSeen(sensor) ≥ duration. threshold_over_time
// can only be truthfully decided once the window has been continuously
// observed for its full span; before that, any samples present happen to
// all be compliant only because nothing has been seen yet, not because
// the condition has genuinely held for the requested duration.
type coverageFunc func(sensor string, duration int64) bool

// evalCondition evaluates an IR condition tree under Kleene three-valued
// logic (spec §4.7 step 3b).
func evalCondition(c ir.Condition, lookup lookupFunc, window windowFunc, covered coverageFunc) fsm.Result {
	switch node := c.(type) {
	case nil:
		return fsm.ResultIndeterminate
	case *ir.ComparisonIR:
		return evalComparison(node, lookup)
	case *ir.ExpressionIR:
		return evalExpression(node, lookup)
	case *ir.ThresholdOverTimeIR:
		return evalThreshold(node, window, covered)
	case *ir.AllIR:
		return evalAll(node, lookup, window, covered)
	case *ir.AnyIR:
		return evalAny(node, lookup, window, covered)
	case *ir.NotIR:
		return evalNot(node, lookup, window, covered)
	}
	return fsm.ResultIndeterminate
}

func evalNot(node *ir.NotIR, lookup lookupFunc, window windowFunc, covered coverageFunc) fsm.Result {
	switch evalCondition(node.Child, lookup, window, covered) {
	case fsm.ResultTrue:
		return fsm.ResultFalse
	case fsm.ResultFalse:
		return fsm.ResultTrue
	default:
		return fsm.ResultIndeterminate
	}
}

func evalAll(node *ir.AllIR, lookup lookupFunc, window windowFunc, covered coverageFunc) fsm.Result {
	sawIndeterminate := false
	for _, child := range node.Children {
		switch evalCondition(child, lookup, window, covered) {
		case fsm.ResultFalse:
			return fsm.ResultFalse
		case fsm.ResultIndeterminate:
			sawIndeterminate = true
		}
	}
	if sawIndeterminate {
		return fsm.ResultIndeterminate
	}
	return fsm.ResultTrue
}

func evalAny(node *ir.AnyIR, lookup lookupFunc, window windowFunc, covered coverageFunc) fsm.Result {
	sawIndeterminate := false
	for _, child := range node.Children {
		switch evalCondition(child, lookup, window, covered) {
		case fsm.ResultTrue:
			return fsm.ResultTrue
		case fsm.ResultIndeterminate:
			sawIndeterminate = true
		}
	}
	if sawIndeterminate {
		return fsm.ResultIndeterminate
	}
	return fsm.ResultFalse
}

// evalThreshold implements threshold_over_time: Indeterminate while the
// sensor hasn't yet been observed for the full window, or on an empty
// window; else True iff op(v, threshold) holds for every retained sample
// (spec §4.7 step 3b, §8 scenarios S2/S3).
func evalThreshold(node *ir.ThresholdOverTimeIR, window windowFunc, covered coverageFunc) fsm.Result {
	if !covered(node.Sensor, node.Duration) {
		return fsm.ResultIndeterminate
	}
	samples := window(node.Sensor, node.Duration)
	if len(samples) == 0 {
		return fsm.ResultIndeterminate
	}
	for _, s := range samples {
		v, ok := toFloat(s.Value)
		if !ok {
			return fsm.ResultFalse
		}
		if !applyNumericOp(v, node.Op, node.Threshold) {
			return fsm.ResultFalse
		}
	}
	return fsm.ResultTrue
}

func evalComparison(node *ir.ComparisonIR, lookup lookupFunc) fsm.Result {
	left, ok := lookup(node.Sensor)
	if !ok {
		return fsm.ResultIndeterminate
	}
	ok, matched := compare(left, node.Op, node.Value)
	if !matched {
		return fsm.ResultIndeterminate
	}
	if ok {
		return fsm.ResultTrue
	}
	return fsm.ResultFalse
}

// compare reports (result, typeCompatible). typeCompatible is false when
// the operands can't be meaningfully compared under op, which the caller
// maps to Indeterminate.
func compare(left interface{}, op ruleset.CompareOp, right interface{}) (result bool, typeCompatible bool) {
	if lf, lok := toFloat(left); lok {
		if rf, rok := toFloat(right); rok {
			return applyNumericOp(lf, op, rf), true
		}
		return false, false
	}
	if ls, lok := left.(string); lok {
		if rs, rok := right.(string); rok {
			switch op {
			case ruleset.OpEQ:
				return ls == rs, true
			case ruleset.OpNEQ:
				return ls != rs, true
			case ruleset.OpLT:
				return ls < rs, true
			case ruleset.OpLTE:
				return ls <= rs, true
			case ruleset.OpGT:
				return ls > rs, true
			case ruleset.OpGTE:
				return ls >= rs, true
			}
		}
		return false, false
	}
	if lb, lok := left.(bool); lok {
		if rb, rok := right.(bool); rok {
			switch op {
			case ruleset.OpEQ:
				return lb == rb, true
			case ruleset.OpNEQ:
				return lb != rb, true
			}
		}
		return false, false
	}
	return false, false
}

func applyNumericOp(l float64, op ruleset.CompareOp, r float64) bool {
	switch op {
	case ruleset.OpGT:
		return l > r
	case ruleset.OpGTE:
		return l >= r
	case ruleset.OpLT:
		return l < r
	case ruleset.OpLTE:
		return l <= r
	case ruleset.OpEQ:
		return l == r
	case ruleset.OpNEQ:
		return l != r
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func evalExpression(node *ir.ExpressionIR, lookup lookupFunc) fsm.Result {
	result, err := exprlang.Eval(node.Compiled.AST, exprlang.Lookup(lookup))
	if err != nil {
		return fsm.ResultIndeterminate
	}
	b, ok := result.(bool)
	if !ok {
		return fsm.ResultIndeterminate
	}
	if b {
		return fsm.ResultTrue
	}
	return fsm.ResultFalse
}
