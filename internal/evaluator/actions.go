package evaluator

import (
	"strconv"

	"context"

	"github.com/beaconhq/beacon/internal/exprlang"
	"github.com/beaconhq/beacon/internal/ir"
	"github.com/beaconhq/beacon/internal/observability"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// runAction executes one action and decides, per its emit mode, whether
// its would-write value is actually committed this cycle (spec §4.7
// steps 3c-4). writes accumulates keys bound for the batched store write.
func runAction(ctx context.Context, ruleName string, idx int, action ir.ActionIR, lookup lookupFunc, risingEdge bool, tracker *emitTracker, cv *cycleStore, writes map[string]interface{}) ActionEmit {
	trackerKey := ruleName + "#" + strconv.Itoa(idx)

	switch action.Kind {
	case "log":
		write := decideWrite(tracker, trackerKey, action.Message, action.Emit, risingEdge)
		if write {
			observability.Info(ctx, "rule log action", "rule", ruleName, "message", action.Message)
		}
		return ActionEmit{ActionIndex: idx, Kind: "log", Value: action.Message, Written: write}

	case "set":
		value, err := evalValueExpression(action.ValueExpression, lookup)
		if err != nil {
			return ActionEmit{ActionIndex: idx, Kind: "set", Key: action.Key, Written: false}
		}
		write := decideWrite(tracker, trackerKey, value, action.Emit, risingEdge)
		if write {
			cv.Set(action.Key, value)
			writes[action.Key] = value
			observability.Debug(ctx, "rule set action committed", "rule", ruleName, "key", action.Key)
		}
		return ActionEmit{ActionIndex: idx, Kind: "set", Key: action.Key, Value: value, Written: write}

	case "buffer":
		value, err := evalValueExpression(action.ValueExpression, lookup)
		if err != nil {
			return ActionEmit{ActionIndex: idx, Kind: "buffer", Key: action.Key, Written: false}
		}
		existing, _ := cv.Get(action.Key)
		list, _ := existing.([]interface{})
		list = append(append([]interface{}{}, list...), value)
		if action.MaxItems > 0 && len(list) > action.MaxItems {
			list = list[len(list)-action.MaxItems:]
		}
		write := decideWrite(tracker, trackerKey, list, action.Emit, risingEdge)
		if write {
			cv.Set(action.Key, list)
			writes[action.Key] = list
			observability.Debug(ctx, "rule buffer action committed", "rule", ruleName, "key", action.Key, "items", len(list))
		}
		return ActionEmit{ActionIndex: idx, Kind: "buffer", Key: action.Key, Value: list, Written: write}
	}

	return ActionEmit{ActionIndex: idx, Kind: action.Kind, Written: false}
}

func decideWrite(tracker *emitTracker, key string, value interface{}, mode ruleset.EmitMode, risingEdge bool) bool {
	switch mode {
	case ruleset.EmitAlways:
		return tracker.shouldWrite(key, value, true)
	case ruleset.EmitOnChange:
		return tracker.shouldWrite(key, value, false)
	case ruleset.EmitOnEnter:
		if risingEdge {
			tracker.mark(key, value)
			return true
		}
		return false
	}
	return false
}

func evalValueExpression(compiled *ir.CompiledExpression, lookup lookupFunc) (interface{}, error) {
	return exprlang.Eval(compiled.AST, exprlang.Lookup(lookup))
}
