package evaluator

import (
	"github.com/beaconhq/beacon/internal/ringbuffer"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// resolvedValue is an input sensor's value for this cycle, honoring
// fallback resolution (spec §4.7 step 3a).
type resolvedValue struct {
	Value     interface{}
	Available bool
}

// resolveInputs resolves every declared input for rule. skip is true when
// a skip_rule fallback fired, meaning the rule must not be evaluated at
// all this cycle.
func resolveInputs(inputs []ruleset.InputDescriptor, cv *cycleStore, ring *ringbuffer.Manager, now int64, extendedLastKnown bool) (resolved map[string]resolvedValue, skip bool) {
	resolved = make(map[string]resolvedValue, len(inputs))
	for _, input := range inputs {
		if v, ok := cv.Get(input.ID); ok {
			resolved[input.ID] = resolvedValue{Value: v, Available: true}
			continue
		}
		if input.Fallback == nil {
			resolved[input.ID] = resolvedValue{Available: false}
			continue
		}
		switch input.Fallback.Strategy {
		case ruleset.FallbackUseLastKnown:
			sample, ok := ring.Latest(input.ID)
			if ok && (extendedLastKnown || now-sample.Ts <= input.Fallback.MaxAge) {
				resolved[input.ID] = resolvedValue{Value: sample.Value, Available: true}
				continue
			}
			resolved[input.ID] = resolvedValue{Available: false}
		case ruleset.FallbackUseDefault:
			resolved[input.ID] = resolvedValue{Value: input.Fallback.DefaultValue, Available: true}
		case ruleset.FallbackPropagateUnavailable:
			resolved[input.ID] = resolvedValue{Available: false}
		case ruleset.FallbackSkipRule:
			return nil, true
		}
	}
	return resolved, false
}

// buildLookup composes a sensor lookup that consults resolved declared
// inputs first, then falls back to this cycle's working value set for
// sensors referenced directly by a condition or expression but not
// declared as a formal input.
func buildLookup(resolved map[string]resolvedValue, cv *cycleStore) lookupFunc {
	return func(sensor string) (interface{}, bool) {
		if rv, ok := resolved[sensor]; ok {
			return rv.Value, rv.Available
		}
		return cv.Get(sensor)
	}
}
