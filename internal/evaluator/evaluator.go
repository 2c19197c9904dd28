// Package evaluator implements the Runtime Evaluator (spec §4.7): it runs
// a compiled Program cycle by cycle, reading sensor inputs from a Store,
// evaluating each rule's condition under Kleene three-valued logic,
// running actions subject to fallback and emit-mode rules, and writing
// outputs back to the Store in a single batch per cycle.
package evaluator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/beaconhq/beacon/internal/ir"
	"github.com/beaconhq/beacon/internal/observability"
	"github.com/beaconhq/beacon/internal/ringbuffer"
	"github.com/beaconhq/beacon/internal/store"
	"github.com/beaconhq/beacon/pkg/fsm"
)

// Config carries the runtime knobs the system config (spec §6) feeds to
// the evaluator.
type Config struct {
	CycleTimeMs        int64
	BufferCapacity     int
	ExtendedLastKnown  bool
	GroupParallelRules bool
}

// Evaluator owns the mutable state a running Program needs across cycles:
// ring buffers, per-rule condition FSMs, and per-action emit memory.
type Evaluator struct {
	program    *ir.Program
	store      store.Store
	ring       *ringbuffer.Manager
	conditions *fsm.RuleConditionRegistry
	emits      *emitTracker
	cfg        Config
	layers     [][]ir.RuleIR
}

// New builds an Evaluator for program, sizing every sensor's ring buffer
// from its temporal dependencies (spec §4.6's capacity formula).
func New(program *ir.Program, st store.Store, cfg Config) *Evaluator {
	maxDuration := make(map[string]int64)
	for _, dep := range program.TemporalDependencies {
		if dep.Duration > maxDuration[dep.Sensor] {
			maxDuration[dep.Sensor] = dep.Duration
		}
	}
	capacities := make(map[string]int, len(maxDuration))
	for sensor, duration := range maxDuration {
		capacities[sensor] = ringbuffer.Capacity(cfg.BufferCapacity, duration, cfg.CycleTimeMs)
	}

	observability.RulesActive.Set(float64(len(program.Rules)))

	return &Evaluator{
		program:    program,
		store:      st,
		ring:       ringbuffer.NewManager(capacities),
		conditions: fsm.NewRuleConditionRegistry(),
		emits:      newEmitTracker(),
		cfg:        cfg,
		layers:     groupByLayer(program.Rules),
	}
}

func groupByLayer(rules []ir.RuleIR) [][]ir.RuleIR {
	var layers [][]ir.RuleIR
	i := 0
	for i < len(rules) {
		j := i + 1
		for j < len(rules) && rules[j].Layer == rules[i].Layer {
			j++
		}
		layers = append(layers, rules[i:j])
		i = j
	}
	return layers
}

// RunCycle executes one evaluation cycle at time now (milliseconds),
// implementing spec §4.7's contract run_cycle(Program, now, Store) ->
// CycleReport.
func (e *Evaluator) RunCycle(ctx context.Context, now int64) *CycleReport {
	cycleID := uuid.New().String()
	ctx, span := observability.StartCycleSpan(ctx, cycleID)
	defer span.End()

	start := time.Now()
	defer func() {
		observability.CycleDuration.Observe(time.Since(start).Seconds())
	}()

	report := &CycleReport{CycleID: cycleID, Now: now}

	inputs, err := e.store.ReadAll(ctx, nil)
	if err != nil {
		observability.CycleErrorsTotal.WithLabelValues("read").Inc()
		report.Aborted = true
		report.Err = fmt.Errorf("read_all: %w", err)
		observability.Error(ctx, "cycle aborted: store read failed", "cycle_id", cycleID, "error", err)
		return report
	}

	for sensor, value := range inputs {
		if evicted := e.ring.Push(sensor, value, now, e.cfg.BufferCapacity); evicted {
			observability.RingBufferEvictionsTotal.WithLabelValues(sensor).Inc()
		}
	}

	cv := newCycleStore(inputs)
	writes := make(map[string]interface{})
	var writesMu sync.Mutex

	for _, layer := range e.layers {
		if e.cfg.GroupParallelRules && disjointOutputs(layer) {
			var wg conc.WaitGroup
			results := make([]RuleResult, len(layer))
			for i, rule := range layer {
				i, rule := i, rule
				wg.Go(func() {
					results[i] = e.evaluateRule(ctx, rule, now, cv, &writesMu, writes)
				})
			}
			wg.Wait()
			report.Rules = append(report.Rules, results...)
			continue
		}
		for _, rule := range layer {
			report.Rules = append(report.Rules, e.evaluateRule(ctx, rule, now, cv, &writesMu, writes))
		}
	}

	if err := e.store.WriteBatch(ctx, writes); err != nil {
		observability.CycleErrorsTotal.WithLabelValues("write").Inc()
		report.Aborted = true
		report.Err = fmt.Errorf("write_batch: %w", err)
		observability.Error(ctx, "cycle aborted: store write failed", "cycle_id", cycleID, "error", err)
		return report
	}

	return report
}

// disjointOutputs reports whether every rule in layer writes to a
// disjoint set of output keys, the precondition spec §5 requires before
// same-layer rules may run concurrently.
func disjointOutputs(layer []ir.RuleIR) bool {
	seen := make(map[string]string) // output key -> rule writing it
	for _, rule := range layer {
		for _, action := range append(append([]ir.ActionIR{}, rule.Actions...), rule.Else...) {
			if action.Key == "" {
				continue
			}
			if owner, ok := seen[action.Key]; ok && owner != rule.Name {
				return false
			}
			seen[action.Key] = rule.Name
		}
	}
	return true
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule ir.RuleIR, now int64, cv *cycleStore, writesMu *sync.Mutex, writes map[string]interface{}) RuleResult {
	ctx, span := observability.StartRuleSpan(ctx, rule.Name)
	defer span.End()

	ruleStart := time.Now()
	defer func() {
		observability.RuleEvaluationDuration.WithLabelValues(rule.Name).Observe(time.Since(ruleStart).Seconds())
	}()

	resolved, skip := resolveInputs(rule.Inputs, cv, e.ring, now, e.cfg.ExtendedLastKnown)
	if skip {
		observability.RuleEvaluationTotal.WithLabelValues(rule.Name, "skipped").Inc()
		return RuleResult{RuleName: rule.Name, Result: fsm.ResultIndeterminate, Skipped: true}
	}

	lookup := buildLookup(resolved, cv)
	window := func(sensor string, duration int64) []ringbuffer.Sample {
		return e.ring.ValuesInWindow(sensor, duration, now, true)
	}
	covered := func(sensor string, duration int64) bool {
		firstTs, ok := e.ring.FirstTs(sensor)
		return ok && now-firstTs >= duration
	}

	result := evalCondition(rule.Condition, lookup, window, covered)
	observability.RuleEvaluationTotal.WithLabelValues(rule.Name, result.String()).Inc()

	risingEdge := e.conditions.Get(rule.Name).Apply(result)

	var actions []ir.ActionIR
	switch result {
	case fsm.ResultTrue:
		actions = rule.Actions
	case fsm.ResultFalse:
		actions = rule.Else
	}

	emits := make([]ActionEmit, 0, len(actions))
	for idx, action := range actions {
		writesMu.Lock()
		emit := runAction(ctx, rule.Name, idx, action, lookup, risingEdge, e.emits, cv, writes)
		writesMu.Unlock()
		if emit.Written {
			observability.EmitTotal.WithLabelValues(rule.Name, emit.Kind, string(action.Emit)).Inc()
		}
		emits = append(emits, emit)
	}

	return RuleResult{RuleName: rule.Name, Result: result, Emits: emits}
}
