// Package fsm implements the small state machines the runtime evaluator
// needs to track across cycles.
package fsm

import (
	"fmt"
	"sync"
)

// ConditionState is a rule's condition-result state across cycles, used to
// detect the rising edge an on_enter emit mode requires (spec §4.7).
type ConditionState int

const (
	// Inactive is the initial state and the state after any cycle whose
	// condition result was False.
	Inactive ConditionState = iota
	// Active is the state after any cycle whose condition result was True.
	Active
)

// String returns a human-readable state name.
func (s ConditionState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Result is a cycle's condition evaluation outcome under Kleene logic.
type Result int

const (
	ResultFalse Result = iota
	ResultTrue
	ResultIndeterminate
)

func (r Result) String() string {
	switch r {
	case ResultFalse:
		return "false"
	case ResultTrue:
		return "true"
	case ResultIndeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("unknown_result(%d)", r)
	}
}

// RuleConditionFSM tracks a single rule's condition state across cycles.
// Transitions per spec §4.7: any True result moves to Active, any False
// result moves to Inactive, Indeterminate preserves the current state. A
// rising edge (Inactive -> Active) is what on_enter actions fire on.
type RuleConditionFSM struct {
	ruleName string
	state    ConditionState
	mu       sync.RWMutex
}

// NewRuleConditionFSM creates an FSM for ruleName, starting Inactive.
func NewRuleConditionFSM(ruleName string) *RuleConditionFSM {
	return &RuleConditionFSM{ruleName: ruleName, state: Inactive}
}

// State returns the current state.
func (f *RuleConditionFSM) State() ConditionState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Apply advances the FSM with this cycle's condition result and reports
// whether this transition was a rising edge (Inactive -> Active).
func (f *RuleConditionFSM) Apply(result Result) (risingEdge bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch result {
	case ResultTrue:
		risingEdge = f.state == Inactive
		f.state = Active
	case ResultFalse:
		f.state = Inactive
	case ResultIndeterminate:
		// state preserved
	}
	return risingEdge
}

// RuleConditionRegistry owns one RuleConditionFSM per rule name, created
// lazily on first access so the evaluator doesn't need an explicit
// registration pass.
type RuleConditionRegistry struct {
	mu   sync.Mutex
	fsms map[string]*RuleConditionFSM
}

// NewRuleConditionRegistry creates an empty registry.
func NewRuleConditionRegistry() *RuleConditionRegistry {
	return &RuleConditionRegistry{fsms: make(map[string]*RuleConditionFSM)}
}

// Get retrieves or creates the FSM for ruleName.
func (r *RuleConditionRegistry) Get(ruleName string) *RuleConditionFSM {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fsm, ok := r.fsms[ruleName]; ok {
		return fsm
	}
	fsm := NewRuleConditionFSM(ruleName)
	r.fsms[ruleName] = fsm
	return fsm
}

// Snapshot returns every tracked rule's current state, for CycleReport
// observability and test assertions.
func (r *RuleConditionRegistry) Snapshot() map[string]ConditionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ConditionState, len(r.fsms))
	for name, fsm := range r.fsms {
		out[name] = fsm.State()
	}
	return out
}
