package evaluator

import "github.com/beaconhq/beacon/pkg/fsm"

// ActionEmit records one action's outcome within a cycle, for the
// CycleReport observability surface (spec §4.7 step 6).
type ActionEmit struct {
	ActionIndex int
	Kind        string // set|log|buffer
	Key         string // empty for log actions
	Value       interface{}
	Written     bool // true if this action's value passed emit-mode gating
}

// RuleResult is one rule's outcome within a cycle.
type RuleResult struct {
	RuleName string
	Result   fsm.Result
	Skipped  bool // true when a skip_rule fallback fired
	Emits    []ActionEmit
}

// CycleReport enumerates every rule's result and every action's emit
// decision for one evaluation cycle (spec §4.7 step 6).
type CycleReport struct {
	CycleID string
	Now     int64
	Rules   []RuleResult
	// Aborted is set when the store read fails (before any rule evaluates)
	// or when the final batch write fails after the rules ran, in which
	// case Rules is still populated (spec §4.7, Error conditions).
	Aborted bool
	Err     error
}
