package fsm

import (
	"fmt"
	"sync"
)

// CompileStage is a rule's position in the ahead-of-time compiler
// pipeline (spec §4): every rule advances through these stages in order
// as the pipeline's phases accept it, or drops to StageRejected the first
// time a phase rejects it.
type CompileStage int

const (
	// StageDraft is the initial state: the rule exists as a raw parsed
	// YAML mapping (internal/loader), not yet schema-checked.
	StageDraft CompileStage = iota
	// StageValidated follows a successful internal/schema.Validate pass.
	StageValidated
	// StageResolved follows successful sensor catalog resolution and
	// dependency-graph analysis (internal/catalog, internal/depgraph).
	StageResolved
	// StageLowered follows a successful internal/ir.Lower — the rule is
	// part of a runnable Program.
	StageLowered
	// StageRejected is terminal: some phase rejected the rule and it was
	// dropped from the pipeline's output.
	StageRejected
)

func (s CompileStage) String() string {
	switch s {
	case StageDraft:
		return "draft"
	case StageValidated:
		return "validated"
	case StageResolved:
		return "resolved"
	case StageLowered:
		return "lowered"
	case StageRejected:
		return "rejected"
	default:
		return fmt.Sprintf("unknown_stage(%d)", s)
	}
}

// CompileEvent drives a CompileLifecycleFSM transition, one per pipeline
// phase outcome.
type CompileEvent int

const (
	EventSchemaValidated CompileEvent = iota
	EventSchemaRejected
	EventResolved
	EventResolutionRejected
	EventLowered
	EventLoweringRejected
)

func (e CompileEvent) String() string {
	switch e {
	case EventSchemaValidated:
		return "schema_validated"
	case EventSchemaRejected:
		return "schema_rejected"
	case EventResolved:
		return "resolved"
	case EventResolutionRejected:
		return "resolution_rejected"
	case EventLowered:
		return "lowered"
	case EventLoweringRejected:
		return "lowering_rejected"
	default:
		return fmt.Sprintf("unknown_event(%d)", e)
	}
}

// InvalidTransitionError indicates an illegal compile-stage transition,
// e.g. lowering a rule that was never resolved.
type InvalidTransitionError struct {
	RuleName string
	From     CompileStage
	Event    CompileEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("rule %s: invalid compile transition from %s via event %s",
		e.RuleName, e.From, e.Event)
}

// compileTransitions is the pipeline's transition table: CurrentStage ->
// Event -> NextStage. Every stage also accepts its own reject event,
// which always leads to StageRejected.
func compileTransitions() map[CompileStage]map[CompileEvent]CompileStage {
	return map[CompileStage]map[CompileEvent]CompileStage{
		StageDraft: {
			EventSchemaValidated: StageValidated,
			EventSchemaRejected:  StageRejected,
		},
		StageValidated: {
			EventResolved:           StageResolved,
			EventResolutionRejected: StageRejected,
		},
		StageResolved: {
			EventLowered:          StageLowered,
			EventLoweringRejected: StageRejected,
		},
	}
}

// CompileLifecycleFSM tracks one rule's progress through the compiler
// pipeline's phases (loader -> schema -> catalog/depgraph -> ir).
type CompileLifecycleFSM struct {
	ruleName string
	stage    CompileStage
	mu       sync.RWMutex
}

// NewCompileLifecycleFSM creates an FSM for ruleName, starting at
// StageDraft.
func NewCompileLifecycleFSM(ruleName string) *CompileLifecycleFSM {
	return &CompileLifecycleFSM{ruleName: ruleName, stage: StageDraft}
}

// Stage returns the current stage (thread-safe).
func (f *CompileLifecycleFSM) Stage() CompileStage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stage
}

// Transition advances the FSM via event, returning *InvalidTransitionError
// if event is not legal from the current stage. Once a rule reaches
// StageLowered or StageRejected every further event is invalid: both are
// terminal.
func (f *CompileLifecycleFSM) Transition(event CompileEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, ok := compileTransitions()[f.stage][event]
	if !ok {
		return &InvalidTransitionError{RuleName: f.ruleName, From: f.stage, Event: event}
	}
	f.stage = next
	return nil
}

// CompileLifecycleRegistry owns one CompileLifecycleFSM per rule name,
// created lazily on first Get, mirroring RuleConditionRegistry's shape.
type CompileLifecycleRegistry struct {
	mu   sync.Mutex
	fsms map[string]*CompileLifecycleFSM
}

// NewCompileLifecycleRegistry creates an empty registry.
func NewCompileLifecycleRegistry() *CompileLifecycleRegistry {
	return &CompileLifecycleRegistry{fsms: make(map[string]*CompileLifecycleFSM)}
}

// Get retrieves or creates the FSM for ruleName.
func (r *CompileLifecycleRegistry) Get(ruleName string) *CompileLifecycleFSM {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.fsms[ruleName]; ok {
		return f
	}
	f := NewCompileLifecycleFSM(ruleName)
	r.fsms[ruleName] = f
	return f
}

// Snapshot returns every tracked rule's current stage, for pipeline
// observability and test assertions.
func (r *CompileLifecycleRegistry) Snapshot() map[string]CompileStage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]CompileStage, len(r.fsms))
	for name, f := range r.fsms {
		out[name] = f.Stage()
	}
	return out
}
