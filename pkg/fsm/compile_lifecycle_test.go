package fsm

import "testing"

func TestCompileLifecycleFSM_StartsAtDraft(t *testing.T) {
	f := NewCompileLifecycleFSM("sustained_hot")
	if f.Stage() != StageDraft {
		t.Fatalf("expected initial stage Draft, got %v", f.Stage())
	}
}

func TestCompileLifecycleFSM_HappyPathReachesLowered(t *testing.T) {
	f := NewCompileLifecycleFSM("sustained_hot")

	if err := f.Transition(EventSchemaValidated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Stage() != StageValidated {
		t.Fatalf("expected Validated, got %v", f.Stage())
	}

	if err := f.Transition(EventResolved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Stage() != StageResolved {
		t.Fatalf("expected Resolved, got %v", f.Stage())
	}

	if err := f.Transition(EventLowered); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Stage() != StageLowered {
		t.Fatalf("expected Lowered, got %v", f.Stage())
	}
}

func TestCompileLifecycleFSM_RejectionFromAnyStageIsTerminal(t *testing.T) {
	f := NewCompileLifecycleFSM("bad_rule")
	if err := f.Transition(EventSchemaRejected); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Stage() != StageRejected {
		t.Fatalf("expected Rejected, got %v", f.Stage())
	}

	if err := f.Transition(EventResolved); err == nil {
		t.Fatal("expected InvalidTransitionError once a rule is Rejected")
	}
}

func TestCompileLifecycleFSM_SkippingAStageIsInvalid(t *testing.T) {
	f := NewCompileLifecycleFSM("sustained_hot")
	err := f.Transition(EventResolved) // never validated
	if err == nil {
		t.Fatal("expected an error skipping Validated")
	}
	if _, ok := err.(*InvalidTransitionError); !ok {
		t.Fatalf("expected *InvalidTransitionError, got %T", err)
	}
}

func TestCompileLifecycleFSM_LoweredIsTerminal(t *testing.T) {
	f := NewCompileLifecycleFSM("sustained_hot")
	_ = f.Transition(EventSchemaValidated)
	_ = f.Transition(EventResolved)
	_ = f.Transition(EventLowered)

	if err := f.Transition(EventLowered); err == nil {
		t.Fatal("expected an error re-transitioning a Lowered rule")
	}
}

func TestCompileLifecycleRegistry_GetIsLazyAndStable(t *testing.T) {
	reg := NewCompileLifecycleRegistry()
	a := reg.Get("r1")
	b := reg.Get("r1")
	if a != b {
		t.Fatal("expected the same FSM instance on repeated Get")
	}
}

func TestCompileLifecycleRegistry_Snapshot(t *testing.T) {
	reg := NewCompileLifecycleRegistry()
	reg.Get("r1").Transition(EventSchemaValidated)
	reg.Get("r2")

	snap := reg.Snapshot()
	if snap["r1"] != StageValidated {
		t.Fatalf("expected r1 Validated, got %v", snap["r1"])
	}
	if snap["r2"] != StageDraft {
		t.Fatalf("expected r2 Draft, got %v", snap["r2"])
	}
}
