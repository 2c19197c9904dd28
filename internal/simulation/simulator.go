package simulation

import (
	"context"
	"time"

	"github.com/beaconhq/beacon/internal/compiler"
	"github.com/beaconhq/beacon/internal/diag"
	"github.com/beaconhq/beacon/internal/evaluator"
	"github.com/beaconhq/beacon/internal/ir"
	"github.com/beaconhq/beacon/internal/store"
	"github.com/beaconhq/beacon/pkg/fsm"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// Simulator drives a compiled Program against a VirtualClock and an
// in-memory Store, tick by tick, so the testable properties in spec §8
// can be exercised deterministically without wall-clock sleeps.
type Simulator struct {
	clock     *VirtualClock
	rand      *fsm.DeterministicRand
	store     *store.MemoryStore
	program   *ir.Program
	evaluator *evaluator.Evaluator
	cfg       evaluator.Config
	reports   []*evaluator.CycleReport

	lastYAML    []byte
	lastEntries []ruleset.CatalogEntry
	lastTick    int64
}

// NewSimulator compiles yamlText against entries and wires the result into
// a fresh Evaluator backed by a MemoryStore, with the clock starting at
// start and seeded for any randomized test helpers the caller needs.
func NewSimulator(yamlText string, entries []ruleset.CatalogEntry, cfg evaluator.Config, start time.Time, seed int64) (*Simulator, *diag.Diagnostics) {
	program, diags := compiler.Compile([]byte(yamlText), "simulation.yaml", entries, compiler.DefaultOptions())
	if diags.HasErrors() {
		return nil, diags
	}

	st := store.NewMemoryStore()
	sim := &Simulator{
		clock:       NewVirtualClock(start),
		rand:        fsm.NewDeterministicRand(seed),
		store:       st,
		program:     program,
		cfg:         cfg,
		lastYAML:    []byte(yamlText),
		lastEntries: entries,
	}
	sim.evaluator = evaluator.New(program, st, cfg)
	return sim, diags
}

// Now returns the simulator's current virtual time.
func (s *Simulator) Now() time.Time {
	return s.clock.Now()
}

// Seed returns the seed this simulation run was constructed with, for
// reproducing a failing run.
func (s *Simulator) Seed() int64 {
	return s.rand.Seed()
}

// SetSensor seeds or overwrites a sensor's current value in the store, as
// if an external producer had just written it.
func (s *Simulator) SetSensor(id string, value interface{}) {
	s.store.Seed(map[string]store.Value{id: value})
}

// GetOutput reads a key's current value directly from the store.
func (s *Simulator) GetOutput(key string) (interface{}, bool) {
	values, err := s.store.ReadAll(context.Background(), []string{key})
	if err != nil {
		return nil, false
	}
	v, ok := values[key]
	return v, ok
}

// SetHealthy toggles the backing store's simulated health, for exercising
// the evaluator's cycle-abort path.
func (s *Simulator) SetHealthy(healthy bool) {
	s.store.SetHealthy(healthy)
}

// Forget removes sensors from the store, simulating them going silent so
// a rule's use_last_known/propagate_unavailable fallback paths can be
// exercised.
func (s *Simulator) Forget(sensors ...string) {
	s.store.Forget(sensors...)
}

// Tick advances the virtual clock by d and runs exactly one evaluation
// cycle at the new time, recording its report.
func (s *Simulator) Tick(d time.Duration) *evaluator.CycleReport {
	s.clock.Advance(d)
	s.lastTick = s.clock.Now().UnixMilli()
	report := s.evaluator.RunCycle(context.Background(), s.lastTick)
	s.reports = append(s.reports, report)
	return report
}

// Reports returns every CycleReport recorded so far, oldest first.
func (s *Simulator) Reports() []*evaluator.CycleReport {
	return s.reports
}

// LastReport returns the most recently recorded CycleReport, or nil if no
// cycle has run yet.
func (s *Simulator) LastReport() *evaluator.CycleReport {
	if len(s.reports) == 0 {
		return nil
	}
	return s.reports[len(s.reports)-1]
}

// Restart simulates a process restart: it rebuilds the Evaluator (fresh
// ring buffers and condition FSMs) from the same compiled Program against
// the same backing Store, whose contents survive the "crash" the way an
// external store would.
func (s *Simulator) Restart() {
	s.evaluator = evaluator.New(s.program, s.store, s.cfg)
}

// Program exposes the compiled program under test, for invariants that
// inspect its static shape (layering, symbol table).
func (s *Simulator) Program() *ir.Program {
	return s.program
}
