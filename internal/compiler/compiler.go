// Package compiler chains the DSL Loader, Schema Validator, Sensor
// Catalog, Dependency Analyzer, and IR Builder (spec §2, §4.1-§4.5) into
// the single ahead-of-time pipeline the CLI and the simulation harness
// both drive: rule YAML text in, a runnable ir.Program out.
package compiler

import (
	"fmt"

	"github.com/beaconhq/beacon/internal/catalog"
	"github.com/beaconhq/beacon/internal/depgraph"
	"github.com/beaconhq/beacon/internal/diag"
	"github.com/beaconhq/beacon/internal/ir"
	"github.com/beaconhq/beacon/internal/loader"
	"github.com/beaconhq/beacon/internal/schema"
	"github.com/beaconhq/beacon/pkg/fsm"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// Options controls the leniency of each pipeline phase.
type Options struct {
	ValidationLevel     schema.Level
	AllowInvalidSensors bool
	MaxDependencyDepth  int
}

// DefaultOptions matches the CLI default (spec §6).
func DefaultOptions() Options {
	return Options{ValidationLevel: schema.LevelNormal, MaxDependencyDepth: 10}
}

// Compile runs the full pipeline over yamlText against the given sensor
// catalog, returning a runnable Program or the accumulated diagnostics if
// any phase fails. It discards the per-rule lifecycle registry
// CompileWithLifecycle produces; callers that want pipeline observability
// should call that directly.
func Compile(yamlText []byte, sourceName string, entries []ruleset.CatalogEntry, opts Options) (*ir.Program, *diag.Diagnostics) {
	program, _, diags := CompileWithLifecycle(yamlText, sourceName, entries, opts)
	return program, diags
}

// CompileWithLifecycle runs the same pipeline as Compile, additionally
// tracking every rule's progress through the pipeline's phases with a
// pkg/fsm.CompileLifecycleRegistry: Draft (parsed) -> Validated (schema
// pass) -> Resolved (catalog + dependency analysis pass) -> Lowered (IR
// built). Phases run in the order the Dependency Analyzer's output the IR
// Builder consumes: loader -> schema -> catalog -> depgraph -> ir.
//
// Each phase in this pipeline accumulates diagnostics per rule but fails
// the whole batch at its boundary the moment any rule has an error (spec
// §7, "accumulate all, fail once"), so a phase's outcome is all-or-nothing
// across every rule still in play: every tracked rule advances together,
// or every tracked rule is rejected together.
func CompileWithLifecycle(yamlText []byte, sourceName string, entries []ruleset.CatalogEntry, opts Options) (*ir.Program, *fsm.CompileLifecycleRegistry, *diag.Diagnostics) {
	var diags diag.Diagnostics
	lifecycle := fsm.NewCompileLifecycleRegistry()

	doc, err := loader.Load(yamlText, sourceName)
	if err != nil {
		diags.Add(err)
		return nil, lifecycle, &diags
	}
	for i, raw := range doc.Rules {
		lifecycle.Get(draftRuleName(raw, i))
	}

	validated, vdiags := schema.Validate(doc, opts.ValidationLevel)
	diags.Merge(vdiags)
	advanceAll(lifecycle, diags.HasErrors(), fsm.EventSchemaValidated, fsm.EventSchemaRejected)
	if diags.HasErrors() {
		return nil, lifecycle, &diags
	}

	cat := catalog.NewCatalog(entries)
	resolved, cdiags := catalog.Resolve(validated, cat, catalog.ResolveOptions{AllowInvalidSensors: opts.AllowInvalidSensors})
	diags.Merge(cdiags)
	if diags.HasErrors() {
		advanceAll(lifecycle, true, fsm.EventResolved, fsm.EventResolutionRejected)
		return nil, lifecycle, &diags
	}

	analysis, adiags := depgraph.Analyze(resolved, opts.MaxDependencyDepth)
	diags.Merge(adiags)
	advanceAll(lifecycle, diags.HasErrors(), fsm.EventResolved, fsm.EventResolutionRejected)
	if diags.HasErrors() {
		return nil, lifecycle, &diags
	}

	program, idiags := ir.Lower(analysis)
	diags.Merge(idiags)
	advanceAll(lifecycle, diags.HasErrors(), fsm.EventLowered, fsm.EventLoweringRejected)
	if diags.HasErrors() {
		return nil, lifecycle, &diags
	}

	return program, lifecycle, &diags
}

// advanceAll transitions every rule currently tracked by reg via okEvent,
// or via rejectEvent if failed is true. Every tracked rule sits in the
// same stage at the point this is called, since CompileWithLifecycle
// returns immediately on any phase failure.
func advanceAll(reg *fsm.CompileLifecycleRegistry, failed bool, okEvent, rejectEvent fsm.CompileEvent) {
	event := okEvent
	if failed {
		event = rejectEvent
	}
	for name := range reg.Snapshot() {
		_ = reg.Get(name).Transition(event)
	}
}

// draftRuleName best-effort extracts a raw rule's "name" field directly
// from its YAML mapping node, for lifecycle-registry bookkeeping before
// the Schema Validator has had a chance to parse (and possibly reject)
// it. A rule with no "name" key gets a positional placeholder; it will
// fail schema validation on the very next phase regardless.
func draftRuleName(raw loader.RawRule, index int) string {
	if raw.Node != nil {
		for i := 0; i+1 < len(raw.Node.Content); i += 2 {
			if raw.Node.Content[i].Value == "name" {
				return raw.Node.Content[i+1].Value
			}
		}
	}
	return fmt.Sprintf("rule[%d]", index)
}
