// Package catalog implements the Sensor Catalog resolution phase (spec
// §4.3): it resolves sensor identifiers referenced by rules against a
// catalog of known sensors, attaching type and retention metadata and
// enforcing that each virtual sensor is produced by exactly one rule.
package catalog

import (
	"fmt"

	"github.com/beaconhq/beacon/internal/diag"
	"github.com/beaconhq/beacon/internal/exprlang"
	"github.com/beaconhq/beacon/internal/schema"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// Catalog indexes sensor entries by ID.
type Catalog struct {
	entries map[string]ruleset.CatalogEntry
}

// NewCatalog builds a Catalog from a flat list of entries (spec §6, "Array
// of entries matching §3").
func NewCatalog(entries []ruleset.CatalogEntry) *Catalog {
	c := &Catalog{entries: make(map[string]ruleset.CatalogEntry, len(entries))}
	for _, e := range entries {
		c.entries[e.ID] = e
	}
	return c
}

// Lookup returns the catalog entry for id, if known.
func (c *Catalog) Lookup(id string) (ruleset.CatalogEntry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// ResolveOptions controls resolution leniency.
type ResolveOptions struct {
	// AllowInvalidSensors permits rules to reference sensors absent from
	// the catalog without failing resolution.
	AllowInvalidSensors bool
}

// ResolvedRuleSet is the Sensor Catalog's output: the validated rules,
// paired with the catalog entries they actually reference.
type ResolvedRuleSet struct {
	Rules           []ruleset.Rule
	ReferencedByRule map[string][]string // rule name -> referenced sensor IDs
}

// Resolve checks every rule's sensor references against cat and enforces
// virtual-sensor single ownership.
func Resolve(vrs *schema.ValidatedRuleSet, cat *Catalog, opts ResolveOptions) (*ResolvedRuleSet, *diag.Diagnostics) {
	var diags diag.Diagnostics

	producerOf := make(map[string][]string) // sensor -> owning rule names
	for _, rule := range vrs.Rules {
		for _, action := range append(append([]ruleset.Action{}, rule.Actions...), rule.Else...) {
			key := action.OutputKey()
			if key == "" {
				continue
			}
			if owners := producerOf[key]; len(owners) == 0 || owners[len(owners)-1] != rule.Name {
				producerOf[key] = append(owners, rule.Name)
			}
		}
	}

	for sensor, owners := range producerOf {
		if len(owners) <= 1 {
			continue
		}
		entry, known := cat.Lookup(sensor)
		if known && entry.Kind != ruleset.SensorVirtual {
			continue // non-virtual multi-writer is a different, non-catalog concern
		}
		diags.Add(diag.New(diag.KindCatalogError, fmt.Sprintf("sensor %q is produced by %d rules, virtual sensors must have exactly one producer", sensor, len(owners))).
			WithSource(owners[0], 0))
	}

	referenced := make(map[string][]string, len(vrs.Rules))

	for _, rule := range vrs.Rules {
		sensors, exprErr := referencedSensors(rule)
		if exprErr != nil {
			diags.Add(diag.New(diag.KindExpressionError, exprErr.Error()).
				WithRule(rule.Name).WithSource(rule.SourceFile, rule.Line))
			continue
		}
		referenced[rule.Name] = sensors

		for _, sensor := range sensors {
			entry, known := cat.Lookup(sensor)
			if !known {
				if !opts.AllowInvalidSensors {
					diags.Add(diag.New(diag.KindCatalogError, fmt.Sprintf("rule references unknown sensor %q", sensor)).
						WithRule(rule.Name).WithSource(rule.SourceFile, rule.Line))
				}
				continue
			}
			if entry.Kind == ruleset.SensorVirtual {
				if owners := producerOf[sensor]; len(owners) == 0 {
					diags.Add(diag.New(diag.KindCatalogError, fmt.Sprintf("virtual sensor %q has no producing rule", sensor)).
						WithRule(rule.Name).WithSource(rule.SourceFile, rule.Line))
				}
			}
		}

		for _, action := range append(append([]ruleset.Action{}, rule.Actions...), rule.Else...) {
			key := action.OutputKey()
			if key == "" {
				continue
			}
			entry, known := cat.Lookup(key)
			if known && entry.Kind != ruleset.SensorVirtual {
				diags.Add(diag.New(diag.KindCatalogError, fmt.Sprintf("output key %q must be declared virtual in the catalog", key)).
					WithRule(rule.Name).WithSource(rule.SourceFile, rule.Line))
			}
		}
	}

	if diags.HasErrors() {
		return nil, &diags
	}
	return &ResolvedRuleSet{Rules: vrs.Rules, ReferencedByRule: referenced}, &diags
}

// referencedSensors collects every sensor identifier a rule reads: those in
// its condition tree, its declared input ids, and the identifiers in the
// value expressions of both its actions and its else actions.
func referencedSensors(rule ruleset.Rule) ([]string, error) {
	var out []string
	if err := walkCondition(rule.Condition, &out); err != nil {
		return nil, err
	}
	for _, in := range rule.Inputs {
		out = append(out, in.ID)
	}
	for _, action := range append(append([]ruleset.Action{}, rule.Actions...), rule.Else...) {
		expr := valueExpressionOf(action)
		if expr == "" {
			continue
		}
		ids, err := expressionIdentifiers(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return out, nil
}

func valueExpressionOf(action ruleset.Action) string {
	switch a := action.(type) {
	case *ruleset.SetAction:
		return a.ValueExpression
	case *ruleset.BufferAction:
		return a.ValueExpression
	}
	return ""
}

func walkCondition(c ruleset.Condition, out *[]string) error {
	switch node := c.(type) {
	case nil:
		return nil
	case *ruleset.Comparison:
		*out = append(*out, node.Sensor)
	case *ruleset.ThresholdOverTime:
		*out = append(*out, node.Sensor)
	case *ruleset.Expression:
		ids, err := expressionIdentifiers(node.Text)
		if err != nil {
			return err
		}
		*out = append(*out, ids...)
	case *ruleset.All:
		for _, child := range node.Children {
			if err := walkCondition(child, out); err != nil {
				return err
			}
		}
	case *ruleset.Any:
		for _, child := range node.Children {
			if err := walkCondition(child, out); err != nil {
				return err
			}
		}
	case *ruleset.Not:
		return walkCondition(node.Child, out)
	}
	return nil
}

func expressionIdentifiers(text string) ([]string, error) {
	ast, err := exprlang.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", text, err)
	}
	return exprlang.Identifiers(ast), nil
}
