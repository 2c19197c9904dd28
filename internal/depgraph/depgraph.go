// Package depgraph implements the Dependency Analyzer (spec §4.4): it
// builds the rule-level dependency graph from action outputs to rule
// inputs, detects cycles, computes longest-path depth, and assigns
// evaluation layers.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"

	"github.com/beaconhq/beacon/internal/catalog"
	"github.com/beaconhq/beacon/internal/diag"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// TemporalDependency records a threshold_over_time leaf's window
// requirement, so the Ring Buffer Manager knows how far back to retain
// samples for that sensor.
type TemporalDependency struct {
	Rule     string
	Sensor   string
	Duration int64 // milliseconds
}

// LayeredRule pairs a rule with its assigned evaluation layer.
type LayeredRule struct {
	Rule  ruleset.Rule
	Layer int
	Depth int
}

// Analysis is the Dependency Analyzer's output.
type Analysis struct {
	LayeredRules         []LayeredRule
	TemporalDependencies []TemporalDependency
}

// defaultMaxDependencyDepth is the default bound on the longest dependency chain before a rule is
// flagged with a DepthExceeded warning (spec §6, default 10).
const defaultMaxDependencyDepth = 10

// Analyze builds the dependency graph over rrs's rules and computes a
// stable, layered evaluation order.
func Analyze(rrs *catalog.ResolvedRuleSet, maxDependencyDepth int) (*Analysis, *diag.Diagnostics) {
	var diags diag.Diagnostics
	if maxDependencyDepth <= 0 {
		maxDependencyDepth = defaultMaxDependencyDepth
	}

	rulesByName := make(map[string]ruleset.Rule, len(rrs.Rules))
	for _, r := range rrs.Rules {
		rulesByName[r.Name] = r
	}

	producerOf := make(map[string]string) // sensor -> producing rule name
	for _, r := range rrs.Rules {
		for _, action := range append(append([]ruleset.Action{}, r.Actions...), r.Else...) {
			if key := action.OutputKey(); key != "" {
				producerOf[key] = r.Name
			}
		}
	}

	g := core.NewGraph(core.WithDirected(true))
	for _, r := range rrs.Rules {
		if err := g.AddVertex(r.Name); err != nil {
			diags.Add(diag.New(diag.KindCatalogError, fmt.Sprintf("failed to add rule to dependency graph: %v", err)).WithRule(r.Name))
		}
	}

	var temporal []TemporalDependency
	for _, r := range rrs.Rules {
		collectTemporal(r.Condition, r.Name, &temporal)

		for _, sensor := range rrs.ReferencedByRule[r.Name] {
			producer, ok := producerOf[sensor]
			if !ok || producer == r.Name {
				continue
			}
			if _, err := g.AddEdge(r.Name, producer, 1); err != nil {
				diags.Add(diag.New(diag.KindCatalogError, fmt.Sprintf("failed to add dependency edge %s -> %s: %v", r.Name, producer, err)).WithRule(r.Name))
			}
		}
	}

	if hasCycle, cycles, err := dfs.DetectCycles(g); err != nil {
		diags.Add(diag.New(diag.KindCycleDetected, fmt.Sprintf("cycle detection failed: %v", err)))
		return nil, &diags
	} else if hasCycle {
		smallest := smallestCycle(cycles)
		diags.Add(diag.New(diag.KindCycleDetected, fmt.Sprintf("dependency cycle: %v", smallest)))
		return nil, &diags
	}

	depth := make(map[string]int, len(rulesByName))
	for name := range rulesByName {
		if _, err := computeDepth(g, name, depth, map[string]bool{}); err != nil {
			diags.Add(diag.New(diag.KindCatalogError, err.Error()).WithRule(name))
		}
	}

	for name, d := range depth {
		if d > maxDependencyDepth {
			diags.Add(diag.New(diag.KindDepthExceeded, fmt.Sprintf("dependency chain depth %d exceeds maxDependencyDepth %d", d, maxDependencyDepth)).WithRule(name))
		}
	}

	names := make([]string, 0, len(rulesByName))
	for name := range rulesByName {
		names = append(names, name)
	}
	sort.Strings(names)

	layered := make([]LayeredRule, 0, len(names))
	for _, name := range names {
		layered = append(layered, LayeredRule{
			Rule:  rulesByName[name],
			Layer: depth[name],
			Depth: depth[name],
		})
	}
	sort.SliceStable(layered, func(i, j int) bool {
		if layered[i].Layer != layered[j].Layer {
			return layered[i].Layer < layered[j].Layer
		}
		return layered[i].Rule.Name < layered[j].Rule.Name
	})

	return &Analysis{LayeredRules: layered, TemporalDependencies: temporal}, &diags
}

// computeDepth returns the longest dependency-path depth for rule name via
// memoized DFS over the producer edges (rule -> the rule producing a
// sensor it reads). A rule with no dependencies sits at depth 0.
func computeDepth(g *core.Graph, name string, memo map[string]int, inProgress map[string]bool) (int, error) {
	if d, ok := memo[name]; ok {
		return d, nil
	}
	if inProgress[name] {
		return 0, fmt.Errorf("cycle detected while computing depth for %q", name)
	}
	inProgress[name] = true
	defer delete(inProgress, name)

	neighbors, err := g.Neighbors(name)
	if err != nil {
		return 0, fmt.Errorf("depth computation for %q: %w", name, err)
	}

	best := 0
	for _, edge := range neighbors {
		d, err := computeDepth(g, edge.To, memo, inProgress)
		if err != nil {
			return 0, err
		}
		if d+1 > best {
			best = d + 1
		}
	}

	memo[name] = best
	return best, nil
}

func smallestCycle(cycles [][]string) []string {
	if len(cycles) == 0 {
		return nil
	}
	smallest := cycles[0]
	for _, c := range cycles[1:] {
		if len(c) < len(smallest) {
			smallest = c
		}
	}
	return smallest
}

func collectTemporal(c ruleset.Condition, ruleName string, out *[]TemporalDependency) {
	switch node := c.(type) {
	case *ruleset.ThresholdOverTime:
		*out = append(*out, TemporalDependency{Rule: ruleName, Sensor: node.Sensor, Duration: node.Duration})
	case *ruleset.All:
		for _, child := range node.Children {
			collectTemporal(child, ruleName, out)
		}
	case *ruleset.Any:
		for _, child := range node.Children {
			collectTemporal(child, ruleName, out)
		}
	case *ruleset.Not:
		collectTemporal(node.Child, ruleName, out)
	}
}
