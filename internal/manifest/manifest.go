// Package manifest builds the persisted IR / manifest.json artifact the
// compile and beacon CLI subcommands emit (spec §6, "Persisted IR /
// manifest").
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/beaconhq/beacon/internal/ir"
)

// TemporalDependency is one rule's threshold_over_time window
// requirement, surfaced for downstream code generators.
type TemporalDependency struct {
	Sensor   string `json:"sensor"`
	Duration int64  `json:"duration_ms"`
}

// Rule is one compiled rule's manifest entry.
type Rule struct {
	Name                 string                `json:"name"`
	SourceFile           string                `json:"source_file"`
	Line                 int                   `json:"line"`
	Description          string                `json:"description,omitempty"`
	InputSensors         []string              `json:"input_sensors"`
	OutputSensors        []string              `json:"output_sensors"`
	Layer                int                   `json:"layer"`
	TemporalDependencies []TemporalDependency  `json:"temporal_dependencies,omitempty"`
}

// BuildMetrics summarizes the compiled program for quick inspection
// without re-parsing the full rule list.
type BuildMetrics struct {
	TotalRules int `json:"total_rules"`
}

// Manifest is the top-level manifest.json document.
type Manifest struct {
	GeneratedAt  time.Time    `json:"generated_at"`
	Rules        []Rule       `json:"rules"`
	BuildMetrics BuildMetrics `json:"build_metrics"`
}

// Build derives a Manifest from a compiled Program. generatedAt is
// passed in rather than taken from time.Now so callers can keep manifest
// generation deterministic in tests.
func Build(program *ir.Program, generatedAt time.Time) Manifest {
	temporalByRule := make(map[string][]TemporalDependency)
	for _, td := range program.TemporalDependencies {
		temporalByRule[td.Rule] = append(temporalByRule[td.Rule], TemporalDependency{
			Sensor:   td.Sensor,
			Duration: td.Duration,
		})
	}

	rules := make([]Rule, 0, len(program.Rules))
	for _, r := range program.Rules {
		inputs := make([]string, 0, len(r.Inputs))
		for _, in := range r.Inputs {
			inputs = append(inputs, in.ID)
		}

		outputs := outputSensors(r)

		rules = append(rules, Rule{
			Name:                 r.Name,
			SourceFile:           r.SourceFile,
			Line:                 r.Line,
			Description:          r.Description,
			InputSensors:         inputs,
			OutputSensors:        outputs,
			Layer:                r.Layer,
			TemporalDependencies: temporalByRule[r.Name],
		})
	}

	return Manifest{
		GeneratedAt: generatedAt,
		Rules:       rules,
		BuildMetrics: BuildMetrics{
			TotalRules: len(rules),
		},
	}
}

func outputSensors(r ir.RuleIR) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range r.Actions {
		if a.Key != "" && !seen[a.Key] {
			seen[a.Key] = true
			out = append(out, a.Key)
		}
	}
	for _, a := range r.Else {
		if a.Key != "" && !seen[a.Key] {
			seen[a.Key] = true
			out = append(out, a.Key)
		}
	}
	return out
}

// WriteFile marshals m as indented JSON to <dir>/rules.manifest.json.
func WriteFile(dir string, m Manifest) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "rules.manifest.json")
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
