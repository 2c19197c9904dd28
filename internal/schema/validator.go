// Package schema implements the Schema Validator (spec §4.2): it enforces
// the v3 rule schema, canonicalizes durations and identifiers, and rejects
// unknown keys at every node.
package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/beaconhq/beacon/internal/diag"
	"github.com/beaconhq/beacon/internal/loader"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// Level controls how strictly the validator treats hygiene issues that
// aren't outright schema violations (spec §4.2).
type Level string

const (
	LevelStrict  Level = "strict"
	LevelNormal  Level = "normal"
	LevelRelaxed Level = "relaxed"
)

// ValidatedRuleSet is the validator's output: a set of rules whose shape
// matches the v3 schema and whose durations are canonicalized to
// milliseconds.
type ValidatedRuleSet struct {
	Rules []ruleset.Rule
}

// Validate enforces the v3 schema against every rule in doc, accumulating
// every diagnostic before returning (single-error-fail is disallowed).
func Validate(doc *loader.RawDocument, level Level) (*ValidatedRuleSet, *diag.Diagnostics) {
	var diags diag.Diagnostics
	result := &ValidatedRuleSet{}
	names := make(map[string]bool, len(doc.Rules))

	for _, raw := range doc.Rules {
		rule, ruleDiags := validateRule(raw, level)
		diags.Merge(ruleDiags)
		if rule == nil {
			continue
		}
		if names[rule.Name] {
			diags.Add(diag.New(diag.KindSchemaError, "duplicate rule name").
				WithRule(rule.Name).WithSource(raw.SourceFile, raw.Line))
			continue
		}
		names[rule.Name] = true
		result.Rules = append(result.Rules, *rule)
	}

	if diags.HasErrors() {
		return nil, &diags
	}
	return result, &diags
}

var ruleKeys = []string{"name", "description", "inputs", "condition", "actions", "else"}

func validateRule(raw loader.RawRule, level Level) (*ruleset.Rule, *diag.Diagnostics) {
	var diags diag.Diagnostics
	node := raw.Node

	if d := rejectUnknownKeys(node, ruleKeys, raw.SourceFile, raw.Line, ""); d != nil {
		diags.Add(d)
		return nil, &diags
	}

	name := stringField(node, "name")
	if name == "" {
		diags.Add(diag.New(diag.KindSchemaError, "rule is missing required field \"name\"").
			WithSource(raw.SourceFile, raw.Line))
		return nil, &diags
	}
	if !ruleset.ValidIdentifier(name) {
		diags.Add(diag.New(diag.KindSchemaError, fmt.Sprintf("invalid rule name %q", name)).
			WithRule(name).WithSource(raw.SourceFile, raw.Line))
		return nil, &diags
	}

	rule := &ruleset.Rule{
		Name:       name,
		SourceFile: raw.SourceFile,
		Line:       raw.Line,
	}

	description := stringField(node, "description")
	rule.Description = description
	if description == "" {
		switch level {
		case LevelStrict:
			diags.Add(diag.New(diag.KindSchemaError, "description is required in strict mode").WithRule(name).WithSource(raw.SourceFile, raw.Line))
		case LevelNormal:
			diags.Add(diag.New(diag.KindDepthExceeded, "missing description").WithRule(name).WithSource(raw.SourceFile, raw.Line))
		case LevelRelaxed:
			diags.Add(diag.New(diag.KindRuntimeIndeterminate, "missing description (informational)").WithRule(name).WithSource(raw.SourceFile, raw.Line))
		}
	}

	if inputsNode := findValue(node, "inputs"); inputsNode != nil {
		inputs, d := validateInputs(inputsNode, name, raw.SourceFile)
		diags.Merge(d)
		rule.Inputs = inputs
	}

	condNode := findValue(node, "condition")
	if condNode == nil {
		diags.Add(diag.New(diag.KindSchemaError, "rule is missing required field \"condition\"").WithRule(name).WithSource(raw.SourceFile, raw.Line))
	} else {
		cond, d := validateCondition(condNode, name, raw.SourceFile)
		diags.Merge(d)
		rule.Condition = cond
	}

	actionsNode := findValue(node, "actions")
	if actionsNode == nil {
		diags.Add(diag.New(diag.KindSchemaError, "rule is missing required field \"actions\"").WithRule(name).WithSource(raw.SourceFile, raw.Line))
	} else {
		actions, d := validateActions(actionsNode, name, raw.SourceFile)
		diags.Merge(d)
		rule.Actions = actions
		checkActionCount(&diags, len(actions), name, raw, level)
	}

	if elseNode := findValue(node, "else"); elseNode != nil {
		elseActions, d := validateActions(elseNode, name, raw.SourceFile)
		diags.Merge(d)
		rule.Else = elseActions
	}

	if diags.HasErrors() {
		return nil, &diags
	}
	return rule, &diags
}

func checkActionCount(diags *diag.Diagnostics, count int, ruleName string, raw loader.RawRule, level Level) {
	switch level {
	case LevelStrict:
		if count > 5 {
			diags.Add(diag.New(diag.KindSchemaError, fmt.Sprintf("strict mode permits at most 5 actions, found %d", count)).
				WithRule(ruleName).WithSource(raw.SourceFile, raw.Line))
		}
	case LevelNormal:
		if count > 10 {
			diags.Add(diag.New(diag.KindDepthExceeded, fmt.Sprintf("rule has %d actions (recommended max 10)", count)).
				WithRule(ruleName).WithSource(raw.SourceFile, raw.Line))
		}
	case LevelRelaxed:
		if count > 15 {
			diags.Add(diag.New(diag.KindRuntimeIndeterminate, fmt.Sprintf("rule has %d actions (recommended max 15)", count)).
				WithRule(ruleName).WithSource(raw.SourceFile, raw.Line))
		}
	}
}

var inputKeys = []string{"id", "required", "fallback"}
var fallbackKeys = []string{"strategy", "default_value", "max_age"}

func validateInputs(node *yaml.Node, ruleName, sourceFile string) ([]ruleset.InputDescriptor, *diag.Diagnostics) {
	var diags diag.Diagnostics
	if node.Kind != yaml.SequenceNode {
		diags.Add(diag.New(diag.KindSchemaError, "\"inputs\" must be a sequence").WithRule(ruleName).WithSource(sourceFile, node.Line))
		return nil, &diags
	}

	var out []ruleset.InputDescriptor
	for _, item := range node.Content {
		if d := rejectUnknownKeys(item, inputKeys, sourceFile, item.Line, ruleName); d != nil {
			diags.Add(d)
			continue
		}
		id := stringField(item, "id")
		if id == "" || !ruleset.ValidIdentifier(id) {
			diags.Add(diag.New(diag.KindSchemaError, fmt.Sprintf("input has invalid \"id\" %q", id)).WithRule(ruleName).WithSource(sourceFile, item.Line))
			continue
		}
		desc := ruleset.InputDescriptor{ID: id, Required: boolField(item, "required")}

		if fbNode := findValue(item, "fallback"); fbNode != nil {
			if d := rejectUnknownKeys(fbNode, fallbackKeys, sourceFile, fbNode.Line, ruleName); d != nil {
				diags.Add(d)
				continue
			}
			fb := &ruleset.Fallback{Strategy: ruleset.FallbackStrategy(stringField(fbNode, "strategy"))}
			if dv := findValue(fbNode, "default_value"); dv != nil {
				var v interface{}
				_ = dv.Decode(&v)
				fb.DefaultValue = v
			}
			if ma := findValue(fbNode, "max_age"); ma != nil {
				ms, err := decodeDurationNode(ma)
				if err != nil {
					diags.Add(diag.New(diag.KindSchemaError, err.Error()).WithRule(ruleName).WithSource(sourceFile, ma.Line))
					continue
				}
				fb.MaxAge = ms
			}
			desc.Fallback = fb
		}

		if err := desc.Validate(); err != nil {
			diags.Add(diag.New(diag.KindSchemaError, err.Error()).WithRule(ruleName).WithSource(sourceFile, item.Line))
			continue
		}
		out = append(out, desc)
	}
	return out, &diags
}

func validateCondition(node *yaml.Node, ruleName, sourceFile string) (ruleset.Condition, *diag.Diagnostics) {
	var diags diag.Diagnostics
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		diags.Add(diag.New(diag.KindSchemaError, "condition must be a single-key mapping").WithRule(ruleName).WithSource(sourceFile, node.Line))
		return nil, &diags
	}

	key := node.Content[0].Value
	value := node.Content[1]

	switch key {
	case "comparison":
		if d := rejectUnknownKeys(value, []string{"sensor", "op", "value"}, sourceFile, value.Line, ruleName); d != nil {
			diags.Add(d)
			return nil, &diags
		}
		var v interface{}
		if vn := findValue(value, "value"); vn != nil {
			_ = vn.Decode(&v)
		}
		return &ruleset.Comparison{
			Sensor: stringField(value, "sensor"),
			Op:     ruleset.CompareOp(stringField(value, "op")),
			Value:  v,
		}, &diags

	case "expression":
		if d := rejectUnknownKeys(value, []string{"text"}, sourceFile, value.Line, ruleName); d != nil {
			diags.Add(d)
			return nil, &diags
		}
		return &ruleset.Expression{Text: stringField(value, "text")}, &diags

	case "threshold_over_time":
		if d := rejectUnknownKeys(value, []string{"sensor", "op", "threshold", "duration"}, sourceFile, value.Line, ruleName); d != nil {
			diags.Add(d)
			return nil, &diags
		}
		durNode := findValue(value, "duration")
		var durMs int64
		if durNode != nil {
			ms, err := decodeDurationNode(durNode)
			if err != nil {
				diags.Add(diag.New(diag.KindSchemaError, err.Error()).WithRule(ruleName).WithSource(sourceFile, durNode.Line))
				return nil, &diags
			}
			durMs = ms
		}
		var threshold float64
		if tn := findValue(value, "threshold"); tn != nil {
			_ = tn.Decode(&threshold)
		}
		return &ruleset.ThresholdOverTime{
			Sensor:    stringField(value, "sensor"),
			Op:        ruleset.CompareOp(stringField(value, "op")),
			Threshold: threshold,
			Duration:  durMs,
		}, &diags

	case "all", "any":
		if value.Kind != yaml.SequenceNode {
			diags.Add(diag.New(diag.KindSchemaError, fmt.Sprintf("%q must be a sequence", key)).WithRule(ruleName).WithSource(sourceFile, value.Line))
			return nil, &diags
		}
		var children []ruleset.Condition
		for _, child := range value.Content {
			c, d := validateCondition(child, ruleName, sourceFile)
			diags.Merge(d)
			if c != nil {
				children = append(children, c)
			}
		}
		if key == "all" {
			return &ruleset.All{Children: children}, &diags
		}
		return &ruleset.Any{Children: children}, &diags

	case "not":
		child, d := validateCondition(value, ruleName, sourceFile)
		diags.Merge(d)
		return &ruleset.Not{Child: child}, &diags

	default:
		diags.Add(diag.New(diag.KindSchemaError, fmt.Sprintf("unknown condition kind %q", key)).WithRule(ruleName).WithSource(sourceFile, node.Line))
		return nil, &diags
	}
}

func validateActions(node *yaml.Node, ruleName, sourceFile string) ([]ruleset.Action, *diag.Diagnostics) {
	var diags diag.Diagnostics
	if node.Kind != yaml.SequenceNode {
		diags.Add(diag.New(diag.KindSchemaError, "actions must be a sequence").WithRule(ruleName).WithSource(sourceFile, node.Line))
		return nil, &diags
	}

	var out []ruleset.Action
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			diags.Add(diag.New(diag.KindSchemaError, "action must be a single-key mapping").WithRule(ruleName).WithSource(sourceFile, item.Line))
			continue
		}
		key := item.Content[0].Value
		value := item.Content[1]

		switch key {
		case "set":
			if d := rejectUnknownKeys(value, []string{"key", "value_expression", "emit"}, sourceFile, value.Line, ruleName); d != nil {
				diags.Add(d)
				continue
			}
			out = append(out, &ruleset.SetAction{
				Key:             stringField(value, "key"),
				ValueExpression: stringField(value, "value_expression"),
				Emit:            emitMode(value),
			})
		case "log":
			if d := rejectUnknownKeys(value, []string{"message", "emit"}, sourceFile, value.Line, ruleName); d != nil {
				diags.Add(d)
				continue
			}
			out = append(out, &ruleset.LogAction{
				Message: stringField(value, "message"),
				Emit:    emitMode(value),
			})
		case "buffer":
			if d := rejectUnknownKeys(value, []string{"key", "value_expression", "max_items", "emit"}, sourceFile, value.Line, ruleName); d != nil {
				diags.Add(d)
				continue
			}
			maxItems := 0
			if mi := findValue(value, "max_items"); mi != nil {
				_ = mi.Decode(&maxItems)
			}
			out = append(out, &ruleset.BufferAction{
				Key:             stringField(value, "key"),
				ValueExpression: stringField(value, "value_expression"),
				MaxItems:        maxItems,
				Emit:            emitMode(value),
			})
		default:
			diags.Add(diag.New(diag.KindSchemaError, fmt.Sprintf("unknown action kind %q", key)).WithRule(ruleName).WithSource(sourceFile, item.Line))
		}
	}
	return out, &diags
}

func emitMode(node *yaml.Node) ruleset.EmitMode {
	v := stringField(node, "emit")
	if v == "" {
		return ruleset.EmitAlways
	}
	return ruleset.EmitMode(v)
}

func decodeDurationNode(node *yaml.Node) (int64, error) {
	var literal string
	if err := node.Decode(&literal); err != nil {
		return 0, fmt.Errorf("invalid duration: %w", err)
	}
	return ruleset.ParseDuration(literal)
}

func rejectUnknownKeys(node *yaml.Node, allowed []string, sourceFile string, line int, ruleName string) *diag.Diagnostic {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		allowedSet[a] = true
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !allowedSet[key] {
			d := diag.New(diag.KindSchemaError, fmt.Sprintf("unknown field %q", key)).WithSource(sourceFile, node.Content[i].Line)
			if ruleName != "" {
				d = d.WithRule(ruleName)
			}
			return d
		}
	}
	return nil
}

func findValue(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func stringField(mapping *yaml.Node, key string) string {
	v := findValue(mapping, key)
	if v == nil {
		return ""
	}
	var s string
	_ = v.Decode(&s)
	return s
}

func boolField(mapping *yaml.Node, key string) bool {
	v := findValue(mapping, key)
	if v == nil {
		return false
	}
	var b bool
	_ = v.Decode(&b)
	return b
}
