// Package ir implements the IR Builder (spec §4.5): it lowers a resolved,
// layered rule set into a flat Program that the runtime evaluator executes
// directly, with expressions pre-compiled and sensor identifiers resolved
// to stable numeric handles.
package ir

import (
	"fmt"
	"sort"

	"github.com/beaconhq/beacon/internal/depgraph"
	"github.com/beaconhq/beacon/internal/diag"
	"github.com/beaconhq/beacon/internal/exprlang"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// CompiledExpression pairs an expression's source text with its parsed
// evaluator tree, so the runtime never re-parses per cycle.
type CompiledExpression struct {
	Text string
	AST  *exprlang.Expr
}

// Condition mirrors ruleset.Condition but with every expression leaf
// pre-compiled.
type Condition interface {
	conditionNode()
}

type ComparisonIR struct {
	Sensor string
	Op     ruleset.CompareOp
	Value  interface{}
}

func (*ComparisonIR) conditionNode() {}

type ExpressionIR struct {
	Compiled CompiledExpression
}

func (*ExpressionIR) conditionNode() {}

type ThresholdOverTimeIR struct {
	Sensor    string
	Op        ruleset.CompareOp
	Threshold float64
	Duration  int64
}

func (*ThresholdOverTimeIR) conditionNode() {}

type AllIR struct{ Children []Condition }

func (*AllIR) conditionNode() {}

type AnyIR struct{ Children []Condition }

func (*AnyIR) conditionNode() {}

type NotIR struct{ Child Condition }

func (*NotIR) conditionNode() {}

// ActionIR mirrors ruleset.Action with a pre-compiled value expression
// where applicable.
type ActionIR struct {
	Kind            string // set|log|buffer
	Key             string
	Message         string
	ValueExpression *CompiledExpression
	MaxItems        int
	Emit            ruleset.EmitMode
}

// RuleIR is one rule lowered into the IR.
type RuleIR struct {
	Name        string
	Description string
	SourceFile  string
	Line        int
	Layer       int
	Inputs      []ruleset.InputDescriptor
	Condition   Condition
	Actions     []ActionIR
	Else        []ActionIR
}

// Program is the IR Builder's output: every rule, lowered and ordered by
// layer, plus the symbol table mapping sensor identifiers and rule names
// to stable handles and the temporal dependencies the Ring Buffer Manager
// needs.
type Program struct {
	Rules                []RuleIR
	SymbolTable          map[string]int
	TemporalDependencies []depgraph.TemporalDependency
}

// Lower compiles analysis into a Program.
func Lower(analysis *depgraph.Analysis) (*Program, *diag.Diagnostics) {
	var diags diag.Diagnostics

	symbols := make(map[string]bool)
	rules := make([]RuleIR, 0, len(analysis.LayeredRules))

	for _, lr := range analysis.LayeredRules {
		rule := lr.Rule
		symbols[rule.Name] = true

		cond, err := lowerCondition(rule.Condition, &symbols)
		if err != nil {
			diags.Add(diag.New(diag.KindExpressionError, err.Error()).WithRule(rule.Name))
			continue
		}

		actions, err := lowerActions(rule.Actions, &symbols)
		if err != nil {
			diags.Add(diag.New(diag.KindExpressionError, err.Error()).WithRule(rule.Name))
			continue
		}
		elseActions, err := lowerActions(rule.Else, &symbols)
		if err != nil {
			diags.Add(diag.New(diag.KindExpressionError, err.Error()).WithRule(rule.Name))
			continue
		}

		for _, in := range rule.Inputs {
			symbols[in.ID] = true
		}

		rules = append(rules, RuleIR{
			Name:        rule.Name,
			Description: rule.Description,
			SourceFile:  rule.SourceFile,
			Line:        rule.Line,
			Layer:       lr.Layer,
			Inputs:      rule.Inputs,
			Condition:   cond,
			Actions:     actions,
			Else:        elseActions,
		})
	}

	names := make([]string, 0, len(symbols))
	for name := range symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	table := make(map[string]int, len(names))
	for i, name := range names {
		table[name] = i
	}

	if diags.HasErrors() {
		return nil, &diags
	}

	return &Program{
		Rules:                rules,
		SymbolTable:          table,
		TemporalDependencies: analysis.TemporalDependencies,
	}, &diags
}

func lowerCondition(c ruleset.Condition, symbols *map[string]bool) (Condition, error) {
	switch node := c.(type) {
	case nil:
		return nil, nil
	case *ruleset.Comparison:
		(*symbols)[node.Sensor] = true
		return &ComparisonIR{Sensor: node.Sensor, Op: node.Op, Value: node.Value}, nil
	case *ruleset.Expression:
		compiled, err := compileExpression(node.Text, symbols)
		if err != nil {
			return nil, err
		}
		return &ExpressionIR{Compiled: *compiled}, nil
	case *ruleset.ThresholdOverTime:
		(*symbols)[node.Sensor] = true
		return &ThresholdOverTimeIR{Sensor: node.Sensor, Op: node.Op, Threshold: node.Threshold, Duration: node.Duration}, nil
	case *ruleset.All:
		children, err := lowerConditions(node.Children, symbols)
		if err != nil {
			return nil, err
		}
		return &AllIR{Children: children}, nil
	case *ruleset.Any:
		children, err := lowerConditions(node.Children, symbols)
		if err != nil {
			return nil, err
		}
		return &AnyIR{Children: children}, nil
	case *ruleset.Not:
		child, err := lowerCondition(node.Child, symbols)
		if err != nil {
			return nil, err
		}
		return &NotIR{Child: child}, nil
	}
	return nil, fmt.Errorf("unhandled condition node %T", c)
}

func lowerConditions(cs []ruleset.Condition, symbols *map[string]bool) ([]Condition, error) {
	out := make([]Condition, 0, len(cs))
	for _, c := range cs {
		lowered, err := lowerCondition(c, symbols)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered)
	}
	return out, nil
}

func lowerActions(actions []ruleset.Action, symbols *map[string]bool) ([]ActionIR, error) {
	out := make([]ActionIR, 0, len(actions))
	for _, action := range actions {
		switch a := action.(type) {
		case *ruleset.SetAction:
			(*symbols)[a.Key] = true
			compiled, err := compileExpression(a.ValueExpression, symbols)
			if err != nil {
				return nil, err
			}
			out = append(out, ActionIR{Kind: "set", Key: a.Key, ValueExpression: compiled, Emit: a.Emit})
		case *ruleset.LogAction:
			out = append(out, ActionIR{Kind: "log", Message: a.Message, Emit: a.Emit})
		case *ruleset.BufferAction:
			(*symbols)[a.Key] = true
			compiled, err := compileExpression(a.ValueExpression, symbols)
			if err != nil {
				return nil, err
			}
			out = append(out, ActionIR{Kind: "buffer", Key: a.Key, ValueExpression: compiled, MaxItems: a.MaxItems, Emit: a.Emit})
		default:
			return nil, fmt.Errorf("unhandled action type %T", action)
		}
	}
	return out, nil
}

func compileExpression(text string, symbols *map[string]bool) (*CompiledExpression, error) {
	ast, err := exprlang.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", text, err)
	}
	for _, id := range exprlang.Identifiers(ast) {
		(*symbols)[id] = true
	}
	return &CompiledExpression{Text: text, AST: ast}, nil
}
