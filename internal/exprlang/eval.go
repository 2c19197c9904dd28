package exprlang

import (
	"fmt"
	"math"
)

// errIndeterminate is a sentinel error value: the expression could not be
// evaluated to a definite result this cycle (division by zero, or an
// identifier with no resolved value), without that being a compile-time
// fault.
var errIndeterminate = fmt.Errorf("expression result is indeterminate")

// IsIndeterminate reports whether err is the sentinel produced when an
// expression legitimately has no definite result (e.g. division by zero).
func IsIndeterminate(err error) bool {
	return err == errIndeterminate
}

// Lookup resolves an identifier to its current value. A missing entry
// (ok=false) propagates as an indeterminate result, matching the
// comparison leaf's "Indeterminate if either operand is unavailable"
// behavior (spec §4.7).
type Lookup func(name string) (value interface{}, ok bool)

// Eval evaluates a parsed expression against a value lookup, returning a
// float64, bool, or the indeterminate sentinel error.
func Eval(e *Expr, lookup Lookup) (interface{}, error) {
	return evalExpr(e, lookup)
}

func evalExpr(e *Expr, lookup Lookup) (interface{}, error) {
	var result interface{}
	for i, and := range e.Or {
		v, err := evalAnd(and, lookup)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = v
			continue
		}
		lb, rb, err := bothBool(result, v)
		if err != nil {
			return nil, err
		}
		result = lb || rb
	}
	return result, nil
}

func evalAnd(a *AndExpr, lookup Lookup) (interface{}, error) {
	var result interface{}
	for i, not := range a.And {
		v, err := evalNot(not, lookup)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = v
			continue
		}
		lb, rb, err := bothBool(result, v)
		if err != nil {
			return nil, err
		}
		result = lb && rb
	}
	return result, nil
}

func evalNot(n *NotExpr, lookup Lookup) (interface{}, error) {
	v, err := evalComparison(n.Comparison, lookup)
	if err != nil {
		return nil, err
	}
	if !n.Negate {
		return v, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("cannot negate non-boolean value %v", v)
	}
	return !b, nil
}

func evalComparison(c *Comparison, lookup Lookup) (interface{}, error) {
	left, err := evalAdditive(c.Left, lookup)
	if err != nil {
		return nil, err
	}
	if c.Op == nil {
		return left, nil
	}
	right, err := evalAdditive(c.Right, lookup)
	if err != nil {
		return nil, err
	}
	lf, lok := left.(float64)
	rf, rok := right.(float64)
	if !lok || !rok {
		return nil, errIndeterminate
	}
	switch *c.Op {
	case "==":
		return lf == rf, nil
	case "!=":
		return lf != rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	}
	return nil, fmt.Errorf("unknown comparison operator %q", *c.Op)
}

func evalAdditive(a *Additive, lookup Lookup) (interface{}, error) {
	acc, err := evalMultiplicative(a.Left, lookup)
	if err != nil {
		return nil, err
	}
	accF, ok := acc.(float64)
	if !ok && len(a.Rest) > 0 {
		return nil, fmt.Errorf("cannot apply arithmetic to non-numeric value %v", acc)
	}
	for _, term := range a.Rest {
		v, err := evalMultiplicative(term.Right, lookup)
		if err != nil {
			return nil, err
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("cannot apply arithmetic to non-numeric value %v", v)
		}
		if term.Op == "+" {
			accF += f
		} else {
			accF -= f
		}
	}
	if len(a.Rest) == 0 {
		return acc, nil
	}
	return accF, nil
}

func evalMultiplicative(m *Multiplicative, lookup Lookup) (interface{}, error) {
	acc, err := evalUnary(m.Left, lookup)
	if err != nil {
		return nil, err
	}
	accF, ok := acc.(float64)
	if !ok && len(m.Rest) > 0 {
		return nil, fmt.Errorf("cannot apply arithmetic to non-numeric value %v", acc)
	}
	for _, term := range m.Rest {
		v, err := evalUnary(term.Right, lookup)
		if err != nil {
			return nil, err
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("cannot apply arithmetic to non-numeric value %v", v)
		}
		switch term.Op {
		case "*":
			accF *= f
		case "/":
			if f == 0 {
				return nil, errIndeterminate
			}
			accF /= f
		case "%":
			if f == 0 {
				return nil, errIndeterminate
			}
			accF = math.Mod(accF, f)
		}
	}
	if len(m.Rest) == 0 {
		return acc, nil
	}
	return accF, nil
}

func evalUnary(u *Unary, lookup Lookup) (interface{}, error) {
	v, err := evalPrimary(u.Primary, lookup)
	if err != nil {
		return nil, err
	}
	if !u.Negate {
		return v, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("cannot negate non-numeric value %v", v)
	}
	return -f, nil
}

func evalPrimary(p *Primary, lookup Lookup) (interface{}, error) {
	switch {
	case p.Number != nil:
		return *p.Number, nil
	case p.Bool != nil:
		return *p.Bool == "true", nil
	case p.Call != nil:
		return evalCall(p.Call, lookup)
	case p.Ident != nil:
		v, ok := lookup(*p.Ident)
		if !ok {
			return nil, errIndeterminate
		}
		if f, ok := toFloat(v); ok {
			return f, nil
		}
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("identifier %q has non-numeric, non-boolean value %v", *p.Ident, v)
	case p.Sub != nil:
		return evalExpr(p.Sub, lookup)
	}
	return nil, fmt.Errorf("empty expression primary")
}

func evalCall(c *Call, lookup Lookup) (interface{}, error) {
	if !IsMathFunction(c.Name) {
		return nil, fmt.Errorf("disallowed function %q", c.Name)
	}
	args := make([]float64, 0, len(c.Args))
	for _, a := range c.Args {
		v, err := evalExpr(a, lookup)
		if err != nil {
			return nil, err
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("function %q requires numeric arguments", c.Name)
		}
		args = append(args, f)
	}

	switch c.Name {
	case "abs":
		if len(args) != 1 {
			return nil, fmt.Errorf("abs takes exactly 1 argument")
		}
		return math.Abs(args[0]), nil
	case "sqrt":
		if len(args) != 1 {
			return nil, fmt.Errorf("sqrt takes exactly 1 argument")
		}
		return math.Sqrt(args[0]), nil
	case "floor":
		if len(args) != 1 {
			return nil, fmt.Errorf("floor takes exactly 1 argument")
		}
		return math.Floor(args[0]), nil
	case "ceil":
		if len(args) != 1 {
			return nil, fmt.Errorf("ceil takes exactly 1 argument")
		}
		return math.Ceil(args[0]), nil
	case "round":
		if len(args) != 1 {
			return nil, fmt.Errorf("round takes exactly 1 argument")
		}
		return math.Round(args[0]), nil
	case "pow":
		if len(args) != 2 {
			return nil, fmt.Errorf("pow takes exactly 2 arguments")
		}
		return math.Pow(args[0], args[1]), nil
	case "min":
		if len(args) == 0 {
			return nil, fmt.Errorf("min requires at least 1 argument")
		}
		m := args[0]
		for _, v := range args[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	case "max":
		if len(args) == 0 {
			return nil, fmt.Errorf("max requires at least 1 argument")
		}
		m := args[0]
		for _, v := range args[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}
	return nil, fmt.Errorf("unhandled function %q", c.Name)
}

func bothBool(l, r interface{}) (bool, bool, error) {
	lb, lok := l.(bool)
	rb, rok := r.(bool)
	if !lok || !rok {
		return false, false, fmt.Errorf("boolean operator applied to non-boolean operand")
	}
	return lb, rb, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
