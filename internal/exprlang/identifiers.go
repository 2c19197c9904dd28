package exprlang

// mathFunctions enumerates the pure functions expressions may call
// (spec §4.5). Any other call name is an ExpressionError at compile time.
var mathFunctions = map[string]bool{
	"abs": true, "min": true, "max": true, "sqrt": true,
	"pow": true, "floor": true, "ceil": true, "round": true,
}

// IsMathFunction reports whether name is one of the enumerated math
// functions allowed in a call position.
func IsMathFunction(name string) bool {
	return mathFunctions[name]
}

// Identifiers walks the expression tree and returns every identifier
// reference, excluding call names and the true/false literals. This is the
// cheap tokenizer the Dependency Analyzer uses to extract sensor
// references from expression leaves (spec §4.4 step 2) without building a
// full evaluator.
func Identifiers(e *Expr) []string {
	var out []string
	walkExpr(e, &out)
	return out
}

func walkExpr(e *Expr, out *[]string) {
	if e == nil {
		return
	}
	for _, a := range e.Or {
		walkAnd(a, out)
	}
}

func walkAnd(a *AndExpr, out *[]string) {
	if a == nil {
		return
	}
	for _, n := range a.And {
		walkNot(n, out)
	}
}

func walkNot(n *NotExpr, out *[]string) {
	if n == nil {
		return
	}
	walkComparison(n.Comparison, out)
}

func walkComparison(c *Comparison, out *[]string) {
	if c == nil {
		return
	}
	walkAdditive(c.Left, out)
	if c.Right != nil {
		walkAdditive(c.Right, out)
	}
}

func walkAdditive(a *Additive, out *[]string) {
	if a == nil {
		return
	}
	walkMultiplicative(a.Left, out)
	for _, t := range a.Rest {
		walkMultiplicative(t.Right, out)
	}
}

func walkMultiplicative(m *Multiplicative, out *[]string) {
	if m == nil {
		return
	}
	walkUnary(m.Left, out)
	for _, t := range m.Rest {
		walkUnary(t.Right, out)
	}
}

func walkUnary(u *Unary, out *[]string) {
	if u == nil {
		return
	}
	walkPrimary(u.Primary, out)
}

func walkPrimary(p *Primary, out *[]string) {
	if p == nil {
		return
	}
	switch {
	case p.Call != nil:
		for _, arg := range p.Call.Args {
			walkExpr(arg, out)
		}
	case p.Ident != nil:
		*out = append(*out, *p.Ident)
	case p.Sub != nil:
		walkExpr(p.Sub, out)
	}
}
