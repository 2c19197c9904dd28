// Package exprlang compiles the restricted expression sub-language used by
// the DSL's `expression{text}` condition leaf and by `set`/`buffer` action
// value expressions (spec §4.5): arithmetic and boolean operators over
// sensor identifiers and literals, plus a fixed set of math functions.
package exprlang

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Expr is the root of a parsed expression: a chain of Or terms.
type Expr struct {
	Or []*AndExpr `@@ ( "||" @@ )*`
}

// AndExpr is a chain of Not terms joined by &&.
type AndExpr struct {
	And []*NotExpr `@@ ( "&&" @@ )*`
}

// NotExpr is an optionally-negated comparison.
type NotExpr struct {
	Negate     bool        `( @"!"`
	Comparison *Comparison `  @@ )`
}

// Comparison is an additive expression optionally compared against another.
type Comparison struct {
	Left  *Additive `@@`
	Op    *string   `( @( "==" | "!=" | ">=" | "<=" | ">" | "<" )`
	Right *Additive `  @@ )?`
}

// Additive is a chain of multiplicative terms joined by + or -.
type Additive struct {
	Left  *Multiplicative   `@@`
	Rest  []*AdditiveTerm   `@@*`
}

// AdditiveTerm is one (+|-) term in an additive chain.
type AdditiveTerm struct {
	Op    string          `@( "+" | "-" )`
	Right *Multiplicative `@@`
}

// Multiplicative is a chain of unary terms joined by *, /, or %.
type Multiplicative struct {
	Left *Unary                `@@`
	Rest []*MultiplicativeTerm `@@*`
}

// MultiplicativeTerm is one (*|/|%) term in a multiplicative chain.
type MultiplicativeTerm struct {
	Op    string `@( "*" | "/" | "%" )`
	Right *Unary `@@`
}

// Unary is an optionally-negated primary.
type Unary struct {
	Negate  bool     `( @"-"`
	Primary *Primary `  @@ )`
}

// Primary is a literal, an identifier, a function call, or a parenthesized
// expression.
type Primary struct {
	Number *float64 `(  @Float | @Int`
	Bool   *string  ` | @( "true" | "false" )`
	Call   *Call    ` | @@`
	Ident  *string  ` | @Ident`
	Sub    *Expr    ` | "(" @@ ")" )`
}

// Call is a call to one of the enumerated pure math functions.
type Call struct {
	Name string  `@Ident`
	Args []*Expr `"(" ( @@ ( "," @@ )* )? ")"`
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\n\r]+`},
	{Name: "Float", Pattern: `\d+\.\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Operator", Pattern: `==|!=|>=|<=|&&|\|\||[+\-*/%!><()\,]`},
})

// Parser parses expression text into an Expr tree.
var Parser = participle.MustBuild[Expr](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse compiles expression text into an AST, suitable for lowering to the
// IR's postfix form.
func Parse(text string) (*Expr, error) {
	return Parser.ParseString("", text)
}
