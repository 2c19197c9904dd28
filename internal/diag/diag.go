// Package diag implements the diagnostics taxonomy (spec §4.9, §7): the
// typed errors every compiler phase and the runtime evaluator use to report
// problems with rule-scoped context, and the Diagnostics aggregate phase
// boundaries use to accumulate them before failing once.
package diag

import "fmt"

// Kind identifies the category of a diagnostic, matching the error taxonomy
// enumerated in spec §7.
type Kind string

const (
	KindParseError          Kind = "ParseError"
	KindSchemaError         Kind = "SchemaError"
	KindCatalogError        Kind = "CatalogError"
	KindCycleDetected       Kind = "CycleDetected"
	KindDepthExceeded       Kind = "DepthExceeded"
	KindExpressionError     Kind = "ExpressionError"
	KindIOError             Kind = "IOError"
	KindRuntimeIndeterminate Kind = "RuntimeIndeterminate"
)

// fatalKinds lists the kinds that abort compilation. Every other kind
// (DepthExceeded, IOError, RuntimeIndeterminate) is always a warning; no
// validation level, strict included, makes DepthExceeded fatal.
var fatalKinds = map[Kind]bool{
	KindParseError:      true,
	KindSchemaError:     true,
	KindCatalogError:    true,
	KindCycleDetected:   true,
	KindExpressionError: true,
}

// Diagnostic is a single structured error or warning.
type Diagnostic struct {
	Kind       Kind
	Message    string
	RuleName   string
	SourceFile string
	Line       int
	Context    map[string]interface{}
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	loc := d.SourceFile
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, d.Line)
	}
	switch {
	case loc != "" && d.RuleName != "":
		return fmt.Sprintf("%s: rule %q: %s (%s)", d.Kind, d.RuleName, d.Message, loc)
	case d.RuleName != "":
		return fmt.Sprintf("%s: rule %q: %s", d.Kind, d.RuleName, d.Message)
	case loc != "":
		return fmt.Sprintf("%s: %s (%s)", d.Kind, d.Message, loc)
	default:
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
}

// IsWarning reports whether this diagnostic is a warning rather than a
// compilation-halting error.
func (d *Diagnostic) IsWarning() bool {
	return !fatalKinds[d.Kind]
}

// New constructs a Diagnostic with optional context key/values (must be
// passed in key, value pairs).
func New(kind Kind, message string, kv ...interface{}) *Diagnostic {
	d := &Diagnostic{Kind: kind, Message: message}
	if len(kv) > 0 {
		d.Context = make(map[string]interface{}, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				continue
			}
			d.Context[key] = kv[i+1]
		}
	}
	return d
}

// WithRule annotates the diagnostic with the rule it concerns.
func (d *Diagnostic) WithRule(name string) *Diagnostic {
	d.RuleName = name
	return d
}

// WithSource annotates the diagnostic with its originating file and line.
func (d *Diagnostic) WithSource(file string, line int) *Diagnostic {
	d.SourceFile = file
	d.Line = line
	return d
}

// Diagnostics aggregates diagnostics collected across a compiler phase,
// following the "accumulate all, fail once at the phase boundary" policy.
type Diagnostics struct {
	items []*Diagnostic
}

// Add appends a diagnostic to the aggregate.
func (d *Diagnostics) Add(diag *Diagnostic) {
	d.items = append(d.items, diag)
}

// All returns every collected diagnostic, errors and warnings alike.
func (d *Diagnostics) All() []*Diagnostic {
	return d.items
}

// Errors returns the fatal diagnostics.
func (d *Diagnostics) Errors() []*Diagnostic {
	var out []*Diagnostic
	for _, item := range d.items {
		if !item.IsWarning() {
			out = append(out, item)
		}
	}
	return out
}

// Warnings returns the non-fatal diagnostics.
func (d *Diagnostics) Warnings() []*Diagnostic {
	var out []*Diagnostic
	for _, item := range d.items {
		if item.IsWarning() {
			out = append(out, item)
		}
	}
	return out
}

// HasErrors reports whether any fatal diagnostic was collected.
func (d *Diagnostics) HasErrors() bool {
	return len(d.Errors()) > 0
}

// Merge appends another Diagnostics' items into this one.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	d.items = append(d.items, other.items...)
}
