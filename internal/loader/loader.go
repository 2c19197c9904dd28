// Package loader implements the DSL Loader (spec §4.1): parsing rule YAML
// text into a RawDocument of untyped RawRule records, preserving line
// numbers and rejecting duplicate mapping keys.
package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/beaconhq/beacon/internal/diag"
)

// RawDocument is the untyped result of parsing a rule file: a version
// number and the raw mapping node for each rule it contains.
type RawDocument struct {
	SourceName string
	Version    int
	Rules      []RawRule
}

// RawRule is an untyped rule record: the rule's raw YAML mapping node,
// ready for the Schema Validator to decode and check, plus its source
// location for diagnostics.
type RawRule struct {
	Node       *yaml.Node
	SourceFile string
	Line       int
}

// Load parses yamlText into a RawDocument. Line numbers are preserved per
// rule; duplicate mapping keys at the root or within any rule are rejected.
func Load(yamlText []byte, sourceName string) (*RawDocument, *diag.Diagnostic) {
	var root yaml.Node
	if err := yaml.Unmarshal(yamlText, &root); err != nil {
		return nil, diag.New(diag.KindParseError, err.Error()).WithSource(sourceName, 0)
	}

	if len(root.Content) == 0 {
		return nil, diag.New(diag.KindParseError, "empty document").WithSource(sourceName, 0)
	}

	docRoot := root.Content[0]
	if docRoot.Kind != yaml.MappingNode {
		return nil, diag.New(diag.KindParseError, "top-level document must be a mapping").
			WithSource(sourceName, docRoot.Line)
	}

	if d := checkDuplicateKeys(docRoot, sourceName); d != nil {
		return nil, d
	}

	doc := &RawDocument{SourceName: sourceName}

	versionNode := findValue(docRoot, "version")
	if versionNode == nil {
		return nil, diag.New(diag.KindParseError, "missing required top-level key \"version\"").
			WithSource(sourceName, docRoot.Line)
	}
	var version int
	if err := versionNode.Decode(&version); err != nil {
		return nil, diag.New(diag.KindParseError, fmt.Sprintf("invalid \"version\": %v", err)).
			WithSource(sourceName, versionNode.Line)
	}
	doc.Version = version

	rulesNode := findValue(docRoot, "rules")
	if rulesNode == nil {
		return nil, diag.New(diag.KindParseError, "missing required top-level key \"rules\"").
			WithSource(sourceName, docRoot.Line)
	}
	if rulesNode.Kind != yaml.SequenceNode {
		return nil, diag.New(diag.KindParseError, "\"rules\" must be a sequence").
			WithSource(sourceName, rulesNode.Line)
	}

	for _, ruleNode := range rulesNode.Content {
		if ruleNode.Kind != yaml.MappingNode {
			return nil, diag.New(diag.KindParseError, "each rule must be a mapping").
				WithSource(sourceName, ruleNode.Line)
		}
		if d := checkDuplicateKeys(ruleNode, sourceName); d != nil {
			return nil, d
		}
		doc.Rules = append(doc.Rules, RawRule{
			Node:       ruleNode,
			SourceFile: sourceName,
			Line:       ruleNode.Line,
		})
	}

	return doc, nil
}

// checkDuplicateKeys rejects a mapping node that repeats a key, matching
// the loader's duplicate-key-at-any-level invariant.
func checkDuplicateKeys(mapping *yaml.Node, sourceName string) *diag.Diagnostic {
	seen := make(map[string]bool, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		if seen[key] {
			return diag.New(diag.KindParseError, fmt.Sprintf("duplicate key %q", key)).
				WithSource(sourceName, mapping.Content[i].Line)
		}
		seen[key] = true
	}
	return nil
}

// findValue returns the value node for key in a mapping node, or nil.
func findValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}
