// ABOUTME: Meta-schema handling: compiles the ruleset schema and the per-type case schemas.
// ABOUTME: Required fields per type are computed once (all declared properties except "condition").
package ruleset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	_ "embed"
)

//go:embed metaschema.json
var metaSchemaJSON []byte

// Meta holds a compiled ruleset meta-schema: the whole-document schema plus
// one case schema per rule type with its required list already computed.
// Construct via ParseMeta, or use DefaultMeta for the schema shipped with
// this package. Safe for concurrent use once constructed.
type Meta struct {
	whole    *jsonschema.Schema
	byType   map[RuleType]*jsonschema.Schema
	required map[RuleType][]string
}

// ParseMeta compiles a ruleset meta-schema document. The document must be a
// draft-4 JSON Schema with a "definitions" section holding one case schema
// per rule type. Every property found there other than "condition" is added
// to that type's required list, per-type, once, at parse time.
func ParseMeta(doc []byte) (*Meta, error) {
	var raw map[string]any
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("meta-schema: %w", err)
	}

	whole, err := compileSchema("ruleset_schema.json", doc)
	if err != nil {
		return nil, fmt.Errorf("meta-schema: %w", err)
	}

	defs, _ := raw["definitions"].(map[string]any)

	m := &Meta{
		whole:    whole,
		byType:   make(map[RuleType]*jsonschema.Schema),
		required: make(map[RuleType][]string),
	}

	for name, def := range defs {
		sub, ok := def.(map[string]any)
		if !ok {
			continue
		}
		caseDoc, required := withComputedRequired(sub)
		b, err := json.Marshal(caseDoc)
		if err != nil {
			return nil, fmt.Errorf("meta-schema: case schema for %q: %w", name, err)
		}
		compiled, err := compileSchema("case_"+name+".json", b)
		if err != nil {
			return nil, fmt.Errorf("meta-schema: case schema for %q: %w", name, err)
		}
		m.byType[RuleType(name)] = compiled
		m.required[RuleType(name)] = required
	}

	return m, nil
}

// withComputedRequired returns a copy of a case schema with its required list
// set to every declared property except "condition", plus that list.
func withComputedRequired(sub map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(sub)+1)
	for k, v := range sub {
		out[k] = v
	}

	var required []string
	if props, ok := sub["properties"].(map[string]any); ok {
		for prop := range props {
			if prop != "condition" {
				required = append(required, prop)
			}
		}
	}
	sort.Strings(required)
	out["required"] = required
	return out, required
}

func compileSchema(url string, doc []byte) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft4
	c.AssertFormat = true
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// ValidateDefinition checks a decoded ruleset definition against the whole
// meta-schema. The schema library's error is wrapped in ErrSchemaInvalid.
func (m *Meta) ValidateDefinition(def any) error {
	if err := m.whole.Validate(def); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return nil
}

// ValidateCase checks a case against the subsection for the given rule type,
// with the computed required list in force. An unregistered type is a
// *ConfigError — a programming error, not a data problem.
func (m *Meta) ValidateCase(t RuleType, c map[string]any) error {
	sch, ok := m.byType[t]
	if !ok {
		return &ConfigError{Type: t}
	}
	if err := sch.Validate(anyCase(c)); err != nil {
		return &CaseError{Type: t, Case: c, Reason: err.Error()}
	}
	return nil
}

// Required returns the computed required property list for a rule type.
func (m *Meta) Required(t RuleType) []string { return m.required[t] }

// anyCase widens a case map so the schema library sees plain decoded-JSON
// value types.
func anyCase(c map[string]any) any { return map[string]any(c) }

var (
	defaultMetaOnce sync.Once
	defaultMeta     *Meta
	defaultMetaErr  error
)

// DefaultMeta returns the meta-schema embedded in this package, compiled once
// per process. The embedded schema is part of the build; a compile failure is
// a programming error and panics.
func DefaultMeta() *Meta {
	defaultMetaOnce.Do(func() {
		defaultMeta, defaultMetaErr = ParseMeta(metaSchemaJSON)
	})
	if defaultMetaErr != nil {
		panic(defaultMetaErr)
	}
	return defaultMeta
}

// MetaSchemaJSON returns the raw embedded meta-schema document.
func MetaSchemaJSON() []byte {
	out := make([]byte, len(metaSchemaJSON))
	copy(out, metaSchemaJSON)
	return out
}
