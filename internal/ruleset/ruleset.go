// ABOUTME: Ruleset construction: strict JSON parse, meta-schema validation, decomposition into Rules.
// ABOUTME: Construction is all-or-nothing; a bad entry anywhere fails the whole Ruleset.
package ruleset

import (
	"fmt"
	"sort"

	"github.com/antchfx/xmlquery"
)

// Ruleset is a collection of Rules loaded from a JSON definition. Rules have
// set semantics: identical (type, xpath_base, case) triples collapse to one
// entry. Immutable after construction; safe for concurrent evaluation.
type Ruleset struct {
	definition map[string]any
	rules      []*Rule
	byKey      map[string]*Rule
}

// New constructs a Ruleset from a raw JSON definition, validated against
// meta. The definition must be well-formed JSON with no duplicate object
// keys, conform to the meta-schema, and name only recognized rule types.
// Any failure aborts construction entirely; there is no partial Ruleset.
func New(definition string, meta *Meta) (*Ruleset, error) {
	decoded, err := decodeStrict([]byte(definition))
	if err != nil {
		return nil, err
	}
	top, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top level is not a JSON object", ErrSchemaInvalid)
	}

	if err := meta.ValidateDefinition(decoded); err != nil {
		return nil, err
	}

	rs := &Ruleset{
		definition: top,
		byKey:      make(map[string]*Rule),
	}

	// Decomposition: xpath_base → rule_type → cases[]. Iteration order over
	// the maps is irrelevant because construction either fully succeeds or
	// fails, and the rule set is order-independent.
	for xpathBase, entry := range top {
		perType, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry for %q is not an object", ErrSchemaInvalid, xpathBase)
		}
		for typeName, block := range perType {
			t := RuleType(typeName)
			if !knownType(t) {
				return nil, fmt.Errorf("%w: %q (xpath_base %q)", ErrUnknownRuleType, typeName, xpathBase)
			}
			cases, err := casesOf(block)
			if err != nil {
				return nil, fmt.Errorf("%w: %q under %q: %v", ErrSchemaInvalid, typeName, xpathBase, err)
			}
			for _, c := range cases {
				r, err := NewRule(t, xpathBase, c, meta)
				if err != nil {
					return nil, err
				}
				rs.add(r)
			}
		}
	}

	return rs, nil
}

// casesOf extracts the case mappings from a rule-type block.
func casesOf(block any) ([]map[string]any, error) {
	m, ok := block.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("block is not an object")
	}
	list, ok := m["cases"].([]any)
	if !ok {
		return nil, fmt.Errorf("missing cases list")
	}
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		cm, ok := c.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("case %v is not an object", c)
		}
		out = append(out, cm)
	}
	return out, nil
}

// add inserts r unless an equal rule is already present.
func (rs *Ruleset) add(r *Rule) {
	k := r.key()
	if _, exists := rs.byKey[k]; exists {
		return
	}
	rs.byKey[k] = r
	rs.rules = append(rs.rules, r)
}

// Rules returns the deduplicated rules in a stable order.
func (rs *Ruleset) Rules() []*Rule {
	out := make([]*Rule, len(rs.rules))
	copy(out, rs.rules)
	sort.Slice(out, func(i, j int) bool { return out[i].key() < out[j].key() })
	return out
}

// Len returns the number of distinct rules.
func (rs *Ruleset) Len() int { return len(rs.rules) }

// Definition returns the decoded ruleset definition.
func (rs *Ruleset) Definition() map[string]any { return rs.definition }

// FailingRules evaluates every rule against doc and returns those whose
// predicate does not hold. Evaluation is read-only and never errors for a
// constructed Ruleset.
func (rs *Ruleset) FailingRules(doc *xmlquery.Node) []*Rule {
	var failing []*Rule
	for _, r := range rs.Rules() {
		if !r.IsValidFor(doc) {
			failing = append(failing, r)
		}
	}
	return failing
}
