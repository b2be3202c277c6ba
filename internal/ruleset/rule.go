// ABOUTME: Rule as a tagged union over the 9 rule types with per-type case parameters.
// ABOUTME: Construction validates the case against the meta-schema; evaluation lives in evaluate.go.
package ruleset

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// RuleType names one of the recognized rule variants.
type RuleType string

// The recognized rule types. A definition naming anything else fails
// construction with ErrUnknownRuleType.
const (
	TypeNoMoreThanOne  RuleType = "no_more_than_one"
	TypeAtLeastOne     RuleType = "atleast_one"
	TypeDependent      RuleType = "dependent"
	TypeSum            RuleType = "sum"
	TypeDateOrder      RuleType = "date_order"
	TypeRegexMatches   RuleType = "regex_matches"
	TypeRegexNoMatches RuleType = "regex_no_matches"
	TypeStartsWith     RuleType = "startswith"
	TypeUnique         RuleType = "unique"
)

// Types lists the recognized rule types in a stable order.
var Types = []RuleType{
	TypeNoMoreThanOne,
	TypeAtLeastOne,
	TypeDependent,
	TypeSum,
	TypeDateOrder,
	TypeRegexMatches,
	TypeRegexNoMatches,
	TypeStartsWith,
	TypeUnique,
}

// knownType reports whether t is one of the recognized rule types.
func knownType(t RuleType) bool {
	for _, k := range Types {
		if t == k {
			return true
		}
	}
	return false
}

// Rule is a single declarative constraint rooted at an XPath base. It is a
// tagged union: Type selects which of the case parameters are meaningful and
// which predicate IsValidFor applies. Immutable after construction.
type Rule struct {
	Type      RuleType
	XPathBase string

	// caseRaw is the decoded case mapping exactly as it appeared in the
	// definition; it drives equality and diagnostics.
	caseRaw map[string]any

	// Parsed case parameters. Only the fields relevant to Type are set.
	paths     []string
	regex     *regexp.Regexp // compiled with full-match anchoring
	sum       float64
	less      string
	more      string
	start     string
	condition string
}

// NewRule validates case_ against the meta-schema subsection for t, then
// constructs the Rule. Fails with ErrUnknownRuleType for an unrecognized
// type, or with a *CaseError when the case does not conform.
func NewRule(t RuleType, xpathBase string, case_ map[string]any, meta *Meta) (*Rule, error) {
	if !knownType(t) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, t)
	}
	if err := meta.ValidateCase(t, case_); err != nil {
		var ce *CaseError
		if errors.As(err, &ce) {
			ce.XPathBase = xpathBase
		}
		return nil, err
	}

	r := &Rule{Type: t, XPathBase: xpathBase, caseRaw: case_}
	if err := r.parseCase(); err != nil {
		return nil, &CaseError{Type: t, XPathBase: xpathBase, Case: case_, Reason: err.Error()}
	}
	return r, nil
}

// parseCase lifts the schema-valid case mapping into typed fields.
func (r *Rule) parseCase() error {
	if cond, ok := r.caseRaw["condition"].(string); ok {
		r.condition = cond
	}

	if raw, ok := r.caseRaw["paths"].([]any); ok {
		r.paths = make([]string, 0, len(raw))
		for _, p := range raw {
			s, ok := p.(string)
			if !ok {
				return fmt.Errorf("paths entry %v is not a string", p)
			}
			r.paths = append(r.paths, s)
		}
	}

	switch r.Type {
	case TypeSum:
		n, ok := r.caseRaw["sum"].(float64)
		if !ok {
			return fmt.Errorf("sum target %v is not a number", r.caseRaw["sum"])
		}
		r.sum = n

	case TypeDateOrder:
		r.less, _ = r.caseRaw["less"].(string)
		r.more, _ = r.caseRaw["more"].(string)

	case TypeRegexMatches, TypeRegexNoMatches:
		pat, _ := r.caseRaw["regex"].(string)
		// Rules use full-match semantics: the whole text must match, not a
		// substring of it.
		re, err := regexp.Compile(`\A(?:` + pat + `)\z`)
		if err != nil {
			return fmt.Errorf("regex %q: %v", pat, err)
		}
		r.regex = re

	case TypeStartsWith:
		r.start, _ = r.caseRaw["start"].(string)
	}

	return nil
}

// Case returns a copy of the raw case mapping.
func (r *Rule) Case() map[string]any {
	out := make(map[string]any, len(r.caseRaw))
	for k, v := range r.caseRaw {
		out[k] = v
	}
	return out
}

// Paths returns the rule's relative paths, if its type declares any.
func (r *Rule) Paths() []string { return r.paths }

// ResolvePath joins the rule's XPath base and a relative path with a single
// separator. No escaping or normalization is performed; callers supply
// XPath-safe fragments.
func (r *Rule) ResolvePath(rel string) string {
	return r.XPathBase + "/" + rel
}

// key returns the canonical identity of the rule: two rules with the same
// type, xpath_base, and case content collapse to one entry in a Ruleset.
// Map marshalling sorts keys, so the encoding is canonical for equal cases.
func (r *Rule) key() string {
	caseJSON, err := json.Marshal(r.caseRaw)
	if err != nil {
		// caseRaw came from a JSON document; re-encoding cannot fail.
		panic(fmt.Sprintf("ruleset: marshal case: %v", err))
	}
	return string(r.Type) + "\x00" + r.XPathBase + "\x00" + string(caseJSON)
}

// Equal reports whether two rules have the same type, xpath_base, and case.
func (r *Rule) Equal(other *Rule) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.key() == other.key()
}
