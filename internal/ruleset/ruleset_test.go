// ABOUTME: Tests for Ruleset construction: parsing, meta-schema validation, decomposition, dedup.
// ABOUTME: Pure logic tests — no database required.
package ruleset_test

import (
	"errors"
	"testing"

	"github.com/openaid-dev/aidcheck/internal/ruleset"
)

func mustRuleset(t *testing.T, def string) *ruleset.Ruleset {
	t.Helper()
	rs, err := ruleset.New(def, ruleset.DefaultMeta())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return rs
}

func TestNew_Valid(t *testing.T) {
	t.Parallel()
	rs := mustRuleset(t, `{
		"//iati-activity": {
			"atleast_one": {"cases": [{"paths": ["sector", "transaction/sector"]}]},
			"sum": {"cases": [{"paths": ["recipient-country/@percentage", "recipient-region/@percentage"], "sum": 100}]}
		}
	}`)
	if rs.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rs.Len())
	}
	for _, r := range rs.Rules() {
		if r.XPathBase != "//iati-activity" {
			t.Errorf("XPathBase = %q, want //iati-activity", r.XPathBase)
		}
	}
}

func TestNew_DeduplicatesIdenticalCases(t *testing.T) {
	t.Parallel()
	// The same logical constraint under two different rule-type sections of
	// the same base would be two rules; byte-for-byte identical cases within
	// one list collapse to one.
	rs := mustRuleset(t, `{
		"//iati-activity": {
			"atleast_one": {"cases": [
				{"paths": ["sector"]},
				{"paths": ["sector"]}
			]}
		}
	}`)
	if rs.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (identical cases collapse)", rs.Len())
	}
}

func TestNew_DistinctCasesKept(t *testing.T) {
	t.Parallel()
	rs := mustRuleset(t, `{
		"//iati-activity": {
			"atleast_one": {"cases": [
				{"paths": ["sector"]},
				{"paths": ["transaction/sector"]}
			]}
		}
	}`)
	if rs.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (cases differing in any field are distinct)", rs.Len())
	}
}

func TestNew_DuplicateJSONKey(t *testing.T) {
	t.Parallel()
	// Schema-valid apart from the repeated key; must still be rejected.
	def := `{
		"//iati-activity": {
			"atleast_one": {"cases": [{"paths": ["sector"]}]},
			"atleast_one": {"cases": [{"paths": ["transaction/sector"]}]}
		}
	}`
	if _, err := ruleset.New(def, ruleset.DefaultMeta()); !errors.Is(err, ruleset.ErrDuplicateKey) {
		t.Errorf("New = %v, want ErrDuplicateKey", err)
	}
}

func TestNew_MalformedJSON(t *testing.T) {
	t.Parallel()
	if _, err := ruleset.New(`{"//iati-activity": `, ruleset.DefaultMeta()); !errors.Is(err, ruleset.ErrInvalidFormat) {
		t.Errorf("New = %v, want ErrInvalidFormat", err)
	}
}

func TestNew_UnknownRuleTypeAbortsWholeConstruction(t *testing.T) {
	t.Parallel()
	def := `{
		"//iati-activity": {
			"atleast_one": {"cases": [{"paths": ["sector"]}]},
			"exactly_forty_two": {"cases": [{"paths": ["sector"]}]}
		}
	}`
	rs, err := ruleset.New(def, ruleset.DefaultMeta())
	if !errors.Is(err, ruleset.ErrUnknownRuleType) {
		t.Fatalf("New = %v, want ErrUnknownRuleType", err)
	}
	if rs != nil {
		t.Error("no partial Ruleset may be returned")
	}
}

func TestNew_SchemaInvalid(t *testing.T) {
	t.Parallel()
	cases := []string{
		`[]`,
		`"not an object"`,
		`{"//iati-activity": {"atleast_one": {}}}`,
		`{"//iati-activity": {"atleast_one": {"cases": []}}}`,
		`{"//iati-activity": {"atleast_one": {"cases": "not a list"}}}`,
	}
	for _, def := range cases {
		if _, err := ruleset.New(def, ruleset.DefaultMeta()); !errors.Is(err, ruleset.ErrSchemaInvalid) {
			t.Errorf("New(%s) = %v, want ErrSchemaInvalid", def, err)
		}
	}
}

func TestNew_InvalidCase(t *testing.T) {
	t.Parallel()
	cases := []string{
		// sum requires both paths and sum.
		`{"//iati-activity": {"sum": {"cases": [{"paths": ["recipient-country/@percentage"]}]}}}`,
		// regex_matches requires regex.
		`{"//iati-activity": {"regex_matches": {"cases": [{"paths": ["iati-identifier"]}]}}}`,
		// date_order requires less and more.
		`{"//iati-activity": {"date_order": {"cases": [{"less": "activity-date[@type='1']/@iso-date"}]}}}`,
		// unknown case property.
		`{"//iati-activity": {"unique": {"cases": [{"paths": ["iati-identifier"], "bogus": 1}]}}}`,
		// wrong types.
		`{"//iati-activity": {"sum": {"cases": [{"paths": ["a"], "sum": "100"}]}}}`,
	}
	for _, def := range cases {
		if _, err := ruleset.New(def, ruleset.DefaultMeta()); !errors.Is(err, ruleset.ErrInvalidCase) {
			t.Errorf("New(%s) = %v, want ErrInvalidCase", def, err)
		}
	}
}

func TestNew_InvalidCaseCarriesContext(t *testing.T) {
	t.Parallel()
	def := `{"//iati-activity": {"sum": {"cases": [{"paths": ["recipient-country/@percentage"]}]}}}`
	_, err := ruleset.New(def, ruleset.DefaultMeta())
	var ce *ruleset.CaseError
	if !errors.As(err, &ce) {
		t.Fatalf("New = %v, want *CaseError", err)
	}
	if ce.Type != ruleset.TypeSum {
		t.Errorf("CaseError.Type = %q, want sum", ce.Type)
	}
	if ce.XPathBase != "//iati-activity" {
		t.Errorf("CaseError.XPathBase = %q, want //iati-activity", ce.XPathBase)
	}
	if ce.Case == nil {
		t.Error("CaseError.Case should carry the offending case")
	}
}

func TestNewRule_UnknownType(t *testing.T) {
	t.Parallel()
	_, err := ruleset.NewRule("bogus", "//iati-activity", map[string]any{"paths": []any{"a"}}, ruleset.DefaultMeta())
	if !errors.Is(err, ruleset.ErrUnknownRuleType) {
		t.Errorf("NewRule = %v, want ErrUnknownRuleType", err)
	}
}

func TestMeta_RequiredExcludesCondition(t *testing.T) {
	t.Parallel()
	meta := ruleset.DefaultMeta()
	cases := map[ruleset.RuleType][]string{
		ruleset.TypeNoMoreThanOne:  {"paths"},
		ruleset.TypeAtLeastOne:     {"paths"},
		ruleset.TypeDependent:      {"paths"},
		ruleset.TypeSum:            {"paths", "sum"},
		ruleset.TypeDateOrder:      {"less", "more"},
		ruleset.TypeRegexMatches:   {"paths", "regex"},
		ruleset.TypeRegexNoMatches: {"paths", "regex"},
		ruleset.TypeStartsWith:     {"paths", "start"},
		ruleset.TypeUnique:         {"paths"},
	}
	for typ, want := range cases {
		got := meta.Required(typ)
		if len(got) != len(want) {
			t.Errorf("Required(%s) = %v, want %v", typ, got, want)
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Required(%s) = %v, want %v", typ, got, want)
				break
			}
		}
	}
}

func TestMeta_ValidateCase_ConditionOptional(t *testing.T) {
	t.Parallel()
	meta := ruleset.DefaultMeta()
	withCond := map[string]any{"paths": []any{"sector"}, "condition": "@vocabulary = '1'"}
	if err := meta.ValidateCase(ruleset.TypeAtLeastOne, withCond); err != nil {
		t.Errorf("case with condition should validate: %v", err)
	}
	withoutCond := map[string]any{"paths": []any{"sector"}}
	if err := meta.ValidateCase(ruleset.TypeAtLeastOne, withoutCond); err != nil {
		t.Errorf("case without condition should validate: %v", err)
	}
}

func TestMeta_ValidateCase_UnregisteredTypeIsConfigError(t *testing.T) {
	t.Parallel()
	err := ruleset.DefaultMeta().ValidateCase("not_a_type", map[string]any{})
	var cfg *ruleset.ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("ValidateCase = %v, want *ConfigError", err)
	}
}

func TestRule_ResolvePath(t *testing.T) {
	t.Parallel()
	rs := mustRuleset(t, `{"//iati-activity": {"atleast_one": {"cases": [{"paths": ["sector"]}]}}}`)
	r := rs.Rules()[0]
	if got := r.ResolvePath("sector"); got != "//iati-activity/sector" {
		t.Errorf("ResolvePath = %q, want //iati-activity/sector", got)
	}
}

func TestRule_Equality(t *testing.T) {
	t.Parallel()
	meta := ruleset.DefaultMeta()
	a, err := ruleset.NewRule(ruleset.TypeUnique, "//iati-activity", map[string]any{"paths": []any{"iati-identifier"}}, meta)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	b, err := ruleset.NewRule(ruleset.TypeUnique, "//iati-activity", map[string]any{"paths": []any{"iati-identifier"}}, meta)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	c, err := ruleset.NewRule(ruleset.TypeUnique, "//iati-activity", map[string]any{"paths": []any{"other"}}, meta)
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	if !a.Equal(b) {
		t.Error("rules with identical type, base, and case should be equal")
	}
	if a.Equal(c) {
		t.Error("rules differing in case content should not be equal")
	}
}
