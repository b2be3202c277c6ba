// ABOUTME: Tests for rule evaluation semantics against parsed XML documents.
// ABOUTME: One section per rule type, plus condition and multi-activity handling.
package ruleset_test

import (
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"

	"github.com/openaid-dev/aidcheck/internal/ruleset"
)

func parseXML(t *testing.T, s string) *xmlquery.Node {
	t.Helper()
	doc, err := xmlquery.Parse(strings.NewReader(s))
	if err != nil {
		t.Fatalf("parse xml: %v", err)
	}
	return doc
}

func mustRule(t *testing.T, typ ruleset.RuleType, base string, c map[string]any) *ruleset.Rule {
	t.Helper()
	r, err := ruleset.NewRule(typ, base, c, ruleset.DefaultMeta())
	if err != nil {
		t.Fatalf("NewRule(%s): %v", typ, err)
	}
	return r
}

func activity(body string) string {
	return `<iati-activities version="2.02"><iati-activity>` + body + `</iati-activity></iati-activities>`
}

func TestNoMoreThanOne(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeNoMoreThanOne, "//iati-activity", map[string]any{"paths": []any{"sector"}})

	if !r.IsValidFor(parseXML(t, activity(``))) {
		t.Error("zero sector nodes should pass")
	}
	if !r.IsValidFor(parseXML(t, activity(`<sector code="111"/>`))) {
		t.Error("one sector node should pass")
	}
	if r.IsValidFor(parseXML(t, activity(`<sector code="111"/><sector code="122"/>`))) {
		t.Error("two sector nodes should fail")
	}
}

func TestAtLeastOne(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeAtLeastOne, "//iati-activity", map[string]any{"paths": []any{"sector"}})

	if r.IsValidFor(parseXML(t, activity(``))) {
		t.Error("zero sector nodes should fail")
	}
	if !r.IsValidFor(parseXML(t, activity(`<sector code="111"/>`))) {
		t.Error("one sector node should pass")
	}
	if !r.IsValidFor(parseXML(t, activity(`<sector code="111"/><sector code="122"/>`))) {
		t.Error("two sector nodes should pass")
	}
}

// Cardinality rules consult only the first entry of paths.
func TestCardinality_FirstPathOnly(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeAtLeastOne, "//iati-activity",
		map[string]any{"paths": []any{"sector", "transaction/sector"}})

	doc := parseXML(t, activity(`<transaction><sector code="111"/></transaction>`))
	if r.IsValidFor(doc) {
		t.Error("a match on the second path only should not satisfy the rule")
	}
}

func TestDependent(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeDependent, "//iati-activity",
		map[string]any{"paths": []any{"recipient-country", "recipient-region"}})

	if !r.IsValidFor(parseXML(t, activity(``))) {
		t.Error("no listed path present should pass")
	}
	if !r.IsValidFor(parseXML(t, activity(`<recipient-country code="KE"/><recipient-region code="298"/>`))) {
		t.Error("all listed paths present should pass")
	}
	if r.IsValidFor(parseXML(t, activity(`<recipient-country code="KE"/>`))) {
		t.Error("only some listed paths present should fail")
	}
}

func TestSum(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeSum, "//iati-activity", map[string]any{
		"paths": []any{"recipient-country/@percentage", "recipient-region/@percentage"},
		"sum":   100.0,
	})

	ok := activity(`<recipient-country percentage="60"/><recipient-region percentage="40"/>`)
	if !r.IsValidFor(parseXML(t, ok)) {
		t.Error("60 + 40 should sum to 100")
	}

	bad := activity(`<recipient-country percentage="60"/><recipient-region percentage="30"/>`)
	if r.IsValidFor(parseXML(t, bad)) {
		t.Error("60 + 30 should not sum to 100")
	}

	fractional := activity(`<recipient-country percentage="33.4"/><recipient-region percentage="66.6"/>`)
	if !r.IsValidFor(parseXML(t, fractional)) {
		t.Error("33.4 + 66.6 should sum to 100 within tolerance")
	}

	if !r.IsValidFor(parseXML(t, activity(``))) {
		t.Error("no matched values leaves nothing to constrain")
	}

	nonNumeric := activity(`<recipient-country percentage="sixty"/><recipient-region percentage="40"/>`)
	if r.IsValidFor(parseXML(t, nonNumeric)) {
		t.Error("a non-numeric matched value should fail, not crash")
	}
}

func TestDateOrder(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeDateOrder, "//iati-activity", map[string]any{
		"less": "activity-date[@type='1']/@iso-date",
		"more": "activity-date[@type='3']/@iso-date",
	})

	chronological := activity(`<activity-date type="1" iso-date="2016-01-01"/><activity-date type="3" iso-date="2017-06-30"/>`)
	if !r.IsValidFor(parseXML(t, chronological)) {
		t.Error("earlier before later should pass")
	}

	reversed := activity(`<activity-date type="1" iso-date="2017-06-30"/><activity-date type="3" iso-date="2016-01-01"/>`)
	if r.IsValidFor(parseXML(t, reversed)) {
		t.Error("later before earlier should fail")
	}

	missing := activity(`<activity-date type="1" iso-date="2016-01-01"/>`)
	if r.IsValidFor(parseXML(t, missing)) {
		t.Error("a missing date is a defined failure, not a crash")
	}

	unparseable := activity(`<activity-date type="1" iso-date="sometime"/><activity-date type="3" iso-date="2017-06-30"/>`)
	if r.IsValidFor(parseXML(t, unparseable)) {
		t.Error("an unparseable date is a defined failure")
	}
}

func TestDateOrder_NowKeyword(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeDateOrder, "//iati-activity", map[string]any{
		"less": "activity-date[@type='1']/@iso-date",
		"more": "NOW",
	})
	past := activity(`<activity-date type="1" iso-date="2000-01-01"/>`)
	if !r.IsValidFor(parseXML(t, past)) {
		t.Error("a past date should be before NOW")
	}
	future := activity(`<activity-date type="1" iso-date="9999-01-01"/>`)
	if r.IsValidFor(parseXML(t, future)) {
		t.Error("a far-future date should not be before NOW")
	}
}

func TestRegexMatches(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeRegexMatches, "//iati-activity", map[string]any{
		"regex": `[^\/\&\|\?]+`,
		"paths": []any{"iati-identifier"},
	})

	if !r.IsValidFor(parseXML(t, activity(`<iati-identifier>AA-123</iati-identifier>`))) {
		t.Error("AA-123 should match")
	}
	if r.IsValidFor(parseXML(t, activity(`<iati-identifier>AA/123</iati-identifier>`))) {
		t.Error("a forbidden character should fail under full-match semantics")
	}
	// Every instance must match, not just the first.
	two := activity(`<iati-identifier>AA-123</iati-identifier><iati-identifier>AA&amp;123</iati-identifier>`)
	if r.IsValidFor(parseXML(t, two)) {
		t.Error("a later non-matching instance should fail the rule")
	}
}

func TestRegexNoMatches(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeRegexNoMatches, "//iati-activity", map[string]any{
		"regex": `legacy-.*`,
		"paths": []any{"iati-identifier"},
	})

	if !r.IsValidFor(parseXML(t, activity(`<iati-identifier>AA-123</iati-identifier>`))) {
		t.Error("no matching instance should pass")
	}
	if r.IsValidFor(parseXML(t, activity(`<iati-identifier>legacy-42</iati-identifier>`))) {
		t.Error("any matching instance should fail")
	}
}

func TestStartsWith(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeStartsWith, "//iati-activity", map[string]any{
		"start": "reporting-org/@ref",
		"paths": []any{"iati-identifier"},
	})

	ok := activity(`<reporting-org ref="GB-1"/><iati-identifier>GB-1-123</iati-identifier>`)
	if !r.IsValidFor(parseXML(t, ok)) {
		t.Error("identifier prefixed by the org ref should pass")
	}
	bad := activity(`<reporting-org ref="GB-1"/><iati-identifier>XX-9-123</iati-identifier>`)
	if r.IsValidFor(parseXML(t, bad)) {
		t.Error("identifier not prefixed by the org ref should fail")
	}
	noPrefix := activity(`<iati-identifier>GB-1-123</iati-identifier>`)
	if r.IsValidFor(parseXML(t, noPrefix)) {
		t.Error("a missing prefix value should fail")
	}
}

func TestUnique(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeUnique, "//iati-activities", map[string]any{
		"paths": []any{"iati-activity/iati-identifier"},
	})

	distinct := `<iati-activities><iati-activity><iati-identifier>A</iati-identifier></iati-activity><iati-activity><iati-identifier>B</iati-identifier></iati-activity></iati-activities>`
	if !r.IsValidFor(parseXML(t, distinct)) {
		t.Error("pairwise distinct values should pass")
	}
	repeated := `<iati-activities><iati-activity><iati-identifier>A</iati-identifier></iati-activity><iati-activity><iati-identifier>A</iati-identifier></iati-activity></iati-activities>`
	if r.IsValidFor(parseXML(t, repeated)) {
		t.Error("a repeated value should fail")
	}
}

func TestCondition_SkipsContext(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeAtLeastOne, "//iati-activity", map[string]any{
		"paths":     []any{"sector"},
		"condition": "@humanitarian = '1'",
	})

	flagged := `<iati-activities><iati-activity humanitarian="1"></iati-activity></iati-activities>`
	if !r.IsValidFor(parseXML(t, flagged)) {
		t.Error("a context where the condition holds is skipped")
	}
	unflagged := `<iati-activities><iati-activity></iati-activity></iati-activities>`
	if r.IsValidFor(parseXML(t, unflagged)) {
		t.Error("a context where the condition does not hold is evaluated")
	}
}

func TestEvaluation_PerContextNode(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeAtLeastOne, "//iati-activity", map[string]any{"paths": []any{"sector"}})

	// One conforming activity does not excuse a non-conforming sibling.
	doc := parseXML(t, `<iati-activities>
		<iati-activity><sector code="111"/></iati-activity>
		<iati-activity></iati-activity>
	</iati-activities>`)
	if r.IsValidFor(doc) {
		t.Error("the rule must hold within every context node")
	}
}

func TestEvaluation_NoContextNodes(t *testing.T) {
	t.Parallel()
	r := mustRule(t, ruleset.TypeAtLeastOne, "//iati-activity", map[string]any{"paths": []any{"sector"}})
	doc := parseXML(t, `<iati-organisations/>`)
	if !r.IsValidFor(doc) {
		t.Error("no context nodes leaves nothing to violate")
	}
}

func TestFailingRules(t *testing.T) {
	t.Parallel()
	rs := mustRuleset(t, `{
		"//iati-activity": {
			"atleast_one": {"cases": [{"paths": ["sector", "transaction/sector"]}]},
			"unique": {"cases": [{"paths": ["iati-identifier"]}]}
		}
	}`)

	doc := parseXML(t, activity(`<iati-identifier>AA-1</iati-identifier>`))
	failing := rs.FailingRules(doc)
	if len(failing) != 1 {
		t.Fatalf("len(failing) = %d, want exactly 1", len(failing))
	}
	if failing[0].Type != ruleset.TypeAtLeastOne {
		t.Errorf("failing rule type = %q, want atleast_one", failing[0].Type)
	}
}
