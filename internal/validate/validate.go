// ABOUTME: Full validation pipeline: structural checks, codelist conformance, ruleset conformance.
// ABOUTME: Aggregates rule outcomes into a Report with stable error identifiers and info texts.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/openaid-dev/aidcheck/internal/dataset"
	"github.com/openaid-dev/aidcheck/internal/report"
	"github.com/openaid-dev/aidcheck/internal/ruleset"
	"github.com/openaid-dev/aidcheck/internal/schema"
	"github.com/openaid-dev/aidcheck/internal/version"
)

// Stable record names used in reports.
const (
	ErrNotIATIXML          = "err-not-iati-xml"
	ErrVersionUnrecognized = "err-version-unrecognized"
	ErrNotInCodelist       = "err-not-in-codelist"
	ErrRulesetConformance  = "err-ruleset-conformance-fail"
)

// ruleErrorNames maps a rule type to its conformance-failure record name.
var ruleErrorNames = map[ruleset.RuleType]string{
	ruleset.TypeNoMoreThanOne:  "err-rule-no-more-than-one-conformance-fail",
	ruleset.TypeAtLeastOne:     "err-rule-at-least-one-conformance-fail",
	ruleset.TypeDependent:      "err-rule-dependent-conformance-fail",
	ruleset.TypeSum:            "err-rule-sum-conformance-fail",
	ruleset.TypeDateOrder:      "err-rule-date-order-conformance-fail",
	ruleset.TypeRegexMatches:   "err-rule-regex-matches-conformance-fail",
	ruleset.TypeRegexNoMatches: "err-rule-regex-no-matches-conformance-fail",
	ruleset.TypeStartsWith:     "err-rule-starts-with-conformance-fail",
	ruleset.TypeUnique:         "err-rule-unique-conformance-fail",
}

// RuleErrorName returns the report record name for a failing rule type.
func RuleErrorName(t ruleset.RuleType) string { return ruleErrorNames[t] }

// IsXML reports whether raw parses as XML.
func IsXML(raw string) bool {
	_, err := dataset.New(raw)
	return err == nil
}

// IsIATIXML reports whether ds structurally matches sch: correct root
// element, declared by the schema.
func IsIATIXML(ds *dataset.Dataset, sch *schema.Schema) bool {
	return ds.RootName() == sch.RootName && sch.DeclaresElement(ds.RootName())
}

// IsValid reports whether a full validation run produces no errors.
func IsValid(ds *dataset.Dataset, sch *schema.Schema) bool {
	return !FullValidation(ds, sch).ContainsErrors()
}

// FullValidation runs every check against ds and collects the findings:
// structural conformance, the document's declared version, codelist
// membership for every mapped path, and every attached ruleset. Rule
// evaluation is read-only; the report is the only output.
func FullValidation(ds *dataset.Dataset, sch *schema.Schema) *report.Report {
	rep := report.New()

	if !IsIATIXML(ds, sch) {
		rep.Append(report.Record{
			Name: ErrNotIATIXML,
			Info: fmt.Sprintf("The root element is `%s`; the schema validates `%s` documents.", ds.RootName(), sch.RootName),
		})
		return rep
	}

	checkVersion(ds, rep)
	checkCodelists(ds, sch, rep)
	checkRulesets(ds, sch, rep)

	return rep
}

func checkVersion(ds *dataset.Dataset, rep *report.Report) {
	attr := ds.VersionAttr()
	if attr == "" {
		// Datasets without a version attribute predate 2.01; validated
		// against whichever schema the caller chose.
		return
	}
	if _, err := version.Parse(attr); err != nil {
		rep.Append(report.Record{
			Name: ErrVersionUnrecognized,
			Info: fmt.Sprintf("`%s` is not a recognised version of the IATI Standard.", attr),
		})
	}
}

// checkCodelists walks the codelist mapping and verifies that every value
// matched by a mapped XPath is a member of its codelist. Mapping entries
// whose condition holds for the matched node's element are skipped, matching
// the mapping file's own semantics.
func checkCodelists(ds *dataset.Dataset, sch *schema.Schema, rep *report.Report) {
	for name, cl := range sch.Codelists {
		for _, entry := range sch.Mapping.For(name) {
			nodes, err := xmlquery.QueryAll(ds.Tree(), entry.XPath)
			if err != nil {
				continue
			}
			for _, n := range nodes {
				ctx := n
				if n.Type == xmlquery.AttributeNode && n.Parent != nil {
					ctx = n.Parent
				}
				if entry.Condition != "" && !ruleset.ConditionHolds(ctx, entry.Condition) {
					continue
				}
				value := strings.TrimSpace(n.InnerText())
				if !cl.Contains(value) {
					rep.Append(report.Record{
						Name: ErrNotInCodelist,
						Info: fmt.Sprintf("`%s` is not a valid code on the `%s` codelist.", value, cl.Name),
						Path: entry.XPath,
					})
				}
			}
		}
	}
}

func checkRulesets(ds *dataset.Dataset, sch *schema.Schema, rep *report.Report) {
	for _, rs := range sch.Rulesets {
		failing := rs.FailingRules(ds.Tree())
		for _, r := range failing {
			rep.Append(report.Record{
				Name:      RuleErrorName(r.Type),
				Info:      InfoText(r),
				RuleType:  string(r.Type),
				XPathBase: r.XPathBase,
			})
		}
		if len(failing) > 0 {
			rep.Append(report.Record{
				Name: ErrRulesetConformance,
				Info: fmt.Sprintf("The dataset does not conform to the ruleset: %d rule(s) failed.", len(failing)),
			})
		}
	}
}

// InfoText builds the human-readable description of a rule's constraint,
// phrased as the requirement the document failed to meet.
func InfoText(r *ruleset.Rule) string {
	c := r.Case()
	switch r.Type {
	case ruleset.TypeAtLeastOne:
		return fmt.Sprintf("At least one of %s must be present within each `%s`.",
			joinTicked(r.Paths(), " or "), r.XPathBase)

	case ruleset.TypeNoMoreThanOne:
		return fmt.Sprintf("There must be no more than one instance of `%s` within each `%s`.",
			r.Paths()[0], r.XPathBase)

	case ruleset.TypeDependent:
		return fmt.Sprintf("Either all or none of %s must be present within each `%s`.",
			joinTicked(r.Paths(), " and "), r.XPathBase)

	case ruleset.TypeSum:
		target, _ := c["sum"].(float64)
		return fmt.Sprintf("Within each `%s`, the sum of values matched at %s must be `%s`.",
			r.XPathBase, joinTicked(r.Paths(), " and "), strconv.FormatFloat(target, 'f', -1, 64))

	case ruleset.TypeDateOrder:
		less, _ := c["less"].(string)
		more, _ := c["more"].(string)
		return fmt.Sprintf("`%s` must be chronologically before `%s` within each `%s`.",
			less, more, r.XPathBase)

	case ruleset.TypeRegexMatches:
		regex, _ := c["regex"].(string)
		return fmt.Sprintf("Each instance of %s within each `%s` must match the regular expression `%s`.",
			joinTicked(r.Paths(), " and "), r.XPathBase, regex)

	case ruleset.TypeRegexNoMatches:
		regex, _ := c["regex"].(string)
		return fmt.Sprintf("No instance of %s within each `%s` may match the regular expression `%s`.",
			joinTicked(r.Paths(), " and "), r.XPathBase, regex)

	case ruleset.TypeStartsWith:
		start, _ := c["start"].(string)
		return fmt.Sprintf("Each instance of %s within each `%s` must start with the value matched at `%s`.",
			joinTicked(r.Paths(), " and "), r.XPathBase, start)

	case ruleset.TypeUnique:
		return fmt.Sprintf("Each value matched at %s within each `%s` must be unique.",
			joinTicked(r.Paths(), " and "), r.XPathBase)
	}
	return fmt.Sprintf("The `%s` rule at `%s` failed.", r.Type, r.XPathBase)
}

func joinTicked(items []string, sep string) string {
	ticked := make([]string, len(items))
	for i, s := range items {
		ticked[i] = "`" + s + "`"
	}
	return strings.Join(ticked, sep)
}
