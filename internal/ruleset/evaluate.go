// ABOUTME: Rule evaluation against a parsed XML document tree via XPath queries.
// ABOUTME: Pure read-only predicates; a constructed Rule never errors during evaluation.
package ruleset

import (
	"strconv"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// nowKeyword is the date_order token meaning the current date rather than a
// path into the document.
const nowKeyword = "NOW"

// sumTolerance absorbs float accumulation error when comparing a sum of
// matched values against the target.
const sumTolerance = 1e-9

// IsValidFor evaluates the rule's predicate against doc. The rule applies
// within each node matched by its XPath base; it holds for the document iff
// it holds for every such context node. A context node where the rule's
// condition matches is skipped. Evaluation does not mutate the tree.
func (r *Rule) IsValidFor(doc *xmlquery.Node) bool {
	for _, base := range query(doc, r.XPathBase) {
		if r.condition != "" && ConditionHolds(base, r.condition) {
			continue
		}
		if !r.holdsWithin(base) {
			return false
		}
	}
	return true
}

// holdsWithin applies the per-type predicate inside one context node.
func (r *Rule) holdsWithin(base *xmlquery.Node) bool {
	switch r.Type {
	case TypeNoMoreThanOne:
		// Only the first entry of paths is consulted, matching the documented
		// behavior of the rule definitions in use.
		return len(query(base, r.paths[0])) <= 1

	case TypeAtLeastOne:
		return len(query(base, r.paths[0])) >= 1

	case TypeDependent:
		return r.dependentHolds(base)

	case TypeSum:
		return r.sumHolds(base)

	case TypeDateOrder:
		return r.dateOrderHolds(base)

	case TypeRegexMatches:
		return r.regexHolds(base, true)

	case TypeRegexNoMatches:
		return r.regexHolds(base, false)

	case TypeStartsWith:
		return r.startsWithHolds(base)

	case TypeUnique:
		return r.uniqueHolds(base)
	}
	return true
}

// dependentHolds: if any listed path is present, all listed paths must be.
func (r *Rule) dependentHolds(base *xmlquery.Node) bool {
	present := 0
	for _, p := range r.paths {
		if len(query(base, p)) > 0 {
			present++
		}
	}
	return present == 0 || present == len(r.paths)
}

// sumHolds: the numeric values matched across all paths must total the
// target. No matched values leaves nothing to constrain; an unparseable
// value is a failure, not a crash.
func (r *Rule) sumHolds(base *xmlquery.Node) bool {
	total := 0.0
	matched := 0
	for _, p := range r.paths {
		for _, n := range query(base, p) {
			v, err := strconv.ParseFloat(strings.TrimSpace(n.InnerText()), 64)
			if err != nil {
				return false
			}
			total += v
			matched++
		}
	}
	if matched == 0 {
		return true
	}
	diff := total - r.sum
	return diff < sumTolerance && diff > -sumTolerance
}

// dateOrderHolds: the date at the "less" path must be strictly before the
// date at the "more" path. NOW means the current date. A missing or
// unparseable date is a defined failure.
func (r *Rule) dateOrderHolds(base *xmlquery.Node) bool {
	less, ok := r.dateAt(base, r.less)
	if !ok {
		return false
	}
	more, ok := r.dateAt(base, r.more)
	if !ok {
		return false
	}
	return less.Before(more)
}

func (r *Rule) dateAt(base *xmlquery.Node, path string) (time.Time, bool) {
	if path == nowKeyword {
		return time.Now(), true
	}
	text, ok := firstText(base, path)
	if !ok {
		return time.Time{}, false
	}
	return parseISODate(text)
}

// parseISODate accepts the xsd:date form used by iso-date values, with or
// without a timezone designator, plus full RFC 3339 timestamps.
func parseISODate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "2006-01-02Z07:00", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// regexHolds: with want true, every matched node's text must match the
// pattern; with want false, none may.
func (r *Rule) regexHolds(base *xmlquery.Node, want bool) bool {
	for _, p := range r.paths {
		for _, n := range query(base, p) {
			if r.regex.MatchString(strings.TrimSpace(n.InnerText())) != want {
				return false
			}
		}
	}
	return true
}

// startsWithHolds: every matched value must begin with the value found at the
// start path. A missing prefix value fails the rule.
func (r *Rule) startsWithHolds(base *xmlquery.Node) bool {
	prefix, ok := firstText(base, r.start)
	if !ok {
		return false
	}
	for _, p := range r.paths {
		for _, n := range query(base, p) {
			if !strings.HasPrefix(strings.TrimSpace(n.InnerText()), prefix) {
				return false
			}
		}
	}
	return true
}

// uniqueHolds: all values matched across all paths must be pairwise distinct.
func (r *Rule) uniqueHolds(base *xmlquery.Node) bool {
	seen := make(map[string]bool)
	for _, p := range r.paths {
		for _, n := range query(base, p) {
			text := strings.TrimSpace(n.InnerText())
			if seen[text] {
				return false
			}
			seen[text] = true
		}
	}
	return true
}

// query runs an XPath expression from node. Expressions come out of validated
// rule definitions, but a path that fails to compile at evaluation time is
// treated as matching nothing rather than panicking mid-evaluation.
func query(node *xmlquery.Node, expr string) []*xmlquery.Node {
	nodes, err := xmlquery.QueryAll(node, expr)
	if err != nil {
		return nil
	}
	return nodes
}

// firstText returns the trimmed text of the first node matched by expr.
func firstText(node *xmlquery.Node, expr string) (string, bool) {
	nodes := query(node, expr)
	if len(nodes) == 0 {
		return "", false
	}
	return strings.TrimSpace(nodes[0].InnerText()), true
}

// ConditionHolds evaluates a condition expression in the context of base.
// Conditions are boolean XPath expressions ("@vocabulary = '1' or
// not(@vocabulary)"); a node-set result counts as true when non-empty. An
// invalid expression never suppresses the guarded check. Also used by the
// codelist-mapping checks in the validate package.
func ConditionHolds(base *xmlquery.Node, cond string) bool {
	expr, err := xpath.Compile(cond)
	if err != nil {
		return false
	}
	switch v := expr.Evaluate(xmlquery.CreateXPathNavigator(base)).(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		return v != ""
	case *xpath.NodeIterator:
		return v.MoveNext()
	}
	return false
}
