// ABOUTME: Codelist mapping: which document XPaths are constrained by which codelist.
// ABOUTME: Parsed from the mapping XML file; conditions guard when a mapping applies.
package codelist

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// MappingEntry ties a document XPath to a codelist, optionally guarded by a
// condition expression evaluated in the context of each matched node. An
// empty Condition means the mapping always applies.
type MappingEntry struct {
	Codelist  string
	XPath     string
	Condition string
}

// Mapping is the full set of mapping entries, keyed by codelist name.
type Mapping map[string][]MappingEntry

// ParseMapping reads a codelist mapping document:
//
//	<mappings>
//	  <mapping>
//	    <path>//sector/@code</path>
//	    <codelist ref="Sector"/>
//	    <condition>@vocabulary = '1' or not(@vocabulary)</condition>
//	  </mapping>
//	</mappings>
func ParseMapping(xmlStr string) (Mapping, error) {
	doc, err := xmlquery.Parse(strings.NewReader(xmlStr))
	if err != nil {
		return nil, fmt.Errorf("codelist mapping: %w", err)
	}

	m := make(Mapping)
	for _, node := range xmlquery.Find(doc, "//mapping") {
		ref := ""
		if cl := xmlquery.FindOne(node, "codelist"); cl != nil {
			ref = cl.SelectAttr("ref")
		}
		path := textOf(node, "path")
		if ref == "" || path == "" {
			return nil, fmt.Errorf("codelist mapping: entry missing codelist ref or path")
		}
		m[ref] = append(m[ref], MappingEntry{
			Codelist:  ref,
			XPath:     path,
			Condition: textOf(node, "condition"),
		})
	}
	return m, nil
}

// For returns the entries for a codelist name; nil when there are none.
func (m Mapping) For(name string) []MappingEntry { return m[name] }
