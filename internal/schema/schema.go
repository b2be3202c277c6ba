// ABOUTME: Schema plumbing: an IATI schema with its attached codelists and rulesets.
// ABOUTME: Holds the parsed XSD tree; full XSD validation is delegated, not implemented here.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/openaid-dev/aidcheck/internal/codelist"
	"github.com/openaid-dev/aidcheck/internal/ruleset"
)

// Root element names for the two IATI schema kinds.
const (
	ActivityRoot     = "iati-activities"
	OrganisationRoot = "iati-organisations"
)

// ErrNotXSD is returned when input cannot be parsed as an XML Schema document.
var ErrNotXSD = errors.New("schema: input is not an XSD document")

// Schema is an IATI schema of one kind (activity or organisation) with the
// auxiliary data a populated schema carries: the codelists and rulesets used
// by full validation. An unpopulated schema has empty sets.
type Schema struct {
	// RootName is the document root element this schema validates.
	RootName string

	// Codelists holds the attached codelists, keyed by name.
	Codelists map[string]*codelist.Codelist

	// Mapping ties codelists to document XPaths.
	Mapping codelist.Mapping

	// Rulesets holds the attached rulesets.
	Rulesets []*ruleset.Ruleset

	tree *xmlquery.Node
}

// New parses xsd and returns a Schema validating documents rooted at
// rootName. The XSD tree is retained for callers that need to inspect
// element declarations; this package does not implement XSD validation.
func New(rootName, xsd string) (*Schema, error) {
	tree, err := xmlquery.Parse(strings.NewReader(xsd))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotXSD, err)
	}
	if xmlquery.FindOne(tree, "//*[local-name()='schema']") == nil {
		return nil, fmt.Errorf("%w: no schema element", ErrNotXSD)
	}
	return &Schema{
		RootName:  rootName,
		Codelists: make(map[string]*codelist.Codelist),
		tree:      tree,
	}, nil
}

// Tree returns the parsed XSD document.
func (s *Schema) Tree() *xmlquery.Node { return s.tree }

// AddCodelist attaches a codelist, replacing any existing one with the same name.
func (s *Schema) AddCodelist(cl *codelist.Codelist) {
	s.Codelists[cl.Name] = cl
}

// AddRuleset attaches a ruleset.
func (s *Schema) AddRuleset(rs *ruleset.Ruleset) {
	s.Rulesets = append(s.Rulesets, rs)
}

// DeclaresElement reports whether the XSD declares a top-level element with
// the given name.
func (s *Schema) DeclaresElement(name string) bool {
	expr := fmt.Sprintf("/*[local-name()='schema']/*[local-name()='element'][@name='%s']", name)
	return xmlquery.FindOne(s.tree, expr) != nil
}

// Copy returns a schema sharing the immutable XSD tree but with independent
// codelist and ruleset sets, so default data cannot be modified through a
// returned schema.
func (s *Schema) Copy() *Schema {
	out := &Schema{
		RootName:  s.RootName,
		Codelists: make(map[string]*codelist.Codelist, len(s.Codelists)),
		Mapping:   s.Mapping,
		tree:      s.tree,
	}
	for name, cl := range s.Codelists {
		out.Codelists[name] = cl.Copy()
	}
	out.Rulesets = append(out.Rulesets, s.Rulesets...)
	return out
}
