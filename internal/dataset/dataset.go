// ABOUTME: Dataset wraps a raw IATI XML document with its parsed tree.
// ABOUTME: Parsing happens once at construction; the tree feeds schema checks and rule evaluation.
package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrNotXML is returned when input cannot be parsed as XML.
var ErrNotXML = errors.New("dataset: input is not well-formed XML")

// Dataset is an IATI data file: the verbatim XML string plus its parsed tree.
// Immutable after construction.
type Dataset struct {
	raw  string
	tree *xmlquery.Node
	root *xmlquery.Node
}

// New parses raw as XML. Malformed input fails with ErrNotXML; no IATI
// structural checks happen here (see the validate package).
func New(raw string) (*Dataset, error) {
	tree, err := xmlquery.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotXML, err)
	}
	root := firstElement(tree)
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrNotXML)
	}
	return &Dataset{raw: raw, tree: tree, root: root}, nil
}

func firstElement(tree *xmlquery.Node) *xmlquery.Node {
	for n := tree.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// XML returns the document exactly as it was supplied.
func (d *Dataset) XML() string { return d.raw }

// Tree returns the parsed document tree for XPath queries.
func (d *Dataset) Tree() *xmlquery.Node { return d.tree }

// RootName returns the name of the document's root element
// ("iati-activities" or "iati-organisations" for IATI data).
func (d *Dataset) RootName() string { return d.root.Data }

// VersionAttr returns the root element's version attribute, or "" when the
// document does not declare one.
func (d *Dataset) VersionAttr() string {
	return d.root.SelectAttr("version")
}
