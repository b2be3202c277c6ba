// ABOUTME: Codelist representation: a named set of codes parsed from IATI codelist XML.
// ABOUTME: Referenced by validation as a membership check; no versioning logic lives here.
package codelist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrNotCodelistXML is returned when input is not a codelist document.
var ErrNotCodelistXML = errors.New("codelist: input is not codelist XML")

// Code is a single entry within a Codelist.
type Code struct {
	Value string
	Name  string
}

// Codelist is a named set of codes. Construct an empty one with New or parse
// one from XML with FromXML.
type Codelist struct {
	Name  string
	codes map[string]Code
}

// New returns an empty Codelist with the given name.
func New(name string) *Codelist {
	return &Codelist{Name: name, codes: make(map[string]Code)}
}

// FromXML parses an IATI codelist document. The codelist's name attribute
// wins over the supplied name when present.
func FromXML(name, xmlStr string) (*Codelist, error) {
	doc, err := xmlquery.Parse(strings.NewReader(xmlStr))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCodelistXML, err)
	}
	root := xmlquery.FindOne(doc, "//codelist")
	if root == nil {
		return nil, fmt.Errorf("%w: no codelist element", ErrNotCodelistXML)
	}
	if n := root.SelectAttr("name"); n != "" {
		name = n
	}

	cl := New(name)
	for _, item := range xmlquery.Find(root, "codelist-items/codelist-item") {
		value := textOf(item, "code")
		if value == "" {
			continue
		}
		cl.Add(Code{Value: value, Name: textOf(item, "name/narrative")})
	}
	return cl, nil
}

func textOf(n *xmlquery.Node, path string) string {
	found := xmlquery.FindOne(n, path)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.InnerText())
}

// Add inserts or replaces a code by value.
func (cl *Codelist) Add(c Code) { cl.codes[c.Value] = c }

// Contains reports whether value is a code in the list.
func (cl *Codelist) Contains(value string) bool {
	_, ok := cl.codes[value]
	return ok
}

// Len returns the number of codes.
func (cl *Codelist) Len() int { return len(cl.codes) }

// Codes returns the codes in unspecified order.
func (cl *Codelist) Codes() []Code {
	out := make([]Code, 0, len(cl.codes))
	for _, c := range cl.codes {
		out = append(out, c)
	}
	return out
}

// Copy returns a deep copy, so callers can modify the result without
// affecting shared default data.
func (cl *Codelist) Copy() *Codelist {
	out := New(cl.Name)
	for v, c := range cl.codes {
		out.codes[v] = c
	}
	return out
}
