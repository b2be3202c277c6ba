// ABOUTME: Default IATI Standard data: codelists, rulesets, and schemas by version.
// ABOUTME: An explicit per-process cache object; accessors return defensive copies.
package defaults

import (
	"fmt"
	"sync"

	"embed"

	"github.com/openaid-dev/aidcheck/internal/codelist"
	"github.com/openaid-dev/aidcheck/internal/ruleset"
	"github.com/openaid-dev/aidcheck/internal/schema"
	"github.com/openaid-dev/aidcheck/internal/version"
)

//go:embed data
var dataFS embed.FS

// availability lists, per codelist, the versions of the Standard at which it
// exists. A nil entry means every known version.
var availability = map[string][]string{
	"Country":      nil,
	"Sector":       nil,
	"Version":      nil,
	"AidTypeFlag":  {"1.01", "1.02", "1.03", "1.04", "1.05"},
	"BudgetStatus": {"2.02"},
}

// Store is a cache of default Standard data, loaded lazily per version and
// shared for the process lifetime. Construct one at startup and inject it;
// there is no package-level instance. Safe for concurrent use. Values
// handed out are copies — mutating them cannot corrupt the cache.
type Store struct {
	mu        sync.Mutex
	codelists map[string]map[string]*codelist.Codelist
	rulesets  map[string]*ruleset.Ruleset
	schemas   map[string]*schema.Schema
	mapping   codelist.Mapping
}

// NewStore returns an empty Store. Data loads on first access.
func NewStore() *Store {
	return &Store{
		codelists: make(map[string]map[string]*codelist.Codelist),
		rulesets:  make(map[string]*ruleset.Ruleset),
		schemas:   make(map[string]*schema.Schema),
	}
}

// resolve applies the zero-version default and rejects versions this build
// has no data for.
func resolve(v version.Version) (version.Version, error) {
	v = version.DefaultIfEmpty(v)
	if !version.IsKnown(v) {
		return version.Version{}, fmt.Errorf("defaults: %q is not a known version of the Standard (known: %v)", v, version.Known)
	}
	return v, nil
}

// Codelists returns all default codelists available at a version, keyed by
// name, as independent copies.
func (s *Store) Codelists(v version.Version) (map[string]*codelist.Codelist, error) {
	v, err := resolve(v)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cached, err := s.codelistsLocked(v)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*codelist.Codelist, len(cached))
	for name, cl := range cached {
		out[name] = cl.Copy()
	}
	return out, nil
}

// Codelist returns the named default codelist at a version, as a copy.
// Unknown names, and names not available at the version, are errors.
func (s *Store) Codelist(name string, v version.Version) (*codelist.Codelist, error) {
	v, err := resolve(v)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cached, err := s.codelistsLocked(v)
	if err != nil {
		return nil, err
	}
	cl, ok := cached[name]
	if !ok {
		return nil, fmt.Errorf("defaults: there is no default codelist in version %s of the Standard with the name %q", v, name)
	}
	return cl.Copy(), nil
}

// codelistsLocked loads and caches the codelists for v. Caller holds s.mu.
func (s *Store) codelistsLocked(v version.Version) (map[string]*codelist.Codelist, error) {
	if cached, ok := s.codelists[v.String()]; ok {
		return cached, nil
	}

	loaded := make(map[string]*codelist.Codelist)
	for name, versions := range availability {
		if !availableAt(versions, v) {
			continue
		}
		raw, err := dataFS.ReadFile("data/codelists/" + name + ".xml")
		if err != nil {
			return nil, fmt.Errorf("defaults: read codelist %s: %w", name, err)
		}
		cl, err := codelist.FromXML(name, string(raw))
		if err != nil {
			return nil, fmt.Errorf("defaults: parse codelist %s: %w", name, err)
		}
		loaded[cl.Name] = cl
	}
	s.codelists[v.String()] = loaded
	return loaded, nil
}

func availableAt(versions []string, v version.Version) bool {
	if versions == nil {
		return true
	}
	for _, s := range versions {
		if s == v.String() {
			return true
		}
	}
	return false
}

// Ruleset returns the standard ruleset for a version. Rulesets are immutable
// after construction, so the cached instance is shared.
func (s *Store) Ruleset(v version.Version) (*ruleset.Ruleset, error) {
	v, err := resolve(v)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.rulesets[v.String()]; ok {
		return cached, nil
	}

	raw, err := dataFS.ReadFile("data/ruleset_standard.json")
	if err != nil {
		return nil, fmt.Errorf("defaults: read standard ruleset: %w", err)
	}
	rs, err := ruleset.New(string(raw), ruleset.DefaultMeta())
	if err != nil {
		return nil, fmt.Errorf("defaults: standard ruleset: %w", err)
	}
	s.rulesets[v.String()] = rs
	return rs, nil
}

// RulesetSchema returns the meta-schema document that ruleset definitions
// are validated against.
func (s *Store) RulesetSchema() []byte {
	return ruleset.MetaSchemaJSON()
}

// StandardRulesetJSON returns the raw standard ruleset definition.
func (s *Store) StandardRulesetJSON() ([]byte, error) {
	return dataFS.ReadFile("data/ruleset_standard.json")
}

// Mapping returns the codelist mapping shipped with this build.
func (s *Store) Mapping() (codelist.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping != nil {
		return s.mapping, nil
	}
	raw, err := dataFS.ReadFile("data/mapping.xml")
	if err != nil {
		return nil, fmt.Errorf("defaults: read mapping: %w", err)
	}
	m, err := codelist.ParseMapping(string(raw))
	if err != nil {
		return nil, fmt.Errorf("defaults: %w", err)
	}
	s.mapping = m
	return m, nil
}

// ActivitySchema returns the default activity schema at a version. With
// populate, the schema carries the version's codelists, the codelist
// mapping, and the standard ruleset. The result is a copy; modifying it
// does not affect later calls.
func (s *Store) ActivitySchema(v version.Version, populate bool) (*schema.Schema, error) {
	return s.schemaFor(v, schema.ActivityRoot, "data/schemas/iati-activities-schema.xsd", populate)
}

// OrganisationSchema returns the default organisation schema at a version.
func (s *Store) OrganisationSchema(v version.Version, populate bool) (*schema.Schema, error) {
	return s.schemaFor(v, schema.OrganisationRoot, "data/schemas/iati-organisations-schema.xsd", populate)
}

func (s *Store) schemaFor(v version.Version, rootName, path string, populate bool) (*schema.Schema, error) {
	v, err := resolve(v)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := v.String() + "/" + rootName
	base, ok := s.schemas[key]
	if !ok {
		raw, err := dataFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("defaults: read schema %s: %w", path, err)
		}
		base, err = schema.New(rootName, string(raw))
		if err != nil {
			return nil, fmt.Errorf("defaults: schema %s: %w", path, err)
		}
		s.schemas[key] = base
	}

	out := base.Copy()
	if !populate {
		return out, nil
	}

	codelists, err := s.codelistsLocked(v)
	if err != nil {
		return nil, err
	}
	for _, cl := range codelists {
		out.AddCodelist(cl.Copy())
	}

	if s.mapping == nil {
		raw, err := dataFS.ReadFile("data/mapping.xml")
		if err != nil {
			return nil, fmt.Errorf("defaults: read mapping: %w", err)
		}
		m, err := codelist.ParseMapping(string(raw))
		if err != nil {
			return nil, fmt.Errorf("defaults: %w", err)
		}
		s.mapping = m
	}
	out.Mapping = s.mapping

	rs, ok := s.rulesets[v.String()]
	if !ok {
		raw, err := dataFS.ReadFile("data/ruleset_standard.json")
		if err != nil {
			return nil, fmt.Errorf("defaults: read standard ruleset: %w", err)
		}
		rs, err = ruleset.New(string(raw), ruleset.DefaultMeta())
		if err != nil {
			return nil, fmt.Errorf("defaults: standard ruleset: %w", err)
		}
		s.rulesets[v.String()] = rs
	}
	out.AddRuleset(rs)

	return out, nil
}
