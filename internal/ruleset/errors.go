// ABOUTME: Error taxonomy for ruleset parsing, meta-schema validation, and rule construction.
// ABOUTME: All construction failures abort the enclosing object; evaluation never errors.
package ruleset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat is returned when ruleset input is not well-formed JSON.
	ErrInvalidFormat = errors.New("ruleset: malformed JSON")

	// ErrDuplicateKey is returned when a JSON object in a ruleset definition
	// contains the same key twice at the same nesting level. Standard JSON
	// parsers silently keep the last value; ambiguous definitions are rejected
	// here instead.
	ErrDuplicateKey = errors.New("ruleset: duplicate JSON object key")

	// ErrSchemaInvalid is returned when a parsed definition fails validation
	// against the ruleset meta-schema. The schema library's native error is
	// wrapped, never exposed as the failure type.
	ErrSchemaInvalid = errors.New("ruleset: definition does not conform to meta-schema")

	// ErrUnknownRuleType is returned when a definition names a rule type
	// outside the recognized set. The whole construction fails; no rules from
	// sibling entries are retained.
	ErrUnknownRuleType = errors.New("ruleset: unrecognized rule type")

	// ErrInvalidCase is returned when a single rule's case does not conform to
	// the meta-schema subsection for its type.
	ErrInvalidCase = errors.New("ruleset: case is invalid for rule type")
)

// CaseError reports a case that failed validation against the meta-schema
// subsection for its rule type. It carries enough context to pinpoint the bad
// ruleset entry. Unwraps to ErrInvalidCase.
type CaseError struct {
	Type      RuleType
	XPathBase string
	Case      map[string]any
	Reason    string
}

func (e *CaseError) Error() string {
	return fmt.Sprintf("%v %q (xpath_base %q): %s; case: %v",
		ErrInvalidCase, e.Type, e.XPathBase, e.Reason, e.Case)
}

func (e *CaseError) Unwrap() error { return ErrInvalidCase }

// ConfigError indicates a programming error rather than bad input data: a
// rule type that has no meta-schema subsection, which means a variant was
// registered without a matching schema definition (or vice versa).
type ConfigError struct {
	Type RuleType
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ruleset: no meta-schema subsection for rule type %q (missing variant registration?)", e.Type)
}
