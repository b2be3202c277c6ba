// ABOUTME: Version number parsing for the IATI Standard ("IATIver" format).
// ABOUTME: Strict grammar validation plus the registry of versions this build ships data for.
package version

import (
	"errors"
	"fmt"
	"regexp"
)

// iativerRe is the grammar for a valid IATIver version number string:
// major 1 with a two-digit minor 01–09 (optionally extended), or major >= 2
// with the analogous minor pattern. Anchored at both ends; no normalization
// is performed on a matching string.
var iativerRe = regexp.MustCompile(`^((1\.0[1-9])|(((1\d+)|([2-9](\d+)?))\.0[1-9](\d+)?))$`)

// ErrInvalidFormat is returned when a string is not a valid version number.
var ErrInvalidFormat = errors.New("not a valid IATI version number")

// ErrWrongType is returned by From when the dynamic value is not a string.
var ErrWrongType = errors.New("version must be a string")

// Version is an immutable, validated IATI Standard version number.
// The zero value is invalid; obtain one via Parse or From.
type Version struct {
	s string
}

// Parse validates s against the version grammar and returns it as a Version.
// The matched string is retained verbatim.
func Parse(s string) (Version, error) {
	if !iativerRe.MatchString(s) {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return Version{s: s}, nil
}

// From validates a dynamically typed value, as produced by JSON decoding or
// query-parameter plumbing. Non-string input fails with ErrWrongType.
func From(v any) (Version, error) {
	s, ok := v.(string)
	if !ok {
		return Version{}, fmt.Errorf("%w, got %T", ErrWrongType, v)
	}
	return Parse(s)
}

// String returns the version number exactly as it was parsed.
func (v Version) String() string { return v.s }

// IsZero reports whether v is the zero (unparsed) Version.
func (v Version) IsZero() bool { return v.s == "" }

// Known versions of the IATI Standard that this build ships default data for,
// ordered oldest to newest.
var Known = []string{"1.01", "1.02", "1.03", "1.04", "1.05", "2.01", "2.02"}

// Latest is the most recent version of the Standard supported by this build.
const Latest = "2.02"

// Default returns the latest known version.
func Default() Version { return Version{s: Latest} }

// DefaultIfEmpty returns v, or the latest known version when v is zero.
func DefaultIfEmpty(v Version) Version {
	if v.IsZero() {
		return Default()
	}
	return v
}

// IsKnown reports whether v is one of the versions this build ships data for.
// A version can be grammatically valid without being known.
func IsKnown(v Version) bool {
	for _, k := range Known {
		if v.s == k {
			return true
		}
	}
	return false
}
