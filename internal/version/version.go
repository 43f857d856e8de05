// Package version parses and orders the three-part version identifiers carried
// by products, components, plugins and fragments.
package version

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

var numericSegment = regexp.MustCompile(`^(0|[1-9][0-9]*)$`)

// Identifier is a major.minor.service version with an optional qualifier.
// The qualifier never takes part in compatibility decisions.
type Identifier struct {
	Major     uint32
	Minor     uint32
	Service   uint32
	Qualifier string

	unparsed bool
	raw      string
}

// New builds an identifier from its parts.
func New(major, minor, service uint32, qualifier string) Identifier {
	return Identifier{Major: major, Minor: minor, Service: service, Qualifier: qualifier}
}

// Zero is the 0.0.0 identifier.
var Zero = Identifier{}

// Parse reads "major[.minor[.service[.qualifier]]]". Malformed input yields
// 0.0.0 with Unparsed reporting true, so every entity keeps a total-orderable
// version.
func Parse(s string) Identifier {
	v, err := ParseStrict(s)
	if err != nil {
		return Identifier{unparsed: true, raw: s}
	}
	return v
}

// ParseStrict is Parse without the zero fallback.
func ParseStrict(s string) (Identifier, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Identifier{}, fmt.Errorf("version is empty")
	}

	parts := strings.SplitN(trimmed, ".", 4)
	numeric := parts
	qualifier := ""
	if len(parts) == 4 {
		numeric = parts[:3]
		qualifier = parts[3]
		if qualifier == "" {
			return Identifier{}, fmt.Errorf("version %q has an empty qualifier", s)
		}
	}
	for _, p := range numeric {
		if !numericSegment.MatchString(p) {
			return Identifier{}, fmt.Errorf("version %q: segment %q is not a decimal number", s, p)
		}
	}

	// semver accepts partial cores ("1", "1.2") and does the range checks.
	core, err := semver.NewVersion(strings.Join(numeric, "."))
	if err != nil {
		return Identifier{}, fmt.Errorf("version %q: %w", s, err)
	}
	if core.Major() > math.MaxUint32 || core.Minor() > math.MaxUint32 || core.Patch() > math.MaxUint32 {
		return Identifier{}, fmt.Errorf("version %q: segment out of range", s)
	}

	return Identifier{
		Major:     uint32(core.Major()),
		Minor:     uint32(core.Minor()),
		Service:   uint32(core.Patch()),
		Qualifier: qualifier,
		raw:       s,
	}, nil
}

// MustParse panics on malformed input. Intended for tests and constants.
func MustParse(s string) Identifier {
	v, err := ParseStrict(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Unparsed reports whether the identifier is the fallback produced by Parse
// for malformed input.
func (v Identifier) Unparsed() bool {
	return v.unparsed
}

// Raw returns the text the identifier was parsed from, if any.
func (v Identifier) Raw() string {
	return v.raw
}

// String renders major.minor.service[.qualifier].
func (v Identifier) String() string {
	if v.Qualifier == "" {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Service)
	}
	return fmt.Sprintf("%d.%d.%d.%s", v.Major, v.Minor, v.Service, v.Qualifier)
}

// Equal compares all four parts.
func (v Identifier) Equal(other Identifier) bool {
	return v.IsEquivalentTo(other) && v.Qualifier == other.Qualifier
}

// IsEquivalentTo ignores the qualifier.
func (v Identifier) IsEquivalentTo(other Identifier) bool {
	return v.Major == other.Major && v.Minor == other.Minor && v.Service == other.Service
}

// IsCompatibleWith reports whether v has the same major version as other and
// (minor, service) at least as high.
func (v Identifier) IsCompatibleWith(other Identifier) bool {
	if v.Major != other.Major {
		return false
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	return v.Service >= other.Service
}

// MarshalText implements encoding.TextMarshaler.
func (v Identifier) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler with the Parse fallback.
func (v *Identifier) UnmarshalText(text []byte) error {
	*v = Parse(string(text))
	return nil
}
