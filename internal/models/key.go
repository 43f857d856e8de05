package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/criteo/install-registry/internal/version"
)

// ErrInvalidKey is returned for id_version strings that cannot be split
var ErrInvalidKey = errors.New("invalid id_version key")

// Key is the (unique id, version) primary key of a registry entry
type Key struct {
	ID      string
	Version version.Identifier
}

// NewKey creates a key
func NewKey(id string, v version.Identifier) Key {
	return Key{ID: id, Version: v}
}

// String renders the id_version form used in directory names and the
// activation record
func (k Key) String() string {
	return k.ID + "_" + k.Version.String()
}

// Equal compares id and full version
func (k Key) Equal(other Key) bool {
	return k.ID == other.ID && k.Version.Equal(other.Version)
}

// MarshalText implements encoding.TextMarshaler
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey splits an id_version string at its last underscore
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	idx := strings.LastIndex(s, "_")
	if idx <= 0 || idx == len(s)-1 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	v, err := version.ParseStrict(s[idx+1:])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, s, err)
	}
	return Key{ID: s[:idx], Version: v}, nil
}

// KeySet groups keys by kind
type KeySet struct {
	Products   []Key `json:"products,omitempty"`
	Components []Key `json:"components,omitempty"`
	Plugins    []Key `json:"plugins,omitempty"`
	Fragments  []Key `json:"fragments,omitempty"`
}

// Empty reports whether the set holds no key
func (ks KeySet) Empty() bool {
	return len(ks.Products) == 0 && len(ks.Components) == 0 &&
		len(ks.Plugins) == 0 && len(ks.Fragments) == 0
}

// Add appends k to the list for kind
func (ks *KeySet) Add(kind Kind, k Key) {
	switch kind {
	case KindProduct:
		ks.Products = append(ks.Products, k)
	case KindComponent:
		ks.Components = append(ks.Components, k)
	case KindPlugin:
		ks.Plugins = append(ks.Plugins, k)
	case KindFragment:
		ks.Fragments = append(ks.Fragments, k)
	}
}

// Merge appends all keys of other
func (ks *KeySet) Merge(other KeySet) {
	ks.Products = append(ks.Products, other.Products...)
	ks.Components = append(ks.Components, other.Components...)
	ks.Plugins = append(ks.Plugins, other.Plugins...)
	ks.Fragments = append(ks.Fragments, other.Fragments...)
}

// Keys returns the list for kind
func (ks KeySet) Keys(kind Kind) []Key {
	switch kind {
	case KindProduct:
		return ks.Products
	case KindComponent:
		return ks.Components
	case KindPlugin:
		return ks.Plugins
	case KindFragment:
		return ks.Fragments
	default:
		return nil
	}
}

// Contains reports whether k is listed under kind
func (ks KeySet) Contains(kind Kind, k Key) bool {
	for _, existing := range ks.Keys(kind) {
		if existing.Equal(k) {
			return true
		}
	}
	return false
}

// Strings renders keys in id_version form
func Strings(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
