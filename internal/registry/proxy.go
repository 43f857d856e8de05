package registry

import (
	"github.com/criteo/install-registry/internal/version"
)

// Proxy holds every known version of one entity id. Versions are kept in
// insertion order; the first value inserted for a version wins.
type Proxy[T any] struct {
	id       string
	versions []version.Identifier
	values   map[string]T
}

// NewProxy creates an empty proxy for id
func NewProxy[T any](id string) *Proxy[T] {
	return &Proxy[T]{
		id:     id,
		values: make(map[string]T),
	}
}

// ID returns the entity id the proxy holds versions of
func (p *Proxy[T]) ID() string {
	return p.id
}

// Insert stores val under v. It returns false, leaving the proxy untouched,
// when v is already present.
func (p *Proxy[T]) Insert(v version.Identifier, val T) bool {
	key := v.String()
	if _, exists := p.values[key]; exists {
		return false
	}
	p.versions = append(p.versions, v)
	p.values[key] = val
	return true
}

// Lookup returns the value stored under exactly v
func (p *Proxy[T]) Lookup(v version.Identifier) (T, bool) {
	val, ok := p.values[v.String()]
	return val, ok
}

// Latest returns the value of the highest ranked version
func (p *Proxy[T]) Latest() (T, bool) {
	v, ok := version.Latest(p.versions)
	if !ok {
		var zero T
		return zero, false
	}
	return p.Lookup(v)
}

// Earliest returns the value of the lowest ranked version
func (p *Proxy[T]) Earliest() (T, bool) {
	v, ok := version.Earliest(p.versions)
	if !ok {
		var zero T
		return zero, false
	}
	return p.Lookup(v)
}

// Remove deletes v and reports whether it was present
func (p *Proxy[T]) Remove(v version.Identifier) bool {
	key := v.String()
	if _, exists := p.values[key]; !exists {
		return false
	}
	delete(p.values, key)
	for i, existing := range p.versions {
		if existing.String() == key {
			p.versions = append(p.versions[:i], p.versions[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of versions held
func (p *Proxy[T]) Len() int {
	return len(p.versions)
}

// Versions returns the held versions in insertion order
func (p *Proxy[T]) Versions() []version.Identifier {
	return append([]version.Identifier(nil), p.versions...)
}

// Values returns the held values in insertion order
func (p *Proxy[T]) Values() []T {
	out := make([]T, 0, len(p.versions))
	for _, v := range p.versions {
		out = append(out, p.values[v.String()])
	}
	return out
}
