package version

// Compare orders two identifiers of the same entity id.
//
// Equal identifiers compare 0 and differing majors compare by sign. Within one
// major version a compatible a sorts above b, anything else below. Two
// identifiers that differ only by qualifier are compatible in both directions,
// so Compare is not antisymmetric there; it is only used to rank versions of
// one id against each other, never as a general ordering.
func Compare(a, b Identifier) int {
	if a.Equal(b) {
		return 0
	}
	if a.Major != b.Major {
		if a.Major > b.Major {
			return 1
		}
		return -1
	}
	if a.IsCompatibleWith(b) {
		return 1
	}
	return -1
}

// Newer reports whether a ranks strictly above b.
func Newer(a, b Identifier) bool {
	return Compare(a, b) > 0
}

// Latest returns the highest ranked identifier, scanning in order so that ties
// keep the first one seen. Equivalent identifiers (differing only by
// qualifier) rank above each other both ways and count as a tie. ok is false
// for an empty slice.
func Latest(vs []Identifier) (latest Identifier, ok bool) {
	for i, v := range vs {
		if i == 0 || (Compare(v, latest) > 0 && !v.IsEquivalentTo(latest)) {
			latest = v
		}
	}
	return latest, len(vs) > 0
}

// Earliest is the counterpart of Latest. Equivalent identifiers never rank
// below each other, so the first one seen is kept.
func Earliest(vs []Identifier) (earliest Identifier, ok bool) {
	for i, v := range vs {
		if i == 0 || Compare(v, earliest) < 0 {
			earliest = v
		}
	}
	return earliest, len(vs) > 0
}
