package domain

import "strings"

// RatingScope is the image level a rating applies to. It selects the
// destination table and the parent identifier column. The zero value is
// ScopeInvalid and is never persisted.
type RatingScope int

const (
	ScopeInvalid RatingScope = iota
	ScopeAmp
	ScopeCCD
	ScopeFPA
	ScopeFootprint
)

var scopeNames = map[RatingScope]string{
	ScopeInvalid:   "INVALID",
	ScopeAmp:       "AMP",
	ScopeCCD:       "CCD",
	ScopeFPA:       "FPA",
	ScopeFootprint: "FOOTPRINT",
}

// Scopes lists the persistable scopes in declaration order.
func Scopes() []RatingScope {
	return []RatingScope{ScopeAmp, ScopeCCD, ScopeFPA, ScopeFootprint}
}

// Valid reports whether s is one of AMP, CCD, FPA or FOOTPRINT.
func (s RatingScope) Valid() bool {
	switch s {
	case ScopeAmp, ScopeCCD, ScopeFPA, ScopeFootprint:
		return true
	default:
		return false
	}
}

func (s RatingScope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return scopeNames[ScopeInvalid]
}

// ParseScope maps an enum name (case-insensitive) to a persistable scope.
func ParseScope(name string) (RatingScope, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "AMP":
		return ScopeAmp, nil
	case "CCD":
		return ScopeCCD, nil
	case "FPA":
		return ScopeFPA, nil
	case "FOOTPRINT":
		return ScopeFootprint, nil
	}
	return ScopeInvalid, InvalidArgument("unknown rating scope %q", name)
}
