package domain

import "fmt"

// APIVersion identifies a version of the HTTP API. Reviewer tokens record
// the version they were minted against and every versioned route group
// declares its own; the two are compared when a token is presented.
type APIVersion string

// APIVersionV1 is the only version currently served.
const APIVersionV1 APIVersion = "v1"

// ordinal orders known versions, newer versions higher.
var ordinal = map[APIVersion]int{
	APIVersionV1: 1,
}

// ParseAPIVersion returns the APIVersion for s, or an error for versions
// this build does not know.
func ParseAPIVersion(s string) (APIVersion, error) {
	v := APIVersion(s)
	if _, ok := ordinal[v]; !ok {
		return "", fmt.Errorf("unknown API version: %s", s)
	}
	return v, nil
}

func (v APIVersion) String() string { return string(v) }

// IsNil reports whether the version is unset.
func (v APIVersion) IsNil() bool { return v == "" }

// IsAtLeast reports whether v is the same as or newer than other. Token
// validation calls this with the route version as v, so tokens minted for
// a newer API than the route serves are rejected while older tokens pass.
// Unknown versions sort below every known one.
func (v APIVersion) IsAtLeast(other APIVersion) bool {
	vo, ok := ordinal[v]
	if !ok {
		return false
	}
	oo, ok := ordinal[other]
	if !ok {
		return true
	}
	return vo >= oo
}

// DefaultVersion is the version stamped into newly minted tokens.
func DefaultVersion() APIVersion {
	return APIVersionV1
}
