package matcher

import (
	"fmt"
	"strings"
)

// Policy decides when a freshly aggregated embedding overwrites the stored credential.
type Policy string

const (
	// PolicyAlways overwrites after every completed cycle, matched or not.
	PolicyAlways Policy = "always"
	// PolicyOnMatch overwrites on enrollment or a confirmed match.
	PolicyOnMatch Policy = "on-match"
	// PolicyEnrollOnly writes only when nothing is stored.
	PolicyEnrollOnly Policy = "enroll-only"
)

// Policies lists the accepted policy names.
var Policies = []Policy{PolicyAlways, PolicyOnMatch, PolicyEnrollOnly}

// ParsePolicy parses a policy name, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Policies {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown overwrite policy %q (valid: always, on-match, enroll-only)", s)
}

func (p Policy) allows(d Decision) bool {
	switch p {
	case PolicyAlways:
		return true
	case PolicyOnMatch:
		return d.Kind == KindEnrollment || d.Kind == KindMatch
	case PolicyEnrollOnly:
		return d.Kind == KindEnrollment
	default:
		return false
	}
}
