package model

import (
	"errors"
	"strings"
)

// Identity is the canonical textual form of a caller principal.
type Identity string

// Anonymous is the distinguished caller with no purchase or authorship rights.
const Anonymous Identity = "2vxsx-fae"

// IsAnonymous reports whether id carries no rights. The zero value is anonymous too.
func (id Identity) IsAnonymous() bool { return id == "" || id == Anonymous }

func (id Identity) String() string {
	if id == "" {
		return string(Anonymous)
	}
	return string(id)
}

// ParseIdentity normalises a principal received from the identity provider or the ledger.
// Textual principals are lowercase groups of [a-z0-9] separated by single dashes.
func ParseIdentity(s string) (Identity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", errors.New("empty identity")
	}
	prevDash := true
	for _, r := range s {
		switch {
		case r == '-':
			if prevDash {
				return "", errors.New("malformed identity: misplaced dash")
			}
			prevDash = true
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			prevDash = false
		default:
			return "", errors.New("malformed identity: invalid character")
		}
	}
	if prevDash {
		return "", errors.New("malformed identity: trailing dash")
	}
	return Identity(s), nil
}
