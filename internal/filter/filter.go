// Package filter validates display names before they enter a session.
// It is a pure, synchronous boundary: text in, accepted text or rejection out.
package filter

import (
	"strings"
	"unicode"

	"quizhive/internal/domain"
)

const maxNameLen = 24

// NameFilter decides whether a display name is acceptable.
type NameFilter interface {
	Filter(name string) (string, error)
}

// Basic trims whitespace, enforces length and charset, and rejects names
// containing a blocked word.
type Basic struct {
	blocked []string
}

// NewBasic builds a filter with the given blocklist (matched case-insensitively
// as substrings). A nil blocklist is valid.
func NewBasic(blocked []string) *Basic {
	lowered := make([]string, 0, len(blocked))
	for _, w := range blocked {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			lowered = append(lowered, w)
		}
	}
	return &Basic{blocked: lowered}
}

// Filter returns the normalized name, or a validation error.
func (f *Basic) Filter(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.Validation("display name is empty")
	}
	if len(name) > maxNameLen {
		return "", domain.Validation("display name too long")
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != ' ' && r != '-' && r != '_' {
			return "", domain.Validation("display name contains invalid characters")
		}
	}
	lowered := strings.ToLower(name)
	for _, w := range f.blocked {
		if strings.Contains(lowered, w) {
			return "", domain.Validation("display name not allowed")
		}
	}
	return name, nil
}
