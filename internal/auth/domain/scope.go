package domain

import (
	"slices"
	"time"
)

// Scope is a named permission a token can carry.
type Scope struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// ScopesWithin reports whether every scope in requested also appears in granted.
// An empty requested list is trivially within any grant.
func ScopesWithin(requested, granted []string) bool {
	for _, s := range requested {
		if !slices.Contains(granted, s) {
			return false
		}
	}
	return true
}
