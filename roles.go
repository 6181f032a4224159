package storefront

import (
	"sort"
	"strings"
)

const (
	// RoleUser is granted to every registered shopper
	RoleUser = "USER"
	// RoleAdmin is granted to store administrators
	RoleAdmin = "ADMIN"
)

// RoleSet is a set of normalized role names.
type RoleSet map[string]struct{}

// NewRoleSet builds a RoleSet, normalizing every name and skipping blanks.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if n := NormalizeRole(r); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// NormalizeRole upper-cases a role name and strips the Spring style ROLE_
// prefix, so "admin", "Admin" and "ROLE_ADMIN" compare equal.
func NormalizeRole(role string) string {
	r := strings.ToUpper(strings.TrimSpace(role))
	return strings.TrimPrefix(r, "ROLE_")
}

// Has checks if the set contains role (case-insensitive)
func (s RoleSet) Has(role string) bool {
	_, ok := s[NormalizeRole(role)]
	return ok
}

// Intersects reports whether any of roles is in the set.
func (s RoleSet) Intersects(roles ...string) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Len returns the number of roles.
func (s RoleSet) Len() int {
	return len(s)
}

// Slice returns the roles sorted alphabetically.
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}
