package domain

import (
	"sort"
	"strings"
)

// Role represents one of the five positions, 1 through 5.
type Role int

const (
	RoleCarry       Role = 1
	RoleMid         Role = 2
	RoleOfflane     Role = 3
	RoleSoftSupport Role = 4
	RoleHardSupport Role = 5
)

// AllRoles contains all valid roles in position order.
var AllRoles = []Role{RoleCarry, RoleMid, RoleOfflane, RoleSoftSupport, RoleHardSupport}

// IsValid checks if a role is valid.
func (r Role) IsValid() bool {
	return r >= RoleCarry && r <= RoleHardSupport
}

// DisplayName returns a user-friendly display name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleCarry:
		return "Carry"
	case RoleMid:
		return "Mid"
	case RoleOfflane:
		return "Offlane"
	case RoleSoftSupport:
		return "Soft Support"
	case RoleHardSupport:
		return "Hard Support"
	default:
		return "Unknown"
	}
}

// RoleSet is a bitmask over the five positions. Bit i-1 is set when position
// i is preferred. The zero value is the empty set.
type RoleSet uint8

// NewRoleSet builds a set from role values, ignoring invalid ones.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		if r.IsValid() {
			s |= 1 << (r - 1)
		}
	}
	return s
}

// RoleSetFromInts builds a set from raw position numbers.
func RoleSetFromInts(positions []int) RoleSet {
	roles := make([]Role, len(positions))
	for i, p := range positions {
		roles[i] = Role(p)
	}
	return NewRoleSet(roles...)
}

// AllRolesSet is the set containing every position.
var AllRolesSet = NewRoleSet(AllRoles...)

// Has reports whether the set contains the role.
func (s RoleSet) Has(r Role) bool {
	if !r.IsValid() {
		return false
	}
	return s&(1<<(r-1)) != 0
}

// Add returns the set with the role added.
func (s RoleSet) Add(r Role) RoleSet {
	if !r.IsValid() {
		return s
	}
	return s | 1<<(r-1)
}

// Len returns the number of roles in the set.
func (s RoleSet) Len() int {
	n := 0
	for _, r := range AllRoles {
		if s.Has(r) {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the set contains no roles.
func (s RoleSet) IsEmpty() bool {
	return s == 0
}

// Roles returns the contained roles in ascending position order.
func (s RoleSet) Roles() []Role {
	var roles []Role
	for _, r := range AllRoles {
		if s.Has(r) {
			roles = append(roles, r)
		}
	}
	return roles
}

// Ints returns the contained positions as plain ints, ascending.
func (s RoleSet) Ints() []int {
	roles := s.Roles()
	out := make([]int, len(roles))
	for i, r := range roles {
		out[i] = int(r)
	}
	sort.Ints(out)
	return out
}

// String renders the set as "1/3/5" style notation.
func (s RoleSet) String() string {
	if s.IsEmpty() {
		return "-"
	}
	parts := make([]string, 0, 5)
	for _, r := range AllRoles {
		if s.Has(r) {
			parts = append(parts, string('0'+byte(r)))
		}
	}
	return strings.Join(parts, "/")
}
