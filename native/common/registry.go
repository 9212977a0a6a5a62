package common

import "creditnet/crypto"

// StaticRoles is a fixed in-memory role table, loaded from configuration at
// startup. Governance-driven role mutation lives outside this module.
type StaticRoles struct {
	grants map[string]map[string]struct{}
}

// NewStaticRoles constructs an empty role table.
func NewStaticRoles() *StaticRoles {
	return &StaticRoles{grants: make(map[string]map[string]struct{})}
}

// Grant adds the address to the role's member set.
func (r *StaticRoles) Grant(role string, addr crypto.Address) {
	if r == nil {
		return
	}
	members, ok := r.grants[role]
	if !ok {
		members = make(map[string]struct{})
		r.grants[role] = members
	}
	members[string(addr.Bytes())] = struct{}{}
}

// HasRole implements RoleView.
func (r *StaticRoles) HasRole(role string, addr crypto.Address) bool {
	if r == nil {
		return false
	}
	members, ok := r.grants[role]
	if !ok {
		return false
	}
	_, ok = members[string(addr.Bytes())]
	return ok
}

// StaticPauses is a fixed pause table loaded from configuration.
type StaticPauses map[string]bool

// IsPaused implements PauseView.
func (p StaticPauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	return p[module]
}
