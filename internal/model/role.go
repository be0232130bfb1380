package model

import "strings"

// RoleTier is the single role held by an account.
type RoleTier string

const (
	RoleSuperAdmin RoleTier = "super_admin"
	RoleAdmin      RoleTier = "admin"
	RoleUser       RoleTier = "user"
)

// tierRank orders tiers from least to most privileged.
var tierRank = map[RoleTier]int{
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// ParseRoleTier converts a stored role name to a RoleTier.
// Unknown or empty values map to RoleUser (least privilege).
func ParseRoleTier(s string) RoleTier {
	switch RoleTier(strings.ToLower(strings.TrimSpace(s))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Valid reports whether r is one of the known tiers.
func (r RoleTier) Valid() bool {
	_, ok := tierRank[r]
	return ok
}

// IsAdminTier reports whether r is super_admin or admin.
func (r RoleTier) IsAdminTier() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// IsSuperAdminTier reports whether r is super_admin.
func (r RoleTier) IsSuperAdminTier() bool {
	return r == RoleSuperAdmin
}

// LeastPrivileged returns whichever of a and b grants fewer privileges.
func LeastPrivileged(a, b RoleTier) RoleTier {
	if tierRank[ParseRoleTier(string(a))] <= tierRank[ParseRoleTier(string(b))] {
		return ParseRoleTier(string(a))
	}
	return ParseRoleTier(string(b))
}

// RolePolicy decides the role of a new registrant from the number of
// admin-tier accounts that exist at the moment of registration.
type RolePolicy struct {
	// TopTier is given to the very first registrant.
	TopTier RoleTier
	// AdminSlots is how many registrants after the first become RoleAdmin.
	AdminSlots int
}

// TieredRolePolicy: first → super_admin, next slots → admin, rest → user.
func TieredRolePolicy(slots int) RolePolicy {
	if slots < 0 {
		slots = 0
	}
	return RolePolicy{TopTier: RoleSuperAdmin, AdminSlots: slots}
}

// SimpleRolePolicy: first → admin, rest → user.
func SimpleRolePolicy() RolePolicy {
	return RolePolicy{TopTier: RoleAdmin}
}

// RolePolicyFor builds a policy from its configuration name.
func RolePolicyFor(scheme string, slots int) RolePolicy {
	if strings.EqualFold(scheme, "simple") {
		return SimpleRolePolicy()
	}
	return TieredRolePolicy(slots)
}

// Assign returns the role for a registrant who observed adminCount
// admin-tier accounts.
func (p RolePolicy) Assign(adminCount int) RoleTier {
	switch {
	case adminCount <= 0:
		return p.TopTier
	case adminCount <= p.AdminSlots:
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Grant caps a requested role at what the policy allows for adminCount.
// An empty or unknown request receives the allowed role.
func (p RolePolicy) Grant(requested RoleTier, adminCount int) RoleTier {
	allowed := p.Assign(adminCount)
	if !requested.Valid() {
		return allowed
	}
	return LeastPrivileged(requested, allowed)
}
