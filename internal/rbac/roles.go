package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleAgent      = "agent"
	RoleAnalyst    = "analyst"
	RoleSuperAdmin = "super_admin"
)

// Managers is the set of roles allowed to supervise calls: override gates,
// edit playbooks and read team analytics.
var Managers = []string{RoleOwner, RoleAdmin, RoleManager}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// CanOverrideGates reports whether role may supply an override reason for a
// failed qualification gate or an out-of-sequence milestone.
func CanOverrideGates(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleManager, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

func IsKnownRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleManager, RoleAgent, RoleAnalyst, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
