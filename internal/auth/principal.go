package auth

// Principal is the authenticated caller as seen by the call engine.
//
// CanOverrideGates is computed from the role by the rbac package when the
// principal is built; engine operations that accept an override reason check it
// instead of trusting callers to have done so.
type Principal struct {
	UserID           string
	OrganizationID   string
	Role             string
	CanOverrideGates bool
	IPAddress        string
}

// Valid reports whether the principal carries the tenant-scoping fields.
func (p Principal) Valid() bool {
	return p.UserID != "" && p.OrganizationID != ""
}
