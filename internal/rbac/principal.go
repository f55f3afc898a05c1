package rbac

import (
	"context"
	"errors"

	"callos/internal/auth"
)

var ErrNoIdentity = errors.New("rbac: identity missing from context")

// NewPrincipal builds the engine-facing principal for an identity.
func NewPrincipal(userID, organizationID, role string) auth.Principal {
	return auth.Principal{
		UserID:           userID,
		OrganizationID:   organizationID,
		Role:             role,
		CanOverrideGates: CanOverrideGates(role),
	}
}

// PrincipalFromContext returns the caller stored by auth.RequireAccessToken, or builds one
// from bare identity values when only those are present.
func PrincipalFromContext(ctx context.Context) (auth.Principal, error) {
	if p, ok := auth.PrincipalFrom(ctx); ok {
		return p, nil
	}
	uid, err := auth.UserID(ctx)
	if err != nil {
		return auth.Principal{}, ErrNoIdentity
	}
	org, err := auth.OrganizationID(ctx)
	if err != nil {
		return auth.Principal{}, ErrNoIdentity
	}
	role, err := auth.Role(ctx)
	if err != nil {
		return auth.Principal{}, ErrNoIdentity
	}
	p := NewPrincipal(uid, org, role)
	p.IPAddress = auth.ClientIP(ctx)
	return p, nil
}
