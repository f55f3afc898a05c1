package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Identity is who a token speaks for. Every token is scoped to one organization.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           string
}

// Claims are the only supported JWT claims shape for this service.
// Override authority is derived from Role server-side; it is never a claim.
type Claims struct {
	jwt.RegisteredClaims

	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	Role           string    `json:"role"`
	TokenType      TokenType `json:"token_type"`
}

func newClaims(id Identity, typ TokenType) Claims {
	c := Claims{UserID: id.UserID, OrganizationID: id.OrganizationID, TokenType: typ}
	// refresh tokens do not carry role
	if typ == TokenTypeAccess {
		c.Role = id.Role
	}
	return c
}

func (c Claims) Identity() Identity {
	return Identity{UserID: c.UserID, OrganizationID: c.OrganizationID, Role: c.Role}
}

func (c Claims) check(expected TokenType) error {
	switch {
	case c.TokenType != expected:
		return errors.New("token_type mismatch")
	case c.UserID == "":
		return errors.New("user_id missing")
	case c.OrganizationID == "":
		return errors.New("organization_id missing")
	case expected == TokenTypeAccess && c.Role == "":
		return errors.New("role missing in access token")
	}
	return nil
}
