// Package domain holds the core gateway types.
package domain

import "time"

// Claims holds the verified claims of a decoded token.
type Claims struct {
	// Issuer is the iss claim
	Issuer string

	// Subject is the sub claim
	Subject string

	// Audience is the aud claim
	Audience []string

	// ExpiresAt is the exp claim
	ExpiresAt time.Time

	// IssuedAt is the iat claim
	IssuedAt time.Time

	// NotBefore is the nbf claim, zero if absent
	NotBefore time.Time

	// Raw holds all claims as decoded from the payload
	Raw map[string]any
}

// Get returns a raw claim by name.
func (c *Claims) Get(name string) (any, bool) {
	if c.Raw == nil {
		return nil, false
	}
	v, ok := c.Raw[name]
	return v, ok
}

// GetString returns a raw claim as a string, or "" if absent or not a string.
func (c *Claims) GetString(name string) string {
	if v, ok := c.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	// Username is the login identity, taken from preferred_username with
	// sub as fallback.
	Username string

	// Roles are the granted role names, possibly empty.
	Roles []string

	// TenantID identifies the tenant the token was issued for, if any.
	TenantID string

	// Claims retains the full verified claim set.
	Claims *Claims
}

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
