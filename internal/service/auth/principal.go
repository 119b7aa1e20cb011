package auth

import (
	"strings"

	"github.com/your-org/edge-gateway/internal/domain"
	"github.com/your-org/edge-gateway/pkg/errors"
)

// ExtractPrincipal maps verified claims to a normalized identity.
// Username comes from preferred_username with sub as fallback; roles
// come from the roles claim with authorities as fallback. Either roles
// claim may be a list of strings or one comma-separated string.
func ExtractPrincipal(claims *domain.Claims) (*domain.Principal, error) {
	if claims == nil {
		return nil, errors.NewGatewayError(errors.CodeInvalidArgument, "claims must not be nil", errors.ErrInvalidArgument)
	}

	username := claims.GetString("preferred_username")
	if username == "" {
		username = claims.Subject
	}
	if username == "" {
		return nil, errors.NewGatewayError(errors.CodeInvalidArgument,
			"claims carry neither preferred_username nor sub", errors.ErrInvalidArgument)
	}

	roles := rolesFromClaim(claims, "roles")
	if len(roles) == 0 {
		roles = rolesFromClaim(claims, "authorities")
	}

	return &domain.Principal{
		Username: username,
		Roles:    roles,
		TenantID: claims.GetString("tenant_id"),
		Claims:   claims,
	}, nil
}

// rolesFromClaim reads a role claim in either of its two forms.
// Non-string list elements are dropped, order is preserved.
func rolesFromClaim(claims *domain.Claims, name string) []string {
	value, ok := claims.Get(name)
	if !ok || value == nil {
		return nil
	}

	switch v := value.(type) {
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				roles = append(roles, s)
			}
		}
		return roles

	case []string:
		roles := make([]string, 0, len(v))
		for _, s := range v {
			if s != "" {
				roles = append(roles, s)
			}
		}
		return roles

	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		roles := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				roles = append(roles, trimmed)
			}
		}
		return roles
	}

	return nil
}
