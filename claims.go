package storefront

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload of a credential.
type Claims struct {
	Subject   string
	UserID    string
	Roles     RoleSet
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// HasRole checks if the claims carry role (case-insensitive)
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	return c.Roles.Has(role)
}

// Expired reports whether the claims expired before now, allowing skew.
// Claims without an expiry never expire.
func (c *Claims) Expired(now time.Time, skew time.Duration) bool {
	if c == nil || c.ExpiresAt.IsZero() {
		return false
	}
	return now.After(c.ExpiresAt.Add(skew))
}

// claimsFromMap extracts Claims from a decoded JWT payload. The parser must
// be configured with jwt.WithJSONNumber so numeric ids keep their precision.
func claimsFromMap(m jwt.MapClaims) (*Claims, error) {
	sub, err := m.GetSubject()
	if err != nil {
		return nil, err
	}
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return nil, fmt.Errorf("missing sub claim")
	}

	claims := &Claims{
		Subject: sub,
		UserID:  stringClaim(m["userId"]),
		Roles:   rolesClaim(m),
	}

	exp, err := m.GetExpirationTime()
	if err != nil {
		return nil, err
	}
	if exp != nil {
		claims.ExpiresAt = exp.Time
	}

	iat, err := m.GetIssuedAt()
	if err != nil {
		return nil, err
	}
	if iat != nil {
		claims.IssuedAt = iat.Time
	}

	return claims, nil
}

func stringClaim(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return fmt.Sprintf("%.0f", val)
	default:
		return fmt.Sprint(val)
	}
}

// rolesClaim reads the "roles" array, falling back to a single "role".
func rolesClaim(m jwt.MapClaims) RoleSet {
	switch raw := m["roles"].(type) {
	case []any:
		names := make([]string, 0, len(raw))
		for _, r := range raw {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return NewRoleSet(names...)
	case []string:
		return NewRoleSet(raw...)
	case string:
		return NewRoleSet(strings.Split(raw, ",")...)
	}

	if role, ok := m["role"].(string); ok {
		return NewRoleSet(role)
	}
	return NewRoleSet()
}
