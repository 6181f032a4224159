package storefront

import (
	"fmt"
	"strings"
	"time"
)

// SessionState is the lifecycle state of the client session.
type SessionState string

const (
	SessionUnauthenticated SessionState = "unauthenticated"
	SessionRestoring       SessionState = "restoring"
	SessionAuthenticated   SessionState = "authenticated"
)

// Session is an immutable snapshot of the session. Only SessionStore builds
// sessions; a Subject is present exactly when a Credential decoded cleanly.
type Session struct {
	State      SessionState
	Subject    string
	UserID     string
	Roles      RoleSet
	Credential string
	ExpiresAt  time.Time
}

// IsAuthenticated reports whether the session carries a decoded credential.
func (s Session) IsAuthenticated() bool {
	return s.State == SessionAuthenticated
}

// IsSettled is false while a persisted session is being restored.
func (s Session) IsSettled() bool {
	return s.State != SessionRestoring
}

// HasRole checks if the session holds role (case-insensitive)
func (s Session) HasRole(role string) bool {
	return s.Roles.Has(role)
}

// String implements fmt.Stringer. The credential is never printed.
func (s Session) String() string {
	return fmt.Sprintf("Session{state=%s subject=%q user_id=%q roles=[%s] expires_at=%s}",
		s.State,
		s.Subject,
		s.UserID,
		strings.Join(s.Roles.Slice(), ","),
		formatExpiry(s.ExpiresAt),
	)
}

func (s Session) clone() Session {
	out := s
	out.Roles = s.Roles.Clone()
	return out
}

func unauthenticatedSession() Session {
	return Session{State: SessionUnauthenticated, Roles: NewRoleSet()}
}

func sessionFromClaims(credential string, claims *Claims) Session {
	return Session{
		State:      SessionAuthenticated,
		Subject:    claims.Subject,
		UserID:     claims.UserID,
		Roles:      claims.Roles.Clone(),
		Credential: credential,
		ExpiresAt:  claims.ExpiresAt,
	}
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
