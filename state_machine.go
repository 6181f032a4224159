package storefront

import (
	"context"
)

// TransitionContext is passed into hooks after a session transition.
type TransitionContext struct {
	From    SessionState
	To      SessionState
	Session Session
	Reason  string
}

// TransitionHook observes session transitions. Hooks run synchronously after
// the new state is visible through SessionStore.Session and before the
// operation that caused the transition returns. A hook must not call Login,
// Logout or Initialize on the same store.
type TransitionHook func(ctx context.Context, tc TransitionContext) error

const (
	reasonRestore          = "restore"
	reasonRestored         = "restored"
	reasonRestoreFailed    = "restore_failed"
	reasonLogin            = "login"
	reasonRegister         = "register"
	reasonDecodeFailed     = "decode_failed"
	reasonLogout           = "logout"
	reasonUnauthorized     = "unauthorized_response"
	reasonNoStoredIdentity = "no_stored_credential"
)

// sessionTransitions lists the allowed moves between session states.
var sessionTransitions = map[SessionState]map[SessionState]struct{}{
	SessionUnauthenticated: {
		SessionRestoring:     {},
		SessionAuthenticated: {},
	},
	SessionRestoring: {
		SessionAuthenticated:   {},
		SessionUnauthenticated: {},
	},
	SessionAuthenticated: {
		SessionAuthenticated:   {},
		SessionUnauthenticated: {},
	},
}

func canTransition(from, to SessionState) bool {
	if allowed, ok := sessionTransitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func checkTransition(from, to SessionState) error {
	if canTransition(from, to) {
		return nil
	}
	return failure(ErrInvalidTransition, "", nil, map[string]any{
		"from": from,
		"to":   to,
	})
}
