package storefront

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/goliatone/go-storefront/storage"
)

const (
	DefaultTokenStorageKey = "jwtToken"
	DefaultRolesStorageKey = "userRoles"
)

// SessionStoreOption customizes SessionStore construction.
type SessionStoreOption func(*SessionStore)

// WithSessionClock injects a custom clock (useful for tests).
func WithSessionClock(clock func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionLogger overrides the logger.
func WithSessionLogger(logger Logger) SessionStoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSessionActivitySink sets the ActivitySink used to publish auth events.
func WithSessionActivitySink(sink ActivitySink) SessionStoreOption {
	return func(s *SessionStore) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithSessionResolver replaces the default UnverifiedResolver.
func WithSessionResolver(r IdentityResolver) SessionStoreOption {
	return func(s *SessionStore) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithStorageKeys overrides the persistence keys for the credential and the
// cached role list.
func WithStorageKeys(tokenKey, rolesKey string) SessionStoreOption {
	return func(s *SessionStore) {
		if tokenKey != "" {
			s.tokenKey = tokenKey
		}
		if rolesKey != "" {
			s.rolesKey = rolesKey
		}
	}
}

// WithTransitionHook registers a hook at construction time.
func WithTransitionHook(h TransitionHook) SessionStoreOption {
	return func(s *SessionStore) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

var _ SessionSource = (*SessionStore)(nil)

// SessionStore owns the credential and its decoded claims. It is the only
// component that creates or mutates a Session.
type SessionStore struct {
	auth         AuthAPI
	persistence  Persistence
	resolver     IdentityResolver
	tokenKey     string
	rolesKey     string
	now          func() time.Time
	logger       Logger
	activitySink ActivitySink

	// transitionMu serializes state changes and hook execution. It is never
	// held while waiting on the remote API.
	transitionMu sync.Mutex

	mu      sync.RWMutex
	session Session

	hooksMu sync.RWMutex
	hooks   []TransitionHook
}

// NewSessionStore returns an unauthenticated store. A nil persistence keeps
// state in memory only.
func NewSessionStore(auth AuthAPI, persistence Persistence, opts ...SessionStoreOption) *SessionStore {
	if persistence == nil {
		persistence = storage.NewMemoryStore()
	}

	s := &SessionStore{
		auth:         auth,
		persistence:  persistence,
		resolver:     NewUnverifiedResolver(),
		tokenKey:     DefaultTokenStorageKey,
		rolesKey:     DefaultRolesStorageKey,
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		session:      unauthenticatedSession(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// OnTransition registers a hook that observes every session transition.
func (s *SessionStore) OnTransition(h TransitionHook) {
	if h == nil {
		return
	}
	s.hooksMu.Lock()
	s.hooks = append(s.hooks, h)
	s.hooksMu.Unlock()
}

// Session returns the current snapshot.
func (s *SessionStore) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.clone()
}

// Credential returns the raw bearer credential, or "".
func (s *SessionStore) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Credential
}

// Initialize restores a persisted session. Absent or undecodable credentials
// leave the store Unauthenticated with every persisted artifact removed. It is
// a no-op when the store is already authenticated.
func (s *SessionStore) Initialize(ctx context.Context) (Session, error) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	if s.Session().IsAuthenticated() {
		return s.Session(), nil
	}

	if err := s.transition(ctx, Session{State: SessionRestoring, Roles: NewRoleSet()}, reasonRestore); err != nil {
		return s.Session(), err
	}

	token, found, err := s.persistence.Get(ctx, s.tokenKey)
	if err != nil {
		s.logger.Error("failed to read persisted credential", "key", s.tokenKey, "error", err)
		s.resetLocked(ctx, reasonRestoreFailed)
		return s.Session(), err
	}

	if !found || token == "" {
		s.resetLocked(ctx, reasonNoStoredIdentity)
		return s.Session(), nil
	}

	claims, err := s.resolver.Resolve(token)
	if err != nil {
		s.logger.Info("discarding persisted credential", "error", err)
		s.resetLocked(ctx, reasonRestoreFailed)
		return s.Session(), err
	}

	if claims.Roles.Len() == 0 {
		claims.Roles = s.cachedRoles(ctx)
	}

	if err := s.transition(ctx, sessionFromClaims(token, claims), reasonRestored); err != nil {
		return s.Session(), err
	}

	return s.Session(), nil
}

// Login exchanges email and password for a credential. On failure the state
// is left as it was, unless the server issued a credential that cannot be
// decoded, in which case the store is reset.
func (s *SessionStore) Login(ctx context.Context, email, password string) (Session, error) {
	creds := Credentials{Email: email, Password: password}
	if err := validate(creds); err != nil {
		return s.Session(), err
	}

	token, err := s.auth.Authenticate(ctx, creds.Email, creds.Password)
	if err != nil {
		s.logger.Info("login rejected", "email", creds.Email, "error", err)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata: map[string]any{
				"email": creds.Email,
				"error": UserMessage(err),
			},
		})
		return s.Session(), err
	}

	return s.establish(ctx, token, reasonLogin, ActivityEventLoginSuccess)
}

// Register creates an account and logs it in.
func (s *SessionStore) Register(ctx context.Context, payload RegisterPayload) (Session, error) {
	if err := validate(payload); err != nil {
		return s.Session(), err
	}

	token, err := s.auth.Register(ctx, payload)
	if err != nil {
		s.logger.Info("registration rejected", "email", payload.Email, "error", err)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata: map[string]any{
				"email":  payload.Email,
				"error":  UserMessage(err),
				"source": reasonRegister,
			},
		})
		return s.Session(), err
	}

	return s.establish(ctx, token, reasonRegister, ActivityEventRegisterSuccess)
}

// Logout clears the credential, its claims and every persisted artifact.
// Calling it while unauthenticated only repeats the purge.
func (s *SessionStore) Logout(ctx context.Context) {
	s.logout(ctx, reasonLogout, ActivityEventLogout)
}

// OnUnauthorizedResponse is called by the transport whenever the API answers
// 401. It has the same effect as Logout.
func (s *SessionStore) OnUnauthorizedResponse(ctx context.Context) {
	s.logout(ctx, reasonUnauthorized, ActivityEventForcedLogout)
}

func (s *SessionStore) logout(ctx context.Context, reason string, eventType ActivityEventType) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	prev := s.Session()
	s.resetLocked(ctx, reason)

	if prev.IsAuthenticated() {
		s.recordActivity(ctx, ActivityEvent{
			EventType: eventType,
			UserID:    prev.UserID,
			FromState: prev.State,
			ToState:   SessionUnauthenticated,
			Metadata:  map[string]any{"subject": prev.Subject},
		})
	}
}

func (s *SessionStore) establish(ctx context.Context, token, reason string, eventType ActivityEventType) (Session, error) {
	claims, err := s.resolver.Resolve(token)

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	if err != nil {
		s.logger.Warn("server issued an undecodable credential", "reason", reason, "error", err)
		s.resetLocked(ctx, reasonDecodeFailed)
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata: map[string]any{
				"error":  UserMessage(err),
				"source": reason,
			},
		})
		return s.Session(), err
	}

	s.persist(ctx, token, claims.Roles)

	prev := s.Session()
	next := sessionFromClaims(token, claims)
	if err := s.transition(ctx, next, reason); err != nil {
		return s.Session(), err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: eventType,
		UserID:    next.UserID,
		FromState: prev.State,
		ToState:   next.State,
		Metadata: map[string]any{
			"subject": next.Subject,
			"roles":   next.Roles.Slice(),
		},
	})

	return s.Session(), nil
}

// resetLocked purges persistence and moves to Unauthenticated. The caller
// holds transitionMu.
func (s *SessionStore) resetLocked(ctx context.Context, reason string) {
	s.purge(ctx)
	if s.Session().State == SessionUnauthenticated {
		return
	}
	if err := s.transition(ctx, unauthenticatedSession(), reason); err != nil {
		s.logger.Error("failed to reset session", "reason", reason, "error", err)
	}
}

// transition publishes next and runs the hooks. The caller holds transitionMu.
func (s *SessionStore) transition(ctx context.Context, next Session, reason string) error {
	s.mu.Lock()
	from := s.session.State
	if err := checkTransition(from, next.State); err != nil {
		s.mu.Unlock()
		return err
	}
	s.session = next
	s.mu.Unlock()

	s.logger.Debug("session transition", "from", from, "to", next.State, "reason", reason)

	tc := TransitionContext{
		From:    from,
		To:      next.State,
		Session: next.clone(),
		Reason:  reason,
	}

	s.hooksMu.RLock()
	hooks := append([]TransitionHook(nil), s.hooks...)
	s.hooksMu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, tc); err != nil {
			s.logger.Error("session transition hook failed", "from", from, "to", next.State, "error", err)
		}
	}

	if from != next.State {
		s.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventSessionChanged,
			UserID:    next.UserID,
			FromState: from,
			ToState:   next.State,
			Metadata:  map[string]any{"reason": reason},
		})
	}

	return nil
}

func (s *SessionStore) persist(ctx context.Context, token string, roles RoleSet) {
	if err := s.persistence.Set(ctx, s.tokenKey, token); err != nil {
		s.logger.Error("failed to persist credential", "key", s.tokenKey, "error", err)
		return
	}

	raw, err := json.Marshal(roles.Slice())
	if err != nil {
		s.logger.Error("failed to encode roles", "error", err)
		return
	}
	if err := s.persistence.Set(ctx, s.rolesKey, string(raw)); err != nil {
		s.logger.Error("failed to persist roles", "key", s.rolesKey, "error", err)
	}
}

func (s *SessionStore) purge(ctx context.Context) {
	for _, key := range []string{s.tokenKey, s.rolesKey} {
		if err := s.persistence.Remove(ctx, key); err != nil {
			s.logger.Error("failed to purge persisted session", "key", key, "error", err)
		}
	}
}

func (s *SessionStore) cachedRoles(ctx context.Context) RoleSet {
	raw, found, err := s.persistence.Get(ctx, s.rolesKey)
	if err != nil || !found || raw == "" {
		return NewRoleSet()
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		s.logger.Warn("ignoring unreadable cached roles", "key", s.rolesKey, "error", err)
		return NewRoleSet()
	}
	return NewRoleSet(names...)
}

func (s *SessionStore) recordActivity(ctx context.Context, event ActivityEvent) {
	recordActivity(ctx, s.activitySink, s.logger, s.now, event)
}
