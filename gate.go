package storefront

// Decision is the outcome of an authorization check for a protected area.
type Decision int

const (
	// DecisionDefer means the session is still being restored. Render a
	// neutral loading state and ask again once it settles.
	DecisionDefer Decision = iota
	DecisionAllow
	DecisionRedirectLogin
	DecisionRedirectUnauthorized
)

func (d Decision) String() string {
	switch d {
	case DecisionDefer:
		return "defer"
	case DecisionAllow:
		return "allow"
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionRedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Decide maps a session and the roles a protected area requires to a
// navigation decision. An empty required list admits any authenticated
// session. Role names compare case-insensitively. Decide never mutates the
// session.
func Decide(session Session, required ...string) Decision {
	switch session.State {
	case SessionRestoring:
		return DecisionDefer
	case SessionAuthenticated:
	default:
		return DecisionRedirectLogin
	}

	if !hasRequirements(required) {
		return DecisionAllow
	}

	if session.Roles.Intersects(required...) {
		return DecisionAllow
	}
	return DecisionRedirectUnauthorized
}

func hasRequirements(required []string) bool {
	for _, r := range required {
		if NormalizeRole(r) != "" {
			return true
		}
	}
	return false
}

const (
	DefaultLoginPath        = "/login"
	DefaultUnauthorizedPath = "/unauthorized"
)

// RouteGuard turns gate decisions into redirect targets.
type RouteGuard struct {
	LoginPath        string
	UnauthorizedPath string
}

// NewRouteGuard returns a guard using the default paths.
func NewRouteGuard() RouteGuard {
	return RouteGuard{
		LoginPath:        DefaultLoginPath,
		UnauthorizedPath: DefaultUnauthorizedPath,
	}
}

// Check decides access and returns the redirect path, if any. The path is
// empty for DecisionAllow and DecisionDefer.
func (g RouteGuard) Check(session Session, required ...string) (Decision, string) {
	d := Decide(session, required...)
	switch d {
	case DecisionRedirectLogin:
		return d, firstNonEmpty(g.LoginPath, DefaultLoginPath)
	case DecisionRedirectUnauthorized:
		return d, firstNonEmpty(g.UnauthorizedPath, DefaultUnauthorizedPath)
	default:
		return d, ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
