package storefront

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goliatone/go-storefront/transport"
)

// ClientOption customizes NewClient.
type ClientOption func(*clientOptions)

type clientOptions struct {
	persistence Persistence
	logger      Logger
	sink        ActivitySink
	httpClient  *http.Client
	resolver    IdentityResolver
	now         func() time.Time
}

// WithPersistence sets where the session is persisted. Defaults to memory.
func WithPersistence(p Persistence) ClientOption {
	return func(o *clientOptions) {
		o.persistence = p
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(l Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = l
	}
}

// WithActivitySink sets the sink shared by every component.
func WithActivitySink(s ActivitySink) ClientOption {
	return func(o *clientOptions) {
		o.sink = s
	}
}

// WithHTTPClient replaces the HTTP client used by the transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// WithResolver replaces the identity resolver picked from the config.
func WithResolver(r IdentityResolver) ClientOption {
	return func(o *clientOptions) {
		o.resolver = r
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(now func() time.Time) ClientOption {
	return func(o *clientOptions) {
		o.now = now
	}
}

// Client wires the storefront components together: the transport reads the
// credential from the session store and reports 401 answers back to it, and
// the cart mirror is reset whenever the session ends.
type Client struct {
	logger    Logger
	transport *transport.Client
	api       *API
	session   *SessionStore
	cart      *CartSynchronizer
	orders    *OrderCoordinator
	catalog   *Catalog
	stop      func()
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("storefront: config is required")
	}

	o := clientOptions{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	logger := normalizeLogger(o.logger)

	c := &Client{logger: logger, stop: func() {}}

	resolver := o.resolver
	if resolver == nil {
		var err error
		resolver, err = c.resolverFor(cfg, logger, o.now)
		if err != nil {
			return nil, err
		}
	}

	topts := []transport.Option{
		transport.WithTimeout(cfg.GetRequestTimeout()),
		transport.WithCredentialSource(func() string {
			return c.session.Credential()
		}),
		transport.WithUnauthorizedHandler(func(ctx context.Context) {
			logger.Info("server rejected the credential, logging out")
			c.session.OnUnauthorizedResponse(ctx)
		}),
	}
	if o.httpClient != nil {
		topts = append(topts, transport.WithHTTPClient(o.httpClient))
	}
	c.transport = transport.New(cfg.GetBaseURL(), topts...)
	c.api = NewAPI(c.transport, WithAPILogger(logger))

	c.session = NewSessionStore(c.api, o.persistence,
		WithSessionResolver(resolver),
		WithSessionLogger(logger),
		WithSessionActivitySink(o.sink),
		WithSessionClock(o.now),
		WithStorageKeys(cfg.GetTokenStorageKey(), cfg.GetRolesStorageKey()),
	)

	c.cart = NewCartSynchronizer(c.api, c.session,
		WithCartLogger(logger),
		WithCartActivitySink(o.sink),
		WithCartClock(o.now),
	)

	c.orders = NewOrderCoordinator(c.api, c.cart, c.session,
		WithPhoneRegion(cfg.GetPhoneRegion()),
		WithOrderLogger(logger),
		WithOrderActivitySink(o.sink),
		WithOrderClock(o.now),
	)

	c.catalog = NewCatalog(c.api, c.session, logger)

	c.session.OnTransition(func(_ context.Context, tc TransitionContext) error {
		if tc.To == SessionUnauthenticated {
			c.cart.Reset()
		}
		return nil
	})

	return c, nil
}

func (c *Client) resolverFor(cfg Config, logger Logger, now func() time.Time) (IdentityResolver, error) {
	ropts := []ResolverOption{
		WithResolverClockSkew(cfg.GetClockSkew()),
		WithResolverClock(now),
	}
	if url := cfg.GetJWKSURL(); url != "" {
		r, stop, err := NewJWKSResolver(url, logger, ropts...)
		if err != nil {
			return nil, err
		}
		c.stop = stop
		return r, nil
	}
	return NewUnverifiedResolver(ropts...), nil
}

// Initialize restores a persisted session and, when it is valid, loads the
// server cart.
func (c *Client) Initialize(ctx context.Context) (Session, error) {
	session, err := c.session.Initialize(ctx)
	if err != nil || !session.IsAuthenticated() {
		return session, err
	}
	c.fetchCart(ctx)
	return c.session.Session(), nil
}

// Login authenticates and loads the server cart.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	session, err := c.session.Login(ctx, email, password)
	if err != nil {
		return session, err
	}
	c.fetchCart(ctx)
	return c.session.Session(), nil
}

// Register creates an account, logs it in and loads the server cart.
func (c *Client) Register(ctx context.Context, payload RegisterPayload) (Session, error) {
	session, err := c.session.Register(ctx, payload)
	if err != nil {
		return session, err
	}
	c.fetchCart(ctx)
	return c.session.Session(), nil
}

// Logout ends the session. The cart mirror is reset by the session hook.
func (c *Client) Logout(ctx context.Context) {
	c.session.Logout(ctx)
}

// Close stops background work such as JWKS refreshes.
func (c *Client) Close() {
	c.stop()
}

// Session returns the current session snapshot.
func (c *Client) Session() Session {
	return c.session.Session()
}

// Decide runs the authorization gate against the current session.
func (c *Client) Decide(required ...string) Decision {
	return Decide(c.session.Session(), required...)
}

func (c *Client) Sessions() *SessionStore {
	return c.session
}

func (c *Client) Cart() *CartSynchronizer {
	return c.cart
}

func (c *Client) Orders() *OrderCoordinator {
	return c.orders
}

func (c *Client) Catalog() *Catalog {
	return c.catalog
}

func (c *Client) API() *API {
	return c.api
}

// fetchCart failures are visible through Cart().LastError and never fail the
// session operation that triggered them.
func (c *Client) fetchCart(ctx context.Context) {
	if _, err := c.cart.Fetch(ctx); err != nil {
		c.logger.Warn("failed to load cart after authentication", "error", err)
	}
}
