// Package storefronttest runs an in-memory storefront API over HTTP. It
// mirrors the contract the storefront client consumes (JWT auth, carts,
// orders, catalog and reviews) and lets tests inject failures and inspect the
// requests it received.
package storefronttest

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/hashid/pkg/hashid"

	storefront "github.com/goliatone/go-storefront"
)

const (
	// APIPrefix is the mount point of every route.
	APIPrefix = "/api/v1"
	// DefaultKeyID is the kid header of issued tokens.
	DefaultKeyID = "storefront"

	localsUser = "storefront.user"
)

// RecordedRequest is a request the server received.
type RecordedRequest struct {
	Method         string
	Path           string
	Authorized     bool
	RequestID      string
	IdempotencyKey string
}

type injectedFailure struct {
	status  int
	message string
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the HS256 signing secret.
func WithSecret(secret []byte) Option {
	return func(s *Server) {
		if len(secret) > 0 {
			s.secret = secret
		}
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithProducts replaces the default catalog.
func WithProducts(products ...storefront.Product) Option {
	return func(s *Server) {
		s.seedProducts = products
	}
}

// WithClock injects a custom clock.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// Server is the fake storefront API.
type Server struct {
	app          *fiber.App
	ln           net.Listener
	url          string
	secret       []byte
	kid          string
	ttl          time.Duration
	now          func() time.Time
	seedProducts []storefront.Product

	mu          sync.Mutex
	seq         int64
	users       map[string]*user
	products    map[int64]*storefront.Product
	carts       map[int64]*cart
	orders      map[int64]*storefront.Order
	reviews     []*storefront.Review
	idempotency map[string]int64
	issued      []string
	revoked     map[string]struct{}
	failures    map[string][]injectedFailure
	requests    []RecordedRequest
}

// NewServer builds a Server seeded with the default catalog.
func NewServer(opts ...Option) *Server {
	s := &Server{
		secret:       []byte("storefront-test-secret"),
		kid:          DefaultKeyID,
		ttl:          time.Hour,
		now:          time.Now,
		seedProducts: DefaultProducts(),
		users:        map[string]*user{},
		products:     map[int64]*storefront.Product{},
		carts:        map[int64]*cart{},
		orders:       map[int64]*storefront.Order{},
		idempotency:  map[string]int64{},
		revoked:      map[string]struct{}{},
		failures:     map[string][]injectedFailure{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	for _, p := range s.seedProducts {
		s.AddProduct(p)
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.routes()

	return s
}

// Start listens on a random local port.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("storefronttest: listen: %w", err)
	}
	s.ln = ln
	s.url = "http://" + ln.Addr().String() + APIPrefix

	go func() {
		_ = s.app.Listener(ln)
	}()
	return nil
}

// Listen serves on addr until the server is shut down.
func (s *Server) Listen(addr string) error {
	s.url = "http://" + addr + APIPrefix
	return s.app.Listen(addr)
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.app.Shutdown()
}

// URL is the API root, e.g. http://127.0.0.1:41234/api/v1.
func (s *Server) URL() string {
	return s.url
}

// Secret returns the HS256 signing secret.
func (s *Server) Secret() []byte {
	return s.secret
}

// KeyID returns the kid header of issued tokens.
func (s *Server) KeyID() string {
	return s.kid
}

// AddUser creates an account and returns its numeric id.
func (s *Server) AddUser(firstName, lastName, email, password string, roles ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.createUser(firstName, lastName, email, password, roles...)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// AddProduct adds p to the catalog and returns its id.
func (s *Server) AddProduct(p storefront.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p.ID = s.seq
	s.products[p.ID] = &p
	return p.ID
}

// SetStock overrides the stock of a product.
func (s *Server) SetStock(productID int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.StockQuantity = stock
	}
}

// MintToken issues a token for an existing user with the given lifetime. A
// negative ttl yields an expired token.
func (s *Server) MintToken(email string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return "", fmt.Errorf("storefronttest: unknown user %q", email)
	}
	token, jti, err := s.signToken(u, s.now(), ttl)
	if err != nil {
		return "", err
	}
	s.issued = append(s.issued, jti)
	return token, nil
}

// RevokeAll invalidates every token issued so far, as a server side session
// expiry would.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, jti := range s.issued {
		s.revoked[jti] = struct{}{}
	}
}

// FailNext makes the next request matching method and path (relative to
// APIPrefix, e.g. "/cart/add") answer status with message.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := failureKey(method, path)
	s.failures[key] = append(s.failures[key], injectedFailure{status: status, message: message})
}

// Requests returns every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// CountRequests counts received requests matching method and path.
func (s *Server) CountRequests(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// CartQuantity returns the server side quantity of productID for email.
func (s *Server) CartQuantity(email string, productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return 0
	}
	if _, item := s.cartFor(u).find(productID); item != nil {
		return item.Quantity
	}
	return 0
}

// OrderCount returns the number of orders placed.
func (s *Server) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// createUser adds an account. Callers hold the lock.
func (s *Server) createUser(firstName, lastName, email, password string, roles ...string) (*user, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return nil, errors.New("email is required")
	}
	if _, exists := s.users[key]; exists {
		return nil, errEmailTaken
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	id, err := hashid.NewUUID(key)
	if err != nil {
		return nil, fmt.Errorf("storefronttest: user id: %w", err)
	}

	if len(roles) == 0 {
		roles = []string{storefront.RoleUser}
	}

	s.seq++
	u := &user{
		ID:           s.seq,
		UUID:         id,
		FirstName:    firstName,
		LastName:     lastName,
		Email:        key,
		PasswordHash: hash,
		Roles:        roles,
	}
	s.users[key] = u
	return u, nil
}

var errEmailTaken = errors.New("email already registered")

func failureKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// record logs the request and pops an injected failure, if any.
func (s *Server) record(c *fiber.Ctx) *injectedFailure {
	path := strings.TrimPrefix(c.Path(), APIPrefix)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, RecordedRequest{
		Method:         c.Method(),
		Path:           path,
		Authorized:     c.Get(fiber.HeaderAuthorization) != "",
		RequestID:      c.Get("X-Request-ID"),
		IdempotencyKey: c.Get("Idempotency-Key"),
	})

	key := failureKey(c.Method(), path)
	queue := s.failures[key]
	if len(queue) == 0 {
		return nil
	}
	f := queue[0]
	s.failures[key] = queue[1:]
	return &f
}

func (s *Server) recorder(c *fiber.Ctx) error {
	if f := s.record(c); f != nil {
		return c.Status(f.status).JSON(fiber.Map{"message": f.message})
	}
	return c.Next()
}

// authenticated resolves the bearer token into a user or answers 401.
func (s *Server) authenticated(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
	}

	sub, jti, err := s.parseToken(strings.TrimSpace(raw))
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}

	s.mu.Lock()
	_, revoked := s.revoked[jti]
	u, found := s.users[strings.ToLower(sub)]
	s.mu.Unlock()

	if revoked || !found {
		return fiber.NewError(fiber.StatusUnauthorized, "session is no longer valid")
	}

	c.Locals(localsUser, u)
	return c.Next()
}

func currentUser(c *fiber.Ctx) *user {
	u, _ := c.Locals(localsUser).(*user)
	return u
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"message": err.Error()})
}
