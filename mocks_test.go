package storefront_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"

	storefront "github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/transport"
)

// MockAuthAPI implements storefront.AuthAPI
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Authenticate(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthAPI) Register(ctx context.Context, payload storefront.RegisterPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

// MockCartAPI implements storefront.CartAPI
type MockCartAPI struct {
	mock.Mock
}

func (m *MockCartAPI) GetCart(ctx context.Context) (storefront.Cart, error) {
	args := m.Called(ctx)
	return args.Get(0).(storefront.Cart), args.Error(1)
}

func (m *MockCartAPI) AddToCart(ctx context.Context, productID int64, quantity int) (storefront.Cart, error) {
	args := m.Called(ctx, productID, quantity)
	return args.Get(0).(storefront.Cart), args.Error(1)
}

func (m *MockCartAPI) UpdateCartItem(ctx context.Context, productID int64, quantity int) (storefront.Cart, error) {
	args := m.Called(ctx, productID, quantity)
	return args.Get(0).(storefront.Cart), args.Error(1)
}

func (m *MockCartAPI) RemoveCartItem(ctx context.Context, productID int64) (storefront.Cart, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(storefront.Cart), args.Error(1)
}

// MockOrderAPI implements storefront.OrderAPI
type MockOrderAPI struct {
	mock.Mock
}

func (m *MockOrderAPI) CreateOrder(ctx context.Context, req storefront.CheckoutRequest) (*storefront.Order, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(*storefront.Order)
	return order, args.Error(1)
}

func (m *MockOrderAPI) ListOrders(ctx context.Context) ([]storefront.Order, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]storefront.Order)
	return orders, args.Error(1)
}

func (m *MockOrderAPI) GetOrder(ctx context.Context, orderID int64) (*storefront.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*storefront.Order)
	return order, args.Error(1)
}

// MockCatalogAPI implements storefront.CatalogAPI
type MockCatalogAPI struct {
	mock.Mock
}

func (m *MockCatalogAPI) ListProducts(ctx context.Context) ([]storefront.Product, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]storefront.Product)
	return products, args.Error(1)
}

func (m *MockCatalogAPI) GetProduct(ctx context.Context, productID int64) (*storefront.Product, error) {
	args := m.Called(ctx, productID)
	product, _ := args.Get(0).(*storefront.Product)
	return product, args.Error(1)
}

func (m *MockCatalogAPI) ListReviews(ctx context.Context, productID int64) ([]storefront.Review, error) {
	args := m.Called(ctx, productID)
	reviews, _ := args.Get(0).([]storefront.Review)
	return reviews, args.Error(1)
}

func (m *MockCatalogAPI) SubmitReview(ctx context.Context, payload storefront.ReviewPayload) (*storefront.Review, error) {
	args := m.Called(ctx, payload)
	review, _ := args.Get(0).(*storefront.Review)
	return review, args.Error(1)
}

// MockTransport implements storefront.Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Request(ctx context.Context, method, path string, body any) (*transport.Response, error) {
	args := m.Called(ctx, method, path, body)
	res, _ := args.Get(0).(*transport.Response)
	return res, args.Error(1)
}

// fixedSession is a SessionSource returning a settable snapshot.
type fixedSession struct {
	mu      sync.Mutex
	session storefront.Session
}

func (f *fixedSession) Session() storefront.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fixedSession) set(s storefront.Session) {
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
}

func authedSession() *fixedSession {
	return &fixedSession{session: storefront.Session{
		State:      storefront.SessionAuthenticated,
		Subject:    "ada@example.com",
		UserID:     "7",
		Roles:      storefront.NewRoleSet(storefront.RoleUser),
		Credential: "token",
	}}
}

func anonymousSession() *fixedSession {
	return &fixedSession{session: storefront.Session{State: storefront.SessionUnauthenticated}}
}

// recordingSink collects activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []storefront.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, e storefront.ActivityEvent) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) types() []storefront.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]storefront.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

var testSecret = []byte("unit-test-secret")

// signToken builds an HS256 token shaped like the storefront backend's.
func signToken(sub string, userID int64, roles []string, exp time.Time) string {
	claims := jwt.MapClaims{
		"sub":    sub,
		"userId": userID,
		"roles":  roles,
		"iat":    exp.Add(-time.Hour).Unix(),
		"exp":    exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = "unit"
	signed, err := token.SignedString(testSecret)
	if err != nil {
		panic(err)
	}
	return signed
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func cartOf(lines ...storefront.CartLine) storefront.Cart {
	return storefront.NewCart(1, lines...)
}

func line(productID int64, qty int) storefront.CartLine {
	return storefront.CartLine{ProductID: productID, Quantity: qty}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %T: %v", v, err)
	}
	return string(raw)
}
