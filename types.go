package storefront

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-storefront/transport"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Transport sends requests to the storefront API. Implementations attach the
// current credential as a bearer header and must call the session store's
// OnUnauthorizedResponse synchronously whenever the server answers 401.
type Transport interface {
	Request(ctx context.Context, method, path string, body any) (*transport.Response, error)
}

// Persistence stores small string values across process restarts. It holds
// the raw credential and the cached role list.
type Persistence interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetClockSkew() time.Duration
	GetTokenStorageKey() string
	GetRolesStorageKey() string
	GetPhoneRegion() string
	GetJWKSURL() string
}

// AuthAPI is the identity surface of the remote API.
type AuthAPI interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, payload RegisterPayload) (string, error)
}

// CartAPI is the cart surface of the remote API. Every call returns the full
// authoritative cart.
type CartAPI interface {
	GetCart(ctx context.Context) (Cart, error)
	AddToCart(ctx context.Context, productID int64, quantity int) (Cart, error)
	UpdateCartItem(ctx context.Context, productID int64, quantity int) (Cart, error)
	RemoveCartItem(ctx context.Context, productID int64) (Cart, error)
}

// OrderAPI is the order surface of the remote API.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req CheckoutRequest) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
}

// CatalogAPI is the read-mostly product surface of the remote API.
type CatalogAPI interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, productID int64) (*Product, error)
	ListReviews(ctx context.Context, productID int64) ([]Review, error)
	SubmitReview(ctx context.Context, payload ReviewPayload) (*Review, error)
}

// SessionSource exposes read-only session snapshots to dependent components.
type SessionSource interface {
	Session() Session
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] STOREFRONT " + line(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] STOREFRONT " + line(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] STOREFRONT " + line(msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] STOREFRONT " + line(msg, args))
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
