package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-storefront/transport"
)

const (
	PathAuthenticate = "/auth/authenticate"
	PathRegister     = "/auth/register"
	PathCart         = "/cart"
	PathCartAdd      = "/cart/add"
	PathCartUpdate   = "/cart/update"
	PathCartRemove   = "/cart/remove/%d"
	PathOrders       = "/orders"
	PathOrder        = "/orders/%d"
	PathProducts     = "/products"
	PathProduct      = "/products/%d"
	PathReviews      = "/reviews"
	PathReviewsFor   = "/reviews/product/%d"
)

// APIOption customizes API construction.
type APIOption func(*API)

// WithAPILogger overrides the logger.
func WithAPILogger(logger Logger) APIOption {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

var (
	_ AuthAPI    = (*API)(nil)
	_ CartAPI    = (*API)(nil)
	_ OrderAPI   = (*API)(nil)
	_ CatalogAPI = (*API)(nil)
)

// API holds the typed request/response contracts of the remote storefront
// and maps failed responses into the error taxonomy.
type API struct {
	transport Transport
	logger    Logger
}

// NewAPI returns an API sending requests through t.
func NewAPI(t Transport, opts ...APIOption) *API {
	a := &API{
		transport: t,
		logger:    defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

type tokenResponse struct {
	Token string `json:"token"`
}

type cartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// Authenticate exchanges credentials for a bearer token. A 401 here is a
// rejected login, so it does not trigger the transport's unauthorized handler.
func (a *API) Authenticate(ctx context.Context, email, password string) (string, error) {
	ctx = transport.WithoutUnauthorizedHandler(ctx)
	return a.token(ctx, PathAuthenticate, Credentials{Email: email, Password: password})
}

// Register creates an account and returns its bearer token.
func (a *API) Register(ctx context.Context, payload RegisterPayload) (string, error) {
	ctx = transport.WithoutUnauthorizedHandler(ctx)
	return a.token(ctx, PathRegister, payload)
}

func (a *API) token(ctx context.Context, path string, body any) (string, error) {
	var out tokenResponse
	if err := a.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", failure(ErrRemoteFailure, "the server did not return a credential", nil, map[string]any{
			"path": path,
		})
	}
	return out.Token, nil
}

func (a *API) GetCart(ctx context.Context) (Cart, error) {
	return a.cart(ctx, http.MethodGet, PathCart, nil)
}

func (a *API) AddToCart(ctx context.Context, productID int64, quantity int) (Cart, error) {
	return a.cart(ctx, http.MethodPost, PathCartAdd, cartItemRequest{ProductID: productID, Quantity: quantity})
}

func (a *API) UpdateCartItem(ctx context.Context, productID int64, quantity int) (Cart, error) {
	return a.cart(ctx, http.MethodPut, PathCartUpdate, cartItemRequest{ProductID: productID, Quantity: quantity})
}

func (a *API) RemoveCartItem(ctx context.Context, productID int64) (Cart, error) {
	return a.cart(ctx, http.MethodDelete, fmt.Sprintf(PathCartRemove, productID), nil)
}

func (a *API) cart(ctx context.Context, method, path string, body any) (Cart, error) {
	var out cartDTO
	if err := a.call(ctx, method, path, body, &out); err != nil {
		return Cart{}, err
	}
	return out.toCart(), nil
}

func (a *API) CreateOrder(ctx context.Context, req CheckoutRequest) (*Order, error) {
	var out Order
	if err := a.call(ctx, http.MethodPost, PathOrders, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := a.call(ctx, http.MethodGet, PathOrders, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	var out Order
	if err := a.call(ctx, http.MethodGet, fmt.Sprintf(PathOrder, orderID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := a.call(ctx, http.MethodGet, PathProducts, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) GetProduct(ctx context.Context, productID int64) (*Product, error) {
	var out Product
	if err := a.call(ctx, http.MethodGet, fmt.Sprintf(PathProduct, productID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) ListReviews(ctx context.Context, productID int64) ([]Review, error) {
	var out []Review
	if err := a.call(ctx, http.MethodGet, fmt.Sprintf(PathReviewsFor, productID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) SubmitReview(ctx context.Context, payload ReviewPayload) (*Review, error) {
	var out Review
	if err := a.call(ctx, http.MethodPost, PathReviews, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call sends the request, classifies the response and decodes a 2xx body
// into out.
func (a *API) call(ctx context.Context, method, path string, body, out any) error {
	res, err := a.transport.Request(ctx, method, path, body)
	if err != nil {
		a.logger.Warn("storefront request failed", "method", method, "path", path, "error", err)
		return failure(ErrRemoteFailure, "unable to reach the storefront: "+rootCause(err), err, map[string]any{
			"method": method,
			"path":   path,
		})
	}

	if err := classifyResponse(method, path, res); err != nil {
		a.logger.Debug("storefront request rejected", "method", method, "path", path, "status", res.Status, "request_id", res.RequestID)
		return err
	}

	if err := res.Decode(out); err != nil {
		return failure(ErrRemoteFailure, "the server sent an unreadable response", err, map[string]any{
			"method":     method,
			"path":       path,
			"request_id": res.RequestID,
		})
	}
	return nil
}

// classifyResponse maps a non-2xx response to ErrUnauthorized, ErrForbidden
// or ErrRemoteFailure carrying the server message.
func classifyResponse(method, path string, res *transport.Response) error {
	if res.OK() {
		return nil
	}

	meta := map[string]any{
		"method":     method,
		"path":       path,
		"status":     res.Status,
		"request_id": res.RequestID,
	}
	msg := serverMessage(res.Body)

	switch res.Status {
	case http.StatusUnauthorized:
		return failure(ErrUnauthorized, firstNonEmpty(msg, "your session has expired, please log in again"), nil, meta)
	case http.StatusForbidden:
		return failure(ErrForbidden, firstNonEmpty(msg, "you do not have permission to do that"), nil, meta)
	default:
		return failure(ErrRemoteFailure, firstNonEmpty(msg, fmt.Sprintf("request failed with status %d", res.Status)), nil, meta).
			WithCode(res.Status)
	}
}

// serverMessage extracts the "message" (or "error") field of an error body.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(firstNonEmpty(payload.Message, payload.Error))
}

func rootCause(err error) string {
	if ne, ok := err.(*transport.NetworkError); ok && ne.Err != nil {
		return ne.Err.Error()
	}
	return err.Error()
}
