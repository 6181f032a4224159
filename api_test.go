package storefront_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	storefront "github.com/goliatone/go-storefront"
	"github.com/goliatone/go-storefront/transport"
)

func response(status int, body string) *transport.Response {
	return &transport.Response{Status: status, Body: []byte(body), RequestID: "req-1"}
}

func newAPI(tr storefront.Transport) *storefront.API {
	return storefront.NewAPI(tr, storefront.WithAPILogger(storefront.NopLogger()))
}

func TestAPIAuthenticate(t *testing.T) {
	tr := &MockTransport{}
	tr.On("Request", mock.Anything, http.MethodPost, storefront.PathAuthenticate, storefront.Credentials{
		Email:    "ada@example.com",
		Password: "secret1",
	}).Return(response(http.StatusOK, `{"token":"abc.def.ghi"}`), nil).Once()

	token, err := newAPI(tr).Authenticate(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)
	tr.AssertExpectations(t)
}

func TestAPIAuthenticateWithoutToken(t *testing.T) {
	tr := &MockTransport{}
	tr.On("Request", mock.Anything, http.MethodPost, storefront.PathAuthenticate, mock.Anything).
		Return(response(http.StatusOK, `{}`), nil).Once()

	_, err := newAPI(tr).Authenticate(context.Background(), "ada@example.com", "secret1")
	require.Error(t, err)
	assert.True(t, storefront.IsRemoteFailure(err))
}

func TestAPIClassifiesResponses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		textCode string
		message  string
	}{
		{
			name:     "unauthorized with server message",
			status:   http.StatusUnauthorized,
			body:     `{"message":"session is no longer valid"}`,
			textCode: storefront.TextCodeUnauthorized,
			message:  "session is no longer valid",
		},
		{
			name:     "unauthorized without body",
			status:   http.StatusUnauthorized,
			textCode: storefront.TextCodeUnauthorized,
			message:  "your session has expired, please log in again",
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     `{"message":"Unauthorized access to order."}`,
			textCode: storefront.TextCodeForbidden,
			message:  "Unauthorized access to order.",
		},
		{
			name:     "bad request uses error field",
			status:   http.StatusBadRequest,
			body:     `{"error":"Not enough stock for product: Beans. Available: 2"}`,
			textCode: storefront.TextCodeRemoteFailure,
			message:  "Not enough stock for product: Beans. Available: 2",
		},
		{
			name:     "server error without json",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			textCode: storefront.TextCodeRemoteFailure,
			message:  "request failed with status 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &MockTransport{}
			tr.On("Request", mock.Anything, http.MethodGet, storefront.PathCart, nil).
				Return(response(tt.status, tt.body), nil).Once()

			_, err := newAPI(tr).GetCart(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.textCode, storefront.TextCode(err))
			assert.Equal(t, tt.message, storefront.UserMessage(err))

			var rich *goerrors.Error
			require.True(t, goerrors.As(err, &rich))
			assert.Equal(t, tt.status, rich.Metadata["status"])
			assert.Equal(t, "req-1", rich.Metadata["request_id"])
		})
	}
}

func TestAPINetworkFailure(t *testing.T) {
	tr := &MockTransport{}
	netErr := &transport.NetworkError{Method: http.MethodGet, Path: storefront.PathProducts, Err: errors.New("connection refused")}
	tr.On("Request", mock.Anything, http.MethodGet, storefront.PathProducts, nil).Return(nil, netErr).Once()

	_, err := newAPI(tr).ListProducts(context.Background())
	require.Error(t, err)
	assert.True(t, storefront.IsRemoteFailure(err))
	assert.Equal(t, "unable to reach the storefront: connection refused", storefront.UserMessage(err))

	var target *transport.NetworkError
	assert.True(t, errors.As(err, &target))
}

func TestAPIDecodesCart(t *testing.T) {
	tr := &MockTransport{}
	body := `{
		"cartId": 4,
		"cartItems": [
			{"id": 10, "productId": 1, "productName": "Grinder", "productImageUrl": "/g.png", "price": "129.99", "quantity": 1, "subtotal": "129.99"},
			{"id": 11, "productId": 3, "productName": "Beans", "price": 18, "quantity": 2, "subtotal": 36}
		],
		"grandTotal": "165.99",
		"totalItems": 2
	}`
	tr.On("Request", mock.Anything, http.MethodPut, storefront.PathCartUpdate, mock.Anything).
		Return(response(http.StatusOK, body), nil).Once()

	cart, err := newAPI(tr).UpdateCartItem(context.Background(), 3, 2)
	require.NoError(t, err)

	assert.Equal(t, int64(4), cart.ID())
	assert.Equal(t, 3, cart.TotalItems())
	assert.Equal(t, "165.99", cart.TotalPrice().String())

	l, ok := cart.Line(1)
	require.True(t, ok)
	assert.Equal(t, "Grinder", l.Product.Name)
	assert.Equal(t, "/g.png", l.Product.ImageURL)

	call := tr.Calls[0]
	assert.JSONEq(t, `{"productId":3,"quantity":2}`, mustJSON(t, call.Arguments.Get(3)))
}

func TestAPIBuildsResourcePaths(t *testing.T) {
	tr := &MockTransport{}
	tr.On("Request", mock.Anything, http.MethodDelete, "/cart/remove/7", nil).
		Return(response(http.StatusOK, `{"cartId":1,"cartItems":[]}`), nil).Once()
	tr.On("Request", mock.Anything, http.MethodGet, "/orders/12", nil).
		Return(response(http.StatusOK, `{"id":12,"orderDate":"2026-03-01T10:00:00"}`), nil).Once()
	tr.On("Request", mock.Anything, http.MethodGet, "/reviews/product/3", nil).
		Return(response(http.StatusOK, `[{"id":1,"rating":5}]`), nil).Once()
	tr.On("Request", mock.Anything, http.MethodGet, "/products/3", nil).
		Return(response(http.StatusOK, `{"id":3,"name":"Beans","price":"18.00","stockQuantity":0}`), nil).Once()

	api := newAPI(tr)

	cart, err := api.RemoveCartItem(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	order, err := api.GetOrder(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, 10, order.OrderDate.Hour())

	reviews, err := api.ListReviews(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	product, err := api.GetProduct(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, product.InStock())

	tr.AssertExpectations(t)
}
