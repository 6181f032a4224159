package storefront

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/goliatone/go-storefront/transport"
)

// OrderState is the state of the checkout flow.
type OrderState string

const (
	OrderIdle       OrderState = "idle"
	OrderSubmitting OrderState = "submitting"
	OrderConfirmed  OrderState = "confirmed"
	OrderFailed     OrderState = "failed"
)

// DefaultPhoneRegion is used to parse phone numbers without a country code.
const DefaultPhoneRegion = "IN"

// CartMirror is the part of the cart synchronizer the checkout flow needs.
type CartMirror interface {
	Cart() Cart
	Reset()
}

// OrderOption customizes OrderCoordinator construction.
type OrderOption func(*OrderCoordinator)

// WithPhoneRegion sets the region used for numbers without a country code.
func WithPhoneRegion(region string) OrderOption {
	return func(o *OrderCoordinator) {
		if region = strings.ToUpper(strings.TrimSpace(region)); region != "" {
			o.region = region
		}
	}
}

// WithStrictPhoneValidation rejects checkout phone numbers that do not parse
// as a valid number. By default any non-blank number is accepted.
func WithStrictPhoneValidation() OrderOption {
	return func(o *OrderCoordinator) {
		o.strictPhone = true
	}
}

// WithOrderLogger overrides the logger.
func WithOrderLogger(logger Logger) OrderOption {
	return func(o *OrderCoordinator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOrderActivitySink sets the ActivitySink used to publish order outcomes.
func WithOrderActivitySink(sink ActivitySink) OrderOption {
	return func(o *OrderCoordinator) {
		o.activitySink = normalizeActivitySink(sink)
	}
}

// WithOrderClock injects a custom clock (useful for tests).
func WithOrderClock(clock func() time.Time) OrderOption {
	return func(o *OrderCoordinator) {
		if clock != nil {
			o.now = clock
		}
	}
}

// WithIdempotencyKeyFunc overrides how idempotency keys are generated.
func WithIdempotencyKeyFunc(fn func() string) OrderOption {
	return func(o *OrderCoordinator) {
		if fn != nil {
			o.newKey = fn
		}
	}
}

// OrderCoordinator turns the cart mirror into an order. Each confirmation
// sends exactly one creation request with its own idempotency key and is
// never retried. The mirror is cleared only after the server confirms.
type OrderCoordinator struct {
	api          OrderAPI
	cart         CartMirror
	session      SessionSource
	region       string
	strictPhone  bool
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time
	newKey       func() string

	mu      sync.Mutex
	state   OrderState
	lastErr string
}

// NewOrderCoordinator returns an idle coordinator.
func NewOrderCoordinator(api OrderAPI, cart CartMirror, session SessionSource, opts ...OrderOption) *OrderCoordinator {
	o := &OrderCoordinator{
		api:          api,
		cart:         cart,
		session:      session,
		region:       DefaultPhoneRegion,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
		newKey:       uuid.NewString,
		state:        OrderIdle,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return o
}

// State returns the current checkout state.
func (o *OrderCoordinator) State() OrderState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError returns the message of the last failed checkout, or "".
func (o *OrderCoordinator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// PlaceOrder checks the preconditions locally and then sends one order
// creation request. On success the cart mirror is reset without a refetch.
// On failure the mirror is untouched and the coordinator is left Failed; a
// new call is a new confirmation with a new idempotency key.
func (o *OrderCoordinator) PlaceOrder(ctx context.Context, shippingAddress, phoneNumber string) (*Order, error) {
	o.mu.Lock()
	if o.state == OrderSubmitting {
		o.mu.Unlock()
		return nil, failure(ErrSubmissionInProgress, "", nil, nil)
	}
	o.lastErr = ""

	req, err := o.checkout(shippingAddress, phoneNumber)
	if err != nil {
		o.lastErr = UserMessage(err)
		o.mu.Unlock()
		return nil, err
	}

	o.state = OrderSubmitting
	o.mu.Unlock()

	key := o.newKey()
	cart := o.cart.Cart()
	o.logger.Info("submitting order", "items", cart.TotalItems(), "idempotency_key", key)

	order, err := o.api.CreateOrder(transport.WithIdempotencyKey(ctx, key), req)
	if err != nil {
		o.mu.Lock()
		o.state = OrderFailed
		o.lastErr = UserMessage(err)
		o.mu.Unlock()

		o.logger.Warn("order submission failed", "idempotency_key", key, "error", err)
		o.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventOrderFailed,
			Metadata: map[string]any{
				"idempotency_key": key,
				"total_items":     cart.TotalItems(),
				"error":           UserMessage(err),
				"error_code":      TextCode(err),
			},
		})
		return nil, err
	}

	o.mu.Lock()
	o.state = OrderConfirmed
	o.mu.Unlock()

	o.cart.Reset()

	o.mu.Lock()
	o.state = OrderIdle
	o.mu.Unlock()

	o.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventOrderPlaced,
		Metadata: map[string]any{
			"order_id":        order.ID,
			"idempotency_key": key,
			"total_amount":    order.TotalAmount.String(),
			"total_items":     cart.TotalItems(),
		},
	})

	return order, nil
}

// ListOrders returns the orders of the current user.
func (o *OrderCoordinator) ListOrders(ctx context.Context) ([]Order, error) {
	if err := o.requireSession("view orders"); err != nil {
		return nil, err
	}
	return o.api.ListOrders(ctx)
}

// GetOrder returns one order of the current user.
func (o *OrderCoordinator) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	if err := o.requireSession("view orders"); err != nil {
		return nil, err
	}
	return o.api.GetOrder(ctx, orderID)
}

// checkout validates the preconditions. The caller holds mu.
func (o *OrderCoordinator) checkout(shippingAddress, phoneNumber string) (CheckoutRequest, error) {
	if err := o.requireSession("place an order"); err != nil {
		return CheckoutRequest{}, err
	}

	if o.cart.Cart().IsEmpty() {
		return CheckoutRequest{}, failure(ErrCartEmpty, "", nil, nil)
	}

	address := strings.TrimSpace(shippingAddress)
	phone := strings.TrimSpace(phoneNumber)
	if address == "" || phone == "" {
		return CheckoutRequest{}, failure(ErrValidation, "shipping address and phone number are required", nil, map[string]any{
			"shipping_address": address != "",
			"phone_number":     phone != "",
		})
	}

	e164, err := o.normalizePhone(phone)
	if err != nil {
		return CheckoutRequest{}, err
	}

	return CheckoutRequest{
		ShippingAddress: address,
		PhoneNumber:     e164,
	}, nil
}

// normalizePhone returns the E.164 form of phone when it parses as a valid
// number. Otherwise phone is sent as entered, unless strict validation is on.
func (o *OrderCoordinator) normalizePhone(phone string) (string, error) {
	num, err := phonenumbers.Parse(phone, o.region)
	if err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164), nil
	}

	if o.strictPhone {
		return "", failure(ErrValidation, "phone number is not valid", err, map[string]any{
			"phone_number": phone,
			"region":       o.region,
		})
	}

	o.logger.Warn("sending unrecognized phone number as entered", "region", o.region, "error", err)
	return phone, nil
}

func (o *OrderCoordinator) requireSession(action string) error {
	if o.session.Session().IsAuthenticated() {
		return nil
	}
	return failure(ErrNotAuthenticated, "you must be logged in to "+action, nil, nil)
}

func (o *OrderCoordinator) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.UserID == "" && o.session != nil {
		event.UserID = o.session.Session().UserID
	}
	recordActivity(ctx, o.activitySink, o.logger, o.now, event)
}
