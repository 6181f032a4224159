package storefront

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// RemovalConfirmer asks the user whether line should be removed from the cart.
// line is the zero value when the product is not in the mirror.
type RemovalConfirmer func(ctx context.Context, line CartLine) bool

// CartOption customizes CartSynchronizer construction.
type CartOption func(*CartSynchronizer)

// WithCartLogger overrides the logger.
func WithCartLogger(logger Logger) CartOption {
	return func(c *CartSynchronizer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCartActivitySink sets the ActivitySink used to publish mutation outcomes.
func WithCartActivitySink(sink ActivitySink) CartOption {
	return func(c *CartSynchronizer) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithCartClock injects a custom clock (useful for tests).
func WithCartClock(clock func() time.Time) CartOption {
	return func(c *CartSynchronizer) {
		if clock != nil {
			c.now = clock
		}
	}
}

const (
	cartOpFetch  = "fetch"
	cartOpAdd    = "add"
	cartOpUpdate = "update"
	cartOpRemove = "remove"
)

// CartSynchronizer owns the cart mirror. Every successful call replaces the
// mirror with the cart the server returned; a failed call leaves it as it was.
// The mirror is never changed locally, so it cannot drift from the server.
//
// At most one mutation per product is in flight. Later mutations for the same
// product wait in FIFO order, so responses apply in request order. Mutations
// on different products run concurrently.
type CartSynchronizer struct {
	api          CartAPI
	session      SessionSource
	logger       Logger
	activitySink ActivitySink
	now          func() time.Time

	locks   *keyedLock
	fetches singleflight.Group

	// fetchers counts callers inside Fetch's shared request.
	fetchers atomic.Int32

	mu sync.RWMutex
	// cart is the mirror.
	cart Cart
	// epoch increments on Reset. Responses to requests sent in an older
	// epoch are discarded.
	epoch uint64
	// version increments whenever a mutation response is applied. A fetch
	// response is discarded if version moved while it was in flight.
	version uint64
	lastErr string
}

// NewCartSynchronizer returns a synchronizer with an empty mirror.
func NewCartSynchronizer(api CartAPI, session SessionSource, opts ...CartOption) *CartSynchronizer {
	c := &CartSynchronizer{
		api:          api,
		session:      session,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		now:          time.Now,
		locks:        newKeyedLock(),
		cart:         NewCart(0),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Cart returns the current mirror.
func (c *CartSynchronizer) Cart() Cart {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cart
}

// TotalItems is derived from the mirror on every call.
func (c *CartSynchronizer) TotalItems() int {
	return c.Cart().TotalItems()
}

// LastError returns the message of the last user-visible failure, or "".
func (c *CartSynchronizer) LastError() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Reset empties the mirror and discards every response still in flight.
func (c *CartSynchronizer) Reset() {
	c.mu.Lock()
	c.cart = NewCart(0)
	c.epoch++
	c.version++
	c.lastErr = ""
	c.mu.Unlock()
}

// Fetch replaces the mirror with the server cart. Without an authenticated
// session the mirror is emptied and no request is sent. Concurrent calls
// share one request, made with the first caller's context.
func (c *CartSynchronizer) Fetch(ctx context.Context) (Cart, error) {
	c.setLastError("")

	if !c.session.Session().IsAuthenticated() {
		c.Reset()
		return c.Cart(), nil
	}

	c.fetchers.Add(1)
	_, err, shared := c.fetches.Do(cartOpFetch, func() (any, error) {
		epoch, version := c.marks()

		cart, err := c.api.GetCart(ctx)
		if err != nil {
			return nil, err
		}

		if !c.applyFetch(cart, epoch, version) {
			c.logger.Debug("discarding superseded cart fetch", "epoch", epoch, "version", version)
		}
		return nil, nil
	})
	c.fetchers.Add(-1)

	if err != nil {
		c.setLastError(UserMessage(err))
		c.logger.Warn("cart fetch failed", "shared", shared, "error", err)
		return c.Cart(), err
	}

	return c.Cart(), nil
}

// AddItem adds quantity units of productID.
func (c *CartSynchronizer) AddItem(ctx context.Context, productID int64, quantity int) error {
	c.setLastError("")

	if err := c.requireSession(cartOpAdd, "add items to cart"); err != nil {
		return err
	}

	if quantity < 1 {
		return c.reject(failure(ErrInvalidQuantity, "", nil, map[string]any{
			"product_id": productID,
			"quantity":   quantity,
		}))
	}

	return c.mutate(ctx, cartOpAdd, productID, quantity, func(ctx context.Context) (Cart, error) {
		return c.api.AddToCart(ctx, productID, quantity)
	})
}

// UpdateQuantity sets the quantity of productID. A quantity of zero or less is
// never sent: it fails with ErrRemovalRequired and the caller must route the
// request through a confirmed removal (see ChangeQuantity).
func (c *CartSynchronizer) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	c.setLastError("")

	if quantity <= 0 {
		return c.reject(failure(ErrRemovalRequired, "", nil, map[string]any{
			"product_id": productID,
			"quantity":   quantity,
		}))
	}

	if err := c.requireSession(cartOpUpdate, "update the cart"); err != nil {
		return err
	}

	return c.mutate(ctx, cartOpUpdate, productID, quantity, func(ctx context.Context) (Cart, error) {
		return c.api.UpdateCartItem(ctx, productID, quantity)
	})
}

// RemoveItem removes productID from the cart.
func (c *CartSynchronizer) RemoveItem(ctx context.Context, productID int64) error {
	c.setLastError("")

	if err := c.requireSession(cartOpRemove, "remove items from cart"); err != nil {
		return err
	}

	return c.mutate(ctx, cartOpRemove, productID, 0, func(ctx context.Context) (Cart, error) {
		return c.api.RemoveCartItem(ctx, productID)
	})
}

// ChangeQuantity is the entry point for quantity controls. Positive
// quantities are updates. Anything else is a removal, performed only when
// confirm approves it. confirm is never asked without a session.
func (c *CartSynchronizer) ChangeQuantity(ctx context.Context, productID int64, quantity int, confirm RemovalConfirmer) error {
	if quantity > 0 {
		return c.UpdateQuantity(ctx, productID, quantity)
	}

	c.setLastError("")
	if err := c.requireSession(cartOpRemove, "remove items from cart"); err != nil {
		return err
	}

	line, _ := c.Cart().Line(productID)
	if confirm == nil || !confirm(ctx, line) {
		return c.reject(failure(ErrRemovalNotConfirmed, "", nil, map[string]any{
			"product_id": productID,
		}))
	}

	return c.RemoveItem(ctx, productID)
}

func (c *CartSynchronizer) mutate(ctx context.Context, op string, productID int64, quantity int, call func(context.Context) (Cart, error)) error {
	unlock, err := c.locks.Lock(ctx, productID)
	if err != nil {
		return err
	}
	defer unlock()

	c.mu.RLock()
	epoch := c.epoch
	c.mu.RUnlock()

	cart, err := call(ctx)
	if err != nil {
		c.setLastError(UserMessage(err))
		c.logger.Info("cart mutation failed", "op", op, "product_id", productID, "error", err)
		c.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventCartMutationFailed,
			Metadata: map[string]any{
				"op":         op,
				"product_id": productID,
				"quantity":   quantity,
				"error":      UserMessage(err),
				"error_code": TextCode(err),
			},
		})
		return err
	}

	if !c.applyMutation(cart, epoch) {
		c.logger.Debug("discarding superseded cart response", "op", op, "product_id", productID)
		return nil
	}

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventCartMutation,
		Metadata: map[string]any{
			"op":          op,
			"product_id":  productID,
			"quantity":    quantity,
			"total_items": cart.TotalItems(),
		},
	})
	return nil
}

func (c *CartSynchronizer) applyMutation(cart Cart, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.cart = cart
	c.version++
	return true
}

func (c *CartSynchronizer) applyFetch(cart Cart, epoch, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.version != version {
		return false
	}
	c.cart = cart
	return true
}

func (c *CartSynchronizer) marks() (uint64, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch, c.version
}

func (c *CartSynchronizer) requireSession(op, action string) error {
	if c.session.Session().IsAuthenticated() {
		return nil
	}
	return c.reject(failure(ErrNotAuthenticated, "you must be logged in to "+action, nil, map[string]any{
		"op": op,
	}))
}

// reject records a local failure that never reached the network.
func (c *CartSynchronizer) reject(err error) error {
	c.setLastError(UserMessage(err))
	return err
}

func (c *CartSynchronizer) setLastError(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

func (c *CartSynchronizer) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.UserID == "" && c.session != nil {
		event.UserID = c.session.Session().UserID
	}
	recordActivity(ctx, c.activitySink, c.logger, c.now, event)
}
