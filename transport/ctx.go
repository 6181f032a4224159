package transport

import "context"

var idempotencyCtxKey = &contextKey{"idempotency_key"}
var requestIDCtxKey = &contextKey{"request_id"}

type contextKey struct {
	name string
}

// WithIdempotencyKey sets the Idempotency-Key header value for requests made
// with the returned context.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyCtxKey, key)
}

// IdempotencyKeyFromContext returns the idempotency key, if any.
func IdempotencyKeyFromContext(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyCtxKey).(string)
	return key
}

// WithRequestID pins the X-Request-ID header for requests made with the
// returned context. Without it every request gets a fresh id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext returns the pinned request id, if any.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

var skipUnauthorizedCtxKey = &contextKey{"skip_unauthorized"}

// WithoutUnauthorizedHandler marks requests whose 401 answer is an expected
// outcome, such as a rejected login, so the unauthorized handler is not run.
func WithoutUnauthorizedHandler(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipUnauthorizedCtxKey, true)
}

func skipUnauthorized(ctx context.Context) bool {
	skip, _ := ctx.Value(skipUnauthorizedCtxKey).(bool)
	return skip
}
