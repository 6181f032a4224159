// Package storefront is a client for an e-commerce storefront REST API. It
// keeps the client side session and cart consistent with the server.
//
// Session:
//   - SessionStore owns the bearer credential and its decoded claims. It moves
//     between Unauthenticated, Restoring and Authenticated, persists the
//     credential through a Persistence backend and restores it on start.
//     Credentials that fail to decode, and any 401 answer from the API, reset
//     the store and purge everything it persisted.
//   - TransitionHooks observe every transition synchronously. Client uses one
//     to empty the cart mirror when the session ends.
//
// Trust boundary:
//   - UnverifiedResolver decodes credentials without checking the signature.
//     Roles derived from it drive navigation (see Decide and RouteGuard) and
//     nothing else. The server enforces authorization on every request.
//
// Cart:
//   - CartSynchronizer mirrors the server cart. Each successful call replaces
//     the mirror with the cart the server returned and a failed call leaves it
//     untouched. Mutations of one product are serialized in FIFO order.
//     Totals are computed from the mirror on every read.
//
// Checkout:
//   - OrderCoordinator validates the checkout locally, sends exactly one order
//     request per confirmation (tagged with an Idempotency-Key) and clears the
//     mirror only after the server confirms the order.
//
// Errors are *goerrors.Error values with stable text codes. Use
// IsDecodeError, IsValidationError, IsAuthorizationFailure and IsRemoteFailure
// to branch on the failure family and UserMessage for display.
package storefront
