package storefront

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeCredentialMalformed  = "CREDENTIAL_MALFORMED"
	TextCodeCredentialExpired    = "CREDENTIAL_EXPIRED"
	TextCodeValidation           = "VALIDATION_FAILED"
	TextCodeNotAuthenticated     = "NOT_AUTHENTICATED"
	TextCodeInvalidQuantity      = "INVALID_QUANTITY"
	TextCodeRemovalRequired      = "REMOVAL_REQUIRED"
	TextCodeRemovalNotConfirmed  = "REMOVAL_NOT_CONFIRMED"
	TextCodeCartEmpty            = "CART_EMPTY"
	TextCodeSubmissionInProgress = "SUBMISSION_IN_PROGRESS"
	TextCodeUnauthorized         = "UNAUTHORIZED"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeRemoteFailure        = "REMOTE_FAILURE"
	TextCodeInvalidTransition    = "INVALID_SESSION_TRANSITION"
)

// ErrMalformedCredential is returned when a credential payload cannot be decoded
// or lacks a subject.
var ErrMalformedCredential = goerrors.New("credential is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeCredentialMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrCredentialExpired is returned when the credential expiry is in the past.
var ErrCredentialExpired = goerrors.New("credential is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeCredentialExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrValidation is the base for local precondition failures.
var ErrValidation = goerrors.New("validation failed", goerrors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrNotAuthenticated is returned by operations that need a session.
var ErrNotAuthenticated = goerrors.New("you must be logged in", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidQuantity is returned for quantities below one.
var ErrInvalidQuantity = goerrors.New("quantity must be at least 1", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidQuantity).
	WithCode(goerrors.CodeBadRequest)

// ErrRemovalRequired is returned when an update would drive a quantity to zero
// or below. The caller must route the request to a confirmed removal.
var ErrRemovalRequired = goerrors.New("quantity must be positive, remove the item instead", goerrors.CategoryBadInput).
	WithTextCode(TextCodeRemovalRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrRemovalNotConfirmed is returned when the user declined a removal.
var ErrRemovalNotConfirmed = goerrors.New("item removal was not confirmed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeRemovalNotConfirmed).
	WithCode(goerrors.CodeBadRequest)

// ErrCartEmpty is returned when checking out an empty cart.
var ErrCartEmpty = goerrors.New("your cart is empty, add items before checking out", goerrors.CategoryValidation).
	WithTextCode(TextCodeCartEmpty).
	WithCode(goerrors.CodeBadRequest)

// ErrSubmissionInProgress is returned when an order is already being submitted.
var ErrSubmissionInProgress = goerrors.New("an order submission is already in progress", goerrors.CategoryConflict).
	WithTextCode(TextCodeSubmissionInProgress).
	WithCode(goerrors.CodeConflict)

// ErrUnauthorized maps a 401 answer from the API.
var ErrUnauthorized = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden maps a 403 answer from the API. Unlike a 401 it leaves the
// session intact.
var ErrForbidden = goerrors.New("access denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrRemoteFailure maps any other non-2xx answer or a network failure.
var ErrRemoteFailure = goerrors.New("remote request failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeRemoteFailure).
	WithCode(goerrors.CodeInternal)

// ErrInvalidTransition is returned when a session state change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid session state transition", goerrors.CategoryConflict).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeConflict)

var decodeCodes = map[string]struct{}{
	TextCodeCredentialMalformed: {},
	TextCodeCredentialExpired:   {},
}

var validationCodes = map[string]struct{}{
	TextCodeValidation:           {},
	TextCodeNotAuthenticated:     {},
	TextCodeInvalidQuantity:      {},
	TextCodeRemovalRequired:      {},
	TextCodeRemovalNotConfirmed:  {},
	TextCodeCartEmpty:            {},
	TextCodeSubmissionInProgress: {},
}

var authorizationCodes = map[string]struct{}{
	TextCodeUnauthorized: {},
	TextCodeForbidden:    {},
}

// IsDecodeError reports malformed or expired credentials.
func IsDecodeError(err error) bool {
	return hasTextCode(err, decodeCodes)
}

// IsValidationError reports local precondition failures that never reached
// the network.
func IsValidationError(err error) bool {
	return hasTextCode(err, validationCodes)
}

// IsAuthorizationFailure reports 401 and 403 answers.
func IsAuthorizationFailure(err error) bool {
	return hasTextCode(err, authorizationCodes)
}

// IsRemoteFailure reports any other failed request.
func IsRemoteFailure(err error) bool {
	return TextCode(err) == TextCodeRemoteFailure
}

// TextCode returns the text code of a rich error, or "".
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// UserMessage returns a message suitable for display.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

func hasTextCode(err error, codes map[string]struct{}) bool {
	if err == nil {
		return false
	}
	_, ok := codes[TextCode(err)]
	return ok
}

// failure clones base so callers never mutate the shared sentinel.
func failure(base *goerrors.Error, message string, source error, metadata map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if message != "" {
		clone.Message = message
	}
	if source != nil {
		clone.Source = source
	}
	if len(metadata) > 0 {
		clone = clone.WithMetadata(metadata)
	}
	return clone
}
