package storefront_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storefront "github.com/goliatone/go-storefront"
)

func TestErrorFamilies(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		decode        bool
		validation    bool
		authorization bool
		remote        bool
	}{
		{name: "malformed credential", err: storefront.ErrMalformedCredential, decode: true},
		{name: "expired credential", err: storefront.ErrCredentialExpired, decode: true},
		{name: "validation", err: storefront.ErrValidation, validation: true},
		{name: "not authenticated", err: storefront.ErrNotAuthenticated, validation: true},
		{name: "invalid quantity", err: storefront.ErrInvalidQuantity, validation: true},
		{name: "removal required", err: storefront.ErrRemovalRequired, validation: true},
		{name: "cart empty", err: storefront.ErrCartEmpty, validation: true},
		{name: "submission in progress", err: storefront.ErrSubmissionInProgress, validation: true},
		{name: "unauthorized", err: storefront.ErrUnauthorized, authorization: true},
		{name: "forbidden", err: storefront.ErrForbidden, authorization: true},
		{name: "remote failure", err: storefront.ErrRemoteFailure, remote: true},
		{name: "plain error", err: errors.New("boom")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.decode, storefront.IsDecodeError(tt.err))
			assert.Equal(t, tt.validation, storefront.IsValidationError(tt.err))
			assert.Equal(t, tt.authorization, storefront.IsAuthorizationFailure(tt.err))
			assert.Equal(t, tt.remote, storefront.IsRemoteFailure(tt.err))
		})
	}
}

func TestErrorFamiliesSurviveWrapping(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), storefront.ErrForbidden)
	assert.True(t, storefront.IsAuthorizationFailure(wrapped))
	assert.Equal(t, storefront.TextCodeForbidden, storefront.TextCode(wrapped))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", storefront.UserMessage(nil))
	assert.Equal(t, "access denied", storefront.UserMessage(storefront.ErrForbidden))
	assert.Equal(t, "boom", storefront.UserMessage(errors.New("boom")))
}

func TestFailuresDoNotMutateSentinels(t *testing.T) {
	sessions := anonymousSession()
	cart := storefront.NewCartSynchronizer(&MockCartAPI{}, sessions, storefront.WithCartLogger(storefront.NopLogger()))

	err := cart.AddItem(t.Context(), 1, 1)
	require.Error(t, err)
	assert.Equal(t, "you must be logged in to add items to cart", storefront.UserMessage(err))
	assert.Equal(t, "you must be logged in", storefront.ErrNotAuthenticated.Message)
	assert.Empty(t, storefront.ErrNotAuthenticated.Metadata)
}
