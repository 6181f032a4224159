package storefront_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storefront "github.com/goliatone/go-storefront"
)

func TestUnverifiedResolverDecodesClaims(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := signToken("ada@example.com", 42, []string{"USER", "ROLE_ADMIN"}, now.Add(time.Hour))

	r := storefront.NewUnverifiedResolver(storefront.WithResolverClock(fixedClock(now)))
	claims, err := r.Resolve(token)
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", claims.Subject)
	assert.Equal(t, "42", claims.UserID)
	assert.True(t, claims.HasRole("admin"))
	assert.True(t, claims.HasRole("USER"))
	assert.Equal(t, []string{"ADMIN", "USER"}, claims.Roles.Slice())
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func TestUnverifiedResolverIgnoresSignature(t *testing.T) {
	now := time.Now()
	token := signToken("ada@example.com", 1, []string{"USER"}, now.Add(time.Hour))

	// Corrupt the signature segment.
	tampered := token[:len(token)-4] + "AAAA"

	claims, err := storefront.NewUnverifiedResolver().Resolve(tampered)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Subject)
}

func TestUnverifiedResolverRejections(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": 1,
		"exp":    now.Add(time.Hour).Unix(),
	})
	noSubjectToken, err := noSubject.SignedString(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		textCode string
	}{
		{name: "empty", token: "  ", textCode: storefront.TextCodeCredentialMalformed},
		{name: "garbage", token: "not-a-jwt", textCode: storefront.TextCodeCredentialMalformed},
		{name: "missing subject", token: noSubjectToken, textCode: storefront.TextCodeCredentialMalformed},
		{
			name:     "expired beyond skew",
			token:    signToken("ada@example.com", 1, nil, now.Add(-time.Minute)),
			textCode: storefront.TextCodeCredentialExpired,
		},
	}

	r := storefront.NewUnverifiedResolver(
		storefront.WithResolverClock(fixedClock(now)),
		storefront.WithResolverClockSkew(30*time.Second),
	)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := r.Resolve(tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.True(t, storefront.IsDecodeError(err))
			assert.Equal(t, tt.textCode, storefront.TextCode(err))
		})
	}
}

func TestUnverifiedResolverToleratesClockSkew(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := signToken("ada@example.com", 1, nil, now.Add(-10*time.Second))

	r := storefront.NewUnverifiedResolver(
		storefront.WithResolverClock(fixedClock(now)),
		storefront.WithResolverClockSkew(30*time.Second),
	)
	_, err := r.Resolve(token)
	assert.NoError(t, err)
}

func TestUnverifiedResolverSingleRoleClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ada@example.com",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	raw, err := token.SignedString(testSecret)
	require.NoError(t, err)

	claims, err := storefront.NewUnverifiedResolver().Resolve(raw)
	require.NoError(t, err)
	assert.True(t, claims.HasRole(storefront.RoleAdmin))
}

func TestHMACResolverVerifiesSignature(t *testing.T) {
	now := time.Now()
	token := signToken("ada@example.com", 5, []string{"USER"}, now.Add(time.Hour))

	r := storefront.NewHMACResolver("unit", testSecret)
	claims, err := r.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "5", claims.UserID)

	wrong := storefront.NewHMACResolver("unit", []byte("another-secret"))
	_, err = wrong.Resolve(token)
	require.Error(t, err)
	assert.Equal(t, storefront.TextCodeCredentialMalformed, storefront.TextCode(err))
}

func TestHMACResolverMapsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := signToken("ada@example.com", 5, nil, now.Add(-time.Hour))

	r := storefront.NewHMACResolver("unit", testSecret, storefront.WithResolverClock(fixedClock(now)))
	_, err := r.Resolve(token)
	require.Error(t, err)
	assert.Equal(t, storefront.TextCodeCredentialExpired, storefront.TextCode(err))
}

func TestResolverFunc(t *testing.T) {
	var nilFunc storefront.ResolverFunc
	_, err := nilFunc.Resolve("x")
	assert.True(t, storefront.IsDecodeError(err))

	fn := storefront.ResolverFunc(func(credential string) (*storefront.Claims, error) {
		return &storefront.Claims{Subject: credential}, nil
	})
	claims, err := fn.Resolve("ada")
	require.NoError(t, err)
	assert.Equal(t, "ada", claims.Subject)
}

func TestClaimsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var none *storefront.Claims
	assert.False(t, none.Expired(now, 0))
	assert.False(t, (&storefront.Claims{}).Expired(now, 0))

	c := &storefront.Claims{ExpiresAt: now.Add(-time.Second)}
	assert.True(t, c.Expired(now, 0))
	assert.False(t, c.Expired(now, time.Minute))
}
