package storefront

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityResolver decodes a credential into claims or rejects it.
//
// Trust boundary: claims produced by UnverifiedResolver are NOT verified.
// They are hints for display and navigation only. The remote API re-checks
// authorization on every request, so a client side role check is never a
// security control. Use VerifyingResolver when the issuer publishes its keys.
type IdentityResolver interface {
	Resolve(credential string) (*Claims, error)
}

// ResolverFunc adapts a function into an IdentityResolver.
type ResolverFunc func(credential string) (*Claims, error)

// Resolve satisfies the IdentityResolver interface.
func (f ResolverFunc) Resolve(credential string) (*Claims, error) {
	if f == nil {
		return nil, ErrMalformedCredential
	}
	return f(credential)
}

// ResolverOption customizes the bundled resolvers.
type ResolverOption func(*resolverOptions)

type resolverOptions struct {
	skew time.Duration
	now  func() time.Time
}

// WithResolverClockSkew sets the tolerance applied to the exp claim.
func WithResolverClockSkew(skew time.Duration) ResolverOption {
	return func(o *resolverOptions) {
		if skew >= 0 {
			o.skew = skew
		}
	}
}

// WithResolverClock injects a custom clock (useful for tests).
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(o *resolverOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func buildResolverOptions(opts []ResolverOption) resolverOptions {
	o := resolverOptions{
		skew: 30 * time.Second,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

var _ IdentityResolver = (*UnverifiedResolver)(nil)

// UnverifiedResolver decodes the JWT payload without checking the signature.
type UnverifiedResolver struct {
	opts   resolverOptions
	parser *jwt.Parser
}

// NewUnverifiedResolver returns a resolver for client side display and gating.
func NewUnverifiedResolver(opts ...ResolverOption) *UnverifiedResolver {
	return &UnverifiedResolver{
		opts:   buildResolverOptions(opts),
		parser: jwt.NewParser(jwt.WithJSONNumber()),
	}
}

// Resolve satisfies the IdentityResolver interface.
func (r *UnverifiedResolver) Resolve(credential string) (*Claims, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, failure(ErrMalformedCredential, "credential is empty", nil, nil)
	}

	mc := jwt.MapClaims{}
	if _, _, err := r.parser.ParseUnverified(credential, mc); err != nil {
		return nil, failure(ErrMalformedCredential, "", err, nil)
	}

	claims, err := claimsFromMap(mc)
	if err != nil {
		return nil, failure(ErrMalformedCredential, "", err, nil)
	}

	now := r.opts.now()
	if claims.Expired(now, r.opts.skew) {
		return nil, failure(ErrCredentialExpired, "", nil, map[string]any{
			"expires_at": claims.ExpiresAt,
			"now":        now,
		})
	}

	return claims, nil
}

var _ IdentityResolver = (*VerifyingResolver)(nil)

// VerifyingResolver checks the signature with a jwt.Keyfunc before decoding.
type VerifyingResolver struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
	opts    resolverOptions
}

// NewVerifyingResolver returns a resolver that trusts only tokens signed by
// a key returned from keyFunc.
func NewVerifyingResolver(keyFunc jwt.Keyfunc, opts ...ResolverOption) *VerifyingResolver {
	o := buildResolverOptions(opts)
	return &VerifyingResolver{
		keyFunc: keyFunc,
		opts:    o,
		parser: jwt.NewParser(
			jwt.WithJSONNumber(),
			jwt.WithLeeway(o.skew),
			jwt.WithTimeFunc(o.now),
		),
	}
}

// NewHMACResolver verifies HS256 tokens carrying the given key id.
func NewHMACResolver(kid string, secret []byte, opts ...ResolverOption) *VerifyingResolver {
	given := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		kid: keyfunc.NewGivenCustom(secret, keyfunc.GivenKeyOptions{
			Algorithm: jwt.SigningMethodHS256.Alg(),
		}),
	})
	return NewVerifyingResolver(given.Keyfunc, opts...)
}

// NewJWKSResolver fetches the key set published at jwksURL and refreshes it
// in the background. Call the returned stop function to end the refresh.
func NewJWKSResolver(jwksURL string, logger Logger, opts ...ResolverOption) (*VerifyingResolver, func(), error) {
	logger = normalizeLogger(logger)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("jwks background refresh failed", "url", jwksURL, "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get JWK set: %w", err)
	}
	return NewVerifyingResolver(jwks.Keyfunc, opts...), jwks.EndBackground, nil
}

// Resolve satisfies the IdentityResolver interface.
func (r *VerifyingResolver) Resolve(credential string) (*Claims, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, failure(ErrMalformedCredential, "credential is empty", nil, nil)
	}
	if r.keyFunc == nil {
		return nil, failure(ErrMalformedCredential, "no verification key configured", nil, nil)
	}

	mc := jwt.MapClaims{}
	if _, err := r.parser.ParseWithClaims(credential, mc, r.keyFunc); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, failure(ErrCredentialExpired, "", err, nil)
		}
		return nil, failure(ErrMalformedCredential, "", err, nil)
	}

	claims, err := claimsFromMap(mc)
	if err != nil {
		return nil, failure(ErrMalformedCredential, "", err, nil)
	}
	return claims, nil
}
