package storefronttest

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrMismatchedPassword is returned when a password does not match its hash.
var ErrMismatchedPassword = errors.New("storefronttest: password mismatch")

// hashPassword uses the minimum bcrypt cost. The fake API runs in tests.
func hashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("storefronttest: empty password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(h), err
}

func comparePassword(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedPassword
		}
		return err
	}
	return nil
}

// signToken issues an HS256 token shaped like the storefront backend's:
// sub is the email, userId the numeric id and roles the granted roles.
func (s *Server) signToken(u *user, issuedAt time.Time, ttl time.Duration) (string, string, error) {
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":    u.Email,
		"userId": u.ID,
		"uuid":   u.UUID.String(),
		"roles":  append([]string(nil), u.Roles...),
		"iat":    issuedAt.Unix(),
		"exp":    issuedAt.Add(ttl).Unix(),
		"jti":    jti,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.kid

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}
	return signed, jti, nil
}

// parseToken verifies a bearer token and returns its subject and jti.
func (s *Server) parseToken(raw string) (string, string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", "", err
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", "", errors.New("token has no subject")
	}
	jti, _ := claims["jti"].(string)
	return sub, jti, nil
}
