// Package auth implements credential validation, password hashing, and
// request validation for the Parley server.
//
// Access tokens are stateless signed JWTs carrying the numeric user ID as the
// stable identity and the username as a display-only field. Refresh tokens are
// a separate, persisted concern handled by the HTTP auth flow.
package auth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "parley"

// Credential validation failures form a closed taxonomy so callers can react
// per kind without string matching.
var (
	ErrMissingToken   = errors.New("auth: missing token")
	ErrMalformedToken = errors.New("auth: malformed token")
	ErrExpiredToken   = errors.New("auth: expired token")
)

// Claims is the payload carried inside an access token.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Validator signs and verifies access tokens. The signing secret is injected
// by the host process; the validator never reads configuration itself.
type Validator struct {
	secret []byte
	ttl    time.Duration
	log    *slog.Logger
}

// NewValidator creates a Validator with the given signing secret and access
// token lifetime.
func NewValidator(secret string, ttl time.Duration, log *slog.Logger) *Validator {
	return &Validator{secret: []byte(secret), ttl: ttl, log: log}
}

// Generate creates a signed access token for the given user.
func (v *Validator) Generate(userID int64, username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Validate parses and verifies a token string, returning the embedded claims.
// Failures map onto the package error taxonomy: an empty token is
// ErrMissingToken, an expired one ErrExpiredToken, anything else that fails
// parsing or signature verification ErrMalformedToken.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		v.log.Debug("credential rejected", "reason", "missing")
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			v.log.Debug("credential rejected", "reason", "expired")
			return nil, ErrExpiredToken
		}
		v.log.Debug("credential rejected", "reason", "malformed", "error", err)
		return nil, ErrMalformedToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		v.log.Debug("credential rejected", "reason", "malformed")
		return nil, ErrMalformedToken
	}
	return claims, nil
}
