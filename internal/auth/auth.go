// Package auth authenticates inbound HTTP requests: either a static API key
// or a bearer JWT, both resolving to a user ID attached to the request
// context for the core's ownership checks to consume.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sandboxlabs/sandboxd/internal/apperrors"
)

type contextKey int

const userIDKey contextKey = 0

// Claims are the custom fields carried by a sandboxd-issued or
// sandboxd-verified bearer token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier validates a bearer token and returns the user ID it authenticates.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	if issuer == "" {
		issuer = "sandboxd"
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// VerifyToken validates signature, expiration, and issuer, and returns the
// authenticated user ID. Only HMAC-signed tokens are accepted; any other
// "alg" is rejected to prevent algorithm-substitution attacks.
func (v *Verifier) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		return "", apperrors.New(apperrors.KindAuthRequired, "verify_token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", apperrors.Newf(apperrors.KindAuthRequired, "verify_token", "token has no subject")
	}
	return claims.UserID, nil
}

// IssueToken mints a token for userID. Within this repository only tests
// call it; operators normally issue tokens from an external identity
// provider.
func (v *Verifier) IssueToken(userID string, ttlSeconds int64) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlSeconds) * time.Second)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the authenticated user ID, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok && v != ""
}

var errNoUserID = errors.New("no authenticated user in context")

// RequireUserID extracts the authenticated user ID or returns an
// AuthRequired error, for handlers that cannot proceed without one.
func RequireUserID(ctx context.Context) (string, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return "", apperrors.New(apperrors.KindAuthRequired, "require_user_id", errNoUserID)
	}
	return userID, nil
}
