// Package auth resolves bearer tokens into user sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserType determines entitlement tiers (daily message quota).
type UserType string

const (
	UserTypeGuest   UserType = "guest"
	UserTypeRegular UserType = "regular"
)

// Session identifies the authenticated caller.
type Session struct {
	UserID   string
	UserType UserType
}

var (
	// ErrNoToken reports a missing Authorization header.
	ErrNoToken = errors.New("no bearer token")
	// ErrInvalidToken reports a token that failed verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier validates HS256 session tokens minted by the identity provider.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a verifier over the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token, returning the session it encodes.
func (v *Verifier) Verify(token string) (Session, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Session{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Session{}, ErrInvalidToken
	}

	userType := UserTypeRegular
	if raw, _ := claims["userType"].(string); raw == string(UserTypeGuest) {
		userType = UserTypeGuest
	}
	return Session{UserID: sub, UserType: userType}, nil
}

type contextKey struct{}

// Middleware rejects requests without a valid session and stores the
// session on the request context. Tokens are read from the Authorization
// header or, for WebSocket/EventSource clients, a token query parameter.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		session, err := v.Verify(token)
		if err != nil {
			http.Error(w, `{"error":"invalid session"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// WithSession stores a session on the context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SessionFrom retrieves the session stored by Middleware.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
