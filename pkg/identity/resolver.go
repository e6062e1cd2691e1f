package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingSigningKey is returned when a resolver is built without a key.
	ErrMissingSigningKey = errors.New("identity: signing key is required")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("identity: invalid token")
)

// CookieName is the auth cookie checked when no Authorization header is set.
const CookieName = "auth_token"

// QueryParam is the query parameter checked last; EventSource connections
// cannot carry headers, so browser stream requests authenticate through it.
const QueryParam = "token"

// Claims are the JWT claims the auth subsystem issues.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Resolver verifies caller tokens and resolves them to user IDs.
type Resolver struct {
	signingKey []byte
}

// NewResolver creates a resolver for HS256 tokens signed with signingKey.
func NewResolver(signingKey string) (*Resolver, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	return &Resolver{signingKey: []byte(signingKey)}, nil
}

// Resolve verifies the token and returns the user ID it carries.
func (r *Resolver) Resolve(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return r.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// Token issues a signed token for userID, valid for ttl. Collaborating
// services use it to call the authenticated endpoints.
func (r *Resolver) Token(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Middleware resolves the caller's identity into the request context.
// Requests without any token pass through anonymous; requests with an
// invalid token are rejected with 401.
func (r *Resolver) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			tokenString := extractToken(req)
			if tokenString == "" {
				next.ServeHTTP(w, req)
				return
			}

			userID, err := r.Resolve(tokenString)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, req.WithContext(WithUserID(req.Context(), userID)))
		})
	}
}

// extractToken checks the Authorization header, then the auth cookie, then
// the query parameter.
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			return token
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get(QueryParam)
}
