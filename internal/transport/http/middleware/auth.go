package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bapmate/internal/httputil"
	"bapmate/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user's ID
	UserIDKey contextKey = "user_id"

	// IssuedAtKey holds the iat of the access token that authenticated the request
	IssuedAtKey contextKey = "iat"
)

var (
	errMissingToken = errors.New("missing token")
	errBadClaims    = errors.New("invalid token claims")
)

// AuthMiddleware creates a middleware that validates JWT tokens
// Checks Authorization header first (for mobile), then falls back to cookie (for web)
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, func(r *http.Request) string {
		if token := bearerToken(r); token != "" {
			return token
		}
		if cookie, err := r.Cookie("access_token"); err == nil {
			return cookie.Value
		}
		return ""
	})
}

// WebSocketAuthMiddleware reads the token from the ?token= query parameter,
// since browsers cannot set headers on a websocket handshake.
func WebSocketAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, func(r *http.Request) string {
		if token := r.URL.Query().Get("token"); token != "" {
			return token
		}
		return bearerToken(r)
	})
}

func authenticate(jwtSecret string, extract func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, issuedAt, err := ParseAccessToken(jwtSecret, extract(r))
			if err != nil {
				switch {
				case errors.Is(err, errMissingToken):
					httputil.WriteUnauthorized(w, "Missing authentication token")
				case errors.Is(err, jwt.ErrTokenExpired):
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenExpired, "Access token has expired")
				default:
					httputil.WriteUnauthorizedWithCode(w, model.CodeTokenInvalid, "Invalid authentication token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, IssuedAtKey, issuedAt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseAccessToken validates an access token and returns its user id and
// issue time. Tokens minted for another purpose, such as password reset
// tickets, are rejected.
func ParseAccessToken(jwtSecret, tokenString string) (string, time.Time, error) {
	if tokenString == "" {
		return "", time.Time{}, errMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return "", time.Time{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", time.Time{}, errBadClaims
	}
	if _, scoped := claims["purpose"]; scoped {
		return "", time.Time{}, errBadClaims
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", time.Time{}, errBadClaims
	}

	var issuedAt time.Time
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		issuedAt = iat.Time
	}
	return userID, issuedAt, nil
}

func bearerToken(r *http.Request) string {
	// Expected format: "Bearer <token>"
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// BearerToken exposes the raw bearer token of r, for endpoints that accept
// tokens other than access tokens.
func BearerToken(r *http.Request) string {
	return bearerToken(r)
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// GetIssuedAtFromContext returns the iat of the authenticating access token.
func GetIssuedAtFromContext(ctx context.Context) time.Time {
	iat, _ := ctx.Value(IssuedAtKey).(time.Time)
	return iat
}
