/**
 * @description
 * This file contains the authentication and authorization middleware for the
 * banking-service API.
 *
 * Key features:
 * - AuthMiddleware validates HS256 bearer tokens issued by the identity
 *   provider and injects the subject (the profile UUID) into the context.
 * - RequireRoles gates staff routes on the caller's row in `admin_profiles`.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: token parsing and claim validation.
 */

package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oakline/banking-service/internal/app"
)

type contextKey string

const (
	userIDContextKey contextKey = "userID"
	roleContextKey   contextKey = "staffRole"
)

// AuthMiddlewareConfig controls how incoming requests are authenticated.
type AuthMiddlewareConfig struct {
	Secret           string
	ExpectedIssuer   string
	ExpectedAudience string
}

// AuthMiddleware validates bearer tokens and injects the caller's user ID into context.
func AuthMiddleware(cfg AuthMiddlewareConfig) func(http.Handler) http.Handler {
	secret := []byte(strings.TrimSpace(cfg.Secret))
	issuer := strings.TrimSpace(cfg.ExpectedIssuer)
	audience := strings.TrimSpace(cfg.ExpectedAudience)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "Authorization required")
				return
			}
			tokenString, ok := bearerToken(authHeader)
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			userID, err := validateToken(tokenString, secret, issuer, audience)
			if err != nil {
				log.Printf("level=warn component=auth msg=\"token rejected\" path=%s err=%v", r.URL.Path, err)
				writeJSONError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles allows the request through only when the authenticated caller
// holds one of the allowed staff roles.
func RequireRoles(roles *app.RoleService, allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := GetUserID(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "Authorization required")
				return
			}

			role, permitted, err := roles.HasAnyRole(r.Context(), userID, allowed)
			if err != nil {
				log.Printf("level=error component=auth msg=\"role lookup failed\" user_id=%s err=%v", userID, err)
				writeJSONError(w, http.StatusForbidden, "Forbidden")
				return
			}
			if !permitted {
				log.Printf("level=warn component=auth msg=\"staff route denied\" user_id=%s role=%q path=%s", userID, role, r.URL.Path)
				writeJSONError(w, http.StatusForbidden, "Forbidden")
				return
			}

			ctx := context.WithValue(r.Context(), roleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated user ID from request context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDContextKey).(uuid.UUID)
	return userID, ok
}

// GetStaffRole returns the role set by RequireRoles.
func GetStaffRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey).(string)
	return role, ok
}

func bearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}

	return token, true
}

func validateToken(tokenString string, secret []byte, expectedIssuer string, expectedAudience string) (uuid.UUID, error) {
	if len(secret) == 0 {
		return uuid.Nil, errors.New("signing secret not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if expectedIssuer != "" {
		opts = append(opts, jwt.WithIssuer(expectedIssuer))
	}
	if expectedAudience != "" {
		opts = append(opts, jwt.WithAudience(expectedAudience))
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return uuid.Nil, errors.New("token validation failed")
	}

	userID, err := uuid.Parse(strings.TrimSpace(claims.Subject))
	if err != nil {
		return uuid.Nil, errors.New("subject claim is not a user id")
	}
	return userID, nil
}
