package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	id "trustbridge/pkg/domain"
	"trustbridge/pkg/requestcontext"
)

// InternalTokenHeader carries the shared secret used between the api and the legal engine.
const InternalTokenHeader = "X-Internal-Token"

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// UserChecker confirms the token subject still exists. Optional.
type UserChecker interface {
	UserExists(ctx context.Context, userID id.UserID) (bool, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID string
	Role   string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errCode, "error_description": errDesc})
}

// RequireAuth validates the bearer token and stores the caller's ID and role in the context.
func RequireAuth(validator JWTValidator, users UserChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, ok := authenticate(w, r, validator, users, logger)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate writes the error response itself and reports whether the request may proceed.
func authenticate(w http.ResponseWriter, r *http.Request, validator JWTValidator, users UserChecker, logger *slog.Logger) (context.Context, bool) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		logger.WarnContext(ctx, "unauthorized access - missing token", "request_id", requestID)
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
		return ctx, false
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		logger.WarnContext(ctx, "unauthorized access - invalid token", "error", err, "request_id", requestID)
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
		return ctx, false
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		logger.WarnContext(ctx, "unauthorized access - malformed token claims",
			"error", fmt.Errorf("invalid sub: %w", err),
			"request_id", requestID,
		)
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
		return ctx, false
	}

	if users != nil {
		exists, err := users.UserExists(ctx, userID)
		if err != nil {
			logger.ErrorContext(ctx, "failed to check token subject", "error", err, "request_id", requestID)
			writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to validate token")
			return ctx, false
		}
		if !exists {
			logger.WarnContext(ctx, "unauthorized access - unknown subject", "user_id", userID.String(), "request_id", requestID)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "User not found")
			return ctx, false
		}
	}

	ctx = requestcontext.WithUserID(ctx, userID)
	ctx = requestcontext.WithRole(ctx, claims.Role)
	return ctx, true
}

// RequireRole must run after RequireAuth. It rejects callers whose role is not listed.
func RequireRole(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := requestcontext.Role(ctx)
			if !slices.Contains(roles, role) {
				logger.WarnContext(ctx, "forbidden - role not permitted",
					"role", role,
					"allowed", roles,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireInternalToken admits only callers presenting the shared internal token.
// An empty expected token rejects everything.
func RequireInternalToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !internalTokenMatches(r, expected) {
				logger.WarnContext(ctx, "internal token mismatch", "request_id", requestcontext.RequestID(ctx))
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid internal token")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithInternalCaller(ctx)))
		})
	}
}

// RequireAuthOrInternal admits either a valid internal token or a bearer token
// whose role is listed.
func RequireAuthOrInternal(validator JWTValidator, users UserChecker, expected string, logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	roleCheck := RequireRole(logger, roles...)
	return func(next http.Handler) http.Handler {
		guarded := roleCheck(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(InternalTokenHeader) != "" {
				if !internalTokenMatches(r, expected) {
					ctx := r.Context()
					logger.WarnContext(ctx, "internal token mismatch", "request_id", requestcontext.RequestID(ctx))
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid internal token")
					return
				}
				next.ServeHTTP(w, r.WithContext(requestcontext.WithInternalCaller(r.Context())))
				return
			}

			ctx, ok := authenticate(w, r, validator, users, logger)
			if !ok {
				return
			}
			guarded.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func internalTokenMatches(r *http.Request, expected string) bool {
	if expected == "" {
		return false
	}
	got := r.Header.Get(InternalTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}
