package httputil

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/hospital-erp/pkg/auth"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/logger"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
)

// Headers set by the API gateway once it has authenticated the caller.
const (
	HeaderUserID       = "X-User-ID"
	HeaderDepartmentID = "X-Department-ID"
	HeaderUserRole     = "X-User-Role"
	HeaderGlobalRole   = "X-Global-Role"
)

// RequestID middleware adds a request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger middleware logs HTTP requests
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			userID := ""
			if id := identity.FromContext(r.Context()); id != nil {
				userID = id.UserID
			}

			log.Info().
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.statusCode).
				Dur("duration", time.Since(start)).
				Str("user_id", userID).
				Str("remote_addr", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// Recoverer middleware recovers from panics
func Recoverer(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error().
						Interface("panic", err).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					Error(w, errors.Internal("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// IdentityMiddleware attaches the caller identity to the request context.
//
// A Bearer token is verified when a verifier is configured. Without a token the
// trusted gateway headers are used:
//   - X-User-ID: user UUID (required)
//   - X-Department-ID: department the user belongs to
//   - X-User-Role: role name
//   - X-Global-Role: "true" for roles that span all departments
//
// Requests without an identity get 401. /health is always allowed.
func IdentityMiddleware(verifier *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := resolveIdentity(r, verifier)
			if err != nil {
				Error(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
		})
	}
}

func resolveIdentity(r *http.Request, verifier *auth.Verifier) (*identity.Identity, error) {
	if header := r.Header.Get("Authorization"); header != "" && verifier != nil {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return nil, errors.TokenInvalid()
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			return nil, err
		}
		return claims.Identity(), nil
	}

	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return nil, errors.Unauthorized("missing identity")
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, errors.Unauthorized("invalid user id")
	}

	global, _ := strconv.ParseBool(r.Header.Get(HeaderGlobalRole))
	return &identity.Identity{
		UserID:       userID,
		DepartmentID: r.Header.Get(HeaderDepartmentID),
		Role:         r.Header.Get(HeaderUserRole),
		IsGlobalRole: global,
	}, nil
}

// RequirePermission rejects requests whose identity lacks the permission.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity.FromContext(r.Context())
			if id == nil {
				Error(w, errors.Unauthorized("missing identity"))
				return
			}
			if !id.Can(permission) {
				Error(w, errors.Forbidden("missing permission "+permission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
