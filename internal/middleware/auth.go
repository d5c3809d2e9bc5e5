package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/xelth-com/assetledger/internal/models"
	"github.com/xelth-com/assetledger/internal/utils"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Actor is the authenticated user behind a request
type Actor struct {
	ID    uint
	Email string
	Role  models.Role
}

// IsAdmin reports whether the actor may run privileged operations
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == models.RoleAdmin
}

// WithActor stores the actor in ctx
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

// ActorFromContext returns the request's actor, nil for anonymous requests
func ActorFromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorContextKey).(*Actor)
	return a
}

// bearerToken reads the token from the Authorization header, or from the
// token query parameter for websocket clients that cannot set headers
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.Split(h, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, true
	}
	return "", false
}

func actorFromRequest(r *http.Request, secret string) (*Actor, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, false
	}
	claims, err := utils.ValidateToken(token, secret)
	if err != nil {
		return nil, false
	}
	id, ok := utils.ClaimUserID(claims)
	if !ok {
		return nil, false
	}
	a := &Actor{ID: id}
	a.Email, _ = claims["email"].(string)
	role, _ := claims["role"].(string)
	a.Role = models.Role(role)
	return a, true
}

// Auth rejects requests without a valid access token
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := actorFromRequest(r, secret)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			ctx := WithActor(r.Context(), a)
			ctx = utils.WithLogger(ctx, utils.LoggerFromContext(ctx).WithField("user_id", a.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the actor when a valid token is present and lets
// anonymous requests through
func OptionalAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a, ok := actorFromRequest(r, secret); ok {
				r = r.WithContext(WithActor(r.Context(), a))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects non-admin actors. It must run after Auth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFromContext(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
