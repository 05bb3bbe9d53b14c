package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/joineazy/feedback-apiserver/types"
)

type contextKey string

const contextIdentityKey contextKey = "identity"

// validate checks request payload tags; shared across handlers.
var validate = validator.New()

var errNoIdentity = errors.New("no identity in context")

func identityFromContext(ctx context.Context) (types.Identity, error) {
	identity, ok := ctx.Value(contextIdentityKey).(types.Identity)
	if !ok || identity.ID < 1 {
		return types.Identity{}, errNoIdentity
	}
	return identity, nil
}

func withIdentity(ctx context.Context, identity types.Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, identity)
}

// requireRole gates a route on the resolved identity's role. It runs after
// the authentication gate, so a missing identity is an authentication
// failure, not a permission one.
func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identityFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "You are not logged in. Please log in to access this resource.")
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "You do not have permission to perform this action")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeData wraps a single payload in the success envelope.
func writeData(w http.ResponseWriter, status int, key string, value any) {
	writeJSON(w, status, map[string]any{
		"status": "success",
		"data":   map[string]any{key: value},
	})
}

// writeListData is writeData plus a result count for list reads.
func writeListData(w http.ResponseWriter, status int, key string, value any, results int) {
	writeJSON(w, status, map[string]any{
		"status":  "success",
		"results": results,
		"data":    map[string]any{key: value},
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"message": message})
}

// writeInternal reports an unanticipated failure. The underlying error is
// attached only outside production mode.
func writeInternal(w http.ResponseWriter, message string, err error, debug bool) {
	body := map[string]any{"message": message}
	if debug && err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
