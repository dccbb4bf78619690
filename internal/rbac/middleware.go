package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// Headers set by the upstream gateway after it authenticated the caller.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

var (
	// ErrMissingActor indicates the request carries no usable identity.
	ErrMissingActor = errors.New("rbac: actor identity missing")
	// ErrUnknownRole indicates an unsupported role header.
	ErrUnknownRole = errors.New("rbac: unknown role")
)

// ActorFromRequest reads the actor identity forwarded by the gateway.
func ActorFromRequest(r *http.Request) (Actor, error) {
	rawID := strings.TrimSpace(r.Header.Get(HeaderActorID))
	if rawID == "" {
		return Actor{}, ErrMissingActor
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, ErrMissingActor
	}
	role, ok := ParseRole(r.Header.Get(HeaderActorRole))
	if !ok {
		return Actor{}, ErrUnknownRole
	}
	return Actor{ID: id, Role: role}, nil
}

// Middleware wires identity checks for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireActor rejects requests without a forwarded identity.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := ActorFromRequest(r); err != nil {
			if m.Logger != nil {
				m.Logger.Warn("rbac require actor", slog.Any("error", err), slog.String("path", r.URL.Path))
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireApprover only lets admin and super_admin actors through.
func (m Middleware) RequireApprover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := ActorFromRequest(r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if !actor.CanApprove() {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
