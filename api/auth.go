package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/inventory-engine/inventory"
)

// =============================================================================
// CALLER IDENTITY
// =============================================================================

// Sessions are handled by an upstream gateway, which forwards the resolved
// user in these headers.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const (
	RoleAdmin  = "ROLE_ADMIN"
	RoleOffice = "ROLE_OFFICE"
	RoleSales  = "ROLE_SALES"
)

var (
	// invoiceRoles may create sales and purchases.
	invoiceRoles = []string{RoleOffice, RoleSales, RoleAdmin}
	// stockRoles may reconcile stock and write the product master.
	stockRoles = []string{RoleOffice, RoleAdmin}
)

type actorKey struct{}

// Authenticate resolves the caller from the identity headers and rejects
// requests without one.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
			return
		}
		actor := inventory.Actor{
			ID:   id,
			Role: strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderUserRole))),
		}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits callers holding one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "authentication required")
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, CodeForbidden, "insufficient permissions")
		})
	}
}

// ActorFrom returns the caller stored by Authenticate.
func ActorFrom(ctx context.Context) (inventory.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(inventory.Actor)
	return actor, ok
}
