package middleware // middleware provides shared request processing for handlers

import (
	"context"  // context bounds the role lookup
	"errors"   // errors distinguishes a missing role from a store failure
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/rbac-admin/internal/apperror"   // error taxonomy for store failures
	"github.com/iliyamo/rbac-admin/internal/repository" // ErrNotFound sentinel
	"github.com/iliyamo/rbac-admin/internal/response"   // uniform failure envelope
)

// RoleNamer resolves a role id to its current name.
type RoleNamer interface {
	NameByID(ctx context.Context, id uint64) (string, error)
}

// RequireRole returns a middleware function that enforces that the
// authenticated user's role is one of the allowed names.  The role id from
// the token is resolved against the store on every request, so a renamed
// or deleted role takes effect immediately.  It assumes JWTAuth ran first.
func RequireRole(roles RoleNamer, allowed ...string) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant‑time lookups.
	set := make(map[string]bool, len(allowed))
	for _, r := range allowed {
		set[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return response.Fail(c, http.StatusUnauthorized, "unauthenticated", response.CodeUnauthorized)
			}

			name, err := roles.NameByID(c.Request().Context(), id.RoleID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return response.Fail(c, http.StatusUnauthorized, "role does not exist", response.CodeUnauthorized)
				}
				return response.Error(c, apperror.Internal(err))
			}

			if !set[name] {
				return response.Fail(c, http.StatusForbidden, "insufficient role", response.CodeForbidden)
			}
			// Otherwise call the next handler in the chain
			return next(c)
		}
	}
}
