package middleware

// identity.go defines the authenticated identity that JWTAuth attaches to a
// request and the helpers the role gate, rate limiter and handlers use to
// read it back.

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Identity is what a verified access token proves about the caller.
type Identity struct {
	UserID    uint64
	RoleID    uint64
	TokenID   string    // jti
	ExpiresAt time.Time // token expiry
}

const identityKey = "identity"

type identityCtxKey struct{}

// setIdentity stores id on both the echo context and the request context so
// that code holding only a context.Context can still read it.
func setIdentity(c echo.Context, id Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", strconv.FormatUint(id.UserID, 10))
	ctx := context.WithValue(c.Request().Context(), identityCtxKey{}, id)
	c.SetRequest(c.Request().WithContext(ctx))
}

// IdentityFrom returns the identity attached by JWTAuth.
func IdentityFrom(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// IdentityFromContext is IdentityFrom for plain contexts.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// userID returns the caller's id as a string, or "anon" when no identity
// is attached.  Used for rate limit keys.
func userID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v
	}
	return "anon"
}
