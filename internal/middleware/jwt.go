package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"  // context carries deadlines into the denylist lookup
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/rbac-admin/internal/apperror" // error taxonomy for store failures
	"github.com/iliyamo/rbac-admin/internal/logging"  // request-scoped logger
	"github.com/iliyamo/rbac-admin/internal/response" // uniform failure envelope
	"github.com/iliyamo/rbac-admin/internal/utils"    // token verification result types
)

// TokenVerifier checks a raw token and returns its claims.
type TokenVerifier interface {
	Verify(raw string) (utils.VerifiedToken, error)
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// attaches the caller's Identity to the request.  When deny is non-nil the
// token id is also checked against the revocation list; a store failure
// there rejects the request rather than letting a possibly revoked token
// through.  Handlers read the result with IdentityFrom.
func JWTAuth(v TokenVerifier, deny RevocationChecker) echo.MiddlewareFunc {
	// The outer function returns a middleware function.  Echo executes this
	// once when registering the middleware.
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// The returned handler is invoked for each incoming HTTP request.
		return func(c echo.Context) error {
			// A valid header should start with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if !strings.HasPrefix(auth, "Bearer ") || raw == "" {
				return response.Fail(c, http.StatusUnauthorized, "missing token", response.CodeUnauthorized)
			}

			// Signature, algorithm and expiry are all checked by the verifier.
			// The reason is logged; the client only learns the token is bad.
			vt, err := v.Verify(raw)
			if err != nil {
				logging.FromContext(c.Request().Context()).Debug("token_rejected", "reason", err.Error())
				return response.Fail(c, http.StatusUnauthorized, "invalid token", response.CodeUnauthorized)
			}

			if deny != nil {
				revoked, err := deny.IsRevoked(c.Request().Context(), vt.ID)
				if err != nil {
					return response.Error(c, apperror.Internal(err))
				}
				if revoked {
					return response.Fail(c, http.StatusUnauthorized, "invalid token", response.CodeUnauthorized)
				}
			}

			// Store the identity for downstream middleware and handlers.
			setIdentity(c, Identity{UserID: vt.UserID, RoleID: vt.RoleID, TokenID: vt.ID, ExpiresAt: vt.Exp})
			return next(c)
		}
	}
}
