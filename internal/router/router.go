package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/rbac-admin/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/rbac-admin/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// Deps gathers everything route registration needs.  Optional middleware
// (RateLimit, Cache) may be nil; Denylist is nil when revocation is off.
type Deps struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Roles       *handler.RoleHandler
	Permissions *handler.PermissionHandler
	Stats       *handler.StatsHandler

	DB        handler.Pinger
	Verifier  middleware.TokenVerifier
	Denylist  middleware.RevocationChecker
	RoleNames middleware.RoleNamer
	Policy    Policy

	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// Register wires every route of the API onto e.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.DB)
	RegisterAuth(e, d)
	RegisterAdmin(e, d)
}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	// Load balancers and monitoring poll this endpoint.
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the account routes.  Register, login and refresh
// sit behind the rate limiter; logout needs no session so that a client
// holding only an expired access token can still sign out.
func RegisterAuth(e *echo.Echo, d Deps) {
	a := d.Auth
	limited := optional(d.RateLimit)

	e.POST("/api/register", a.Register, limited...)
	e.POST("/api/login", a.Login, limited...)
	e.POST("/api/refreshToken", a.RefreshToken, limited...)
	e.POST("/api/logout", a.Logout)

	r := newRoutes(e, "/api", d)
	r.add("GET", "/getUserInfo", a.GetUserInfo)
}

// optional turns a possibly nil middleware into a variadic slice.
func optional(m echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if m == nil {
		return nil
	}
	return []echo.MiddlewareFunc{m}
}
