package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-admin/internal/middleware" // JWT + role middlewares
)

// RegisterAdmin registers user, role, permission and dashboard endpoints
// under /api.  Every route requires a valid access token; the role
// allow-list of each route comes from d.Policy.
func RegisterAdmin(e *echo.Echo, d Deps) {
	r := newRoutes(e, "/api", d)

	// ---- Users ----
	u := d.Users
	r.add("GET", "/users", u.List)
	r.add("GET", "/users/:id", u.Get)
	r.add("POST", "/users", u.Create)
	r.add("PUT", "/users/:id", u.Update)
	r.add("DELETE", "/users/:id", u.Delete)
	r.add("DELETE", "/users", u.DeleteBatch) // body: {"ids": [...]}

	// ---- Roles ----
	ro := d.Roles
	r.add("GET", "/roles", ro.List)
	r.add("GET", "/roles/:id", ro.Get)
	r.add("POST", "/roles", ro.Create)
	r.add("PUT", "/roles/:id", ro.Update)
	r.add("DELETE", "/roles/:id", ro.Delete)

	// ---- Permissions ----
	p := d.Permissions
	r.add("GET", "/permissions", p.List)
	r.add("GET", "/permissions/:id", p.Get)
	r.add("POST", "/permissions", p.Create)
	r.add("PUT", "/permissions/:id", p.Update)
	r.add("DELETE", "/permissions/:id", p.Delete)

	// ---- Dashboard ----
	// The cache runs after both gates, so a hit is still authorized.
	r.add("GET", "/dashboard-stats", d.Stats.Dashboard, optional(d.Cache)...)
}

// routes registers authenticated endpoints below a prefix, attaching the
// role gate for routes the policy lists.
type routes struct {
	e      *echo.Echo
	prefix string
	auth   echo.MiddlewareFunc
	policy Policy
	roles  middleware.RoleNamer
}

func newRoutes(e *echo.Echo, prefix string, d Deps) routes {
	return routes{
		e:      e,
		prefix: prefix,
		auth:   middleware.JWTAuth(d.Verifier, d.Denylist),
		policy: d.Policy,
		roles:  d.RoleNames,
	}
}

// add mounts h with JWTAuth, then RequireRole when the policy names the
// route, then any extra middleware.
func (r routes) add(method, path string, h echo.HandlerFunc, extra ...echo.MiddlewareFunc) {
	full := r.prefix + path
	chain := []echo.MiddlewareFunc{r.auth}
	if allowed, ok := r.policy.Allowed(method, full); ok {
		chain = append(chain, middleware.RequireRole(r.roles, allowed...))
	}
	chain = append(chain, extra...)
	r.e.Add(method, full, h, chain...)
}
