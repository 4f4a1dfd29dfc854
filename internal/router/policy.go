package router

import (
	"sort"
	"strings"
)

// Policy maps "METHOD /path" (the registered path, with :params) to the
// role names allowed to call it.  Authenticated routes absent from the
// policy accept any valid token.
type Policy map[string][]string

// DefaultPolicy restricts every mutating admin route and the dashboard to
// adminRoles.
func DefaultPolicy(adminRoles []string) Policy {
	admin := append([]string(nil), adminRoles...)
	p := Policy{}
	for _, k := range []string{
		"POST /api/users",
		"PUT /api/users/:id",
		"DELETE /api/users/:id",
		"DELETE /api/users",
		"POST /api/roles",
		"PUT /api/roles/:id",
		"DELETE /api/roles/:id",
		"POST /api/permissions",
		"PUT /api/permissions/:id",
		"DELETE /api/permissions/:id",
		"GET /api/dashboard-stats",
	} {
		p[k] = admin
	}
	return p
}

// Allowed returns the allow-list for a route and whether the route is
// restricted at all.
func (p Policy) Allowed(method, path string) ([]string, bool) {
	roles, ok := p[strings.ToUpper(method)+" "+path]
	return roles, ok
}

// Describe lists the restricted routes in a stable order, one
// "METHOD /path -> role,role" line each.  Logged at startup.
func (p Policy) Describe() []string {
	out := make([]string, 0, len(p))
	for k, roles := range p {
		out = append(out, k+" -> "+strings.Join(roles, ","))
	}
	sort.Strings(out)
	return out
}
