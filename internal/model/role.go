package model

import "time"

// Role represents a row in the `roles` table.  The role name is what the
// role gate compares against a route's allow-list; the attached
// permissions are catalog data and are not evaluated per request.
type Role struct {
	ID          uint64       `json:"id"`          // roles.id
	Name        string       `json:"name"`        // roles.name (unique)
	Description *string      `json:"description"` // roles.description (nullable)
	Permissions []Permission `json:"permissions,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Permission represents a row in the `permissions` table.
type Permission struct {
	ID          uint64    `json:"id"`          // permissions.id
	Name        string    `json:"name"`        // permissions.name (unique)
	Description *string   `json:"description"` // permissions.description (nullable)
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RolePermission models the `role_permissions` association row.
type RolePermission struct {
	RoleID       uint64 // role_permissions.role_id
	PermissionID uint64 // role_permissions.permission_id
}

// DashboardStats is the aggregate returned by the dashboard endpoint.
type DashboardStats struct {
	UserCount       int64 `json:"userCount"`
	ActiveUserCount int64 `json:"activeUserCount"`
	PermissionCount int64 `json:"permissionCount"`
}
