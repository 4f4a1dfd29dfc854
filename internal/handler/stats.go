package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-admin/internal/model"
	"github.com/iliyamo/rbac-admin/internal/repository"
	"github.com/iliyamo/rbac-admin/internal/response"
)

// StatsHandler serves the admin dashboard aggregate.
type StatsHandler struct {
	Users       *repository.UserRepo
	Permissions *repository.PermissionRepo
	Timeout     time.Duration
}

// Dashboard returns user and permission counts.  There is no activity
// tracking, so activeUserCount equals userCount.
func (h *StatsHandler) Dashboard(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	users, err := h.Users.Count(ctx)
	if err != nil {
		return response.Error(c, storeError(err, "user"))
	}
	perms, err := h.Permissions.Count(ctx)
	if err != nil {
		return response.Error(c, storeError(err, "permission"))
	}
	return response.OK(c, http.StatusOK, model.DashboardStats{
		UserCount:       users,
		ActiveUserCount: users,
		PermissionCount: perms,
	}, "")
}
