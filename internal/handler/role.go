package handler

import (
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-admin/internal/apperror"
	"github.com/iliyamo/rbac-admin/internal/model"
	"github.com/iliyamo/rbac-admin/internal/repository"
	"github.com/iliyamo/rbac-admin/internal/response"
)

// RoleHandler serves role administration.  Roles carry a permission set
// that is catalog data only; authorization compares role names.
type RoleHandler struct {
	Roles   *repository.RoleRepo
	Timeout time.Duration
}

type roleReq struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	PermissionIDs []uint64 `json:"permissionIds"` // nil = unchanged on update
}

func (r roleReq) validate(create bool) error {
	nameRules := []validation.Rule{validation.NilOrNotEmpty, validation.Length(1, 64)}
	if create {
		nameRules = append([]validation.Rule{validation.NotNil}, nameRules...)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, nameRules...),
		validation.Field(&r.Description, validation.Length(0, 255)),
	)
}

// List returns roles filtered by ?name= (substring), with permissions.
func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	roles, err := h.Roles.List(ctx, c.QueryParam("name"))
	if err != nil {
		return response.Error(c, storeError(err, "role"))
	}
	return response.OK(c, http.StatusOK, newList(roles), "")
}

// Get returns one role with its permissions.
func (h *RoleHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	role, err := h.Roles.GetByID(ctx, id)
	if err != nil {
		return response.Error(c, storeError(err, "role"))
	}
	return response.OK(c, http.StatusOK, role, "")
}

// Create adds a role and attaches permissionIds.
func (h *RoleHandler) Create(c echo.Context) error {
	var req roleReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	trimName(&req.Name)
	if err := req.validate(true); err != nil {
		return response.Error(c, apperror.Wrap(apperror.KindValidation, err.Error(), err))
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	role := model.Role{Name: *req.Name, Description: trimmed(req.Description)}
	if err := h.Roles.Create(ctx, &role, req.PermissionIDs); err != nil {
		return response.Error(c, storeError(err, "role"))
	}
	return response.OK(c, http.StatusCreated, role, "role created")
}

// Update renames or re-describes a role and, when permissionIds is
// present, replaces its permission set.
func (h *RoleHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	var req roleReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	trimName(&req.Name)
	if err := req.validate(false); err != nil {
		return response.Error(c, apperror.Wrap(apperror.KindValidation, err.Error(), err))
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	role, err := h.Roles.GetByID(ctx, id)
	if err != nil {
		return response.Error(c, storeError(err, "role"))
	}
	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.Description != nil {
		role.Description = trimmed(req.Description)
	}
	if err := h.Roles.Update(ctx, &role, req.PermissionIDs); err != nil {
		return response.Error(c, storeError(err, "role"))
	}
	return response.OK(c, http.StatusOK, role, "role updated")
}

// Delete removes a role.  409 while users are still assigned to it.
func (h *RoleHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Roles.Delete(ctx, id); err != nil {
		return response.Error(c, storeError(err, "role"))
	}
	return c.NoContent(http.StatusNoContent)
}

func trimName(s **string) {
	if *s != nil {
		v := strings.TrimSpace(**s)
		*s = &v
	}
}
