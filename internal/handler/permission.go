package handler

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-admin/internal/apperror"
	"github.com/iliyamo/rbac-admin/internal/model"
	"github.com/iliyamo/rbac-admin/internal/repository"
	"github.com/iliyamo/rbac-admin/internal/response"
)

// PermissionHandler serves the permission catalog.
type PermissionHandler struct {
	Permissions *repository.PermissionRepo
	Timeout     time.Duration
}

type permissionReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (r permissionReq) validate(create bool) error {
	nameRules := []validation.Rule{validation.NilOrNotEmpty, validation.Length(1, 128)}
	if create {
		nameRules = append([]validation.Rule{validation.NotNil}, nameRules...)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, nameRules...),
		validation.Field(&r.Description, validation.Length(0, 255)),
	)
}

// List returns permissions filtered by ?name= (substring).
func (h *PermissionHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	perms, err := h.Permissions.List(ctx, c.QueryParam("name"))
	if err != nil {
		return response.Error(c, storeError(err, "permission"))
	}
	return response.OK(c, http.StatusOK, newList(perms), "")
}

// Get returns one permission.
func (h *PermissionHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	p, err := h.Permissions.GetByID(ctx, id)
	if err != nil {
		return response.Error(c, storeError(err, "permission"))
	}
	return response.OK(c, http.StatusOK, p, "")
}

// Create adds a permission with a unique name.
func (h *PermissionHandler) Create(c echo.Context) error {
	var req permissionReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	trimName(&req.Name)
	if err := req.validate(true); err != nil {
		return response.Error(c, apperror.Wrap(apperror.KindValidation, err.Error(), err))
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	p := model.Permission{Name: *req.Name, Description: trimmed(req.Description)}
	if err := h.Permissions.Create(ctx, &p); err != nil {
		return response.Error(c, storeError(err, "permission"))
	}
	return response.OK(c, http.StatusCreated, p, "permission created")
}

// Update changes name and/or description.
func (h *PermissionHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	var req permissionReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	trimName(&req.Name)
	if err := req.validate(false); err != nil {
		return response.Error(c, apperror.Wrap(apperror.KindValidation, err.Error(), err))
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	p, err := h.Permissions.GetByID(ctx, id)
	if err != nil {
		return response.Error(c, storeError(err, "permission"))
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = trimmed(req.Description)
	}
	if err := h.Permissions.Update(ctx, &p); err != nil {
		return response.Error(c, storeError(err, "permission"))
	}
	return response.OK(c, http.StatusOK, p, "permission updated")
}

// Delete removes a permission.  409 while a role still holds it.
func (h *PermissionHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Permissions.Delete(ctx, id); err != nil {
		return response.Error(c, storeError(err, "permission"))
	}
	return c.NoContent(http.StatusNoContent)
}
