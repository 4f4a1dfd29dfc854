package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-admin/internal/apperror"
	"github.com/iliyamo/rbac-admin/internal/logging"
	"github.com/iliyamo/rbac-admin/internal/middleware"
	"github.com/iliyamo/rbac-admin/internal/model"
	q "github.com/iliyamo/rbac-admin/internal/queue"
	"github.com/iliyamo/rbac-admin/internal/repository"
	"github.com/iliyamo/rbac-admin/internal/response"
	"github.com/iliyamo/rbac-admin/internal/service"
	"github.com/iliyamo/rbac-admin/internal/utils"
)

// UserHandler serves the user administration endpoints.
type UserHandler struct {
	Users           *repository.UserRepo
	Roles           *repository.RoleRepo
	Events          service.EventPublisher
	BcryptCost      int
	DefaultRoleName string
	Timeout         time.Duration
}

type createUserReq struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone"`
	Avatar   *string `json:"avatar"`
	RoleID   uint64  `json:"role_id"` // 0 = default role
}

func (r createUserReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 255), validation.Match(service.EmailPattern)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 72)),
	)
}

// updateUserReq fields are all optional; nil leaves the column unchanged.
type updateUserReq struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Phone    *string `json:"phone"`
	Avatar   *string `json:"avatar"`
	RoleID   *uint64 `json:"role_id"`
}

func (r updateUserReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&r.Email, validation.NilOrNotEmpty, validation.Match(service.EmailPattern)),
		validation.Field(&r.Password, validation.NilOrNotEmpty, validation.Length(1, 72)),
		validation.Field(&r.RoleID, validation.NilOrNotEmpty),
	)
}

type batchDeleteReq struct {
	IDs []uint64 `json:"ids"`
}

// List returns users filtered by ?username=, ?email= and ?phone= (substring).
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	users, err := h.Users.List(ctx, model.UserFilter{
		Username: c.QueryParam("username"),
		Email:    c.QueryParam("email"),
		Phone:    c.QueryParam("phone"),
	})
	if err != nil {
		return response.Error(c, storeError(err, "user"))
	}
	return response.OK(c, http.StatusOK, newList(users), "")
}

// Get returns one user with its role.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return response.Error(c, storeError(err, "user"))
	}
	return response.OK(c, http.StatusOK, u, "")
}

// Create adds a user on behalf of an administrator.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return response.Error(c, apperror.Wrap(apperror.KindValidation, err.Error(), err))
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	roleID := req.RoleID
	if roleID == 0 {
		role, err := h.Roles.GetByName(ctx, h.DefaultRoleName)
		if err != nil {
			return response.Error(c, apperror.Internal(err))
		}
		roleID = role.ID
	}

	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return response.Error(c, apperror.Internal(err))
	}
	u := model.User{
		Username:     req.Username,
		Email:        req.Email,
		Phone:        trimmed(req.Phone),
		Avatar:       trimmed(req.Avatar),
		PasswordHash: hash,
		RoleID:       roleID,
	}
	if err := h.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return response.Error(c, apperror.AlreadyExists("username or email already exists"))
		}
		return response.Error(c, storeError(err, "user"))
	}

	created, err := h.Users.GetByID(ctx, u.ID)
	if err != nil {
		return response.Error(c, storeError(err, "user"))
	}
	return response.OK(c, http.StatusCreated, created, "user created")
}

// Update applies the supplied fields.  A new password is re-hashed.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	var req updateUserReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	trimName(&req.Username)
	trimName(&req.Email)
	if err := req.Validate(); err != nil {
		return response.Error(c, apperror.Wrap(apperror.KindValidation, err.Error(), err))
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return response.Error(c, storeError(err, "user"))
	}
	if req.Username != nil {
		u.Username = *req.Username
	}
	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Phone != nil {
		u.Phone = trimmed(req.Phone)
	}
	if req.Avatar != nil {
		u.Avatar = trimmed(req.Avatar)
	}
	if req.RoleID != nil {
		u.RoleID = *req.RoleID
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password, h.BcryptCost)
		if err != nil {
			return response.Error(c, apperror.Internal(err))
		}
		u.PasswordHash = hash
	}

	if err := h.Users.Update(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return response.Error(c, apperror.AlreadyExists("username or email already exists"))
		}
		return response.Error(c, storeError(err, "user"))
	}
	updated, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return response.Error(c, storeError(err, "user"))
	}
	return response.OK(c, http.StatusOK, updated, "user updated")
}

// Delete removes one user.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return response.Error(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		return response.Error(c, storeError(err, "user"))
	}
	h.auditDeleted(ctx, c, id)
	return c.NoContent(http.StatusNoContent)
}

// DeleteBatch removes every user in {"ids": [...]}.  404 when none of them
// existed; audit events go out only for the users actually removed.
func (h *UserHandler) DeleteBatch(c echo.Context) error {
	var req batchDeleteReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}
	if len(req.IDs) == 0 {
		return response.Error(c, apperror.Validation("ids must be a non-empty array"))
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	gone, err := h.Users.DeleteBatch(ctx, req.IDs)
	if err != nil {
		return response.Error(c, storeError(err, "user"))
	}
	if len(gone) == 0 {
		return response.Error(c, apperror.NotFound("no users found to delete"))
	}
	for _, id := range gone {
		h.auditDeleted(ctx, c, id)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) auditDeleted(ctx context.Context, c echo.Context, userID uint64) {
	if h.Events == nil {
		return
	}
	ev := q.AuditEvent{
		Type:      q.EventUserDeleted,
		UserID:    userID,
		RequestID: logging.RequestID(ctx),
		At:        time.Now().UTC().Format(time.RFC3339),
	}
	if id, ok := middleware.IdentityFrom(c); ok {
		ev.ActorID = id.UserID
	}
	if err := h.Events.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("audit_publish_failed", "event", ev.Type, "error", err)
	}
}
