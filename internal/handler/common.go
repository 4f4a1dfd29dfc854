package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rbac-admin/internal/apperror"
	"github.com/iliyamo/rbac-admin/internal/repository"
)

// defaultTimeout bounds every store call made on behalf of a request.
const defaultTimeout = 5 * time.Second

// listResult is the payload of every list endpoint.
type listResult[T any] struct {
	Rows  []T `json:"rows"`
	Total int `json:"total"`
}

func newList[T any](rows []T) listResult[T] {
	if rows == nil {
		rows = []T{}
	}
	return listResult[T]{Rows: rows, Total: len(rows)}
}

// withTimeout derives a store context from the request context.
func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// bind decodes the request body; decode failures are validation errors.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperror.Wrap(apperror.KindValidation, "invalid body", err)
	}
	return nil
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("invalid id")
	}
	return id, nil
}

// storeError maps repository sentinels to the error taxonomy.  what names
// the entity for not-found messages ("user", "role", ...).
func storeError(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(what + " not found")
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.AlreadyExists(what + " already exists")
	case errors.Is(err, repository.ErrConflict):
		return apperror.Conflict(what + " is still in use")
	case errors.Is(err, repository.ErrUnknownRole):
		return apperror.Validation("role does not exist")
	case errors.Is(err, repository.ErrUnknownPermission):
		return apperror.Validation("permission does not exist")
	default:
		return apperror.Internal(err)
	}
}

// trimmed returns nil for nil or blank strings.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
