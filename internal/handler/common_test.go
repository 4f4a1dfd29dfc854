package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rbac-admin/internal/apperror"
	"github.com/iliyamo/rbac-admin/internal/repository"
)

func TestStoreError(t *testing.T) {
	tests := []struct {
		err  error
		kind apperror.Kind
		msg  string
	}{
		{repository.ErrNotFound, apperror.KindNotFound, "role not found"},
		{fmt.Errorf("insert: %w", repository.ErrDuplicate), apperror.KindAlreadyExists, "role already exists"},
		{repository.ErrConflict, apperror.KindConflict, "role is still in use"},
		{repository.ErrUnknownRole, apperror.KindValidation, "role does not exist"},
		{repository.ErrUnknownPermission, apperror.KindValidation, "permission does not exist"},
		{errors.New("boom"), apperror.KindInternal, ""},
	}
	for _, tc := range tests {
		got := storeError(tc.err, "role")
		assert.True(t, apperror.Is(got, tc.kind), "%v -> %v", tc.err, got)
		if tc.msg != "" {
			var ae *apperror.Error
			require.ErrorAs(t, got, &ae)
			assert.Equal(t, tc.msg, ae.Message)
		}
	}
}

func TestTrimmed(t *testing.T) {
	s := func(v string) *string { return &v }

	assert.Nil(t, trimmed(nil))
	assert.Nil(t, trimmed(s("   ")))
	assert.Equal(t, "555-1234", *trimmed(s(" 555-1234 ")))
}

func TestPathID(t *testing.T) {
	e := echo.New()
	for raw, want := range map[string]uint64{"7": 7, "0": 0, "-1": 0, "x": 0} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(raw)

		id, err := pathID(c)
		if want == 0 {
			assert.True(t, apperror.Is(err, apperror.KindValidation), raw)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestBind_InvalidBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	var dst struct{ Name string }
	err := bind(c, &dst)
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestNewList(t *testing.T) {
	l := newList([]string{"a", "b"})
	assert.Equal(t, 2, l.Total)

	empty := newList[string](nil)
	assert.Equal(t, 0, empty.Total)
}
