package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rbac-admin/internal/config"
	"github.com/iliyamo/rbac-admin/internal/logging"
	"github.com/iliyamo/rbac-admin/internal/repository"
	"github.com/iliyamo/rbac-admin/internal/response"
	"github.com/iliyamo/rbac-admin/internal/utils"
)

var testIssuer = utils.NewTokenIssuer([]byte("mw-secret"), time.Hour, 24*time.Hour)

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f fakeRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

type fakeRoles map[uint64]string

func (f fakeRoles) NameByID(_ context.Context, id uint64) (string, error) {
	if id == 500 {
		return "", errors.New("db down")
	}
	name, ok := f[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return name, nil
}

func decodeFailure(t *testing.T, rec *httptest.ResponseRecorder) response.Failure {
	t.Helper()
	var f response.Failure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	return f
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func gatedEcho(deny RevocationChecker, roles RoleNamer, allowed ...string) *echo.Echo {
	e := echo.New()
	mws := []echo.MiddlewareFunc{JWTAuth(testIssuer, deny)}
	if roles != nil {
		mws = append(mws, RequireRole(roles, allowed...))
	}
	e.GET("/p", func(c echo.Context) error {
		id, ok := IdentityFrom(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		ctxID, _ := IdentityFromContext(c.Request().Context())
		return c.JSON(http.StatusOK, map[string]any{"uid": id.UserID, "ctx_uid": ctxID.UserID, "key": userID(c)})
	}, mws...)
	return e
}

func bearer(t *testing.T, c utils.Claims) string {
	t.Helper()
	tok, err := testIssuer.IssueAccessToken(c)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuth_MissingAndInvalid(t *testing.T) {
	e := gatedEcho(nil, nil)

	for name, header := range map[string]string{
		"none":      "",
		"no bearer": "Token abc",
		"empty":     "Bearer ",
		"garbage":   "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}
			rec := serve(e, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			f := decodeFailure(t, rec)
			require.NotNil(t, f.ErrorCode)
			assert.Equal(t, response.CodeUnauthorized, *f.ErrorCode)
		})
	}
}

func TestJWTAuth_ValidTokenAttachesIdentity(t *testing.T) {
	e := gatedEcho(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, utils.Claims{UserID: 7, RoleID: 3}))

	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":7,"ctx_uid":7,"key":"7"}`, rec.Body.String())
}

func TestJWTAuth_Denylist(t *testing.T) {
	tok, err := testIssuer.IssueAccessToken(utils.Claims{UserID: 7, RoleID: 3})
	require.NoError(t, err)

	revoked := gatedEcho(fakeRevocations{revoked: map[string]bool{tok.ID: true}}, nil)
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	assert.Equal(t, http.StatusUnauthorized, serve(revoked, req).Code)

	broken := gatedEcho(fakeRevocations{err: errors.New("redis down")}, nil)
	req = httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec := serve(broken, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeFailure(t, rec).Message)
}

func TestRequireRole(t *testing.T) {
	roles := fakeRoles{1: "super", 2: "admin", 3: "user"}
	e := gatedEcho(nil, roles, "super", "admin")

	cases := []struct {
		name   string
		roleID uint64
		status int
		msg    string
	}{
		{"super allowed", 1, http.StatusOK, ""},
		{"admin allowed", 2, http.StatusOK, ""},
		{"user forbidden", 3, http.StatusForbidden, "insufficient role"},
		{"deleted role", 9, http.StatusUnauthorized, "role does not exist"},
		{"store error", 500, http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			req.Header.Set(echo.HeaderAuthorization, bearer(t, utils.Claims{UserID: 7, RoleID: tc.roleID}))
			rec := serve(e, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.msg != "" {
				assert.Equal(t, tc.msg, decodeFailure(t, rec).Message)
			}
		})
	}
}

type countingRoles struct {
	fakeRoles
	calls int
}

func (c *countingRoles) NameByID(ctx context.Context, id uint64) (string, error) {
	c.calls++
	return c.fakeRoles.NameByID(ctx, id)
}

func TestRequireRole_NotConsultedWithoutValidToken(t *testing.T) {
	roles := &countingRoles{fakeRoles: fakeRoles{1: "super"}}
	e := gatedEcho(nil, roles, "super")

	for name, header := range map[string]string{
		"none":    "",
		"garbage": "Bearer not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/p", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}
			assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)
		})
	}
	assert.Zero(t, roles.calls)

	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, utils.Claims{UserID: 7, RoleID: 1}))
	assert.Equal(t, http.StatusOK, serve(e, req).Code)
	assert.Equal(t, 1, roles.calls)
}

func TestRequireRole_WithoutIdentity(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	rec := c.Response().Writer.(*httptest.ResponseRecorder)

	err := RequireRole(fakeRoles{}, "admin")(func(echo.Context) error { return nil })(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decodeFailure(t, rec).Message)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logging.NewWithWriter(&buf, "test")

	e := echo.New()
	e.HTTPErrorHandler = response.ErrorHandler
	var seen *slog.Logger
	var rid string
	e.GET("/hello", func(c echo.Context) error {
		seen = logging.FromContext(c.Request().Context())
		rid = logging.RequestID(c.Request().Context())
		return c.String(http.StatusOK, "hi")
	}, RequestLogger(base))
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("kaboom")
	}, RequestLogger(base))

	req := httptest.NewRequest(http.MethodGet, "/hello", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := serve(e, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotSame(t, slog.Default(), seen)
	assert.Equal(t, "req-42", rid)
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
	assert.Contains(t, buf.String(), `"path":"/hello"`)

	buf.Reset()
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.NotContains(t, rec.Body.String(), "kaboom")
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}

	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))
	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, "abcdef", rec.Body.String())
	assert.True(t, cw.truncated())
}

func TestCacheKeyDependsOnQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "p", KeyStrategy: "route_query"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/dashboard-stats")
		return cacheKeyFrom(cfg, c)
	}
	assert.Equal(t, key("/api/dashboard-stats"), key("/api/dashboard-stats"))
	assert.NotEqual(t, key("/api/dashboard-stats"), key("/api/dashboard-stats?x=1"))
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/login")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}
	assert.Equal(t, "rl:ip:10.0.0.1:route:POST /api/login", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	called := 0
	next := func(echo.Context) error { called++; return nil }
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	require.NoError(t, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil)(next)(c))
	require.NoError(t, NewRedisCache(config.CacheConfig{Enabled: true}, nil)(next)(c))
	assert.Equal(t, 2, called)
	assert.Equal(t, 1, retryAfterSeconds(1))
	assert.Equal(t, 0, retryAfterSeconds(-5))
}
