package handler

import (
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // timeouts for store calls

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/rbac-admin/internal/apperror"   // error taxonomy
	"github.com/iliyamo/rbac-admin/internal/middleware" // authenticated identity
	"github.com/iliyamo/rbac-admin/internal/response"   // uniform response envelope
	"github.com/iliyamo/rbac-admin/internal/service"    // account workflows
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth    *service.AuthService
	Timeout time.Duration
}

func NewAuthHandler(auth *service.AuthService, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, Timeout: timeout}
}

// ----- DTOs -----

type registerReq struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Phone    *string `json:"phone"`
	Avatar   *string `json:"avatar"`
}
type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}
type logoutReq struct {
	RefreshToken string `json:"refreshToken"`
}

// Register: create an account with the default role.  The created user is
// returned without its password hash.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Auth.Register(ctx, service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    trimmed(req.Phone),
		Avatar:   trimmed(req.Avatar),
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, u, "registered")
}

// Login: verify credentials and return {token, refreshToken}.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	pair, err := h.Auth.Login(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, pair, "login successful")
}

// RefreshToken: exchange a refresh token for a new pair.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return response.Error(c, err)
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, pair, "token refreshed")
}

// Logout always answers 200.  A bearer access token and a refresh token in
// the body are both optional; when revocation is enabled they are revoked.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req logoutReq
	_ = c.Bind(&req) // no body required

	access := ""
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		access = strings.TrimPrefix(auth, "Bearer ")
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	_ = h.Auth.Logout(ctx, service.LogoutInput{AccessToken: access, RefreshToken: req.RefreshToken})
	return response.OK(c, http.StatusOK, nil, "logged out")
}

// GetUserInfo returns the authenticated caller's record.
func (h *AuthHandler) GetUserInfo(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return response.Error(c, apperror.Unauthorized("unauthenticated"))
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	u, err := h.Auth.CurrentUser(ctx, id.UserID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, u, "")
}
