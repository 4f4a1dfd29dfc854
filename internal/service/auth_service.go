// Package service holds the account workflows: registration, login, token
// refresh, logout and the current-user lookup.  It depends on narrow store
// interfaces so that handlers and tests can supply their own.
package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/iliyamo/rbac-admin/internal/apperror"
	"github.com/iliyamo/rbac-admin/internal/logging"
	"github.com/iliyamo/rbac-admin/internal/model"
	q "github.com/iliyamo/rbac-admin/internal/queue"
	"github.com/iliyamo/rbac-admin/internal/repository"
	"github.com/iliyamo/rbac-admin/internal/utils"
)

// EmailPattern is the accepted email shape.  It is a syntax check only.
var EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserStore is the slice of the credential store the auth workflows use.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// RoleStore resolves the default role at registration time.
type RoleStore interface {
	GetByName(ctx context.Context, name string) (model.Role, error)
}

// Tokens issues and verifies signed tokens.
type Tokens interface {
	IssueAccessToken(c utils.Claims) (utils.IssuedToken, error)
	IssueRefreshToken(c utils.Claims) (utils.IssuedToken, error)
	Verify(raw string) (utils.VerifiedToken, error)
}

// Denylist records revoked token ids.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthService implements the account workflows.
type AuthService struct {
	Users           UserStore
	Roles           RoleStore
	Tokens          Tokens
	Denylist        Denylist // nil when revocation is disabled
	Events          EventPublisher
	BcryptCost      int
	DefaultRoleName string
	Now             func() time.Time
}

// AuthDeps groups the collaborators of NewAuthService.
type AuthDeps struct {
	Users           UserStore
	Roles           RoleStore
	Tokens          Tokens
	Denylist        Denylist
	Events          EventPublisher
	BcryptCost      int
	DefaultRoleName string
}

func NewAuthService(d AuthDeps) *AuthService {
	s := &AuthService{
		Users:           d.Users,
		Roles:           d.Roles,
		Tokens:          d.Tokens,
		Denylist:        d.Denylist,
		Events:          d.Events,
		BcryptCost:      d.BcryptCost,
		DefaultRoleName: d.DefaultRoleName,
		Now:             time.Now,
	}
	if s.Events == nil {
		s.Events = NopPublisher{}
	}
	if s.BcryptCost == 0 {
		s.BcryptCost = utils.DefaultBcryptCost
	}
	if s.DefaultRoleName == "" {
		s.DefaultRoleName = "user"
	}
	return s
}

// RegisterInput is the payload of a self-registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    *string
	Avatar   *string
}

// Validate checks presence and shape of the registration fields.
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(1, 64)),
		validation.Field(&in.Email, validation.Required, validation.Length(3, 255), validation.Match(EmailPattern)),
		validation.Field(&in.Password, validation.Required, validation.Length(1, 72)),
	)
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// LogoutInput carries whatever tokens the client still holds.  Both are
// optional.
type LogoutInput struct {
	AccessToken  string
	RefreshToken string
}

// Register creates a user with the default role.  Username is checked
// before email; the first clash wins.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return model.User{}, apperror.Wrap(apperror.KindValidation, err.Error(), err)
	}

	if _, err := s.Users.GetByUsername(ctx, in.Username); err == nil {
		return model.User{}, apperror.AlreadyExists("username already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperror.Internal(err)
	}
	if _, err := s.Users.GetByEmail(ctx, in.Email); err == nil {
		return model.User{}, apperror.AlreadyExists("email already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, apperror.Internal(err)
	}

	hash, err := utils.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return model.User{}, apperror.Internal(err)
	}

	role, err := s.Roles.GetByName(ctx, s.DefaultRoleName)
	if err != nil {
		// a missing default role is a deployment fault, not a client error
		return model.User{}, apperror.Internal(err)
	}

	u := model.User{
		Username:     in.Username,
		Email:        in.Email,
		Phone:        in.Phone,
		Avatar:       in.Avatar,
		PasswordHash: hash,
		RoleID:       role.ID,
	}
	if err := s.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, apperror.AlreadyExists("username or email already exists")
		}
		return model.User{}, apperror.Internal(err)
	}
	u.Role = &role

	s.emit(ctx, q.AuditEvent{Type: q.EventUserRegistered, UserID: u.ID, Username: u.Username})
	return u, nil
}

// Login checks credentials and issues a fresh token pair.  Unknown user
// and wrong password produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (TokenPair, error) {
	if err := validation.Validate(username, validation.Required); err != nil {
		return TokenPair{}, apperror.Validation("username: " + err.Error())
	}
	if err := validation.Validate(password, validation.Required); err != nil {
		return TokenPair{}, apperror.Validation("password: " + err.Error())
	}

	u, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, apperror.InvalidCredentials()
		}
		return TokenPair{}, apperror.Internal(err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return TokenPair{}, apperror.InvalidCredentials()
	}

	pair, err := s.issuePair(utils.Claims{UserID: u.ID, RoleID: u.RoleID})
	if err != nil {
		return TokenPair{}, err
	}
	s.emit(ctx, q.AuditEvent{Type: q.EventUserLoggedIn, UserID: u.ID, Username: u.Username})
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair.  The role id is
// re-read from the store, so a role change made since login is picked up
// here instead of surviving until the refresh token expires.
func (s *AuthService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, apperror.Validation("refresh token is required")
	}

	vt, err := s.Tokens.Verify(raw)
	if err != nil {
		logging.FromContext(ctx).Debug("refresh_rejected", "reason", err.Error())
		return TokenPair{}, apperror.Unauthorized("invalid refresh token")
	}
	if s.Denylist != nil {
		revoked, err := s.Denylist.IsRevoked(ctx, vt.ID)
		if err != nil {
			return TokenPair{}, apperror.Internal(err)
		}
		if revoked {
			return TokenPair{}, apperror.Unauthorized("invalid refresh token")
		}
	}

	u, err := s.Users.GetByID(ctx, vt.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, apperror.Unauthorized("user no longer exists")
		}
		return TokenPair{}, apperror.Internal(err)
	}

	return s.issuePair(utils.Claims{UserID: u.ID, RoleID: u.RoleID})
}

// Logout revokes whatever valid tokens the client supplied when a denylist
// is configured.  It never fails for the caller.
func (s *AuthService) Logout(ctx context.Context, in LogoutInput) error {
	if s.Denylist == nil {
		return nil
	}
	l := logging.FromContext(ctx)
	now := s.Now()
	for _, raw := range []string{in.AccessToken, in.RefreshToken} {
		if raw = strings.TrimSpace(raw); raw == "" {
			continue
		}
		vt, err := s.Tokens.Verify(raw)
		if err != nil {
			continue // expired or garbage: nothing left to revoke
		}
		if err := s.Denylist.Revoke(ctx, vt.ID, vt.Exp.Sub(now)); err != nil {
			l.Warn("token_revoke_failed", "error", err)
		}
	}
	return nil
}

// CurrentUser returns the user behind an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, apperror.NotFound("user not found")
		}
		return model.User{}, apperror.Internal(err)
	}
	return u, nil
}

func (s *AuthService) issuePair(c utils.Claims) (TokenPair, error) {
	access, err := s.Tokens.IssueAccessToken(c)
	if err != nil {
		return TokenPair{}, apperror.Internal(err)
	}
	refresh, err := s.Tokens.IssueRefreshToken(c)
	if err != nil {
		return TokenPair{}, apperror.Internal(err)
	}
	return TokenPair{Token: access.Token, RefreshToken: refresh.Token}, nil
}

// emit publishes ev, logging instead of failing the request.
func (s *AuthService) emit(ctx context.Context, ev q.AuditEvent) {
	ev.At = s.Now().UTC().Format(time.RFC3339)
	if ev.RequestID == "" {
		ev.RequestID = logging.RequestID(ctx)
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		logging.FromContext(ctx).Warn("audit_publish_failed", "event", ev.Type, "error", err)
	}
}
