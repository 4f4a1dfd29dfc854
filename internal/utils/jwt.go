package utils // package utils provides helper functions for token creation and hashing

import (
	"errors" // sentinel errors for verification failures
	"fmt"    // error wrapping
	"time"   // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // random token ids (jti)
)

// Default lifetimes for issued tokens.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken is the single failure callers check at the boundary.
// ErrTokenExpired and ErrTokenMalformed both wrap it so that logs can tell
// an expired token apart from a tampered one while clients cannot.
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenMalformed = fmt.Errorf("%w: malformed or bad signature", ErrInvalidToken)
)

// Claims is the identity embedded in both access and refresh tokens.  On
// the wire it is {"id": <user id>, "role_id": <role id>} next to the
// registered exp, iat and jti claims.
type Claims struct {
	UserID uint64 `json:"id"`
	RoleID uint64 `json:"role_id"`
}

// tokenClaims is the full JWT payload.
type tokenClaims struct {
	Claims
	jwt.RegisteredClaims
}

// IssuedToken is a signed token along with its id and expiry.  The Token
// field contains the JWT string; ID is the jti claim used for revocation.
type IssuedToken struct {
	Token string    // the serialized JWT string
	ID    string    // jti
	Exp   time.Time // the UTC expiration time
}

// VerifiedToken is the decoded result of a successful Verify.
type VerifiedToken struct {
	Claims
	ID  string    // jti
	Exp time.Time // the UTC expiration time
}

// TokenIssuer signs and verifies HS256 tokens with a shared secret.  The
// secret is supplied by the caller; the issuer never reads the environment.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer builds a TokenIssuer.  Non-positive TTLs fall back to the
// defaults (1 hour access, 7 days refresh).
func NewTokenIssuer(secret []byte, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenIssuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the issuer that reads time from now.  It is
// used by tests to move past a token's expiry.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *ti
	cp.now = now
	return &cp
}

// AccessTTL reports the configured access token lifetime.
func (ti *TokenIssuer) AccessTTL() time.Duration { return ti.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (ti *TokenIssuer) RefreshTTL() time.Duration { return ti.refreshTTL }

// IssueAccessToken signs a short-lived token for c.
func (ti *TokenIssuer) IssueAccessToken(c Claims) (IssuedToken, error) {
	return ti.issue(c, ti.accessTTL)
}

// IssueRefreshToken signs a long-lived token for c.  It carries the same
// claims as the access token; only the expiry differs.
func (ti *TokenIssuer) IssueRefreshToken(c Claims) (IssuedToken, error) {
	return ti.issue(c, ti.refreshTTL)
}

func (ti *TokenIssuer) issue(c Claims, ttl time.Duration) (IssuedToken, error) {
	if len(ti.secret) == 0 {
		return IssuedToken{}, errors.New("token issuer: empty signing secret")
	}
	now := ti.now()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Claims: c,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := t.SignedString(ti.secret)
	if err != nil {
		return IssuedToken{}, err
	}
	// NumericDate drops sub-second precision; report what the token says.
	return IssuedToken{Token: signed, ID: jti, Exp: exp.Truncate(time.Second)}, nil
}

// Verify checks signature, algorithm and expiry and returns the decoded
// claims.  Every failure wraps ErrInvalidToken.
func (ti *TokenIssuer) Verify(raw string) (VerifiedToken, error) {
	var tc tokenClaims
	tok, err := jwt.ParseWithClaims(raw, &tc, func(t *jwt.Token) (interface{}, error) {
		// Reject anything that is not an HMAC signature; this also rules out "none".
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	},
		jwt.WithTimeFunc(ti.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return VerifiedToken{}, ErrTokenExpired
		}
		return VerifiedToken{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !tok.Valid || tc.UserID == 0 {
		return VerifiedToken{}, ErrTokenMalformed
	}
	out := VerifiedToken{Claims: tc.Claims, ID: tc.RegisteredClaims.ID}
	if tc.ExpiresAt != nil {
		out.Exp = tc.ExpiresAt.Time.UTC()
	}
	return out, nil
}
