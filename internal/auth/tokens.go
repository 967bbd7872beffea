package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const (
	// Audience carried by Supabase session tokens
	Audience = "authenticated"

	issuer = "speech-coach"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid or expired session token")

// Claims mirrors the claims Supabase puts into its access tokens plus the
// marker for locally issued admin sessions.
type Claims struct {
	gojwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
	Admin bool   `json:"speech_coach_admin,omitempty"`
}

// UserFetcher resolves a token remotely when it cannot be verified locally.
type UserFetcher interface {
	GetUser(ctx context.Context, accessToken string) (*User, error)
}

// Verifier checks session tokens. With a JWT secret it verifies HS256
// signatures locally; otherwise it asks the auth server.
type Verifier struct {
	secret []byte
	remote UserFetcher
	now    func() time.Time
}

// NewVerifier creates a verifier. remote may be nil when secret is set.
func NewVerifier(secret string, remote UserFetcher) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		remote: remote,
		now:    time.Now,
	}
}

// Verify validates token and returns its user.
func (v *Verifier) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if len(v.secret) == 0 {
		if v.remote == nil {
			return nil, errors.New("auth: no jwt secret and no auth server configured")
		}
		user, err := v.remote.GetUser(ctx, token)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status < 500 {
				return nil, ErrInvalidToken
			}
			return nil, err
		}
		return user, nil
	}

	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithAudience(Audience),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(v.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &User{
		ID:      claims.Subject,
		Email:   claims.Email,
		Role:    claims.Role,
		IsAdmin: claims.Admin,
	}, nil
}

// Issuer signs session tokens for locally authenticated users.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer signing with secret; tokens live for ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a session for user.
func (i *Issuer) Issue(user *User) (*Session, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			Audience:  gojwt.ClaimStrings{Audience},
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(i.ttl)),
		},
		Email: user.Email,
		Role:  Audience,
		Admin: user.IsAdmin,
	}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}

	return &Session{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int(i.ttl.Seconds()),
		ExpiresAt:   now.Add(i.ttl).Unix(),
		User:        user,
	}, nil
}
