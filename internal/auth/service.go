package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/codebuildervaibhav/speech-coach/internal/apperr"
)

// MinPasswordLength matches the hosted auth server's default policy
const MinPasswordLength = 6

// AdminUserID is the subject of locally issued admin sessions
const AdminUserID = "admin"

// Provider is the subset of the hosted auth API the service relies on.
type Provider interface {
	UserFetcher
	SendMagicLink(ctx context.Context, email, redirectTo string) error
	VerifyOTP(ctx context.Context, email, token, otpType string) (*Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	UpdatePassword(ctx context.Context, accessToken, password string) (*User, error)
}

// Admin holds the credentials of the built-in admin account.
type Admin struct {
	Email        string
	PasswordHash string
}

// Options configures a Service.
type Options struct {
	Provider    Provider // nil disables hosted sign-in
	Verifier    *Verifier
	Issuer      *Issuer // required when Admin is set
	Admin       Admin
	RedirectURL string
	Logger      zerolog.Logger
}

// Service implements the sign-in flows on top of the hosted auth server,
// plus the local admin bypass.
type Service struct {
	provider    Provider
	verifier    *Verifier
	issuer      *Issuer
	admin       Admin
	redirectURL string
	logger      zerolog.Logger
}

// NewService creates an auth service.
func NewService(opts Options) *Service {
	return &Service{
		provider:    opts.Provider,
		verifier:    opts.Verifier,
		issuer:      opts.Issuer,
		admin:       opts.Admin,
		redirectURL: opts.RedirectURL,
		logger:      opts.Logger,
	}
}

// SendMagicLink emails a sign-in link that lands on redirectTo (or the
// configured dashboard URL).
func (s *Service) SendMagicLink(ctx context.Context, email, redirectTo string) error {
	p, err := s.hosted()
	if err != nil {
		return err
	}
	if redirectTo == "" {
		redirectTo = s.redirectURL
	}
	if err := p.SendMagicLink(ctx, email, redirectTo); err != nil {
		return s.mapError("send magic link", err)
	}
	s.logger.Info().Str("email", email).Msg("Magic link sent")
	return nil
}

// VerifyOTP completes a magic link / OTP sign-in.
func (s *Service) VerifyOTP(ctx context.Context, email, token, otpType string) (*Session, error) {
	p, err := s.hosted()
	if err != nil {
		return nil, err
	}
	session, err := p.VerifyOTP(ctx, email, token, otpType)
	if err != nil {
		return nil, s.mapError("verify otp", err)
	}
	return session, nil
}

// SignIn signs in with a password. The configured admin credentials are
// checked first and answered without contacting the auth server.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if s.isAdmin(email, password) {
		s.logger.Warn().Str("email", email).Msg("Admin sign-in")
		return s.issuer.Issue(&User{
			ID:      AdminUserID,
			Email:   s.admin.Email,
			Role:    Audience,
			IsAdmin: true,
		})
	}

	p, err := s.hosted()
	if err != nil {
		return nil, err
	}
	session, err := p.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, s.mapError("sign in", err)
	}
	return session, nil
}

// Refresh renews a hosted session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	p, err := s.hosted()
	if err != nil {
		return nil, err
	}
	session, err := p.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, s.mapError("refresh", err)
	}
	return session, nil
}

// SignOut ends the session. Admin sessions are stateless and need no
// server call.
func (s *Service) SignOut(ctx context.Context, user *User, accessToken string) error {
	if user != nil && user.IsAdmin {
		return nil
	}
	p, err := s.hosted()
	if err != nil {
		return err
	}
	if err := p.SignOut(ctx, accessToken); err != nil {
		return s.mapError("sign out", err)
	}
	return nil
}

// UpdatePassword changes the caller's password after checking the
// confirmation matches.
func (s *Service) UpdatePassword(ctx context.Context, user *User, accessToken, password, confirm string) error {
	if password != confirm {
		return apperr.InvalidInput("New password and confirm password must match")
	}
	if len(password) < MinPasswordLength {
		return apperr.InvalidInput("Password must be at least 6 characters")
	}
	if user != nil && user.IsAdmin {
		return apperr.Forbidden("The admin password is managed in the server configuration")
	}
	p, err := s.hosted()
	if err != nil {
		return err
	}
	if _, err := p.UpdatePassword(ctx, accessToken, password); err != nil {
		return s.mapError("update password", err)
	}
	return nil
}

// Authenticate resolves the user behind an access token.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	if s.verifier == nil {
		return nil, apperr.NotConfigured("authentication")
	}
	user, err := s.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, apperr.Unauthorized("Invalid or expired session")
		}
		return nil, apperr.Upstream("auth", err)
	}
	return user, nil
}

func (s *Service) hosted() (Provider, error) {
	if s.provider == nil {
		return nil, apperr.NotConfigured("Supabase authentication")
	}
	return s.provider, nil
}

func (s *Service) isAdmin(email, password string) bool {
	if s.admin.Email == "" || s.admin.PasswordHash == "" || s.issuer == nil {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(email), s.admin.Email) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(password)) == nil
}

func (s *Service) mapError(op string, err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		s.logger.Error().Err(err).Str("op", op).Msg("Auth request failed")
		return apperr.Upstream("auth", err)
	}
	switch {
	case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
		return apperr.Unauthorized(apiErr.Message).WithCause(err)
	case apiErr.Status == http.StatusTooManyRequests:
		return apperr.New(apperr.CodeRateLimited, apiErr.Message, http.StatusTooManyRequests).WithCause(err)
	case apiErr.Status < 500:
		if op == "sign in" || op == "verify otp" || op == "refresh" {
			return apperr.Unauthorized(apiErr.Message).WithCause(err)
		}
		return apperr.InvalidInput(apiErr.Message).WithCause(err)
	default:
		s.logger.Error().Err(err).Str("op", op).Msg("Auth server error")
		return apperr.Upstream("auth", err)
	}
}
