package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/speech-coach/internal/auth"
)

// AuthHandler exposes the sign-in flows
type AuthHandler struct {
	svc *auth.Service
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// MagicLinkRequest asks for a sign-in email
type MagicLinkRequest struct {
	Email      string `json:"email" validate:"required,email"`
	RedirectTo string `json:"redirect_to" validate:"omitempty,url"`
}

// VerifyRequest completes a magic link sign-in
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
	Type  string `json:"type" validate:"omitempty,oneof=magiclink email signup recovery"`
}

// LoginRequest is an email and password sign-in
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest renews a session
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// PasswordRequest changes the caller's password
type PasswordRequest struct {
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

// MagicLink sends a sign-in link
func (h *AuthHandler) MagicLink(c *fiber.Ctx) error {
	var req MagicLinkRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.SendMagicLink(c.UserContext(), req.Email, req.RedirectTo); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Check your email for the login link!",
	})
}

// Verify exchanges a one-time token for a session
func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Type == "" {
		req.Type = "magiclink"
	}
	session, err := h.svc.VerifyOTP(c.UserContext(), req.Email, req.Token, req.Type)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// Login signs in with a password
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.svc.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// Refresh renews a session
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// Logout ends the current session
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.svc.SignOut(c.UserContext(), auth.CurrentUser(c), auth.CurrentToken(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me returns the signed-in user
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": auth.CurrentUser(c)})
}

// Password updates the caller's password
func (h *AuthHandler) Password(c *fiber.Ctx) error {
	var req PasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	err := h.svc.UpdatePassword(c.UserContext(), auth.CurrentUser(c), auth.CurrentToken(c),
		req.NewPassword, req.ConfirmPassword)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Password updated successfully",
	})
}
