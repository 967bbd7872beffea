package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/speech-coach/internal/apperr"
)

const (
	// LocalUserKey is the fiber Locals key holding the *User
	LocalUserKey = "auth.user"
	localToken   = "auth.token"
)

// RequireAuth rejects requests without a valid session. The token is read
// from the Authorization header, or from the access_token query parameter
// for WebSocket upgrades where browsers cannot set headers.
func RequireAuth(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" {
			return apperr.Unauthorized("Missing session token")
		}
		user, err := svc.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}
		c.Locals(LocalUserKey, user)
		c.Locals(localToken, token)
		return c.Next()
	}
}

// BearerToken extracts the access token from the request.
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return c.Query("access_token")
}

// CurrentUser returns the user stored by RequireAuth.
func CurrentUser(c *fiber.Ctx) *User {
	user, _ := c.Locals(LocalUserKey).(*User)
	return user
}

// CurrentToken returns the access token stored by RequireAuth.
func CurrentToken(c *fiber.Ctx) string {
	token, _ := c.Locals(localToken).(string)
	return token
}
