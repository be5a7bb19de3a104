package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/pos-ledger/pkg/auth"
)

// Authenticator checks operator tokens at the edge. The Authorization header
// is still forwarded, so the ledger service verifies the same token again.
type Authenticator struct {
	manager  *auth.Manager
	required bool
}

// NewAuthenticator creates a new gateway authenticator
func NewAuthenticator(manager *auth.Manager, required bool) *Authenticator {
	return &Authenticator{manager: manager, required: required}
}

// Middleware validates the bearer token and exposes the operator to
// upstreams through X-User-* headers.
func (a *Authenticator) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Never trust identity headers sent by the client
		c.Request().Header.Del("X-User-ID")
		c.Request().Header.Del("X-Username")
		c.Request().Header.Del("X-User-Role")

		if !a.required {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if authHeader == "" || !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Authorization header required",
			})
		}

		claims, err := a.manager.ValidateToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)

		c.Request().Header.Set("X-User-ID", strconv.FormatUint(uint64(claims.UserID), 10))
		c.Request().Header.Set("X-Username", claims.Username)
		c.Request().Header.Set("X-User-Role", claims.Role)

		return c.Next()
	}
}

// RequireRole restricts a route to the given roles
func (a *Authenticator) RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.required {
			return c.Next()
		}
		role, _ := c.Locals("role").(string)
		for _, allowed := range roles {
			if role == allowed {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"error":   "Insufficient role",
		})
	}
}
