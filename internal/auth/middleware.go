package auth

import (
	"strings"

	"burrito-backend/internal/audit"
	"burrito-backend/internal/config"
	"burrito-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
)

func bearerToken(c *fiber.Ctx) (string, bool, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", false, nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", true, fiber.NewError(fiber.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
	}
	return parts[1], true, nil
}

func authenticate(c *fiber.Ctx, cfg *config.Config, tokenStr string) error {
	claims, err := ParseToken(cfg.JWTSecret, tokenStr)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
	}
	c.Locals(CtxUserIDKey, claims.UserID)
	c.Locals(CtxUserRoleKey, claims.Role)

	uid := claims.UserID
	c.SetUserContext(audit.WithActor(c.UserContext(), audit.Actor{UserID: &uid, Name: claims.Name}))
	return nil
}

func JWTMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, present, err := bearerToken(c)
		if err != nil {
			return err
		}
		if !present {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing Authorization header")
		}
		if err := authenticate(c, cfg, tokenStr); err != nil {
			return err
		}
		return c.Next()
	}
}

// OptionalJWT authenticates when a bearer token is sent and lets anonymous
// requests through. A malformed or expired token is still rejected.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr, present, err := bearerToken(c)
		if err != nil {
			return err
		}
		if present {
			if err := authenticate(c, cfg, tokenStr); err != nil {
				return err
			}
		}
		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Role information unavailable")
		}
		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "You are not allowed to do this")
	}
}

// UserID returns the authenticated user's id, if any.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(CtxUserIDKey).(uint)
	return id, ok && id > 0
}
