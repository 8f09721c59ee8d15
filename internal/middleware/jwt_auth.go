package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mansoorceksport/freightdesk/internal/domain"
)

// Context keys for the authenticated caller
const (
	ClientIDKey = "clientID"
	RoleKey     = "role"
)

// VerifyToken validates the service JWT and stores the caller in the context
func VerifyToken(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "missing authorization token")
		}
		tokenString := BearerToken(authHeader)

		token, err := jwt.ParseWithClaims(tokenString, &domain.FreightDeskClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid signing method")
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			return unauthorized(c, "invalid or expired token")
		}

		claims, ok := token.Claims.(*domain.FreightDeskClaims)
		if !ok || !token.Valid || claims.ClientID == "" {
			return unauthorized(c, "invalid token claims")
		}

		c.Locals(ClientIDKey, claims.ClientID)
		c.Locals(RoleKey, claims.Role)
		return c.Next()
	}
}

// RequireRole rejects callers whose role is not one of allowedRoles
func RequireRole(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(RoleKey).(string)
		if role == "" {
			return unauthorized(c, "no role found in token")
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "insufficient permissions",
		})
	}
}

// GetCaller returns the principal stored by VerifyToken
func GetCaller(c *fiber.Ctx) domain.Caller {
	id, _ := c.Locals(ClientIDKey).(string)
	role, _ := c.Locals(RoleKey).(string)
	return domain.Caller{ID: id, Role: role}
}

// BearerToken strips an optional "Bearer " prefix
func BearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(header)
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
