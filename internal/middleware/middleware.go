package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openlancer/openlancer/internal/auth"
	"github.com/openlancer/openlancer/internal/model"
)

const actorKey = "actor"

// JWT verifies the bearer token and stores the resulting Actor on the
// request context.
func JWT(authSvc *auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			actor, err := authSvc.VerifyToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// Actor retrieves the authenticated actor placed by JWT.
func Actor(c echo.Context) (model.Actor, bool) {
	actor, ok := c.Get(actorKey).(model.Actor)
	return actor, ok
}

// RequireRoles gates a route to the given roles.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := Actor(c)
			if !ok {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "role missing"})
			}
			for _, r := range roles {
				if actor.Role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		}
	}
}

// AdminGuard restricts a route group to admins.
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, ok := Actor(c)
		if !ok || !actor.IsAdmin() {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access only"})
		}
		return next(c)
	}
}
