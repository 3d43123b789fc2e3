package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/moviestore/internal/utils"
)

// Context keys set by JWTAuth.
const (
	KeyUserID = "user_id" // token subject: decimal user id, or operator name
	KeyRole   = "role"
	KeyToken  = "token" // the raw bearer token
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects its subject, role and raw form into the request context.  The
// secret must match the one used when issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			sub, err := claims.GetSubject()
			if err != nil || sub == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(KeyUserID, sub)
			c.Set(KeyRole, claims["role"])
			c.Set(KeyToken, raw)
			return next(c)
		}
	}
}
