package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type SimpleAuth struct {
	JWTSecret []byte
}

func NewSimpleAuth(secret []byte) *SimpleAuth {
	return &SimpleAuth{JWTSecret: secret}
}

// RequireAuth accepts the session cookie or a bearer token; the dashboard
// sends the cookie, API clients send Authorization headers.
func (m *SimpleAuth) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := ""
		if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
			tokenStr = cookie.Value
		} else if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
			tokenStr = strings.TrimPrefix(h, "Bearer ")
		}
		if tokenStr == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required.")
		}

		claims, err := ClaimsFromToken(tokenStr, m.JWTSecret)
		if err != nil || claims == nil {
			c.SetCookie(DeleteCookie())
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token.")
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)

		return next(c)
	}
}

func UserID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}
