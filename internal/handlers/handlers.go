package handlers

import (
	"github.com/labstack/echo/v4"
)

// Every failure in the dashboard API uses the same envelope.
func fail(c echo.Context, code int, message string) error {
	return c.JSON(code, echo.Map{
		"success": false,
		"message": message,
	})
}
