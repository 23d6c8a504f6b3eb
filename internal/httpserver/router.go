package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sqlbots/dashboard/internal/auth"
	"github.com/sqlbots/dashboard/internal/handlers"
)

type Deps struct {
	JWTSecret       []byte
	AuthHandler     *handlers.AuthHandler
	LicenseHandler  *handlers.LicenseHandler
	TaskHandler     *handlers.TaskHandler
	SettingsHandler *handlers.SettingsHandler
	MachineHandler  *handlers.MachineHandler
	SearchHandler   *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	api.POST("/signup", d.AuthHandler.Signup)
	api.POST("/login", d.AuthHandler.Login)

	authMw := auth.NewSimpleAuth(d.JWTSecret)
	private := api.Group("", authMw.RequireAuth)

	private.POST("/logout", d.AuthHandler.Logout)

	private.POST("/extend-license", d.LicenseHandler.ExtendLicense)
	private.GET("/license-info", d.LicenseHandler.LicenseInfo)

	private.GET("/tasks", d.TaskHandler.ListTasks)
	private.POST("/tasks", d.TaskHandler.CreateTask)
	private.GET("/tasks/search", d.SearchHandler.SearchTasks)
	private.PATCH("/tasks/:id", d.TaskHandler.PatchTask)
	private.DELETE("/tasks/:id", d.TaskHandler.DeleteTask)

	private.GET("/api-key", d.SettingsHandler.GetAPIKey)
	private.POST("/api-key", d.SettingsHandler.RegenerateAPIKey)
	private.POST("/change-password", d.SettingsHandler.ChangePassword)
	private.GET("/discord-settings", d.SettingsHandler.GetDiscordSettings)
	private.POST("/discord-settings", d.SettingsHandler.SaveDiscordSettings)
	private.POST("/test-discord-webhook", d.SettingsHandler.TestDiscordWebhook)

	private.GET("/machines", d.MachineHandler.ListMachines)
	private.DELETE("/machines/:id", d.MachineHandler.DeleteMachine)
}
