package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sqlbots/dashboard/internal/auth"
	"github.com/sqlbots/dashboard/internal/discord"
	"github.com/sqlbots/dashboard/internal/hash"
	"github.com/sqlbots/dashboard/internal/models"
)

type SettingsHandler struct {
	DB      *gorm.DB
	Discord *discord.Client
}

func (h *SettingsHandler) currentUser(c echo.Context) (*models.User, error) {
	var user models.User
	err := h.DB.WithContext(c.Request().Context()).
		Where("id = ?", auth.UserID(c)).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *SettingsHandler) GetAPIKey(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "User not found.")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "apiKey": user.APIKey})
}

func (h *SettingsHandler) RegenerateAPIKey(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to generate API key.")
	}
	apiKey := hex.EncodeToString(buf)

	if err := h.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("api_key", apiKey).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to generate API key.")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"apiKey":  apiKey,
		"message": "API key regenerated successfully.",
	})
}

func (h *SettingsHandler) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Request body must be valid JSON.")
	}

	if req.CurrentPassword == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return fail(c, http.StatusBadRequest, "All password fields are required.")
	}
	if req.NewPassword != req.ConfirmPassword {
		return fail(c, http.StatusBadRequest, "New password and confirm password do not match.")
	}
	if len(req.NewPassword) < 8 {
		return fail(c, http.StatusBadRequest, "New password must be at least 8 characters long.")
	}

	user, err := h.currentUser(c)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "User not found.")
		}
		return fail(c, http.StatusInternalServerError, "Failed to load user.")
	}

	if !hash.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return fail(c, http.StatusUnauthorized, "Current password is incorrect.")
	}
	if hash.CheckPassword(user.PasswordHash, req.NewPassword) {
		return fail(c, http.StatusBadRequest, "New password must be different from current password.")
	}

	newHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to update password.")
	}

	if err := h.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("password_hash", newHash).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to update password.")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Password updated successfully.",
	})
}

func (h *SettingsHandler) GetDiscordSettings(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "User not found.")
	}

	webhookURL := ""
	if user.DiscordWebhookURL != nil {
		webhookURL = *user.DiscordWebhookURL
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":              true,
		"webhookUrl":           webhookURL,
		"notificationsEnabled": user.DiscordNotificationsEnabled,
	})
}

func (h *SettingsHandler) SaveDiscordSettings(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)

	var req struct {
		WebhookURL           string `json:"webhookUrl"`
		NotificationsEnabled bool   `json:"notificationsEnabled"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Request body must be valid JSON.")
	}

	webhookURL := strings.TrimSpace(req.WebhookURL)
	if webhookURL != "" {
		if err := discord.ValidateWebhookURL(webhookURL); err != nil {
			if errors.Is(err, discord.ErrNotDiscordURL) {
				return fail(c, http.StatusBadRequest, "URL must be a Discord webhook URL.")
			}
			return fail(c, http.StatusBadRequest, "Invalid webhook URL format.")
		}
	}

	var stored *string
	if webhookURL != "" {
		stored = &webhookURL
	}

	if err := h.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"discord_webhook_url":           stored,
			"discord_notifications_enabled": req.NotificationsEnabled,
		}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to save Discord settings.")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Discord settings saved successfully.",
	})
}

func (h *SettingsHandler) TestDiscordWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		WebhookURL string `json:"webhookUrl"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Request body must be valid JSON.")
	}

	webhookURL := strings.TrimSpace(req.WebhookURL)
	if webhookURL == "" {
		return fail(c, http.StatusBadRequest, "Webhook URL is required.")
	}
	if err := discord.ValidateWebhookURL(webhookURL); err != nil {
		if errors.Is(err, discord.ErrNotDiscordURL) {
			return fail(c, http.StatusBadRequest, "URL must be a Discord webhook URL.")
		}
		return fail(c, http.StatusBadRequest, "Invalid webhook URL format.")
	}

	if err := h.Discord.SendTest(ctx, webhookURL); err != nil {
		if errors.Is(err, discord.ErrRejected) {
			return fail(c, http.StatusBadRequest, "Discord webhook returned an error. Please verify the URL.")
		}
		return fail(c, http.StatusInternalServerError, "Failed to send test message. Please check your webhook URL and try again.")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Test message sent successfully to Discord!",
	})
}
