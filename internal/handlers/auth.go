package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sqlbots/dashboard/internal/account"
	"github.com/sqlbots/dashboard/internal/auth"
	"github.com/sqlbots/dashboard/internal/events"
	"github.com/sqlbots/dashboard/internal/hash"
	"github.com/sqlbots/dashboard/internal/license"
	"github.com/sqlbots/dashboard/internal/logging"
	"github.com/sqlbots/dashboard/internal/models"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Accounts  *account.Service
	Producer  *events.Producer
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *AuthHandler) Signup(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Username   string `json:"username"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		LicenseKey string `json:"licenseKey"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Request body must be valid JSON.")
	}

	user, err := h.Accounts.Signup(ctx, req.Username, req.Email, req.Password, req.LicenseKey)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrMissingFields):
			return fail(c, http.StatusBadRequest, "Please provide username, email, password, and license key.")
		case errors.Is(err, account.ErrInvalidLicense):
			return fail(c, http.StatusBadRequest, "License key is invalid.")
		case errors.Is(err, account.ErrLicenseClaimed):
			return fail(c, http.StatusConflict, "License key has already been used.")
		case errors.Is(err, account.ErrUsernameTaken):
			return fail(c, http.StatusConflict, "Username already exists.")
		case errors.Is(err, account.ErrEmailTaken):
			return fail(c, http.StatusConflict, "Email is already registered.")
		case errors.Is(err, license.ErrClaimConflict):
			return fail(c, http.StatusConflict, "License key was claimed during registration. Please try again.")
		default:
			return fail(c, http.StatusInternalServerError, "Failed to create user.")
		}
	}

	h.publish(c, "user_events", user.ID, map[string]any{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "Sign up successful. You can now log in.",
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Request body must be valid JSON.")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return fail(c, http.StatusBadRequest, "Email and password are required.")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid email or password.")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return fail(c, http.StatusUnauthorized, "Invalid email or password.")
	}

	exp := time.Now().Add(auth.TokenTTL)
	token, err := auth.CreateToken(h.JWTSecret, &user, exp)
	if err != nil {
		l.Error("token signing failed", "error", err)
		return fail(c, http.StatusInternalServerError, "Could not create session token.")
	}

	c.SetCookie(auth.CreateCookie(token, exp))

	h.publish(c, "user_events", user.ID, map[string]any{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	l.Info("login successful", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Login successful. Redirecting...",
		"token":   token,
		"user": echo.Map{
			"id":       user.ID,
			"email":    user.Email,
			"username": user.Username,
		},
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(auth.DeleteCookie())
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Logged out.",
	})
}
