package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sqlbots/dashboard/internal/auth"
	"github.com/sqlbots/dashboard/internal/license"
	"github.com/sqlbots/dashboard/internal/models"
)

type LicenseHandler struct {
	DB     *gorm.DB
	Ledger *license.Ledger
}

func (h *LicenseHandler) ExtendLicense(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)

	var req struct {
		LicenseKey string `json:"licenseKey"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Request body must be valid JSON.")
	}

	licenseKey := strings.TrimSpace(req.LicenseKey)
	if licenseKey == "" {
		return fail(c, http.StatusBadRequest, "License key is required.")
	}

	res, err := h.Ledger.ExtendAndAssign(ctx, licenseKey, userID)
	if err != nil {
		switch {
		case errors.Is(err, license.ErrNotFound):
			return fail(c, http.StatusBadRequest, "License key is invalid.")
		case errors.Is(err, license.ErrAlreadyClaimed):
			return fail(c, http.StatusConflict, "License key has already been used.")
		case errors.Is(err, license.ErrUserNotFound):
			return fail(c, http.StatusNotFound, "User not found.")
		case errors.Is(err, license.ErrClaimConflict):
			return fail(c, http.StatusConflict, "License key has been claimed by another user. Please try again.")
		default:
			return fail(c, http.StatusInternalServerError, "Failed to update user license.")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"message":   fmt.Sprintf("License extended successfully. Your license now expires on %s.", res.ExpiresAt.Format("1/2/2006")),
		"expiresAt": res.ExpiresAt.Format(time.RFC3339),
		"daysAdded": res.DaysAdded,
	})
}

// LicenseInfo never fails for a user without a license; the dashboard
// renders the null case as "no active license".
func (h *LicenseHandler) LicenseInfo(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)

	var user models.User
	if err := h.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil || user.LicenseID == nil {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "license": nil})
	}

	var lic models.License
	if err := h.DB.WithContext(ctx).Where("id = ?", *user.LicenseID).First(&lic).Error; err != nil {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "license": nil})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"license": echo.Map{
			"expiresAt": lic.ExpiresAt,
			"planType":  lic.PlanType,
		},
	})
}
