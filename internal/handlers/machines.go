package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sqlbots/dashboard/internal/models"
)

type MachineHandler struct {
	DB *gorm.DB
}

func (h *MachineHandler) ListMachines(c echo.Context) error {
	ctx := c.Request().Context()

	var machines []models.Machine
	if err := h.DB.WithContext(ctx).Order("name ASC").Find(&machines).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to fetch machines")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "machines": machines})
}

func (h *MachineHandler) DeleteMachine(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var machine models.Machine
	if err := h.DB.WithContext(ctx).Where("id = ?", id).First(&machine).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "Machine not found")
		}
		return fail(c, http.StatusInternalServerError, "Failed to fetch machine")
	}

	if err := h.DB.WithContext(ctx).Delete(&models.Machine{}, "id = ?", id).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to delete machine")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Machine removed"})
}
