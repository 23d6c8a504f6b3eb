package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/sqlbots/dashboard/internal/auth"
	"github.com/sqlbots/dashboard/internal/discord"
	"github.com/sqlbots/dashboard/internal/events"
	"github.com/sqlbots/dashboard/internal/logging"
	"github.com/sqlbots/dashboard/internal/models"
	"github.com/sqlbots/dashboard/internal/search"
)

type TaskHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
	ES       *elasticsearch.Client
	ESIndex  string
	Discord  *discord.Client
}

func (h *TaskHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "task_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "error", err)
	}
}

func (h *TaskHandler) ListTasks(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)

	var tasks []models.Task
	if err := h.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to fetch tasks")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "tasks": tasks})
}

type selectedMachine struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	IP   string `json:"ip"`
}

func (h *TaskHandler) CreateTask(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "create_task")
	userID := auth.UserID(c)

	var req struct {
		TaskName        string           `json:"taskName"`
		ListFile        string           `json:"listFile"`
		ProxiesFile     *string          `json:"proxiesFile"`
		SelectedMachine *selectedMachine `json:"selectedMachine"`
		SelectedThreads int              `json:"selectedThreads"`
		SelectedTimeout string           `json:"selectedTimeout"`
		StartFrom       *string          `json:"startFrom"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid JSON")
	}

	if req.TaskName == "" || req.ListFile == "" {
		return fail(c, http.StatusBadRequest, "Task name and list file are required")
	}

	threads := req.SelectedThreads
	if threads == 0 {
		threads = 50
	}
	timeout := req.SelectedTimeout
	if timeout == "" {
		timeout = "5s"
	}

	task := models.Task{
		UserID:      userID,
		TaskID:      newTaskID(),
		Title:       req.TaskName,
		ListFile:    req.ListFile,
		ProxiesFile: req.ProxiesFile,
		Threads:     threads,
		Timeout:     timeout,
		StartFrom:   req.StartFrom,
		Status:      "Running",
		Progress:    0,
	}
	if m := req.SelectedMachine; m != nil {
		task.MachineID = &m.ID
		task.MachineName = &m.Name
		task.MachineIP = &m.IP
	}

	if err := h.DB.WithContext(ctx).Create(&task).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to create task")
	}

	h.publish(c, userID, map[string]any{
		"type":    "task_created",
		"task_id": task.ID,
		"title":   task.Title,
		"user_id": userID,
	})

	if h.ES != nil {
		if err := search.IndexTask(ctx, h.ES, h.ESIndex, &task); err != nil {
			l.Error("task index failed", "task_id", task.ID, "error", err)
		}
	}

	h.notifyDiscord(c, userID, &task)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "task": task})
}

func (h *TaskHandler) notifyDiscord(c echo.Context, userID string, task *models.Task) {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx)

	var user models.User
	if err := h.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return
	}
	if !user.DiscordNotificationsEnabled || user.DiscordWebhookURL == nil || *user.DiscordWebhookURL == "" {
		return
	}
	if err := h.Discord.NotifyTaskCreated(ctx, *user.DiscordWebhookURL, task.TaskID, task.Title); err != nil {
		l.Error("discord notify failed", "task_id", task.ID, "error", err)
	}
}

func (h *TaskHandler) PatchTask(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)
	taskID := c.Param("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid JSON")
	}

	if req.Status != "Running" && req.Status != "Paused" {
		return fail(c, http.StatusBadRequest, "Invalid status. Must be 'Running' or 'Paused'")
	}

	task, err := h.ownedTask(ctx, taskID, userID)
	if err != nil {
		return h.taskError(c, err)
	}

	now := time.Now().UTC()
	if err := h.DB.WithContext(ctx).Model(task).
		Updates(map[string]any{"status": req.Status, "updated_at": now}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to update task")
	}
	task.Status = req.Status
	task.UpdatedAt = now

	h.publish(c, userID, map[string]any{
		"type":    "task_status_changed",
		"task_id": task.ID,
		"status":  req.Status,
		"user_id": userID,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "task": task})
}

func (h *TaskHandler) DeleteTask(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserID(c)
	taskID := c.Param("id")

	task, err := h.ownedTask(ctx, taskID, userID)
	if err != nil {
		return h.taskError(c, err)
	}

	if err := h.DB.WithContext(ctx).Delete(&models.Task{}, "id = ?", task.ID).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "Failed to delete task")
	}

	h.publish(c, userID, map[string]any{
		"type":    "task_deleted",
		"task_id": task.ID,
		"user_id": userID,
	})

	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Task deleted successfully"})
}

var (
	errTaskNotFound  = errors.New("task not found")
	errTaskForbidden = errors.New("task belongs to another user")
)

func (h *TaskHandler) ownedTask(ctx context.Context, taskID, userID string) (*models.Task, error) {
	var task models.Task
	if err := h.DB.WithContext(ctx).Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errTaskNotFound
		}
		return nil, err
	}
	if task.UserID != userID {
		return nil, errTaskForbidden
	}
	return &task, nil
}

func (h *TaskHandler) taskError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errTaskNotFound):
		return fail(c, http.StatusNotFound, "Task not found")
	case errors.Is(err, errTaskForbidden):
		return fail(c, http.StatusForbidden, "Unauthorized")
	default:
		return fail(c, http.StatusInternalServerError, "Internal server error")
	}
}

// Display id, matching the dashboard's T-XXXXXX labels.
func newTaskID() string {
	millis := fmt.Sprint(time.Now().UnixMilli())
	return "T-" + millis[len(millis)-6:]
}
