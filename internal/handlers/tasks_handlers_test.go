package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sqlbots/dashboard/internal/discord"
	"github.com/sqlbots/dashboard/internal/events"
	"github.com/sqlbots/dashboard/internal/models"
)

func newTaskHandler(t *testing.T) *TaskHandler {
	t.Helper()
	return &TaskHandler{
		DB:       initTestDB(t),
		Producer: &events.Producer{},
		Discord:  discord.NewClient(),
	}
}

func seedTask(t *testing.T, h *TaskHandler, user *models.User, title string) *models.Task {
	t.Helper()
	task := models.Task{
		UserID:   user.ID,
		TaskID:   newTaskID(),
		Title:    title,
		ListFile: "targets.txt",
		Threads:  50,
		Timeout:  "5s",
		Status:   "Running",
	}
	require.NoError(t, h.DB.Create(&task).Error)
	return &task
}

func TestCreateTask(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		h := newTaskHandler(t)
		user := seedUser(t, h.DB, "alice", "password123")

		c, rec := newJSONContext(t, http.MethodPost, "/api/tasks", map[string]any{
			"taskName": "Scan run",
			"listFile": "targets.txt",
		})
		asUser(c, user)
		require.NoError(t, h.CreateTask(c))
		requireStatus(t, rec, http.StatusOK)

		got := decodeBody(t, rec)
		task, ok := got["task"].(map[string]any)
		require.True(t, ok)
		require.Equal(t, "Scan run", task["title"])
		require.Equal(t, "Running", task["status"])
		require.Equal(t, float64(50), task["threads"])
		require.Equal(t, "5s", task["timeout"])
		require.Equal(t, float64(0), task["progress"])
		require.Regexp(t, `^T-\d{6}$`, task["task_id"])
	})

	t.Run("records the selected machine", func(t *testing.T) {
		h := newTaskHandler(t)
		user := seedUser(t, h.DB, "alice", "password123")

		c, rec := newJSONContext(t, http.MethodPost, "/api/tasks", map[string]any{
			"taskName":        "Scan run",
			"listFile":        "targets.txt",
			"selectedThreads": 200,
			"selectedTimeout": "10s",
			"selectedMachine": map[string]string{
				"id":   "m-1",
				"name": "GPClient-v2-8gb-1",
				"ip":   "192.168.1.14",
			},
		})
		asUser(c, user)
		require.NoError(t, h.CreateTask(c))
		requireStatus(t, rec, http.StatusOK)

		var stored models.Task
		require.NoError(t, h.DB.First(&stored, "user_id = ?", user.ID).Error)
		require.Equal(t, 200, stored.Threads)
		require.Equal(t, "10s", stored.Timeout)
		require.NotNil(t, stored.MachineName)
		require.Equal(t, "GPClient-v2-8gb-1", *stored.MachineName)
	})

	t.Run("name and list file are required", func(t *testing.T) {
		h := newTaskHandler(t)
		user := seedUser(t, h.DB, "alice", "password123")

		c, rec := newJSONContext(t, http.MethodPost, "/api/tasks", map[string]any{
			"taskName": "Scan run",
		})
		asUser(c, user)
		require.NoError(t, h.CreateTask(c))
		got := requireFailure(t, rec, http.StatusBadRequest)
		require.Equal(t, "Task name and list file are required", got["message"])
	})
}

func TestListTasks(t *testing.T) {
	h := newTaskHandler(t)
	alice := seedUser(t, h.DB, "alice", "password123")
	bob := seedUser(t, h.DB, "bob", "password123")

	first := seedTask(t, h, alice, "first")
	require.NoError(t, h.DB.Model(first).Update("created_at", time.Now().UTC().Add(-time.Hour)).Error)
	seedTask(t, h, alice, "second")
	seedTask(t, h, bob, "other")

	c, rec := newJSONContext(t, http.MethodGet, "/api/tasks", nil)
	asUser(c, alice)
	require.NoError(t, h.ListTasks(c))
	requireStatus(t, rec, http.StatusOK)

	got := decodeBody(t, rec)
	tasks, ok := got["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, tasks, 2)

	// Newest first, and only the caller's rows.
	newest := tasks[0].(map[string]any)
	require.Equal(t, "second", newest["title"])
}

func TestPatchTask(t *testing.T) {
	t.Run("pauses a running task", func(t *testing.T) {
		h := newTaskHandler(t)
		user := seedUser(t, h.DB, "alice", "password123")
		task := seedTask(t, h, user, "scan")

		c, rec := newJSONContext(t, http.MethodPatch, "/api/tasks/"+task.ID, map[string]string{"status": "Paused"})
		c.SetParamNames("id")
		c.SetParamValues(task.ID)
		asUser(c, user)
		require.NoError(t, h.PatchTask(c))
		requireStatus(t, rec, http.StatusOK)

		var stored models.Task
		require.NoError(t, h.DB.First(&stored, "id = ?", task.ID).Error)
		require.Equal(t, "Paused", stored.Status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		h := newTaskHandler(t)
		user := seedUser(t, h.DB, "alice", "password123")
		task := seedTask(t, h, user, "scan")

		c, rec := newJSONContext(t, http.MethodPatch, "/api/tasks/"+task.ID, map[string]string{"status": "Stopped"})
		c.SetParamNames("id")
		c.SetParamValues(task.ID)
		asUser(c, user)
		require.NoError(t, h.PatchTask(c))
		requireFailure(t, rec, http.StatusBadRequest)
	})

	t.Run("foreign task is forbidden", func(t *testing.T) {
		h := newTaskHandler(t)
		alice := seedUser(t, h.DB, "alice", "password123")
		bob := seedUser(t, h.DB, "bob", "password123")
		task := seedTask(t, h, bob, "bobs scan")

		c, rec := newJSONContext(t, http.MethodPatch, "/api/tasks/"+task.ID, map[string]string{"status": "Paused"})
		c.SetParamNames("id")
		c.SetParamValues(task.ID)
		asUser(c, alice)
		require.NoError(t, h.PatchTask(c))
		requireFailure(t, rec, http.StatusForbidden)
	})

	t.Run("unknown task", func(t *testing.T) {
		h := newTaskHandler(t)
		user := seedUser(t, h.DB, "alice", "password123")

		c, rec := newJSONContext(t, http.MethodPatch, "/api/tasks/missing", map[string]string{"status": "Paused"})
		c.SetParamNames("id")
		c.SetParamValues("missing")
		asUser(c, user)
		require.NoError(t, h.PatchTask(c))
		requireFailure(t, rec, http.StatusNotFound)
	})
}

func TestDeleteTask(t *testing.T) {
	t.Run("removes the row", func(t *testing.T) {
		h := newTaskHandler(t)
		user := seedUser(t, h.DB, "alice", "password123")
		task := seedTask(t, h, user, "scan")

		c, rec := newJSONContext(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
		c.SetParamNames("id")
		c.SetParamValues(task.ID)
		asUser(c, user)
		require.NoError(t, h.DeleteTask(c))
		requireStatus(t, rec, http.StatusOK)

		got := decodeBody(t, rec)
		require.Equal(t, "Task deleted successfully", got["message"])

		var count int64
		require.NoError(t, h.DB.Model(&models.Task{}).Count(&count).Error)
		require.Zero(t, count)
	})

	t.Run("foreign task is forbidden", func(t *testing.T) {
		h := newTaskHandler(t)
		alice := seedUser(t, h.DB, "alice", "password123")
		bob := seedUser(t, h.DB, "bob", "password123")
		task := seedTask(t, h, bob, "bobs scan")

		c, rec := newJSONContext(t, http.MethodDelete, "/api/tasks/"+task.ID, nil)
		c.SetParamNames("id")
		c.SetParamValues(task.ID)
		asUser(c, alice)
		require.NoError(t, h.DeleteTask(c))
		requireFailure(t, rec, http.StatusForbidden)

		var count int64
		require.NoError(t, h.DB.Model(&models.Task{}).Count(&count).Error)
		require.Equal(t, int64(1), count)
	})
}
