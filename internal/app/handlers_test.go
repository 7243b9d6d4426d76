package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskscheduler-go/internal/config"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()

	cfg := &config.Config{
		DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		ServerPort:  8080,
		MetricsPort: 9091,
		LogLevel:    "info",
		AppEnv:      "development",
		Scheduler: config.SchedulerConfig{
			IdlePoll:       time.Hour,
			WakeBuffer:     100,
			WebhookTimeout: 5 * time.Second,
		},
		DB: config.DBConfig{
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
	}

	application, err := New(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { application.Storage.Close() })
	return application
}

func doRequest(t *testing.T, app *Application, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	app.HTTPServer.Handler.ServeHTTP(rec, req)
	return rec
}

func createTask(t *testing.T, app *Application, body map[string]interface{}) string {
	t.Helper()

	rec := doRequest(t, app, http.MethodPost, "/tasks", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "created", resp["status"])
	require.NotEmpty(t, resp["id"])
	return resp["id"]
}

func TestCreateTaskEndpoint(t *testing.T) {
	app := newTestApp(t)

	id := createTask(t, app, map[string]interface{}{
		"name":       "nightly-report",
		"task_type":  "once",
		"trigger_at": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		"payload":    map[string]string{"url": "http://example.com/hook"},
	})

	task, err := app.Storage.GetTask(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "nightly-report", task.Name)
}

func TestCreateTaskEndpoint_BadRequests(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "bad task_type",
			body: map[string]interface{}{
				"name": "x", "task_type": "weekly",
				"trigger_at": time.Now().UTC().Format(time.RFC3339),
			},
		},
		{
			name: "interval without interval_seconds",
			body: map[string]interface{}{
				"name": "x", "task_type": "interval",
				"trigger_at": time.Now().UTC().Format(time.RFC3339),
			},
		},
		{
			name: "interval_seconds zero",
			body: map[string]interface{}{
				"name": "x", "task_type": "interval", "interval_seconds": 0,
				"trigger_at": time.Now().UTC().Format(time.RFC3339),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, app, http.MethodPost, "/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestCreateTaskEndpoint_MalformedJSON(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	app.HTTPServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTaskEndpoint(t *testing.T) {
	app := newTestApp(t)

	id := createTask(t, app, map[string]interface{}{
		"name": "ephemeral", "task_type": "once",
		"trigger_at": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})

	rec := doRequest(t, app, http.MethodDelete, "/tasks/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Deleting the same task twice is a 404.
	rec = doRequest(t, app, http.MethodDelete, "/tasks/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteTaskEndpoint_MalformedID(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodDelete, "/tasks/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Resource Not Found", resp["error"])
}

func TestListTasksEndpoint(t *testing.T) {
	app := newTestApp(t)

	keep := createTask(t, app, map[string]interface{}{
		"name": "keep", "task_type": "once",
		"trigger_at": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	drop := createTask(t, app, map[string]interface{}{
		"name": "drop", "task_type": "once",
		"trigger_at": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})
	rec := doRequest(t, app, http.MethodDelete, "/tasks/"+drop, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, app, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []taskSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)

	byID := map[string]taskSummary{}
	for _, task := range tasks {
		byID[task.ID] = task
	}
	assert.Equal(t, "active", byID[keep].Status)
	assert.Empty(t, byID[keep].DeletedAt)
	assert.Equal(t, "deleted", byID[drop].Status)
	assert.NotEmpty(t, byID[drop].DeletedAt)
}

func TestListExecutionsEndpoint(t *testing.T) {
	app := newTestApp(t)

	id := createTask(t, app, map[string]interface{}{
		"name": "quiet", "task_type": "once",
		"trigger_at": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})

	// No history yet: an empty array, not null.
	rec := doRequest(t, app, http.MethodGet, fmt.Sprintf("/tasks/%s/executions", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doRequest(t, app, http.MethodGet, "/tasks/b4b6f7a0-0000-0000-0000-000000000000/executions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, app, http.MethodGet, "/tasks/not-a-uuid/executions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	rec := doRequest(t, app, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status        string `json:"status"`
		SchemaVersion uint   `json:"schema_version"`
		SchemaDirty   bool   `json:"schema_dirty"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, uint(2), resp.SchemaVersion)
	assert.False(t, resp.SchemaDirty)
}

func TestStatsEndpoint(t *testing.T) {
	app := newTestApp(t)

	createTask(t, app, map[string]interface{}{
		"name": "counted", "task_type": "once",
		"trigger_at": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
	})

	rec := doRequest(t, app, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ActiveTasks int64 `json:"active_tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ActiveTasks)
}
