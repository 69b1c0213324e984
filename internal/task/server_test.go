package task_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/changepilot/changepilot/internal/eventbus"
	"github.com/changepilot/changepilot/internal/task"
	"github.com/changepilot/changepilot/internal/task/repositoryimpl"
	"github.com/changepilot/changepilot/pkg/cerr"
	"github.com/changepilot/changepilot/pkg/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *eventbus.Bus) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	bus := eventbus.New()

	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	task.NewServer(repositoryimpl.NewJSONRepository(store), nil, bus).RegisterRoutes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, bus
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestTaskServerCreateAndGet(t *testing.T) {
	ts, bus := newTestServer(t)
	_, events := bus.Subscribe(8)

	resp := postJSON(t, ts.URL+"/tasks", map[string]any{
		"type":        "copy_change",
		"description": "Change the hero headline",
		"sender":      "api",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[task.Task](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, task.StatusPending, created.Status)
	assert.True(t, created.AutoCommit)
	assert.Equal(t, []string{"app/components/Hero.tsx"}, created.Scope)
	assert.NotEmpty(t, created.Rules)

	ev := <-events
	assert.Equal(t, eventbus.TypeTaskCreated, ev.Type)
	assert.Equal(t, created.ID, ev.ResourceID)

	resp, err := http.Get(fmt.Sprintf("%s/tasks/%s", ts.URL, created.ID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[task.Task](t, resp)
	assert.Equal(t, created.ID, got.ID)
}

func TestTaskServerCreateValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/tasks", map[string]any{
		"type":        "world_domination",
		"description": "nope",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/tasks", map[string]any{"type": "copy_change"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestTaskServerListFilter(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, desc := range []string{"first", "second"} {
		resp := postJSON(t, ts.URL+"/tasks", map[string]any{
			"type":        "style_change",
			"description": desc,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/tasks?status=pending")
	require.NoError(t, err)
	listing := decode[struct {
		Tasks []*task.Task `json:"tasks"`
		Count int          `json:"count"`
	}](t, resp)
	assert.Equal(t, 2, listing.Count)
	assert.Equal(t, "second", listing.Tasks[0].Description, "newest first")

	resp, err = http.Get(ts.URL + "/tasks?status=bogus")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestTaskServerCompletion(t *testing.T) {
	ts, bus := newTestServer(t)

	resp := postJSON(t, ts.URL+"/tasks", map[string]any{
		"type":        "color_change",
		"description": "Darken the cta background",
	})
	created := decode[task.Task](t, resp)

	_, events := bus.Subscribe(8)

	resp = postJSON(t, ts.URL+"/webhook/task-completed", map[string]any{
		"task_id": created.ID,
		"status":  "success",
		"details": "committed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resolved := decode[task.Task](t, resp)
	assert.Equal(t, task.StatusSuccess, resolved.Status)
	require.NotNil(t, resolved.Result)
	assert.Equal(t, "committed", resolved.Result.Details)

	ev := <-events
	assert.Equal(t, eventbus.TypeTaskStatusChanged, ev.Type)

	// Terminal tasks are archived: out of the listing, immutable, still readable.
	resp = postJSON(t, ts.URL+"/webhook/task-completed", map[string]any{
		"task_id": created.ID,
		"status":  "failed",
	})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(fmt.Sprintf("%s/tasks/%s", ts.URL, created.ID))
	require.NoError(t, err)
	got := decode[task.Task](t, resp)
	assert.Equal(t, task.StatusSuccess, got.Status)
}

func TestTaskServerDelete(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/tasks", map[string]any{
		"type":        "seo_update",
		"description": "Retitle the page",
	})
	created := decode[task.Task](t, resp)

	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/tasks/%s", ts.URL, created.ID), nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(fmt.Sprintf("%s/tasks/%s", ts.URL, created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
