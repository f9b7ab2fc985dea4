package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltio/gridbase/internal/api"
	"github.com/voltio/gridbase/internal/api/handler"
	"github.com/voltio/gridbase/internal/auth"
	"github.com/voltio/gridbase/internal/db"
	"github.com/voltio/gridbase/internal/health"
	"github.com/voltio/gridbase/internal/project"
	"github.com/voltio/gridbase/internal/store"
	"github.com/voltio/gridbase/internal/viewcache"
)

const jwtSecret = "handler-test-secret-32-bytes-min!"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gdb, err := db.NewSQLite(filepath.Join(t.TempDir(), "handler_test.db"))
	require.NoError(t, err)

	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc := project.NewService(store.New(gdb), viewcache.NewMemory(), log)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux,
		health.New(db.NewPinger(gdb)),
		handler.NewAuthHandler(gdb, jwtSecret, 15*time.Minute, time.Hour),
		handler.NewProjectHandler(svc),
		handler.NewTodoHandler(svc),
		jwtSecret)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func bearerFor(t *testing.T, userID, orgID string) string {
	t.Helper()
	tok, err := auth.IssueAccessToken(userID, userID+"@example.com", []string{"Member"}, orgID, jwtSecret, 15*time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

func doJSON(t *testing.T, method, url, bearer string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeDoc(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	return doc
}

func dataAttrs(t *testing.T, doc map[string]any) map[string]any {
	t.Helper()
	data, ok := doc["data"].(map[string]any)
	require.True(t, ok, "document has no single data object: %v", doc)
	attrs, ok := data["attributes"].(map[string]any)
	require.True(t, ok, "data has no attributes: %v", data)
	return attrs
}

func createProject(t *testing.T, srv *httptest.Server, bearer, name string) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", bearer, map[string]string{"name": name})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := decodeDoc(t, resp)["data"].(map[string]any)
	return data["id"].(string)
}

func TestProjects_AuthGates(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Authenticated but without an active organization.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects", bearerFor(t, "user-1", ""), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	doc := decodeDoc(t, resp)
	errs := doc["errors"].([]any)
	first := errs[0].(map[string]any)
	assert.Equal(t, "no_active_tenant", first["code"])
	assert.Equal(t, "/onboarding/organization-selection", first["meta"].(map[string]any)["redirect"])
}

func TestProjects_CreateListAndConflict(t *testing.T) {
	srv := newTestServer(t)
	bearer := bearerFor(t, "user-1", "org-1")

	createProject(t, srv, bearer, "North Grid")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", bearer, map[string]string{"name": "North Grid"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects", bearer, map[string]string{"name": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decodeDoc(t, resp)
	assert.Len(t, doc["data"].([]any), 1)
}

func TestProjects_TenantIsolation(t *testing.T) {
	srv := newTestServer(t)

	projectID := createProject(t, srv, bearerFor(t, "user-1", "org-1"), "North Grid")

	// Another tenant cannot see or mutate the project through a guessed id.
	other := bearerFor(t, "user-2", "org-2")
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+projectID, other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects/"+projectID+"/revisions", other,
		map[string]string{"versionLabel": "v1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects", other, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeDoc(t, resp)["data"].([]any))
}

func TestProjects_RevisionAndConfigFlow(t *testing.T) {
	srv := newTestServer(t)
	bearer := bearerFor(t, "user-1", "org-1")
	projectID := createProject(t, srv, bearer, "North Grid")

	// Fresh project resolves with no revisions and no config.
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+projectID, bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attrs := dataAttrs(t, decodeDoc(t, resp))
	assert.Empty(t, attrs["revisions"])
	assert.Nil(t, attrs["activeRevisionId"])
	assert.Nil(t, attrs["config"])

	// Create two revisions.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects/"+projectID+"/revisions", bearer,
		map[string]string{"versionLabel": "v1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rev1 := decodeDoc(t, resp)["data"].(map[string]any)["id"].(string)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects/"+projectID+"/revisions", bearer,
		map[string]string{"versionLabel": "v2", "comment": "tuned setpoints"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rev2 := decodeDoc(t, resp)["data"].(map[string]any)["id"].(string)

	// Duplicate label conflicts.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/projects/"+projectID+"/revisions", bearer,
		map[string]string{"versionLabel": "v2"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Save a config against the latest revision; numeric fields may arrive
	// as JSON numbers or strings.
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/projects/"+projectID+"/config", bearer,
		map[string]any{
			"revisionId":       rev2,
			"substationName":   "Main Yard",
			"voltageKv":        110.5,
			"transformerCount": "3",
		})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := dataAttrs(t, decodeDoc(t, resp))
	data := cfg["data"].(map[string]any)
	assert.Equal(t, "Main Yard", data["substationName"])
	assert.Equal(t, 110.5, data["voltageKv"])
	assert.Equal(t, float64(3), data["transformerCount"])

	// Default resolution points at the latest revision and its config.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+projectID, bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attrs = dataAttrs(t, decodeDoc(t, resp))
	assert.Equal(t, rev2, attrs["activeRevisionId"])
	assert.NotNil(t, attrs["config"])
	assert.Len(t, attrs["revisions"], 2)

	// Requesting the older revision shows its empty slot.
	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/projects/%s?rev=%s", srv.URL, projectID, rev1), bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attrs = dataAttrs(t, decodeDoc(t, resp))
	assert.Equal(t, rev1, attrs["activeRevisionId"])
	assert.Nil(t, attrs["config"])

	// Unknown revision id falls back silently to the latest.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+projectID+"?rev=bogus", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attrs = dataAttrs(t, decodeDoc(t, resp))
	assert.Equal(t, rev2, attrs["activeRevisionId"])

	// Deleting the configured revision promotes its config to the default slot.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/projects/"+projectID+"/revisions/"+rev2, bearer, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+projectID+"?rev="+rev1, bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attrs = dataAttrs(t, decodeDoc(t, resp))
	assert.Len(t, attrs["revisions"], 1)
}

func TestProjects_DefaultConfigSlot(t *testing.T) {
	srv := newTestServer(t)
	bearer := bearerFor(t, "user-1", "org-1")
	projectID := createProject(t, srv, bearer, "North Grid")

	// No revisionId targets the project's default slot.
	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/projects/"+projectID+"/config", bearer,
		map[string]any{"substationName": "Default Yard", "voltageKv": "garbage"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := dataAttrs(t, decodeDoc(t, resp))
	data := cfg["data"].(map[string]any)
	assert.Equal(t, "Default Yard", data["substationName"])
	assert.Equal(t, float64(0), data["voltageKv"])

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/projects/"+projectID, bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	attrs := dataAttrs(t, decodeDoc(t, resp))
	assert.Nil(t, attrs["activeRevisionId"])
	require.NotNil(t, attrs["config"])
}

func TestTodos_UserScoped(t *testing.T) {
	srv := newTestServer(t)
	bearer := bearerFor(t, "user-1", "") // todos need no organization

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/todos", bearer,
		map[string]string{"title": "replace breaker", "message": "bay 4"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/todos", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeDoc(t, resp)["data"].([]any), 1)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/todos", bearerFor(t, "user-2", ""), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeDoc(t, resp)["data"].([]any))
}
