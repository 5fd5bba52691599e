package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shojbahmed330/oneclick-studio/ai"
	"github.com/shojbahmed330/oneclick-studio/cache"
	"github.com/shojbahmed330/oneclick-studio/db"
	"github.com/shojbahmed330/oneclick-studio/models"
	"github.com/shojbahmed330/oneclick-studio/service"
)

const testWorkflow = "name: Build\n"

// newTestRouter wires the full API against a temp store and a canned local
// model endpoint.
func newTestRouter(t *testing.T, modelResponse string) (*gin.Engine, *db.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk, _ := json.Marshal(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": modelResponse},
			"done":    true,
		})
		w.Write(chunk)
		w.Write([]byte("\n"))
	}))
	t.Cleanup(model.Close)

	aiService := ai.New("", "llama3", model.URL, nil)
	gen := service.NewGenerationManager(database, aiService, nil)
	github := service.NewGithubService(testWorkflow)
	builds := service.NewBuildRunner(github, time.Millisecond, 1)
	h := New(database, gen, github, builds, cache.New())

	r := gin.New()
	r.GET("/health", h.HealthHandler)
	r.POST("/api/projects", h.CreateProjectHandler)
	r.GET("/api/projects", h.ListProjectsHandler)
	r.GET("/api/projects/:id", h.GetProjectHandler)
	r.DELETE("/api/projects/:id", h.DeleteProjectHandler)
	r.PUT("/api/projects/:id/config", h.UpdateProjectConfigHandler)
	r.POST("/api/projects/:id/generate", h.GenerateHandler)
	r.POST("/api/projects/:id/stop", h.StopHandler)
	r.GET("/api/projects/:id/state", h.StateHandler)
	r.GET("/api/projects/:id/preview", h.PreviewHandler)
	r.POST("/api/projects/:id/files", h.AddFileHandler)
	r.PUT("/api/projects/:id/files/rename", h.RenameFileHandler)
	r.DELETE("/api/projects/:id/files/*path", h.DeleteFileHandler)
	r.POST("/api/projects/:id/build", h.BuildHandler)
	r.GET("/api/projects/:id/build/status", h.BuildStatusHandler)
	r.POST("/api/github/repo", h.CreateRepoHandler)
	return r, database
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createTestProject(t *testing.T, r *gin.Engine) models.Project {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/projects", models.CreateProjectRequest{Name: "My App"})
	require.Equal(t, http.StatusCreated, w.Code)

	var project models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &project))
	return project
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProjectLifecycle(t *testing.T) {
	r, _ := newTestRouter(t, "{}")

	project := createTestProject(t, r)
	assert.Equal(t, "My App", project.Name)
	assert.Equal(t, "admin", project.UserID)
	assert.NotEmpty(t, project.ID)

	w := doJSON(t, r, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = doJSON(t, r, http.MethodGet, "/api/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUnknownProject(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	w := doJSON(t, r, http.MethodGet, "/api/projects/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateProjectConfig(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	project := createTestProject(t, r)

	cfg := models.ProjectConfig{AppName: "Renamed", PackageName: "com.example.renamed", SelectedModel: "llama3"}
	w := doJSON(t, r, http.MethodPut, "/api/projects/"+project.ID+"/config", cfg)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Renamed", updated.Config.AppName)
	assert.Equal(t, int64(1), updated.Revision)
}

func TestFileEndpoints(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	project := createTestProject(t, r)
	base := "/api/projects/" + project.ID

	w := doJSON(t, r, http.MethodPost, base+"/files", models.AddFileRequest{Path: "app/index.html", Content: "<h1>Hi</h1>"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, base+"/files", models.AddFileRequest{Path: "../escape.txt", Content: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, base+"/files/rename", models.RenameFileRequest{OldPath: "app/index.html", NewPath: "app/main.html"})
	require.Equal(t, http.StatusOK, w.Code)
	var renamed models.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &renamed))
	assert.Contains(t, renamed.Files, "app/main.html")
	assert.NotContains(t, renamed.Files, "app/index.html")

	w = doJSON(t, r, http.MethodDelete, base+"/files/app/main.html", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, base+"/files/app/main.html", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreviewEndpoint(t *testing.T) {
	r, database := newTestRouter(t, "{}")
	project := createTestProject(t, r)

	stored, err := database.GetProject("admin", project.ID)
	require.NoError(t, err)
	stored.Files = models.ProjectTree{
		"app/index.html": "<html><body><h1>Hello</h1></body></html>",
		"app/style.css":  "h1 { color: red; }",
	}
	require.NoError(t, database.SaveProject(stored))

	w := doJSON(t, r, http.MethodGet, "/api/projects/"+project.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1>Hello</h1>")
	assert.Contains(t, w.Body.String(), "h1 { color: red; }")

	// A new revision invalidates the cached document.
	w = doJSON(t, r, http.MethodPost, "/api/projects/"+project.ID+"/files", models.AddFileRequest{Path: "app/style.css", Content: "h1 { color: green; }"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/projects/"+project.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "h1 { color: green; }")
}

func TestGenerateEndpointStreams(t *testing.T) {
	response := `{"thought":"t","answer":"Created the page.","files":{"app/index.html":"<h1>New</h1>"}}`
	r, database := newTestRouter(t, response)
	project := createTestProject(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/projects/"+project.ID+"/generate",
		models.GenerateRequest{Message: "build a landing page", Workspace: "app"})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "event:phase")
	assert.Contains(t, body, "event:answer")
	assert.Contains(t, body, "event:result")
	assert.Contains(t, body, "Created the page.")

	saved, err := database.GetProject("admin", project.ID)
	require.NoError(t, err)
	assert.Equal(t, "<h1>New</h1>", saved.Files["app/index.html"])
}

func TestGenerateEndpointRejectsGibberish(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	project := createTestProject(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/projects/"+project.ID+"/generate",
		models.GenerateRequest{Message: "asdf"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateEndpointSchemaErrorEvent(t *testing.T) {
	r, _ := newTestRouter(t, "not json at all")
	project := createTestProject(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/projects/"+project.ID+"/generate",
		models.GenerateRequest{Message: "build a landing page"})
	require.Equal(t, http.StatusOK, w.Code, "errors mid-stream arrive as SSE events")
	assert.Contains(t, w.Body.String(), "event:error")
	assert.Contains(t, w.Body.String(), `"kind":"schema"`)
}

func TestGenerateEndpointUnknownProject(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	w := doJSON(t, r, http.MethodPost, "/api/projects/nope/generate",
		models.GenerateRequest{Message: "build a landing page"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStateEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	project := createTestProject(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/projects/"+project.ID+"/state", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var state service.ExecutionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.False(t, state.Generating)
	assert.False(t, state.WaitingForApproval)
}

func TestStopEndpointIdle(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	project := createTestProject(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/projects/"+project.ID+"/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "idle")
}

func TestBuildEndpointRequiresConfig(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	project := createTestProject(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/projects/"+project.ID+"/build",
		models.BuildRequest{Github: models.GithubConfig{Token: "tok"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBuildStatusEndpointDefaultsIdle(t *testing.T) {
	r, _ := newTestRouter(t, "{}")

	w := doJSON(t, r, http.MethodGet, "/api/projects/whatever/build/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status models.BuildStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.BuildIdle, status.Status)
}

func TestUserScoping(t *testing.T) {
	r, _ := newTestRouter(t, "{}")
	project := createTestProject(t, r)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+project.ID, nil)
	req.Header.Set("X-User-ID", "someone-else")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code, "projects are scoped per user")
}

func TestCreateProjectValidation(t *testing.T) {
	r, _ := newTestRouter(t, "{}")

	w := doJSON(t, r, http.MethodPost, "/api/projects", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// Regression guard for the SSE payload shape the dashboard consumes.
func TestGenerateEventPayloads(t *testing.T) {
	response := `{"answer":"Done.","plan":["Step one","Step two"]}`
	r, _ := newTestRouter(t, response)
	project := createTestProject(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/projects/"+project.ID+"/generate",
		models.GenerateRequest{Message: "build something with a plan"})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "Next Step:")
	assert.Contains(t, body, fmt.Sprintf("%q", "waiting_for_approval"))
	assert.True(t, strings.Contains(body, "Shall I proceed?"))
}
