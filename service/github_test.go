package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shojbahmed330/oneclick-studio/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkflow = `name: Build
env:
  SIGNING_STORE_PASSWORD: ""
  SIGNING_KEY_ALIAS: ""
  SIGNING_KEY_PASSWORD: ""
`

type recordedCall struct {
	method string
	path   string
	body   map[string]interface{}
}

// fakeGithub records every contents-API call and serves canned run/artifact
// listings.
type fakeGithub struct {
	mu        sync.Mutex
	calls     []recordedCall
	runStatus string
	server    *httptest.Server
}

func newFakeGithub(t *testing.T) *fakeGithub {
	f := &fakeGithub{runStatus: "completed"}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := recordedCall{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&call.body)
		}
		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()

		switch {
		case strings.Contains(r.URL.Path, "/contents/") && r.Method == http.MethodGet:
			// File does not exist yet.
			w.WriteHeader(http.StatusNotFound)
		case strings.Contains(r.URL.Path, "/contents/") && r.Method == http.MethodPut:
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{}`)
		case strings.HasSuffix(r.URL.Path, "/actions/runs"):
			fmt.Fprintf(w, `{"workflow_runs":[{"status":%q,"html_url":"https://github.com/o/r/actions/runs/1","artifacts_url":%q}]}`,
				f.runStatus, f.server.URL+"/artifacts")
		case strings.HasSuffix(r.URL.Path, "/artifacts"):
			fmt.Fprint(w, `{"artifacts":[
				{"name":"app-release","archive_download_url":"https://example.com/apk.zip"},
				{"name":"app-release-bundle","archive_download_url":"https://example.com/bundle.zip"}
			]}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGithub) service() *GithubService {
	svc := NewGithubService(testWorkflow)
	svc.apiBase = f.server.URL
	return svc
}

func (f *fakeGithub) putPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var paths []string
	for _, call := range f.calls {
		if call.method == http.MethodPut {
			paths = append(paths, strings.TrimPrefix(call.path, "/repos/owner/repo/contents/"))
		}
	}
	return paths
}

func testGithubConfig() models.GithubConfig {
	return models.GithubConfig{Token: "tok", Owner: "owner", Repo: "repo"}
}

func TestPushUploadsEverythingWorkflowLast(t *testing.T) {
	fake := newFakeGithub(t)
	svc := fake.service()

	files := models.ProjectTree{
		"app/index.html": "<h1>Hi</h1>",
		"app/main.js":    "console.log(1);",
	}
	err := svc.Push(context.Background(), testGithubConfig(), files, nil, "Sync")
	require.NoError(t, err)

	paths := fake.putPaths()
	require.NotEmpty(t, paths)
	assert.Contains(t, paths, "app/index.html")
	assert.Contains(t, paths, "app/main.js")
	assert.Contains(t, paths, "capacitor.config.json", "capacitor config is always generated")
	assert.Equal(t, workflowPath, paths[len(paths)-1], "workflow must be pushed last")
}

func TestPushChecksShaBeforePut(t *testing.T) {
	fake := newFakeGithub(t)
	svc := fake.service()

	err := svc.Push(context.Background(), testGithubConfig(), models.ProjectTree{"a.txt": "x"}, nil, "Sync")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	for i, call := range fake.calls {
		if call.method == http.MethodPut {
			require.Greater(t, i, 0)
			prev := fake.calls[i-1]
			assert.Equal(t, http.MethodGet, prev.method, "every PUT is preceded by a SHA lookup")
			assert.Equal(t, call.path, prev.path)
		}
	}
}

func TestPushInjectsSigningCredentials(t *testing.T) {
	fake := newFakeGithub(t)
	svc := fake.service()

	appConfig := &models.ProjectConfig{
		KeystoreBase64:   "a2V5c3RvcmU=",
		KeystorePassword: "storepass",
		KeyAlias:         "release",
		KeyPassword:      "keypass",
	}
	err := svc.Push(context.Background(), testGithubConfig(), models.ProjectTree{"a.txt": "x"}, appConfig, "Sync")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	var workflowBody map[string]interface{}
	for _, call := range fake.calls {
		if call.method == http.MethodPut && strings.HasSuffix(call.path, "android.yml") {
			workflowBody = call.body
		}
	}
	require.NotNil(t, workflowBody)

	decoded, err := base64.StdEncoding.DecodeString(workflowBody["content"].(string))
	require.NoError(t, err)
	assert.Contains(t, string(decoded), `SIGNING_STORE_PASSWORD: "storepass"`)
	assert.Contains(t, string(decoded), `SIGNING_KEY_ALIAS: "release"`)
	assert.Contains(t, string(decoded), `SIGNING_KEY_PASSWORD: "keypass"`)

	assert.Contains(t, fake.putPaths(), "android/app/release-key.jks")
}

func TestPushRequiresConfig(t *testing.T) {
	svc := NewGithubService(testWorkflow)
	err := svc.Push(context.Background(), models.GithubConfig{}, models.ProjectTree{}, nil, "Sync")
	assert.Error(t, err)
}

func TestEncodeContent(t *testing.T) {
	// Plain text gets base64-encoded.
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), encodeContent("a.txt", "hello"))

	// Data URIs are stripped to their base64 payload.
	assert.Equal(t, "iVBORw0K", encodeContent("assets/icon-only.png", "data:image/png;base64,iVBORw0K"))

	// Keystores and assets are assumed to already be base64.
	assert.Equal(t, "a2V5", encodeContent("android/app/release-key.jks", "a2V5"))
}

func TestCapacitorConfig(t *testing.T) {
	raw := capacitorConfig(&models.ProjectConfig{AppName: "My App", PackageName: "Com.Example.My-App"})

	var parsed map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &parsed))
	assert.Equal(t, "My App", parsed["appName"])
	assert.Equal(t, "com.example.myapp", parsed["appId"], "app id is lowercased and stripped")
	assert.Equal(t, "www", parsed["webDir"])

	raw = capacitorConfig(nil)
	require.NoError(t, json.Unmarshal([]byte(raw), &parsed))
	assert.Equal(t, "com.oneclick.studio", parsed["appId"])
}

func TestLatestArtifactWhileRunning(t *testing.T) {
	fake := newFakeGithub(t)
	fake.runStatus = "in_progress"
	svc := fake.service()

	artifact, err := svc.LatestArtifact(context.Background(), testGithubConfig())
	require.NoError(t, err)
	assert.Nil(t, artifact, "no artifact until the run completes")
}

func TestLatestArtifactCompleted(t *testing.T) {
	fake := newFakeGithub(t)
	svc := fake.service()
	svc.pagesHost = "github.io"

	artifact, err := svc.LatestArtifact(context.Background(), testGithubConfig())
	require.NoError(t, err)
	require.NotNil(t, artifact)
	assert.Equal(t, "https://example.com/apk.zip", artifact.DownloadURL)
	assert.Equal(t, "https://example.com/bundle.zip", artifact.BundleURL)
	assert.Equal(t, "https://owner.github.io/repo/", artifact.WebURL)
	assert.Equal(t, "https://github.com/o/r/actions/runs/1", artifact.RunURL)
}
