package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shojbahmed330/oneclick-studio/models"
)

const workflowPath = ".github/workflows/android.yml"

// GithubService pushes project trees to a GitHub repository and reads back CI
// run artifacts. Only the contents API and the actions runs/artifacts API are
// used; the workflow's internal steps live in the embedded YAML template.
type GithubService struct {
	apiBase      string
	pagesHost    string
	httpClient   *http.Client
	workflowYAML string
}

func NewGithubService(workflowYAML string) *GithubService {
	return &GithubService{
		apiBase:      "https://api.github.com",
		pagesHost:    "github.io",
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		workflowYAML: workflowYAML,
	}
}

func (g *GithubService) headers(req *http.Request, token string) {
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
}

func (g *GithubService) doJSON(ctx context.Context, method, url, token string, body interface{}, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	g.headers(req, token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach GitHub: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read GitHub response: %w", err)
	}
	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to unmarshal GitHub response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// CreateRepo ensures a repository exists for the token's user, with Pages
// enabled for the admin site. Returns the authenticated username.
func (g *GithubService) CreateRepo(ctx context.Context, token, repoName string) (string, error) {
	var user struct {
		Login string `json:"login"`
	}
	status, err := g.doJSON(ctx, "GET", g.apiBase+"/user", token, nil, &user)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("GitHub authentication failed (status %d)", status)
	}

	status, err = g.doJSON(ctx, "GET", fmt.Sprintf("%s/repos/%s/%s", g.apiBase, user.Login, repoName), token, nil, nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusOK {
		return user.Login, nil
	}

	createBody := map[string]interface{}{"name": repoName, "private": false, "auto_init": true}
	status, err = g.doJSON(ctx, "POST", g.apiBase+"/user/repos", token, createBody, nil)
	if err != nil {
		return "", err
	}
	if status >= 300 && status != http.StatusUnprocessableEntity {
		return "", fmt.Errorf("failed to create repository (status %d)", status)
	}

	// Give the repo metadata time to initialize, then enable Pages with retries.
	select {
	case <-time.After(3 * time.Second):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	pagesURL := fmt.Sprintf("%s/repos/%s/%s/pages", g.apiBase, user.Login, repoName)
	for i := 0; i < 3; i++ {
		status, err = g.doJSON(ctx, "POST", pagesURL, token, map[string]string{"build_type": "workflow"}, nil)
		if err == nil && status < 300 {
			break
		}
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return user.Login, nil
}

// Push uploads every project file plus the generated workflow definition, each
// with optimistic concurrency: fetch the current content hash, then put with
// that hash. The workflow file goes last so the CI run sees the full tree.
func (g *GithubService) Push(ctx context.Context, cfg models.GithubConfig, files models.ProjectTree, appConfig *models.ProjectConfig, message string) error {
	if cfg.Token == "" || cfg.Owner == "" || cfg.Repo == "" {
		return fmt.Errorf("GitHub repository is not configured")
	}
	if message == "" {
		message = "Sync"
	}

	allFiles := files.Merge(nil)
	allFiles["capacitor.config.json"] = capacitorConfig(appConfig)
	if appConfig != nil && appConfig.Icon != "" {
		allFiles["assets/icon-only.png"] = appConfig.Icon
	}
	if appConfig != nil && appConfig.KeystoreBase64 != "" {
		allFiles["android/app/release-key.jks"] = appConfig.KeystoreBase64
	}

	paths := make([]string, 0, len(allFiles))
	for path := range allFiles {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := g.putFile(ctx, cfg, path, encodeContent(path, allFiles[path]), fmt.Sprintf("%s [%s]", message, path)); err != nil {
			return err
		}
	}

	workflow := g.workflowYAML
	if appConfig != nil && appConfig.KeystoreBase64 != "" {
		workflow = strings.Replace(workflow, `SIGNING_STORE_PASSWORD: ""`, fmt.Sprintf("SIGNING_STORE_PASSWORD: %q", appConfig.KeystorePassword), 1)
		workflow = strings.Replace(workflow, `SIGNING_KEY_ALIAS: ""`, fmt.Sprintf("SIGNING_KEY_ALIAS: %q", appConfig.KeyAlias), 1)
		workflow = strings.Replace(workflow, `SIGNING_KEY_PASSWORD: ""`, fmt.Sprintf("SIGNING_KEY_PASSWORD: %q", appConfig.KeyPassword), 1)
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(workflow))
	return g.putFile(ctx, cfg, workflowPath, encoded, fmt.Sprintf("Trigger Build Engine [%s]", workflowPath))
}

func (g *GithubService) putFile(ctx context.Context, cfg models.GithubConfig, path, encodedContent, message string) error {
	contentURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.apiBase, cfg.Owner, cfg.Repo, path)

	var existing struct {
		SHA string `json:"sha"`
	}
	if _, err := g.doJSON(ctx, "GET", contentURL, cfg.Token, nil, &existing); err != nil {
		return err
	}

	putBody := map[string]interface{}{"message": message, "content": encodedContent}
	if existing.SHA != "" {
		putBody["sha"] = existing.SHA
	}
	status, err := g.doJSON(ctx, "PUT", contentURL, cfg.Token, putBody, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("failed to upload %s (status %d)", path, status)
	}
	return nil
}

// encodeContent prepares a file for the contents API: binary payloads (data
// URIs, assets, keystores) already carry base64, everything else is encoded.
func encodeContent(path, content string) string {
	isBinary := strings.HasPrefix(content, "data:") || strings.HasPrefix(path, "assets/") || strings.HasSuffix(path, ".jks")
	if isBinary {
		if idx := strings.Index(content, ","); idx >= 0 && strings.HasPrefix(content, "data:") {
			return content[idx+1:]
		}
		return content
	}
	return base64.StdEncoding.EncodeToString([]byte(content))
}

func capacitorConfig(appConfig *models.ProjectConfig) string {
	appID := "com.oneclick.studio"
	appName := "OneClickApp"
	if appConfig != nil {
		if appConfig.PackageName != "" {
			appID = sanitizeAppID(appConfig.PackageName)
		}
		if appConfig.AppName != "" {
			appName = appConfig.AppName
		}
	}
	data, _ := json.MarshalIndent(map[string]string{
		"appId":   appID,
		"appName": appName,
		"webDir":  "www",
	}, "", "  ")
	return string(data)
}

func sanitizeAppID(packageName string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(packageName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "com.oneclick.studio"
	}
	return sb.String()
}

// LatestArtifact returns the artifacts of the most recent workflow run, or nil
// while the run has not completed yet.
func (g *GithubService) LatestArtifact(ctx context.Context, cfg models.GithubConfig) (*models.BuildArtifact, error) {
	var runs struct {
		WorkflowRuns []struct {
			Status       string `json:"status"`
			HTMLURL      string `json:"html_url"`
			ArtifactsURL string `json:"artifacts_url"`
		} `json:"workflow_runs"`
	}
	runsURL := fmt.Sprintf("%s/repos/%s/%s/actions/runs?per_page=1", g.apiBase, cfg.Owner, cfg.Repo)
	status, err := g.doJSON(ctx, "GET", runsURL, cfg.Token, nil, &runs)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || len(runs.WorkflowRuns) == 0 {
		return nil, nil
	}
	run := runs.WorkflowRuns[0]
	if run.Status != "completed" {
		return nil, nil
	}

	var artifacts struct {
		Artifacts []struct {
			Name               string `json:"name"`
			ArchiveDownloadURL string `json:"archive_download_url"`
		} `json:"artifacts"`
	}
	if _, err := g.doJSON(ctx, "GET", run.ArtifactsURL, cfg.Token, nil, &artifacts); err != nil {
		return nil, err
	}

	result := &models.BuildArtifact{
		WebURL: fmt.Sprintf("https://%s.%s/%s/", cfg.Owner, g.pagesHost, cfg.Repo),
		RunURL: run.HTMLURL,
	}
	for _, artifact := range artifacts.Artifacts {
		switch artifact.Name {
		case "app-debug", "app-release":
			result.DownloadURL = artifact.ArchiveDownloadURL
		case "app-release-bundle":
			result.BundleURL = artifact.ArchiveDownloadURL
		}
	}
	if result.DownloadURL == "" {
		return nil, nil
	}
	return result, nil
}
