package models

import (
	"sort"
	"strings"
)

// ProjectTree maps a relative, forward-slash separated file path to its content.
// Binary assets are stored as data URIs or base64 strings. A path's first segment
// before "/" is its workspace; a path without "/" is a root-level file.
type ProjectTree map[string]string

// Merge returns a new tree with every key of delta overwriting the base tree and
// every other key untouched. It never removes a key. A nil or empty delta copies
// the base tree unchanged.
func (t ProjectTree) Merge(delta ProjectTree) ProjectTree {
	merged := make(ProjectTree, len(t)+len(delta))
	for path, content := range t {
		merged[path] = content
	}
	for path, content := range delta {
		merged[path] = content
	}
	return merged
}

// FilterWorkspace returns the files belonging to the given workspace plus all
// root-level files. An empty workspace or "all" returns the tree unfiltered.
func (t ProjectTree) FilterWorkspace(workspace string) ProjectTree {
	if workspace == "" || workspace == "all" {
		return t
	}
	filtered := make(ProjectTree)
	for path, content := range t {
		if !strings.Contains(path, "/") || strings.HasPrefix(path, workspace+"/") {
			filtered[path] = content
		}
	}
	return filtered
}

// Paths returns every file path in the tree, sorted.
func (t ProjectTree) Paths() []string {
	paths := make([]string, 0, len(t))
	for path := range t {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

type ChatMessage struct {
	ID         string      `json:"id"`
	Role       string      `json:"role"` // "user" or "assistant"
	Content    string      `json:"content"`
	Timestamp  int64       `json:"timestamp"`
	Image      string      `json:"image,omitempty"` // data URI preview of the attached image
	Plan       []string    `json:"plan,omitempty"`
	Questions  []string    `json:"questions,omitempty"`
	IsApproval bool        `json:"is_approval,omitempty"`
	Files      ProjectTree `json:"files,omitempty"`
	Thought    string      `json:"thought,omitempty"`
	Model      string      `json:"model,omitempty"`
	Pending    bool        `json:"pending,omitempty"` // true while the message is still streaming
}

// GenerationResult is the parsed JSON object the model returns for one turn.
// Files is a delta: absent paths are untouched, present paths are complete
// replacements of that file's content. It never implies deletion.
type GenerationResult struct {
	Thought   string      `json:"thought,omitempty"`
	Answer    string      `json:"answer"`
	Plan      []string    `json:"plan,omitempty"`
	Questions []string    `json:"questions,omitempty"`
	Files     ProjectTree `json:"files,omitempty"`
}

type InlineImage struct {
	Data     string `json:"data"` // base64, no data URI prefix
	MimeType string `json:"mime_type"`
}

type ProjectConfig struct {
	AppName          string `json:"app_name"`
	PackageName      string `json:"package_name"`
	SelectedModel    string `json:"selected_model"`
	Icon             string `json:"icon,omitempty"` // data URI
	DatabaseURL      string `json:"database_url,omitempty"`
	DatabaseKey      string `json:"database_key,omitempty"`
	KeystoreBase64   string `json:"keystore_base64,omitempty"`
	KeystorePassword string `json:"keystore_password,omitempty"`
	KeyAlias         string `json:"key_alias,omitempty"`
	KeyPassword      string `json:"key_password,omitempty"`
}

type Project struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Name      string        `json:"name"`
	Files     ProjectTree   `json:"files"`
	Config    ProjectConfig `json:"config"`
	Messages  []ChatMessage `json:"messages"`
	Revision  int64         `json:"revision"`
	CreatedAt int64         `json:"created_at"`
	UpdatedAt int64         `json:"updated_at"`
}

type GithubConfig struct {
	Token string `json:"token"`
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// Build status values.
const (
	BuildIdle     = "idle"
	BuildPushing  = "pushing"
	BuildBuilding = "building"
	BuildSuccess  = "success"
	BuildFailed   = "failed"
)

type BuildStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	ApkURL    string `json:"apk_url,omitempty"`
	BundleURL string `json:"bundle_url,omitempty"`
	WebURL    string `json:"web_url,omitempty"`
	RunURL    string `json:"run_url,omitempty"`
}

type BuildArtifact struct {
	DownloadURL string `json:"download_url"`
	BundleURL   string `json:"bundle_url,omitempty"`
	WebURL      string `json:"web_url"`
	RunURL      string `json:"run_url"`
}

// Request/response bodies for the HTTP API.

type CreateProjectRequest struct {
	Name   string         `json:"name" binding:"required"`
	Config *ProjectConfig `json:"config,omitempty"`
}

type GenerateRequest struct {
	Message   string       `json:"message" binding:"required"`
	Image     *InlineImage `json:"image,omitempty"`
	Workspace string       `json:"workspace,omitempty"` // "app", "admin" or "all"
	Model     string       `json:"model,omitempty"`
}

type AddFileRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

type RenameFileRequest struct {
	OldPath string `json:"old_path" binding:"required"`
	NewPath string `json:"new_path" binding:"required"`
}

type BuildRequest struct {
	Github GithubConfig `json:"github" binding:"required"`
}

type CreateRepoRequest struct {
	Token string `json:"token" binding:"required"`
	Repo  string `json:"repo" binding:"required"`
}
