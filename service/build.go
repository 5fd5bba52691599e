package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shojbahmed330/oneclick-studio/models"
)

// BuildRunner drives one remote build per project: push the tree, then poll
// the CI run on a fixed interval with a bounded attempt count. A new build
// request while one is active is a no-op returning the in-flight status.
type BuildRunner struct {
	github   *GithubService
	interval time.Duration
	attempts int

	mu       sync.Mutex
	statuses map[string]models.BuildStatus
	active   map[string]bool
}

func NewBuildRunner(github *GithubService, interval time.Duration, attempts int) *BuildRunner {
	return &BuildRunner{
		github:   github,
		interval: interval,
		attempts: attempts,
		statuses: make(map[string]models.BuildStatus),
		active:   make(map[string]bool),
	}
}

// Status returns the last known build status for the project.
func (b *BuildRunner) Status(projectID string) models.BuildStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status, ok := b.statuses[projectID]; ok {
		return status
	}
	return models.BuildStatus{Status: models.BuildIdle}
}

func (b *BuildRunner) setStatus(projectID string, status models.BuildStatus) {
	b.mu.Lock()
	b.statuses[projectID] = status
	b.mu.Unlock()
}

// Start pushes the project and begins polling in the background. Returns the
// status after the push has been scheduled.
func (b *BuildRunner) Start(projectID string, cfg models.GithubConfig, files models.ProjectTree, appConfig *models.ProjectConfig) models.BuildStatus {
	b.mu.Lock()
	if b.active[projectID] {
		status := b.statuses[projectID]
		b.mu.Unlock()
		return status
	}
	b.active[projectID] = true
	status := models.BuildStatus{Status: models.BuildPushing, Message: "Uploading project to GitHub..."}
	b.statuses[projectID] = status
	b.mu.Unlock()

	go b.run(projectID, cfg, files, appConfig)
	return status
}

func (b *BuildRunner) run(projectID string, cfg models.GithubConfig, files models.ProjectTree, appConfig *models.ProjectConfig) {
	defer func() {
		b.mu.Lock()
		delete(b.active, projectID)
		b.mu.Unlock()
	}()

	ctx := context.Background()

	if err := b.github.Push(ctx, cfg, files, appConfig, "Sync"); err != nil {
		log.Printf("[BUILD] Push failed for project %s: %v", projectID, err)
		b.setStatus(projectID, models.BuildStatus{Status: models.BuildFailed, Message: err.Error()})
		return
	}

	b.setStatus(projectID, models.BuildStatus{Status: models.BuildBuilding, Message: "Build engine running..."})

	for attempt := 1; attempt <= b.attempts; attempt++ {
		time.Sleep(b.interval)

		artifact, err := b.github.LatestArtifact(ctx, cfg)
		if err != nil {
			log.Printf("[BUILD] Poll attempt %d/%d failed for project %s: %v", attempt, b.attempts, projectID, err)
			continue
		}
		if artifact == nil {
			continue
		}

		b.setStatus(projectID, models.BuildStatus{
			Status:    models.BuildSuccess,
			Message:   "Build complete.",
			ApkURL:    artifact.DownloadURL,
			BundleURL: artifact.BundleURL,
			WebURL:    artifact.WebURL,
			RunURL:    artifact.RunURL,
		})
		return
	}

	// Distinct terminal state: the run may still finish remotely, but we stop
	// watching it.
	b.setStatus(projectID, models.BuildStatus{
		Status:  models.BuildFailed,
		Message: fmt.Sprintf("Build timed out after %d polling attempts.", b.attempts),
	})
}
