package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/oneclick-studio/models"
)

// BuildHandler pushes the project to GitHub and starts the CI poller
// @Summary      Trigger a remote build
// @Description  Uploads the project tree plus the generated workflow to the repository and polls the CI run until it completes or the attempt bound is hit. A build already in progress is returned as-is.
// @Tags         Build
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Project ID"
// @Param        request  body      models.BuildRequest  true  "GitHub repository config"
// @Success      202      {object}  models.BuildStatus
// @Failure      400      {object}  map[string]string  "Missing repo config"
// @Failure      404      {object}  map[string]string  "Not found"
// @Router       /api/projects/{id}/build [post]
func (h *Handlers) BuildHandler(c *gin.Context) {
	var req models.BuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Github.Token == "" || req.Github.Owner == "" || req.Github.Repo == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "GitHub repository is not configured"})
		return
	}

	project, ok := h.loadProject(c)
	if !ok {
		return
	}

	log.Printf("[BUILD] Starting build for project %s -> %s/%s", project.ID, req.Github.Owner, req.Github.Repo)
	status := h.builds.Start(project.ID, req.Github, project.Files, &project.Config)
	c.JSON(http.StatusAccepted, status)
}

// BuildStatusHandler returns the last known build status
// @Summary      Get build status
// @Tags         Build
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  models.BuildStatus
// @Router       /api/projects/{id}/build/status [get]
func (h *Handlers) BuildStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.builds.Status(c.Param("id")))
}

// CreateRepoHandler ensures the target repository exists with Pages enabled
// @Summary      Create the build repository
// @Tags         Build
// @Accept       json
// @Produce      json
// @Param        request  body      models.CreateRepoRequest  true  "Token and repo name"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  map[string]string  "Invalid request"
// @Failure      502      {object}  map[string]string  "GitHub error"
// @Router       /api/github/repo [post]
func (h *Handlers) CreateRepoHandler(c *gin.Context) {
	var req models.CreateRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	owner, err := h.github.CreateRepo(c.Request.Context(), req.Token, req.Repo)
	if err != nil {
		log.Printf("[BUILD] Repo creation failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner": owner, "repo": req.Repo})
}
