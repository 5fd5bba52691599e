package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shojbahmed330/oneclick-studio/db"
	"github.com/shojbahmed330/oneclick-studio/models"
)

// CreateProjectHandler creates a new empty project
// @Summary      Create a project
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        request  body      models.CreateProjectRequest  true  "Project name and optional config"
// @Success      201      {object}  models.Project
// @Failure      400      {object}  map[string]string  "Invalid request"
// @Router       /api/projects [post]
func (h *Handlers) CreateProjectHandler(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	now := time.Now().Unix()
	project := &models.Project{
		ID:     uuid.NewString(),
		UserID: userID(c),
		Name:   req.Name,
		Files:  models.ProjectTree{},
		Config: models.ProjectConfig{
			AppName:       "OneClickApp",
			PackageName:   "com.oneclick.studio",
			SelectedModel: "gemini-3-flash-preview",
		},
		Messages:  []models.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Config != nil {
		project.Config = *req.Config
	}

	if err := h.db.SaveProject(project); err != nil {
		log.Printf("[PROJECTS] Failed to create project: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}
	c.JSON(http.StatusCreated, project)
}

// ListProjectsHandler lists the user's projects, newest first
// @Summary      List projects
// @Tags         Projects
// @Produce      json
// @Success      200  {array}  models.Project
// @Router       /api/projects [get]
func (h *Handlers) ListProjectsHandler(c *gin.Context) {
	projects, err := h.db.ListProjects(userID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	c.JSON(http.StatusOK, projects)
}

// GetProjectHandler returns one project record
// @Summary      Get a project
// @Tags         Projects
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  models.Project
// @Failure      404  {object}  map[string]string  "Not found"
// @Router       /api/projects/{id} [get]
func (h *Handlers) GetProjectHandler(c *gin.Context) {
	project, err := h.db.GetProject(userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProjectHandler deletes a project record
// @Summary      Delete a project
// @Tags         Projects
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string  "Not found"
// @Router       /api/projects/{id} [delete]
func (h *Handlers) DeleteProjectHandler(c *gin.Context) {
	if err := h.db.DeleteProject(userID(c), c.Param("id")); err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// UpdateProjectConfigHandler replaces the project config
// @Summary      Update project config
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Project ID"
// @Param        request  body      models.ProjectConfig  true  "New config"
// @Success      200      {object}  models.Project
// @Failure      404      {object}  map[string]string  "Not found"
// @Router       /api/projects/{id}/config [put]
func (h *Handlers) UpdateProjectConfigHandler(c *gin.Context) {
	var cfg models.ProjectConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	project, err := h.db.GetProject(userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	project.Config = cfg
	project.Revision++
	project.UpdatedAt = time.Now().Unix()
	if err := h.db.SaveProject(project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save project"})
		return
	}
	c.JSON(http.StatusOK, project)
}
