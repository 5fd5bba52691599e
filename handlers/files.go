package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/oneclick-studio/db"
	"github.com/shojbahmed330/oneclick-studio/models"
	"github.com/shojbahmed330/oneclick-studio/validation"
)

func (h *Handlers) loadProject(c *gin.Context) (*models.Project, bool) {
	project, err := h.db.GetProject(userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return project, true
}

func (h *Handlers) saveProject(c *gin.Context, project *models.Project) {
	project.Revision++
	project.UpdatedAt = time.Now().Unix()
	if err := h.db.SaveProject(project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save project"})
		return
	}
	c.JSON(http.StatusOK, project)
}

// AddFileHandler adds or replaces a single file
// @Summary      Add a file
// @Tags         Files
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Project ID"
// @Param        request  body      models.AddFileRequest  true  "Path and content"
// @Success      200      {object}  models.Project
// @Failure      400      {object}  map[string]string  "Invalid path"
// @Router       /api/projects/{id}/files [post]
func (h *Handlers) AddFileHandler(c *gin.Context) {
	var req models.AddFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !validation.IsValidFilePath(req.Path) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file path"})
		return
	}

	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	if project.Files == nil {
		project.Files = models.ProjectTree{}
	}
	project.Files[req.Path] = req.Content
	h.saveProject(c, project)
}

// DeleteFileHandler removes a single file
// @Summary      Delete a file
// @Tags         Files
// @Produce      json
// @Param        id    path      string  true  "Project ID"
// @Param        path  path      string  true  "File path"
// @Success      200   {object}  models.Project
// @Failure      404   {object}  map[string]string  "Not found"
// @Router       /api/projects/{id}/files/{path} [delete]
func (h *Handlers) DeleteFileHandler(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")

	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	if _, exists := project.Files[path]; !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	delete(project.Files, path)
	h.saveProject(c, project)
}

// RenameFileHandler moves a file to a new path
// @Summary      Rename a file
// @Tags         Files
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Project ID"
// @Param        request  body      models.RenameFileRequest  true  "Old and new path"
// @Success      200      {object}  models.Project
// @Failure      400      {object}  map[string]string  "Invalid path"
// @Failure      404      {object}  map[string]string  "Not found"
// @Router       /api/projects/{id}/files/rename [put]
func (h *Handlers) RenameFileHandler(c *gin.Context) {
	var req models.RenameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !validation.IsValidFilePath(req.NewPath) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file path"})
		return
	}

	project, ok := h.loadProject(c)
	if !ok {
		return
	}
	content, exists := project.Files[req.OldPath]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	delete(project.Files, req.OldPath)
	project.Files[req.NewPath] = content
	h.saveProject(c, project)
}
