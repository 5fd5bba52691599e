package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/oneclick-studio/db"
	"github.com/shojbahmed330/oneclick-studio/service"
)

// PreviewHandler returns the synthesized self-contained preview document for a
// workspace. The result is cached per project revision.
// @Summary      Get the live preview document
// @Tags         Preview
// @Produce      html
// @Param        id         path   string  true   "Project ID"
// @Param        workspace  query  string  false  "Workspace (app, admin or all)"  default(app)
// @Param        entry      query  string  false  "Entry document path"
// @Success      200  {string}  string  "Self-contained HTML document"
// @Failure      404  {object}  map[string]string  "Not found"
// @Router       /api/projects/{id}/preview [get]
func (h *Handlers) PreviewHandler(c *gin.Context) {
	project, err := h.db.GetProject(userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, db.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	workspace := c.DefaultQuery("workspace", "app")
	entry := c.Query("entry")

	cacheKey := fmt.Sprintf("preview:%s:%s:%s:%d", project.ID, workspace, entry, project.Revision)
	if cached, found := h.cache.Get(cacheKey); found {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(cached.(string)))
		return
	}

	html := service.BuildPreviewHTML(project.Files.FilterWorkspace(workspace), entry, &project.Config)
	h.cache.SetDefault(cacheKey, html)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
