package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler returns the service health status
// @Summary      Health check
// @Description  Returns OK if the service is running
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "oneclick-studio",
	})
}
