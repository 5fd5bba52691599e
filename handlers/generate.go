package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shojbahmed330/oneclick-studio/ai"
	"github.com/shojbahmed330/oneclick-studio/db"
	"github.com/shojbahmed330/oneclick-studio/models"
	"github.com/shojbahmed330/oneclick-studio/service"
	"github.com/shojbahmed330/oneclick-studio/validation"
)

// GenerateHandler runs one generation turn and streams its progress as
// server-sent events: "phase" and "answer" while tokens arrive, then a single
// "result", "stopped" or "error" event.
// @Summary      Run a generation turn
// @Description  Streams phase/answer events while the model responds, then one result event. While a plan is awaiting approval, the message is interpreted as the approval reply.
// @Tags         Generation
// @Accept       json
// @Produce      text/event-stream
// @Param        id       path  string                  true  "Project ID"
// @Param        request  body  models.GenerateRequest  true  "User directive"
// @Success      200  {string}  string  "SSE stream"
// @Failure      400  {object}  map[string]string  "Invalid request"
// @Failure      404  {object}  map[string]string  "Not found"
// @Failure      409  {object}  map[string]string  "A turn is already running"
// @Router       /api/projects/{id}/generate [post]
func (h *Handlers) GenerateHandler(c *gin.Context) {
	var req models.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	uid := userID(c)
	projectID := c.Param("id")
	state := h.gen.State(projectID)

	// Approval replies ("yes", "proceed", ...) are short on purpose; only
	// fresh prompts go through the gibberish filter.
	if !state.WaitingForApproval && !validation.IsValidPrompt(req.Message) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please describe what you want to build in a full sentence."})
		return
	}

	log.Printf("[GENERATE] User: %s, Project: %s, Workspace: %s", uid, projectID, req.Workspace)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	emit := func(event string, payload interface{}) {
		c.SSEvent(event, payload)
		c.Writer.Flush()
	}

	err := h.gen.Generate(c.Request.Context(), uid, projectID, req, emit)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, service.ErrStopped):
		emit("stopped", gin.H{"message": "AI Output Terminated."})
	case errors.Is(err, service.ErrGenerationInFlight):
		// Headers are already streaming at this point only if the turn started;
		// the gate rejects before any event, so a JSON error is still possible.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
	default:
		log.Printf("[GENERATE] Turn failed for project %s: %v", projectID, err)
		emit("error", gin.H{"error": err.Error(), "kind": errorKind(err)})
	}
}

func errorKind(err error) string {
	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		switch aiErr.Kind {
		case ai.KindConfig:
			return "config"
		case ai.KindTransport:
			return "transport"
		case ai.KindSchema:
			return "schema"
		}
	}
	return "internal"
}

// StopHandler aborts the in-flight generation turn
// @Summary      Stop the current generation
// @Tags         Generation
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  map[string]string
// @Router       /api/projects/{id}/stop [post]
func (h *Handlers) StopHandler(c *gin.Context) {
	if h.gen.Stop(c.Param("id")) {
		c.JSON(http.StatusOK, gin.H{"status": "stopped"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "idle"})
}

// StateHandler returns the plan/approval state of a project session
// @Summary      Get execution state
// @Tags         Generation
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  service.ExecutionState
// @Router       /api/projects/{id}/state [get]
func (h *Handlers) StateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.gen.State(c.Param("id")))
}
