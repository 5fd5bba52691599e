package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shojbahmed330/oneclick-studio/ai"
	"github.com/shojbahmed330/oneclick-studio/db"
	"github.com/shojbahmed330/oneclick-studio/models"
)

var (
	// ErrGenerationInFlight is returned when a fresh turn is requested while one
	// is already running for the same project. Auto-continuation turns bypass
	// this gate since they are system-initiated.
	ErrGenerationInFlight = errors.New("a generation is already in progress for this project")

	// ErrStopped marks a user-initiated abort. It is a clean early termination,
	// not a failure.
	ErrStopped = errors.New("generation stopped by user")
)

// defaultAffirmatives are the replies accepted as plan approval while a session
// is waiting; Config.AffirmativeTokens can extend the set.
var defaultAffirmatives = []string{"yes", "y", "proceed"}

// EventSink receives the ordered progress events of one generation turn:
// "phase" (string), "answer" (string), "result" (TurnResult).
type EventSink func(event string, payload interface{})

// TurnResult is the final payload of a successful turn.
type TurnResult struct {
	Message            models.ChatMessage `json:"message"`
	Files              models.ProjectTree `json:"files,omitempty"`
	WaitingForApproval bool               `json:"waiting_for_approval"`
	Queue              []string           `json:"queue,omitempty"`
	Revision           int64              `json:"revision"`
}

// ExecutionState mirrors the plan machinery of one project session.
type ExecutionState struct {
	Generating         bool     `json:"generating"`
	CurrentPlan        []string `json:"current_plan,omitempty"`
	ExecutionQueue     []string `json:"execution_queue,omitempty"`
	WaitingForApproval bool     `json:"waiting_for_approval"`
}

// GenerationManager owns the generation loop: the one-turn-in-flight gate, the
// plan/approval state machine, file merging and persistence. One session per
// project, created lazily.
type GenerationManager struct {
	db           *db.DB
	ai           *ai.Service
	affirmatives []string

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu              sync.Mutex
	generating      bool
	cancel          context.CancelFunc
	plan            []string
	queue           []string
	waitingApproval bool
}

func NewGenerationManager(database *db.DB, aiService *ai.Service, extraAffirmatives []string) *GenerationManager {
	affirmatives := append([]string(nil), defaultAffirmatives...)
	for _, token := range extraAffirmatives {
		if token = strings.ToLower(strings.TrimSpace(token)); token != "" {
			affirmatives = append(affirmatives, token)
		}
	}
	return &GenerationManager{
		db:           database,
		ai:           aiService,
		affirmatives: affirmatives,
		sessions:     make(map[string]*session),
	}
}

func (m *GenerationManager) session(projectID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[projectID]
	if !ok {
		sess = &session{}
		m.sessions[projectID] = sess
	}
	return sess
}

func (m *GenerationManager) isAffirmative(reply string) bool {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	for _, token := range m.affirmatives {
		if normalized == token {
			return true
		}
	}
	return false
}

// State returns the current execution state of a project session.
func (m *GenerationManager) State(projectID string) ExecutionState {
	sess := m.session(projectID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return ExecutionState{
		Generating:         sess.generating,
		CurrentPlan:        append([]string(nil), sess.plan...),
		ExecutionQueue:     append([]string(nil), sess.queue...),
		WaitingForApproval: sess.waitingApproval,
	}
}

// Stop aborts the in-flight turn, if any. Fragments already queued before the
// abort are discarded by the transport; the partial assistant message is kept.
func (m *GenerationManager) Stop(projectID string) bool {
	sess := m.session(projectID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.cancel != nil {
		sess.cancel()
		return true
	}
	return false
}

// Generate runs one user turn end to end. While the session is waiting for
// approval, the reply is always interpreted against the pending plan first: an
// affirmative pops the next step and runs it as an auto-continuation; anything
// else abandons the plan and is then treated as a fresh prompt.
func (m *GenerationManager) Generate(ctx context.Context, userID, projectID string, req models.GenerateRequest, emit EventSink) error {
	project, err := m.db.GetProject(userID, projectID)
	if err != nil {
		return err
	}
	sess := m.session(projectID)

	sess.mu.Lock()
	if sess.waitingApproval && len(sess.queue) > 0 {
		if m.isAffirmative(req.Message) {
			nextStep := sess.queue[0]
			sess.queue = sess.queue[1:]
			sess.waitingApproval = false
			sess.mu.Unlock()

			m.appendUserMessage(project, "Yes, proceed.", nil)
			autoReq := req
			autoReq.Message = fmt.Sprintf("%s: %s. IMPLEMENT NOW.", ai.ExecutePhaseMarker, nextStep)
			autoReq.Image = nil
			return m.runTurn(ctx, project, sess, autoReq, true, emit)
		}
		// Plan abandoned; fall through and run the reply as a fresh prompt
		// instead of discarding the user's text.
		sess.plan = nil
		sess.queue = nil
		sess.waitingApproval = false
	}
	sess.mu.Unlock()

	return m.runTurn(ctx, project, sess, req, false, emit)
}

func (m *GenerationManager) runTurn(ctx context.Context, project *models.Project, sess *session, req models.GenerateRequest, isAuto bool, emit EventSink) error {
	sess.mu.Lock()
	if sess.generating && !isAuto {
		sess.mu.Unlock()
		return ErrGenerationInFlight
	}
	turnCtx, cancel := context.WithCancel(ctx)
	sess.generating = true
	sess.cancel = cancel
	queueBefore := append([]string(nil), sess.queue...)
	sess.mu.Unlock()

	defer func() {
		cancel()
		sess.mu.Lock()
		sess.generating = false
		sess.cancel = nil
		sess.mu.Unlock()
	}()

	model := req.Model
	if model == "" {
		model = project.Config.SelectedModel
	}

	if !isAuto {
		m.appendUserMessage(project, req.Message, req.Image)
	}

	assistant := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      "assistant",
		Timestamp: time.Now().UnixMilli(),
		Model:     model,
		Pending:   true,
	}
	project.Messages = append(project.Messages, assistant)
	assistantIdx := len(project.Messages) - 1

	decoder := ai.NewStreamDecoder()
	lastPhase := decoder.Phase()
	lastAnswer := ""
	emit("phase", lastPhase.String())

	aiReq := ai.Request{
		Prompt:    req.Message,
		Files:     project.Files,
		History:   historyForModel(project.Messages[:assistantIdx]),
		Image:     req.Image,
		Workspace: req.Workspace,
		Model:     model,
	}

	err := m.ai.GenerateStream(turnCtx, aiReq, func(fragment string) error {
		decoder.Write(fragment)
		if phase := decoder.Phase(); phase != lastPhase {
			lastPhase = phase
			emit("phase", phase.String())
		}
		// Update the visible message only when the extracted answer changed.
		if answer := decoder.Answer(); answer != lastAnswer {
			lastAnswer = answer
			project.Messages[assistantIdx].Content = answer
			emit("answer", answer)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Keep the partial message, marked not-yet-final.
			project.UpdatedAt = time.Now().Unix()
			if saveErr := m.db.SaveProject(project); saveErr != nil {
				return fmt.Errorf("failed to persist stopped turn: %w", saveErr)
			}
			return ErrStopped
		}
		return err
	}

	result, err := decoder.Final()
	if err != nil {
		// The partial streamed content already shown stays in place; the
		// malformed message is never persisted as final.
		return err
	}

	if len(result.Files) > 0 {
		project.Files = project.Files.Merge(result.Files)
		project.Revision++
	}

	sess.mu.Lock()
	if !isAuto {
		if len(result.Plan) > 1 {
			sess.plan = append([]string(nil), result.Plan...)
			sess.queue = append([]string(nil), result.Plan[1:]...)
		} else {
			sess.plan = nil
			sess.queue = nil
		}
	}
	hasMoreSteps := (isAuto && len(queueBefore) > 0) || (!isAuto && len(result.Plan) > 1)
	var nextStep string
	if hasMoreSteps {
		if isAuto {
			nextStep = queueBefore[0]
		} else {
			nextStep = result.Plan[1]
		}
		sess.waitingApproval = true
	} else {
		sess.waitingApproval = false
		if isAuto {
			sess.plan = nil
			sess.queue = nil
		}
	}
	planForMessage := result.Plan
	if isAuto {
		planForMessage = append([]string(nil), sess.plan...)
	}
	queueSnapshot := append([]string(nil), sess.queue...)
	sess.mu.Unlock()

	finalAnswer := result.Answer
	isApproval := false
	if hasMoreSteps {
		finalAnswer += fmt.Sprintf("\n\n**Next Step:** %s\nShall I proceed?", nextStep)
		isApproval = true
	}

	msg := &project.Messages[assistantIdx]
	msg.Content = finalAnswer
	msg.Plan = planForMessage
	msg.Questions = result.Questions
	msg.IsApproval = isApproval
	msg.Files = result.Files
	msg.Thought = result.Thought
	msg.Pending = false

	project.UpdatedAt = time.Now().Unix()
	if err := m.db.SaveProject(project); err != nil {
		return fmt.Errorf("failed to persist project: %w", err)
	}

	emit("result", TurnResult{
		Message:            *msg,
		Files:              result.Files,
		WaitingForApproval: isApproval,
		Queue:              queueSnapshot,
		Revision:           project.Revision,
	})
	return nil
}

func (m *GenerationManager) appendUserMessage(project *models.Project, content string, image *models.InlineImage) {
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      "user",
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
	if image != nil {
		msg.Image = fmt.Sprintf("data:%s;base64,%s", image.MimeType, image.Data)
	}
	project.Messages = append(project.Messages, msg)
}

// historyForModel flattens the transcript to role/content pairs, skipping
// messages that never finished streaming.
func historyForModel(messages []models.ChatMessage) []models.ChatMessage {
	history := make([]models.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.Pending || m.Content == "" {
			continue
		}
		history = append(history, models.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return history
}
