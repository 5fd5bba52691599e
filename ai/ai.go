package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shojbahmed330/oneclick-studio/models"
)

// ErrorKind classifies a generation failure. Every failed turn surfaces exactly
// one *Error; none are retried automatically.
type ErrorKind int

const (
	KindConfig ErrorKind = iota + 1
	KindTransport
	KindSchema
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func configError(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

func transportError(message string, err error) *Error {
	return &Error{Kind: KindTransport, Message: message, Err: err}
}

func schemaError(message string, err error) *Error {
	return &Error{Kind: KindSchema, Message: message, Err: err}
}

// cloudModelPrefix marks model names that always belong to the hosted backend,
// even when they contain a colon (e.g. "gemini-3-flash-preview:latest").
const cloudModelPrefix = "gemini"

// localModelHints are name fragments that route a model to the local backend.
// This is a heuristic, not a registry; Config.LocalModelHints can extend it.
var localModelHints = []string{"local", "ollama", "llama", "qwen", "coder"}

// IsLocalModel reports whether the model name should be served by the local
// Ollama backend rather than the hosted API.
func IsLocalModel(modelName string, extraHints ...string) bool {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return false
	}
	for _, hint := range localModelHints {
		if strings.Contains(name, hint) {
			return true
		}
	}
	for _, hint := range extraHints {
		if hint != "" && strings.Contains(name, strings.ToLower(hint)) {
			return true
		}
	}
	// Tagged names like "mistral:7b" are Ollama's convention.
	if strings.Contains(name, ":") && !strings.HasPrefix(name, cloudModelPrefix) {
		return true
	}
	return false
}

// Request carries everything one generation turn sends to a backend.
type Request struct {
	Prompt    string
	Files     models.ProjectTree
	History   []models.ChatMessage
	Image     *models.InlineImage
	Workspace string // "" or "all" means no filtering
	Model     string
}

type Service struct {
	apiKey          string
	defaultModel    string
	ollamaURL       string
	extraLocalHints []string
	httpClient      *http.Client
	streamClient    *http.Client // no overall timeout; streams are bounded by the request context
}

func New(apiKey, defaultModel, ollamaURL string, extraLocalHints []string) *Service {
	return &Service{
		apiKey:          apiKey,
		defaultModel:    defaultModel,
		ollamaURL:       strings.TrimSuffix(ollamaURL, "/"),
		extraLocalHints: extraLocalHints,
		httpClient:      &http.Client{Timeout: 120 * time.Second},
		streamClient:    &http.Client{},
	}
}

func (s *Service) resolveModel(modelName string) string {
	if modelName == "" {
		return s.defaultModel
	}
	return modelName
}

func (s *Service) isLocal(modelName string) bool {
	return IsLocalModel(modelName, s.extraLocalHints...)
}

// Generate performs a single-shot generation turn and parses the full result.
func (s *Service) Generate(ctx context.Context, req Request) (*models.GenerationResult, error) {
	model := s.resolveModel(req.Model)
	contextText := BuildContextPrompt(req.Prompt, req.Files, req.Workspace)

	var raw string
	var err error
	if s.isLocal(model) {
		raw, err = s.ollamaGenerate(ctx, model, contextText, req.History)
	} else {
		raw, err = s.geminiGenerate(ctx, model, contextText, req.Image)
	}
	if err != nil {
		return nil, err
	}
	return parseResult(raw)
}

// GenerateStream performs a streaming turn, invoking emit for every text
// fragment in arrival order. Returning a non-nil error from emit aborts the
// stream. Cancellation of ctx aborts the underlying transport.
func (s *Service) GenerateStream(ctx context.Context, req Request, emit func(fragment string) error) error {
	model := s.resolveModel(req.Model)
	contextText := BuildContextPrompt(req.Prompt, req.Files, req.Workspace)

	if s.isLocal(model) {
		return s.ollamaStream(ctx, model, contextText, req.History, emit)
	}
	return s.geminiStream(ctx, model, contextText, req.Image, emit)
}

// translateTransport keeps context cancellation distinct from real transport
// failures so callers can treat a user stop as a clean early termination.
func translateTransport(err error, message string) error {
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return transportError(message+": request timed out", err)
	}
	return transportError(message, err)
}
