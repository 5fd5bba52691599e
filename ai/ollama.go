package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shojbahmed330/oneclick-studio/models"
)

// ollamaHint is appended to transport errors from the local backend; the usual
// causes are the daemon not running or OLLAMA_ORIGINS rejecting the dashboard.
const ollamaHint = "make sure Ollama is running and allows cross-origin requests (OLLAMA_ORIGINS=*)"

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func buildOllamaMessages(contextText string, history []models.ChatMessage) []ollamaMessage {
	messages := make([]ollamaMessage, 0, len(history)+2)
	messages = append(messages, ollamaMessage{Role: "system", Content: SystemPrompt})
	for _, m := range history {
		messages = append(messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: contextText})
	return messages
}

func (s *Service) ollamaRequest(ctx context.Context, model, contextText string, history []models.ChatMessage, stream bool) (*http.Request, error) {
	reqBody := ollamaChatRequest{
		Model:    model,
		Messages: buildOllamaMessages(contextText, history),
		Stream:   stream,
		Format:   "json",
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", s.ollamaURL+"/api/chat", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (s *Service) ollamaGenerate(ctx context.Context, model, contextText string, history []models.ChatMessage) (string, error) {
	req, err := s.ollamaRequest(ctx, model, contextText, history, false)
	if err != nil {
		return "", transportError("failed to create request", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", translateTransport(err, "Ollama connection failed; "+ollamaHint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", translateTransport(err, "failed to read Ollama response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", transportError(fmt.Sprintf("Ollama returned status %d; %s", resp.StatusCode, ollamaHint), nil)
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", schemaError("failed to unmarshal Ollama response", err)
	}
	if chatResp.Error != "" {
		return "", transportError("Ollama error: "+chatResp.Error, nil)
	}
	if chatResp.Message.Content == "" {
		return "", schemaError("AI returned empty response", nil)
	}
	return chatResp.Message.Content, nil
}

// ollamaStream reads the line-delimited JSON chat stream, emitting each content
// fragment in arrival order.
func (s *Service) ollamaStream(ctx context.Context, model, contextText string, history []models.ChatMessage, emit func(string) error) error {
	req, err := s.ollamaRequest(ctx, model, contextText, history, true)
	if err != nil {
		return transportError("failed to create request", err)
	}

	resp, err := s.streamClient.Do(req)
	if err != nil {
		return translateTransport(err, "Ollama connection failed; "+ollamaHint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return transportError(fmt.Sprintf("Ollama returned status %d; %s", resp.StatusCode, ollamaHint), nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return transportError("Ollama error: "+chunk.Error, nil)
		}
		if chunk.Message.Content != "" {
			if err := emit(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return translateTransport(err, "Ollama stream interrupted")
	}
	return nil
}
