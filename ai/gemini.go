package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shojbahmed330/oneclick-studio/models"
)

const geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta/models"

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// resolveGeminiModel maps loose model names onto the two served variants.
func resolveGeminiModel(modelName string) string {
	if strings.Contains(modelName, "pro") {
		return "gemini-3-pro-preview"
	}
	return "gemini-3-flash-preview"
}

func (s *Service) buildGeminiRequest(contextText string, image *models.InlineImage) ([]byte, error) {
	parts := []geminiPart{{Text: contextText}}
	if image != nil {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: image.MimeType,
			Data:     image.Data,
		}})
	}

	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: SystemPrompt}}},
		Contents:          []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenConfig{
			Temperature:      0.1,
			ResponseMimeType: "application/json",
		},
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

func (s *Service) geminiGenerate(ctx context.Context, modelName, contextText string, image *models.InlineImage) (string, error) {
	if s.apiKey == "" {
		return "", configError("GEMINI_API_KEY is not configured")
	}

	jsonData, err := s.buildGeminiRequest(contextText, image)
	if err != nil {
		return "", schemaError("failed to build generation request", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiAPIBase, resolveGeminiModel(modelName), s.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", transportError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", translateTransport(err, "failed to reach the generation API")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", translateTransport(err, "failed to read generation response")
	}

	if resp.StatusCode != http.StatusOK {
		var errResp geminiResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
			return "", transportError(fmt.Sprintf("generation API error (status %d): %s", resp.StatusCode, errResp.Error.Message), nil)
		}
		return "", transportError(fmt.Sprintf("generation API returned status %d", resp.StatusCode), nil)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", schemaError("failed to unmarshal generation response", err)
	}
	text := geminiText(&geminiResp)
	if text == "" {
		return "", schemaError("AI returned empty response", nil)
	}
	return text, nil
}

func (s *Service) geminiStream(ctx context.Context, modelName, contextText string, image *models.InlineImage, emit func(string) error) error {
	if s.apiKey == "" {
		return configError("GEMINI_API_KEY is not configured")
	}

	jsonData, err := s.buildGeminiRequest(contextText, image)
	if err != nil {
		return schemaError("failed to build generation request", err)
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse&key=%s", geminiAPIBase, resolveGeminiModel(modelName), s.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return transportError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.streamClient.Do(req)
	if err != nil {
		return translateTransport(err, "failed to reach the generation API")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errResp geminiResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != nil {
			return transportError(fmt.Sprintf("generation API error (status %d): %s", resp.StatusCode, errResp.Error.Message), nil)
		}
		return transportError(fmt.Sprintf("generation API returned status %d", resp.StatusCode), nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var chunk geminiResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Skip malformed keep-alive chunks; the final accumulator parse
			// decides whether the turn succeeded.
			continue
		}
		if text := geminiText(&chunk); text != "" {
			if err := emit(text); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return translateTransport(err, "generation stream interrupted")
	}
	return nil
}

func geminiText(resp *geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}
