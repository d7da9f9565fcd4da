package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/config"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/ports"
)

const assistantHistoryLimit = 10

// AssistantService is a stateless proxy to the generateContent text
// API. It holds no conversation state; the client sends the history it
// wants considered and the gateway forwards the tail of it.
type AssistantService struct {
	cfg    config.AssistantConfig
	client *http.Client
	logger *logger.Logger
}

// NewAssistantService creates a new assistant gateway.
func NewAssistantService(cfg config.AssistantConfig, logger *logger.Logger) *AssistantService {
	return &AssistantService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Enabled reports whether an upstream API key is configured.
func (s *AssistantService) Enabled() bool {
	return s.cfg.APIKey != ""
}

// generateContent wire types, matching the upstream JSON schema.

type assistantPart struct {
	Text string `json:"text"`
}

type assistantContent struct {
	Role  string          `json:"role,omitempty"`
	Parts []assistantPart `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *assistantContent  `json:"systemInstruction,omitempty"`
	Contents          []assistantContent `json:"contents"`
	GenerationConfig  *generationConfig  `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Candidates []struct {
		Content      assistantContent `json:"content"`
		FinishReason string           `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate forwards the message plus recent history upstream and
// returns the reply text.
func (s *AssistantService) Generate(ctx context.Context, req ports.AssistantRequest) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("%w: assistant is not configured", entities.ErrUpstreamUnavailable)
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", fmt.Errorf("%w: message is required", entities.ErrValidation)
	}

	payload := generateRequest{
		Contents: buildContents(req),
	}
	if req.System != "" {
		payload.SystemInstruction = &assistantContent{
			Parts: []assistantPart{{Text: req.System}},
		}
	}
	if req.Temperature != nil {
		payload.GenerationConfig = &generationConfig{
			Temperature: clampTemperature(*req.Temperature),
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode assistant request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", s.cfg.BaseURL, s.cfg.Model, s.cfg.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build assistant request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.logger.Warnw("Assistant upstream unreachable", "error", err)
		return "", fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrUpstreamUnavailable, err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: malformed upstream response", entities.ErrUpstreamUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		s.logger.Warnw("Assistant upstream error", "status", resp.StatusCode, "message", msg)
		return "", fmt.Errorf("%w: %s", entities.ErrUpstreamUnavailable, msg)
	}

	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", entities.ErrValidation, out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty upstream response", entities.ErrUpstreamUnavailable)
	}

	var reply strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		reply.WriteString(part.Text)
	}
	return reply.String(), nil
}

// buildContents folds the last turns of history plus the new message
// into the upstream contents list.
func buildContents(req ports.AssistantRequest) []assistantContent {
	history := req.History
	if len(history) > assistantHistoryLimit {
		history = history[len(history)-assistantHistoryLimit:]
	}

	contents := make([]assistantContent, 0, len(history)+1)
	for _, turn := range history {
		role := turn.Role
		if role != "model" {
			role = "user"
		}
		contents = append(contents, assistantContent{
			Role:  role,
			Parts: []assistantPart{{Text: turn.Text}},
		})
	}
	contents = append(contents, assistantContent{
		Role:  "user",
		Parts: []assistantPart{{Text: req.Message}},
	})
	return contents
}

func clampTemperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1.9 {
		return 1.9
	}
	return t
}
