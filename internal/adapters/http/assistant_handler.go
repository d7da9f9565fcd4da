package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/core/internal/application/services"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/ports"
)

// AssistantHandler proxies chat prompts to the assistant gateway.
type AssistantHandler struct {
	assistant *services.AssistantService
	logger    *logger.Logger
}

// NewAssistantHandler creates a new assistant handler.
func NewAssistantHandler(assistant *services.AssistantService, logger *logger.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, logger: logger}
}

// AssistantResponse carries the generated reply.
type AssistantResponse struct {
	Reply string `json:"reply"`
}

// Generate handles POST /assistant.
func (h *AssistantHandler) Generate(c echo.Context) error {
	if !h.assistant.Enabled() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Assistant is not configured")
	}

	var req ports.AssistantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	reply, err := h.assistant.Generate(c.Request().Context(), req)
	if err != nil {
		h.logger.Warnw("Assistant request failed", "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, AssistantResponse{Reply: reply})
}
