package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/core/internal/application/services"
	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

// PlannerHandler handles planner requests.
type PlannerHandler struct {
	planner *services.PlannerService
	logger  *logger.Logger
}

// NewPlannerHandler creates a new planner handler.
func NewPlannerHandler(planner *services.PlannerService, logger *logger.Logger) *PlannerHandler {
	return &PlannerHandler{planner: planner, logger: logger}
}

// PlannerResponse wraps the entry list.
type PlannerResponse struct {
	Entries []entities.PlannerEntry `json:"entries"`
}

// GetPlanner handles GET /planners/:username.
func (h *PlannerHandler) GetPlanner(c echo.Context) error {
	entries, err := h.planner.GetPlanner(c.Request().Context(), c.Param("username"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, PlannerResponse{Entries: entries})
}

// ReplacePlanner handles PUT /planners/:username, the whole-list write.
func (h *PlannerHandler) ReplacePlanner(c echo.Context) error {
	username := c.Param("username")

	var req PlannerResponse
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	entries, err := h.planner.ReplacePlanner(c.Request().Context(), username, req.Entries)
	if err != nil {
		h.logger.Errorw("Replace planner failed", "error", err, "username", username)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, PlannerResponse{Entries: entries})
}

// GetSharedEntry resolves a share code to its owner and entry.
func (h *PlannerHandler) GetSharedEntry(c echo.Context) error {
	shared, err := h.planner.GetEntryByShareCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, shared)
}
