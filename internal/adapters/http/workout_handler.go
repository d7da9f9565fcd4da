package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/core/internal/application/services"
	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

// WorkoutHandler handles workout log requests.
type WorkoutHandler struct {
	workout *services.WorkoutService
	logger  *logger.Logger
}

// NewWorkoutHandler creates a new workout handler.
func NewWorkoutHandler(workout *services.WorkoutService, logger *logger.Logger) *WorkoutHandler {
	return &WorkoutHandler{workout: workout, logger: logger}
}

// WorkoutResponse wraps the session list.
type WorkoutResponse struct {
	Workouts []entities.WorkoutSession `json:"workouts"`
}

// GetWorkout handles GET /workouts/:username.
func (h *WorkoutHandler) GetWorkout(c echo.Context) error {
	sessions, err := h.workout.GetWorkout(c.Request().Context(), c.Param("username"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, WorkoutResponse{Workouts: sessions})
}

// ReplaceWorkout handles PUT /workouts/:username, the whole-list write.
func (h *WorkoutHandler) ReplaceWorkout(c echo.Context) error {
	username := c.Param("username")

	var req WorkoutResponse
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	sessions, err := h.workout.ReplaceWorkout(c.Request().Context(), username, req.Workouts)
	if err != nil {
		h.logger.Errorw("Replace workout failed", "error", err, "username", username)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, WorkoutResponse{Workouts: sessions})
}
