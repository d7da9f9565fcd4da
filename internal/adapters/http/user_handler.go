package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/core/internal/application/services"
	"github.com/familyhub/core/internal/infrastructure/logger"
	"github.com/familyhub/core/internal/ports"
)

// UserHandler handles directory requests.
type UserHandler struct {
	directory *services.DirectoryService
	logger    *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(directory *services.DirectoryService, logger *logger.Logger) *UserHandler {
	return &UserHandler{directory: directory, logger: logger}
}

// CreateUser handles signup.
func (h *UserHandler) CreateUser(c echo.Context) error {
	var req ports.CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.directory.CreateUser(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Create user failed", "error", err, "username", req.Username)
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, user)
}

// GetUser looks up an account by username.
func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.directory.FindByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return httpError(err)
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, user)
}

// ListUsers returns every account, or a single account when the
// username or email query parameter is set.
func (h *UserHandler) ListUsers(c echo.Context) error {
	if username := c.QueryParam("username"); username != "" {
		user, err := h.directory.FindByUsername(c.Request().Context(), username)
		if err != nil {
			return httpError(err)
		}
		if user == nil {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return c.JSON(http.StatusOK, user)
	}
	if email := c.QueryParam("email"); email != "" {
		user, err := h.directory.FindByEmail(c.Request().Context(), email)
		if err != nil {
			return httpError(err)
		}
		if user == nil {
			return echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return c.JSON(http.StatusOK, user)
	}

	users, err := h.directory.ListUsers(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, users)
}

// UpdateUser applies a partial update. Only fields on the allow-list
// are read from the body; anything else is silently dropped.
func (h *UserHandler) UpdateUser(c echo.Context) error {
	username := c.Param("username")

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&fields); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	update, err := buildUserUpdate(fields)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.directory.UpdateUser(c.Request().Context(), username, update)
	if err != nil {
		h.logger.Errorw("Update user failed", "error", err, "username", username)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, user)
}

// Login handles credential checks.
func (h *UserHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	response, err := h.directory.Login(c.Request().Context(), req)
	if err != nil {
		h.logger.Warnw("Login failed", "username", req.Username, "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, response)
}

// buildUserUpdate picks the allow-listed fields out of a raw JSON
// object. Unknown keys are ignored, never written; an explicit null
// familyId clears the membership pointer.
func buildUserUpdate(fields map[string]json.RawMessage) (ports.UserUpdate, error) {
	var update ports.UserUpdate

	for key, raw := range fields {
		switch key {
		case "familyId":
			update.SetFamilyID = true
			if string(raw) != "null" {
				var id string
				if err := json.Unmarshal(raw, &id); err != nil {
					return update, err
				}
				update.FamilyID = &id
			}
		case "role":
			update.SetRole = true
			if err := json.Unmarshal(raw, &update.Role); err != nil {
				return update, err
			}
		case "lastLogin":
			update.SetLastLogin = true
			if string(raw) != "null" {
				var t time.Time
				if err := json.Unmarshal(raw, &t); err != nil {
					return update, err
				}
				update.LastLogin = &t
			}
		case "email":
			update.SetEmail = true
			if err := json.Unmarshal(raw, &update.Email); err != nil {
				return update, err
			}
		case "password":
			update.SetPassword = true
			if err := json.Unmarshal(raw, &update.PasswordHash); err != nil {
				return update, err
			}
		case "verified":
			update.SetVerified = true
			if err := json.Unmarshal(raw, &update.Verified); err != nil {
				return update, err
			}
		case "lastDeviceId":
			update.SetDeviceID = true
			if err := json.Unmarshal(raw, &update.DeviceID); err != nil {
				return update, err
			}
		case "lastDeviceLabel":
			update.SetDeviceLabel = true
			if err := json.Unmarshal(raw, &update.DeviceLabel); err != nil {
				return update, err
			}
		}
	}

	return update, nil
}
