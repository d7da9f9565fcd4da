package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/core/internal/application/services"
	"github.com/familyhub/core/internal/domain/entities"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

// FamilyHandler handles family registry requests.
type FamilyHandler struct {
	families *services.FamilyService
	logger   *logger.Logger
}

// NewFamilyHandler creates a new family handler.
func NewFamilyHandler(families *services.FamilyService, logger *logger.Logger) *FamilyHandler {
	return &FamilyHandler{families: families, logger: logger}
}

// CreateFamilyRequest is the body of POST /families.
type CreateFamilyRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=80"`
	Owner string `json:"owner" validate:"required"`
}

// PatchFamilyRequest is the body of PATCH /families/:id. Action picks
// the targeted mutation; the other fields feed whichever action runs.
type PatchFamilyRequest struct {
	Action   string            `json:"action" validate:"required,oneof=join regenerate updateMemberRole"`
	Username string            `json:"username"`
	Role     entities.UserRole `json:"role"`
	Code     string            `json:"code"`
}

// FamilyUserResponse pairs the mutated family with the directory
// record the mutation touched.
type FamilyUserResponse struct {
	Family *entities.Family `json:"family"`
	User   *entities.User   `json:"user,omitempty"`
}

// CreateFamily handles POST /families.
func (h *FamilyHandler) CreateFamily(c echo.Context) error {
	var req CreateFamilyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	family, err := h.families.CreateFamily(c.Request().Context(), req.Name, req.Owner)
	if err != nil {
		h.logger.Errorw("Create family failed", "error", err, "owner", req.Owner)
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, family)
}

// GetFamily resolves the path parameter first as a family id, then as
// an invite code.
func (h *FamilyHandler) GetFamily(c echo.Context) error {
	key := c.Param("id")

	family, err := h.families.GetByID(c.Request().Context(), key)
	if errors.Is(err, entities.ErrFamilyNotFound) {
		family, err = h.families.GetByCode(c.Request().Context(), key)
	}
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, family)
}

// ListFamilies returns every family, filtered to one member when the
// member query parameter is set, or a single family when the code
// query parameter is set.
func (h *FamilyHandler) ListFamilies(c echo.Context) error {
	if code := c.QueryParam("code"); code != "" {
		family, err := h.families.GetByCode(c.Request().Context(), code)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, family)
	}

	families, err := h.families.ListFamilies(c.Request().Context(), c.QueryParam("member"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, families)
}

// ReplaceFamily handles PUT /families/:id, the whole-document write.
func (h *FamilyHandler) ReplaceFamily(c echo.Context) error {
	var family entities.Family
	if err := c.Bind(&family); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	family.ID = c.Param("id")

	replaced, err := h.families.ReplaceFamily(c.Request().Context(), &family)
	if err != nil {
		h.logger.Errorw("Replace family failed", "error", err, "family_id", family.ID)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, replaced)
}

// PatchFamily handles the targeted mutations: join, regenerate and
// updateMemberRole.
func (h *FamilyHandler) PatchFamily(c echo.Context) error {
	var req PatchFamilyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	familyID := c.Param("id")

	switch req.Action {
	case "join":
		if req.Username == "" || req.Code == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "username and code are required to join")
		}
		family, user, err := h.families.JoinByCode(ctx, req.Username, req.Role, req.Code)
		if err != nil {
			h.logger.Warnw("Join failed", "error", err, "username", req.Username)
			return httpError(err)
		}
		return c.JSON(http.StatusOK, FamilyUserResponse{Family: family, User: user})

	case "regenerate":
		family, err := h.families.RegenerateCode(ctx, familyID)
		if err != nil {
			h.logger.Errorw("Code regeneration failed", "error", err, "family_id", familyID)
			return httpError(err)
		}
		return c.JSON(http.StatusOK, FamilyUserResponse{Family: family})

	case "updateMemberRole":
		if req.Username == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "username is required")
		}
		family, user, err := h.families.UpdateMemberRole(ctx, familyID, req.Username, req.Role)
		if err != nil {
			h.logger.Warnw("Role update failed", "error", err, "username", req.Username)
			return httpError(err)
		}
		return c.JSON(http.StatusOK, FamilyUserResponse{Family: family, User: user})

	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown action")
	}
}
