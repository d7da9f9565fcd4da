package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/core/internal/application/services"
	"github.com/familyhub/core/internal/infrastructure/logger"
)

// VerificationHandler handles email verification requests.
type VerificationHandler struct {
	verification *services.VerificationService
	logger       *logger.Logger
}

// NewVerificationHandler creates a new verification handler.
func NewVerificationHandler(verification *services.VerificationService, logger *logger.Logger) *VerificationHandler {
	return &VerificationHandler{verification: verification, logger: logger}
}

// SendVerificationRequest is the body of POST /auth/send-verification.
type SendVerificationRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username"`
}

// VerifyCodeRequest is the body of POST /auth/verify-code.
type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6"`
}

// Send issues and mails a verification code.
func (h *VerificationHandler) Send(c echo.Context) error {
	var req SendVerificationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.verification.Send(c.Request().Context(), req.Email, req.Username); err != nil {
		h.logger.Errorw("Send verification failed", "error", err, "email", req.Email)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Verification code sent"})
}

// Verify consumes a pending code and marks the account verified.
func (h *VerificationHandler) Verify(c echo.Context) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.verification.Verify(c.Request().Context(), req.Email, req.Code); err != nil {
		h.logger.Warnw("Verification failed", "email", req.Email, "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Email verified"})
}
