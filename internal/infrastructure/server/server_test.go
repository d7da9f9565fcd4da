package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/familyhub/core/internal/infrastructure/logger"
)

func TestErrorPayloadShape(t *testing.T) {
	e := echo.New()
	handler := customErrorHandler(logger.NewNop())

	tests := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"mapped domain error", echo.NewHTTPError(http.StatusNotFound, "user not found"), http.StatusNotFound, "user not found"},
		{"unclassified error", errors.New("boom"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler(tt.err, c)

			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}

			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body["error"] != tt.want {
				t.Errorf(`body["error"] = %v, want %q`, body["error"], tt.want)
			}
			if _, ok := body["message"]; ok {
				t.Error("error payloads must use the error key, not message")
			}
		})
	}
}
