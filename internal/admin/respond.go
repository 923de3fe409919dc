package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/m3rciful/weatherbot/core/logger"
	"github.com/m3rciful/weatherbot/internal/subscriber"
)

type messageBody struct {
	Message string `json:"message"`
}

type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Details    any    `json:"details,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn(ctx, component, "response.encode_failed", slog.String("err", err.Error()))
	}
}

func writeMessage(ctx context.Context, w http.ResponseWriter, message string) {
	writeJSON(ctx, w, http.StatusOK, messageBody{Message: message})
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeJSON(ctx, w, status, errorBody{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, err error) {
	var details any = err.Error()
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]map[string]string, 0, len(verrs))
		for _, e := range verrs {
			fields = append(fields, map[string]string{"field": e.Field(), "rule": e.Tag()})
		}
		details = fields
	}
	writeJSON(ctx, w, http.StatusBadRequest, errorBody{
		StatusCode: http.StatusBadRequest,
		Message:    "validation error",
		Error:      http.StatusText(http.StatusBadRequest),
		Details:    details,
	})
}

// writeServiceError maps repository errors; anything unknown is a logged 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, subscriber.ErrNotFound) {
		writeError(ctx, w, http.StatusNotFound, msgUserNotFound)
		return
	}
	logger.Error(ctx, component, "request.internal_error", slog.String("err", err.Error()))
	writeError(ctx, w, http.StatusInternalServerError, "internal error")
}
