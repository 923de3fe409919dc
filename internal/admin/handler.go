// Package admin serves the HTTP admin API: subscriber management, credential
// rotation, health and Prometheus metrics.
package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/m3rciful/weatherbot/internal/credential"
	"github.com/m3rciful/weatherbot/internal/subscriber"
	"github.com/m3rciful/weatherbot/internal/subscription"
)

const component = "admin.http"

const (
	msgUserNotFound  = "User not found"
	msgUserDeleted   = "User deleted successfully"
	msgUserBlocked   = "User Blocked successfully"
	msgUserUnblocked = "User UnBlocked successfully"
)

// Handler serves subscriber and credential routes.
type Handler struct {
	svc       *subscription.Service
	creds     *credential.Cell
	validator *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(svc *subscription.Service, creds *credential.Cell) *Handler {
	return &Handler{svc: svc, creds: creds, validator: validator.New()}
}

// RegisterRoutes mounts the admin routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Delete("/{chatId}", h.DeleteUser)
		r.Patch("/block/{chatId}", h.BlockUser)
		r.Patch("/unblock/{chatId}", h.UnblockUser)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Get("/api-key", h.GetAPIKey)
		r.Put("/api-key", h.SetAPIKey)
	})
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	if list == nil {
		list = []subscriber.Subscriber{}
	}
	writeJSON(r.Context(), w, http.StatusOK, list)
}

// DeleteUser handles DELETE /users/{chatId}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Remove(r.Context(), chatID); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeMessage(r.Context(), w, msgUserDeleted)
}

// BlockUser handles PATCH /users/block/{chatId}.
func (h *Handler) BlockUser(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Block(r.Context(), chatID); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeMessage(r.Context(), w, msgUserBlocked)
}

// UnblockUser handles PATCH /users/unblock/{chatId}.
func (h *Handler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	chatID, ok := chatIDParam(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Unblock(r.Context(), chatID); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeMessage(r.Context(), w, msgUserUnblocked)
}

type apiKeyResponse struct {
	APIKey string `json:"apiKey"`
}

// APIKeyRequest is the PUT /admin/api-key body.
type APIKeyRequest struct {
	Key string `json:"key" validate:"required,printascii,max=256"`
}

// GetAPIKey handles GET /admin/api-key. The key is masked.
func (h *Handler) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, apiKeyResponse{APIKey: h.creds.Masked()})
}

// SetAPIKey handles PUT /admin/api-key.
func (h *Handler) SetAPIKey(w http.ResponseWriter, r *http.Request) {
	var req APIKeyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		writeValidationError(r.Context(), w, err)
		return
	}
	writeMessage(r.Context(), w, h.creds.Set(req.Key))
}

func chatIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatId"), 10, 64)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "chatId must be an integer")
		return 0, false
	}
	return id, true
}
