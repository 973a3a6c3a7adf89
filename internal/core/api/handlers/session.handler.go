package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/enjoys-in/airsend-calc/internal/core/api/services"
	"github.com/enjoys-in/airsend-calc/internal/interfaces"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

var logHandlers = logrus.WithField("pkg", "core/api/handlers")

type SessionHandler struct {
	service interfaces.SessionService
}

func NewSessionHandler(service interfaces.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// ListSessions handles GET /api/sessions. ?attached=true keeps only
// sessions with connected clients.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	filter := interfaces.ListFilter{}
	if v := r.URL.Query().Get("attached"); v != "" {
		attached, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", "attached must be a boolean")
			return
		}
		filter.OnlyAttached = attached
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": h.service.List(r.Context(), filter),
	})
}

// GetSession handles GET /api/sessions/{id}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// DeleteSession handles DELETE /api/sessions/{id}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	logHandlers.WithField("session", id).Info("Session deleted through admin API")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

// Stats handles GET /api/stats.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Stats(r.Context()))
}

func sessionID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "session id must be an integer")
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrSessionInUse):
		writeError(w, http.StatusConflict, "session_in_use", err.Error())
	default:
		logHandlers.WithError(err).Error("Admin request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logHandlers.WithError(err).Warn("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
