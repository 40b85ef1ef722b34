package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HTTPHandler обрабатывает HTTP запросы для управления сессиями (Presentation Layer)
type HTTPHandler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHTTPHandler создает новый HTTP обработчик
func NewHTTPHandler(manager *Manager, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		manager: manager,
		logger:  logger,
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/sessions").Subrouter()

	api.HandleFunc("", h.CreateSession).Methods("POST")
	api.HandleFunc("", h.ListSessions).Methods("GET")
	api.HandleFunc("/{id}", h.GetSession).Methods("GET")
	api.HandleFunc("/{id}/stop", h.StopSession).Methods("POST")
	api.HandleFunc("/{id}", h.DeleteSession).Methods("DELETE")
	api.HandleFunc("/{id}/snapshot", h.GetSnapshot).Methods("GET")
	api.HandleFunc("/{id}/notifications", h.GetNotifications).Methods("GET")
	api.HandleFunc("/{id}/summary", h.GetSummary).Methods("GET")
	api.HandleFunc("/{id}/events", h.GetEvents).Methods("GET")
}

// CreateSession создает новую сессию
// @Summary Создать сессию мониторинга
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body CreateSessionRequest true "Метаданные сессии"
// @Success 201 {object} SessionResponse
// @Failure 400 {object} map[string]interface{}
// @Router /api/sessions [post]
func (h *HTTPHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CreatedFrom == "" {
		req.CreatedFrom = "web"
	}

	session, err := h.manager.CreateSession(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, SessionResponse{Session: session})
}

// ListSessions возвращает список сессий
// @Summary Список сессий
// @Tags Sessions
// @Produce json
// @Param limit query int false "Лимит" default(50)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/sessions [get]
func (h *HTTPHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := getQueryInt(r, "limit", 50)
	offset := getQueryInt(r, "offset", 0)

	sessions, err := h.manager.ListSessions(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
		"count":    len(sessions),
	})
}

// GetSession получает информацию о сессии вместе с последним снимком
// @Summary Сессия и ее последний снимок
// @Tags Sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} map[string]interface{}
// @Router /api/sessions/{id} [get]
func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.manager.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	// Снимка может не быть до первого тика
	snap, _ := h.manager.Snapshot(r.Context(), sessionID)

	respondJSON(w, http.StatusOK, SessionResponse{
		Session:  session,
		Snapshot: snap,
	})
}

// StopSession завершает поток сессии и возвращает итоги
// @Summary Остановить сессию
// @Tags Sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} pipeline.Summary
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/sessions/{id}/stop [post]
func (h *HTTPHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	summary, err := h.manager.StopSession(r.Context(), sessionID)
	if err != nil {
		h.respondSessionError(w, sessionID, "stop session", err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// DeleteSession удаляет сессию
// @Summary Удалить сессию
// @Tags Sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} map[string]interface{}
// @Router /api/sessions/{id} [delete]
func (h *HTTPHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := h.manager.DeleteSession(r.Context(), sessionID); err != nil {
		h.logger.Error("failed to delete session", zap.String("session_id", sessionID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Session deleted successfully",
		"session_id": sessionID,
	})
}

// GetSnapshot последний снимок сессии
// @Summary Последний снимок
// @Tags Sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} pipeline.Snapshot
// @Failure 404 {object} map[string]interface{}
// @Router /api/sessions/{id}/snapshot [get]
func (h *HTTPHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	snap, err := h.manager.Snapshot(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Snapshot not found")
		return
	}

	respondJSON(w, http.StatusOK, snap)
}

// GetNotifications журнал уведомлений начиная с секунды since
// @Summary Уведомления сессии
// @Tags Sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Param since query int false "Секунда сессии, с которой выдавать" default(0)
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/sessions/{id}/notifications [get]
func (h *HTTPHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	since := getQueryInt(r, "since", 0)

	list, err := h.manager.Notifications(r.Context(), sessionID, since)
	if err != nil {
		h.respondSessionError(w, sessionID, "get notifications", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":    sessionID,
		"since":         since,
		"notifications": list,
		"count":         len(list),
	})
}

// GetSummary итоги завершенной сессии
// @Summary Итоги сессии
// @Tags Sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} pipeline.Summary
// @Failure 404 {object} map[string]interface{}
// @Router /api/sessions/{id}/summary [get]
func (h *HTTPHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	summary, err := h.manager.Summary(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Summary not found")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// GetEvents закрытые события сессии
// @Summary События сессии
// @Tags Sessions
// @Produce json
// @Param id path string true "ID сессии"
// @Success 200 {object} map[string]interface{}
// @Router /api/sessions/{id}/events [get]
func (h *HTTPHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	events, err := h.manager.Events(r.Context(), sessionID)
	if err != nil {
		h.respondSessionError(w, sessionID, "get events", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"events":     events,
		"count":      len(events),
	})
}

func (h *HTTPHandler) respondSessionError(w http.ResponseWriter, sessionID, op string, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, ErrSessionNotActive):
		respondError(w, http.StatusConflict, "Session is not active")
	default:
		h.logger.Error("failed to "+op, zap.String("session_id", sessionID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to "+op)
	}
}

// ===== Утилиты =====

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":  message,
		"status": status,
	})
}

func getQueryInt(r *http.Request, key string, defaultValue int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
