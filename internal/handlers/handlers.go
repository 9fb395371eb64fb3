package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/hub"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/session"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/internal/store"
	"github.com/MuhammadHaseebUlHaqq/ballinfo/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS middleware on the REST
		// routes; the socket endpoint accepts any origin.
		return true
	},
}

// SnapshotReader serves cached broadcast state to HTTP reads
type SnapshotReader interface {
	ReadLiveMatches(ctx context.Context) ([]models.Match, error)
	ReadMatch(ctx context.Context, id string) (*models.Match, error)
}

// Handler serves the REST and WebSocket endpoints
type Handler struct {
	hub       *hub.Hub
	matches   store.MatchStore
	snapshots SnapshotReader
	logger    *zap.Logger

	// lifecycle context for sessions; ws connections outlive requests
	ctx context.Context
}

// New creates a handler. snapshots may be nil when no cache is wired.
func New(ctx context.Context, h *hub.Hub, matches store.MatchStore, snapshots SnapshotReader, logger *zap.Logger) *Handler {
	return &Handler{
		hub:       h,
		matches:   matches,
		snapshots: snapshots,
		logger:    logger,
		ctx:       ctx,
	}
}

// HandleWebSocket upgrades the connection and starts a session. The device
// class is computed once here and carried on the session for its lifetime.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	device := session.ClassifyDevice(r.URL.Query().Get("device"), r.UserAgent())
	s := session.New(uuid.New().String(), device, conn, h.hub, h.matches, h.logger)
	s.Start(h.ctx)
}

// HandleHealth returns service health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "healthy",
		"service":            "ballinfo",
		"active_connections": h.hub.ConnCount(),
	})
}

// HandleMetrics returns hub counters
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Metrics())
}

// HandleLiveMatches returns the current live-match list, serving the
// cached snapshot when one is fresh.
// GET /api/matches/live
func (h *Handler) HandleLiveMatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.snapshots != nil {
		if matches, err := h.snapshots.ReadLiveMatches(ctx); err == nil {
			writeMatchList(w, matches)
			return
		}
	}

	matches, err := h.matches.GetActiveLiveMatches(ctx, store.DefaultLiveLimit)
	if err != nil {
		h.logger.Error("live matches fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch live matches")
		return
	}
	writeMatchList(w, matches)
}

// HandlePreviousMatches returns recently finished matches
// GET /api/matches/previous
func (h *Handler) HandlePreviousMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matches.GetRecentResults(r.Context(), store.DefaultLiveLimit)
	if err != nil {
		h.logger.Error("previous matches fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch previous matches")
		return
	}
	writeMatchList(w, matches)
}

// HandleGetMatch returns one match with team data joined
// GET /api/matches/{matchID}
func (h *Handler) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	match, err := h.matches.GetMatchByID(r.Context(), matchID)
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		h.logger.Error("match fetch failed", zap.String("match", matchID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch match")
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// HandleUpdateMatch merges a partial update into a match and pushes it
// through the same notify path the simulator uses.
// POST /api/matches/{matchID}/update  (admin)
func (h *Handler) HandleUpdateMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	var update store.MatchUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update payload")
		return
	}
	if update.IsEmpty() {
		writeError(w, http.StatusBadRequest, "update payload carries no fields")
		return
	}

	updated, err := h.matches.ApplyUpdate(r.Context(), matchID, update)
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		h.logger.Error("match update failed", zap.String("match", matchID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update match")
		return
	}

	h.hub.NotifyMatchUpdate(h.ctx, matchID, updated, update.ChangedFields())
	writeJSON(w, http.StatusOK, updated)
}

// HandleAddMatchEvent appends an event to a match and broadcasts it
// POST /api/matches/{matchID}/events  (admin)
func (h *Handler) HandleAddMatchEvent(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	var event models.MatchEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if err := validateEvent(event); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Stamp before persisting so the broadcast copy matches the stored one
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	updated, err := h.matches.AppendEvent(r.Context(), matchID, event)
	if store.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		h.logger.Error("event append failed", zap.String("match", matchID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to add event")
		return
	}

	h.hub.NotifyMatchUpdate(h.ctx, matchID, updated, []string{"events"})
	h.hub.NotifyMatchEvent(h.ctx, matchID, event, updated)
	writeJSON(w, http.StatusOK, updated)
}

// AdminOnly rejects requests without the admin header
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-Auth") != "true" {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validateEvent(event models.MatchEvent) error {
	if event.Type == "" || event.Player == "" {
		return &models.ValidationError{Message: "event type and player are required"}
	}
	if event.Team != "home" && event.Team != "away" {
		return &models.ValidationError{Field: "team", Message: "must be home or away"}
	}
	if event.Minute < 0 || event.Minute > models.ExtraTimeMinutes {
		return &models.ValidationError{Field: "minute", Message: "must be between 0 and 120"}
	}
	return nil
}

func writeMatchList(w http.ResponseWriter, matches []models.Match) {
	if matches == nil {
		matches = []models.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"status":  "error",
		"message": message,
	})
}
