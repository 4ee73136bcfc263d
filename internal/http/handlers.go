package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sensor"
	"github.com/chbarnhouse/ha-finance-assistant/internal/storage"
)

type statusResponse struct {
	Status            string     `json:"status"`
	LastUpdate        *time.Time `json:"last_update,omitempty"`
	LastUpdateSuccess bool       `json:"last_update_success"`
	LastError         string     `json:"last_error,omitempty"`
}

type sensorsResponse struct {
	Count       int            `json:"count"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Sensors     []sensor.State `json:"sensors"`
}

type historyResponse struct {
	EntityID string                 `json:"entity_id"`
	Limit    int                    `json:"limit"`
	Points   []storage.HistoryPoint `json:"points"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(statusResponse{Status: "ok"}).Write(w)
}

// handleReady answers 503 until a refresh has succeeded once. Later failures
// keep the last data, so readiness does not flap.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:            "ready",
		LastUpdate:        timePtr(s.refresher.LastUpdate()),
		LastUpdateSuccess: s.refresher.LastUpdateSuccess(),
	}
	if err := s.refresher.LastError(); err != nil {
		resp.LastError = err.Error()
	}

	status := http.StatusOK
	if _, err := s.refresher.Data(); err != nil {
		resp.Status = "waiting for first refresh"
		status = http.StatusServiceUnavailable
	}
	NewJSONResponse().Status(status).Body(resp).Write(w)
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	states := s.sensors.Latest()
	if states == nil {
		states = []sensor.State{}
	}
	NewJSONResponse().Body(sensorsResponse{
		Count:       len(states),
		PublishedAt: timePtr(s.sensors.LastPublished()),
		Sensors:     states,
	}).Write(w)
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")
	state, ok := s.sensors.Sensor(entityID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown sensor "+entityID)
		return
	}
	NewJSONResponse().Body(state).Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	status := "scheduled"
	if !s.refresher.RequestRefresh() {
		status = "already pending"
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Refresh requested",
		log.FieldOperation, log.OpRefresh,
		"result", status)
	NewJSONResponse().Status(http.StatusAccepted).Body(statusResponse{Status: status}).Write(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not available")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entityID := chi.URLParam(r, "entityID")
	points, err := s.history.History(r.Context(), entityID, limit)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "History query failed", err, log.OpHistory, log.NewFields().WithEntity(entityID, ""))
		if r.Context().Err() != nil {
			writeError(w, http.StatusServiceUnavailable, "request cancelled")
			return
		}
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if points == nil {
		points = []storage.HistoryPoint{}
	}
	NewJSONResponse().Body(historyResponse{EntityID: entityID, Limit: limit, Points: points}).Write(w)
}
