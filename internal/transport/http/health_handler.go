package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/license"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/pkg/contracts"
)

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
)

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	status    func() license.Status
	clients   ClientCounter
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a new health handler. clients may be nil.
func NewHealthHandler(status func() license.Status, clients ClientCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		status:    status,
		clients:   clients,
		startedAt: time.Now(),
		logger:    logger.With(slog.String("handler", "health")),
	}
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status    string                `json:"status"`
	Version   contracts.VersionInfo `json:"version"`
	Uptime    string                `json:"uptime"`
	License   license.Status        `json:"license"`
	WSClients int                   `json:"websocket_clients"`
	Timestamp time.Time             `json:"timestamp"`
}

// ReadinessResponse is the body of GET /api/health/ready.
type ReadinessResponse struct {
	Status  string         `json:"status"`
	License license.Status `json:"license"`
}

// HealthCheck handles GET /api/health. It always answers 200; a process
// without a valid license reports itself degraded.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	st := h.status()
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   contracts.GetVersionInfo(),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		License:   st,
		Timestamp: time.Now().UTC(),
	}
	if !st.Valid {
		resp.Status = StatusDegraded
	}
	if h.clients != nil {
		resp.WSClients = h.clients.ClientCount()
	}
	render.JSON(w, r, resp)
}

// ReadinessCheck handles GET /api/health/ready: 200 only while the license
// is valid.
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	st := h.status()
	resp := ReadinessResponse{Status: StatusReady, License: st}
	if !st.Valid {
		resp.Status = StatusNotReady
		h.logger.DebugContext(r.Context(), "readiness check failed",
			slog.String("license_state", st.State.String()))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}

// LivenessCheck handles GET /api/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": StatusAlive})
}
