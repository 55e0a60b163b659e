package handlers

import (
	"context"
	"net/http"
	"time"
)

type HealthHandler struct {
	dbPing         func(context.Context) error
	modelHealth    func(context.Context) bool
	platformHealth func(context.Context) bool
}

type HealthHandlerConfig struct {
	DBPing         func(context.Context) error
	ModelHealth    func(context.Context) bool
	PlatformHealth func(context.Context) bool
}

func NewHealthHandler(cfg HealthHandlerConfig) *HealthHandler {
	return &HealthHandler{
		dbPing:         cfg.DBPing,
		modelHealth:    cfg.ModelHealth,
		platformHealth: cfg.PlatformHealth,
	}
}

// HealthStatus represents the overall health status response.
type HealthStatus struct {
	Status     string               `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp  time.Time            `json:"timestamp"`
	Components map[string]Component `json:"components"`
}

// Component represents a single component's health status.
type Component struct {
	Status  string `json:"status"` // "healthy", "unhealthy"
	Message string `json:"message,omitempty"`
	Latency int64  `json:"latency_ms,omitempty"`
}

// Health handles GET /health/full, checking all service dependencies. The
// database is the only critical one; an unreachable model or platform API
// degrades the status without failing it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := HealthStatus{
		Timestamp:  time.Now().UTC(),
		Status:     "healthy",
		Components: make(map[string]Component),
	}

	if h.dbPing != nil {
		start := time.Now()
		err := h.dbPing(ctx)
		latency := time.Since(start).Milliseconds()

		if err != nil {
			status.Components["database"] = Component{
				Status:  "unhealthy",
				Message: err.Error(),
				Latency: latency,
			}
			status.Status = "unhealthy"
		} else {
			status.Components["database"] = Component{
				Status:  "healthy",
				Latency: latency,
			}
		}
	}

	if h.modelHealth != nil {
		status.checkComponent(ctx, "model", h.modelHealth)
	}
	if h.platformHealth != nil {
		status.checkComponent(ctx, "platform", h.platformHealth)
	}

	httpStatus := http.StatusOK
	if status.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	respondJSON(w, status, httpStatus)
}

func (s *HealthStatus) checkComponent(ctx context.Context, name string, probe func(context.Context) bool) {
	start := time.Now()
	ok := probe(ctx)
	latency := time.Since(start).Milliseconds()

	if ok {
		s.Components[name] = Component{Status: "healthy", Latency: latency}
		return
	}
	s.Components[name] = Component{Status: "unhealthy", Latency: latency}
	if s.Status == "healthy" {
		s.Status = "degraded"
	}
}

// Readiness handles GET /health/ready, a lightweight check for load
// balancers. Only the database is probed.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Liveness handles GET /health/live. The process answering is the check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
