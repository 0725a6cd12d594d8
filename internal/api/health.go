package api

import (
	"net/http"
	"time"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Model         string            `json:"model"`
	Checks        map[string]string `json:"checks"`
	InFlight      int               `json:"transcriptions_in_flight"`
}

// InFlightCounter reports requests waiting on the remote API.
type InFlightCounter interface {
	InFlight() int
}

type HealthHandler struct {
	upstreamURL string
	model       string
	archiveType string // "" = not configured
	inFlight    InFlightCounter
	version     string
	startTime   time.Time
}

func NewHealthHandler(upstreamURL, model, archiveType string, inFlight InFlightCounter, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		upstreamURL: upstreamURL,
		model:       model,
		archiveType: archiveType,
		inFlight:    inFlight,
		version:     version,
		startTime:   startTime,
	}
}

// ServeHTTP reports static readiness only. The remote API is never called:
// every call to it needs the user's key.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if h.upstreamURL == "" {
		checks["upstream"] = "not_configured"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["upstream"] = "configured"
	}

	if h.archiveType == "" {
		checks["archive"] = "not_configured"
	} else {
		checks["archive"] = h.archiveType
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Model:         h.model,
		Checks:        checks,
	}
	if h.inFlight != nil {
		resp.InFlight = h.inFlight.InFlight()
	}

	WriteJSON(w, httpStatus, resp)
}
