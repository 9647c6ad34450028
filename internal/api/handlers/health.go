package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/anstrom/scanexport/internal/logging"
)

// DatabasePinger defines the interface for database health checking.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

const healthCheckTimeout = 5 * time.Second

// Status constants.
const (
	StatusHealthy       = "healthy"
	StatusUnhealthy     = "unhealthy"
	StatusNotConfigured = "not configured"
	StatusOK            = "ok"
)

// Build information, set by SetBuildInfo.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// SetBuildInfo sets the build information reported by Version.
func SetBuildInfo(v, c, bt string) {
	version, commit, buildTime = v, c, bt
}

// HealthHandler handles health check and version endpoints.
type HealthHandler struct {
	database  DatabasePinger
	scheduler func() int
	logger    *logging.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. database may be nil when no
// row store is configured.
func NewHealthHandler(database DatabasePinger, logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &HealthHandler{
		database:  database,
		logger:    logger.WithFields("handler", "health"),
		startTime: time.Now(),
	}
}

// WithScheduledJobs reports the number of scheduled jobs in health checks.
func (h *HealthHandler) WithScheduledJobs(count func() int) *HealthHandler {
	h.scheduler = count
	return h
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
	Scheduled *int              `json:"scheduled_jobs,omitempty"`
}

// LivenessResponse represents a simple liveness check response.
type LivenessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
}

// Health checks the dependencies of the service. It answers 503 when the
// configured database cannot be reached.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).String(),
		Checks:    make(map[string]string),
	}

	if h.database != nil {
		if err := h.database.Ping(ctx); err != nil {
			response.Status = StatusUnhealthy
			response.Checks["database"] = "failed: " + err.Error()
			h.logger.Warn("Database health check failed", "error", err)
		} else {
			response.Checks["database"] = StatusOK
		}
	} else {
		response.Checks["database"] = StatusNotConfigured
	}

	if h.scheduler != nil {
		jobs := h.scheduler()
		response.Scheduled = &jobs
		response.Checks["scheduler"] = StatusOK
	} else {
		response.Checks["scheduler"] = StatusNotConfigured
	}

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, r, statusCode, response)
}

// Liveness performs a simple liveness check without dependencies.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).String(),
	})
}

// Version reports build information.
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, VersionResponse{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		PID:       os.Getpid(),
		Timestamp: time.Now().UTC(),
	})
}
