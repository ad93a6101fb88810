package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"ferroci/internal/config"
	"ferroci/pkg/contracts"
)

// ClientCounter reports connected GUI clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	paths     *config.Paths
	analysis  *AnalysisService
	hub       ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// NewHealthService creates a new health service. paths and hub may be nil.
func NewHealthService(paths *config.Paths, analysis *AnalysisService, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", contracts.Version))

	return &HealthService{
		version:   contracts.Version,
		paths:     paths,
		analysis:  analysis,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"goroutines": runtime.NumGoroutine(),
		},
		Services: map[string]interface{}{
			"analysis":  hs.checkAnalysisHealth(),
			"websocket": hs.checkWebSocketHealth(),
			"logs":      hs.checkLogHealth(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "degraded"
			break
		}
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status))
	return status
}

// Version returns version information
func (hs *HealthService) Version() contracts.VersionInfo {
	return contracts.GetVersionInfo()
}

// checkAnalysisHealth reports the drop gate and the open sessions
func (hs *HealthService) checkAnalysisHealth() ServiceHealth {
	if hs.analysis == nil {
		return ServiceHealth{Status: "not_ready", Message: "analysis service not initialized"}
	}
	if len(hs.analysis.Metrics()) == 0 {
		return ServiceHealth{Status: "not_ready", Message: "no metrics registered"}
	}

	msg := "idle"
	if hs.analysis.Busy() {
		msg = "processing a drop"
	}
	return ServiceHealth{Status: "ready", Message: msg}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{Status: "not_ready", Message: "websocket hub not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("clients connected: %d", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkLogHealth checks that the log directory exists
func (hs *HealthService) checkLogHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{Status: "ready", Message: "console logging"}
	}
	if _, err := os.Stat(hs.paths.LogsDir); err != nil {
		return ServiceHealth{Status: "not_ready", Message: "log directory missing: " + hs.paths.LogsDir}
	}
	return ServiceHealth{Status: "ready"}
}
