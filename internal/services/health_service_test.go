package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"ferroci/internal/config"
	"ferroci/pkg/contracts"
)

type fakeHub struct{ n int }

func (f fakeHub) ClientCount() int { return f.n }

func TestHealthCheck(t *testing.T) {
	svc, _ := newTestService(t, nil)
	paths := config.PathsFor(t.TempDir())
	_ = paths.EnsureDirectories()

	hs := NewHealthService(paths, svc, fakeHub{n: 2}, nil)
	status := hs.HealthCheck(context.Background())

	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, contracts.Version, status.Version)
	ws := status.Services["websocket"].(ServiceHealth)
	assert.Equal(t, "clients connected: 2", ws.Message)
	analysis := status.Services["analysis"].(ServiceHealth)
	assert.Equal(t, "idle", analysis.Message)
}

func TestHealthCheckDegraded(t *testing.T) {
	hs := NewHealthService(nil, nil, nil, nil)
	status := hs.HealthCheck(context.Background())

	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "not_ready", status.Services["analysis"].(ServiceHealth).Status)
}

func TestHealthVersion(t *testing.T) {
	hs := NewHealthService(nil, nil, nil, nil)
	info := hs.Version()
	assert.Equal(t, contracts.AppName, info.Name)
	assert.Equal(t, contracts.APIVersion, info.APIVersion)
}
