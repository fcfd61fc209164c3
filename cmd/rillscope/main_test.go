package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/services"
	"rillscope/internal/infrastructure/repositories"
	"rillscope/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestTokenCommand(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: test-secret\n")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--config", path, "--subject", "ops", "--role", "admin", "--ttl", "1h"})
	require.NoError(t, cmd.Execute())

	auth := services.NewAuthService("test-secret", time.Hour, services.RoleAdmin)
	claims, err := auth.ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.True(t, auth.IsAdmin(claims))
}

func TestTokenCommand_RejectsUnknownRole(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: test-secret\n")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--config", path, "--subject", "ops", "--role", "owner"})
	assert.Error(t, cmd.Execute())
}

func TestRootOptions_Overrides(t *testing.T) {
	path := writeConfig(t, "dashboard:\n  room_id: from-file\n")

	opts := &rootOptions{configPath: path, roomID: "from-flag", logLevel: "debug"}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Dashboard.RoomID)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestControllerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Dashboard.RoomID = "room-1"
	cfg.Dashboard.DefaultRange = "24h"

	cc := controllerConfig(cfg)
	assert.Equal(t, "room-1", cc.RoomID)
	assert.Equal(t, domain.Range24h, cc.DefaultRange)
	assert.Equal(t, cfg.Dashboard.ChartWidth, cc.ChartSize.Width)
}

func TestRetryAndBreakerConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	rc := retryConfig(cfg.Stats.Retry)
	assert.Equal(t, 2, rc.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, rc.InitialDelay)

	bc := breakerConfig(cfg.Stats.CircuitBreaker)
	assert.Equal(t, 5, bc.FailureThreshold)
	assert.Equal(t, 30*time.Second, bc.Timeout)
}

func TestExportOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	log := zap.NewNop().Sugar()
	factory := repositories.NewRepositoryFactory(cfg, log)
	defer factory.Close()

	for _, sink := range []string{"memory", "redis"} {
		cfg.Export.Sink = sink
		opts, err := exportOptions(cfg, factory, log)
		require.NoError(t, err, sink)
		assert.Len(t, opts, 1)
	}

	cfg.Export.Sink = "file"
	cfg.Export.Directory = t.TempDir()
	opts, err := exportOptions(cfg, factory, log)
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	cfg.Export.Sink = "s3"
	_, err = exportOptions(cfg, factory, log)
	assert.Error(t, err)
}

func TestBuildStats_RejectsBadURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Stats.BaseURL = "ftp://stats"
	_, err := buildStats(cfg, zap.NewNop().Sugar())
	assert.Error(t, err)
}
