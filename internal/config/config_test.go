package config_test

import (
	"testing"
	"time"

	"taskBoard/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 100, cfg.Server.RateLimitRPM)
	assert.Equal(t, "board.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Database.CheckpointInterval)
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "sqlite", cfg.Repository.Type)
	assert.Equal(t, []string{"failed", "blocked"}, cfg.Board.ProtectedStatuses)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("BOARD_SERVER_PORT", "9090")
	t.Setenv("BOARD_DATABASE_PATH", "/tmp/other.db")
	t.Setenv("BOARD_REPOSITORY_TYPE", "inmemory")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, "inmemory", cfg.Repository.Type)
}

func TestLoadRejectsUnknownRepositoryType(t *testing.T) {
	t.Setenv("BOARD_REPOSITORY_TYPE", "postgres")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository.type")
}

func TestGetServerAddr(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: "9000"},
	}
	assert.Equal(t, "127.0.0.1:9000", cfg.GetServerAddr())
}
