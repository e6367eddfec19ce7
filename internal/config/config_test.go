package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr())
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.OpTimeout)
	assert.Equal(t, 6*time.Second, cfg.TypingTTL)
	assert.Equal(t, 54*time.Second, cfg.WSPingInterval)
	assert.Equal(t, int64(64*1024), cfg.WSMaxMessageBytes)
	assert.True(t, cfg.ReadOnAnnounce)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.CORSOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173")
	t.Setenv("OP_TIMEOUT", "250ms")
	t.Setenv("READ_ON_ANNOUNCE", "false")
	t.Setenv("WS_REQUIRE_TOKEN", "true")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.OpTimeout)
	assert.False(t, cfg.ReadOnAnnounce)
	assert.True(t, cfg.WSRequireToken)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoad_ConfigFileBelowEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_driver: mongo\nmongo_db: chat\nhttp_port: 7000\n"), 0o600))
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, "chat", cfg.MongoDB)
	assert.Equal(t, 7001, cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "cassandra"}},
		{"token without secret", map[string]string{"WS_REQUIRE_TOKEN": "true"}},
		{"bad port", map[string]string{"HTTP_PORT": "0"}},
		{"zero timeout", map[string]string{"OP_TIMEOUT": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
