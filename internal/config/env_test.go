package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDefaults(t *testing.T) {
	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "local", env.Env)
	assert.Equal(t, "3200", env.HTTPPort)
	assert.Equal(t, StorageLocal, env.StorageEnv.Type)
	assert.Equal(t, ".wbsguild/data", env.BaseDir)
	assert.False(t, env.Watch)
	assert.Equal(t, slog.LevelDebug, env.SlogLevel())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WBSGUILD_ENV", "production")
	t.Setenv("WBSGUILD_LOG_LEVEL", "warn")
	t.Setenv("WBSGUILD_STORAGE_TYPE", "postgres")
	t.Setenv("WBSGUILD_DATABASE_URL", "postgres://localhost/wbs")
	t.Setenv("WBSGUILD_PERMISSION_SEED_FILE", "/etc/wbsguild/permissions.yaml")
	t.Setenv("WBSGUILD_PERMISSION_WATCH", "true")

	env, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "production", env.Env)
	assert.Equal(t, slog.LevelWarn, env.SlogLevel())
	assert.Equal(t, "postgres://localhost/wbs", StorageEnvFromEnv(env).DatabaseURL)
	assert.Equal(t, "/etc/wbsguild/permissions.yaml", PermissionEnvFromEnv(env).SeedFile)
	assert.True(t, PermissionEnvFromEnv(env).Watch)
}

func TestLoadEnvStorageValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"s3 without bucket", map[string]string{"WBSGUILD_STORAGE_TYPE": "s3"}},
		{"postgres without url", map[string]string{"WBSGUILD_STORAGE_TYPE": "postgres"}},
		{"unknown type", map[string]string{"WBSGUILD_STORAGE_TYPE": "sqlite"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadEnv()
			assert.Error(t, err)
		})
	}
}

func TestSlogLevelFallback(t *testing.T) {
	var nilEnv *BaseEnv
	assert.Equal(t, slog.LevelDebug, nilEnv.SlogLevel())
	assert.Equal(t, slog.LevelDebug, (&BaseEnv{LogLevel: "chatty"}).SlogLevel())
	assert.Equal(t, slog.LevelError, (&BaseEnv{LogLevel: "ERROR"}).SlogLevel())
}
