package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

const (
	StorageLocal    = "local"
	StorageS3       = "s3"
	StoragePostgres = "postgres"
)

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".wbsguild/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"wbsguild/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
	// Postgres settings (used when Type == "postgres")
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

type PermissionEnv struct {
	// SeedFile is a YAML file of permissions and role bindings loaded at
	// startup. Empty disables seeding.
	SeedFile string `envconfig:"PERMISSION_SEED_FILE"`
	// Watch reloads SeedFile when it changes.
	Watch bool `envconfig:"PERMISSION_WATCH" default:"false"`
}

type Env struct {
	BaseEnv
	StorageEnv
	PermissionEnv
}

const namespace = "WBSGUILD"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if err := env.StorageEnv.validate(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *StorageEnv) validate() error {
	switch e.Type {
	case StorageLocal:
	case StorageS3:
		if e.S3Bucket == "" {
			return fmt.Errorf("%s_S3_BUCKET is required for s3 storage", namespace)
		}
	case StoragePostgres:
		if e.DatabaseURL == "" {
			return fmt.Errorf("%s_DATABASE_URL is required for postgres storage", namespace)
		}
	default:
		return fmt.Errorf("unknown storage type %q", e.Type)
	}
	return nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func StorageEnvFromEnv(env *Env) *StorageEnv {
	return &env.StorageEnv
}

func PermissionEnvFromEnv(env *Env) *PermissionEnv {
	return &env.PermissionEnv
}
