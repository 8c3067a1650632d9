// Package store opens the repositories for the configured backend.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kazz187/wbsguild/internal/config"
	"github.com/kazz187/wbsguild/internal/permission"
	permissionrepo "github.com/kazz187/wbsguild/internal/permission/repositoryimpl"
	"github.com/kazz187/wbsguild/internal/project"
	projectrepo "github.com/kazz187/wbsguild/internal/project/repositoryimpl"
	"github.com/kazz187/wbsguild/internal/task"
	taskrepo "github.com/kazz187/wbsguild/internal/task/repositoryimpl"
	"github.com/kazz187/wbsguild/pkg/storage"
)

type Repositories struct {
	Tasks       task.Repository
	Projects    project.Repository
	Permissions permission.Repository

	pool *pgxpool.Pool
}

// NewYAML returns YAML file repositories on top of s.
func NewYAML(s storage.Storage) *Repositories {
	return &Repositories{
		Tasks:       taskrepo.NewYAMLRepository(s),
		Projects:    projectrepo.NewYAMLRepository(s),
		Permissions: permissionrepo.NewYAMLRepository(s),
	}
}

// Open connects to the backend selected by env.Type. Postgres tables are
// created when missing.
func Open(ctx context.Context, env *config.StorageEnv) (*Repositories, error) {
	switch env.Type {
	case config.StoragePostgres:
		return openPostgres(ctx, env.DatabaseURL)
	case config.StorageS3:
		s, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		slog.InfoContext(ctx, "using S3 storage", "bucket", env.S3Bucket, "prefix", env.S3Prefix)
		return NewYAML(s), nil
	case config.StorageLocal, "":
		s, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		slog.InfoContext(ctx, "using local storage", "base_dir", env.BaseDir)
		return NewYAML(s), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", env.Type)
	}
}

type tableOwner interface {
	EnsureTable(ctx context.Context) error
}

func openPostgres(ctx context.Context, url string) (*Repositories, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	tasks := taskrepo.NewPgRepository(pool)
	projects := projectrepo.NewPgRepository(pool)
	perms := permissionrepo.NewPgRepository(pool)
	for _, t := range []tableOwner{projects, tasks, perms} {
		if err := t.EnsureTable(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	slog.InfoContext(ctx, "using postgres storage")
	return &Repositories{
		Tasks:       tasks,
		Projects:    projects,
		Permissions: perms,
		pool:        pool,
	}, nil
}

func (r *Repositories) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}
