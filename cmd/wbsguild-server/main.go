package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	server "github.com/kazz187/wbsguild/internal"
	"github.com/kazz187/wbsguild/internal/activity"
	"github.com/kazz187/wbsguild/internal/api"
	"github.com/kazz187/wbsguild/internal/config"
	"github.com/kazz187/wbsguild/internal/eventbus"
	"github.com/kazz187/wbsguild/internal/permission"
	"github.com/kazz187/wbsguild/internal/schedule"
	"github.com/kazz187/wbsguild/internal/store"
	"github.com/kazz187/wbsguild/pkg/clock"
	"github.com/kazz187/wbsguild/pkg/clog"
	"github.com/kazz187/wbsguild/pkg/panicerr"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup repositories
	repos, err := store.Open(ctx, config.StorageEnvFromEnv(env))
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer repos.Close()

	// Setup permissions
	permEnv := config.PermissionEnvFromEnv(env)
	cache := permission.NewCache(repos.Permissions)
	checker := permission.NewChecker(cache, repos.Permissions, repos.Projects)
	if permEnv.SeedFile != "" {
		seeder := permission.NewSeeder(permEnv.SeedFile, repos.Permissions, cache)
		if err := seeder.Load(ctx); err != nil {
			slog.Error("failed to load permission seed", "error", err)
			os.Exit(1)
		}
		if permEnv.Watch {
			panicerr.Go(ctx, "permission-seed-watch", seeder.Watch)
		}
	}

	// Setup event bus
	bus := eventbus.New()
	activityDone := panicerr.Go(ctx, "activity-logger", activity.NewLogger(bus, slog.Default()).Start)

	clk := clock.Real()
	svc := schedule.NewServices(repos.Tasks, repos.Projects, clk)
	h := api.NewHandler(repos.Tasks, repos.Projects, svc, checker, bus, clk)
	srv := server.NewServer(env, h)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	<-activityDone
}
