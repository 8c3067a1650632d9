package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/wbsguild/internal/config"
	"github.com/kazz187/wbsguild/internal/permission"
	"github.com/kazz187/wbsguild/internal/project"
	"github.com/kazz187/wbsguild/internal/schedule"
	"github.com/kazz187/wbsguild/internal/store"
	"github.com/kazz187/wbsguild/pkg/clock"
	"github.com/kazz187/wbsguild/pkg/clog"
	"github.com/kazz187/wbsguild/pkg/date"
)

var (
	app = kingpin.New("wbsguild", "Schedule and delay tracking for work breakdown structures")

	recomputeCmd     = app.Command("recompute", "Recompute project progress and status")
	recomputeProject = recomputeCmd.Arg("project-id", "Project ID (all projects when omitted)").Default("").String()

	delaysCmd              = app.Command("delays", "List delayed tasks")
	delaysProject          = delaysCmd.Flag("project", "Restrict to one project").Default("").String()
	delaysIncludeCompleted = delaysCmd.Flag("include-completed", "Include tasks that are done").Default("false").Bool()

	delayStatsCmd     = app.Command("delay-stats", "Show delay statistics of a project")
	delayStatsProject = delayStatsCmd.Arg("project-id", "Project ID").Required().String()

	recordDelayCmd    = app.Command("record-delay", "Move a task's end date and record the delay")
	recordDelayTask   = recordDelayCmd.Arg("task-id", "Task ID").Required().String()
	recordDelayNewEnd = recordDelayCmd.Arg("new-end", "New end date (YYYY-MM-DD)").Required().String()
	recordDelayReason = recordDelayCmd.Flag("reason", "Reason for the delay").Default("").String()

	seedCmd  = app.Command("seed-permissions", "Load permissions and role bindings from a YAML file")
	seedFile = seedCmd.Arg("file", "Seed file").Required().ExistingFile()

	rolesCmd  = app.Command("role-permissions", "List the permissions granted to a role")
	rolesRole = rolesCmd.Arg("role", "Role").Required().String()
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(
		clog.NewTextHandler(os.Stderr, clog.WithLevel(env.SlogLevel())),
	)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cmd, env, clock.Real(), os.Stdout); err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, env *config.Env, clk clock.Clock, out io.Writer) error {
	repos, err := store.Open(ctx, config.StorageEnvFromEnv(env))
	if err != nil {
		return err
	}
	defer repos.Close()

	svc := schedule.NewServices(repos.Tasks, repos.Projects, clk)

	switch cmd {
	case recomputeCmd.FullCommand():
		return recompute(ctx, out, repos, svc, *recomputeProject)

	case delaysCmd.FullCommand():
		tasks, err := svc.Reporter.DelayedTasks(ctx, *delaysProject, *delaysIncludeCompleted)
		if err != nil {
			return err
		}
		return printJSON(out, tasks)

	case delayStatsCmd.FullCommand():
		stats, err := svc.Reporter.ProjectDelayStats(ctx, *delayStatsProject)
		if err != nil {
			return err
		}
		return printJSON(out, stats)

	case recordDelayCmd.FullCommand():
		newEnd, err := date.Parse(*recordDelayNewEnd)
		if err != nil {
			return fmt.Errorf("invalid new end date: %w", err)
		}
		t, err := svc.Recorder.RecordDelay(ctx, *recordDelayTask, newEnd, *recordDelayReason)
		if err != nil {
			return err
		}
		if err := svc.Engine.RollupOne(ctx, t); err != nil {
			return err
		}
		return printJSON(out, t)

	case seedCmd.FullCommand():
		cache := permission.NewCache(repos.Permissions)
		if err := permission.NewSeeder(*seedFile, repos.Permissions, cache).Load(ctx); err != nil {
			return err
		}
		slog.InfoContext(ctx, "permission seed loaded", "file", *seedFile)
		return nil

	case rolesCmd.FullCommand():
		checker := permission.NewChecker(permission.NewCache(repos.Permissions), repos.Permissions, repos.Projects)
		perms, err := checker.PermissionsForRole(ctx, *rolesRole)
		if err != nil {
			return err
		}
		return printJSON(out, perms)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func recompute(ctx context.Context, out io.Writer, repos *store.Repositories, svc *schedule.Services, projectID string) error {
	ids := []string{projectID}
	if projectID == "" {
		projects, err := repos.Projects.List(ctx, project.Filter{})
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
	}

	recomputed := make([]*project.Project, 0, len(ids))
	for _, id := range ids {
		p, err := svc.Aggregator.RecomputeProject(ctx, id)
		if err != nil {
			return err
		}
		if err := svc.Aggregator.ApplyDelayStatus(ctx, p); err != nil {
			return err
		}
		recomputed = append(recomputed, p)
	}
	return printJSON(out, recomputed)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
