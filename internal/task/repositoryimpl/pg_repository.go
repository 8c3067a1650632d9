package repositoryimpl

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kazz187/wbsguild/internal/task"
	"github.com/kazz187/wbsguild/pkg/cerr"
)

const taskColumns = `id, project_id, parent_task_id, title, description, status, priority,
	assignee_id, start_date, end_date, estimated_hours, actual_hours, progress,
	original_end_date, delayed_days, delay_count, delay_reason, last_delay_date,
	created_at, updated_at`

// PgRepository stores tasks in PostgreSQL. Derived delay fields have no
// columns.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// EnsureTable creates the tasks table if it doesn't exist.
func (r *PgRepository) EnsureTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                TEXT PRIMARY KEY,
			project_id        TEXT NOT NULL,
			parent_task_id    TEXT NOT NULL DEFAULT '',
			title             TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL DEFAULT 'todo',
			priority          TEXT NOT NULL DEFAULT '',
			assignee_id       TEXT NOT NULL DEFAULT '',
			start_date        DATE,
			end_date          DATE,
			estimated_hours   DOUBLE PRECISION NOT NULL DEFAULT 0,
			actual_hours      DOUBLE PRECISION NOT NULL DEFAULT 0,
			progress          INTEGER NOT NULL DEFAULT 0,
			original_end_date DATE,
			delayed_days      INTEGER NOT NULL DEFAULT 0,
			delay_count       INTEGER NOT NULL DEFAULT 0,
			delay_reason      TEXT NOT NULL DEFAULT '',
			last_delay_date   DATE,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id) WHERE parent_task_id != ''`)
	return err
}

func (r *PgRepository) Create(ctx context.Context, t *task.Task) error {
	t.CreatedAt = t.CreatedAt.Truncate(time.Microsecond)
	t.UpdatedAt = t.UpdatedAt.Truncate(time.Microsecond)
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.ProjectID, t.ParentTaskID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.AssigneeID, t.StartDate, t.EndDate, t.EstimatedHours, t.ActualHours, t.Progress,
		t.OriginalEndDate, t.DelayedDays, t.DelayCount, t.DelayReason, t.LastDelayDate,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return cerr.WrapDBWriteError("task", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.AlreadyExists, "task already exists", nil)
	}
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, cerr.WrapDBReadError("task", err)
	}
	return t, nil
}

func (r *PgRepository) List(ctx context.Context, f task.Filter) ([]*task.Task, error) {
	return r.query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE ($1 = '' OR project_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR assignee_id = $3)
		ORDER BY created_at ASC, id ASC`,
		f.ProjectID, string(f.Status), f.AssigneeID)
}

func (r *PgRepository) ListByParent(ctx context.Context, parentID string) ([]*task.Task, error) {
	if parentID == "" {
		return []*task.Task{}, nil
	}
	return r.query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE parent_task_id = $1
		ORDER BY created_at ASC, id ASC`, parentID)
}

func (r *PgRepository) ListByParents(ctx context.Context, parentIDs []string) (map[string][]*task.Task, error) {
	out := make(map[string][]*task.Task)
	if len(parentIDs) == 0 {
		return out, nil
	}
	tasks, err := r.query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE parent_task_id = ANY($1) AND parent_task_id <> ''
		ORDER BY created_at ASC, id ASC`, parentIDs)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		out[t.ParentTaskID] = append(out[t.ParentTaskID], t)
	}
	return out, nil
}

func (r *PgRepository) Update(ctx context.Context, t *task.Task) error {
	t.UpdatedAt = t.UpdatedAt.Truncate(time.Microsecond)
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET
			project_id = $2, parent_task_id = $3, title = $4, description = $5, status = $6,
			priority = $7, assignee_id = $8, start_date = $9, end_date = $10,
			estimated_hours = $11, actual_hours = $12, progress = $13, original_end_date = $14,
			delayed_days = $15, delay_count = $16, delay_reason = $17, last_delay_date = $18,
			updated_at = $19
		WHERE id = $1`,
		t.ID, t.ProjectID, t.ParentTaskID, t.Title, t.Description, string(t.Status),
		string(t.Priority), t.AssigneeID, t.StartDate, t.EndDate,
		t.EstimatedHours, t.ActualHours, t.Progress, t.OriginalEndDate,
		t.DelayedDays, t.DelayCount, t.DelayReason, t.LastDelayDate,
		t.UpdatedAt)
	if err != nil {
		return cerr.WrapDBWriteError("task", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return cerr.WrapDBWriteError("task", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

func (r *PgRepository) query(ctx context.Context, sql string, args ...any) ([]*task.Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, cerr.WrapDBReadError("tasks", err)
	}
	defer rows.Close()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, cerr.WrapDBReadError("tasks", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapDBReadError("tasks", err)
	}
	return tasks, nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	var (
		tk               task.Task
		status, priority string
	)
	err := row.Scan(
		&tk.ID, &tk.ProjectID, &tk.ParentTaskID, &tk.Title, &tk.Description, &status, &priority,
		&tk.AssigneeID, &tk.StartDate, &tk.EndDate, &tk.EstimatedHours, &tk.ActualHours, &tk.Progress,
		&tk.OriginalEndDate, &tk.DelayedDays, &tk.DelayCount, &tk.DelayReason, &tk.LastDelayDate,
		&tk.CreatedAt, &tk.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tk.Status = task.Status(status)
	tk.Priority = task.Priority(priority)
	return &tk, nil
}
