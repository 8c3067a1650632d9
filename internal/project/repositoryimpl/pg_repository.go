package repositoryimpl

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kazz187/wbsguild/internal/project"
	"github.com/kazz187/wbsguild/pkg/cerr"
)

const projectColumns = `id, name, description, status, priority, start_date, end_date,
	progress, owner_id, color, created_at, updated_at,
	COALESCE((SELECT array_agg(m.user_id ORDER BY m.user_id) FROM project_members m WHERE m.project_id = projects.id), '{}')`

// PgRepository stores projects in PostgreSQL with members in a join table.
type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// EnsureTable creates the projects and project_members tables if they
// don't exist.
func (r *PgRepository) EnsureTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS projects (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'planning',
			priority    TEXT NOT NULL DEFAULT '',
			start_date  DATE,
			end_date    DATE,
			progress    INTEGER NOT NULL DEFAULT 0,
			owner_id    TEXT NOT NULL DEFAULT '',
			color       TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS project_members (
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			PRIMARY KEY (project_id, user_id)
		)`)
	return err
}

func (r *PgRepository) Create(ctx context.Context, p *project.Project) error {
	p.CreatedAt = p.CreatedAt.Truncate(time.Microsecond)
	p.UpdatedAt = p.UpdatedAt.Truncate(time.Microsecond)
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO projects (id, name, description, status, priority, start_date, end_date,
				progress, owner_id, color, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Name, p.Description, string(p.Status), p.Priority, p.StartDate, p.EndDate,
			p.Progress, p.OwnerID, p.Color, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return cerr.WrapDBWriteError("project", err)
		}
		if tag.RowsAffected() == 0 {
			return cerr.NewError(cerr.AlreadyExists, "project already exists", nil)
		}
		return replaceMembers(ctx, tx, p.ID, p.MemberIDs)
	})
}

func (r *PgRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err != nil {
		return nil, cerr.WrapDBReadError("project", err)
	}
	return p, nil
}

func (r *PgRepository) List(ctx context.Context, f project.Filter) ([]*project.Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+projectColumns+` FROM projects
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR owner_id = $2)
		  AND ($3 = '' OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = projects.id AND m.user_id = $3))
		ORDER BY created_at DESC, id ASC`,
		string(f.Status), f.OwnerID, f.MemberID)
	if err != nil {
		return nil, cerr.WrapDBReadError("projects", err)
	}
	defer rows.Close()

	projects := make([]*project.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, cerr.WrapDBReadError("projects", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapDBReadError("projects", err)
	}
	return projects, nil
}

func (r *PgRepository) Update(ctx context.Context, p *project.Project) error {
	p.UpdatedAt = p.UpdatedAt.Truncate(time.Microsecond)
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE projects SET
				name = $2, description = $3, status = $4, priority = $5, start_date = $6,
				end_date = $7, progress = $8, owner_id = $9, color = $10, updated_at = $11
			WHERE id = $1`,
			p.ID, p.Name, p.Description, string(p.Status), p.Priority, p.StartDate,
			p.EndDate, p.Progress, p.OwnerID, p.Color, p.UpdatedAt)
		if err != nil {
			return cerr.WrapDBWriteError("project", err)
		}
		if tag.RowsAffected() == 0 {
			return cerr.NewError(cerr.NotFound, "project not found", nil)
		}
		return replaceMembers(ctx, tx, p.ID, p.MemberIDs)
	})
}

func (r *PgRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return cerr.WrapDBWriteError("project", err)
	}
	if tag.RowsAffected() == 0 {
		return cerr.NewError(cerr.NotFound, "project not found", nil)
	}
	return nil
}

func (r *PgRepository) IsOwner(ctx context.Context, projectID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND owner_id = $2)`,
		projectID, userID).Scan(&ok)
	if err != nil {
		return false, cerr.WrapDBReadError("project", err)
	}
	return ok, nil
}

func (r *PgRepository) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2)`,
		projectID, userID).Scan(&ok)
	if err != nil {
		return false, cerr.WrapDBReadError("project member", err)
	}
	return ok, nil
}

// inTx keeps a project row and its member rows consistent with each other.
func (r *PgRepository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return cerr.WrapDBWriteError("project", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return cerr.WrapDBWriteError("project", err)
	}
	return nil
}

func replaceMembers(ctx context.Context, tx pgx.Tx, projectID string, memberIDs []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1`, projectID); err != nil {
		return cerr.WrapDBWriteError("project member", err)
	}
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id)
		SELECT $1, u FROM unnest($2::text[]) AS u
		ON CONFLICT DO NOTHING`, projectID, memberIDs)
	if err != nil {
		return cerr.WrapDBWriteError("project member", err)
	}
	return nil
}

func scanProject(row pgx.Row) (*project.Project, error) {
	var (
		p      project.Project
		status string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &p.Priority, &p.StartDate, &p.EndDate,
		&p.Progress, &p.OwnerID, &p.Color, &p.CreatedAt, &p.UpdatedAt, &p.MemberIDs)
	if err != nil {
		return nil, err
	}
	p.Status = project.Status(status)
	return &p, nil
}
