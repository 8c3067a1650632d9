package repositoryimpl

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kazz187/wbsguild/internal/permission"
	"github.com/kazz187/wbsguild/pkg/cerr"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// EnsureTable creates the permissions and role_permissions tables if they
// don't exist.
func (r *PgRepository) EnsureTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS permissions (
			id          TEXT PRIMARY KEY,
			code        TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL DEFAULT '',
			type        TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS role_permissions (
			role TEXT NOT NULL,
			code TEXT NOT NULL,
			PRIMARY KEY (role, code)
		)`)
	return err
}

func (r *PgRepository) ListPermissions(ctx context.Context) ([]*permission.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, type, description FROM permissions ORDER BY code`)
	if err != nil {
		return nil, cerr.WrapDBReadError("permissions", err)
	}
	perms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*permission.Permission, error) {
		var p permission.Permission
		err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Type, &p.Description)
		return &p, err
	})
	if err != nil {
		return nil, cerr.WrapDBReadError("permissions", err)
	}
	return perms, nil
}

func (r *PgRepository) UpsertPermission(ctx context.Context, p *permission.Permission) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO permissions (id, code, name, type, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, type = EXCLUDED.type, description = EXCLUDED.description`,
		p.ID, p.Code, p.Name, p.Type, p.Description)
	if err != nil {
		return cerr.WrapDBWriteError("permission", err)
	}
	return nil
}

func (r *PgRepository) DeletePermission(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE code = $1`, code); err != nil {
		return cerr.WrapDBWriteError("permission", err)
	}
	return nil
}

func (r *PgRepository) GetRoleBinding(ctx context.Context, role string) (*permission.RoleBinding, error) {
	rows, err := r.pool.Query(ctx, `SELECT code FROM role_permissions WHERE role = $1 ORDER BY code`, role)
	if err != nil {
		return nil, cerr.WrapDBReadError("role", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, cerr.WrapDBReadError("role", err)
	}
	return &permission.RoleBinding{Role: role, Codes: codes}, nil
}

func (r *PgRepository) ListRoleBindings(ctx context.Context) ([]*permission.RoleBinding, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, array_agg(code ORDER BY code) FROM role_permissions GROUP BY role ORDER BY role`)
	if err != nil {
		return nil, cerr.WrapDBReadError("roles", err)
	}
	bindings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*permission.RoleBinding, error) {
		var b permission.RoleBinding
		err := row.Scan(&b.Role, &b.Codes)
		return &b, err
	})
	if err != nil {
		return nil, cerr.WrapDBReadError("roles", err)
	}
	return bindings, nil
}

func (r *PgRepository) UpsertRoleBinding(ctx context.Context, b *permission.RoleBinding) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return cerr.WrapDBWriteError("role", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role = $1`, b.Role); err != nil {
		return cerr.WrapDBWriteError("role", err)
	}
	if len(b.Codes) > 0 {
		_, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role, code)
			SELECT $1, c FROM unnest($2::text[]) AS c
			ON CONFLICT DO NOTHING`, b.Role, b.Codes)
		if err != nil {
			return cerr.WrapDBWriteError("role", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return cerr.WrapDBWriteError("role", err)
	}
	return nil
}

func (r *PgRepository) DeleteRoleBinding(ctx context.Context, role string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role = $1`, role); err != nil {
		return cerr.WrapDBWriteError("role", err)
	}
	return nil
}
