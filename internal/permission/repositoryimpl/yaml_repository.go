package repositoryimpl

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/wbsguild/internal/permission"
	"github.com/kazz187/wbsguild/pkg/cerr"
	"github.com/kazz187/wbsguild/pkg/storage"
)

const (
	permissionsPrefix = "permissions"
	rolesPrefix       = "roles"
)

// YAMLRepository stores one file per permission and one per role binding.
type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func permissionPath(code string) string {
	return fmt.Sprintf("%s/%s.yaml", permissionsPrefix, fileName(code))
}

func rolePath(role string) string {
	return fmt.Sprintf("%s/%s.yaml", rolesPrefix, fileName(role))
}

// fileName keeps codes like "task:delay" or "a/b" to a single path element.
func fileName(key string) string {
	return strings.NewReplacer("/", "_", ":", "__").Replace(key)
}

func (r *YAMLRepository) ListPermissions(ctx context.Context) ([]*permission.Permission, error) {
	perms, err := readAll[permission.Permission](ctx, r.storage, permissionsPrefix, "permission")
	if err != nil {
		return nil, err
	}
	slices.SortFunc(perms, func(a, b *permission.Permission) int { return strings.Compare(a.Code, b.Code) })
	return perms, nil
}

func (r *YAMLRepository) UpsertPermission(ctx context.Context, p *permission.Permission) error {
	return write(ctx, r.storage, permissionPath(p.Code), p, "permission")
}

func (r *YAMLRepository) DeletePermission(ctx context.Context, code string) error {
	return remove(ctx, r.storage, permissionPath(code), "permission")
}

func (r *YAMLRepository) GetRoleBinding(ctx context.Context, role string) (*permission.RoleBinding, error) {
	exists, err := r.storage.Exists(ctx, rolePath(role))
	if err != nil {
		return nil, cerr.WrapStorageReadError("role", err)
	}
	if !exists {
		return &permission.RoleBinding{Role: role, Codes: []string{}}, nil
	}
	data, err := r.storage.Read(ctx, rolePath(role))
	if err != nil {
		return nil, cerr.WrapStorageReadError("role", err)
	}
	var b permission.RoleBinding
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal role: %w", err))
	}
	return &b, nil
}

func (r *YAMLRepository) ListRoleBindings(ctx context.Context) ([]*permission.RoleBinding, error) {
	bindings, err := readAll[permission.RoleBinding](ctx, r.storage, rolesPrefix, "role")
	if err != nil {
		return nil, err
	}
	slices.SortFunc(bindings, func(a, b *permission.RoleBinding) int { return strings.Compare(a.Role, b.Role) })
	return bindings, nil
}

func (r *YAMLRepository) UpsertRoleBinding(ctx context.Context, b *permission.RoleBinding) error {
	return write(ctx, r.storage, rolePath(b.Role), b, "role")
}

func (r *YAMLRepository) DeleteRoleBinding(ctx context.Context, role string) error {
	return remove(ctx, r.storage, rolePath(role), "role")
}

func remove(ctx context.Context, s storage.Storage, path string, target string) error {
	if err := s.Delete(ctx, path); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return cerr.WrapStorageDeleteError(target, err)
	}
	return nil
}

func write(ctx context.Context, s storage.Storage, path string, v any, target string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal %s: %w", target, err))
	}
	if err := s.Write(ctx, path, data); err != nil {
		return cerr.WrapStorageWriteError(target, err)
	}
	return nil
}

func readAll[T any](ctx context.Context, s storage.Storage, prefix, target string) ([]*T, error) {
	paths, err := s.List(ctx, prefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError(target, err)
	}
	out := make([]*T, 0, len(paths))
	for _, p := range paths {
		data, err := s.Read(ctx, p)
		if err != nil {
			return nil, cerr.WrapStorageReadError(target, err)
		}
		var v T
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal %s: %w", target, err))
		}
		out = append(out, &v)
	}
	return out, nil
}
