package permission

import "context"

type Repository interface {
	ListPermissions(ctx context.Context) ([]*Permission, error)
	UpsertPermission(ctx context.Context, p *Permission) error
	// DeletePermission is a no-op for unknown codes.
	DeletePermission(ctx context.Context, code string) error

	// GetRoleBinding returns an empty binding (not an error) for unknown roles.
	GetRoleBinding(ctx context.Context, role string) (*RoleBinding, error)
	ListRoleBindings(ctx context.Context) ([]*RoleBinding, error)
	UpsertRoleBinding(ctx context.Context, b *RoleBinding) error
	// DeleteRoleBinding is a no-op for unknown roles.
	DeleteRoleBinding(ctx context.Context, role string) error
}
