package permission

import (
	"context"
	"slices"
)

// MembershipStore answers project ownership and membership questions
// straight from the store.
type MembershipStore interface {
	IsOwner(ctx context.Context, projectID, userID string) (bool, error)
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
}

// Checker combines cached role permissions with uncached project
// membership.
type Checker struct {
	cache   *Cache
	repo    Repository
	members MembershipStore
}

func NewChecker(cache *Cache, repo Repository, members MembershipStore) *Checker {
	return &Checker{cache: cache, repo: repo, members: members}
}

func (c *Checker) HasPermission(ctx context.Context, role, code string) (bool, error) {
	return c.cache.HasPermission(ctx, role, code)
}

// HasProjectPermission reports whether userID owns or belongs to projectID.
// Membership changes must be visible immediately, so nothing is cached.
func (c *Checker) HasProjectPermission(ctx context.Context, userID, projectID string) (bool, error) {
	owner, err := c.members.IsOwner(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	if owner {
		return true, nil
	}
	return c.members.IsMember(ctx, projectID, userID)
}

func (c *Checker) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return c.repo.ListPermissions(ctx)
}

// PermissionsForRole returns the permissions granted to role. Codes without
// a matching permission record are skipped.
func (c *Checker) PermissionsForRole(ctx context.Context, role string) ([]*Permission, error) {
	codes, err := c.cache.Codes(ctx, role)
	if err != nil {
		return nil, err
	}
	all, err := c.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(p *Permission) bool {
		_, found := slices.BinarySearch(codes, p.Code)
		return !found
	}), nil
}

// Refresh invalidates role, or every role when role is empty.
func (c *Checker) Refresh(role string) {
	if role == "" {
		c.cache.InvalidateAll()
		return
	}
	c.cache.Invalidate(role)
}
