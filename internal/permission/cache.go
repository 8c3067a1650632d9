package permission

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
)

// codeSet is never mutated after it is stored in the cache.
type codeSet map[string]struct{}

func newCodeSet(codes []string) codeSet {
	s := make(codeSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Cache memoizes role -> permission codes. Entries are loaded on first use,
// at most one load per role is in flight, and an entry stays until it is
// invalidated.
type Cache struct {
	repo Repository

	mu      sync.RWMutex
	entries map[string]codeSet
	// epoch changes on every invalidation. A load that started in an older
	// epoch returns its result but does not store it.
	epoch uint64

	group singleflight.Group
}

func NewCache(repo Repository) *Cache {
	return &Cache{
		repo:    repo,
		entries: make(map[string]codeSet),
	}
}

func (c *Cache) HasPermission(ctx context.Context, role, code string) (bool, error) {
	set, err := c.get(ctx, role)
	if err != nil {
		return false, err
	}
	_, ok := set[code]
	return ok, nil
}

// Codes returns the sorted permission codes of role.
func (c *Cache) Codes(ctx context.Context, role string) ([]string, error) {
	set, err := c.get(ctx, role)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(set))
	for code := range set {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes, nil
}

// Invalidate drops the cached entry of role.
func (c *Cache) Invalidate(role string) {
	c.mu.Lock()
	delete(c.entries, role)
	c.epoch++
	c.mu.Unlock()
	c.group.Forget(role)
	slog.Info("permission cache invalidated", "role", role)
}

// InvalidateAll drops every cached entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	roles := make([]string, 0, len(c.entries))
	for role := range c.entries {
		roles = append(roles, role)
	}
	c.entries = make(map[string]codeSet)
	c.epoch++
	c.mu.Unlock()
	for _, role := range roles {
		c.group.Forget(role)
	}
	slog.Info("permission cache invalidated", "roles", len(roles))
}

func (c *Cache) lookup(role string) (codeSet, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.entries[role]
	return set, c.epoch, ok
}

func (c *Cache) get(ctx context.Context, role string) (codeSet, error) {
	if set, _, ok := c.lookup(role); ok {
		return set, nil
	}
	v, err, _ := c.group.Do(role, func() (any, error) {
		set, epoch, ok := c.lookup(role)
		if ok {
			return set, nil
		}
		// The load is shared by every waiter, so it must not die with the
		// first caller's request.
		b, err := c.repo.GetRoleBinding(context.WithoutCancel(ctx), role)
		if err != nil {
			return nil, err
		}
		set = newCodeSet(b.Codes)

		c.mu.Lock()
		if c.epoch == epoch {
			c.entries[role] = set
		}
		c.mu.Unlock()
		slog.DebugContext(ctx, "permission cache loaded", "role", role, "codes", len(set))
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(codeSet), nil
}
