package permission

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedV1 = `permissions:
  - {code: "task:delay", name: Record task delay}
  - {code: "task:edit", name: Edit task}
roles:
  manager: ["task:edit", "task:delay", "task:edit"]
  member: ["task:edit"]
`

const seedV2 = `permissions:
  - {code: "task:delay", name: Record task delay}
roles:
  member: ["task:edit", "task:delay"]
`

func TestSeederLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "permissions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedV1), 0o644))

	repo := newFakeRepo(nil)
	cache := NewCache(repo)
	s := NewSeeder(path, repo, cache)
	require.NoError(t, s.Load(ctx))

	codes, err := cache.Codes(ctx, "manager")
	require.NoError(t, err)
	assert.Equal(t, []string{"task:delay", "task:edit"}, codes)

	perms, err := repo.ListPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, perms, 2)
	assert.Equal(t, "task:delay", perms[0].ID, "id defaults to code")

	// Unchanged content does not invalidate.
	loads := repo.loads.Load()
	require.NoError(t, s.Load(ctx))
	_, err = cache.Codes(ctx, "manager")
	require.NoError(t, err)
	assert.Equal(t, loads, repo.loads.Load())
}

func TestSeederLoadRevokesRemovedEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "permissions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedV1), 0o644))

	repo := newFakeRepo(nil)
	cache := NewCache(repo)
	s := NewSeeder(path, repo, cache)
	require.NoError(t, s.Load(ctx))

	ok, err := cache.HasPermission(ctx, "manager", "task:edit")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(seedV2), 0o644))
	require.NoError(t, s.Load(ctx))

	ok, err = cache.HasPermission(ctx, "manager", "task:edit")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = cache.HasPermission(ctx, "member", "task:delay")
	require.NoError(t, err)
	assert.True(t, ok)

	perms, err := repo.ListPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "task:delay", perms[0].Code)

	bindings, err := repo.ListRoleBindings(ctx)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "member", bindings[0].Role)
}

func TestSeederRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rolez: {}\n"), 0o644))
	s := NewSeeder(path, newFakeRepo(nil), NewCache(newFakeRepo(nil)))
	assert.Error(t, s.Load(context.Background()))
}

func TestSeederWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "permissions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedV1), 0o644))

	repo := newFakeRepo(nil)
	cache := NewCache(repo)
	s := NewSeeder(path, repo, cache)
	require.NoError(t, s.Load(ctx))

	ok, err := cache.HasPermission(ctx, "member", "task:delay")
	require.NoError(t, err)
	require.False(t, ok)

	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	// Give the watcher time to register before touching the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(seedV2), 0o644))

	assert.Eventually(t, func() bool {
		ok, err := cache.HasPermission(ctx, "member", "task:delay")
		return err == nil && ok
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
