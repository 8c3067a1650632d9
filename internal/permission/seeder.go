package permission

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// SeedDebounceInterval is the delay after a filesystem event before the seed
// file is re-read.
const SeedDebounceInterval = 100 * time.Millisecond

// SeedFile is the on-disk format of the permission seed:
//
//	permissions:
//	  - {code: "task:delay", name: Record task delay}
//	roles:
//	  manager: ["task:delay"]
type SeedFile struct {
	Permissions []*Permission       `yaml:"permissions"`
	Roles       map[string][]string `yaml:"roles"`
}

// Seeder makes the repository match a SeedFile and invalidates the cache so
// the next lookup sees the new bindings. Permissions and roles missing from
// the file are deleted.
type Seeder struct {
	path  string
	repo  Repository
	cache *Cache

	mu       sync.Mutex
	lastHash [sha256.Size]byte
}

func NewSeeder(path string, repo Repository, cache *Cache) *Seeder {
	return &Seeder{path: path, repo: repo, cache: cache}
}

// Load applies the seed file. It is a no-op when the content is unchanged
// since the previous Load.
func (s *Seeder) Load(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read permission seed %s: %w", s.path, err)
	}
	hash := sha256.Sum256(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.lastHash {
		return nil
	}

	var seed SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("parse permission seed %s: %w", s.path, err)
	}
	for _, p := range seed.Permissions {
		if p.ID == "" {
			p.ID = p.Code
		}
		if err := s.repo.UpsertPermission(ctx, p); err != nil {
			return err
		}
	}
	roles := make([]string, 0, len(seed.Roles))
	for role := range seed.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		b := &RoleBinding{Role: role, Codes: seed.Roles[role]}
		b.Normalize()
		if err := s.repo.UpsertRoleBinding(ctx, b); err != nil {
			return err
		}
	}
	removed, err := s.prune(ctx, &seed)
	if err != nil {
		return err
	}
	s.lastHash = hash
	s.cache.InvalidateAll()
	slog.InfoContext(ctx, "permission seed applied", "path", s.path, "permissions", len(seed.Permissions), "roles", len(roles), "removed", removed)
	return nil
}

// prune deletes stored permissions and role bindings that seed no longer
// names, so removing a role from the file revokes its access.
func (s *Seeder) prune(ctx context.Context, seed *SeedFile) (int, error) {
	removed := 0
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return 0, err
	}
	keep := make(map[string]struct{}, len(seed.Permissions))
	for _, p := range seed.Permissions {
		keep[p.Code] = struct{}{}
	}
	for _, p := range perms {
		if _, ok := keep[p.Code]; ok {
			continue
		}
		if err := s.repo.DeletePermission(ctx, p.Code); err != nil {
			return removed, err
		}
		removed++
	}

	bindings, err := s.repo.ListRoleBindings(ctx)
	if err != nil {
		return removed, err
	}
	for _, b := range bindings {
		if _, ok := seed.Roles[b.Role]; ok {
			continue
		}
		if err := s.repo.DeleteRoleBinding(ctx, b.Role); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Watch reloads the seed whenever it changes on disk, until ctx is done.
// The parent directory is watched so atomic replaces (write temp, rename)
// are seen.
func (s *Seeder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	name := filepath.Base(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.InfoContext(ctx, "watching permission seed", "path", s.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(SeedDebounceInterval, func() {
				if err := s.Load(ctx); err != nil {
					slog.ErrorContext(ctx, "failed to reload permission seed", "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.WarnContext(ctx, "fsnotify error", "error", err)
		}
	}
}
