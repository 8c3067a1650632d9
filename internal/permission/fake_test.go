package permission

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

type fakeRepo struct {
	mu       sync.Mutex
	perms    map[string]*Permission
	bindings map[string][]string

	loads   atomic.Int32
	delay   time.Duration
	loadErr error
}

func newFakeRepo(bindings map[string][]string) *fakeRepo {
	if bindings == nil {
		bindings = map[string][]string{}
	}
	return &fakeRepo{perms: map[string]*Permission{}, bindings: bindings}
}

func (f *fakeRepo) ListPermissions(_ context.Context) ([]*Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Permission, 0, len(f.perms))
	for _, p := range f.perms {
		cp := *p
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Permission) int {
		if a.Code < b.Code {
			return -1
		}
		return 1
	})
	return out, nil
}

func (f *fakeRepo) UpsertPermission(_ context.Context, p *Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.perms[p.Code] = &cp
	return nil
}

func (f *fakeRepo) DeletePermission(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.perms, code)
	return nil
}

func (f *fakeRepo) GetRoleBinding(_ context.Context, role string) (*RoleBinding, error) {
	f.loads.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &RoleBinding{Role: role, Codes: slices.Clone(f.bindings[role])}, nil
}

func (f *fakeRepo) ListRoleBindings(_ context.Context) ([]*RoleBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*RoleBinding, 0, len(f.bindings))
	for role, codes := range f.bindings {
		out = append(out, &RoleBinding{Role: role, Codes: slices.Clone(codes)})
	}
	return out, nil
}

func (f *fakeRepo) UpsertRoleBinding(_ context.Context, b *RoleBinding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings[b.Role] = slices.Clone(b.Codes)
	return nil
}

func (f *fakeRepo) DeleteRoleBinding(_ context.Context, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bindings, role)
	return nil
}

func (f *fakeRepo) setBinding(role string, codes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindings[role] = codes
}
