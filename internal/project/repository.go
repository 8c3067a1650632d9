package project

import "context"

type Filter struct {
	Status   Status
	OwnerID  string
	MemberID string
}

func (f Filter) Match(p *Project) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.OwnerID != "" && p.OwnerID != f.OwnerID {
		return false
	}
	if f.MemberID != "" && !p.HasMember(f.MemberID) {
		return false
	}
	return true
}

// Repository persists projects together with their member lists.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context, f Filter) ([]*Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error

	// IsOwner and IsMember read the store directly on every call.
	IsOwner(ctx context.Context, projectID, userID string) (bool, error)
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
}
