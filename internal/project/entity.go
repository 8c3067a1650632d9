package project

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kazz187/wbsguild/pkg/date"
)

type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusOnHold    Status = "on-hold"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusCompleted, StatusOnHold:
		return true
	}
	return false
}

type Project struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Status      Status     `yaml:"status" json:"status"`
	Priority    string     `yaml:"priority,omitempty" json:"priority,omitempty"`
	StartDate   *date.Date `yaml:"start_date,omitempty" json:"startDate,omitempty"`
	EndDate     *date.Date `yaml:"end_date,omitempty" json:"endDate,omitempty"`
	// Progress is recomputed from the leaf tasks after every task write.
	Progress  int       `yaml:"progress" json:"progress"`
	OwnerID   string    `yaml:"owner_id" json:"ownerId"`
	Color     string    `yaml:"color,omitempty" json:"color,omitempty"`
	MemberIDs []string  `yaml:"member_ids,omitempty" json:"memberIds"`
	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updatedAt"`

	// Computed on read, never persisted.
	IsDelayed        bool `yaml:"-" json:"isDelayed"`
	DelayedTasks     int  `yaml:"-" json:"delayedTasks"`
	TotalDelayedDays int  `yaml:"-" json:"totalDelayedDays"`
}

// EnsureOwnerMember adds the owner to MemberIDs if missing and dedupes the
// list.
func (p *Project) EnsureOwnerMember() {
	members := slices.Clone(p.MemberIDs)
	if p.OwnerID != "" {
		members = append(members, p.OwnerID)
	}
	slices.Sort(members)
	p.MemberIDs = slices.DeleteFunc(slices.Compact(members), func(id string) bool { return id == "" })
}

func (p *Project) HasMember(userID string) bool {
	return slices.Contains(p.MemberIDs, userID)
}

// NewID returns a fresh project id: "p" followed by eight hex characters.
func NewID() string {
	return "p" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
