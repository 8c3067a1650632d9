package task

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kazz187/wbsguild/pkg/date"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is one node of a project's work breakdown tree. A task with an empty
// ParentTaskID is a root.
type Task struct {
	ID             string     `yaml:"id" json:"id"`
	ProjectID      string     `yaml:"project_id" json:"projectId"`
	ParentTaskID   string     `yaml:"parent_task_id,omitempty" json:"parentTaskId,omitempty"`
	Title          string     `yaml:"title" json:"title"`
	Description    string     `yaml:"description,omitempty" json:"description,omitempty"`
	Status         Status     `yaml:"status" json:"status"`
	Priority       Priority   `yaml:"priority,omitempty" json:"priority,omitempty"`
	AssigneeID     string     `yaml:"assignee_id,omitempty" json:"assigneeId,omitempty"`
	StartDate      *date.Date `yaml:"start_date,omitempty" json:"startDate,omitempty"`
	EndDate        *date.Date `yaml:"end_date,omitempty" json:"endDate,omitempty"`
	EstimatedHours float64    `yaml:"estimated_hours,omitempty" json:"estimatedHours"`
	ActualHours    float64    `yaml:"actual_hours,omitempty" json:"actualHours"`
	Progress       int        `yaml:"progress" json:"progress"`

	// OriginalEndDate is the first committed deadline, frozen by the first
	// recorded delay.
	OriginalEndDate *date.Date `yaml:"original_end_date,omitempty" json:"originalEndDate,omitempty"`
	DelayedDays     int        `yaml:"delayed_days" json:"delayedDays"`
	DelayCount      int        `yaml:"delay_count" json:"delayCount"`
	DelayReason     string     `yaml:"delay_reason,omitempty" json:"delayReason,omitempty"`
	LastDelayDate   *date.Date `yaml:"last_delay_date,omitempty" json:"lastDelayDate,omitempty"`

	CreatedAt time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updatedAt"`

	// Computed on read, never persisted.
	IsDelayed                bool `yaml:"-" json:"isDelayed"`
	ChildrenDelayedCount     int  `yaml:"-" json:"childrenDelayedCount"`
	ChildrenTotalDelayedDays int  `yaml:"-" json:"childrenTotalDelayedDays"`
}

func (t *Task) IsRoot() bool {
	return t.ParentTaskID == ""
}

func (t *Task) IsDone() bool {
	return t.Status == StatusDone
}

// NewID returns a fresh task id: "t" followed by eight hex characters.
func NewID() string {
	return "t" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
