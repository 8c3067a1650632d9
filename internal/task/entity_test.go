package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 9)
	assert.Equal(t, byte('t'), id[0])
	assert.NotEqual(t, id, NewID())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusTodo.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusDone.Valid())
	assert.False(t, Status("blocked").Valid())
	assert.True(t, PriorityHigh.Valid())
	assert.False(t, Priority("urgent").Valid())
}

func TestFilterMatch(t *testing.T) {
	tk := &Task{ProjectID: "p1", Status: StatusDone, AssigneeID: "u1"}
	assert.True(t, Filter{}.Match(tk))
	assert.True(t, Filter{ProjectID: "p1", Status: StatusDone}.Match(tk))
	assert.False(t, Filter{ProjectID: "p2"}.Match(tk))
	assert.False(t, Filter{AssigneeID: "u2"}.Match(tk))
}
