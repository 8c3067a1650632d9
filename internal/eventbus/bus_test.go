package eventbus

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishNewReachesEverySubscriber(t *testing.T) {
	b := New()
	_, ch1 := b.Subscribe(1)
	_, ch2 := b.Subscribe(1)

	b.PublishNew(EventTaskDelayed, "t1", "vendor delay", map[string]string{"project_id": "p1"})

	for _, ch := range []<-chan *Event{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, EventTaskDelayed, ev.Type)
		assert.Equal(t, "t1", ev.ResourceID)
		assert.Equal(t, "p1", ev.Metadata["project_id"])
		_, err := ulid.Parse(ev.ID)
		require.NoError(t, err)
		assert.False(t, ev.CreatedAt.IsZero())
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	b := New()
	_, ch := b.Subscribe(1)

	b.PublishNew(EventTaskCreated, "t1", "", nil)
	b.PublishNew(EventTaskCreated, "t2", "", nil)

	assert.Equal(t, "t1", (<-ch).ResourceID)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %s", ev.ResourceID)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	id, ch := b.Subscribe(1)
	b.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after the last subscriber left is a no-op.
	b.PublishNew(EventTaskDeleted, "t1", "", nil)
	b.Unsubscribe(id)
}
