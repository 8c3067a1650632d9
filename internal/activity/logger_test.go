package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/wbsguild/internal/eventbus"
	"github.com/kazz187/wbsguild/pkg/clog"
	"github.com/kazz187/wbsguild/pkg/panicerr"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(buf *syncBuffer) *slog.Logger {
	return slog.New(clog.NewAttributesHandler(slog.NewJSONHandler(buf, nil)))
}

func TestConsumeLogsEvents(t *testing.T) {
	buf := &syncBuffer{}
	l := NewLogger(eventbus.New(), newTestLogger(buf))

	ch := make(chan *eventbus.Event, 1)
	ch <- &eventbus.Event{
		ID:         "01J0000000000000000000000",
		Type:       eventbus.EventTaskDelayed,
		ResourceID: "t1",
		Payload:    "vendor delay",
		Metadata:   map[string]string{"project_id": "p1"},
	}
	close(ch)

	ctx := clog.WithComponent(context.Background(), "activity")
	require.NoError(t, l.consume(ctx, ch))

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	assert.Equal(t, "activity", rec["msg"])
	assert.Equal(t, "task.delayed", rec["type"])
	assert.Equal(t, "t1", rec["resource_id"])
	assert.Equal(t, "vendor delay", rec["payload"])
	assert.Equal(t, "p1", rec["project_id"])
	assert.Equal(t, "activity", rec["component"])
}

func TestStartStopsWithContext(t *testing.T) {
	buf := &syncBuffer{}
	bus := eventbus.New()
	l := NewLogger(bus, newTestLogger(buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := panicerr.Go(ctx, "activity", l.Start)

	// Keep publishing until the subscription is live.
	assert.Eventually(t, func() bool {
		bus.PublishNew(eventbus.EventProjectCreated, "p1", "", nil)
		return strings.Contains(buf.String(), `"resource_id":"p1"`)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("activity logger did not stop")
	}
	assert.Contains(t, buf.String(), "activity logger stopped")
}
