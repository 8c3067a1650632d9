// Package activity writes every change event to the log.
package activity

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/kazz187/wbsguild/internal/eventbus"
	"github.com/kazz187/wbsguild/pkg/clog"
)

const bufSize = 256

type Logger struct {
	bus    *eventbus.Bus
	logger *slog.Logger
}

func NewLogger(bus *eventbus.Bus, logger *slog.Logger) *Logger {
	return &Logger{bus: bus, logger: logger}
}

// Start logs events until ctx is done.
func (l *Logger) Start(ctx context.Context) error {
	subID, ch := l.bus.Subscribe(bufSize)
	defer l.bus.Unsubscribe(subID)

	ctx = clog.WithComponent(ctx, "activity")
	l.logger.InfoContext(ctx, "activity logger started")
	err := l.consume(ctx, ch)
	l.logger.InfoContext(ctx, "activity logger stopped")
	return err
}

func (l *Logger) consume(ctx context.Context, ch <-chan *eventbus.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			l.log(ctx, event)
		}
	}
}

func (l *Logger) log(ctx context.Context, event *eventbus.Event) {
	attrs := []slog.Attr{
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.String("resource_id", event.ResourceID),
	}
	if event.Payload != "" {
		attrs = append(attrs, slog.String("payload", event.Payload))
	}
	for _, k := range slices.Sorted(maps.Keys(event.Metadata)) {
		attrs = append(attrs, slog.String(k, event.Metadata[k]))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "activity", attrs...)
}
