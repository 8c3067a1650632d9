package clog

import (
	"context"
	"maps"
	"sync"
)

// bag holds the attributes accumulated over the life of one request or job.
// The AttributesHandler appends them to every record logged with the context.
type bag struct {
	mu         sync.RWMutex
	attributes map[string]any
}

type bagKey struct{}

const (
	ErrorAttributeKey     = "error.message"
	StackAttributeKey     = "error.stack"
	ComponentAttributeKey = "component"
)

func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, bagKey{}, &bag{attributes: make(map[string]any)})
}

// Detach returns a fresh context carrying a copy of ctx's attributes but
// none of its cancellation, for work that outlives the request.
func Detach(ctx context.Context) context.Context {
	detached := ContextWithSlog(context.Background())
	AddAttributes(detached, GetAttributes(ctx))
	return detached
}

// WithComponent returns a context whose log lines are tagged with name.
func WithComponent(ctx context.Context, name string) context.Context {
	if bagFrom(ctx) == nil {
		ctx = ContextWithSlog(ctx)
	}
	AddAttribute(ctx, ComponentAttributeKey, name)
	return ctx
}

func bagFrom(ctx context.Context) *bag {
	b, _ := ctx.Value(bagKey{}).(*bag)
	return b
}

func AddAttribute(ctx context.Context, key string, value any) {
	b := bagFrom(ctx)
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attributes[key] = value
}

func AddAttributes(ctx context.Context, attributes map[string]any) {
	b := bagFrom(ctx)
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	mergeMaps(b.attributes, attributes)
}

func GetAttribute[T any](ctx context.Context, key string) T {
	var zero T
	b := bagFrom(ctx)
	if b == nil {
		return zero
	}
	b.mu.RLock()
	v, ok := b.attributes[key]
	b.mu.RUnlock()
	if !ok {
		return zero
	}
	typed, ok := v.(T)
	if !ok {
		return zero
	}
	return typed
}

func GetAttributes(ctx context.Context) map[string]any {
	b := bagFrom(ctx)
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return maps.Clone(b.attributes)
}

func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		vMap, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if dstMap, ok := dst[k].(map[string]any); ok {
			mergeMaps(dstMap, vMap)
		} else {
			dst[k] = vMap
		}
	}
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func GetError(ctx context.Context) error {
	return GetAttribute[error](ctx, ErrorAttributeKey)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

func GetStack(ctx context.Context) string {
	return GetAttribute[string](ctx, StackAttributeKey)
}
