// Package panicerr turns panics in background work into errors.
package panicerr

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/panics"
)

// Safe wraps fn so that a panic is returned as an error.
func Safe(fn func() error) func() error {
	return func() error {
		var (
			catcher panics.Catcher
			err     error
		)
		catcher.Try(func() {
			err = fn()
		})
		if err != nil {
			return err
		}
		return catcher.Recovered().AsError()
	}
}

func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return Safe(func() error { return fn(ctx) })()
	}
}

// Go runs fn on a new goroutine. A returned error or a recovered panic is
// logged with name. The returned channel is closed when fn is done.
func Go(ctx context.Context, name string, fn func(context.Context) error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := SafeContext(fn)(ctx); err != nil {
			slog.ErrorContext(ctx, "background task failed", "task", name, "error", err)
		}
	}()
	return done
}
