// Package tasks runs detached work items: side effects that must never be
// awaited by the caller that spawned them and whose failures are only logged.
package tasks

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/weiawesome/wes-io-live/community-chat/pkg/log"
)

// Runner tracks in-flight tasks so shutdown can drain them.
type Runner struct {
	wg conc.WaitGroup
}

func NewRunner() *Runner {
	return &Runner{}
}

// Go runs fn in its own goroutine with a context bounded by timeout that
// keeps parent's logger but not its cancellation. Errors and panics are
// logged under name and never propagate.
func (r *Runner) Go(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) {
	base := log.Detach(parent)
	r.wg.Go(func() {
		ctx, cancel := context.WithTimeout(base, timeout)
		defer cancel()

		l := log.Ctx(ctx)
		var pc panics.Catcher
		var err error
		pc.Try(func() { err = fn(ctx) })

		if rec := pc.Recovered(); rec != nil {
			l.Error().Str("task", name).Interface("panic", rec.Value).Bytes("stack", rec.Stack).Msg("detached task panicked")
			return
		}
		if err != nil {
			l.Warn().Err(err).Str("task", name).Msg("detached task failed")
		}
	})
}

// Wait blocks until every task finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
