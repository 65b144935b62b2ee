package status

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakopako/signin/internal/flow"
	"github.com/jakopako/signin/internal/log"
	"github.com/jakopako/signin/internal/store"
)

// A Waiter is subscribed to a site's status slot and resolves with the
// first result written from another context.
type Waiter struct {
	siteID  string
	changes <-chan store.Change
	stop    func()
}

// Watch subscribes to the site's status slot. Call it before the page
// that is expected to report is opened.
func Watch(ctx context.Context, s store.Store, siteID string) (*Waiter, error) {
	changes, stop, err := s.Watch(ctx, StatusKey(siteID))
	if err != nil {
		return nil, fmt.Errorf("failed to watch status of site %s: %w", siteID, err)
	}
	return &Waiter{siteID: siteID, changes: changes, stop: stop}, nil
}

// Wait blocks until a remote result arrives or the timeout elapses. Changes
// written through the waiter's own store handle are ignored. The
// subscription is released when Wait returns, whichever way it ends.
func (w *Waiter) Wait(ctx context.Context, timeout time.Duration) flow.TaskResult {
	defer w.stop()
	logger := log.LoggerFromContext(ctx).With(slog.String("site", w.siteID))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case c, ok := <-w.changes:
			if !ok {
				if err := ctx.Err(); err != nil {
					return flow.Fail(fmt.Sprintf("stopped waiting for page result: %v", err))
				}
				return flow.Fail("status subscription ended unexpectedly")
			}
			if !c.Remote {
				continue
			}
			if c.Deleted {
				return Normalize(nil)
			}
			return decode(c.Value)
		case <-timer.C:
			logger.Warn(TimeoutMessage, slog.Duration("timeout", timeout))
			return flow.Fail(TimeoutMessage)
		case <-ctx.Done():
			return flow.Fail(fmt.Sprintf("stopped waiting for page result: %v", ctx.Err()))
		}
	}
}

// Await subscribes to the site's status slot and waits for a result.
func Await(ctx context.Context, s store.Store, siteID string, timeout time.Duration) flow.TaskResult {
	w, err := Watch(ctx, s, siteID)
	if err != nil {
		return flow.Fail(err.Error())
	}
	return w.Wait(ctx, timeout)
}
