// Package status exchanges flow results and run records through the
// shared store. Pages report into a per-site status slot, the scheduler
// waits for that report from its own context.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakopako/signin/internal/flow"
	"github.com/jakopako/signin/internal/log"
	"github.com/jakopako/signin/internal/store"
)

const (
	DefaultTimeout = 2 * time.Minute

	TimeoutMessage  = "timed out waiting for page result"
	NoResultMessage = "page returned no result"
)

func StatusKey(siteID string) string  { return "status:" + siteID }
func LastRunKey(siteID string) string { return "last:" + siteID }

// Normalize coerces a decoded result into its canonical form. A nil
// result is a failure.
func Normalize(r *flow.TaskResult) flow.TaskResult {
	if r == nil {
		return flow.Fail(NoResultMessage)
	}
	return flow.TaskResult{Success: r.Success, Message: r.Message}
}

// decode accepts anything a page might have written. Unknown or missing
// fields fall back to their zero values.
func decode(data []byte) flow.TaskResult {
	if len(data) == 0 {
		return Normalize(nil)
	}
	var raw struct {
		Success any     `json:"success"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return flow.Fail(fmt.Sprintf("malformed page result: %v", err))
	}
	r := flow.TaskResult{Success: truthy(raw.Success)}
	if raw.Message != nil {
		r.Message = *raw.Message
	}
	return r
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

// Report writes the result of a page run into the site's status slot.
func Report(ctx context.Context, s store.Store, siteID string, result flow.TaskResult) error {
	data, err := json.Marshal(Normalize(&result))
	if err != nil {
		return err
	}
	if err := s.Set(ctx, StatusKey(siteID), data); err != nil {
		return fmt.Errorf("failed to report result for site %s: %w", siteID, err)
	}
	log.LoggerFromContext(ctx).Debug("reported result", slog.String("site", siteID), slog.Bool("success", result.Success))
	return nil
}

// Clear removes the site's status slot before a new run.
func Clear(ctx context.Context, s store.Store, siteID string) error {
	return s.Delete(ctx, StatusKey(siteID))
}

// LastResult returns the result currently stored in the site's status slot.
func LastResult(ctx context.Context, s store.Store, siteID string) (flow.TaskResult, bool, error) {
	data, ok, err := s.Get(ctx, StatusKey(siteID))
	if err != nil || !ok {
		return flow.TaskResult{}, false, err
	}
	return decode(data), true, nil
}
