package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jakopako/signin/internal/store"
)

// RunRecord marks the last successful run of a site.
type RunRecord struct {
	LastRun time.Time `json:"last_run"`
}

// MarkRun records a successful run of a site at the given time.
func MarkRun(ctx context.Context, s store.Store, siteID string, at time.Time) error {
	data, err := json.Marshal(RunRecord{LastRun: at})
	if err != nil {
		return err
	}
	return s.Set(ctx, LastRunKey(siteID), data)
}

// LastRun returns the time of the last successful run of a site.
func LastRun(ctx context.Context, s store.Store, siteID string) (time.Time, bool, error) {
	data, ok, err := s.Get(ctx, LastRunKey(siteID))
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	var r RunRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return time.Time{}, false, fmt.Errorf("malformed run record for site %s: %w", siteID, err)
	}
	return r.LastRun, !r.LastRun.IsZero(), nil
}
