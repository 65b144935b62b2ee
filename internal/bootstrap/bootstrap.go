// Package bootstrap is what runs inside every opened page: it decides
// whether the page belongs to a scheduled sign-in and, if so, runs the
// site's flow and reports the result.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jakopako/signin/internal/flow"
	"github.com/jakopako/signin/internal/log"
	"github.com/jakopako/signin/internal/match"
	"github.com/jakopako/signin/internal/site"
	"github.com/jakopako/signin/internal/status"
	"github.com/jakopako/signin/internal/store"
)

// Page is a page the bootstrap can inspect and run flows against.
type Page interface {
	flow.Page
	URL(ctx context.Context) (string, error)
	// SessionValue and SetSessionValue access storage that lives as long
	// as the tab, surviving same-tab navigations.
	SessionValue(ctx context.Context, key string) (string, error)
	SetSessionValue(ctx context.Context, key, value string) error
}

// Run runs the flow of the site matching the page url and reports its
// result through s. It returns false if the page was left alone.
func Run(ctx context.Context, sites []site.Definition, page Page, s store.Store) (bool, error) {
	logger := log.LoggerFromContext(ctx)

	url, err := page.URL(ctx)
	if err != nil {
		return false, fmt.Errorf("error while reading page url: %w", err)
	}
	idx := match.Select(sites, url)
	if idx < 0 {
		return false, nil
	}
	d := sites[idx]
	logger = logger.With(slog.String("site", d.ID))

	scheduled, err := isScheduled(ctx, page, url)
	if err != nil {
		return false, err
	}
	if !scheduled {
		logger.Debug(fmt.Sprintf("%s was not opened by the scheduler, leaving it alone", url))
		return false, nil
	}
	if err := page.SetSessionValue(ctx, match.SessionFlagKey, "1"); err != nil {
		return false, fmt.Errorf("error while setting session flag: %w", err)
	}

	logger.Info("running sign-in flow")
	result := flow.Run(log.ContextWithLogger(ctx, logger), page, d.Steps)
	logger.Info("sign-in flow finished", slog.Bool("success", result.Success), slog.String("message", result.Message))

	if err := status.Report(ctx, s, d.ID, result); err != nil {
		return true, err
	}
	return true, nil
}

func isScheduled(ctx context.Context, page Page, url string) (bool, error) {
	if match.HasMarker(url) {
		return true, nil
	}
	v, err := page.SessionValue(ctx, match.SessionFlagKey)
	if err != nil {
		return false, fmt.Errorf("error while reading session flag: %w", err)
	}
	return v == "1", nil
}
