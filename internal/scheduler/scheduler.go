// Package scheduler runs the daily check-in cycle. It opens each site's
// entry page in a background tab and waits for the page to report its
// result through the store. It never looks at page content itself.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakopako/signin/internal/flow"
	"github.com/jakopako/signin/internal/log"
	"github.com/jakopako/signin/internal/match"
	"github.com/jakopako/signin/internal/notify"
	"github.com/jakopako/signin/internal/site"
	"github.com/jakopako/signin/internal/status"
	"github.com/jakopako/signin/internal/store"
)

const (
	DefaultSpacing = 500 * time.Millisecond

	defaultSuccessText = "sign-in completed"
	defaultFailureText = "sign-in failed"
)

// Opener opens url in a new background browsing context that runs
// independently of the caller.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Capabilities bundles everything the scheduler needs from its
// environment.
type Capabilities struct {
	Store    store.Store
	Opener   Opener
	Notifier notify.Notifier
	// Now defaults to time.Now.
	Now func() time.Time
	// Sleep defaults to a context aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Config holds the scheduler settings of the configuration file.
type Config struct {
	TimeoutMS int           `yaml:"timeout_ms" env-default:"120000"`
	SpacingMS int           `yaml:"spacing_ms" env-default:"500"`
	Interval  time.Duration `yaml:"interval" env:"SIGNIN_INTERVAL" env-default:"1h"`
}

type Options struct {
	// Timeout is how long to wait for a page result.
	Timeout time.Duration
	// Spacing is the pause between two sites.
	Spacing time.Duration
	// Force runs sites even if they already ran today.
	Force bool
	// Only restricts the cycle to the site with this id.
	Only string
}

// OptionsFromConfig converts the configured values, falling back to the
// defaults for non-positive ones.
func OptionsFromConfig(c *Config) Options {
	o := Options{Timeout: status.DefaultTimeout, Spacing: DefaultSpacing}
	if c.TimeoutMS > 0 {
		o.Timeout = time.Duration(c.TimeoutMS) * time.Millisecond
	}
	if c.SpacingMS > 0 {
		o.Spacing = time.Duration(c.SpacingMS) * time.Millisecond
	}
	return o
}

type Scheduler struct {
	Capabilities
	Options
}

func New(c Capabilities, o Options) *Scheduler {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	if c.Notifier == nil {
		c.Notifier = notify.NewStdoutNotifier(nil)
	}
	if o.Timeout <= 0 {
		o.Timeout = status.DefaultTimeout
	}
	return &Scheduler{Capabilities: c, Options: o}
}

// State is the final state of a site within one cycle.
type State string

const (
	StateSkipped  State = "skipped"
	StateRecorded State = "recorded"
)

// Outcome describes what happened to one site during a cycle.
type Outcome struct {
	SiteID   string
	Name     string
	State    State
	Reason   string // why a site was skipped
	Result   flow.TaskResult
	Duration time.Duration
}

// IsSameDay reports whether last falls on the same calendar day as now,
// in now's location.
func IsSameDay(last, now time.Time) bool {
	if last.IsZero() {
		return false
	}
	ly, lm, ld := last.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ly == ny && lm == nm && ld == nd
}

// HasRunToday reports whether the site has a successful run today.
func (s *Scheduler) HasRunToday(ctx context.Context, siteID string) (bool, error) {
	last, ok, err := status.LastRun(ctx, s.Store, siteID)
	if err != nil || !ok {
		return false, err
	}
	return IsSameDay(last, s.Now()), nil
}

// RunCycle processes the sites one after another in registry order.
func (s *Scheduler) RunCycle(ctx context.Context, sites []site.Definition) []Outcome {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "scheduler"))
	outcomes := []Outcome{}

	for i, d := range sites {
		if ctx.Err() != nil {
			logger.Info("cycle interrupted", slog.String("reason", ctx.Err().Error()))
			break
		}
		if s.Only != "" && d.ID != s.Only {
			continue
		}
		siteLogger := logger.With(slog.String("site", d.ID))
		siteCtx := log.ContextWithLogger(ctx, siteLogger)

		if !d.IsActive() {
			siteLogger.Debug("site is inactive")
			outcomes = append(outcomes, Outcome{SiteID: d.ID, Name: d.DisplayName(), State: StateSkipped, Reason: "inactive"})
			continue
		}
		if !s.Force {
			done, err := s.HasRunToday(siteCtx, d.ID)
			if err != nil {
				siteLogger.Warn(fmt.Sprintf("failed to read run record, running anyway: %v", err))
			}
			if done {
				siteLogger.Info("already ran today, skipping")
				outcomes = append(outcomes, Outcome{SiteID: d.ID, Name: d.DisplayName(), State: StateSkipped, Reason: "already ran today"})
				continue
			}
		}

		outcomes = append(outcomes, s.runSite(siteCtx, d))

		// spacing keeps background tabs from piling up in the browser
		if s.Only == "" && i < len(sites)-1 {
			if err := s.Sleep(ctx, s.Spacing); err != nil {
				break
			}
		}
	}
	return outcomes
}

func (s *Scheduler) runSite(ctx context.Context, d site.Definition) Outcome {
	logger := log.LoggerFromContext(ctx)
	start := s.Now()
	logger.Info("starting site")

	result := s.trigger(ctx, d)

	if result.Success {
		if err := status.MarkRun(ctx, s.Store, d.ID, s.Now()); err != nil {
			logger.Error(fmt.Sprintf("failed to write run record: %v", err))
		}
	}
	s.notify(ctx, d, result)

	duration := s.Now().Sub(start)
	logger.Info("finished site", slog.Bool("success", result.Success), slog.String("message", result.Message), slog.Duration("duration", duration))
	return Outcome{
		SiteID:   d.ID,
		Name:     d.DisplayName(),
		State:    StateRecorded,
		Result:   result,
		Duration: duration,
	}
}

// trigger clears the status slot, subscribes to it, opens the entry page
// and waits for the page's report. The order matters: a stale result of
// an earlier cycle must never be mistaken for this one.
func (s *Scheduler) trigger(ctx context.Context, d site.Definition) flow.TaskResult {
	logger := log.LoggerFromContext(ctx)
	if err := status.Clear(ctx, s.Store, d.ID); err != nil {
		return flow.Fail(fmt.Sprintf("failed to clear status: %v", err))
	}
	w, err := status.Watch(ctx, s.Store, d.ID)
	if err != nil {
		return flow.Fail(err.Error())
	}
	target := match.AppendMarker(d.EntryURL)
	if err := s.Opener.Open(ctx, target); err != nil {
		// the page might still come up, keep waiting
		logger.Warn(fmt.Sprintf("error while opening %s: %v", target, err))
	}
	return w.Wait(ctx, s.Timeout)
}

func (s *Scheduler) notify(ctx context.Context, d site.Definition, r flow.TaskResult) {
	text := r.Message
	if text == "" {
		text = defaultFailureText
		if r.Success {
			text = defaultSuccessText
		}
	}
	n := notify.Notification{
		Title:   d.DisplayName(),
		Text:    text,
		SiteID:  d.ID,
		Success: r.Success,
		Time:    s.Now(),
	}
	if err := s.Notifier.Notify(ctx, n); err != nil {
		logger := log.LoggerFromContext(ctx)
		logger.Warn(fmt.Sprintf("error while sending notification: %v", err))
		notify.NewStdoutNotifier(nil).Notify(ctx, n)
	}
}

// Daemon runs a cycle right away and then once per interval until ctx
// ends. Sites that already ran today are skipped by every later cycle.
func (s *Scheduler) Daemon(ctx context.Context, sites []site.Definition, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %v", interval)
	}
	logger := log.LoggerFromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		outcomes := s.RunCycle(ctx, sites)
		logger.Info("cycle finished", slog.Int("sites", len(outcomes)), slog.Time("next", s.Now().Add(interval)))
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
