// Package browser drives a chrome instance with chromedp. Every opened
// url gets its own background tab which runs the page bootstrap
// independently of the caller.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/jakopako/signin/internal/bootstrap"
	"github.com/jakopako/signin/internal/log"
	"github.com/jakopako/signin/internal/match"
	"github.com/jakopako/signin/internal/site"
	"github.com/jakopako/signin/internal/store"
)

const DefaultPageTimeout = 150 * time.Second

type Config struct {
	ShowWindow    bool   `yaml:"show_window" env:"SIGNIN_SHOW_WINDOW"`
	UserDataDir   string `yaml:"user_data_dir" env:"SIGNIN_USER_DATA_DIR"`
	UserAgent     string `yaml:"user_agent"`
	ExecPath      string `yaml:"exec_path"`
	DebugDir      string `yaml:"debug_dir" env-default:"./debug"`
	PageTimeoutMS int    `yaml:"page_timeout_ms" env-default:"150000"`
}

func (c *Config) pageTimeout() time.Duration {
	if c.PageTimeoutMS <= 0 {
		return DefaultPageTimeout
	}
	return time.Duration(c.PageTimeoutMS) * time.Millisecond
}

func allocatorOptions(c *Config) []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1920, 1080),
	)
	if c.ShowWindow {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if c.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.UserAgent))
	}
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	if c.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(expandHome(c.UserDataDir)))
	}
	return opts
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}

// Browser owns the chrome process. It implements the scheduler's opener.
type Browser struct {
	*Config
	sites []site.Definition
	store store.Store

	allocContext context.Context
	cancelAlloc  context.CancelFunc
	browserCtx   context.Context
	cancelBrows  context.CancelFunc
	// tabsCtx is the parent of every tab context, cancelTabs aborts all
	// running page bootstraps at once
	tabsCtx    context.Context
	cancelTabs context.CancelFunc
	// tabs tracks running page bootstraps
	tabs sync.WaitGroup
}

// New starts chrome. Pages report their results through s, which should
// be a store handle distinct from the scheduler's.
func New(ctx context.Context, c *Config, sites []site.Definition, s store.Store) (*Browser, error) {
	logger := log.LoggerFromContext(ctx)
	allocContext, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(c)...)
	browserCtx, cancelBrows := chromedp.NewContext(allocContext)
	tabsCtx, cancelTabs := context.WithCancel(browserCtx)
	b := &Browser{
		Config:       c,
		sites:        sites,
		store:        s,
		allocContext: allocContext,
		cancelAlloc:  cancelAlloc,
		browserCtx:   browserCtx,
		cancelBrows:  cancelBrows,
		tabsCtx:      tabsCtx,
		cancelTabs:   cancelTabs,
	}

	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		if !log.Debug {
			return nil
		}
		_, product, _, userAgent, _, err := cdpbrowser.GetVersion().Do(ctx)
		if err != nil {
			logger.Warn("failed to get chrome version", slog.String("err", err.Error()))
			return nil
		}
		logger.Debug(fmt.Sprintf("chrome version: product=%s, userAgent=%s", product, userAgent))
		return nil
	}))
	if err != nil {
		b.cancelTabs()
		b.cancelBrows()
		b.cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return b, nil
}

// Open opens urlStr in a new background tab and returns as soon as the
// tab exists. The page bootstrap runs in its own goroutine.
func (b *Browser) Open(ctx context.Context, urlStr string) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("url", urlStr))

	var id target.ID
	err := chromedp.Run(b.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		id, err = target.CreateTarget(urlStr).WithBackground(true).Do(b.browserExecutor(ctx))
		return err
	}))
	if err != nil {
		return fmt.Errorf("failed to open tab for %s: %w", urlStr, err)
	}
	logger.Debug("opened background tab", slog.String("target", string(id)))

	tabCtx, cancelTab := chromedp.NewContext(b.tabsCtx, chromedp.WithTargetID(id))
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.pageTimeout())
	tabCtx = log.ContextWithLogger(tabCtx, logger)

	b.tabs.Add(1)
	go func() {
		defer b.tabs.Done()
		defer b.closeTarget(logger, id)
		defer cancelTab()
		defer cancelTimeout()
		b.runTab(tabCtx, urlStr)
	}()
	return nil
}

func (b *Browser) browserExecutor(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser)
}

func (b *Browser) runTab(ctx context.Context, urlStr string) {
	logger := log.LoggerFromContext(ctx)
	tab := &Tab{ctx: ctx}

	if err := chromedp.Run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		logger.Error("page did not load", slog.String("err", err.Error()))
		return
	}
	// The flag outlives redirects within the tab, the marker does not.
	if match.HasMarker(urlStr) {
		if err := tab.SetSessionValue(ctx, match.SessionFlagKey, "1"); err != nil {
			logger.Warn("failed to set session flag", slog.String("err", err.Error()))
		}
	}

	handled, err := bootstrap.Run(ctx, b.sites, tab, b.store)
	if err != nil {
		logger.Error("page bootstrap failed", slog.String("err", err.Error()))
	} else if !handled {
		logger.Warn("no sign-in flow ran in the opened tab")
	}

	if log.Debug {
		if err := b.screenshot(ctx, urlStr); err != nil {
			logger.Warn("failed to capture screenshot", slog.String("err", err.Error()))
		}
	}
}

func (b *Browser) closeTarget(logger *slog.Logger, id target.ID) {
	err := chromedp.Run(b.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.CloseTarget(id).Do(b.browserExecutor(ctx))
	}))
	if err != nil {
		logger.Debug("failed to close tab", slog.String("err", err.Error()))
	}
}

func (b *Browser) screenshot(ctx context.Context, urlStr string) error {
	if b.DebugDir != "" {
		if err := os.MkdirAll(b.DebugDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create debug directory: %v", err)
		}
	}
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return err
	}
	filename := screenshotPath(b.DebugDir, urlStr, time.Now())
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("writing screenshot to file %s", filename))
	return os.WriteFile(filename, buf, 0644)
}

func screenshotPath(dir, urlStr string, t time.Time) string {
	host := "page"
	if u, err := url.Parse(urlStr); err == nil && u.Host != "" {
		host = u.Host
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.png", host, t.Format("20060102-150405")))
}

// Close waits for running tabs to finish and shuts chrome down. Once ctx
// is done, running tabs are aborted instead of waited for.
func (b *Browser) Close(ctx context.Context) {
	waitTabs(ctx, &b.tabs, b.cancelTabs)
	b.cancelTabs()
	b.cancelBrows()
	b.cancelAlloc()
}

func waitTabs(ctx context.Context, tabs *sync.WaitGroup, cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		tabs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.LoggerFromContext(ctx).Info("aborting running tabs")
		cancel()
		<-done
	}
}
