package browser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jakopako/signin/internal/bootstrap"
	"github.com/jakopako/signin/internal/scheduler"
)

var (
	_ bootstrap.Page    = (*Tab)(nil)
	_ scheduler.Opener = (*Browser)(nil)
)

func TestAllocatorOptions(t *testing.T) {
	base := len(allocatorOptions(&Config{}))
	full := len(allocatorOptions(&Config{
		ShowWindow:  true,
		UserAgent:   "ua",
		ExecPath:    "/usr/bin/chromium",
		UserDataDir: "/tmp/profile",
	}))
	if full != base+4 {
		t.Fatalf("expected 4 extra options, got %d", full-base)
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandHome("~/.signin/profile"); got != filepath.Join(home, ".signin/profile") {
		t.Fatalf("unexpected path %s", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Fatalf("unexpected path %s", got)
	}
}

func TestPageTimeout(t *testing.T) {
	if d := (&Config{}).pageTimeout(); d != DefaultPageTimeout {
		t.Fatalf("expected default timeout, got %v", d)
	}
	if d := (&Config{PageTimeoutMS: 1500}).pageTimeout(); d != 1500*time.Millisecond {
		t.Fatalf("unexpected timeout %v", d)
	}
}

func TestScripts(t *testing.T) {
	if s := textScript(""); !strings.Contains(s, "document.body") {
		t.Fatalf("unexpected body script %s", s)
	}
	s := textScript(`a[title="x"]`)
	if !strings.Contains(s, `document.querySelector("a[title=\"x\"]")`) {
		t.Fatalf("selector not quoted correctly: %s", s)
	}
	c := clickScript(`#main button[data-evt="signin"]`)
	if !strings.Contains(c, `document.querySelector("#main button[data-evt=\"signin\"]")`) || !strings.Contains(c, "el.click()") {
		t.Fatalf("unexpected click script %s", c)
	}
}

func TestScreenshotPath(t *testing.T) {
	at := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	got := screenshotPath("debug", "https://juejin.cn/user/center/signin?auto_signin=1", at)
	if got != filepath.Join("debug", "juejin.cn-20240301-083000.png") {
		t.Fatalf("unexpected path %s", got)
	}
	if got := screenshotPath("", "not a url", at); got != "page-20240301-083000.png" {
		t.Fatalf("unexpected path %s", got)
	}
}

func runningTab(parent context.Context, tabs *sync.WaitGroup, d time.Duration) {
	tabs.Add(1)
	go func() {
		defer tabs.Done()
		ctx, cancel := context.WithTimeout(parent, d)
		defer cancel()
		<-ctx.Done()
	}()
}

func TestWaitTabsAbortsWhenInterrupted(t *testing.T) {
	parent, cancelTabs := context.WithCancel(context.Background())
	defer cancelTabs()
	var tabs sync.WaitGroup
	runningTab(parent, &tabs, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	waitTabs(ctx, &tabs, cancelTabs)
	if time.Since(start) > 5*time.Second {
		t.Fatal("interrupted close waited for the tab timeout")
	}
	if parent.Err() == nil {
		t.Fatal("expected running tabs to be cancelled")
	}
}

func TestWaitTabsLetsTabsFinish(t *testing.T) {
	parent, cancelTabs := context.WithCancel(context.Background())
	defer cancelTabs()
	var tabs sync.WaitGroup
	runningTab(parent, &tabs, 20*time.Millisecond)

	waitTabs(context.Background(), &tabs, cancelTabs)
	if parent.Err() != nil {
		t.Fatal("tabs must not be cancelled without an interrupt")
	}
}
