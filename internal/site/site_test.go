package site

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jakopako/signin/internal/flow"
	"github.com/jakopako/signin/internal/match"
)

func TestDefault(t *testing.T) {
	sites, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sites) != 2 || sites[0].ID != "juejin" || sites[1].ID != "v2ex" {
		t.Fatalf("unexpected built-in sites: %+v", sites)
	}
	for _, s := range sites {
		if !s.IsActive() {
			t.Errorf("expected site %s to be active by default", s.ID)
		}
		if !match.Matches(s.Matches, match.AppendMarker(s.EntryURL)) {
			t.Errorf("site %s does not match its own entry url", s.ID)
		}
	}
	if i := match.Select(sites, "https://www.v2ex.com/mission/daily?auto_signin=1"); i != 1 {
		t.Fatalf("expected v2ex to be selected, got %d", i)
	}
}

func TestValidate(t *testing.T) {
	inactive := false
	ok := Definition{
		ID:       "a",
		EntryURL: "https://a.com/",
		Matches:  []string{"https://a.com/*"},
		Active:   &inactive,
		Steps:    flow.Steps{flow.Result{Success: true}},
	}
	if err := Validate([]Definition{ok}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.IsActive() {
		t.Fatal("expected site to be inactive")
	}

	tests := []struct {
		mutate   func(d *Definition)
		contains string
	}{
		{func(d *Definition) { d.ID = "" }, "site without id"},
		{func(d *Definition) { d.EntryURL = "a.com" }, "invalid entry_url"},
		{func(d *Definition) { d.Matches = nil }, "no match patterns"},
		{func(d *Definition) { d.Steps = nil }, "no steps"},
		{func(d *Definition) { d.Steps = flow.Steps{flow.Wait{}} }, "selector must not be empty"},
	}
	for _, tt := range tests {
		d := ok
		tt.mutate(&d)
		err := Validate([]Definition{d})
		if err == nil || !strings.Contains(err.Error(), tt.contains) {
			t.Errorf("expected error containing %q, got %v", tt.contains, err)
		}
	}

	err := Validate([]Definition{ok, ok})
	if err == nil || !strings.Contains(err.Error(), "duplicate site id a") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	a := `
sites:
  - id: a
    name: Site A
    entry_url: https://a.com/daily
    matches: ["https://a.com/*"]
    active: false
    steps:
      - type: result
        success: true
        message: ok
`
	b := `
sites:
  - id: b
    entry_url: https://b.com/daily
    matches: ["https://b.com/*"]
    steps:
      - type: click-first
        selectors: ["#go"]
`
	os.WriteFile(filepath.Join(dir, "a.yml"), []byte(a), 0644)
	os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(b), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644)

	sites, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sites) != 2 || sites[0].ID != "a" || sites[1].ID != "b" {
		t.Fatalf("unexpected sites: %+v", sites)
	}
	if sites[0].IsActive() || !sites[1].IsActive() {
		t.Fatal("unexpected active flags")
	}
	if sites[1].DisplayName() != "b" || sites[0].DisplayName() != "Site A" {
		t.Fatal("unexpected display names")
	}
	if d, ok := Find(sites, "b"); !ok || d.EntryURL != "https://b.com/daily" {
		t.Fatalf("expected to find site b, got %+v", d)
	}
	if _, ok := Find(sites, "c"); ok {
		t.Fatal("expected site c to be missing")
	}

	single, err := Load(filepath.Join(dir, "b.yaml"))
	if err != nil || len(single) != 1 {
		t.Fatalf("expected one site, got %v %v", single, err)
	}
}
