package bootstrap

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/jakopako/signin/internal/flow"
	"github.com/jakopako/signin/internal/match"
	"github.com/jakopako/signin/internal/page"
	"github.com/jakopako/signin/internal/site"
	"github.com/jakopako/signin/internal/status"
	"github.com/jakopako/signin/internal/store"
)

const html = `<body><div id="msg">Sign in today</div><button class="sign">Sign in</button></body>`

func testSites() []site.Definition {
	return []site.Definition{
		{
			ID:      "a",
			Matches: []string{"https://a.com/*"},
			Steps: flow.Steps{
				flow.ClickFirst{Selectors: []string{".sign"}},
				flow.CheckText{Selector: "#msg", Includes: []string{"Signed"}, SuccessMessage: "signed in"},
			},
		},
	}
}

func newPage(t *testing.T, url string) *page.Document {
	t.Helper()
	d, err := page.NewDocument(url, html)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d.OnClick(".sign", func(doc *goquery.Document) {
		doc.Find("#msg").SetText("Signed in")
	})
	return d
}

func TestRunWithMarker(t *testing.T) {
	hub := store.NewHub()
	ctx := context.Background()
	p := newPage(t, match.AppendMarker("https://a.com/user"))

	handled, err := Run(ctx, testSites(), p, hub.Handle("page"))
	if err != nil || !handled {
		t.Fatalf("expected page to be handled, got %v %v", handled, err)
	}
	r, ok, err := status.LastResult(ctx, hub.Handle("scheduler"), "a")
	if err != nil || !ok {
		t.Fatalf("expected a reported result, got %v %v", ok, err)
	}
	if !r.Success || r.Message != "signed in" {
		t.Fatalf("unexpected result %+v", r)
	}
	if v, _ := p.SessionValue(ctx, match.SessionFlagKey); v != "1" {
		t.Fatal("expected session flag to be set")
	}
}

func TestRunLeavesManualVisitsAlone(t *testing.T) {
	hub := store.NewHub()
	ctx := context.Background()
	p := newPage(t, "https://a.com/user")

	handled, err := Run(ctx, testSites(), p, hub.Handle("page"))
	if err != nil || handled {
		t.Fatalf("expected manual visit to be ignored, got %v %v", handled, err)
	}
	if len(p.Clicked()) != 0 {
		t.Fatal("flow must not run on a manual visit")
	}
	if _, ok, _ := status.LastResult(ctx, hub.Handle("scheduler"), "a"); ok {
		t.Fatal("nothing should have been reported")
	}
}

func TestRunUnknownSite(t *testing.T) {
	hub := store.NewHub()
	p := newPage(t, match.AppendMarker("https://b.com/"))
	handled, err := Run(context.Background(), testSites(), p, hub.Handle("page"))
	if err != nil || handled {
		t.Fatalf("expected unknown site to be ignored, got %v %v", handled, err)
	}
}

func TestRunSessionFlagSurvivesRedirect(t *testing.T) {
	hub := store.NewHub()
	ctx := context.Background()
	p := newPage(t, match.AppendMarker("https://a.com/"))
	if _, err := Run(ctx, testSites(), p, hub.Handle("page")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the site redirected and dropped the query string
	p.Navigate("https://a.com/home")
	handled, err := Run(ctx, testSites(), p, hub.Handle("page"))
	if err != nil || !handled {
		t.Fatalf("expected redirected page to be handled, got %v %v", handled, err)
	}
}

func TestRunReportsFailure(t *testing.T) {
	hub := store.NewHub()
	ctx := context.Background()
	p, _ := page.NewDocument(match.AppendMarker("https://a.com/"), `<body><div id="msg"></div></body>`)

	handled, err := Run(ctx, testSites(), p, hub.Handle("page"))
	if err != nil || !handled {
		t.Fatalf("expected page to be handled, got %v %v", handled, err)
	}
	r, _, _ := status.LastResult(ctx, hub.Handle("scheduler"), "a")
	if r.Success || r.Message != flow.ClickFailMessage {
		t.Fatalf("unexpected result %+v", r)
	}
}
