package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/jakopako/signin/internal/log"
)

// Tab is a live browser tab.
type Tab struct {
	ctx context.Context
}

// run executes actions on ctx if it belongs to a tab, otherwise on the
// tab's own context.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	if chromedp.FromContext(ctx) == nil {
		ctx = t.ctx
	}
	return chromedp.Run(ctx, actions...)
}

func (t *Tab) WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if chromedp.FromContext(ctx) == nil {
		ctx = t.ctx
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := chromedp.Run(wctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return false, nil
	default:
		return false, err
	}
}

func (t *Tab) Text(ctx context.Context, selector string) (string, error) {
	var text string
	if err := t.run(ctx, chromedp.Evaluate(textScript(selector), &text)); err != nil {
		return "", err
	}
	return text, nil
}

func (t *Tab) Click(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx); err != nil {
			return err
		}
		if len(nodes) == 0 {
			return nil
		}
		err := chromedp.MouseClickNode(nodes[0]).Do(ctx)
		if err == nil {
			return nil
		}
		// hidden or zero sized elements have no box to click into
		log.LoggerFromContext(ctx).Debug(fmt.Sprintf("mouse click on %s failed, clicking via script: %v", selector, err))
		var clicked bool
		return chromedp.Evaluate(clickScript(selector), &clicked).Do(ctx)
	}))
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (t *Tab) URL(ctx context.Context) (string, error) {
	var u string
	if err := t.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (t *Tab) SessionValue(ctx context.Context, key string) (string, error) {
	var v string
	js := fmt.Sprintf(`sessionStorage.getItem(%s) || ""`, quote(key))
	if err := t.run(ctx, chromedp.Evaluate(js, &v)); err != nil {
		return "", err
	}
	return v, nil
}

func (t *Tab) SetSessionValue(ctx context.Context, key, value string) error {
	js := fmt.Sprintf(`sessionStorage.setItem(%s, %s)`, quote(key), quote(value))
	return t.run(ctx, chromedp.Evaluate(js, nil))
}

func textScript(selector string) string {
	if selector == "" {
		return `document.body ? document.body.innerText : ""`
	}
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? (el.innerText || el.textContent || "") : ""; })()`, quote(selector))
}

func clickScript(selector string) string {
	return fmt.Sprintf(`(() => { const el = document.querySelector(%s); if (!el) return false; el.click(); return true; })()`, quote(selector))
}

// quote turns s into a javascript string literal.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
