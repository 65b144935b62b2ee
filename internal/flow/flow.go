package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/jakopako/signin/internal/log"
)

const (
	DefaultWaitTimeout = 8 * time.Second

	CompletedMessage = "sign-in flow completed"
	ClickFailMessage = "no clickable sign-in button found"
	CheckFailMessage = "page text does not show a success state"
	NoPageMessage    = "no browser page available, cannot run sign-in flow"
)

// Page is the live document a flow runs against.
type Page interface {
	// WaitForElement waits until selector resolves or the timeout elapses.
	// Running into the timeout is not an error.
	WaitForElement(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// Text returns the rendered text of the first element matching selector,
	// or of the page body if selector is empty. A missing element yields "".
	Text(ctx context.Context, selector string) (string, error)
	// Click clicks the first element matching selector and reports
	// whether there was one.
	Click(ctx context.Context, selector string) (bool, error)
}

// Normalize removes all whitespace from text.
func Normalize(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

// Run executes steps against page. It never retries: the first failing
// step ends the flow.
func Run(ctx context.Context, page Page, steps Steps) TaskResult {
	if page == nil {
		return Fail(NoPageMessage)
	}
	return run(ctx, page, steps)
}

func run(ctx context.Context, page Page, steps Steps) TaskResult {
	logger := log.LoggerFromContext(ctx)
	lastMessage := ""

	for i, step := range steps {
		if step == nil {
			return Fail(fmt.Sprintf("step %d is empty", i))
		}
		stepLogger := logger.With(slog.Int("step", i), slog.String("type", step.Kind()))
		stepLogger.Debug("starting step")

		switch st := step.(type) {
		case EnsureNotText:
			hit, err := textIncludes(ctx, page, st.Selector, st.Text)
			if err != nil {
				return pageFailure(step, err)
			}
			if hit {
				stepLogger.Debug(fmt.Sprintf("found guarded text %q", st.Text))
				return Fail(st.FailMessage)
			}

		case Wait:
			timeout := DefaultWaitTimeout
			if st.TimeoutMS > 0 {
				timeout = time.Duration(st.TimeoutMS) * time.Millisecond
			}
			found, err := page.WaitForElement(ctx, st.Selector, timeout)
			if err != nil {
				return pageFailure(step, err)
			}
			if !found {
				stepLogger.Debug(fmt.Sprintf("selector %s did not appear within %v, continuing", st.Selector, timeout))
			}

		case Delay:
			if err := sleep(ctx, time.Duration(st.MS)*time.Millisecond); err != nil {
				return pageFailure(step, err)
			}

		case ClickFirst:
			clicked := ""
			for _, sel := range st.Selectors {
				ok, err := page.Click(ctx, sel)
				if err != nil {
					return pageFailure(step, err)
				}
				if ok {
					clicked = sel
					break
				}
			}
			if clicked == "" {
				return Fail(orDefault(st.FailMessage, ClickFailMessage))
			}
			stepLogger.Debug(fmt.Sprintf("clicked %s", clicked))

		case CheckText:
			matched := ""
			for _, needle := range st.Includes {
				hit, err := textIncludes(ctx, page, st.Selector, needle)
				if err != nil {
					return pageFailure(step, err)
				}
				if hit {
					matched = needle
					break
				}
			}
			if matched == "" {
				stepLogger.Debug(fmt.Sprintf("none of %s found", strings.Join(st.Includes, " / ")))
				return Fail(orDefault(st.FailMessage, CheckFailMessage))
			}
			lastMessage = orDefault(st.SuccessMessage, fmt.Sprintf("page shows %q", matched))

		case Branch:
			cond, err := evalCondition(ctx, page, st.Condition)
			if err != nil {
				return pageFailure(step, err)
			}
			stepLogger.Debug(fmt.Sprintf("condition is %v", cond))
			child := st.IfFalse
			if cond {
				child = st.IfTrue
			}
			if child != nil {
				res := run(ctx, page, child)
				if !res.Success {
					return res
				}
				lastMessage = res.Message
			}

		case Result:
			return TaskResult{Success: st.Success, Message: st.Message}
		}
	}

	return TaskResult{Success: true, Message: orDefault(lastMessage, CompletedMessage)}
}

func textIncludes(ctx context.Context, page Page, selector, needle string) (bool, error) {
	text, err := page.Text(ctx, selector)
	if err != nil {
		return false, err
	}
	return strings.Contains(Normalize(text), Normalize(needle)), nil
}

func evalCondition(ctx context.Context, page Page, c Condition) (bool, error) {
	switch c.Type {
	case ConditionTextIncludes:
		hit, err := textIncludes(ctx, page, c.Selector, c.Text)
		if err != nil {
			return false, err
		}
		return hit != c.Negate, nil
	default:
		return false, nil
	}
}

func pageFailure(step Step, err error) TaskResult {
	return Fail(fmt.Sprintf("%s step failed: %v", step.Kind(), err))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
