package main

import (
	"syscall"
	"testing"
	"time"

	"github.com/jakopako/signin/internal/flow"
)

func TestShortenWaits(t *testing.T) {
	steps := flow.Steps{
		flow.Wait{Selector: "#a", TimeoutMS: 8000},
		flow.Wait{Selector: "#b", TimeoutMS: 200},
		flow.Delay{MS: 3000},
		flow.Branch{
			Condition: flow.Condition{Type: flow.ConditionTextIncludes, Text: "x"},
			IfTrue:    flow.Steps{flow.Wait{Selector: "#c"}},
		},
	}
	got := shortenWaits(steps, time.Second)

	if w := got[0].(flow.Wait); w.TimeoutMS != 1000 {
		t.Fatalf("expected long wait to be shortened, got %d", w.TimeoutMS)
	}
	if w := got[1].(flow.Wait); w.TimeoutMS != 200 {
		t.Fatalf("expected short wait to be kept, got %d", w.TimeoutMS)
	}
	if d := got[2].(flow.Delay); d.MS != 0 {
		t.Fatalf("expected delay to be dropped, got %d", d.MS)
	}
	if w := got[3].(flow.Branch).IfTrue[0].(flow.Wait); w.TimeoutMS != 1000 {
		t.Fatalf("expected nested wait to be shortened, got %d", w.TimeoutMS)
	}
	if w := steps[0].(flow.Wait); w.TimeoutMS != 8000 {
		t.Fatal("original steps must not be modified")
	}
}

func TestSignalContext(t *testing.T) {
	ctx, stop := signalContext()
	defer stop()
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by the signal")
	}
}
