package cli

import (
	"context"
	"testing"
	"time"
)

func TestSpinnerStartStop(t *testing.T) {
	s := newSpinner(context.Background(), "Drawing...")
	s.Start()
	time.Sleep(2 * spinnerInterval)
	s.Stop()
}

func TestSpinnerDefaultMessage(t *testing.T) {
	s := newSpinner(context.Background(), "")
	if s.message != "Working..." {
		t.Errorf("message = %q, want the Working... fallback", s.message)
	}
}

func TestSpinnerContextCancelExits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinner(ctx, "Drawing...")
	s.Start()

	cancel()

	select {
	case <-s.finished:
	case <-time.After(time.Second):
		t.Fatal("animation goroutine did not exit after context cancellation")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinner(context.Background(), "Drawing...")
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()
}
