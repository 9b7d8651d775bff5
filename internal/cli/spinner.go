package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// spinnerFrames animate on stderr while a slow stage runs, keeping stdout
// clean for piped output.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// spinner is a stderr progress indicator for the slow external stages of a
// run, Graphviz rasterization and narrative generation. It clears its line
// and exits when the command context is cancelled.
type spinner struct {
	message  string
	ctx      context.Context
	cancel   context.CancelFunc
	finished chan struct{}

	stopOnce sync.Once
	lineMu   sync.Mutex
}

// newSpinner prepares a spinner bound to ctx; the animation only runs once
// Start is called. An empty message falls back to "Working...".
func newSpinner(ctx context.Context, message string) *spinner {
	if message == "" {
		message = "Working..."
	}
	sctx, cancel := context.WithCancel(ctx)
	return &spinner{
		message:  message,
		ctx:      sctx,
		cancel:   cancel,
		finished: make(chan struct{}),
	}
}

// Start begins the animation on stderr.
func (s *spinner) Start() {
	go func() {
		defer close(s.finished)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-ticker.C:
				frame := spinnerFrames[i%len(spinnerFrames)]
				s.lineMu.Lock()
				fmt.Fprintf(os.Stderr, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
				s.lineMu.Unlock()
			}
		}
	}()
}

// Stop halts the animation and clears the line. Safe to call repeatedly;
// Start must have been called first.
func (s *spinner) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.finished
		s.clearLine()
	})
}

// StopWithError stops the spinner and prints a styled error line in its
// place.
func (s *spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

func (s *spinner) clearLine() {
	s.lineMu.Lock()
	defer s.lineMu.Unlock()
	fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}
