// Package startup brings the target application into a runnable state:
// process running, window focused and maximized, workspace visually
// verified. Runs once before a workflow.
package startup

import (
	"context"
	"fmt"
	"time"

	"screenpilot/internal/logging"
	"screenpilot/internal/window"
	"screenpilot/internal/workspace"
)

// Checker is the slice of the workspace verifier the sequencer needs.
type Checker interface {
	Check() (*workspace.Report, error)
}

// Options tunes the startup sequence.
type Options struct {
	// LaunchWait is the pause after launching before re-probing.
	LaunchWait time.Duration
	// LaunchRetries bounds launch attempts.
	LaunchRetries int
	// FixRetries bounds maximize-and-recheck cycles.
	FixRetries int
}

// Sequencer drives the three-step startup: ensure open, maximize,
// verify visually.
type Sequencer struct {
	win     window.Controller
	checker Checker
	opts    Options
}

// New creates a Sequencer. checker may be nil to skip the visual step.
func New(win window.Controller, checker Checker, opts Options) *Sequencer {
	if opts.LaunchWait <= 0 {
		opts.LaunchWait = 5 * time.Second
	}
	if opts.LaunchRetries < 1 {
		opts.LaunchRetries = 3
	}
	if opts.FixRetries < 1 {
		opts.FixRetries = 3
	}
	return &Sequencer{win: win, checker: checker, opts: opts}
}

// Run executes the full startup sequence.
func (s *Sequencer) Run(ctx context.Context) error {
	if err := s.ensureOpen(ctx); err != nil {
		return err
	}
	if err := s.focusAndMaximize(); err != nil {
		return err
	}
	return s.verifyVisually(ctx)
}

// ensureOpen launches the application if its process is absent,
// retrying with a settling pause.
func (s *Sequencer) ensureOpen(ctx context.Context) error {
	for attempt := 1; attempt <= s.opts.LaunchRetries; attempt++ {
		running, err := s.win.IsProcessRunning()
		if err != nil {
			return fmt.Errorf("startup process probe failed: %w", err)
		}
		if running {
			logging.Window("application process running (attempt %d)", attempt)
			return nil
		}

		logging.Window("application not running, launching (attempt %d/%d)", attempt, s.opts.LaunchRetries)
		if err := s.win.Launch(); err != nil {
			return fmt.Errorf("startup launch failed: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.LaunchWait):
		}
	}

	running, err := s.win.IsProcessRunning()
	if err != nil {
		return fmt.Errorf("startup process probe failed: %w", err)
	}
	if !running {
		return fmt.Errorf("application did not start after %d launch attempts", s.opts.LaunchRetries)
	}
	return nil
}

func (s *Sequencer) focusAndMaximize() error {
	if err := s.win.Focus(); err != nil {
		return fmt.Errorf("startup focus failed: %w", err)
	}
	if err := s.win.Maximize(); err != nil {
		return fmt.Errorf("startup maximize failed: %w", err)
	}
	return nil
}

// verifyVisually checks workspace readiness, re-fixing the window
// between attempts.
func (s *Sequencer) verifyVisually(ctx context.Context) error {
	if s.checker == nil {
		return nil
	}

	var lastDetail string
	for attempt := 1; attempt <= s.opts.FixRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		report, err := s.checker.Check()
		if err != nil {
			return fmt.Errorf("startup visual check failed: %w", err)
		}
		if report.Ready {
			logging.Window("workspace visually verified (attempt %d)", attempt)
			return nil
		}
		lastDetail = report.Detail
		logging.Get(logging.CategoryWindow).Warn("visual check attempt %d/%d: %s",
			attempt, s.opts.FixRetries, report.Detail)

		if attempt < s.opts.FixRetries {
			if err := s.focusAndMaximize(); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("workspace not ready after %d fix attempts: %s", s.opts.FixRetries, lastDetail)
}

// Status reports the current application state.
func (s *Sequencer) Status() window.StatusReport {
	return window.Snapshot(s.win)
}
