// Package window locates, focuses and sizes the target application's
// main window. The engine only sees the Controller interface.
package window

import (
	"fmt"
	"os/exec"

	"github.com/go-vgo/robotgo"

	"screenpilot/internal/logging"
)

// Controller manages the target application's process and main window.
type Controller interface {
	// IsProcessRunning reports whether the application process exists.
	IsProcessRunning() (bool, error)

	// Launch starts the application executable.
	Launch() error

	// Focus brings the main window to the foreground.
	Focus() error

	// Maximize maximizes the main window.
	Maximize() error

	// IsForeground reports whether the main window is the active one.
	IsForeground() (bool, error)

	// IsMaximized reports whether the main window fills the screen.
	IsMaximized() (bool, error)
}

// StatusReport is a point-in-time snapshot of the application state.
type StatusReport struct {
	ProcessRunning bool `json:"process_running"`
	WindowPresent  bool `json:"window_present"`
	Foreground     bool `json:"foreground"`
	Maximized      bool `json:"maximized"`
}

// Options identifies the application to control.
type Options struct {
	ProcessName string // executable name to match, e.g. "trafficdesk.exe"
	Executable  string // full launch path
	WindowTitle string // title substring, fallback when pid focus fails
}

// RobotController implements Controller with robotgo and os/exec.
type RobotController struct {
	opts Options
}

// NewRobotController returns the OS-backed window controller.
func NewRobotController(opts Options) *RobotController {
	return &RobotController{opts: opts}
}

func (c *RobotController) pid() (int32, error) {
	ids, err := robotgo.FindIds(c.opts.ProcessName)
	if err != nil {
		return 0, fmt.Errorf("process lookup for %q failed: %w", c.opts.ProcessName, err)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("process %q not found", c.opts.ProcessName)
	}
	return ids[0], nil
}

func (c *RobotController) IsProcessRunning() (bool, error) {
	ids, err := robotgo.FindIds(c.opts.ProcessName)
	if err != nil {
		return false, fmt.Errorf("process lookup for %q failed: %w", c.opts.ProcessName, err)
	}
	return len(ids) > 0, nil
}

func (c *RobotController) Launch() error {
	if c.opts.Executable == "" {
		return fmt.Errorf("no executable configured for %q", c.opts.ProcessName)
	}
	logging.Window("launching %s", c.opts.Executable)
	cmd := exec.Command(c.opts.Executable)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch %s: %w", c.opts.Executable, err)
	}
	// Detach; the application outlives us.
	return cmd.Process.Release()
}

func (c *RobotController) Focus() error {
	pid, err := c.pid()
	if err != nil {
		return err
	}
	logging.Window("focusing pid %d", pid)
	if err := robotgo.ActivePid(pid); err != nil {
		if c.opts.WindowTitle != "" {
			logging.Window("pid focus failed (%v), trying title %q", err, c.opts.WindowTitle)
			if terr := robotgo.ActiveName(c.opts.WindowTitle); terr == nil {
				return nil
			}
		}
		return fmt.Errorf("failed to focus window: %w", err)
	}
	return nil
}

func (c *RobotController) Maximize() error {
	pid, err := c.pid()
	if err != nil {
		return err
	}
	logging.Window("maximizing pid %d", pid)
	robotgo.MaxWindow(pid)
	return nil
}

func (c *RobotController) IsForeground() (bool, error) {
	pid, err := c.pid()
	if err != nil {
		return false, err
	}
	active, err := robotgo.GetPID()
	if err != nil {
		return false, fmt.Errorf("failed to read active window pid: %w", err)
	}
	return active == pid, nil
}

// IsMaximized infers the maximized state from window bounds. Borders
// and shadow insets make exact equality unreliable, so a small slack
// is allowed.
func (c *RobotController) IsMaximized() (bool, error) {
	pid, err := c.pid()
	if err != nil {
		return false, err
	}
	x, y, w, h := robotgo.GetBounds(pid)
	sw, sh := robotgo.GetScreenSize()

	const slack = 20
	covers := w >= sw-slack && h >= sh-slack
	nearOrigin := x <= slack && y <= slack && x >= -slack && y >= -slack
	return covers && nearOrigin, nil
}

// Snapshot collects a StatusReport, treating individual probe errors
// as "not in that state".
func Snapshot(c Controller) StatusReport {
	var r StatusReport
	r.ProcessRunning, _ = c.IsProcessRunning()
	if r.ProcessRunning {
		// a readable foreground probe implies a window
		if fg, err := c.IsForeground(); err == nil {
			r.Foreground = fg
			r.WindowPresent = true
		}
		r.Maximized, _ = c.IsMaximized()
	}
	return r
}
