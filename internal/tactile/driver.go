// Package tactile is the simulated-input layer. It is the only package
// that synthesizes keyboard and mouse events; everything above it works
// in terms of the Driver interface.
//
// Design principles:
//   - One way in: all input flows through a Driver, so tests can swap in
//     a recording fake and executors stay free of OS calls.
//   - Pacing is data: delays between events come from DriverConfig, not
//     sleeps scattered through handlers.
//   - No verification here: the driver reports transport errors only.
//     Whether the application reacted is the verifier's business.
package tactile

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-vgo/robotgo"

	"screenpilot/internal/logging"
)

// Driver synthesizes input events.
type Driver interface {
	// TypeText types a string into the focused control.
	TypeText(text string) error

	// PressKey taps a single named key, e.g. "enter", "tab", "esc".
	PressKey(key string) error

	// Chord presses a modifier combination, e.g. "ctrl+shift+s".
	Chord(combo string) error

	// Click left-clicks at screen coordinates.
	Click(x, y int) error

	// DoubleClick double left-clicks at screen coordinates.
	DoubleClick(x, y int) error

	// RightClick right-clicks at screen coordinates.
	RightClick(x, y int) error

	// MoveMouse moves the pointer without clicking.
	MoveMouse(x, y int) error

	// Scroll scrolls by the given wheel deltas.
	Scroll(dx, dy int) error
}

// DriverConfig paces synthesized input.
type DriverConfig struct {
	// TypeDelay is the pause inserted after typing a string.
	TypeDelay time.Duration
	// ClickPause is the pause between positioning and clicking.
	ClickPause time.Duration
}

// DefaultDriverConfig returns pacing that most Win32 grids tolerate.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		TypeDelay:  50 * time.Millisecond,
		ClickPause: 100 * time.Millisecond,
	}
}

// RobotDriver implements Driver with robotgo.
type RobotDriver struct {
	cfg DriverConfig
}

// NewRobotDriver returns the OS-backed input driver.
func NewRobotDriver(cfg DriverConfig) *RobotDriver {
	if cfg.TypeDelay == 0 && cfg.ClickPause == 0 {
		cfg = DefaultDriverConfig()
	}
	return &RobotDriver{cfg: cfg}
}

func (d *RobotDriver) TypeText(text string) error {
	logging.Tactile("type %q", text)
	robotgo.TypeStr(text)
	time.Sleep(d.cfg.TypeDelay)
	return nil
}

func (d *RobotDriver) PressKey(key string) error {
	logging.Tactile("press %s", key)
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("key tap %q failed: %w", key, err)
	}
	return nil
}

func (d *RobotDriver) Chord(combo string) error {
	key, mods, err := ParseChord(combo)
	if err != nil {
		return err
	}
	logging.Tactile("chord %s", combo)
	args := make([]interface{}, len(mods))
	for i, m := range mods {
		args[i] = m
	}
	if err := robotgo.KeyTap(key, args...); err != nil {
		return fmt.Errorf("chord %q failed: %w", combo, err)
	}
	return nil
}

func (d *RobotDriver) Click(x, y int) error {
	logging.Tactile("click (%d,%d)", x, y)
	robotgo.Move(x, y)
	time.Sleep(d.cfg.ClickPause)
	robotgo.Click("left", false)
	return nil
}

func (d *RobotDriver) DoubleClick(x, y int) error {
	logging.Tactile("double-click (%d,%d)", x, y)
	robotgo.Move(x, y)
	time.Sleep(d.cfg.ClickPause)
	robotgo.Click("left", true)
	return nil
}

func (d *RobotDriver) RightClick(x, y int) error {
	logging.Tactile("right-click (%d,%d)", x, y)
	robotgo.Move(x, y)
	time.Sleep(d.cfg.ClickPause)
	robotgo.Click("right", false)
	return nil
}

func (d *RobotDriver) MoveMouse(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (d *RobotDriver) Scroll(dx, dy int) error {
	logging.Tactile("scroll (%d,%d)", dx, dy)
	robotgo.Scroll(dx, dy)
	return nil
}

// ParseChord splits "ctrl+shift+s" into the key ("s") and its
// modifiers (["ctrl","shift"]). The last element is the key.
func ParseChord(combo string) (key string, mods []string, err error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	cleaned := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) == 0 {
		return "", nil, fmt.Errorf("empty key chord")
	}
	key = cleaned[len(cleaned)-1]
	mods = cleaned[:len(cleaned)-1]
	return key, mods, nil
}
