package workflow

import (
	"context"
	"fmt"
	"image"
	"sort"
	"strconv"
	"time"

	"screenpilot/internal/logging"
	"screenpilot/internal/ocr"
	"screenpilot/internal/planner"
	"screenpilot/internal/tactile"
	"screenpilot/internal/vision"
)

// TableOptions configures the find_row_by_values action.
type TableOptions struct {
	// Crop is the table area in screen coordinates.
	Crop image.Rectangle
	// ColumnTemplate locates the vertical separators between columns.
	ColumnTemplate image.Image
	// SeparatorThreshold is the match score for separator detection.
	SeparatorThreshold float64
	// ColumnPadding is the white gap inserted between column strips
	// before OCR.
	ColumnPadding int
	// ClusteringTolerance and MinRowHeight tune row clustering.
	ClusteringTolerance int
	MinRowHeight        int
}

// Deps carries the capability surfaces the built-in handlers need.
type Deps struct {
	Driver     tactile.Driver
	Capturer   vision.Capturer
	Recognizer ocr.Recognizer
	Table      TableOptions

	// PollInterval and VerifyTimeout drive appear/disappear polling.
	PollInterval  time.Duration
	VerifyTimeout time.Duration
}

// DefaultHandlers builds the standard action table. Every handler
// shares the descriptor-driven verifier.
func DefaultHandlers(deps Deps) map[string]Handler {
	verify := descriptorVerifier(deps)
	h := func(exec ExecutorFunc) Handler {
		return Handler{Execute: exec, Verify: verify}
	}
	return map[string]Handler{
		"type_text":                 h(typeTextExecutor(deps)),
		"clear_and_type":            h(clearAndTypeExecutor(deps)),
		"press_key":                 h(pressKeyExecutor(deps)),
		"keyboard_shortcut":         h(shortcutExecutor(deps)),
		"click_at_position":         h(clickExecutor(deps, "left", false)),
		"double_click_at_position":  h(clickExecutor(deps, "left", true)),
		"right_click_at_position":   h(clickExecutor(deps, "right", false)),
		"scroll":                    h(scrollExecutor(deps)),
		"wait":                      h(waitExecutor()),
		"find_row_by_values":        h(findRowExecutor(deps)),
	}
}

// textParam resolves the text an instruction wants typed: an explicit
// "text" parameter wins; otherwise a single-parameter instruction uses
// that value.
func textParam(params map[string]string) (string, error) {
	if v, ok := params["text"]; ok {
		return v, nil
	}
	if len(params) == 1 {
		for _, v := range params {
			return v, nil
		}
	}
	return "", fmt.Errorf("cannot determine text to type from %d parameters", len(params))
}

func intParam(params map[string]string, key string) (int, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("missing parameter %q", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %q is not an integer: %q", key, raw)
	}
	return n, nil
}

func typeTextExecutor(deps Deps) ExecutorFunc {
	return func(ctx context.Context, ins planner.PreparedInstruction) error {
		text, err := textParam(ins.Parameters)
		if err != nil {
			return err
		}
		return deps.Driver.TypeText(text)
	}
}

func clearAndTypeExecutor(deps Deps) ExecutorFunc {
	return func(ctx context.Context, ins planner.PreparedInstruction) error {
		text, err := textParam(ins.Parameters)
		if err != nil {
			return err
		}
		if err := deps.Driver.Chord("ctrl+a"); err != nil {
			return err
		}
		if err := deps.Driver.PressKey("delete"); err != nil {
			return err
		}
		return deps.Driver.TypeText(text)
	}
}

func pressKeyExecutor(deps Deps) ExecutorFunc {
	return func(ctx context.Context, ins planner.PreparedInstruction) error {
		key, ok := ins.Parameters["key"]
		if !ok || key == "" {
			return fmt.Errorf("press_key needs a %q parameter", "key")
		}
		return deps.Driver.PressKey(key)
	}
}

func shortcutExecutor(deps Deps) ExecutorFunc {
	return func(ctx context.Context, ins planner.PreparedInstruction) error {
		combo := ins.Parameters["keys"]
		if combo == "" {
			combo = ins.Parameters["shortcut"]
		}
		if combo == "" {
			return fmt.Errorf("keyboard_shortcut needs a %q parameter", "keys")
		}
		return deps.Driver.Chord(combo)
	}
}

func clickExecutor(deps Deps, button string, double bool) ExecutorFunc {
	return func(ctx context.Context, ins planner.PreparedInstruction) error {
		x, err := intParam(ins.Parameters, "x")
		if err != nil {
			return err
		}
		y, err := intParam(ins.Parameters, "y")
		if err != nil {
			return err
		}
		switch {
		case button == "right":
			return deps.Driver.RightClick(x, y)
		case double:
			return deps.Driver.DoubleClick(x, y)
		default:
			return deps.Driver.Click(x, y)
		}
	}
}

func scrollExecutor(deps Deps) ExecutorFunc {
	return func(ctx context.Context, ins planner.PreparedInstruction) error {
		dx, _ := intParam(ins.Parameters, "dx")
		dy, err := intParam(ins.Parameters, "dy")
		if err != nil {
			return err
		}
		return deps.Driver.Scroll(dx, dy)
	}
}

func waitExecutor() ExecutorFunc {
	return func(ctx context.Context, ins planner.PreparedInstruction) error {
		secs, err := intParam(ins.Parameters, "seconds")
		if err != nil {
			return err
		}
		select {
		case <-time.After(time.Duration(secs) * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// findRowExecutor locates a table row containing the instruction's
// values and right-clicks its anchor cell to open the row menu.
//
// Pipeline: capture, crop the grid, detect column separators, re-render
// the columns with white gaps so the OCR pass keeps adjacent cells
// apart, recognize fragments, cluster into rows, match the values, and
// click the leftmost match translated back to screen coordinates.
func findRowExecutor(deps Deps) ExecutorFunc {
	return func(ctx context.Context, ins planner.PreparedInstruction) error {
		targets := targetValues(ins.Parameters)
		if len(targets) == 0 {
			return fmt.Errorf("find_row_by_values has no non-empty values")
		}

		screen, err := deps.Capturer.CaptureScreen()
		if err != nil {
			return fmt.Errorf("row search capture failed: %w", err)
		}
		grid, err := vision.Crop(screen, deps.Table.Crop)
		if err != nil {
			return fmt.Errorf("row search crop failed: %w", err)
		}

		searchImg := grid
		separated := false
		if deps.Table.ColumnTemplate != nil {
			threshold := deps.Table.SeparatorThreshold
			if threshold <= 0 {
				threshold = 0.9
			}
			seps, err := vision.DetectSeparators(grid, deps.Table.ColumnTemplate, threshold)
			if err == nil && len(seps) > 0 {
				xs := make([]int, len(seps))
				for i, s := range seps {
					xs[i] = s.Center.X
				}
				padding := deps.Table.ColumnPadding
				if padding <= 0 {
					padding = 20
				}
				strips := vision.SplitColumns(grid, xs)
				searchImg = vision.JoinWithPadding(strips, padding)
				separated = true
				logging.Table("separated %d columns for OCR", len(strips))
			}
		}

		boxes, err := deps.Recognizer.ExtractBoxes(searchImg)
		if err != nil {
			return fmt.Errorf("row search OCR failed: %w", err)
		}

		positions := matchRowTargets(targets, boxes, deps.Table)
		if len(positions) == 0 {
			return fmt.Errorf("no row matched values %v", targets)
		}

		// The separated image distorts x coordinates; when it was used,
		// re-match the anchor on the raw grid to click accurately.
		anchor := positions[0]
		if separated {
			rawBoxes, err := deps.Recognizer.ExtractBoxes(grid)
			if err != nil {
				return fmt.Errorf("row anchor OCR failed: %w", err)
			}
			raw, ok := ocr.FindBox(rawBoxes, anchor.Text)
			if !ok {
				return fmt.Errorf("anchor %q not found on raw grid", anchor.Text)
			}
			anchor = raw
		}

		center := anchor.Center()
		x := center.X + deps.Table.Crop.Min.X
		y := center.Y + deps.Table.Crop.Min.Y
		logging.Table("row anchor %q at screen (%d,%d)", anchor.Text, x, y)
		return deps.Driver.RightClick(x, y)
	}
}

// targetValues extracts the non-empty parameter values in sorted key
// order so repeated runs search identically.
func targetValues(params map[string]string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var targets []string
	for _, k := range keys {
		if v := params[k]; v != "" {
			targets = append(targets, v)
		}
	}
	return targets
}
