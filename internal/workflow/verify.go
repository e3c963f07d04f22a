package workflow

import (
	"context"
	"fmt"
	"image"
	"time"

	"screenpilot/internal/logging"
	"screenpilot/internal/ocr"
	"screenpilot/internal/planner"
	"screenpilot/internal/vision"
)

// Verification descriptor types understood by the shared verifier.
const (
	VerifyTextInputted   = "text_inputted"
	VerifyTextAppears    = "text_appears"
	VerifyTextDisappears = "text_disappears"
)

const (
	defaultPollInterval  = 500 * time.Millisecond
	defaultVerifyTimeout = 5 * time.Second
)

// descriptorVerifier builds the VerifierFunc shared by all handlers.
// It routes on the instruction's verification descriptor. An unknown
// descriptor type passes with a warning rather than blocking the
// workflow on a catalogue typo.
func descriptorVerifier(deps Deps) VerifierFunc {
	return func(ctx context.Context, ins planner.PreparedInstruction) (bool, string, error) {
		v := ins.Verification
		if v == nil {
			return true, "no verification configured", nil
		}
		switch v.Type {
		case VerifyTextInputted:
			return verifyTextInputted(deps, ins)
		case VerifyTextAppears:
			return verifyTextPolling(ctx, deps, ins, true)
		case VerifyTextDisappears:
			return verifyTextPolling(ctx, deps, ins, false)
		default:
			logging.VerifyWarn("unknown verification type %q for %s, passing", v.Type, ins.ActionType)
			return true, fmt.Sprintf("unknown verification type %q skipped", v.Type), nil
		}
	}
}

// captureScope grabs the screen and crops to the descriptor's region
// when one is set.
func captureScope(deps Deps, ins planner.PreparedInstruction) (image.Image, error) {
	screen, err := deps.Capturer.CaptureScreen()
	if err != nil {
		return nil, fmt.Errorf("verification capture failed: %w", err)
	}
	r := ins.Verification.Region
	if r == nil {
		return screen, nil
	}
	cropped, err := vision.Crop(screen, image.Rect(r.Left, r.Top, r.Right, r.Bottom))
	if err != nil {
		return nil, fmt.Errorf("verification crop failed: %w", err)
	}
	return cropped, nil
}

// verifyTextInputted does a single OCR pass for the expected text.
func verifyTextInputted(deps Deps, ins planner.PreparedInstruction) (bool, string, error) {
	expected := ins.Verification.ExpectedText
	if expected == "" {
		return true, "no expected text configured", nil
	}
	img, err := captureScope(deps, ins)
	if err != nil {
		return false, "", err
	}
	text, err := deps.Recognizer.ExtractText(img)
	if err != nil {
		return false, "", fmt.Errorf("verification OCR failed: %w", err)
	}
	if ocr.ContainsText(text, expected) {
		return true, fmt.Sprintf("text %q present", expected), nil
	}
	return false, fmt.Sprintf("text %q not found", expected), nil
}

// verifyTextPolling polls for the expected text to appear (or vanish)
// before the deadline.
func verifyTextPolling(ctx context.Context, deps Deps, ins planner.PreparedInstruction, wantPresent bool) (bool, string, error) {
	expected := ins.Verification.ExpectedText
	if expected == "" {
		return true, "no expected text configured", nil
	}

	interval := deps.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := deps.VerifyTimeout
	if ins.Verification.TimeoutSeconds > 0 {
		timeout = time.Duration(ins.Verification.TimeoutSeconds) * time.Second
	}
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}

	deadline := time.Now().Add(timeout)
	for {
		img, err := captureScope(deps, ins)
		if err != nil {
			return false, "", err
		}
		text, err := deps.Recognizer.ExtractText(img)
		if err != nil {
			return false, "", fmt.Errorf("verification OCR failed: %w", err)
		}
		present := ocr.ContainsText(text, expected)
		if present == wantPresent {
			if wantPresent {
				return true, fmt.Sprintf("text %q appeared", expected), nil
			}
			return true, fmt.Sprintf("text %q disappeared", expected), nil
		}

		if time.Now().After(deadline) {
			if wantPresent {
				return false, fmt.Sprintf("text %q did not appear within %v", expected, timeout), nil
			}
			return false, fmt.Sprintf("text %q still present after %v", expected, timeout), nil
		}
		select {
		case <-ctx.Done():
			return false, "", ctx.Err()
		case <-time.After(interval):
		}
	}
}
