// Package workspace decides whether the application is ready for
// instruction execution: maximized (three corner templates visible)
// and, optionally, showing the expected page.
package workspace

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"screenpilot/internal/logging"
	"screenpilot/internal/ocr"
	"screenpilot/internal/vision"
)

// Corner names used in failure details.
const (
	CornerTopLeft     = "top_left"
	CornerTopRight    = "top_right"
	CornerBottomRight = "bottom_right"
)

// Debug screenshot names written to the evidence directory.
const (
	notMaximizedShot = "workspace_not_maximized.png"
	wrongPageShot    = "workspace_wrong_page.png"
)

// Templates holds the three corner template images.
// The bottom-left corner hosts the taskbar clock on most setups and
// is too unstable to template.
type Templates struct {
	TopLeft     image.Image
	TopRight    image.Image
	BottomRight image.Image
}

// LoadTemplates reads the corner templates from disk. A missing file
// is a boot error.
func LoadTemplates(topLeft, topRight, bottomRight string) (*Templates, error) {
	tl, err := vision.LoadImage(topLeft)
	if err != nil {
		return nil, fmt.Errorf("top-left corner template: %w", err)
	}
	tr, err := vision.LoadImage(topRight)
	if err != nil {
		return nil, fmt.Errorf("top-right corner template: %w", err)
	}
	br, err := vision.LoadImage(bottomRight)
	if err != nil {
		return nil, fmt.Errorf("bottom-right corner template: %w", err)
	}
	return &Templates{TopLeft: tl, TopRight: tr, BottomRight: br}, nil
}

// Report is the outcome of a readiness check.
type Report struct {
	Ready          bool
	Detail         string
	MissingCorners []string
}

// Options configures a Verifier.
type Options struct {
	// RegionSize is the square corner search region edge, px.
	RegionSize int
	// Confidence is the minimum match score; equality passes.
	Confidence float64
	// ExpectedPageText enables the OCR page check when non-empty.
	ExpectedPageText string
	// EvidenceDir receives debug screenshots on failure. Empty = none.
	EvidenceDir string
}

// Verifier runs the readiness check against live captures.
type Verifier struct {
	capturer   vision.Capturer
	recognizer ocr.Recognizer
	templates  *Templates
	opts       Options

	// match is swappable for tests
	match func(img, tpl image.Image, region image.Rectangle) (vision.Match, error)
}

// New creates a Verifier. recognizer may be nil when no page text
// check is configured.
func New(capturer vision.Capturer, recognizer ocr.Recognizer, templates *Templates, opts Options) *Verifier {
	if opts.RegionSize <= 0 {
		opts.RegionSize = 200
	}
	if opts.Confidence <= 0 {
		opts.Confidence = 0.8
	}
	return &Verifier{
		capturer:   capturer,
		recognizer: recognizer,
		templates:  templates,
		opts:       opts,
		match:      vision.MatchInRegion,
	}
}

// Check captures the screen once and runs the full readiness check:
// corners first, then the optional page text.
func (v *Verifier) Check() (*Report, error) {
	timer := logging.StartTimer(logging.CategoryVerify, "workspace_check")
	defer timer.Stop()

	screen, err := v.capturer.CaptureScreen()
	if err != nil {
		return nil, fmt.Errorf("workspace check capture failed: %w", err)
	}

	missing, err := v.checkCorners(screen)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		v.saveDebugShot(screen, notMaximizedShot)
		detail := fmt.Sprintf("workspace not maximized, corners not matched: %s",
			strings.Join(missing, ", "))
		logging.VerifyWarn("%s", detail)
		return &Report{Detail: detail, MissingCorners: missing}, nil
	}

	if v.opts.ExpectedPageText != "" && v.recognizer != nil {
		text, err := v.recognizer.ExtractText(screen)
		if err != nil {
			return nil, fmt.Errorf("workspace page text check failed: %w", err)
		}
		if !ocr.ContainsText(text, v.opts.ExpectedPageText) {
			v.saveDebugShot(screen, wrongPageShot)
			detail := fmt.Sprintf("expected page text %q not found on screen", v.opts.ExpectedPageText)
			logging.VerifyWarn("%s", detail)
			return &Report{Detail: detail}, nil
		}
	}

	logging.Verify("workspace ready")
	return &Report{Ready: true, Detail: "workspace ready"}, nil
}

// checkCorners returns the names of corners whose template did not
// reach the confidence threshold.
func (v *Verifier) checkCorners(screen image.Image) ([]string, error) {
	b := screen.Bounds()
	rs := v.opts.RegionSize
	corners := []struct {
		name   string
		tpl    image.Image
		region image.Rectangle
	}{
		{CornerTopLeft, v.templates.TopLeft, image.Rect(b.Min.X, b.Min.Y, b.Min.X+rs, b.Min.Y+rs)},
		{CornerTopRight, v.templates.TopRight, image.Rect(b.Max.X-rs, b.Min.Y, b.Max.X, b.Min.Y+rs)},
		{CornerBottomRight, v.templates.BottomRight, image.Rect(b.Max.X-rs, b.Max.Y-rs, b.Max.X, b.Max.Y)},
	}

	var missing []string
	for _, c := range corners {
		m, err := v.match(screen, c.tpl, c.region)
		if err != nil {
			return nil, fmt.Errorf("corner %s match failed: %w", c.name, err)
		}
		logging.Get(logging.CategoryVerify).Debug("corner %s score %.3f (threshold %.2f)",
			c.name, m.Score, v.opts.Confidence)
		if !m.Meets(v.opts.Confidence) {
			missing = append(missing, c.name)
		}
	}
	return missing, nil
}

func (v *Verifier) saveDebugShot(screen image.Image, name string) {
	if v.opts.EvidenceDir == "" {
		return
	}
	path := filepath.Join(v.opts.EvidenceDir, name)
	if err := vision.SaveImage(screen, path); err != nil {
		logging.Get(logging.CategoryVerify).Warn("could not save debug screenshot: %v", err)
	}
}
