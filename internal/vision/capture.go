// Package vision provides screen capture and template matching. Capture is
// a narrow interface so the engine can run against fakes; matching is pure
// image math with no OS dependency.
package vision

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/go-vgo/robotgo"

	"screenpilot/internal/logging"
)

// Capturer grabs the current screen contents.
type Capturer interface {
	// CaptureScreen returns a full-screen screenshot.
	CaptureScreen() (image.Image, error)

	// ScreenSize returns the primary display size in pixels.
	ScreenSize() (width, height int)
}

// RobotCapturer implements Capturer with robotgo.
type RobotCapturer struct{}

// NewRobotCapturer returns the OS-backed screen capturer.
func NewRobotCapturer() *RobotCapturer {
	return &RobotCapturer{}
}

// CaptureScreen returns a full-screen screenshot.
func (c *RobotCapturer) CaptureScreen() (image.Image, error) {
	timer := logging.StartTimer(logging.CategoryVision, "capture_screen")
	defer timer.Stop()

	img := robotgo.CaptureImg()
	if img == nil {
		return nil, fmt.Errorf("screen capture returned no image")
	}
	return img, nil
}

// ScreenSize returns the primary display size in pixels.
func (c *RobotCapturer) ScreenSize() (int, int) {
	return robotgo.GetScreenSize()
}

// Crop returns the sub-image of img bounded by region, clamped to the
// image bounds. An empty intersection is an error.
func Crop(img image.Image, region image.Rectangle) (image.Image, error) {
	bounds := img.Bounds()
	clamped := region.Intersect(bounds)
	if clamped.Empty() {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", region, bounds)
	}

	out := image.NewRGBA(image.Rect(0, 0, clamped.Dx(), clamped.Dy()))
	for y := clamped.Min.Y; y < clamped.Max.Y; y++ {
		for x := clamped.Min.X; x < clamped.Max.X; x++ {
			out.Set(x-clamped.Min.X, y-clamped.Min.Y, img.At(x, y))
		}
	}
	return out, nil
}

// SaveImage writes img as PNG, creating parent directories as needed.
func SaveImage(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	logging.Vision("saved image %s", path)
	return nil
}

// LoadImage reads a PNG or other registered image format from disk.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}
