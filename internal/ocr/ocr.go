// Package ocr defines the text recognition surface used by verification
// and table analysis. Implementations return recognized fragments with
// screen positions; callers never talk to an OCR engine directly.
package ocr

import (
	"image"
	"strings"
)

// TextBox is one recognized text fragment and its bounding box.
// Box coordinates are relative to the image that was recognized.
type TextBox struct {
	Text       string
	Box        image.Rectangle
	Confidence float64 // 0..1
}

// CenterY returns the vertical center of the fragment.
func (b TextBox) CenterY() int {
	return (b.Box.Min.Y + b.Box.Max.Y) / 2
}

// Center returns the center point of the fragment.
func (b TextBox) Center() image.Point {
	return image.Pt((b.Box.Min.X+b.Box.Max.X)/2, (b.Box.Min.Y+b.Box.Max.Y)/2)
}

// Recognizer extracts text from images.
type Recognizer interface {
	// ExtractText returns all recognized text as one string.
	ExtractText(img image.Image) (string, error)

	// ExtractBoxes returns recognized fragments with positions,
	// already filtered by the implementation's confidence floor.
	ExtractBoxes(img image.Image) ([]TextBox, error)
}

// ContainsText reports whether target occurs in text, case-insensitive.
func ContainsText(text, target string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(target))
}

// FilterByConfidence drops boxes below the floor.
func FilterByConfidence(boxes []TextBox, floor float64) []TextBox {
	kept := make([]TextBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Confidence >= floor {
			kept = append(kept, b)
		}
	}
	return kept
}

// FindBox returns the first box whose text contains target,
// case-insensitive. Boxes are scanned in recognition order.
func FindBox(boxes []TextBox, target string) (TextBox, bool) {
	for _, b := range boxes {
		if ContainsText(b.Text, target) {
			return b, true
		}
	}
	return TextBox{}, false
}
