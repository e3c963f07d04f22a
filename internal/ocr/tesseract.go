package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"screenpilot/internal/logging"
)

// TesseractRecognizer implements Recognizer on top of a shared
// tesseract client. Safe for concurrent use; the underlying client
// is not, so calls are serialized.
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
	floor  float64 // confidence floor, 0..1
}

// NewTesseractRecognizer creates a recognizer for the given languages.
// floor is the minimum per-fragment confidence (0..1) kept by ExtractBoxes.
func NewTesseractRecognizer(languages []string, floor float64) (*TesseractRecognizer, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR languages: %w", err)
		}
	}
	return &TesseractRecognizer{client: client, floor: floor}, nil
}

// Close releases the tesseract client.
func (r *TesseractRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

// ExtractText returns all recognized text as one string.
func (r *TesseractRecognizer) ExtractText(img image.Image) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryOCR, "extract_text")
	defer timer.Stop()

	if err := r.setImage(img); err != nil {
		return "", err
	}
	text, err := r.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr text extraction failed: %w", err)
	}
	return text, nil
}

// ExtractBoxes returns word-level fragments above the confidence floor.
func (r *TesseractRecognizer) ExtractBoxes(img image.Image) ([]TextBox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryOCR, "extract_boxes")
	defer timer.Stop()

	if err := r.setImage(img); err != nil {
		return nil, err
	}
	raw, err := r.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("ocr box extraction failed: %w", err)
	}

	boxes := make([]TextBox, 0, len(raw))
	for _, bb := range raw {
		// tesseract reports confidence on a 0..100 scale
		conf := bb.Confidence / 100.0
		if conf < r.floor {
			continue
		}
		boxes = append(boxes, TextBox{
			Text:       bb.Word,
			Box:        bb.Box,
			Confidence: conf,
		})
	}
	logging.OCR("recognized %d/%d fragments above floor %.2f", len(boxes), len(raw), r.floor)
	return boxes, nil
}

func (r *TesseractRecognizer) setImage(img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode image for ocr: %w", err)
	}
	if err := r.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to load image into ocr engine: %w", err)
	}
	return nil
}
