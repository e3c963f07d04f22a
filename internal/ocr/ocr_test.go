package ocr

import (
	"image"
	"testing"
)

func TestContainsText(t *testing.T) {
	cases := []struct {
		text   string
		target string
		want   bool
	}{
		{"Order 12345 saved", "order", true},
		{"ACME CORP", "acme corp", true},
		{"Traffic Instructions", "instructions", true},
		{"Traffic Instructions", "invoices", false},
		{"", "anything", false},
		{"anything", "", true},
	}
	for _, tc := range cases {
		if got := ContainsText(tc.text, tc.target); got != tc.want {
			t.Fatalf("ContainsText(%q, %q) = %v, want %v", tc.text, tc.target, got, tc.want)
		}
	}
}

func TestFilterByConfidence(t *testing.T) {
	boxes := []TextBox{
		{Text: "keep", Confidence: 0.95},
		{Text: "edge", Confidence: 0.6},
		{Text: "drop", Confidence: 0.59},
	}
	kept := FilterByConfidence(boxes, 0.6)
	if len(kept) != 2 {
		t.Fatalf("got %d boxes, want 2", len(kept))
	}
	if kept[0].Text != "keep" || kept[1].Text != "edge" {
		t.Fatalf("wrong boxes kept: %+v", kept)
	}
}

func TestFindBox(t *testing.T) {
	boxes := []TextBox{
		{Text: "Acme", Box: image.Rect(10, 10, 50, 30)},
		{Text: "Acme Corp", Box: image.Rect(60, 10, 140, 30)},
	}

	b, ok := FindBox(boxes, "acme")
	if !ok {
		t.Fatal("expected a match")
	}
	if b.Box.Min.X != 10 {
		t.Fatalf("expected first match in scan order, got %+v", b)
	}

	if _, ok := FindBox(boxes, "globex"); ok {
		t.Fatal("expected no match")
	}
}

func TestTextBoxCenter(t *testing.T) {
	b := TextBox{Box: image.Rect(10, 20, 30, 40)}
	if b.CenterY() != 30 {
		t.Fatalf("CenterY = %d, want 30", b.CenterY())
	}
	if c := b.Center(); c.X != 20 || c.Y != 30 {
		t.Fatalf("Center = %v, want (20,30)", c)
	}
}
