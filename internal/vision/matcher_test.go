package vision

import (
	"image"
	"image/color"
	"testing"
)

// checkerboard fills img with a pattern that has real variance,
// so correlation scores are meaningful.
func checkerboard(img *image.RGBA, cell int) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := uint8(40)
			if (x/cell+y/cell)%2 == 0 {
				v = 220
			}
			img.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
}

// stamp copies src onto dst at the given offset.
func stamp(dst *image.RGBA, src image.Image, at image.Point) {
	sb := src.Bounds()
	for y := 0; y < sb.Dy(); y++ {
		for x := 0; x < sb.Dx(); x++ {
			dst.Set(at.X+x, at.Y+y, src.At(sb.Min.X+x, sb.Min.Y+y))
		}
	}
}

// glyph builds a small high-variance template.
func glyph() *image.RGBA {
	t := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := uint8((x*37 + y*11) % 251)
			t.Set(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return t
}

func TestMatchTemplate_FindsExactPlacement(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	checkerboard(img, 6)
	tpl := glyph()
	stamp(img, tpl, image.Pt(20, 12))

	m, err := MatchTemplate(img, tpl)
	if err != nil {
		t.Fatalf("MatchTemplate: %v", err)
	}
	if m.Score < 0.99 {
		t.Fatalf("exact placement scored %.3f, want ~1.0", m.Score)
	}
	if m.Bounds.Min != image.Pt(20, 12) {
		t.Fatalf("matched at %v, want (20,12)", m.Bounds.Min)
	}
	if m.Center != image.Pt(24, 16) {
		t.Fatalf("center %v, want (24,16)", m.Center)
	}
}

func TestMatchTemplate_TooLarge(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	tpl := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if _, err := MatchTemplate(img, tpl); err == nil {
		t.Fatal("expected error for oversized template")
	}
}

func TestMatchMeets_ThresholdBoundary(t *testing.T) {
	cases := []struct {
		score      float64
		confidence float64
		want       bool
	}{
		{0.8, 0.8, true},   // equality passes
		{0.79, 0.8, false}, // just under fails
		{0.81, 0.8, true},
		{1.0, 0.8, true},
		{0.0, 0.8, false},
	}
	for _, tc := range cases {
		m := Match{Score: tc.score}
		if got := m.Meets(tc.confidence); got != tc.want {
			t.Fatalf("Meets(%.2f) with score %.2f = %v, want %v", tc.confidence, tc.score, got, tc.want)
		}
	}
}

func TestMatchInRegion_TranslatesToGlobalCoordinates(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 100))
	checkerboard(img, 7)
	tpl := glyph()
	stamp(img, tpl, image.Pt(70, 60))

	m, err := MatchInRegion(img, tpl, image.Rect(50, 40, 120, 100))
	if err != nil {
		t.Fatalf("MatchInRegion: %v", err)
	}
	if m.Score < 0.99 {
		t.Fatalf("scored %.3f, want ~1.0", m.Score)
	}
	if m.Bounds.Min != image.Pt(70, 60) {
		t.Fatalf("matched at %v in global coordinates, want (70,60)", m.Bounds.Min)
	}
}

func TestCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 30))
	checkerboard(img, 4)

	t.Run("clamps to bounds", func(t *testing.T) {
		got, err := Crop(img, image.Rect(20, 20, 50, 50))
		if err != nil {
			t.Fatalf("Crop: %v", err)
		}
		if got.Bounds().Dx() != 10 || got.Bounds().Dy() != 10 {
			t.Fatalf("got %v, want 10x10", got.Bounds())
		}
	})

	t.Run("disjoint region errors", func(t *testing.T) {
		if _, err := Crop(img, image.Rect(100, 100, 120, 120)); err == nil {
			t.Fatal("expected error for disjoint region")
		}
	})
}

func TestDetectSeparators(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 40))
	checkerboard(img, 9)
	tpl := glyph()
	stamp(img, tpl, image.Pt(150, 10))
	stamp(img, tpl, image.Pt(40, 10))

	found, err := DetectSeparators(img, tpl, 0.95)
	if err != nil {
		t.Fatalf("DetectSeparators: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("found %d separators, want 2", len(found))
	}
	if found[0].Center.X >= found[1].Center.X {
		t.Fatalf("separators not sorted by x: %v, %v", found[0].Center, found[1].Center)
	}
	if found[0].Bounds.Min.X != 40 || found[1].Bounds.Min.X != 150 {
		t.Fatalf("wrong placements: %v, %v", found[0].Bounds.Min, found[1].Bounds.Min)
	}
}

func TestSplitAndJoinColumns(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 90, 20))
	checkerboard(img, 5)

	strips := SplitColumns(img, []int{30, 60})
	if len(strips) != 3 {
		t.Fatalf("got %d strips, want 3", len(strips))
	}
	for i, s := range strips {
		if s.Bounds().Dx() != 30 {
			t.Fatalf("strip %d width %d, want 30", i, s.Bounds().Dx())
		}
	}

	joined := JoinWithPadding(strips, 10)
	if w := joined.Bounds().Dx(); w != 90+20 {
		t.Fatalf("joined width %d, want 110", w)
	}
	if h := joined.Bounds().Dy(); h != 20 {
		t.Fatalf("joined height %d, want 20", h)
	}
}
