package vision

import (
	"fmt"
	"image"
	"math"
	"sort"
)

// Match is the best placement of a template inside a search image.
type Match struct {
	// Center of the matched area, in the coordinates of the searched image.
	Center image.Point
	// Bounds of the matched area.
	Bounds image.Rectangle
	// Score is the normalized correlation, -1..1. Higher is better.
	Score float64
}

// Meets reports whether the match score reaches the confidence
// threshold. Equality passes.
func (m Match) Meets(confidence float64) bool {
	return m.Score >= confidence
}

// grayPlane is a float grayscale copy of an image.
type grayPlane struct {
	w, h int
	pix  []float64
}

func toGray(img image.Image) *grayPlane {
	b := img.Bounds()
	p := &grayPlane{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, 16-bit channels
			p.pix[i] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)
			i++
		}
	}
	return p
}

func (p *grayPlane) at(x, y int) float64 { return p.pix[y*p.w+x] }

// MatchTemplate slides tpl over img and returns the best zero-mean
// normalized cross-correlation match. The template must fit inside
// the image.
func MatchTemplate(img, tpl image.Image) (Match, error) {
	src := toGray(img)
	t := toGray(tpl)
	if t.w > src.w || t.h > src.h {
		return Match{}, fmt.Errorf("template %dx%d larger than search image %dx%d", t.w, t.h, src.w, src.h)
	}

	scores := correlate(src, t)
	best := Match{Score: math.Inf(-1)}
	for y := 0; y <= src.h-t.h; y++ {
		for x := 0; x <= src.w-t.w; x++ {
			s := scores[y*(src.w-t.w+1)+x]
			if s > best.Score {
				best = Match{
					Center: image.Pt(x+t.w/2, y+t.h/2),
					Bounds: image.Rect(x, y, x+t.w, y+t.h),
					Score:  s,
				}
			}
		}
	}
	return best, nil
}

// MatchInRegion searches for tpl only inside region of img and returns
// the best match translated to full-image coordinates.
func MatchInRegion(img, tpl image.Image, region image.Rectangle) (Match, error) {
	sub, err := Crop(img, region)
	if err != nil {
		return Match{}, err
	}
	m, err := MatchTemplate(sub, tpl)
	if err != nil {
		return Match{}, err
	}
	clamped := region.Intersect(img.Bounds())
	m.Center = m.Center.Add(clamped.Min)
	m.Bounds = m.Bounds.Add(clamped.Min)
	return m, nil
}

// correlate computes the zero-mean normalized cross-correlation of t
// against every placement in src. Flat (zero variance) windows score 0.
func correlate(src, t *grayPlane) []float64 {
	n := float64(t.w * t.h)

	var tMean float64
	for _, v := range t.pix {
		tMean += v
	}
	tMean /= n
	tZero := make([]float64, len(t.pix))
	var tNorm float64
	for i, v := range t.pix {
		d := v - tMean
		tZero[i] = d
		tNorm += d * d
	}

	outW := src.w - t.w + 1
	outH := src.h - t.h + 1
	scores := make([]float64, outW*outH)
	if tNorm == 0 {
		return scores
	}

	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			var sum, sumSq float64
			for ty := 0; ty < t.h; ty++ {
				row := (oy+ty)*src.w + ox
				for tx := 0; tx < t.w; tx++ {
					v := src.pix[row+tx]
					sum += v
					sumSq += v * v
				}
			}
			mean := sum / n
			sNorm := sumSq - sum*mean
			if sNorm <= 0 {
				continue
			}

			var cross float64
			for ty := 0; ty < t.h; ty++ {
				row := (oy+ty)*src.w + ox
				trow := ty * t.w
				for tx := 0; tx < t.w; tx++ {
					cross += (src.pix[row+tx] - mean) * tZero[trow+tx]
				}
			}
			scores[oy*outW+ox] = cross / math.Sqrt(sNorm*tNorm)
		}
	}
	return scores
}

// DetectSeparators finds every non-overlapping placement of tpl in img
// scoring at least threshold, by repeatedly taking the global maximum
// and suppressing its neighborhood. Results are sorted by x.
func DetectSeparators(img, tpl image.Image, threshold float64) ([]Match, error) {
	src := toGray(img)
	t := toGray(tpl)
	if t.w > src.w || t.h > src.h {
		return nil, fmt.Errorf("template %dx%d larger than search image %dx%d", t.w, t.h, src.w, src.h)
	}

	outW := src.w - t.w + 1
	outH := src.h - t.h + 1
	scores := correlate(src, t)

	var found []Match
	for {
		best := -2.0
		bx, by := -1, -1
		for y := 0; y < outH; y++ {
			for x := 0; x < outW; x++ {
				if s := scores[y*outW+x]; s > best {
					best, bx, by = s, x, y
				}
			}
		}
		if best < threshold {
			break
		}
		found = append(found, Match{
			Center: image.Pt(bx+t.w/2, by+t.h/2),
			Bounds: image.Rect(bx, by, bx+t.w, by+t.h),
			Score:  best,
		})
		// suppress one template footprint around the hit
		for y := max(0, by-t.h); y < min(outH, by+t.h); y++ {
			for x := max(0, bx-t.w); x < min(outW, bx+t.w); x++ {
				scores[y*outW+x] = -2
			}
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Center.X < found[j].Center.X })
	return found, nil
}

// SplitColumns cuts img into vertical strips between consecutive
// separator x positions. Positions outside the image are clamped;
// strips narrower than 2px are dropped.
func SplitColumns(img image.Image, xs []int) []image.Image {
	b := img.Bounds()
	edges := append([]int{b.Min.X}, xs...)
	edges = append(edges, b.Max.X)
	sort.Ints(edges)

	var strips []image.Image
	for i := 0; i < len(edges)-1; i++ {
		left, right := edges[i], edges[i+1]
		if right-left < 2 {
			continue
		}
		strip, err := Crop(img, image.Rect(left, b.Min.Y, right, b.Max.Y))
		if err != nil {
			continue
		}
		strips = append(strips, strip)
	}
	return strips
}

// JoinWithPadding lays strips side by side separated by white gaps of
// padding px. Helps the OCR pass keep adjacent columns apart.
func JoinWithPadding(strips []image.Image, padding int) image.Image {
	if len(strips) == 0 {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}

	width, height := 0, 0
	for _, s := range strips {
		width += s.Bounds().Dx()
		if h := s.Bounds().Dy(); h > height {
			height = h
		}
	}
	width += padding * (len(strips) - 1)

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	// white background
	for i := range out.Pix {
		out.Pix[i] = 0xff
	}

	offset := 0
	for _, s := range strips {
		sb := s.Bounds()
		for y := 0; y < sb.Dy(); y++ {
			for x := 0; x < sb.Dx(); x++ {
				out.Set(offset+x, y, s.At(sb.Min.X+x, sb.Min.Y+y))
			}
		}
		offset += sb.Dx() + padding
	}
	return out
}
