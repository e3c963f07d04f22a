// Package table groups OCR fragments into visual table rows and locates
// target values inside them.
package table

import (
	"sort"

	"screenpilot/internal/logging"
	"screenpilot/internal/ocr"
)

// Defaults for row clustering, tuned against 1080p captures of the
// target application's order grid.
const (
	DefaultClusteringTolerance = 5
	DefaultMinRowHeight        = 15
)

// Row is one clustered table row, in the coordinates of the analyzed image.
type Row struct {
	Top    int
	Bottom int
}

// Height returns the row height in pixels.
func (r Row) Height() int { return r.Bottom - r.Top }

// Contains reports whether a vertical position falls inside the row.
func (r Row) Contains(y int) bool { return y >= r.Top && y <= r.Bottom }

// ClusterRows groups fragments into rows by the vertical centers of
// their boxes. Two fragments share a row when the chain of centers
// between them never jumps more than tolerance px. Every fragment
// belongs to some cluster; clusters shorter than minRowHeight are
// dropped. Rows come back sorted top to bottom.
func ClusterRows(boxes []ocr.TextBox, tolerance, minRowHeight int) []Row {
	if len(boxes) == 0 {
		return nil
	}
	if tolerance <= 0 {
		tolerance = DefaultClusteringTolerance
	}
	if minRowHeight <= 0 {
		minRowHeight = DefaultMinRowHeight
	}

	sorted := make([]ocr.TextBox, len(boxes))
	copy(sorted, boxes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CenterY() < sorted[j].CenterY() })

	var rows []Row
	cur := Row{Top: sorted[0].Box.Min.Y, Bottom: sorted[0].Box.Max.Y}
	prevCenter := sorted[0].CenterY()

	flush := func() {
		if cur.Height() >= minRowHeight {
			rows = append(rows, cur)
		}
	}

	for _, b := range sorted[1:] {
		c := b.CenterY()
		if c-prevCenter > tolerance {
			flush()
			cur = Row{Top: b.Box.Min.Y, Bottom: b.Box.Max.Y}
		} else {
			if b.Box.Min.Y < cur.Top {
				cur.Top = b.Box.Min.Y
			}
			if b.Box.Max.Y > cur.Bottom {
				cur.Bottom = b.Box.Max.Y
			}
		}
		prevCenter = c
	}
	flush()

	logging.Table("clustered %d fragments into %d rows (tolerance=%d, min_height=%d)",
		len(boxes), len(rows), tolerance, minRowHeight)
	return rows
}

// maxUnmatchedTargets is how many targets may go unmatched before the
// whole match is rejected. Grid cells are routinely truncated or
// misread, so a small number of misses is tolerated.
const maxUnmatchedTargets = 3

// MatchTargets locates each target among the fragments by first
// case-insensitive containment match. Returns the matched positions
// sorted left to right. If maxUnmatchedTargets or more targets have no
// fragment, the result is empty: too little matched to trust the row.
func MatchTargets(targets []string, boxes []ocr.TextBox) []ocr.TextBox {
	var matched []ocr.TextBox
	var missing []string

	for _, target := range targets {
		if b, ok := ocr.FindBox(boxes, target); ok {
			matched = append(matched, b)
		} else {
			missing = append(missing, target)
		}
	}

	if len(missing) > 0 {
		logging.Get(logging.CategoryTable).Warn("unmatched targets: %v", missing)
	}
	if len(missing) >= maxUnmatchedTargets {
		logging.Get(logging.CategoryTable).Warn("%d of %d targets unmatched, rejecting match",
			len(missing), len(targets))
		return nil
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Box.Min.X < matched[j].Box.Min.X })
	return matched
}

// BoxesInRow filters fragments whose vertical center falls inside the row.
func BoxesInRow(boxes []ocr.TextBox, row Row) []ocr.TextBox {
	var in []ocr.TextBox
	for _, b := range boxes {
		if row.Contains(b.CenterY()) {
			in = append(in, b)
		}
	}
	return in
}

// NormalizeHeights scales each box's vertical extent to at most
// maxHeight around its center. OCR engines occasionally report wildly
// tall boxes for clipped glyphs, which would glue adjacent rows
// together during clustering.
func NormalizeHeights(boxes []ocr.TextBox, maxHeight int) []ocr.TextBox {
	if maxHeight <= 0 {
		return boxes
	}
	out := make([]ocr.TextBox, len(boxes))
	for i, b := range boxes {
		out[i] = b
		if b.Box.Dy() > maxHeight {
			c := b.CenterY()
			out[i].Box.Min.Y = c - maxHeight/2
			out[i].Box.Max.Y = c + maxHeight/2
		}
	}
	return out
}
