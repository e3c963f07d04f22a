package workflow

import (
	"screenpilot/internal/ocr"
	"screenpilot/internal/table"
)

// matchRowTargets finds the first table row (top to bottom) whose
// fragments match the targets within the partial-match tolerance, and
// returns the matched positions sorted left to right. Matching per row
// instead of across the whole grid keeps values from different rows
// from being mistaken for one record.
func matchRowTargets(targets []string, boxes []ocr.TextBox, opts TableOptions) []ocr.TextBox {
	normalized := table.NormalizeHeights(boxes, 2*opts.MinRowHeight)
	rows := table.ClusterRows(normalized, opts.ClusteringTolerance, opts.MinRowHeight)
	for _, row := range rows {
		inRow := table.BoxesInRow(normalized, row)
		if matched := table.MatchTargets(targets, inRow); len(matched) > 0 {
			return matched
		}
	}
	return nil
}
