// Package grid maps a normalized (x,y) position to an integer (col,row)
// cell under a fixed grid resolution — the engine's only form of spatial
// aggregation.
package grid

import "math"

// Resolution names a registered grid; cols/rows give its shape.
type Resolution struct {
	Name string
	Cols int
	Rows int
}

// Default registers the three typical grid resolutions.
func Default() []Resolution {
	return []Resolution{
		{Name: "coarse", Cols: 4, Rows: 4},
		{Name: "medium", Cols: 8, Rows: 8},
		{Name: "fine", Cols: 16, Rows: 16},
	}
}

// Cell maps x,y in [0,1] to a clamped (col,row) under the given
// resolution.
func Cell(x, y float64, r Resolution) (col, row int) {
	col = clampInt(int(math.Floor(x*float64(r.Cols))), 0, r.Cols-1)
	row = clampInt(int(math.Floor(y*float64(r.Rows))), 0, r.Rows-1)
	return col, row
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
