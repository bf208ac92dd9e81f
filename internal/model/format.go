package model

import (
	"math"
	"strconv"
)

// plainLimit is the magnitude from which floats switch to exponent notation.
const plainLimit = 1e15

// FormatFloat renders v with the fewest digits that round-trip at bitSize
// (32 or 64). Magnitudes below 1e15 are written without an exponent.
func FormatFloat(v float64, bitSize int) string {
	if math.Abs(v) < plainLimit {
		return strconv.FormatFloat(v, 'f', -1, bitSize)
	}
	return strconv.FormatFloat(v, 'g', -1, bitSize)
}
