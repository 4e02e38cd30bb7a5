package metadata

import (
	"fmt"
	"math"
)

// ratioTolerance is the relative distance within which a measured ratio
// snaps to a named one.
const ratioTolerance = 0.02

var standardRatios = []struct {
	label string
	value float64
}{
	{"1:1", 1},
	{"5:4", 5.0 / 4},
	{"4:3", 4.0 / 3},
	{"3:2", 3.0 / 2},
	{"16:10", 16.0 / 10},
	{"16:9", 16.0 / 9},
	{"2:1", 2},
	{"21:9", 21.0 / 9},
	{"4:5", 4.0 / 5},
	{"3:4", 3.0 / 4},
	{"2:3", 2.0 / 3},
	{"10:16", 10.0 / 16},
	{"9:16", 9.0 / 16},
	{"1:2", 0.5},
	{"9:21", 9.0 / 21},
}

// RatioLabel names the aspect ratio of a width x height frame. Ratios within
// ratioTolerance of a common one get its label; anything else is reduced by
// the GCD ("1000:333"). Non-positive dimensions yield "".
func RatioLabel(width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	r := float64(width) / float64(height)

	best, bestDiff := "", math.MaxFloat64
	for _, s := range standardRatios {
		diff := math.Abs(r-s.value) / s.value
		if diff <= ratioTolerance && diff < bestDiff {
			best, bestDiff = s.label, diff
		}
	}
	if best != "" {
		return best
	}

	g := gcd(width, height)
	return fmt.Sprintf("%d:%d", width/g, height/g)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
