package domain

import "math"

// EstimateIntensity maps magnitude and depth to an estimated maximum
// intensity class in [0, 12] using
//
//	I = round(1.5*M + 3.0 - 3.5*log10(depth))
//
// The relation is an empirical attenuation fit and only holds for damaging
// events, so it fails closed: a NaN magnitude or one below 3.0 estimates to
// 0. Depths that are NaN or non-positive are replaced by 10 km before the
// logarithm is taken.
func EstimateIntensity(magnitude, depth float64) int {
	if math.IsNaN(magnitude) || magnitude < 3.0 {
		return 0
	}
	if math.IsNaN(depth) || depth <= 0 {
		depth = DefaultDepthKm
	}

	i := math.Round(1.5*magnitude + 3.0 - 3.5*math.Log10(depth))
	if i < 0 {
		return 0
	}
	if i > 12 {
		return 12
	}
	return int(i)
}
