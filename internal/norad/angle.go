package norad

import "math"

// Fmod2p приводит угол к диапазону [0, 2π).
func Fmod2p(x float64) float64 {
	r := math.Mod(x, twoPi)
	if r < 0 {
		r += twoPi
	}
	// -1e-17 + 2π округляется до 2π.
	if r >= twoPi {
		r = 0
	}

	return r
}

// actan — atan2 с результатом в [0, 2π).
func actan(sinx, cosx float64) float64 {
	a := math.Atan2(sinx, cosx)
	if a < 0 {
		a += twoPi
	}

	return a
}
