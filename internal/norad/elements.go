package norad

import (
	"fmt"
	"math"
)

// Elements — набор средних элементов NORAD на эпоху.
//
// Углы в радианах, среднее движение в оборотах в сутки, производные в
// соглашении TLE (ṅ/2 и n̈/6), BStar в 1/ER. Epoch — MJD (сутки от
// 1950-01-01 00:00 UTC).
type Elements struct {
	Epoch          float64
	Inclination    float64
	RAAN           float64
	ArgPerigee     float64
	MeanAnomaly    float64
	Eccentricity   float64
	MeanMotion     float64
	MeanMotionDot  float64
	MeanMotionDDot float64
	BStar          float64
}

// Validate проверяет область определения элементов.
func (e Elements) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"epoch", e.Epoch},
		{"inclination", e.Inclination},
		{"raan", e.RAAN},
		{"argument of perigee", e.ArgPerigee},
		{"mean anomaly", e.MeanAnomaly},
		{"eccentricity", e.Eccentricity},
		{"mean motion", e.MeanMotion},
		{"mean motion dot", e.MeanMotionDot},
		{"mean motion ddot", e.MeanMotionDDot},
		{"bstar", e.BStar},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidElements, f.name)
		}
	}

	switch {
	case e.Eccentricity < 0 || e.Eccentricity >= 1:
		return fmt.Errorf("%w: eccentricity %g outside [0, 1)", ErrInvalidElements, e.Eccentricity)
	case e.MeanMotion <= 0:
		return fmt.Errorf("%w: mean motion %g must be positive", ErrInvalidElements, e.MeanMotion)
	case e.Inclination < 0 || e.Inclination > math.Pi:
		return fmt.Errorf("%w: inclination %g outside [0, pi]", ErrInvalidElements, e.Inclination)
	}

	return nil
}

// Period возвращает период по «сырому» среднему движению, мин.
func (e Elements) Period() float64 {
	if e.MeanMotion <= 0 {
		return 0
	}

	return minPerDay / e.MeanMotion
}
