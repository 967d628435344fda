package norad

import "math"

const deg = math.Pi / 180

// Эталонные элементы Spacetrack Report #3.
var (
	// 88888: околоземный тест SGP/SGP4/SGP8.
	elements88888 = Elements{
		Epoch:          MJD(1980, 1, 275.98708465),
		Inclination:    72.8435 * deg,
		RAAN:           115.9689 * deg,
		ArgPerigee:     52.6988 * deg,
		MeanAnomaly:    110.5714 * deg,
		Eccentricity:   0.0086731,
		MeanMotion:     16.05824518,
		MeanMotionDot:  0.00073094,
		MeanMotionDDot: 0.13844e-3,
		BStar:          0.66816e-4,
	}

	// 11801: дальний тест SDP4/SDP8.
	elements11801 = Elements{
		Epoch:         MJD(1980, 1, 230.29629788),
		Inclination:   46.7916 * deg,
		RAAN:          230.4354 * deg,
		ArgPerigee:    47.4722 * deg,
		MeanAnomaly:   10.4117 * deg,
		Eccentricity:  0.7318036,
		MeanMotion:    2.28537848,
		MeanMotionDot: 0.01431103,
		BStar:         0.14311e-1,
	}
)

// ISS (ZARYA), эпоха 2024-01-01 12:00 UTC.
var (
	issLine1 = "1 25544U 98067A   24001.50000000  .00016717  00000-0  10270-3 0  9997"
	issLine2 = "2 25544  51.6400 247.4627 0006703 130.5360 325.0288 15.49815571423401"

	elementsISS = Elements{
		Epoch:         MJD(2024, 1, 1.5),
		Inclination:   51.6400 * deg,
		RAAN:          247.4627 * deg,
		ArgPerigee:    130.5360 * deg,
		MeanAnomaly:   325.0288 * deg,
		Eccentricity:  0.0006703,
		MeanMotion:    15.49815571,
		MeanMotionDot: 0.00016717,
		BStar:         0.10270e-3,
	}
)

// Геостационар: суточный резонанс.
var elementsGEO = Elements{
	Epoch:         MJD(2024, 1, 1.5),
	Inclination:   0.0400 * deg,
	RAAN:          275.4760 * deg,
	ArgPerigee:    185.0800 * deg,
	MeanAnomaly:   56.1900 * deg,
	Eccentricity:  0.0004080,
	MeanMotion:    1.00270000,
	MeanMotionDot: 0.00000115,
}

// Молния: 12-часовой резонанс.
var elementsMolniya = Elements{
	Epoch:        MJD(2024, 1, 1.5),
	Inclination:  63.4000 * deg,
	RAAN:         300.0000 * deg,
	ArgPerigee:   270.0000 * deg,
	MeanAnomaly:  10.0000 * deg,
	Eccentricity: 0.7200000,
	MeanMotion:   2.00600000,
}

func withInclination(el Elements, inclRad float64) Elements {
	el.Inclination = inclRad
	return el
}

func distance(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
