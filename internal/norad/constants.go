// Package norad реализует модели прогнозирования движения ИСЗ по средним
// элементам NORAD: SGP, SGP4, SGP8 для околоземных орбит и SDP4, SDP8 для
// глубокого космоса, вместе с общим блоком лунно-солнечных возмущений.
//
// Единицы внутри пакета следуют Spacetrack Report #3: расстояния в земных
// радиусах, время в минутах, углы в радианах. На выходе State содержит
// позицию в километрах и скорость в км/с в системе TEME.
package norad

import "math"

// Gravity — набор гравитационных констант модели.
type Gravity struct {
	Name        string
	RadiusKm    float64 // Экваториальный радиус Земли (XKMPER), км.
	XKE         float64 // sqrt(GM) в единицах ER^1.5/мин.
	J2          float64
	J3          float64
	J4          float64
	DragDensity float64 // Опорная плотность атмосферы SGP8/SDP8 (RHO), 1/ER.
}

// sgp8ReferenceDensity — значение RHO из Spacetrack Report #3.
const sgp8ReferenceDensity = 0.15696615

// Наборы констант.
var (
	// GravityReport3 — константы оригинального Spacetrack Report #3.
	GravityReport3 = Gravity{
		Name:        "report3",
		RadiusKm:    6378.135,
		XKE:         0.0743669161,
		J2:          1.082616e-3,
		J3:          -0.253881e-5,
		J4:          -1.65597e-6,
		DragDensity: sgp8ReferenceDensity,
	}

	// GravityWGS72 — WGS-72, стандарт для элементов NORAD.
	GravityWGS72 = newGravity("wgs72", 398600.8, 6378.135, 0.001082616, -0.00000253881, -0.00000165597)

	// GravityWGS84 — WGS-84.
	GravityWGS84 = newGravity("wgs84", 398600.5, 6378.137, 0.00108262998905, -0.00000253215306, -0.00000161098761)
)

func newGravity(name string, mu, radius, j2, j3, j4 float64) Gravity {
	return Gravity{
		Name:        name,
		RadiusKm:    radius,
		XKE:         60.0 / math.Sqrt(radius*radius*radius/mu),
		J2:          j2,
		J3:          j3,
		J4:          j4,
		DragDensity: sgp8ReferenceDensity,
	}
}

// GravityByName возвращает набор констант по имени ("report3", "wgs72", "wgs84").
func GravityByName(name string) (Gravity, bool) {
	switch name {
	case GravityReport3.Name, "":
		return GravityReport3, true
	case GravityWGS72.Name:
		return GravityWGS72, true
	case GravityWGS84.Name:
		return GravityWGS84, true
	default:
		return Gravity{}, false
	}
}

func (g Gravity) ck2() float64 { return 0.5 * g.J2 }

func (g Gravity) ck4() float64 { return -0.375 * g.J4 }

// qoms2t — (q0 - s)^4 для стандартной высоты 120 км и s = 78 км.
func (g Gravity) qoms2t() float64 {
	return math.Pow((120.0-78.0)/g.RadiusKm, 4)
}

// s — параметр плотности атмосферы, ER.
func (g Gravity) s() float64 { return 1.0 + 78.0/g.RadiusKm }

func (g Gravity) a3ovk2() float64 { return -g.J3 / g.ck2() }

func (g Gravity) valid() bool {
	return g.RadiusKm > 0 && g.XKE > 0 && g.J2 != 0
}

const (
	twoThirds   = 2.0 / 3.0
	minPerDay   = 1440.0
	twoPi       = 2 * math.Pi
	keplerTol   = 1.0e-6 // E6A.
	keplerIters = 10

	// deepSpacePeriod — граница околоземных и дальних орбит, мин.
	deepSpacePeriod = 225.0

	// Перигей ниже 220 км — упрощённая модель торможения SGP4.
	simpleDragPerigeeKm = 220.0
	// Перигей ниже 156 км — корректировка параметра s.
	lowPerigeeKm = 156.0
	// Перигей ниже 98 км — s фиксируется на 20 км.
	veryLowPerigeeKm = 98.0

	// Пределы «сингулярных» режимов.
	nearCircularEcc       = 1.0e-4
	minEccentricity       = 1.0e-6
	retrogradeFloor       = 1.5e-12
	retrogradeCosHalfIncl = 1.0e-2 // SGP8: член с делением на cos(i/2) отбрасывается.
	criticalInclFactor    = 1.0e-3
	decayEccentricityMin  = -0.001
	decaySemiMajorMin     = 0.95
)
