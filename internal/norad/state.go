package norad

import (
	"fmt"
	"math"
)

// MeanElements — медленные средние элементы на момент tsince.
// Углы в радианах, среднее движение в рад/мин.
type MeanElements struct {
	MeanAnomaly  float64
	ArgPerigee   float64
	Node         float64
	Eccentricity float64
	Inclination  float64
	MeanMotion   float64
}

// State — результат одного вызова Propagate.
type State struct {
	Tsince   float64      // Минуты от эпохи.
	Mean     MeanElements // Средние элементы после всех вековых и долгопериодических поправок.
	Position [3]float64   // TEME, км.
	Velocity [3]float64   // TEME, км/с.
}

// Radius — расстояние от центра Земли, км.
func (s State) Radius() float64 {
	return math.Sqrt(s.Position[0]*s.Position[0] + s.Position[1]*s.Position[1] + s.Position[2]*s.Position[2])
}

// Speed — модуль скорости, км/с.
func (s State) Speed() float64 {
	return math.Sqrt(s.Velocity[0]*s.Velocity[0] + s.Velocity[1]*s.Velocity[1] + s.Velocity[2]*s.Velocity[2])
}

// normalized возвращает копию с углами, приведёнными к [0, 2π).
func (m MeanElements) normalized() MeanElements {
	m.MeanAnomaly = Fmod2p(m.MeanAnomaly)
	m.ArgPerigee = Fmod2p(m.ArgPerigee)
	m.Node = Fmod2p(m.Node)

	return m
}

// orientation переводит оскулирующие r, u, Ω, i и радиальную/трансверсальную
// скорости (ER, ER/мин) в декартовы координаты (км, км/с).
func orientation(g Gravity, node, incl, u, r, rdot, rfdot float64) (pos, vel [3]float64) {
	sinuk, cosuk := math.Sincos(u)
	sinik, cosik := math.Sincos(incl)
	sinnok, cosnok := math.Sincos(node)

	xmx := -sinnok * cosik
	xmy := cosnok * cosik
	ux := xmx*sinuk + cosnok*cosuk
	uy := xmy*sinuk + sinnok*cosuk
	uz := sinik * sinuk
	vx := xmx*cosuk - cosnok*sinuk
	vy := xmy*cosuk - sinnok*sinuk
	vz := sinik * cosuk

	return scaleState(g, [3]float64{r * ux, r * uy, r * uz},
		[3]float64{rdot*ux + rfdot*vx, rdot*uy + rfdot*vy, rdot*uz + rfdot*vz})
}

// scaleState переводит ER и ER/мин в км и км/с.
func scaleState(g Gravity, p, v [3]float64) (pos, vel [3]float64) {
	vscale := g.RadiusKm / 60.0
	for i := range 3 {
		pos[i] = p[i] * g.RadiusKm
		vel[i] = v[i] * vscale
	}

	return pos, vel
}

// checkMean проверяет физичность средних элементов после вековых поправок.
func checkMean(a, e float64) error {
	switch {
	case math.IsNaN(a) || math.IsNaN(e):
		return fmt.Errorf("%w: mean elements are not finite", ErrDecayed)
	case e >= 1 || e < decayEccentricityMin:
		return fmt.Errorf("%w: mean eccentricity %g", ErrDecayed, e)
	case a < decaySemiMajorMin:
		return fmt.Errorf("%w: mean semi-major axis %g ER", ErrDecayed, a)
	}

	return nil
}

// checkRadius проверяет, что спутник над поверхностью Земли.
func checkRadius(r float64) error {
	if math.IsNaN(r) || r < 1.0 {
		return fmt.Errorf("%w: radius %g ER below surface", ErrDecayed, r)
	}

	return nil
}

// clampEccentricity не даёт эксцентриситету выйти за нижнюю границу.
func clampEccentricity(e float64) float64 {
	if e < minEccentricity {
		return minEccentricity
	}

	return e
}
