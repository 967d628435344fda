package norad

import (
	"fmt"
	"math"
)

// SGP — упрощённая модель Хилтона–Куйкендалла. Торможение задаётся
// производными среднего движения из TLE, BStar не используется.
type SGP struct {
	d *Derived

	ao, qo, xlo        float64
	d1o, d2o, d3o, d4o float64
	omgdt, xnodot      float64
	c5, c6             float64
}

// NewSGP инициализирует модель SGP.
func NewSGP(el Elements, g Gravity) (*SGP, error) {
	d, err := Derive(el, g)
	if err != nil {
		return nil, err
	}

	ck2 := g.ck2()
	c1 := 1.5 * ck2
	c2 := 0.25 * ck2
	c3 := 0.5 * ck2
	c4 := g.J3 / (4 * ck2)

	p := &SGP{d: d}

	a1 := math.Pow(g.XKE/d.xno, twoThirds)
	d1 := c1 / (a1 * a1) * d.x3thm1 / math.Pow(d.betao2, 1.5)
	p.ao = a1 * (1 - d1/3 - d1*d1 - 134.0/81.0*d1*d1*d1)
	po := p.ao * d.betao2
	p.qo = p.ao * (1 - d.eo)
	p.xlo = d.xmo + d.omegao + d.xnodeo

	p.d1o = c3 * d.sinio * d.sinio
	p.d2o = c2 * d.x7thm1
	p.d3o = c1 * d.cosio
	p.d4o = p.d3o * d.sinio

	po2no := d.xno / (po * po)
	p.omgdt = c1 * po2no * (5*d.theta2 - 1)
	p.xnodot = -2 * p.d3o * po2no

	den := 1 + d.cosio
	if d.regime.Has(RegimeRetrogradeEquatorial) {
		den = retrogradeFloor
	}
	p.c5 = 0.5 * c4 * d.sinio * (3 + 5*d.cosio) / den
	p.c6 = c4 * d.sinio

	return p, nil
}

// Propagate рассчитывает состояние через tsince минут от эпохи.
func (p *SGP) Propagate(tsince float64) (State, error) {
	d := p.d
	g := d.grav

	n := d.xno + (2*d.xndt2o+3*d.xndd6o*tsince)*tsince
	if n <= 0 {
		return State{}, fmt.Errorf("sgp at %.3f min: %w: mean motion %g", tsince, ErrDecayed, n)
	}

	a := p.ao * math.Pow(d.xno/n, twoThirds)
	e := keplerTol
	if a > p.qo {
		e = 1 - p.qo/a
	}
	if err := checkMean(a, e); err != nil {
		return State{}, fmt.Errorf("sgp at %.3f min: %w", tsince, err)
	}
	pp := a * (1 - e*e)

	xnodes := d.xnodeo + p.xnodot*tsince
	omgas := d.omegao + p.omgdt*tsince
	xls := Fmod2p(p.xlo + (d.xno+p.omgdt+p.xnodot+(d.xndt2o+d.xndd6o*tsince)*tsince)*tsince)

	sinw, cosw := math.Sincos(omgas)
	axnsl := e * cosw
	aynsl := e*sinw - p.c6/pp
	xl := Fmod2p(xls - p.c5/pp*axnsl)

	u := Fmod2p(xl - xnodes)
	sineo1, coseo1 := solveKeplerBounded(u, axnsl, aynsl)

	ecose := axnsl*coseo1 + aynsl*sineo1
	esine := axnsl*sineo1 - aynsl*coseo1
	el2 := axnsl*axnsl + aynsl*aynsl
	pl := a * (1 - el2)
	if pl <= 0 {
		return State{}, fmt.Errorf("sgp at %.3f min: %w: semi-latus rectum %g", tsince, ErrDecayed, pl)
	}
	pl2 := pl * pl
	r := a * (1 - ecose)
	rdot := g.XKE * math.Sqrt(a) / r * esine
	rvdot := g.XKE * math.Sqrt(pl) / r
	temp := esine / (1 + math.Sqrt(1-el2))
	sinu := a / r * (sineo1 - aynsl - axnsl*temp)
	cosu := a / r * (coseo1 - axnsl + aynsl*temp)
	su := actan(sinu, cosu)

	sin2u := (cosu + cosu) * sinu
	cos2u := 1 - 2*sinu*sinu
	rk := r + p.d1o/pl*cos2u
	uk := su - p.d2o/pl2*sin2u
	xnodek := xnodes + p.d3o*sin2u/pl2
	xinck := d.xincl + p.d4o/pl2*cos2u

	if err := checkRadius(rk); err != nil {
		return State{}, fmt.Errorf("sgp at %.3f min: %w", tsince, err)
	}

	pos, vel := orientation(g, xnodek, xinck, uk, rk, rdot, rvdot)

	return State{
		Tsince: tsince,
		Mean: MeanElements{
			MeanAnomaly:  xls - omgas - xnodes,
			ArgPerigee:   omgas,
			Node:         xnodes,
			Eccentricity: e,
			Inclination:  d.xincl,
			MeanMotion:   n,
		}.normalized(),
		Position: pos,
		Velocity: vel,
	}, nil
}

// Model возвращает ModelSGP.
func (p *SGP) Model() Model { return ModelSGP }

// Elements возвращает исходные элементы.
func (p *SGP) Elements() Elements { return p.d.el }

// solveKeplerBounded — итерация Ньютона для SGP с ограничением шага
// единицей по модулю.
func solveKeplerBounded(u, axn, ayn float64) (sine, cose float64) {
	eo1 := u
	tem5 := 1.0
	for i := 0; ; i++ {
		sine, cose = math.Sincos(eo1)
		if math.Abs(tem5) < keplerTol || i >= keplerIters {
			break
		}
		tem5 = (u - ayn*cose + axn*sine - eo1) / (1 - cose*axn - sine*ayn)
		if math.Abs(tem5) > 1 {
			tem5 = math.Copysign(1, tem5)
		}
		eo1 += tem5
	}

	return sine, cose
}
