package norad

import (
	"fmt"
	"math"
)

// sgp8SimpleDragLimit — порог |ṅ·1440/n|, ниже которого SGP8 использует
// линейную модель торможения.
const sgp8SimpleDragLimit = 2.16e-3

// sgp8Drag — вековая часть SGP8/SDP8: скорости от J2/J4 и аппроксимация
// интеграла торможения.
type sgp8Drag struct {
	d *Derived

	// simple — линейное торможение (малое ṅ или почти круговая орбита).
	simple bool

	xmdt1, xgdt1, xhdt1 float64
	xndt, xndtn, edot   float64

	// n(t) = n0 + xnd·(1 - (1 - γt)^pp), e(t) = e0 + ed·(1 - (1 - γt)^qq).
	pp, gamma, xnd, qq, ed, ovgpp float64

	short sgp8Short
}

func newSGP8Drag(d *Derived) *sgp8Drag {
	g := d.grav
	ck2 := g.ck2()
	s := g.s()

	p := &sgp8Drag{d: d, short: newSGP8Short(d)}

	b := 2 * d.bstar / g.DragDensity
	po := d.aodp * d.betao2
	pom2 := 1 / (po * po)
	sing, cosg := math.Sincos(d.omegao)

	pardt1 := 3 * ck2 * pom2 * d.xnodp
	p.xmdt1 = 0.5 * pardt1 * d.betao * d.x3thm1
	p.xgdt1 = -0.5 * pardt1 * d.x1m5th
	p.xhdt1 = -pardt1 * d.cosio

	tsi := 1 / (po - s)
	eta := d.eo * s * tsi
	eta2 := eta * eta
	psim2 := math.Abs(1 / (1 - eta2))
	alpha2 := 1 + d.eosq
	eeta := d.eo * eta
	cos2g := 2*cosg*cosg - 1
	d5 := tsi * psim2
	d1 := d5 / po
	d2 := 12 + eta2*(36+4.5*eta2)
	d3 := eta2 * (15 + 2.5*eta2)
	d4 := eta * (5 + 3.75*eta2)
	b1 := ck2 * d.x3thm1
	b2 := -ck2 * d.x1mth2
	b3 := g.a3ovk2() * d.sinio
	c0 := 0.5 * b * g.DragDensity * g.qoms2t() * d.xnodp * d.aodp * math.Pow(tsi, 4) *
		math.Pow(psim2, 3.5) / math.Sqrt(alpha2)
	c1 := 1.5 * d.xnodp * alpha2 * alpha2 * c0
	c4 := d1 * d3 * b2
	c5 := d5 * d4 * b3

	p.xndt = c1 * ((2 + eta2*(3+34*d.eosq) + 5*eeta*(4+eta2) + 8.5*d.eosq) +
		d1*d2*b1 + c4*cos2g + c5*sing)
	p.xndtn = p.xndt / d.xnodp

	// Для почти круговых орбит производные ниже делятся на eta².
	if math.Abs(p.xndtn*minPerDay) < sgp8SimpleDragLimit || d.regime.Has(RegimeNearCircular) {
		p.simple = true
		p.edot = p.linearEdot()

		return p
	}

	d6 := eta * (30 + 22.5*eta2)
	d7 := eta * (5 + 12.5*eta2)
	d8 := 1 + eta2*(6.75+eta2)
	c8 := d1 * d7 * b2
	c9 := d5 * d8 * b3
	edot := -c0 * (eta*(4+eta2+d.eosq*(15.5+7*eta2)) + d.eo*(5+15*eta2) +
		d1*d6*b1 + c8*cos2g + c9*sing)
	d20 := 0.5 * twoThirds * p.xndtn
	aldtal := d.eo * edot / alpha2
	tsdtts := 2 * d.aodp * tsi * (d20*d.betao2 + d.eo*edot)
	etdt := (edot + d.eo*tsdtts) * tsi * s
	psdtps := -eta * etdt * psim2
	sin2g := 2 * sing * cosg
	c0dtc0 := d20 + 4*tsdtts - aldtal - 7*psdtps
	c1dtc1 := p.xndtn + 4*aldtal + c0dtc0
	d9 := eta*(6+68*d.eosq) + d.eo*(20+15*eta2)
	d10 := 5*eta*(4+eta2) + d.eo*(17+68*eta2)
	d11 := eta * (72 + 18*eta2)
	d12 := eta * (30 + 10*eta2)
	d13 := 5 + 11.25*eta2
	d14 := tsdtts - 2*psdtps
	d15 := 2 * (d20 + d.eo*edot/d.betao2)
	d1dt := d1 * (d14 + d15)
	d2dt := etdt * d11
	d3dt := etdt * d12
	d4dt := etdt * d13
	d5dt := d5 * d14
	c4dt := b2 * (d1dt*d3 + d1*d3dt)
	c5dt := b3 * (d5dt*d4 + d5*d4dt)
	d16 := d9*etdt + d10*edot + b1*(d1dt*d2+d1*d2dt) + c4dt*cos2g + c5dt*sing +
		p.xgdt1*(c5*cosg-2*c4*sin2g)
	xnddt := c1dtc1*p.xndt + c1*d16
	eddot := c0dtc0*edot - c0*((4+3*eta2+30*eeta+d.eosq*(15.5+21*eta2))*etdt+
		(5+15*eta2+eeta*(31+14*eta2))*edot+
		b1*(d1dt*d6+d1*etdt*(30+67.5*eta2))+
		b2*(d1dt*d7+d1*etdt*(5+37.5*eta2))*cos2g+
		b3*(d5dt*d8+d5*etdt*eta*(13.5+4*eta2))*sing+
		p.xgdt1*(c9*cosg-2*c8*sin2g))
	d25 := edot * edot
	d17 := xnddt/d.xnodp - p.xndtn*p.xndtn
	tsddts := 2*tsdtts*(tsdtts-d20) + d.aodp*tsi*(twoThirds*d.betao2*d17-4*d20*d.eo*edot+2*(d25+d.eo*eddot))
	etddt := (eddot+2*edot*tsdtts)*tsi*s + tsddts*eta
	d18 := tsddts - tsdtts*tsdtts
	d19 := -psdtps*psdtps/eta2 - eta*etddt*psim2 - psdtps*psdtps
	d23 := etdt * etdt
	d1ddt := d1dt*(d14+d15) + d1*(d18-2*d19+twoThirds*d17+2*(alpha2*d25/d.betao2+d.eo*eddot)/d.betao2)
	xntrdt := p.xndt*(2*twoThirds*d17+3*(d25+d.eo*eddot)/alpha2-6*aldtal*aldtal+4*d18-7*d19) +
		c1dtc1*xnddt + c1*(c1dtc1*d16+
			d9*etddt+d10*eddot+d23*(6+30*eeta+68*d.eosq)+etdt*edot*(40+30*eta2+272*eeta)+d25*(17+68*eta2)+
			b1*(d1ddt*d2+2*d1dt*d2dt+d1*(etddt*d11+d23*(72+54*eta2)))+
			b2*(d1ddt*d3+2*d1dt*d3dt+d1*(etddt*d12+d23*(30+30*eta2)))*cos2g+
			b3*((d5dt*d14+d5*(d18-2*d19))*d4+2*d4dt*d5dt+d5*(etddt*d13+22.5*eta*d23))*sing+
			p.xgdt1*((7*d20+4*d.eo*edot/d.betao2)*(c5*cosg-2*c4*sin2g)+
				((2*c5dt*cosg-4*c4dt*sin2g)-p.xgdt1*(c5*sing+4*c4*cos2g))))

	tmnddt := xnddt * 1e9
	temp := tmnddt*tmnddt - p.xndt*1e18*xntrdt
	pp := (temp + tmnddt*tmnddt) / temp
	gamma := -xntrdt / (xnddt * (pp - 2))
	xnd := p.xndt / (pp * gamma)
	qq := 1 - eddot/(edot*gamma)
	ed := edot / (qq * gamma)
	ovgpp := 1 / (gamma * (pp + 1))

	for _, v := range []float64{pp, gamma, xnd, qq, ed, ovgpp} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			p.simple = true
			p.edot = p.linearEdot()

			return p
		}
	}

	p.edot = edot
	p.pp, p.gamma, p.xnd, p.qq, p.ed, p.ovgpp = pp, gamma, xnd, qq, ed, ovgpp

	return p
}

// linearEdot — скорость изменения e в линейной модели торможения.
func (p *sgp8Drag) linearEdot() float64 {
	return -twoThirds * p.xndtn * (1 - p.d.eo)
}

// SGP8 — модель Хуйотса для околоземных орбит. Контекст неизменяем после
// создания.
type SGP8 struct {
	*sgp8Drag
}

// NewSGP8 инициализирует модель SGP8.
func NewSGP8(el Elements, g Gravity) (*SGP8, error) {
	d, err := Derive(el, g)
	if err != nil {
		return nil, err
	}

	return &SGP8{sgp8Drag: newSGP8Drag(d)}, nil
}

// Propagate рассчитывает состояние через tsince минут от эпохи.
func (p *SGP8) Propagate(tsince float64) (State, error) {
	d := p.d

	xmam := Fmod2p(d.xmo + d.xmdot*tsince)
	omgasm := d.omegao + d.omgdot*tsince
	xnodes := d.xnodeo + d.xnodot*tsince

	var xn, em, z1 float64
	if p.simple {
		xn = d.xnodp + p.xndt*tsince
		em = d.eo + p.edot*tsince
		z1 = 0.5 * p.xndt * tsince * tsince
	} else {
		temp := 1 - p.gamma*tsince
		if temp <= 0 {
			return State{}, fmt.Errorf("sgp8 at %.3f min: %w: drag fit exhausted", tsince, ErrDecayed)
		}
		temp1 := math.Pow(temp, p.pp)
		xn = d.xnodp + p.xnd*(1-temp1)
		em = d.eo + p.ed*(1-math.Pow(temp, p.qq))
		z1 = p.xnd * (tsince + p.ovgpp*(temp*temp1-1))
	}

	z7 := 3.5 * twoThirds * z1 / d.xnodp
	xmam = Fmod2p(xmam + z1 + z7*p.xmdt1)
	omgasm += z7 * p.xgdt1
	xnodes += z7 * p.xhdt1

	mean := MeanElements{
		MeanAnomaly:  xmam,
		ArgPerigee:   omgasm,
		Node:         xnodes,
		Eccentricity: em,
		Inclination:  d.xincl,
		MeanMotion:   xn,
	}

	st, err := p.short.apply(mean, p.short.sinio2)
	if err != nil {
		return State{}, fmt.Errorf("sgp8 at %.3f min: %w", tsince, err)
	}
	st.Tsince = tsince

	return st, nil
}

// Model возвращает ModelSGP8.
func (p *SGP8) Model() Model { return ModelSGP8 }

// Elements возвращает исходные элементы.
func (p *SGP8) Elements() Elements { return p.d.el }

// Derived возвращает производные константы.
func (p *SGP8) Derived() *Derived { return p.d }

// sgp8Short — периодические поправки SGP8/SDP8 в переменных y4, y5.
type sgp8Short struct {
	g Gravity

	theta2, unmth2, tthmun, unm5th float64
	a3cof                          float64
	cosi, sini                     float64
	sinio2, cosio2                 float64
	onePlusCosi                    float64

	// retrograde — cos(i/2) < 1e-2 (i > 178.85°): член с делением на
	// cos(i/2) отбрасывается.
	retrograde bool
}

func newSGP8Short(d *Derived) sgp8Short {
	s := sgp8Short{
		g:           d.grav,
		theta2:      d.theta2,
		unmth2:      d.x1mth2,
		tthmun:      d.x3thm1,
		unm5th:      d.x1m5th,
		a3cof:       d.grav.a3ovk2(),
		cosi:        d.cosio,
		sini:        d.sinio,
		onePlusCosi: 1 + d.cosio,
	}
	s.sinio2, s.cosio2 = math.Sincos(0.5 * d.xincl)

	if d.regime.Has(RegimeRetrogradeEquatorial) {
		s.onePlusCosi = retrogradeFloor
	}
	s.retrograde = s.cosio2 < retrogradeCosHalfIncl

	return s
}

// apply решает уравнение Кеплера и возвращает оскулирующее состояние.
// sini2 — синус половины текущего наклонения.
func (s *sgp8Short) apply(m MeanElements, sini2 float64) (State, error) {
	g := s.g
	ck2 := g.ck2()
	xmam, em, xn := m.MeanAnomaly, m.Eccentricity, m.MeanMotion

	if xn <= 0 {
		return State{}, fmt.Errorf("%w: mean motion %g", ErrDecayed, xn)
	}
	am := math.Pow(g.XKE/xn, twoThirds)
	if err := checkMean(am, em); err != nil {
		return State{}, err
	}
	em = math.Max(em, minEccentricity)

	zc2 := xmam + em*math.Sin(xmam)*(1+em*math.Cos(xmam))
	var sine, cose, zc5 float64
	for range keplerIters {
		sine, cose = math.Sincos(zc2)
		zc5 = 1 / (1 - em*cose)
		cape := (xmam+em*sine-zc2)*zc5 + zc2
		if math.Abs(cape-zc2) <= keplerTol {
			break
		}
		zc2 = cape
	}

	beta2m := 1 - em*em
	sinos, cosos := math.Sincos(m.ArgPerigee)
	axnm := em * cosos
	aynm := em * sinos
	pm := am * beta2m
	g1 := 1 / pm
	g2 := 0.5 * ck2 * g1
	g3 := g2 * g1
	beta := math.Sqrt(beta2m)
	g4 := 0.25 * s.a3cof * s.sini
	g5 := 0.25 * s.a3cof * g1
	snf := beta * sine * zc5
	csf := (cose - em) * zc5
	fm := actan(snf, csf)
	snfg := snf*cosos + csf*sinos
	csfg := csf*cosos - snf*sinos
	sn2f2g := 2 * snfg * csfg
	cs2f2g := 2*csfg*csfg - 1
	ecosf := em * csf
	g10 := fm - xmam + em*snf
	rm := pm / (1 + ecosf)
	aovr := am / rm
	g13 := xn * aovr
	g14 := -g13 * aovr

	dr := g2*(s.unmth2*cs2f2g-3*s.tthmun) - g4*snfg
	diwc := 3*g3*s.sini*cs2f2g - g5*aynm
	di := diwc * s.cosi
	sni2du := s.sinio2 * (g3*(0.5*(1-7*s.theta2)*sn2f2g-3*s.unm5th*g10) - g5*s.sini*csfg*(2+ecosf))
	if !s.retrograde {
		sni2du -= 0.5 * g5 * s.theta2 * axnm / s.cosio2
	}
	xlamb := fm + m.ArgPerigee + m.Node +
		g3*(0.5*(1+6*s.cosi-7*s.theta2)*sn2f2g-3*(s.unm5th+2*s.cosi)*g10) +
		g5*s.sini*(s.cosi*axnm/s.onePlusCosi-(2+ecosf)*csfg)
	y4 := sini2*snfg + csfg*sni2du + 0.5*snfg*s.cosio2*di
	y5 := sini2*csfg - snfg*sni2du + 0.5*csfg*s.cosio2*di

	r := rm + dr
	rdot := xn*am*em*snf/beta + g14*(2*g2*s.unmth2*sn2f2g+g4*csfg)
	rvdot := xn*am*am*beta/rm + g14*dr + am*g13*s.sini*diwc

	if err := checkRadius(r); err != nil {
		return State{}, err
	}

	// У почти обратных экваториальных орбит y4² + y5² может превысить 1
	// на величину ошибки округления.
	zsq := math.Max(0, 1-y4*y4-y5*y5)

	snlamb, cslamb := math.Sincos(xlamb)
	temp := 2 * (y5*snlamb - y4*cslamb)
	ux := y4*temp + cslamb
	vx := y5*temp - snlamb
	temp = 2 * (y5*cslamb + y4*snlamb)
	uy := -y4*temp + snlamb
	vy := -y5*temp + cslamb
	temp = 2 * math.Sqrt(zsq)
	uz := y4 * temp
	vz := y5 * temp

	pos, vel := scaleState(g,
		[3]float64{r * ux, r * uy, r * uz},
		[3]float64{rdot*ux + rvdot*vx, rdot*uy + rvdot*vy, rdot*uz + rvdot*vz})

	m.Eccentricity = em

	return State{
		Mean:     m.normalized(),
		Position: pos,
		Velocity: vel,
	}, nil
}
