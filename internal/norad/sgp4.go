package norad

import (
	"fmt"
	"math"
)

// SGP4 — контекст модели SGP4. После создания не изменяется, поэтому один
// экземпляр можно вызывать из нескольких горутин.
type SGP4 struct {
	d *Derived

	// simple — перигей ниже 220 км, полином торможения усечён.
	simple bool

	eta, c1, c4, c5       float64
	omgcof, xmcof, xnodcf float64
	t2cof, delmo, sinmo   float64
	d2, d3, d4            float64
	t3cof, t4cof, t5cof   float64

	short brouwerShort
}

// NewSGP4 инициализирует SGP4 по элементам.
func NewSGP4(el Elements, g Gravity) (*SGP4, error) {
	d, err := Derive(el, g)
	if err != nil {
		return nil, err
	}

	return newSGP4(d), nil
}

func newSGP4(d *Derived) *SGP4 {
	p := &SGP4{
		d:      d,
		simple: d.perigeeKm < simpleDragPerigeeKm,
		short:  newBrouwerShort(d),
	}

	ck2 := d.grav.ck2()
	s4, qoms24 := d.dragParams()
	coef, coef1, tsi := p.dragCoefficients(s4, qoms24)

	p.c1 = d.bstar * c2Coefficient(d, coef1, tsi, p.eta)

	eta := p.eta
	etasq := eta * eta
	eeta := d.eo * eta
	psisq := math.Abs(1 - etasq)

	p.c4 = 2 * d.xnodp * coef1 * d.aodp * d.betao2 * (eta*(2+0.5*etasq) + d.eo*(0.5+2*etasq) -
		2*ck2*tsi/(d.aodp*psisq)*(-3*d.x3thm1*(1-2*eeta+etasq*(1.5-0.5*eeta))+
			0.75*d.x1mth2*(2*etasq-eeta*(1+etasq))*math.Cos(2*d.omegao)))
	p.c5 = 2 * coef1 * d.aodp * d.betao2 * (1 + 2.75*(etasq+eeta) + eeta*etasq)

	// Члены с делением на e0 обнуляются для почти круговых орбит.
	if !d.regime.Has(RegimeNearCircular) {
		c3 := coef * tsi * d.grav.a3ovk2() * d.xnodp * d.sinio / d.eo
		p.omgcof = d.bstar * c3 * math.Cos(d.omegao)
		p.xmcof = -twoThirds * coef * d.bstar / eeta
	}

	p.xnodcf = 3.5 * d.betao2 * d.xhdot1 * p.c1
	p.t2cof = 1.5 * p.c1
	p.delmo = math.Pow(1+eta*math.Cos(d.xmo), 3)
	p.sinmo = math.Sin(d.xmo)

	if !p.simple {
		c1sq := p.c1 * p.c1
		p.d2 = 4 * d.aodp * tsi * c1sq
		temp := p.d2 * tsi * p.c1 / 3
		p.d3 = (17*d.aodp + s4) * temp
		p.d4 = 0.5 * temp * d.aodp * tsi * (221*d.aodp + 31*s4) * p.c1
		p.t3cof = p.d2 + 2*c1sq
		p.t4cof = 0.25 * (3*p.d3 + p.c1*(12*p.d2+10*c1sq))
		p.t5cof = 0.2 * (3*p.d4 + 12*p.c1*p.d3 + 6*p.d2*p.d2 + 15*c1sq*(2*p.d2+c1sq))
	}

	return p
}

// dragCoefficients вычисляет общие для SGP4/SDP4 коэффициенты плотности и eta.
func (p *SGP4) dragCoefficients(s4, qoms24 float64) (coef, coef1, tsi float64) {
	d := p.d
	tsi = 1 / (d.aodp - s4)
	p.eta = d.aodp * d.eo * tsi
	psisq := math.Abs(1 - p.eta*p.eta)
	coef = qoms24 * math.Pow(tsi, 4)
	coef1 = coef / math.Pow(psisq, 3.5)

	return coef, coef1, tsi
}

// c2Coefficient — C2 из Report #3; C1 = B*·C2.
func c2Coefficient(d *Derived, coef1, tsi, eta float64) float64 {
	etasq := eta * eta
	eeta := d.eo * eta
	psisq := math.Abs(1 - etasq)

	return coef1 * d.xnodp * (d.aodp*(1+1.5*etasq+eeta*(4+etasq)) +
		0.75*d.grav.ck2()*tsi/psisq*d.x3thm1*(8+3*etasq*(8+etasq)))
}

// Propagate рассчитывает состояние через tsince минут от эпохи.
func (p *SGP4) Propagate(tsince float64) (State, error) {
	d := p.d

	xmdf := d.xmo + d.xmdot*tsince
	omgadf := d.omegao + d.omgdot*tsince
	xnoddf := d.xnodeo + d.xnodot*tsince

	omega := omgadf
	xmp := xmdf
	tsq := tsince * tsince
	xnode := xnoddf + p.xnodcf*tsq
	tempa := 1 - p.c1*tsince
	tempe := d.bstar * p.c4 * tsince
	templ := p.t2cof * tsq

	if !p.simple {
		delomg := p.omgcof * tsince
		delm := p.xmcof * (math.Pow(1+p.eta*math.Cos(xmdf), 3) - p.delmo)
		temp := delomg + delm
		xmp = xmdf + temp
		omega = omgadf - temp
		tcube := tsq * tsince
		tfour := tsince * tcube
		tempa = tempa - p.d2*tsq - p.d3*tcube - p.d4*tfour
		tempe += d.bstar * p.c5 * (math.Sin(xmp) - p.sinmo)
		templ += p.t3cof*tcube + tfour*(p.t4cof+tsince*p.t5cof)
	}

	if tempa <= 0 {
		return State{}, fmt.Errorf("%w: drag term exhausted at %.3f min", ErrDecayed, tsince)
	}

	a := d.aodp * tempa * tempa
	e := d.eo - tempe
	if err := checkMean(a, e); err != nil {
		return State{}, fmt.Errorf("sgp4 at %.3f min: %w", tsince, err)
	}
	e = clampEccentricity(e)

	xl := xmp + omega + xnode + d.xnodp*templ
	xn := d.grav.XKE / math.Pow(a, 1.5)

	pos, vel, err := p.short.apply(a, e, xl, omega, xnode, d.xincl, xn)
	if err != nil {
		return State{}, fmt.Errorf("sgp4 at %.3f min: %w", tsince, err)
	}

	return State{
		Tsince: tsince,
		Mean: MeanElements{
			MeanAnomaly:  xmp + d.xnodp*templ,
			ArgPerigee:   omega,
			Node:         xnode,
			Eccentricity: e,
			Inclination:  d.xincl,
			MeanMotion:   xn,
		}.normalized(),
		Position: pos,
		Velocity: vel,
	}, nil
}

// Model возвращает ModelSGP4.
func (p *SGP4) Model() Model { return ModelSGP4 }

// Elements возвращает исходные элементы.
func (p *SGP4) Elements() Elements { return p.d.el }

// Derived возвращает производные константы.
func (p *SGP4) Derived() *Derived { return p.d }

// brouwerShort — долгопериодические и короткопериодические поправки
// SGP4/SDP4 с решением уравнения Кеплера.
type brouwerShort struct {
	g                      Gravity
	xlcof, aycof           float64
	x3thm1, x1mth2, x7thm1 float64
	cosio, sinio           float64
}

func newBrouwerShort(d *Derived) brouwerShort {
	a3ovk2 := d.grav.a3ovk2()

	den := 1 + d.cosio
	if d.regime.Has(RegimeRetrogradeEquatorial) {
		den = retrogradeFloor
	}

	return brouwerShort{
		g:      d.grav,
		xlcof:  0.125 * a3ovk2 * d.sinio * (3 + 5*d.cosio) / den,
		aycof:  0.25 * a3ovk2 * d.sinio,
		x3thm1: d.x3thm1,
		x1mth2: d.x1mth2,
		x7thm1: d.x7thm1,
		cosio:  d.cosio,
		sinio:  d.sinio,
	}
}

func (b *brouwerShort) apply(a, e, xl, omega, node, incl, xn float64) (pos, vel [3]float64, err error) {
	ck2 := b.g.ck2()
	xke := b.g.XKE

	sinw, cosw := math.Sincos(omega)
	axn := e * cosw
	temp := 1 / (a * (1 - e*e))
	xll := temp * b.xlcof * axn
	aynl := temp * b.aycof
	xlt := xl + xll
	ayn := e*sinw + aynl

	capu := Fmod2p(xlt - node)
	sinepw, cosepw := solveKeplerLong(capu, axn, ayn)

	ecose := axn*cosepw + ayn*sinepw
	esine := axn*sinepw - ayn*cosepw
	elsq := axn*axn + ayn*ayn
	temp = 1 - elsq
	pl := a * temp
	if pl <= 0 {
		return pos, vel, fmt.Errorf("%w: semi-latus rectum %g", ErrDecayed, pl)
	}

	r := a * (1 - ecose)
	temp1 := 1 / r
	rdot := xke * math.Sqrt(a) * esine * temp1
	rfdot := xke * math.Sqrt(pl) * temp1
	temp2 := a * temp1
	betal := math.Sqrt(temp)
	temp3 := 1 / (1 + betal)
	cosu := temp2 * (cosepw - axn + ayn*esine*temp3)
	sinu := temp2 * (sinepw - ayn - axn*esine*temp3)
	u := actan(sinu, cosu)
	sin2u := 2 * sinu * cosu
	cos2u := 2*cosu*cosu - 1

	temp = 1 / pl
	temp1 = ck2 * temp
	temp2 = temp1 * temp

	rk := r*(1-1.5*temp2*betal*b.x3thm1) + 0.5*temp1*b.x1mth2*cos2u
	uk := u - 0.25*temp2*b.x7thm1*sin2u
	xnodek := node + 1.5*temp2*b.cosio*sin2u
	xinck := incl + 1.5*temp2*b.cosio*b.sinio*cos2u
	rdotk := rdot - xn*temp1*b.x1mth2*sin2u
	rfdotk := rfdot + xn*temp1*(b.x1mth2*cos2u+1.5*b.x3thm1)

	if err := checkRadius(rk); err != nil {
		return pos, vel, err
	}

	pos, vel = orientation(b.g, xnodek, xinck, uk, rk, rdotk, rfdotk)

	return pos, vel, nil
}

// solveKeplerLong решает уравнение Кеплера для (E + ω) по компонентам
// axn = e·cos ω, ayn = e·sin ω. Возвращает sin и cos последнего приближения.
func solveKeplerLong(capu, axn, ayn float64) (sinepw, cosepw float64) {
	temp2 := capu
	for range keplerIters {
		sinepw, cosepw = math.Sincos(temp2)
		epw := (capu-ayn*cosepw+axn*sinepw-temp2)/(1-axn*cosepw-ayn*sinepw) + temp2
		if math.Abs(epw-temp2) <= keplerTol {
			break
		}
		temp2 = epw
	}

	return sinepw, cosepw
}
