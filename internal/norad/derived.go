package norad

import (
	"fmt"
	"math"
	"strings"
)

// Regime — набор флагов «почти сингулярных» режимов орбиты. Для каждого
// режима модели используют отдельную ветку расчёта.
type Regime uint8

const (
	// RegimeNearCircular — e < 1e-4: члены SGP4 с делением на e обнуляются.
	RegimeNearCircular Regime = 1 << iota
	// RegimeEquatorial — sin i < sin 3°: член sh блока глубокого космоса обнуляется.
	RegimeEquatorial
	// RegimeLowInclination — sin i < sin 0.2: периодические лунно-солнечные
	// поправки применяются в форме Лиддейна.
	RegimeLowInclination
	// RegimeCriticalInclination — |1 - 5cos²i| < 1e-3 (i ≈ 63.4° или 116.6°).
	RegimeCriticalInclination
	// RegimeRetrogradeEquatorial — 1 + cos i < 1.5e-12: знаменатель (1 + cos i)
	// ограничивается снизу.
	RegimeRetrogradeEquatorial
)

var regimeNames = []struct {
	flag Regime
	name string
}{
	{RegimeNearCircular, "near-circular"},
	{RegimeEquatorial, "equatorial"},
	{RegimeLowInclination, "low-inclination"},
	{RegimeCriticalInclination, "critical-inclination"},
	{RegimeRetrogradeEquatorial, "retrograde-equatorial"},
}

// Has сообщает, установлен ли флаг.
func (r Regime) Has(flag Regime) bool { return r&flag != 0 }

func (r Regime) String() string {
	if r == 0 {
		return "regular"
	}

	var parts []string
	for _, rn := range regimeNames {
		if r.Has(rn.flag) {
			parts = append(parts, rn.name)
		}
	}

	return strings.Join(parts, "|")
}

var (
	sinEquatorialLimit = math.Sin(3.0 * math.Pi / 180.0) // 5.2359877e-2 рад.
	sinLyddaneLimit    = math.Sin(0.2)
)

// classify определяет режимы по эпохальным e и i.
func classify(ecc, incl float64) Regime {
	var r Regime

	sini, cosi := math.Sincos(incl)
	sini = math.Abs(sini)

	if ecc < nearCircularEcc {
		r |= RegimeNearCircular
	}
	if sini < sinEquatorialLimit {
		r |= RegimeEquatorial
	}
	if sini < sinLyddaneLimit {
		r |= RegimeLowInclination
	}
	if math.Abs(1-5*cosi*cosi) < criticalInclFactor {
		r |= RegimeCriticalInclination
	}
	if 1+cosi < retrogradeFloor {
		r |= RegimeRetrogradeEquatorial
	}

	return r
}

// Derived — константы, вычисляемые один раз по элементам и набору Gravity.
// После Derive структура только читается.
type Derived struct {
	el   Elements
	grav Gravity

	// Элементы во внутренних единицах (рад, рад/мин).
	xmo, xnodeo, omegao, eo, xincl float64
	xno, xndt2o, xndd6o, bstar     float64
	ds50                           float64

	cosio, sinio                           float64
	theta2, x3thm1, x1mth2, x7thm1, x1m5th float64
	eosq, betao2, betao                    float64

	// Восстановленные по Брауэру среднее движение и большая полуось.
	xnodp, aodp float64
	perigeeKm   float64

	// Вековые скорости от J2/J4: средняя аномалия, перигей, узел.
	xmdot, omgdot, xnodot, xhdot1 float64

	regime Regime
}

// Derive проверяет элементы и строит производные константы.
func Derive(el Elements, g Gravity) (*Derived, error) {
	if err := el.Validate(); err != nil {
		return nil, err
	}
	if !g.valid() {
		return nil, fmt.Errorf("%w: gravity set %q is incomplete", ErrInvalidElements, g.Name)
	}

	const radPerRevPerMin = twoPi / minPerDay

	d := &Derived{
		el:     el,
		grav:   g,
		xmo:    el.MeanAnomaly,
		xnodeo: el.RAAN,
		omegao: el.ArgPerigee,
		eo:     el.Eccentricity,
		xincl:  el.Inclination,
		xno:    el.MeanMotion * radPerRevPerMin,
		xndt2o: el.MeanMotionDot * radPerRevPerMin / minPerDay,
		xndd6o: el.MeanMotionDDot * radPerRevPerMin / (minPerDay * minPerDay),
		bstar:  el.BStar,
		ds50:   ds50(el.Epoch),
	}

	ck2 := g.ck2()

	d.sinio, d.cosio = math.Sincos(d.xincl)
	d.theta2 = d.cosio * d.cosio
	d.x3thm1 = 3*d.theta2 - 1
	d.x1mth2 = 1 - d.theta2
	d.x7thm1 = 7*d.theta2 - 1
	d.x1m5th = 1 - 5*d.theta2
	d.eosq = d.eo * d.eo
	d.betao2 = 1 - d.eosq
	d.betao = math.Sqrt(d.betao2)

	a1 := math.Pow(g.XKE/d.xno, twoThirds)
	del1 := 1.5 * ck2 * d.x3thm1 / (a1 * a1 * d.betao * d.betao2)
	ao := a1 * (1 - del1*(0.5*twoThirds+del1*(1+134.0/81.0*del1)))
	delo := 1.5 * ck2 * d.x3thm1 / (ao * ao * d.betao * d.betao2)
	d.xnodp = d.xno / (1 + delo)
	d.aodp = ao / (1 - delo)
	d.perigeeKm = (d.aodp*(1-d.eo) - 1) * g.RadiusKm

	pinvsq := 1 / (d.aodp * d.aodp * d.betao2 * d.betao2)
	theta4 := d.theta2 * d.theta2
	temp1 := 3 * ck2 * pinvsq * d.xnodp
	temp2 := temp1 * ck2 * pinvsq
	temp3 := 1.25 * g.ck4() * pinvsq * pinvsq * d.xnodp
	d.xmdot = d.xnodp + 0.5*temp1*d.betao*d.x3thm1 + 0.0625*temp2*d.betao*(13-78*d.theta2+137*theta4)
	d.omgdot = -0.5*temp1*d.x1m5th + 0.0625*temp2*(7-114*d.theta2+395*theta4) + temp3*(3-36*d.theta2+49*theta4)
	d.xhdot1 = -temp1 * d.cosio
	d.xnodot = d.xhdot1 + (0.5*temp2*(4-19*d.theta2)+2*temp3*(3-7*d.theta2))*d.cosio

	d.regime = classify(d.eo, d.xincl)

	return d, nil
}

// Elements возвращает исходные элементы.
func (d *Derived) Elements() Elements { return d.el }

// Gravity возвращает набор констант.
func (d *Derived) Gravity() Gravity { return d.grav }

// Regime возвращает флаги сингулярных режимов орбиты.
func (d *Derived) Regime() Regime { return d.regime }

// RecoveredMeanMotion — восстановленное среднее движение xnodp, рад/мин.
func (d *Derived) RecoveredMeanMotion() float64 { return d.xnodp }

// SemiMajorAxis — восстановленная большая полуось, ER.
func (d *Derived) SemiMajorAxis() float64 { return d.aodp }

// PerigeeKm — высота перигея на эпоху, км.
func (d *Derived) PerigeeKm() float64 { return d.perigeeKm }

// Period — период по восстановленному среднему движению, мин.
func (d *Derived) Period() float64 { return twoPi / d.xnodp }

// IsDeepSpace — период не меньше 225 минут.
func (d *Derived) IsDeepSpace() bool { return d.Period() >= deepSpacePeriod }

// MeanAnomalyRate — вековая скорость средней аномалии, рад/мин.
func (d *Derived) MeanAnomalyRate() float64 { return d.xmdot }

// ArgPerigeeRate — вековая скорость аргумента перигея, рад/мин.
func (d *Derived) ArgPerigeeRate() float64 { return d.omgdot }

// NodeRate — вековая скорость долготы узла, рад/мин.
func (d *Derived) NodeRate() float64 { return d.xnodot }

// IsDeepSpace строит производные константы и сообщает, относится ли орбита
// к глубокому космосу. Выбор модели остаётся за вызывающим кодом.
func IsDeepSpace(el Elements, g Gravity) (bool, error) {
	d, err := Derive(el, g)
	if err != nil {
		return false, err
	}

	return d.IsDeepSpace(), nil
}

// dragParams — параметры плотности атмосферы SGP4/SDP4 с учётом низкого перигея.
func (d *Derived) dragParams() (s4, qoms24 float64) {
	g := d.grav
	s4 = g.s()
	qoms24 = g.qoms2t()

	if d.perigeeKm >= lowPerigeeKm {
		return s4, qoms24
	}

	sKm := d.perigeeKm - 78
	if d.perigeeKm <= veryLowPerigeeKm {
		sKm = 20
	}
	qoms24 = math.Pow((120-sKm)/g.RadiusKm, 4)

	return sKm/g.RadiusKm + 1, qoms24
}
