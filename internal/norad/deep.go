package norad

import (
	"fmt"
	"math"
)

// Константы лунно-солнечного блока.
const (
	zns    = 1.19459e-5
	c1ss   = 2.9864797e-6
	zes    = 0.01675
	znl    = 1.5835218e-4
	c1l    = 4.7968065e-7
	zel    = 0.0549
	zcosis = 0.91744867
	zsinis = 0.39785416
	zsings = -0.98088458
	zcosgs = 0.1945905

	q22 = 1.7891679e-6
	q31 = 2.1460748e-6
	q33 = 2.2123015e-7

	g22 = 5.7686396
	g32 = 0.95240898
	g44 = 1.8014998
	g52 = 1.0508330
	g54 = 4.4108898

	root22 = 1.7891679e-6
	root32 = 3.7393792e-7
	root44 = 7.3636953e-9
	root52 = 1.1428639e-7
	root54 = 2.1765803e-9

	fasx2 = 0.13130908
	fasx4 = 2.8843198
	fasx6 = 0.37448087

	// thdt — скорость вращения Земли, рад/мин.
	thdt = 4.3752691e-3

	// Шаг интегратора резонанса и половина его квадрата.
	stepp = 720.0
	stepn = -720.0
	step2 = 259200.0

	// Эпоха 1900 Jan 0.5 относительно ds50.
	deepDayOffset = 18261.5

	// Пределы среднего движения резонансных орбит, рад/мин.
	syncMotionMin    = 0.0034906585
	syncMotionMax    = 0.0052359877
	halfDayMotionMin = 8.26e-3
	halfDayMotionMax = 9.24e-3
	halfDayEccMin    = 0.5

	// defaultMaxStepsPerCall — лимит шагов интегратора за один вызов.
	defaultMaxStepsPerCall = 100000
)

// Resonance — класс резонанса орбиты глубокого космоса.
type Resonance int

const (
	// ResonanceNone — резонанса нет, интегратор не используется.
	ResonanceNone Resonance = iota
	// ResonanceSynchronous — суточный (геосинхронный) резонанс.
	ResonanceSynchronous
	// ResonanceHalfDay — 12-часовой резонанс (орбиты типа «Молния»).
	ResonanceHalfDay
)

func (r Resonance) String() string {
	switch r {
	case ResonanceNone:
		return "none"
	case ResonanceSynchronous:
		return "synchronous"
	case ResonanceHalfDay:
		return "half-day"
	default:
		return fmt.Sprintf("Resonance(%d)", int(r))
	}
}

// lunisolar — вклад одного возмущающего тела (Солнца или Луны).
type lunisolar struct {
	// Вековые скорости.
	se, si, sl, sgh, sh float64

	// Коэффициенты долгопериодических членов.
	e2, e3, i2, i3, l2, l3, l4 float64
	gh2, gh3, gh4, h2, h3      float64

	// Средняя аномалия на эпоху, скорость и эксцентриситет орбиты тела.
	zmo, zn, ze float64
}

// periodic возвращает долгопериодические поправки pe, pinc, pl, pgh, ph на
// момент t.
func (b *lunisolar) periodic(t float64) (pe, pinc, pl, pgh, ph float64) {
	zm := b.zmo + b.zn*t
	zf := zm + 2*b.ze*math.Sin(zm)
	sinzf, coszf := math.Sincos(zf)
	f2 := 0.5*sinzf*sinzf - 0.25
	f3 := -0.5 * sinzf * coszf

	pe = b.e2*f2 + b.e3*f3
	pinc = b.i2*f2 + b.i3*f3
	pl = b.l2*f2 + b.l3*f3 + b.l4*sinzf
	pgh = b.gh2*f2 + b.gh3*f3 + b.gh4*sinzf
	ph = b.h2*f2 + b.h3*f3

	return pe, pinc, pl, pgh, ph
}

// bodyGeometry — ориентация орбиты возмущающего тела.
type bodyGeometry struct {
	zcosg, zsing, zcosi, zsini, zcosh, zsinh float64
	cc, zn, ze, zmo                          float64
}

// Deep — контекст блока глубокого космоса: лунно-солнечные вековые и
// периодические поправки и интегратор резонанса.
//
// Состояние интегратора (atime, xli, xni) меняется при каждом вызове
// Secular, поэтому Deep нельзя использовать из нескольких горутин без
// внешней синхронизации.
type Deep struct {
	regime Regime

	thgr, eq, xnq, aqnv, xqncl  float64
	xmao, xpidot, omegaq, omgdt float64
	siniq, cosiq                float64

	solar, lunar lunisolar

	sse, ssi, ssl, ssg, ssh float64

	resonance Resonance

	del1, del2, del3           float64
	d2201, d2211, d3210, d3222 float64
	d4410, d4422, d5220, d5232 float64
	d5421, d5433               float64
	xlamo, xfact               float64

	// Состояние интегратора: время, средняя долгота и среднее движение.
	atime, xli, xni float64
	steps           int
	maxSteps        int
}

// NewDeep инициализирует блок глубокого космоса по производным константам.
// maxSteps ограничивает число шагов интегратора за один вызов Secular;
// значение <= 0 заменяется значением по умолчанию.
func NewDeep(d *Derived, maxSteps int) *Deep {
	if maxSteps <= 0 {
		maxSteps = defaultMaxStepsPerCall
	}

	dp := &Deep{
		regime:   d.regime,
		thgr:     ThetaG(d.el.Epoch),
		eq:       d.eo,
		xnq:      d.xnodp,
		aqnv:     1 / d.aodp,
		xqncl:    d.xincl,
		xmao:     d.xmo,
		xpidot:   d.omgdot + d.xnodot,
		omegaq:   d.omegao,
		omgdt:    d.omgdot,
		siniq:    d.sinio,
		cosiq:    d.cosio,
		maxSteps: maxSteps,
	}

	sinq, cosq := math.Sincos(d.xnodeo)
	day := d.ds50 + deepDayOffset

	xnodce := 4.5236020 - 9.2422029e-4*day
	stem, ctem := math.Sincos(xnodce)
	zcosil := 0.91375164 - 0.03568096*ctem
	zsinil := math.Sqrt(1 - zcosil*zcosil)
	zsinhl := 0.089683511 * stem / zsinil
	zcoshl := math.Sqrt(1 - zsinhl*zsinhl)
	c := 4.7199672 + 0.22997150*day
	gam := 5.8351514 + 0.0019443680*day
	zx := zsinis * stem / zsinil
	zy := zcoshl*ctem + zcosis*zsinhl*stem
	zx = gam + actan(zx, zy) - xnodce
	zsingl, zcosgl := math.Sincos(zx)

	dp.solar = dp.bodyTerms(d, bodyGeometry{
		zcosg: zcosgs, zsing: zsings, zcosi: zcosis, zsini: zsinis,
		zcosh: cosq, zsinh: sinq,
		cc: c1ss, zn: zns, ze: zes, zmo: Fmod2p(6.2565837 + 0.017201977*day),
	})
	dp.lunar = dp.bodyTerms(d, bodyGeometry{
		zcosg: zcosgl, zsing: zsingl, zcosi: zcosil, zsini: zsinil,
		zcosh: zcoshl*cosq + zsinhl*sinq, zsinh: sinq*zcoshl - cosq*zsinhl,
		cc: c1l, zn: znl, ze: zel, zmo: Fmod2p(c - gam),
	})

	dp.sse = dp.solar.se + dp.lunar.se
	dp.ssi = dp.solar.si + dp.lunar.si
	dp.ssl = dp.solar.sl + dp.lunar.sl
	// Для экваториальных орбит узел не определён, вековой дрейф узла от
	// лунно-солнечных членов обнуляется.
	if d.regime.Has(RegimeEquatorial) {
		dp.ssg = dp.solar.sgh + dp.lunar.sgh
	} else {
		solarH := dp.solar.sh / dp.siniq
		lunarH := dp.lunar.sh / dp.siniq
		dp.ssh = solarH + lunarH
		dp.ssg = dp.solar.sgh - dp.cosiq*solarH + dp.lunar.sgh - dp.cosiq*lunarH
	}

	dp.initResonance(d)

	return dp
}

func (dp *Deep) bodyTerms(d *Derived, b bodyGeometry) lunisolar {
	eqsq := d.eosq
	bsq := d.betao2
	rteqsq := d.betao
	sinomo, cosomo := math.Sincos(d.omegao)
	xnoi := 1 / dp.xnq

	a1 := b.zcosg*b.zcosh + b.zsing*b.zcosi*b.zsinh
	a3 := -b.zsing*b.zcosh + b.zcosg*b.zcosi*b.zsinh
	a7 := -b.zcosg*b.zsinh + b.zsing*b.zcosi*b.zcosh
	a8 := b.zsing * b.zsini
	a9 := b.zsing*b.zsinh + b.zcosg*b.zcosi*b.zcosh
	a10 := b.zcosg * b.zsini
	a2 := dp.cosiq*a7 + dp.siniq*a8
	a4 := dp.cosiq*a9 + dp.siniq*a10
	a5 := -dp.siniq*a7 + dp.cosiq*a8
	a6 := -dp.siniq*a9 + dp.cosiq*a10

	x1 := a1*cosomo + a2*sinomo
	x2 := a3*cosomo + a4*sinomo
	x3 := -a1*sinomo + a2*cosomo
	x4 := -a3*sinomo + a4*cosomo
	x5 := a5 * sinomo
	x6 := a6 * sinomo
	x7 := a5 * cosomo
	x8 := a6 * cosomo

	z31 := 12*x1*x1 - 3*x3*x3
	z32 := 24*x1*x2 - 6*x3*x4
	z33 := 12*x2*x2 - 3*x4*x4
	z1 := 3*(a1*a1+a2*a2) + z31*eqsq
	z2 := 6*(a1*a3+a2*a4) + z32*eqsq
	z3 := 3*(a3*a3+a4*a4) + z33*eqsq
	z11 := -6*a1*a5 + eqsq*(-24*x1*x7-6*x3*x5)
	z12 := -6*(a1*a6+a3*a5) + eqsq*(-24*(x2*x7+x1*x8)-6*(x3*x6+x4*x5))
	z13 := -6*a3*a6 + eqsq*(-24*x2*x8-6*x4*x6)
	z21 := 6*a2*a5 + eqsq*(24*x1*x5-6*x3*x7)
	z22 := 6*(a4*a5+a2*a6) + eqsq*(24*(x2*x5+x1*x6)-6*(x4*x7+x3*x8))
	z23 := 6*a4*a6 + eqsq*(24*x2*x6-6*x4*x8)
	z1 = z1 + z1 + bsq*z31
	z2 = z2 + z2 + bsq*z32
	z3 = z3 + z3 + bsq*z33

	s3 := b.cc * xnoi
	s2 := -0.5 * s3 / rteqsq
	s4 := s3 * rteqsq
	s1 := -15 * dp.eq * s4
	s5 := x1*x3 + x2*x4
	s6 := x2*x3 + x1*x4
	s7 := x2*x4 - x1*x3

	t := lunisolar{
		se:  s1 * b.zn * s5,
		si:  s2 * b.zn * (z11 + z13),
		sl:  -b.zn * s3 * (z1 + z3 - 14 - 6*eqsq),
		sgh: s4 * b.zn * (z31 + z33 - 6),
		sh:  -b.zn * s2 * (z21 + z23),

		e2:  2 * s1 * s6,
		e3:  2 * s1 * s7,
		i2:  2 * s2 * z12,
		i3:  2 * s2 * (z13 - z11),
		l2:  -2 * s3 * z2,
		l3:  -2 * s3 * (z3 - z1),
		l4:  -2 * s3 * (-21 - 9*eqsq) * b.ze,
		gh2: 2 * s4 * z32,
		gh3: 2 * s4 * (z33 - z31),
		gh4: -18 * s4 * b.ze,
		h2:  -2 * s2 * z22,
		h3:  -2 * s2 * (z23 - z21),

		zmo: b.zmo,
		zn:  b.zn,
		ze:  b.ze,
	}
	if dp.regime.Has(RegimeEquatorial) {
		t.sh = 0
	}

	return t
}

// initResonance классифицирует резонанс и готовит коэффициенты интегратора.
func (dp *Deep) initResonance(d *Derived) {
	eq, xnq, aqnv := dp.eq, dp.xnq, dp.aqnv
	eqsq := d.eosq
	cosiq, siniq := dp.cosiq, dp.siniq

	var bfact float64

	switch {
	case xnq > syncMotionMin && xnq < syncMotionMax:
		dp.resonance = ResonanceSynchronous

		g200 := 1 + eqsq*(-2.5+0.8125*eqsq)
		g310 := 1 + 2*eqsq
		g300 := 1 + eqsq*(-6+6.60937*eqsq)
		f220 := 0.75 * (1 + cosiq) * (1 + cosiq)
		f311 := 0.9375*siniq*siniq*(1+3*cosiq) - 0.75*(1+cosiq)
		f330 := 1 + cosiq
		f330 = 1.875 * f330 * f330 * f330
		del1 := 3 * xnq * xnq * aqnv * aqnv
		dp.del2 = 2 * del1 * f220 * g200 * q22
		dp.del3 = 3 * del1 * f330 * g300 * q33 * aqnv
		dp.del1 = del1 * f311 * g310 * q31 * aqnv
		dp.xlamo = dp.xmao + d.xnodeo + d.omegao - dp.thgr
		bfact = d.xmdot + dp.xpidot - thdt + dp.ssl + dp.ssg + dp.ssh

	case xnq >= halfDayMotionMin && xnq <= halfDayMotionMax && eq >= halfDayEccMin:
		dp.resonance = ResonanceHalfDay
		dp.initHalfDay(d)
		dp.xlamo = dp.xmao + d.xnodeo + d.xnodeo - dp.thgr - dp.thgr
		bfact = d.xmdot + d.xnodot + d.xnodot - thdt - thdt + dp.ssl + dp.ssh + dp.ssh

	default:
		return
	}

	dp.xfact = bfact - xnq
	dp.resetIntegrator()
}

func (dp *Deep) initHalfDay(d *Derived) {
	eq := dp.eq
	eqsq := d.eosq
	eoc := eq * eqsq
	cosiq, siniq := dp.cosiq, dp.siniq
	cosq2 := d.theta2

	g201 := -0.306 - (eq-0.64)*0.440

	var g211, g310, g322, g410, g422, g520, g521, g532, g533 float64
	if eq <= 0.65 {
		g211 = 3.616 - 13.247*eq + 16.290*eqsq
		g310 = -19.302 + 117.390*eq - 228.419*eqsq + 156.591*eoc
		g322 = -18.9068 + 109.7927*eq - 214.6334*eqsq + 146.5816*eoc
		g410 = -41.122 + 242.694*eq - 471.094*eqsq + 313.953*eoc
		g422 = -146.407 + 841.880*eq - 1629.014*eqsq + 1083.435*eoc
		g520 = -532.114 + 3017.977*eq - 5740*eqsq + 3708.276*eoc
	} else {
		g211 = -72.099 + 331.819*eq - 508.738*eqsq + 266.724*eoc
		g310 = -346.844 + 1582.851*eq - 2415.925*eqsq + 1246.113*eoc
		g322 = -342.585 + 1554.908*eq - 2366.899*eqsq + 1215.972*eoc
		g410 = -1052.797 + 4758.686*eq - 7193.992*eqsq + 3651.957*eoc
		g422 = -3581.69 + 16178.11*eq - 24462.77*eqsq + 12422.52*eoc
		if eq > 0.715 {
			g520 = -5149.66 + 29936.92*eq - 54087.36*eqsq + 31324.56*eoc
		} else {
			g520 = 1464.74 - 4664.75*eq + 3763.64*eqsq
		}
	}
	if eq < 0.7 {
		g533 = -919.2277 + 4988.61*eq - 9064.77*eqsq + 5542.21*eoc
		g521 = -822.71072 + 4568.6173*eq - 8491.4146*eqsq + 5337.524*eoc
		g532 = -853.666 + 4690.25*eq - 8624.77*eqsq + 5341.4*eoc
	} else {
		g533 = -37995.78 + 161616.52*eq - 229838.2*eqsq + 109377.94*eoc
		g521 = -51752.104 + 218913.95*eq - 309468.16*eqsq + 146349.42*eoc
		g532 = -40023.88 + 170470.89*eq - 242699.48*eqsq + 115605.82*eoc
	}

	sini2 := siniq * siniq
	f220 := 0.75 * (1 + 2*cosiq + cosq2)
	f221 := 1.5 * sini2
	f321 := 1.875 * siniq * (1 - 2*cosiq - 3*cosq2)
	f322 := -1.875 * siniq * (1 + 2*cosiq - 3*cosq2)
	f441 := 35 * sini2 * f220
	f442 := 39.3750 * sini2 * sini2
	f522 := 9.84375 * siniq * (sini2*(1-2*cosiq-5*cosq2) + 0.33333333*(-2+4*cosiq+6*cosq2))
	f523 := siniq * (4.92187512*sini2*(-2-4*cosiq+10*cosq2) + 6.56250012*(1+2*cosiq-3*cosq2))
	f542 := 29.53125 * siniq * (2 - 8*cosiq + cosq2*(-12+8*cosiq+10*cosq2))
	f543 := 29.53125 * siniq * (-2 - 8*cosiq + cosq2*(12+8*cosiq-10*cosq2))

	xno2 := dp.xnq * dp.xnq
	ainv2 := dp.aqnv * dp.aqnv
	temp1 := 3 * xno2 * ainv2
	temp := temp1 * root22
	dp.d2201 = temp * f220 * g201
	dp.d2211 = temp * f221 * g211
	temp1 *= dp.aqnv
	temp = temp1 * root32
	dp.d3210 = temp * f321 * g310
	dp.d3222 = temp * f322 * g322
	temp1 *= dp.aqnv
	temp = 2 * temp1 * root44
	dp.d4410 = temp * f441 * g410
	dp.d4422 = temp * f442 * g422
	temp1 *= dp.aqnv
	temp = temp1 * root52
	dp.d5220 = temp * f522 * g520
	dp.d5232 = temp * f523 * g532
	temp = 2 * temp1 * root54
	dp.d5421 = temp * f542 * g521
	dp.d5433 = temp * f543 * g533
}

// resetIntegrator возвращает интегратор на эпоху.
func (dp *Deep) resetIntegrator() {
	dp.atime = 0
	dp.xni = dp.xnq
	dp.xli = dp.xlamo
}

// Resonance возвращает класс резонанса орбиты.
func (dp *Deep) Resonance() Resonance { return dp.resonance }

// Steps — общее число шагов интегратора, выполненных контекстом.
func (dp *Deep) Steps() int { return dp.steps }

// IntegratorTime — время текущего узла интегратора, мин от эпохи.
func (dp *Deep) IntegratorTime() float64 { return dp.atime }

// Secular применяет лунно-солнечные вековые поправки к средним элементам
// и, для резонансных орбит, интегрирует среднюю долготу и среднее движение
// до момента t. На входе используются MeanAnomaly, ArgPerigee и Node; на
// выходе заполнены все поля.
func (dp *Deep) Secular(m MeanElements, t float64) (MeanElements, error) {
	m.MeanAnomaly += dp.ssl * t
	m.ArgPerigee += dp.ssg * t
	m.Node += dp.ssh * t
	m.Eccentricity = dp.eq + dp.sse*t
	m.Inclination = dp.xqncl + dp.ssi*t
	m.MeanMotion = dp.xnq

	if m.Inclination < 0 {
		m.Inclination = -m.Inclination
		m.Node += math.Pi
		m.ArgPerigee -= math.Pi
	}

	if dp.resonance == ResonanceNone {
		return m, nil
	}

	if err := dp.integrate(t); err != nil {
		return MeanElements{}, err
	}

	ft := t - dp.atime
	xndot, xnddt, xldot := dp.dots()
	m.MeanMotion = dp.xni + xndot*ft + xnddt*ft*ft*0.5
	xl := dp.xli + xldot*ft + xndot*ft*ft*0.5

	temp := -m.Node + dp.thgr + t*thdt
	if dp.resonance == ResonanceSynchronous {
		m.MeanAnomaly = xl - m.ArgPerigee + temp
	} else {
		m.MeanAnomaly = xl + temp + temp
	}

	return m, nil
}

// integrate переводит узел интегратора к ближайшему к t узлу сетки с шагом
// 720 мин, двигаясь от текущего состояния. Смена знака t и возврат atime в
// ноль сбрасывают интегратор на эпоху.
func (dp *Deep) integrate(t float64) error {
	taken := 0
	advance := func(delt float64) error {
		if taken >= dp.maxSteps {
			dp.resetIntegrator()

			return fmt.Errorf("%w: %d steps at t=%.3f min", ErrResonanceDiverged, taken, t)
		}
		dp.step(delt)
		taken++

		return nil
	}

	// Назад к эпохе, пока t ближе к ней, чем текущий узел.
	for {
		if dp.atime == 0 || (t >= 0 && dp.atime < 0) || (t < 0 && dp.atime >= 0) {
			dp.resetIntegrator()

			break
		}
		if math.Abs(t) >= math.Abs(dp.atime) {
			break
		}

		delt := stepp
		if t >= 0 {
			delt = stepn
		}
		if err := advance(delt); err != nil {
			return err
		}
	}

	delt := stepn
	if t > 0 {
		delt = stepp
	}
	for math.Abs(t-dp.atime) >= stepp {
		if err := advance(delt); err != nil {
			return err
		}
	}

	return nil
}

func (dp *Deep) step(delt float64) {
	xndot, xnddt, xldot := dp.dots()
	dp.xli += xldot*delt + xndot*step2
	dp.xni += xndot*delt + xnddt*step2
	dp.atime += delt
	dp.steps++
}

// dots — производные средней долготы и среднего движения в текущем узле.
func (dp *Deep) dots() (xndot, xnddt, xldot float64) {
	xli := dp.xli

	if dp.resonance == ResonanceSynchronous {
		xndot = dp.del1*math.Sin(xli-fasx2) + dp.del2*math.Sin(2*(xli-fasx4)) + dp.del3*math.Sin(3*(xli-fasx6))
		xnddt = dp.del1*math.Cos(xli-fasx2) + 2*dp.del2*math.Cos(2*(xli-fasx4)) + 3*dp.del3*math.Cos(3*(xli-fasx6))
	} else {
		xomi := dp.omegaq + dp.omgdt*dp.atime
		x2omi := xomi + xomi
		x2li := xli + xli
		xndot = dp.d2201*math.Sin(x2omi+xli-g22) + dp.d2211*math.Sin(xli-g22) +
			dp.d3210*math.Sin(xomi+xli-g32) + dp.d3222*math.Sin(-xomi+xli-g32) +
			dp.d4410*math.Sin(x2omi+x2li-g44) + dp.d4422*math.Sin(x2li-g44) +
			dp.d5220*math.Sin(xomi+xli-g52) + dp.d5232*math.Sin(-xomi+xli-g52) +
			dp.d5421*math.Sin(xomi+x2li-g54) + dp.d5433*math.Sin(-xomi+x2li-g54)
		xnddt = dp.d2201*math.Cos(x2omi+xli-g22) + dp.d2211*math.Cos(xli-g22) +
			dp.d3210*math.Cos(xomi+xli-g32) + dp.d3222*math.Cos(-xomi+xli-g32) +
			dp.d5220*math.Cos(xomi+xli-g52) + dp.d5232*math.Cos(-xomi+xli-g52) +
			2*(dp.d4410*math.Cos(x2omi+x2li-g44)+dp.d4422*math.Cos(x2li-g44)+
				dp.d5421*math.Cos(xomi+x2li-g54)+dp.d5433*math.Cos(-xomi+x2li-g54))
	}

	xldot = dp.xni + dp.xfact
	xnddt *= xldot

	return xndot, xnddt, xldot
}

// Periodic применяет долгопериодические лунно-солнечные поправки на момент
// t. Для орбит с малым наклонением используется форма Лиддейна. Результат
// не зависит от предыдущих вызовов.
func (dp *Deep) Periodic(m MeanElements, t float64) (MeanElements, error) {
	ses, sis, sls, sghs, shs := dp.solar.periodic(t)
	sel, sil, sll, sghl, shl := dp.lunar.periodic(t)
	pe := ses + sel
	pinc := sis + sil
	pl := sls + sll
	pgh := sghs + sghl
	ph := shs + shl

	sinis, cosis := math.Sincos(m.Inclination)
	m.Inclination += pinc
	m.Eccentricity += pe

	if !dp.regime.Has(RegimeLowInclination) {
		ph /= dp.siniq
		pgh -= dp.cosiq * ph
		m.ArgPerigee += pgh
		m.Node += ph
		m.MeanAnomaly += pl
	} else {
		xnoh := Fmod2p(m.Node)
		sinok, cosok := math.Sincos(xnoh)
		alfdp := sinis*sinok + ph*cosok + pinc*cosis*sinok
		betdp := sinis*cosok - ph*sinok + pinc*cosis*cosok
		xls := m.MeanAnomaly + m.ArgPerigee + cosis*xnoh
		xls += pl + pgh - pinc*xnoh*sinis

		node := actan(alfdp, betdp)
		// Узел не должен перескакивать через 0/2π относительно исходного.
		if math.Abs(xnoh-node) > math.Pi {
			if node < xnoh {
				node += twoPi
			} else {
				node -= twoPi
			}
		}

		m.Node = node
		m.MeanAnomaly += pl
		m.ArgPerigee = xls - m.MeanAnomaly - math.Cos(m.Inclination)*node
	}

	if m.Inclination < 0 {
		m.Inclination = -m.Inclination
		m.Node += math.Pi
		m.ArgPerigee -= math.Pi
	} else if m.Inclination > math.Pi {
		m.Inclination = twoPi - m.Inclination
		m.Node += math.Pi
		m.ArgPerigee += math.Pi
	}

	if m.Eccentricity < 0 {
		m.Eccentricity = -m.Eccentricity
		m.ArgPerigee += math.Pi
		m.MeanAnomaly -= math.Pi
	}
	if m.Eccentricity >= 1 || math.IsNaN(m.Eccentricity) {
		return MeanElements{}, fmt.Errorf("%w: eccentricity %g after lunar-solar periodics", ErrDecayed, m.Eccentricity)
	}

	return m, nil
}
