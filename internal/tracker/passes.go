package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/solar"
)

var ErrNilObserver = errors.New("observer is nil")

const (
	defaultPassStep = 30 * time.Second
	passResolution  = time.Second

	// Наблюдатель в темноте, когда Солнце ниже гражданских сумерек.
	civilTwilightDeg = -6.0

	astronomicalUnitKm = 149597870.7
)

// Pass — прохождение спутника над горизонтом пункта наблюдения.
type Pass struct {
	NoradID int `json:"norad_id"`

	AOS     time.Time `json:"aos"`
	MaxTime time.Time `json:"max_time"`
	LOS     time.Time `json:"los"`

	AOSAzimuth   float64 `json:"aos_azimuth"` // Градусы.
	MaxAzimuth   float64 `json:"max_azimuth"`
	LOSAzimuth   float64 `json:"los_azimuth"`
	MaxElevation float64 `json:"max_elevation"`

	// Sunlit: спутник освещён Солнцем в момент максимума.
	Sunlit bool `json:"sunlit"`
	// Visible: освещён, а пункт наблюдения в сумерках или ночи.
	Visible bool `json:"visible"`
	// Partial: прохождение обрезано границей интервала поиска.
	Partial bool `json:"partial"`
}

func (p Pass) Duration() time.Duration { return p.LOS.Sub(p.AOS) }

// PassOptions — параметры поиска прохождений.
type PassOptions struct {
	Step         time.Duration // Шаг грубого поиска; по умолчанию 30 с.
	MinElevation float64       // Горизонт, градусы.
	MaxPasses    int           // 0 — без ограничения.
}

type lookFunc func(t time.Time) (float64, error)

// FindPasses ищет прохождения на [start, stop]. Грубый проход с шагом
// opts.Step находит смены знака угла места над горизонтом, моменты AOS и
// LOS уточняются делением пополам до секунды, максимум ищется тернарным
// поиском. При ошибке пропагации или отмене ctx возвращаются найденные
// к этому моменту прохождения вместе с ошибкой. Прохождения короче
// шага грубого поиска могут быть пропущены.
func FindPasses(ctx context.Context, prop *Propagator, obs *Observer, start, stop time.Time, opts PassOptions) ([]Pass, error) {
	if prop == nil {
		return nil, ErrNilTLE
	}
	if obs == nil {
		return nil, ErrNilObserver
	}
	if !stop.After(start) {
		return nil, fmt.Errorf("%w: %v .. %v", ErrInvalidRange, start, stop)
	}
	if opts.Step < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStep, opts.Step)
	}
	if opts.Step == 0 {
		opts.Step = defaultPassStep
	}

	elev := func(t time.Time) (float64, error) {
		pos, err := prop.Propagate(t)
		if err != nil {
			return 0, err
		}

		return obs.Look(pos).ElDeg() - opts.MinElevation, nil
	}

	var passes []Pass

	prevT := start
	startEl, err := elev(start)
	if err != nil {
		return nil, err
	}

	var (
		inPass  = startEl >= 0
		aos     = start
		partial = inPass
		maxT    = start
		maxEl   = startEl
	)

	for t := start.Add(opts.Step); ; t = t.Add(opts.Step) {
		if t.After(stop) {
			t = stop
		}
		if err := ctx.Err(); err != nil {
			return passes, err
		}

		el, err := elev(t)
		if err != nil {
			return passes, err
		}

		switch {
		case !inPass && el >= 0:
			aos, err = bisect(elev, prevT, t, true)
			if err != nil {
				return passes, err
			}
			inPass, partial = true, false
			maxT, maxEl = t, el

		case inPass && el < 0:
			los, err := bisect(elev, prevT, t, false)
			if err != nil {
				return passes, err
			}

			pass, err := newPass(prop, obs, elev, aos, los, maxT, opts.Step, partial)
			if err != nil {
				return passes, err
			}
			passes = append(passes, pass)
			inPass = false

			if opts.MaxPasses > 0 && len(passes) >= opts.MaxPasses {
				return passes, nil
			}

		case inPass && el > maxEl:
			maxT, maxEl = t, el
		}

		if !t.Before(stop) {
			break
		}
		prevT = t
	}

	if inPass {
		pass, err := newPass(prop, obs, elev, aos, stop, maxT, opts.Step, true)
		if err != nil {
			return passes, err
		}
		passes = append(passes, pass)
	}

	return passes, nil
}

// bisect сужает [lo, hi] до passResolution вокруг пересечения горизонта.
// rising: в lo спутник под горизонтом, в hi над ним. Возвращается момент,
// в который спутник над горизонтом.
func bisect(elev lookFunc, lo, hi time.Time, rising bool) (time.Time, error) {
	for hi.Sub(lo) > passResolution {
		mid := lo.Add(hi.Sub(lo) / 2)

		el, err := elev(mid)
		if err != nil {
			return time.Time{}, err
		}

		if (el >= 0) == rising {
			hi = mid
		} else {
			lo = mid
		}
	}

	if rising {
		return hi, nil
	}

	return lo, nil
}

// peak уточняет момент максимума угла места на [lo, hi].
func peak(elev lookFunc, lo, hi time.Time) (time.Time, error) {
	for hi.Sub(lo) > passResolution {
		third := hi.Sub(lo) / 3
		m1, m2 := lo.Add(third), hi.Add(-third)

		e1, err := elev(m1)
		if err != nil {
			return time.Time{}, err
		}
		e2, err := elev(m2)
		if err != nil {
			return time.Time{}, err
		}

		if e1 < e2 {
			lo = m1
		} else {
			hi = m2
		}
	}

	return lo.Add(hi.Sub(lo) / 2), nil
}

func newPass(prop *Propagator, obs *Observer, elev lookFunc, aos, los, coarseMax time.Time, step time.Duration, partial bool) (Pass, error) {
	lo, hi := coarseMax.Add(-step), coarseMax.Add(step)
	if lo.Before(aos) {
		lo = aos
	}
	if hi.After(los) {
		hi = los
	}

	maxT, err := peak(elev, lo, hi)
	if err != nil {
		return Pass{}, err
	}

	look := func(t time.Time) (*Observation, *ECIPosition, error) {
		pos, err := prop.Propagate(t)
		if err != nil {
			return nil, nil, err
		}

		return obs.Look(pos), pos, nil
	}

	aosObs, _, err := look(aos)
	if err != nil {
		return Pass{}, err
	}
	losObs, _, err := look(los)
	if err != nil {
		return Pass{}, err
	}
	maxObs, maxPos, err := look(maxT)
	if err != nil {
		return Pass{}, err
	}

	sunlit := Sunlit(maxPos)

	return Pass{
		NoradID:      prop.TLE().NoradID,
		AOS:          aos,
		MaxTime:      maxT,
		LOS:          los,
		AOSAzimuth:   aosObs.AzDeg(),
		MaxAzimuth:   maxObs.AzDeg(),
		LOSAzimuth:   losObs.AzDeg(),
		MaxElevation: maxObs.ElDeg(),
		Sunlit:       sunlit,
		Visible:      sunlit && SunElevation(obs, maxT) < civilTwilightDeg,
		Partial:      partial,
	}, nil
}

// SunDirection возвращает единичный вектор на Солнце в инерциальной
// системе на момент t.
func SunDirection(t time.Time) [3]float64 {
	ra, dec := solar.ApparentEquatorial(JulianDay(t))

	return [3]float64{
		dec.Cos() * ra.Cos(),
		dec.Cos() * ra.Sin(),
		dec.Sin(),
	}
}

// Sunlit сообщает, освещён ли спутник. Тень Земли считается цилиндром
// радиуса WGS84A.
func Sunlit(pos *ECIPosition) bool {
	if pos == nil {
		return false
	}

	s := SunDirection(pos.Time)
	along := pos.X*s[0] + pos.Y*s[1] + pos.Z*s[2]
	if along >= 0 {
		return true
	}

	px, py, pz := pos.X-along*s[0], pos.Y-along*s[1], pos.Z-along*s[2]

	return math.Sqrt(px*px+py*py+pz*pz) > WGS84A
}

// SunElevation возвращает угол места Солнца для пункта наблюдения, градусы.
func SunElevation(obs *Observer, t time.Time) float64 {
	s := SunDirection(t)
	sun := &ECIPosition{
		X:    s[0] * astronomicalUnitKm,
		Y:    s[1] * astronomicalUnitKm,
		Z:    s[2] * astronomicalUnitKm,
		Time: t,
	}

	return obs.Look(sun).ElDeg()
}
