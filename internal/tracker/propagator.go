package tracker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/soniakeys/meeus/v3/julian"

	"github.com/art-injener/satprop/internal/norad"
)

// Ошибки пропагации.
var (
	ErrInvalidTLEForPropagation = errors.New("invalid TLE for propagation")
	ErrPropagationFailed        = errors.New("propagation failed")
	ErrInvalidStep              = errors.New("step must be positive")
)

// ECIPosition — положение и скорость в TEME на момент Time.
type ECIPosition struct {
	X, Y, Z    float64 // км.
	Vx, Vy, Vz float64 // км/с.

	Time   time.Time
	Tsince float64 // Минуты от эпохи элементов.

	// Mean — средние элементы, из которых получено положение.
	Mean norad.MeanElements
}

type propagatorConfig struct {
	family   norad.Family
	model    norad.Model
	gravity  norad.Gravity
	maxSteps int
}

// PropagatorOption настраивает Propagator.
type PropagatorOption func(*propagatorConfig)

// WithFamily выбирает семейство моделей (SGP4/SDP4 или SGP8/SDP8).
// Околоземная или дальняя модель выбирается по периоду.
func WithFamily(f norad.Family) PropagatorOption {
	return func(c *propagatorConfig) {
		c.family = f
	}
}

// WithModel задаёт модель явно, без выбора по периоду.
func WithModel(m norad.Model) PropagatorOption {
	return func(c *propagatorConfig) {
		c.model = m
	}
}

// WithGravity задаёт набор гравитационных констант.
func WithGravity(g norad.Gravity) PropagatorOption {
	return func(c *propagatorConfig) {
		c.gravity = g
	}
}

// WithResonanceStepLimit ограничивает число шагов интегратора резонанса за вызов.
func WithResonanceStepLimit(n int) PropagatorOption {
	return func(c *propagatorConfig) {
		c.maxSteps = n
	}
}

// Propagator рассчитывает положение одного спутника по его элементам.
// Контекст дальних моделей хранит состояние интегратора, поэтому вызовы
// сериализуются мьютексом.
type Propagator struct {
	mu   sync.Mutex
	core norad.Propagator

	tle     *TLE
	gravity norad.Gravity
	epoch   float64 // MJD.
}

// NewPropagator инициализирует модель для tle. По умолчанию семейство
// SGP4, константы WGS-72.
func NewPropagator(tle *TLE, opts ...PropagatorOption) (*Propagator, error) {
	if tle == nil {
		return nil, ErrNilTLE
	}

	cfg := propagatorConfig{family: norad.FamilySGP4, gravity: norad.GravityWGS72}
	for _, opt := range opts {
		opt(&cfg)
	}

	el := tle.Elements()

	model := cfg.model
	if model == 0 {
		deep, err := norad.IsDeepSpace(el, cfg.gravity)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTLEForPropagation, err)
		}
		model = norad.ModelFor(cfg.family, deep)
	}

	var coreOpts []norad.Option
	if cfg.maxSteps > 0 {
		coreOpts = append(coreOpts, norad.WithMaxResonanceSteps(cfg.maxSteps))
	}

	core, err := norad.New(model, el, cfg.gravity, coreOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTLEForPropagation, err)
	}

	return &Propagator{
		core:    core,
		tle:     tle,
		gravity: cfg.gravity,
		epoch:   el.Epoch,
	}, nil
}

// Tsince возвращает смещение t от эпохи элементов в минутах.
func (p *Propagator) Tsince(t time.Time) float64 {
	return (norad.MJDFromTime(t) - p.epoch) * 1440
}

// State рассчитывает полное состояние модели на момент t.
func (p *Propagator) State(t time.Time) (norad.State, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, err := p.core.Propagate(p.Tsince(t))
	if err != nil {
		return norad.State{}, fmt.Errorf("%w: %w", ErrPropagationFailed, err)
	}

	return st, nil
}

// Propagate рассчитывает положение спутника на момент t.
func (p *Propagator) Propagate(t time.Time) (*ECIPosition, error) {
	if p == nil {
		return nil, ErrNilTLE
	}

	st, err := p.State(t)
	if err != nil {
		return nil, err
	}

	return &ECIPosition{
		X: st.Position[0], Y: st.Position[1], Z: st.Position[2],
		Vx: st.Velocity[0], Vy: st.Velocity[1], Vz: st.Velocity[2],
		Time:   t,
		Tsince: st.Tsince,
		Mean:   st.Mean,
	}, nil
}

// PropagateRange рассчитывает положения на [start, end] с шагом step.
// При ошибке возвращает уже рассчитанные точки вместе с ошибкой.
func (p *Propagator) PropagateRange(start, end time.Time, step time.Duration) ([]*ECIPosition, error) {
	if p == nil {
		return nil, ErrNilTLE
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStep, step)
	}
	if end.Before(start) {
		start, end = end, start
	}

	positions := make([]*ECIPosition, 0, int(end.Sub(start)/step)+1)
	for t := start; !t.After(end); t = t.Add(step) {
		pos, err := p.Propagate(t)
		if err != nil {
			return positions, fmt.Errorf("propagation at %v: %w", t, err)
		}
		positions = append(positions, pos)
	}

	return positions, nil
}

// TLE возвращает исходные элементы.
func (p *Propagator) TLE() *TLE { return p.tle }

// Model возвращает используемую модель.
func (p *Propagator) Model() norad.Model { return p.core.Model() }

// Gravity возвращает набор гравитационных констант.
func (p *Propagator) Gravity() norad.Gravity { return p.gravity }

// GMST возвращает гринвичское среднее звёздное время, рад.
func GMST(t time.Time) float64 {
	return norad.ThetaG(norad.MJDFromTime(t))
}

// JulianDay возвращает юлианскую дату момента t.
func JulianDay(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

func (pos *ECIPosition) String() string {
	return fmt.Sprintf("ECI[%.3f, %.3f, %.3f km] V[%.6f, %.6f, %.6f km/s] @ %s",
		pos.X, pos.Y, pos.Z,
		pos.Vx, pos.Vy, pos.Vz,
		pos.Time.UTC().Format(time.RFC3339),
	)
}

// Magnitude возвращает расстояние от центра Земли, км.
func (pos *ECIPosition) Magnitude() float64 {
	return math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
}

// Altitude возвращает геодезическую высоту над эллипсоидом WGS-84, км.
func (pos *ECIPosition) Altitude() float64 {
	return ECEFToLLA(ECIToECEF(pos)).Alt
}

// Speed возвращает модуль скорости, км/с.
func (pos *ECIPosition) Speed() float64 {
	return math.Sqrt(pos.Vx*pos.Vx + pos.Vy*pos.Vy + pos.Vz*pos.Vz)
}
