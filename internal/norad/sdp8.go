package norad

import (
	"fmt"
	"math"
)

// SDP8 — SGP8 с блоком глубокого космоса. Торможение в SDP8 всегда
// линейное. Контекст хранит состояние интегратора и не предназначен для
// конкурентного использования.
type SDP8 struct {
	drag *sgp8Drag
	deep *Deep
	edot float64
}

// NewSDP8 инициализирует модель SDP8.
func NewSDP8(el Elements, g Gravity, opts ...Option) (*SDP8, error) {
	d, err := Derive(el, g)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	drag := newSGP8Drag(d)

	return &SDP8{
		drag: drag,
		deep: NewDeep(d, o.maxResonanceSteps),
		edot: drag.linearEdot(),
	}, nil
}

// Propagate рассчитывает состояние через tsince минут от эпохи.
func (p *SDP8) Propagate(tsince float64) (State, error) {
	d := p.drag.d

	z1 := 0.5 * p.drag.xndt * tsince * tsince
	z7 := 3.5 * twoThirds * z1 / d.xnodp

	m, err := p.deep.Secular(MeanElements{
		MeanAnomaly: d.xmo + d.xmdot*tsince,
		ArgPerigee:  d.omegao + d.omgdot*tsince + z7*p.drag.xgdt1,
		Node:        d.xnodeo + d.xnodot*tsince + z7*p.drag.xhdt1,
	}, tsince)
	if err != nil {
		return State{}, fmt.Errorf("sdp8 at %.3f min: %w", tsince, err)
	}

	m.MeanMotion += p.drag.xndt * tsince
	m.Eccentricity += p.edot * tsince
	m.MeanAnomaly += z1 + z7*p.drag.xmdt1

	m, err = p.deep.Periodic(m, tsince)
	if err != nil {
		return State{}, fmt.Errorf("sdp8 at %.3f min: %w", tsince, err)
	}
	m.MeanAnomaly = Fmod2p(m.MeanAnomaly)

	st, err := p.drag.short.apply(m, math.Sin(0.5*m.Inclination))
	if err != nil {
		return State{}, fmt.Errorf("sdp8 at %.3f min: %w", tsince, err)
	}
	st.Tsince = tsince

	return st, nil
}

// Model возвращает ModelSDP8.
func (p *SDP8) Model() Model { return ModelSDP8 }

// Elements возвращает исходные элементы.
func (p *SDP8) Elements() Elements { return p.drag.d.el }

// Derived возвращает производные константы.
func (p *SDP8) Derived() *Derived { return p.drag.d }

// Deep возвращает блок глубокого космоса контекста.
func (p *SDP8) Deep() *Deep { return p.deep }
