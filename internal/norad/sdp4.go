package norad

import (
	"fmt"
	"math"
)

// SDP4 — SGP4 с лунно-солнечными поправками и резонансом для орбит с
// периодом от 225 минут. Контекст хранит состояние интегратора и не
// предназначен для конкурентного использования.
type SDP4 struct {
	drag *SGP4
	deep *Deep
}

// NewSDP4 инициализирует модель SDP4.
func NewSDP4(el Elements, g Gravity, opts ...Option) (*SDP4, error) {
	d, err := Derive(el, g)
	if err != nil {
		return nil, err
	}

	o := applyOptions(opts)

	return &SDP4{
		drag: newSGP4(d),
		deep: NewDeep(d, o.maxResonanceSteps),
	}, nil
}

// Propagate рассчитывает состояние через tsince минут от эпохи.
func (p *SDP4) Propagate(tsince float64) (State, error) {
	d := p.drag.d

	tsq := tsince * tsince
	tempa := 1 - p.drag.c1*tsince
	tempe := d.bstar * p.drag.c4 * tsince
	templ := p.drag.t2cof * tsq

	m, err := p.deep.Secular(MeanElements{
		MeanAnomaly: d.xmo + d.xmdot*tsince,
		ArgPerigee:  d.omegao + d.omgdot*tsince,
		Node:        d.xnodeo + d.xnodot*tsince + p.drag.xnodcf*tsq,
	}, tsince)
	if err != nil {
		return State{}, fmt.Errorf("sdp4 at %.3f min: %w", tsince, err)
	}

	if tempa <= 0 || m.MeanMotion <= 0 {
		return State{}, fmt.Errorf("sdp4 at %.3f min: %w: drag term exhausted", tsince, ErrDecayed)
	}

	a := math.Pow(d.grav.XKE/m.MeanMotion, twoThirds) * tempa * tempa
	m.Eccentricity -= tempe
	if err := checkMean(a, m.Eccentricity); err != nil {
		return State{}, fmt.Errorf("sdp4 at %.3f min: %w", tsince, err)
	}
	m.MeanAnomaly += d.xnodp * templ

	m, err = p.deep.Periodic(m, tsince)
	if err != nil {
		return State{}, fmt.Errorf("sdp4 at %.3f min: %w", tsince, err)
	}
	m.Eccentricity = clampEccentricity(m.Eccentricity)

	xl := m.MeanAnomaly + m.ArgPerigee + m.Node
	m.MeanMotion = d.grav.XKE / math.Pow(a, 1.5)

	pos, vel, err := p.drag.short.apply(a, m.Eccentricity, xl, m.ArgPerigee, m.Node, m.Inclination, m.MeanMotion)
	if err != nil {
		return State{}, fmt.Errorf("sdp4 at %.3f min: %w", tsince, err)
	}

	return State{
		Tsince:   tsince,
		Mean:     m.normalized(),
		Position: pos,
		Velocity: vel,
	}, nil
}

// Model возвращает ModelSDP4.
func (p *SDP4) Model() Model { return ModelSDP4 }

// Elements возвращает исходные элементы.
func (p *SDP4) Elements() Elements { return p.drag.d.el }

// Derived возвращает производные константы.
func (p *SDP4) Derived() *Derived { return p.drag.d }

// Deep возвращает блок глубокого космоса контекста.
func (p *SDP4) Deep() *Deep { return p.deep }
