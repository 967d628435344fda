package norad

import (
	"fmt"
	"strings"
)

// Model — модель пропагации.
type Model int

const (
	ModelSGP Model = iota + 1
	ModelSGP4
	ModelSGP8
	ModelSDP4
	ModelSDP8
)

var modelNames = map[Model]string{
	ModelSGP:  "sgp",
	ModelSGP4: "sgp4",
	ModelSGP8: "sgp8",
	ModelSDP4: "sdp4",
	ModelSDP8: "sdp8",
}

func (m Model) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}

	return fmt.Sprintf("Model(%d)", int(m))
}

// DeepSpace сообщает, использует ли модель блок глубокого космоса.
func (m Model) DeepSpace() bool { return m == ModelSDP4 || m == ModelSDP8 }

// ParseModel разбирает имя модели без учёта регистра.
func ParseModel(s string) (Model, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modelNames {
		if n == name {
			return m, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownModel, s)
}

// Family — семейство моделей: околоземная модель и её вариант для
// глубокого космоса.
type Family int

const (
	FamilySGP4 Family = iota
	FamilySGP8
)

func (f Family) String() string {
	if f == FamilySGP8 {
		return "sgp8"
	}

	return "sgp4"
}

// ParseFamily разбирает имя семейства ("sgp4" или "sgp8").
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sgp4", "sdp4":
		return FamilySGP4, nil
	case "sgp8", "sdp8":
		return FamilySGP8, nil
	default:
		return 0, fmt.Errorf("%w: family %q", ErrUnknownModel, s)
	}
}

// ModelFor возвращает модель семейства для околоземной или дальней орбиты.
func ModelFor(f Family, deep bool) Model {
	switch {
	case f == FamilySGP8 && deep:
		return ModelSDP8
	case f == FamilySGP8:
		return ModelSGP8
	case deep:
		return ModelSDP4
	default:
		return ModelSGP4
	}
}

// Propagator — инициализированный контекст одной модели для одного спутника.
type Propagator interface {
	// Propagate рассчитывает состояние через tsince минут от эпохи.
	Propagate(tsince float64) (State, error)
	Model() Model
	Elements() Elements
}

type options struct {
	maxResonanceSteps int
}

// Option настраивает контекст пропагации.
type Option func(*options)

// WithMaxResonanceSteps задаёт лимит шагов интегратора резонанса за один
// вызов Propagate. При превышении Propagate возвращает ErrResonanceDiverged.
func WithMaxResonanceSteps(n int) Option {
	return func(o *options) {
		o.maxResonanceSteps = n
	}
}

func applyOptions(opts []Option) options {
	o := options{maxResonanceSteps: defaultMaxStepsPerCall}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// New инициализирует контекст модели model. Модель выбирает вызывающий
// код: для дальних орбит (IsDeepSpace) нужна SDP4 или SDP8.
func New(model Model, el Elements, g Gravity, opts ...Option) (Propagator, error) {
	var (
		p   Propagator
		err error
	)

	switch model {
	case ModelSGP:
		p, err = wrap(NewSGP(el, g))
	case ModelSGP4:
		p, err = wrap(NewSGP4(el, g))
	case ModelSGP8:
		p, err = wrap(NewSGP8(el, g))
	case ModelSDP4:
		p, err = wrap(NewSDP4(el, g, opts...))
	case ModelSDP8:
		p, err = wrap(NewSDP8(el, g, opts...))
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownModel, model)
	}
	if err != nil {
		return nil, fmt.Errorf("init %v: %w", model, err)
	}

	return p, nil
}

// wrap не даёт типизированному nil попасть в интерфейс.
func wrap[T Propagator](p T, err error) (Propagator, error) {
	if err != nil {
		return nil, err
	}

	return p, nil
}
