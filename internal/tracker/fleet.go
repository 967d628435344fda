package tracker

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// ObserveFunc получает результат каждой пропагации: модель, длительность и ошибку.
type ObserveFunc func(model string, elapsed time.Duration, err error)

// SatelliteState — положение спутника из снимка флота.
type SatelliteState struct {
	NoradID  int          `json:"norad_id"`
	Name     string       `json:"name"`
	Model    string       `json:"model,omitempty"`
	Position *ECIPosition `json:"-"`
	Lat      float64      `json:"lat"`
	Lon      float64      `json:"lon"`
	AltKm    float64      `json:"alt_km"`
	Look     *Observation `json:"-"`
	Error    string       `json:"error,omitempty"`
}

// SatellitePasses — прохождения одного спутника.
type SatellitePasses struct {
	NoradID int    `json:"norad_id"`
	Passes  []Pass `json:"passes"`
	Error   string `json:"error,omitempty"`
}

// Fleet рассчитывает группы спутников каталога параллельно.
type Fleet struct {
	catalog *Catalog
	workers int
	observe ObserveFunc
	logger  *slog.Logger
}

type FleetOption func(*Fleet)

// WithWorkers ограничивает число одновременно рассчитываемых спутников.
func WithWorkers(n int) FleetOption {
	return func(f *Fleet) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithObserver(fn ObserveFunc) FleetOption {
	return func(f *Fleet) {
		f.observe = fn
	}
}

func WithFleetLogger(logger *slog.Logger) FleetOption {
	return func(f *Fleet) {
		f.logger = logger
	}
}

func NewFleet(c *Catalog, opts ...FleetOption) *Fleet {
	f := &Fleet{
		catalog: c,
		workers: runtime.NumCPU(),
		observe: func(string, time.Duration, error) {},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *Fleet) ids(ids []int) []int {
	if len(ids) > 0 {
		return ids
	}

	all := f.catalog.All()
	out := make([]int, len(all))
	for i, tle := range all {
		out[i] = tle.NoradID
	}

	return out
}

// Snapshot рассчитывает положения спутников ids (всех, если пусто) на
// момент t. Ошибка отдельного спутника записывается в его SatelliteState;
// ошибкой Snapshot завершается только при отмене ctx. Если obs задан,
// заполняется Look.
func (f *Fleet) Snapshot(ctx context.Context, t time.Time, obs *Observer, ids ...int) ([]SatelliteState, error) {
	ids = f.ids(ids)
	states := make([]SatelliteState, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			states[i] = f.state(id, t, obs)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return states, nil
}

func (f *Fleet) state(id int, t time.Time, obs *Observer) SatelliteState {
	st := SatelliteState{NoradID: id}

	prop, err := f.catalog.Propagator(id)
	if err != nil {
		st.Error = err.Error()
		return st
	}

	st.Name = prop.TLE().Name
	st.Model = prop.Model().String()

	begin := time.Now()
	pos, err := prop.Propagate(t)
	f.observe(st.Model, time.Since(begin), err)
	if err != nil {
		f.logger.Debug("propagation failed", "norad_id", id, "model", st.Model, "error", err)
		st.Error = err.Error()

		return st
	}

	lla := ECEFToLLA(ECIToECEF(pos))
	st.Position = pos
	st.Lat, st.Lon, st.AltKm = lla.LatDeg(), lla.LonDeg(), lla.Alt
	if obs != nil {
		st.Look = obs.Look(pos)
	}

	return st
}

// Passes ищет прохождения спутников ids (всех, если пусто) над obs.
// Ошибки отдельных спутников записываются в результат вместе с
// найденными до ошибки прохождениями.
func (f *Fleet) Passes(ctx context.Context, obs *Observer, start, stop time.Time, opts PassOptions, ids ...int) ([]SatellitePasses, error) {
	ids = f.ids(ids)
	results := make([]SatellitePasses, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, id := range ids {
		g.Go(func() error {
			res := SatellitePasses{NoradID: id}
			defer func() { results[i] = res }()

			prop, err := f.catalog.Propagator(id)
			if err != nil {
				res.Error = err.Error()
				return nil
			}

			begin := time.Now()
			res.Passes, err = FindPasses(ctx, prop, obs, start, stop, opts)
			f.observe(prop.Model().String(), time.Since(begin), err)

			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				res.Error = err.Error()
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
