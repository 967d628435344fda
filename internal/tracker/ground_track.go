package tracker

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidRange — пустой интервал построения трассы.
var ErrInvalidRange = errors.New("invalid time range: start equals end")

const (
	// Отклонение среднего движения от 1 об/сут, в пределах которого орбита
	// считается геостационарной.
	geoMeanMotionThreshold = 0.1

	// Скачок долготы между соседними точками, означающий переход через ±180°.
	antimeridianThreshold = 270.0

	defaultTrackStep = 30 * time.Second
)

// TrackPoint — подспутниковая точка.
type TrackPoint struct {
	Lon float64 `json:"lon"`    // Градусы, -180..180.
	Lat float64 `json:"lat"`    // Градусы.
	Alt float64 `json:"alt_km"` // Геодезическая высота, км.
	TS  int64   `json:"ts"`     // Unix, мс.
}

// GroundTrack — трасса, разбитая по антимеридиану и по текущему моменту.
type GroundTrack struct {
	Past    [][]TrackPoint `json:"past"`
	Future  [][]TrackPoint `json:"future"`
	NoradID int            `json:"norad_id"`
	Model   string         `json:"model"`
}

// Points возвращает все точки подряд.
func (gt *GroundTrack) Points() []TrackPoint {
	if gt == nil {
		return nil
	}

	var out []TrackPoint
	for _, part := range [][][]TrackPoint{gt.Past, gt.Future} {
		for _, seg := range part {
			out = append(out, seg...)
		}
	}

	return out
}

// TotalPoints возвращает число точек трассы.
func (gt *GroundTrack) TotalPoints() int {
	return len(gt.Points())
}

// IsGeostationary сообщает, близко ли среднее движение к одному обороту в сутки.
func IsGeostationary(tle *TLE) bool {
	return tle != nil && math.Abs(tle.MeanMotion-1.0) < geoMeanMotionThreshold
}

// GenerateGroundTrack строит трассу на [start, end] с шагом step.
// Точки до now попадают в Past, остальные в Future.
func GenerateGroundTrack(prop *Propagator, start, end, now time.Time, step time.Duration) (*GroundTrack, error) {
	if prop == nil {
		return nil, ErrNilTLE
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStep, step)
	}
	if start.Equal(end) {
		return nil, ErrInvalidRange
	}
	if end.Before(start) {
		start, end = end, start
	}

	gt := &GroundTrack{NoradID: prop.TLE().NoradID, Model: prop.Model().String()}

	points, err := trackPoints(prop, start, end, step)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return gt, nil
	}

	gt.Past, gt.Future = splitPastFuture(splitAtAntimeridian(points), now.UnixMilli())

	return gt, nil
}

// GenerateDefaultGroundTrack строит трассу на один период назад и три
// вперёд. Для геостационара берутся сутки в обе стороны с шагом 10 мин.
func GenerateDefaultGroundTrack(prop *Propagator, now time.Time) (*GroundTrack, error) {
	if prop == nil {
		return nil, ErrNilTLE
	}

	tle := prop.TLE()
	if IsGeostationary(tle) {
		return GenerateGroundTrack(prop, now.Add(-24*time.Hour), now.Add(24*time.Hour), now, 10*time.Minute)
	}

	period := time.Duration(tle.OrbitalPeriod() * float64(time.Minute))
	if period <= 0 {
		return nil, fmt.Errorf("%w: orbital period %.2f min", ErrInvalidRange, tle.OrbitalPeriod())
	}

	return GenerateGroundTrack(prop, now.Add(-period), now.Add(3*period), now, defaultTrackStep)
}

// trackPoints обрывает трассу на первой ошибке пропагации, если до неё
// уже есть точки.
func trackPoints(prop *Propagator, start, end time.Time, step time.Duration) ([]TrackPoint, error) {
	points := make([]TrackPoint, 0, int(end.Sub(start)/step)+1)

	for t := start; !t.After(end); t = t.Add(step) {
		eci, err := prop.Propagate(t)
		if err != nil {
			if len(points) > 0 {
				return points, nil
			}

			return nil, fmt.Errorf("propagation at %v: %w", t, err)
		}

		lla := ECEFToLLA(ECIToECEF(eci))
		points = append(points, TrackPoint{
			Lon: lla.LonDeg(),
			Lat: lla.LatDeg(),
			Alt: lla.Alt,
			TS:  t.UnixMilli(),
		})
	}

	return points, nil
}

// splitAtAntimeridian режет трассу на переходах через ±180°, добавляя на
// концах сегментов интерполированные граничные точки.
func splitAtAntimeridian(points []TrackPoint) [][]TrackPoint {
	if len(points) == 0 {
		return nil
	}

	var segments [][]TrackPoint
	seg := []TrackPoint{points[0]}

	for i := 1; i < len(points); i++ {
		if math.Abs(points[i].Lon-points[i-1].Lon) <= antimeridianThreshold {
			seg = append(seg, points[i])
			continue
		}

		end, start := interpolateAntimeridian(points[i-1], points[i])
		segments = append(segments, append(seg, end))
		seg = []TrackPoint{start, points[i]}
	}

	return append(segments, seg)
}

// interpolateAntimeridian возвращает точку пересечения ±180° со стороны p1
// и со стороны p2.
func interpolateAntimeridian(p1, p2 TrackPoint) (TrackPoint, TrackPoint) {
	edge, unwrap := -180.0, -360.0
	if p1.Lon > 0 {
		edge, unwrap = 180.0, 360.0
	}

	frac := 0.5
	if dLon := p2.Lon + unwrap - p1.Lon; math.Abs(dLon) > 1e-10 {
		frac = math.Max(0, math.Min(1, (edge-p1.Lon)/dLon))
	}

	mid := TrackPoint{
		Lon: edge,
		Lat: p1.Lat + (p2.Lat-p1.Lat)*frac,
		Alt: p1.Alt + (p2.Alt-p1.Alt)*frac,
		TS:  p1.TS + int64(float64(p2.TS-p1.TS)*frac),
	}
	other := mid
	other.Lon = -edge

	return mid, other
}

// splitPastFuture делит сегменты по моменту nowMs; сегмент, содержащий
// now, разрезается на две части.
func splitPastFuture(segments [][]TrackPoint, nowMs int64) (past, future [][]TrackPoint) {
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}

		cut := len(seg)
		for i, p := range seg {
			if p.TS >= nowMs {
				cut = i
				break
			}
		}

		if cut > 0 {
			past = append(past, seg[:cut])
		}
		if cut < len(seg) {
			future = append(future, seg[cut:])
		}
	}

	return past, future
}
