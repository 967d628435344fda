package tracker

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/art-injener/satprop/internal/norad"
)

func TestIsGeostationary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tle  *TLE
		want bool
	}{
		{name: "GEO", tle: mustParseTLE(t, geoTLE), want: true},
		{name: "ISS", tle: mustParseTLE(t, issTLE), want: false},
		{name: "Molniya", tle: mustParseTLE(t, molniyaTLE), want: false},
		{name: "nil", tle: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsGeostationary(tt.tle); got != tt.want {
				t.Errorf("IsGeostationary() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGenerateGroundTrack_ISS(t *testing.T) {
	t.Parallel()

	prop := mustPropagator(t, issTLE)
	start := issEpoch
	end := start.Add(93 * time.Minute)
	now := start.Add(30 * time.Minute)

	gt, err := GenerateGroundTrack(prop, start, end, now, time.Minute)
	if err != nil {
		t.Fatalf("GenerateGroundTrack() error = %v", err)
	}

	if gt.NoradID != 25544 {
		t.Errorf("NoradID = %d, want 25544", gt.NoradID)
	}
	if gt.Model != norad.ModelSGP4.String() {
		t.Errorf("Model = %q, want %q", gt.Model, norad.ModelSGP4.String())
	}
	if len(gt.Past) == 0 || len(gt.Future) == 0 {
		t.Fatalf("past = %d segments, future = %d segments; want both non-empty", len(gt.Past), len(gt.Future))
	}

	// 94 расчётные точки плюс по две граничные на каждый переход ±180°.
	if n := gt.TotalPoints(); n < 94 {
		t.Errorf("TotalPoints() = %d, want >= 94", n)
	}

	nowMs := now.UnixMilli()
	for _, seg := range gt.Past {
		for _, p := range seg {
			if p.TS >= nowMs {
				t.Errorf("past point at %d is not before now %d", p.TS, nowMs)
			}
		}
	}
	for _, seg := range gt.Future {
		for _, p := range seg {
			if p.TS < nowMs {
				t.Errorf("future point at %d is before now %d", p.TS, nowMs)
			}
		}
	}

	for _, p := range gt.Points() {
		if math.Abs(p.Lat) > 52.0 {
			t.Errorf("latitude %.3f exceeds inclination", p.Lat)
		}
		if p.Lon < -180 || p.Lon > 180 {
			t.Errorf("longitude %.3f out of range", p.Lon)
		}
		if p.Alt < 360 || p.Alt > 450 {
			t.Errorf("altitude %.1f km out of LEO range", p.Alt)
		}
	}
}

func TestGenerateGroundTrack_SegmentsContinuous(t *testing.T) {
	t.Parallel()

	prop := mustPropagator(t, meteorTLE)
	start := issEpoch
	gt, err := GenerateGroundTrack(prop, start, start.Add(6*time.Hour), start, 30*time.Second)
	if err != nil {
		t.Fatalf("GenerateGroundTrack() error = %v", err)
	}

	for _, seg := range gt.Future {
		for i := 1; i < len(seg); i++ {
			if d := math.Abs(seg[i].Lon - seg[i-1].Lon); d > antimeridianThreshold {
				t.Fatalf("segment jumps %.1f° between %d and %d", d, i-1, i)
			}
		}
	}

	if len(gt.Future) < 2 {
		t.Errorf("got %d segments over 6 h, want antimeridian crossings", len(gt.Future))
	}
}

func TestGenerateGroundTrack_GEO(t *testing.T) {
	t.Parallel()

	prop := mustPropagator(t, geoTLE)
	gt, err := GenerateDefaultGroundTrack(prop, issEpoch)
	if err != nil {
		t.Fatalf("GenerateDefaultGroundTrack() error = %v", err)
	}

	if gt.Model != norad.ModelSDP4.String() {
		t.Errorf("Model = %q, want %q", gt.Model, norad.ModelSDP4.String())
	}

	points := gt.Points()
	if len(points) != 289 {
		t.Errorf("len(points) = %d, want 289", len(points))
	}

	lon0 := points[0].Lon
	for _, p := range points {
		if math.Abs(p.Lat) > 0.2 {
			t.Errorf("latitude %.3f, want near equator", p.Lat)
		}
		if math.Abs(p.Lon-lon0) > 2 {
			t.Errorf("longitude drift %.3f° from %.3f", p.Lon-lon0, lon0)
		}
	}
}

func TestGenerateGroundTrack_Errors(t *testing.T) {
	t.Parallel()

	prop := mustPropagator(t, issTLE)

	tests := []struct {
		name    string
		prop    *Propagator
		end     time.Time
		step    time.Duration
		wantErr error
	}{
		{name: "nil propagator", prop: nil, end: issEpoch.Add(time.Hour), step: time.Minute, wantErr: ErrNilTLE},
		{name: "zero step", prop: prop, end: issEpoch.Add(time.Hour), step: 0, wantErr: ErrInvalidStep},
		{name: "negative step", prop: prop, end: issEpoch.Add(time.Hour), step: -time.Second, wantErr: ErrInvalidStep},
		{name: "empty range", prop: prop, end: issEpoch, step: time.Minute, wantErr: ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := GenerateGroundTrack(tt.prop, issEpoch, tt.end, issEpoch, tt.step)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateGroundTrack_ReversedRange(t *testing.T) {
	t.Parallel()

	prop := mustPropagator(t, issTLE)
	gt, err := GenerateGroundTrack(prop, issEpoch.Add(10*time.Minute), issEpoch, issEpoch, time.Minute)
	if err != nil {
		t.Fatalf("GenerateGroundTrack() error = %v", err)
	}

	points := gt.Points()
	if len(points) < 11 {
		t.Fatalf("len(points) = %d, want >= 11", len(points))
	}
	if points[0].TS != issEpoch.UnixMilli() {
		t.Errorf("first TS = %d, want %d", points[0].TS, issEpoch.UnixMilli())
	}
}

func TestGenerateGroundTrack_StopsAtDecay(t *testing.T) {
	t.Parallel()

	tle := mustParseTLE(t, issTLE)
	tle.Bstar = 0.01
	prop, err := NewPropagator(tle)
	if err != nil {
		t.Fatalf("NewPropagator() error = %v", err)
	}

	far := issEpoch.Add(2 * 365 * 24 * time.Hour)
	if _, err := GenerateGroundTrack(prop, far, far.Add(time.Hour), far, time.Minute); !errors.Is(err, norad.ErrDecayed) {
		t.Errorf("error = %v, want ErrDecayed", err)
	}
}

func TestGenerateDefaultGroundTrack_ISS(t *testing.T) {
	t.Parallel()

	prop := mustPropagator(t, issTLE)
	gt, err := GenerateDefaultGroundTrack(prop, issEpoch)
	if err != nil {
		t.Fatalf("GenerateDefaultGroundTrack() error = %v", err)
	}

	// Период около 92.9 мин: одна треть точек в прошлом, остальные в будущем.
	past, future := 0, 0
	for _, seg := range gt.Past {
		past += len(seg)
	}
	for _, seg := range gt.Future {
		future += len(seg)
	}
	if past < 180 || future < 3*past-20 {
		t.Errorf("past = %d, future = %d points", past, future)
	}
}

func TestGenerateDefaultGroundTrack_Nil(t *testing.T) {
	t.Parallel()

	if _, err := GenerateDefaultGroundTrack(nil, issEpoch); !errors.Is(err, ErrNilTLE) {
		t.Errorf("error = %v, want ErrNilTLE", err)
	}
}

func TestSplitAtAntimeridian(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		points   []TrackPoint
		segments int
	}{
		{name: "empty", points: nil, segments: 0},
		{
			name:     "no crossing",
			points:   []TrackPoint{{Lon: 10, TS: 0}, {Lon: 20, TS: 1000}, {Lon: 30, TS: 2000}},
			segments: 1,
		},
		{
			name:     "eastward crossing",
			points:   []TrackPoint{{Lon: 170, TS: 0}, {Lon: 178, TS: 1000}, {Lon: -174, TS: 2000}},
			segments: 2,
		},
		{
			name:     "westward crossing",
			points:   []TrackPoint{{Lon: -170, TS: 0}, {Lon: -178, TS: 1000}, {Lon: 174, TS: 2000}},
			segments: 2,
		},
		{
			name: "two crossings",
			points: []TrackPoint{
				{Lon: 175, TS: 0}, {Lon: -175, TS: 1000}, {Lon: -170, TS: 2000},
				{Lon: 179, TS: 3000}, {Lon: 170, TS: 4000},
			},
			segments: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			segs := splitAtAntimeridian(tt.points)
			if len(segs) != tt.segments {
				t.Fatalf("got %d segments, want %d", len(segs), tt.segments)
			}

			for i := 1; i < len(segs); i++ {
				prevEnd := segs[i-1][len(segs[i-1])-1]
				start := segs[i][0]
				if math.Abs(prevEnd.Lon) != 180 || start.Lon != -prevEnd.Lon {
					t.Errorf("boundary lon = %.1f / %.1f, want ±180", prevEnd.Lon, start.Lon)
				}
				if prevEnd.TS != start.TS || prevEnd.Lat != start.Lat {
					t.Errorf("boundary points differ: %+v vs %+v", prevEnd, start)
				}
			}
		})
	}
}

func TestInterpolateAntimeridian(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		p1, p2  TrackPoint
		wantLon float64
		wantLat float64
		wantTS  int64
	}{
		{
			name:    "east to west",
			p1:      TrackPoint{Lon: 178, Lat: 10, TS: 0},
			p2:      TrackPoint{Lon: -178, Lat: 14, TS: 4000},
			wantLon: 180, wantLat: 12, wantTS: 2000,
		},
		{
			name:    "west to east",
			p1:      TrackPoint{Lon: -179, Lat: -20, TS: 0},
			p2:      TrackPoint{Lon: 177, Lat: -24, TS: 4000},
			wantLon: -180, wantLat: -21, wantTS: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			end, start := interpolateAntimeridian(tt.p1, tt.p2)
			if end.Lon != tt.wantLon || start.Lon != -tt.wantLon {
				t.Errorf("lon = %.1f / %.1f, want %.1f / %.1f", end.Lon, start.Lon, tt.wantLon, -tt.wantLon)
			}
			if math.Abs(end.Lat-tt.wantLat) > 1e-9 {
				t.Errorf("lat = %.6f, want %.6f", end.Lat, tt.wantLat)
			}
			if end.TS != tt.wantTS {
				t.Errorf("TS = %d, want %d", end.TS, tt.wantTS)
			}
		})
	}
}

func TestSplitPastFuture(t *testing.T) {
	t.Parallel()

	seg := []TrackPoint{{TS: 0}, {TS: 1000}, {TS: 2000}, {TS: 3000}}

	tests := []struct {
		name               string
		now                int64
		wantPast, wantFut  int
		wantPastN, wantFtN int
	}{
		{name: "all past", now: 5000, wantPast: 1, wantFut: 0, wantPastN: 4},
		{name: "all future", now: 0, wantPast: 0, wantFut: 1, wantFtN: 4},
		{name: "split", now: 1500, wantPast: 1, wantFut: 1, wantPastN: 2, wantFtN: 2},
		{name: "now on point", now: 2000, wantPast: 1, wantFut: 1, wantPastN: 2, wantFtN: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			past, future := splitPastFuture([][]TrackPoint{seg, nil}, tt.now)
			if len(past) != tt.wantPast || len(future) != tt.wantFut {
				t.Fatalf("segments past/future = %d/%d, want %d/%d", len(past), len(future), tt.wantPast, tt.wantFut)
			}
			if tt.wantPast > 0 && len(past[0]) != tt.wantPastN {
				t.Errorf("past points = %d, want %d", len(past[0]), tt.wantPastN)
			}
			if tt.wantFut > 0 && len(future[0]) != tt.wantFtN {
				t.Errorf("future points = %d, want %d", len(future[0]), tt.wantFtN)
			}
		})
	}
}

func TestGroundTrack_Points(t *testing.T) {
	t.Parallel()

	gt := &GroundTrack{
		Past:   [][]TrackPoint{{{TS: 1}, {TS: 2}}},
		Future: [][]TrackPoint{{{TS: 3}}, {{TS: 4}, {TS: 5}}},
	}

	points := gt.Points()
	if len(points) != 5 || gt.TotalPoints() != 5 {
		t.Fatalf("len(Points()) = %d, TotalPoints() = %d, want 5", len(points), gt.TotalPoints())
	}
	for i, p := range points {
		if p.TS != int64(i+1) {
			t.Errorf("points[%d].TS = %d, want %d", i, p.TS, i+1)
		}
	}

	var empty *GroundTrack
	if empty.Points() != nil || empty.TotalPoints() != 0 {
		t.Error("nil GroundTrack should have no points")
	}
}

func BenchmarkGenerateDefaultGroundTrack_ISS(b *testing.B) {
	prop := mustPropagator(b, issTLE)

	b.ResetTimer()
	for range b.N {
		if _, err := GenerateDefaultGroundTrack(prop, issEpoch); err != nil {
			b.Fatal(err)
		}
	}
}
