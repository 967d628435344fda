package tracker

import (
	"math"
	"testing"
	"time"
)

const (
	toleranceCoord  = 1e-6 // км.
	toleranceDegree = 1e-4 // Градусы.
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

// angleDiff возвращает разность углов в градусах, приведённую к [-180, 180).
func angleDiff(a, b float64) float64 {
	return math.Mod(a-b+540, 360) - 180
}

var coordTime = time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)

func TestWGS84Constants(t *testing.T) {
	t.Parallel()

	if !almostEqual(WGS84B, 6356.752314245, 1e-6) {
		t.Errorf("WGS84B = %.9f, want 6356.752314245", WGS84B)
	}
	if !almostEqual(WGS84E2, 0.00669437999014, 1e-12) {
		t.Errorf("WGS84E2 = %.14f, want 0.00669437999014", WGS84E2)
	}
}

func TestECIToECEF_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		eci  *ECIPosition
	}{
		{name: "LEO", eci: &ECIPosition{X: -4400.594, Y: 1932.870, Z: 4760.712, Time: coordTime}},
		{name: "GEO", eci: &ECIPosition{X: 42164.0, Time: coordTime}},
		{name: "pole", eci: &ECIPosition{Z: 7000.0, Time: coordTime}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ecef := ECIToECEF(tt.eci)
			back := ECEFToECI(ecef)

			if !almostEqual(back.X, tt.eci.X, toleranceCoord) ||
				!almostEqual(back.Y, tt.eci.Y, toleranceCoord) ||
				!almostEqual(back.Z, tt.eci.Z, toleranceCoord) {
				t.Errorf("round trip = (%.6f, %.6f, %.6f), want (%.6f, %.6f, %.6f)",
					back.X, back.Y, back.Z, tt.eci.X, tt.eci.Y, tt.eci.Z)
			}
			if !almostEqual(ecef.Z, tt.eci.Z, toleranceCoord) {
				t.Errorf("Z changed by rotation: %.6f -> %.6f", tt.eci.Z, ecef.Z)
			}
			if !almostEqual(math.Hypot(ecef.X, ecef.Y), math.Hypot(tt.eci.X, tt.eci.Y), toleranceCoord) {
				t.Error("rotation changed equatorial distance")
			}
		})
	}
}

func TestECIToECEF_GreenwichMeridian(t *testing.T) {
	t.Parallel()

	// Точка ECI на направлении гринвичского меридиана попадает на ось X ECEF.
	theta := GMST(coordTime)
	eci := &ECIPosition{X: 7000 * math.Cos(theta), Y: 7000 * math.Sin(theta), Time: coordTime}

	ecef := ECIToECEF(eci)
	if !almostEqual(ecef.X, 7000, toleranceCoord) || !almostEqual(ecef.Y, 0, toleranceCoord) {
		t.Errorf("ECEF = (%.6f, %.6f), want (7000, 0)", ecef.X, ecef.Y)
	}
}

func TestECEFToECI_EarthRotationVelocity(t *testing.T) {
	t.Parallel()

	eci := ECEFToECI(&ECEFPosition{X: WGS84A, Time: coordTime})

	if got, want := eci.Speed(), OmegaEarth*WGS84A; !almostEqual(got, want, 1e-9) {
		t.Errorf("equator speed = %.9f km/s, want %.9f", got, want)
	}
	if eci.Vz != 0 {
		t.Errorf("Vz = %v, want 0", eci.Vz)
	}
	if dot := eci.X*eci.Vx + eci.Y*eci.Vy; !almostEqual(dot, 0, 1e-9) {
		t.Errorf("velocity not perpendicular to radius: r·v = %v", dot)
	}
}

func TestConversions_Nil(t *testing.T) {
	t.Parallel()

	if ECIToECEF(nil) != nil {
		t.Error("ECIToECEF(nil) != nil")
	}
	if ECEFToECI(nil) != nil {
		t.Error("ECEFToECI(nil) != nil")
	}
	if LLAToECEF(nil) != nil {
		t.Error("LLAToECEF(nil) != nil")
	}
	if ECEFToLLA(nil) != nil {
		t.Error("ECEFToLLA(nil) != nil")
	}

	var obs *Observer
	if obs.ToLLA() != nil {
		t.Error("nil Observer ToLLA() != nil")
	}
	if obs.Look(&ECIPosition{}) != nil {
		t.Error("nil Observer Look() != nil")
	}
	if ECEFToAER(nil, &ECEFPosition{}, &LLA{}) != nil {
		t.Error("ECEFToAER(nil, ...) != nil")
	}
}

func TestLLAToECEF_KnownPoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		lla     *LLA
		x, y, z float64
	}{
		{name: "equator prime meridian", lla: NewLLAFromDegrees(0, 0, 0), x: WGS84A},
		{name: "equator 90E", lla: NewLLAFromDegrees(0, 90, 0), y: WGS84A},
		{name: "north pole", lla: NewLLAFromDegrees(90, 0, 0), z: WGS84B},
		{name: "south pole 10 km", lla: NewLLAFromDegrees(-90, 0, 10), z: -WGS84B - 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := LLAToECEF(tt.lla)
			if !almostEqual(got.X, tt.x, toleranceCoord) ||
				!almostEqual(got.Y, tt.y, toleranceCoord) ||
				!almostEqual(got.Z, tt.z, toleranceCoord) {
				t.Errorf("LLAToECEF() = (%.6f, %.6f, %.6f), want (%.6f, %.6f, %.6f)",
					got.X, got.Y, got.Z, tt.x, tt.y, tt.z)
			}
		})
	}
}

func TestLLA_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		lat, lon, alt float64
	}{
		{name: "Moscow", lat: 55.7558, lon: 37.6173, alt: 0.156},
		{name: "Sydney", lat: -33.8688, lon: 151.2093, alt: 0.058},
		{name: "Anchorage", lat: 61.2181, lon: -149.9003, alt: 0.031},
		{name: "ISS altitude", lat: 51.6, lon: -120, alt: 420},
		{name: "GEO", lat: 0, lon: 75, alt: 35786},
		{name: "near pole", lat: 89.99, lon: 10, alt: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ECEFToLLA(LLAToECEF(NewLLAFromDegrees(tt.lat, tt.lon, tt.alt)))

			if !almostEqual(got.LatDeg(), tt.lat, toleranceDegree) {
				t.Errorf("lat = %.6f, want %.6f", got.LatDeg(), tt.lat)
			}
			if !almostEqual(angleDiff(got.LonDeg(), tt.lon), 0, toleranceDegree) {
				t.Errorf("lon = %.6f, want %.6f", got.LonDeg(), tt.lon)
			}
			if !almostEqual(got.Alt, tt.alt, 1e-3) {
				t.Errorf("alt = %.6f, want %.6f", got.Alt, tt.alt)
			}
		})
	}
}

func TestObserver_ECI(t *testing.T) {
	t.Parallel()

	obs := NewObserver(55.7558, 37.6173, 0.156)
	eci := obs.ECI(coordTime)

	lla := ECEFToLLA(ECIToECEF(eci))
	if !almostEqual(lla.LatDeg(), obs.Lat, toleranceDegree) || !almostEqual(lla.LonDeg(), obs.Lon, toleranceDegree) {
		t.Errorf("observer ECI maps back to (%.6f, %.6f)", lla.LatDeg(), lla.LonDeg())
	}
	if !eci.Time.Equal(coordTime) {
		t.Errorf("Time = %v, want %v", eci.Time, coordTime)
	}
}

// satelliteAt возвращает положение ECI точки над заданной геодезической точкой.
func satelliteAt(latDeg, lonDeg, altKm float64, t time.Time) *ECIPosition {
	ecef := LLAToECEF(NewLLAFromDegrees(latDeg, lonDeg, altKm))
	ecef.Time = t

	return ECEFToECI(ecef)
}

func TestObserver_Look_Overhead(t *testing.T) {
	t.Parallel()

	obs := NewObserver(55.7558, 37.6173, 0.156)
	sat := satelliteAt(obs.Lat, obs.Lon, 500, coordTime)

	o := obs.Look(sat)

	if !almostEqual(o.ElDeg(), 90, 1e-3) {
		t.Errorf("El = %.6f°, want 90°", o.ElDeg())
	}
	if !almostEqual(o.Range, 500-obs.Alt, 1e-6) {
		t.Errorf("Range = %.6f km, want %.6f", o.Range, 500-obs.Alt)
	}
	// Направление в зенит имеет склонение, равное геодезической широте,
	// и прямое восхождение, равное местному звёздному времени.
	if !almostEqual(o.DecDeg(), obs.Lat, 1e-6) {
		t.Errorf("Dec = %.6f°, want %.6f°", o.DecDeg(), obs.Lat)
	}
	lst := math.Mod(GMST(coordTime)*Rad2Deg+obs.Lon, 360)
	if !almostEqual(angleDiff(o.RADeg(), lst), 0, 1e-6) {
		t.Errorf("RA = %.6f°, want LST %.6f°", o.RADeg(), lst)
	}
	if !o.Time.Equal(coordTime) {
		t.Errorf("Time = %v, want %v", o.Time, coordTime)
	}
}

func TestObserver_Look_Zenith(t *testing.T) {
	t.Parallel()

	// Пункт точно под геостационаром: up/range округляется выше 1.
	prop := mustPropagator(t, geoTLE)
	for _, ts := range []time.Time{issEpoch, issEpoch.Add(3 * time.Hour)} {
		pos, err := prop.Propagate(ts)
		if err != nil {
			t.Fatalf("Propagate() error = %v", err)
		}
		sub := ECEFToLLA(ECIToECEF(pos))
		obs := NewObserver(sub.LatDeg(), sub.LonDeg(), 0)

		o := obs.Look(pos)
		if math.IsNaN(o.El) || math.IsNaN(o.Dec) {
			t.Fatalf("Look() at %v = %+v, want finite angles", ts, o)
		}
		if o.ElDeg() < 89.9 || o.ElDeg() > 90 {
			t.Errorf("El = %.6f°, want 90°", o.ElDeg())
		}
	}
}

func TestAsinRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		num, den float64
		want     float64
	}{
		{num: 1, den: 2, want: math.Pi / 6},
		{num: 1 + 1e-15, den: 1, want: math.Pi / 2},
		{num: -1 - 1e-15, den: 1, want: -math.Pi / 2},
		{num: 0, den: 0, want: 0},
	}

	for _, tt := range tests {
		if got := asinRatio(tt.num, tt.den); !almostEqual(got, tt.want, 1e-12) {
			t.Errorf("asinRatio(%g, %g) = %v, want %v", tt.num, tt.den, got, tt.want)
		}
	}
}

func TestObserver_Look_Azimuth(t *testing.T) {
	t.Parallel()

	obs := NewObserver(0, 0, 0)

	tests := []struct {
		name     string
		lat, lon float64
		wantAz   float64
	}{
		{name: "north", lat: 10, lon: 0, wantAz: 0},
		{name: "east", lat: 0, lon: 10, wantAz: 90},
		{name: "south", lat: -10, lon: 0, wantAz: 180},
		{name: "west", lat: 0, lon: -10, wantAz: 270},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := obs.Look(satelliteAt(tt.lat, tt.lon, 1000, coordTime))

			if !almostEqual(angleDiff(o.AzDeg(), tt.wantAz), 0, 1e-6) {
				t.Errorf("Az = %.6f°, want %.1f°", o.AzDeg(), tt.wantAz)
			}
			if o.El <= 0 || o.El >= math.Pi/2 {
				t.Errorf("El = %.3f°, want between horizon and zenith", o.ElDeg())
			}
			if o.Az < 0 || o.Az > 2*math.Pi {
				t.Errorf("Az = %v out of [0, 2π]", o.Az)
			}
		})
	}
}

func TestObserver_Look_BelowHorizon(t *testing.T) {
	t.Parallel()

	obs := NewObserver(0, 0, 0)
	o := obs.Look(satelliteAt(0, 180, 500, coordTime))

	if o.El >= 0 {
		t.Errorf("El = %.3f°, want below horizon", o.ElDeg())
	}
}

func TestObserver_Look_RangeRate(t *testing.T) {
	t.Parallel()

	obs := NewObserver(0, 0, 0)
	sat := satelliteAt(0, 0, 500, coordTime)

	// Вместе с Землёй вращается и точка, и пункт: дальность не меняется.
	if rr := obs.Look(sat).RangeRate; !almostEqual(rr, 0, 1e-9) {
		t.Errorf("co-rotating RangeRate = %v, want 0", rr)
	}

	site := obs.ECI(coordTime)
	dx, dy, dz := sat.X-site.X, sat.Y-site.Y, sat.Z-site.Z
	n := math.Sqrt(dx*dx + dy*dy + dz*dz)

	receding := *sat
	receding.Vx += 2 * dx / n
	receding.Vy += 2 * dy / n
	receding.Vz += 2 * dz / n

	if rr := obs.Look(&receding).RangeRate; !almostEqual(rr, 2, 1e-9) {
		t.Errorf("receding RangeRate = %v, want 2", rr)
	}
}

func TestECEFToAER_MatchesLook(t *testing.T) {
	t.Parallel()

	obs := NewObserver(48.8566, 2.3522, 0.035)
	sat := satelliteAt(52, 10, 800, coordTime)

	look := obs.Look(sat)
	aer := ECEFToAER(ECIToECEF(sat), obs.ECEF(), obs.ToLLA())

	if !almostEqual(angleDiff(aer.AzDeg(), look.AzDeg()), 0, toleranceDegree) {
		t.Errorf("Az = %.6f°, Look Az = %.6f°", aer.AzDeg(), look.AzDeg())
	}
	if !almostEqual(aer.ElDeg(), look.ElDeg(), toleranceDegree) {
		t.Errorf("El = %.6f°, Look El = %.6f°", aer.ElDeg(), look.ElDeg())
	}
	if !almostEqual(aer.Range, look.Range, toleranceCoord) {
		t.Errorf("Range = %.6f km, Look Range = %.6f km", aer.Range, look.Range)
	}
}

func BenchmarkObserver_Look(b *testing.B) {
	obs := NewObserver(55.7558, 37.6173, 0.156)
	sat := satelliteAt(50, 40, 420, coordTime)

	b.ResetTimer()
	for range b.N {
		_ = obs.Look(sat)
	}
}
