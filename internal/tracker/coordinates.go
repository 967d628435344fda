package tracker

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Эллипсоид WGS-84 и вращение Земли.
const (
	WGS84A     = 6378.137                // Экваториальный радиус, км.
	WGS84F     = 1.0 / 298.257223563     // Сжатие.
	WGS84B     = WGS84A * (1.0 - WGS84F) // Полярный радиус, км.
	WGS84E2    = 2*WGS84F - WGS84F*WGS84F
	OmegaEarth = 7.292115e-5 // рад/с.

	Deg2Rad = math.Pi / 180.0
	Rad2Deg = 180.0 / math.Pi
)

// ECEFPosition — положение в гринвичской системе, км.
type ECEFPosition struct {
	X, Y, Z float64
	Time    time.Time
}

func (p *ECEFPosition) vec() []float64 { return []float64{p.X, p.Y, p.Z} }

// LLA — геодезические координаты: широта и долгота в радианах, высота в км.
type LLA struct {
	Lat float64
	Lon float64
	Alt float64
}

// Observer — пункт наблюдения: широта и долгота в градусах, высота в км.
type Observer struct {
	Lat float64
	Lon float64
	Alt float64
}

// Observation — топоцентрические координаты спутника.
type Observation struct {
	Time      time.Time
	Az        float64 // Азимут от севера по часовой, рад.
	El        float64 // Угол места, рад.
	Range     float64 // км.
	RangeRate float64 // км/с, положительная при удалении.
	RA        float64 // Топоцентрическое прямое восхождение, рад [0, 2π).
	Dec       float64 // Топоцентрическое склонение, рад.
}

// rotZ — матрица поворота системы координат на угол theta вокруг оси Z.
func rotZ(theta float64) *mat.Dense {
	s, c := math.Sincos(theta)

	return mat.NewDense(3, 3, []float64{
		c, s, 0,
		-s, c, 0,
		0, 0, 1,
	})
}

func rotate(r *mat.Dense, x, y, z float64) (float64, float64, float64) {
	var out mat.VecDense
	out.MulVec(r, mat.NewVecDense(3, []float64{x, y, z}))

	return out.AtVec(0), out.AtVec(1), out.AtVec(2)
}

// ECIToECEF поворачивает положение из TEME на гринвичское звёздное время.
func ECIToECEF(eci *ECIPosition) *ECEFPosition {
	if eci == nil {
		return nil
	}

	x, y, z := rotate(rotZ(GMST(eci.Time)), eci.X, eci.Y, eci.Z)

	return &ECEFPosition{X: x, Y: y, Z: z, Time: eci.Time}
}

// ECEFToECI — обратный поворот к ECIToECEF. Скорость вращения Земли
// учитывается: неподвижная точка получает скорость ω×r.
func ECEFToECI(ecef *ECEFPosition) *ECIPosition {
	if ecef == nil {
		return nil
	}

	x, y, z := rotate(rotZ(-GMST(ecef.Time)), ecef.X, ecef.Y, ecef.Z)

	return &ECIPosition{
		X: x, Y: y, Z: z,
		Vx: -OmegaEarth * y, Vy: OmegaEarth * x,
		Time: ecef.Time,
	}
}

// LLAToECEF переводит геодезические координаты в ECEF.
func LLAToECEF(lla *LLA) *ECEFPosition {
	if lla == nil {
		return nil
	}

	sinLat, cosLat := math.Sincos(lla.Lat)
	sinLon, cosLon := math.Sincos(lla.Lon)
	n := WGS84A / math.Sqrt(1.0-WGS84E2*sinLat*sinLat)

	return &ECEFPosition{
		X: (n + lla.Alt) * cosLat * cosLon,
		Y: (n + lla.Alt) * cosLat * sinLon,
		Z: (n*(1.0-WGS84E2) + lla.Alt) * sinLat,
	}
}

// ECEFToLLA переводит ECEF в геодезические координаты итерациями по
// широте до сходимости 1e-12 рад.
func ECEFToLLA(ecef *ECEFPosition) *LLA {
	if ecef == nil {
		return nil
	}

	p := math.Hypot(ecef.X, ecef.Y)
	lat := math.Atan2(ecef.Z, p*(1.0-WGS84E2))

	var n float64
	for range 10 {
		sinLat := math.Sin(lat)
		n = WGS84A / math.Sqrt(1.0-WGS84E2*sinLat*sinLat)

		next := math.Atan2(ecef.Z+WGS84E2*n*sinLat, p)
		done := math.Abs(next-lat) < 1e-12
		lat = next
		if done {
			break
		}
	}

	sinLat, cosLat := math.Sincos(lat)
	n = WGS84A / math.Sqrt(1.0-WGS84E2*sinLat*sinLat)

	alt := p/cosLat - n
	if math.Abs(cosLat) < 1e-10 {
		alt = math.Abs(ecef.Z)/math.Abs(sinLat) - n*(1.0-WGS84E2)
	}

	return &LLA{Lat: lat, Lon: math.Atan2(ecef.Y, ecef.X), Alt: alt}
}

// NewLLAFromDegrees создаёт LLA из градусов.
func NewLLAFromDegrees(latDeg, lonDeg, altKm float64) *LLA {
	return &LLA{Lat: latDeg * Deg2Rad, Lon: lonDeg * Deg2Rad, Alt: altKm}
}

func (lla *LLA) LatDeg() float64 { return lla.Lat * Rad2Deg }

func (lla *LLA) LonDeg() float64 { return lla.Lon * Rad2Deg }

// NewObserver создаёт пункт наблюдения по координатам в градусах.
func NewObserver(latDeg, lonDeg, altKm float64) *Observer {
	return &Observer{Lat: latDeg, Lon: lonDeg, Alt: altKm}
}

// ToLLA возвращает координаты пункта в радианах.
func (obs *Observer) ToLLA() *LLA {
	if obs == nil {
		return nil
	}

	return NewLLAFromDegrees(obs.Lat, obs.Lon, obs.Alt)
}

// ECEF возвращает положение пункта в ECEF.
func (obs *Observer) ECEF() *ECEFPosition {
	return LLAToECEF(obs.ToLLA())
}

// ECI возвращает положение и скорость пункта в TEME на момент t.
func (obs *Observer) ECI(t time.Time) *ECIPosition {
	ecef := obs.ECEF()
	ecef.Time = t

	return ECEFToECI(ecef)
}

// Look вычисляет топоцентрические координаты спутника с положением eci.
func (obs *Observer) Look(eci *ECIPosition) *Observation {
	if obs == nil || eci == nil {
		return nil
	}

	site := obs.ECI(eci.Time)

	rho := make([]float64, 3)
	floats.SubTo(rho, []float64{eci.X, eci.Y, eci.Z}, []float64{site.X, site.Y, site.Z})
	rhoDot := make([]float64, 3)
	floats.SubTo(rhoDot, []float64{eci.Vx, eci.Vy, eci.Vz}, []float64{site.Vx, site.Vy, site.Vz})

	rng := floats.Norm(rho, 2)

	// Поворот в топоцентрическую систему SEZ: сначала на местное звёздное
	// время, затем на кошироту.
	lla := obs.ToLLA()
	sinLat, cosLat := math.Sincos(lla.Lat)
	x, y, z := rotate(rotZ(GMST(eci.Time)+lla.Lon), rho[0], rho[1], rho[2])
	south := sinLat*x - cosLat*z
	east := y
	up := cosLat*x + sinLat*z

	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	ra := math.Atan2(rho[1], rho[0])
	if ra < 0 {
		ra += 2 * math.Pi
	}

	return &Observation{
		Time:      eci.Time,
		Az:        az,
		El:        asinRatio(up, rng),
		Range:     rng,
		RangeRate: floats.Dot(rho, rhoDot) / rng,
		RA:        ra,
		Dec:       asinRatio(rho[2], rng),
	}
}

// ECEFToAER вычисляет азимут, угол места и дальность без учёта скоростей.
func ECEFToAER(sat, site *ECEFPosition, siteLLA *LLA) *Observation {
	if sat == nil || site == nil || siteLLA == nil {
		return nil
	}

	d := make([]float64, 3)
	floats.SubTo(d, sat.vec(), site.vec())
	rng := floats.Norm(d, 2)

	sinLat, cosLat := math.Sincos(siteLLA.Lat)
	x, y, z := rotate(rotZ(siteLLA.Lon), d[0], d[1], d[2])
	north := -sinLat*x + cosLat*z
	up := cosLat*x + sinLat*z

	az := math.Atan2(y, north)
	if az < 0 {
		az += 2 * math.Pi
	}

	return &Observation{Time: sat.Time, Az: az, El: asinRatio(up, rng), Range: rng}
}

// asinRatio возвращает asin(num/den); отношение ограничено [-1, 1], так
// как в зените округление даёт |num| > den.
func asinRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}

	return math.Asin(math.Max(-1, math.Min(1, num/den)))
}

func (o *Observation) AzDeg() float64 { return o.Az * Rad2Deg }

func (o *Observation) ElDeg() float64 { return o.El * Rad2Deg }

func (o *Observation) RADeg() float64 { return o.RA * Rad2Deg }

func (o *Observation) DecDeg() float64 { return o.Dec * Rad2Deg }
