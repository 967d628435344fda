package norad

import (
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// jdMJD50 — юлианская дата начала отсчёта MJD (1950-01-01 00:00 UTC).
const jdMJD50 = 2433282.5

// MJD возвращает число суток от 1950-01-01 00:00 UTC для календарной даты
// григорианского календаря. day может быть дробным и может превышать длину
// месяца: MJD(2024, 1, 275.5) — это 275.5-й день 2024 года.
func MJD(year, month int, day float64) float64 {
	return julian.CalendarGregorianToJD(year, month, day) - jdMJD50
}

// CalendarFromMJD — обратное преобразование к MJD.
func CalendarFromMJD(mjd float64) (year, month int, day float64) {
	return julian.JDToCalendar(mjd + jdMJD50)
}

// MJDFromTime переводит момент времени в MJD (UTC).
func MJDFromTime(t time.Time) float64 {
	return julian.TimeToJD(t.UTC()) - jdMJD50
}

// TimeFromMJD переводит MJD в time.Time (UTC).
func TimeFromMJD(mjd float64) time.Time {
	return julian.JDToTime(mjd + jdMJD50).UTC()
}

// ds50 — сутки от 1950 Jan 0.0, шкала THETAG из Report #3.
func ds50(mjd float64) float64 { return mjd + 1.0 }

// ThetaG возвращает гринвичское среднее звёздное время (рад, [0, 2π))
// на момент mjd.
func ThetaG(mjd float64) float64 {
	return Fmod2p(1.72944494 + 6.3003880987*ds50(mjd))
}
