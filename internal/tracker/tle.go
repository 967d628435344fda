// Package tracker связывает движок norad с прикладными задачами: разбор
// элементов, выбор модели, пересчёт координат, поиск пролётов, каталог.
package tracker

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/art-injener/satprop/internal/norad"
)

// Ошибки разбора элементов.
var (
	ErrInvalidTLEFormat  = errors.New("invalid TLE format")
	ErrInvalidChecksum   = errors.New("invalid TLE checksum")
	ErrInvalidLineNumber = errors.New("invalid TLE line number")
	ErrLineTooShort      = errors.New("TLE line too short")
	ErrNoradIDMismatch   = errors.New("NORAD ID mismatch between lines")
	ErrInvalidAlpha5     = errors.New("invalid Alpha-5 NORAD ID format")
	ErrNilTLE            = errors.New("TLE is nil")
)

// TLELineLength — длина строки элементов вместе с контрольной цифрой.
const TLELineLength = 69

// TLE — двухстрочный набор средних элементов NORAD.
// Углы хранятся в градусах, как в исходной записи.
type TLE struct {
	Name           string
	NoradID        int
	Classification string
	IntlDesignator string
	Epoch          time.Time
	MeanMotionDot  float64 // ṅ/2, об/сут².
	MeanMotionDot2 float64 // n̈/6, об/сут³.
	Bstar          float64 // 1/ER.
	EphemerisType  int
	ElementSetNo   int
	Inclination    float64
	RAAN           float64
	Eccentricity   float64
	ArgOfPerigee   float64
	MeanAnomaly    float64
	MeanMotion     float64 // об/сут.
	RevNumber      int
	Line1          string
	Line2          string
}

// field — поле фиксированной ширины, колонки с 1 включительно.
type field struct {
	name     string
	from, to int
}

func (f field) slice(line string) string {
	return strings.TrimSpace(line[f.from-1 : f.to])
}

var (
	colSatNum   = field{"satellite number", 3, 7}
	colClass    = field{"classification", 8, 8}
	colIntlDes  = field{"international designator", 10, 17}
	colEpoch    = field{"epoch", 19, 32}
	colNdot     = field{"mean motion dot", 34, 43}
	colNddot    = field{"mean motion ddot", 45, 52}
	colBstar    = field{"bstar", 54, 61}
	colEphType  = field{"ephemeris type", 63, 63}
	colElSet    = field{"element set", 65, 68}
	colIncl     = field{"inclination", 9, 16}
	colRAAN     = field{"raan", 18, 25}
	colEcc      = field{"eccentricity", 27, 33}
	colArgPer   = field{"argument of perigee", 35, 42}
	colMeanAnom = field{"mean anomaly", 44, 51}
	colMeanMot  = field{"mean motion", 53, 63}
	colRevNum   = field{"revolution number", 64, 68}
)

// ParseTLE разбирает набор из двух строк или из трёх строк с именем.
func ParseTLE(lines []string) (*TLE, error) {
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 lines, got %d", ErrInvalidTLEFormat, len(lines))
	}

	first := strings.TrimSpace(lines[0])
	if first == "" {
		return nil, fmt.Errorf("%w: first line is empty", ErrInvalidTLEFormat)
	}

	switch first[0] {
	case '1':
		return parseLines("", first, strings.TrimSpace(lines[1]))
	case '2':
		return nil, fmt.Errorf("%w: expected Line1, got Line2", ErrInvalidTLEFormat)
	}

	if len(lines) < 3 {
		return nil, fmt.Errorf("%w: 3-line format requires 3 lines, got %d", ErrInvalidTLEFormat, len(lines))
	}

	return parseLines(strings.TrimPrefix(first, "0 "), strings.TrimSpace(lines[1]), strings.TrimSpace(lines[2]))
}

// ParseTLEBatch разбирает поток наборов элементов. Имя спутника
// необязательно, пустые строки игнорируются.
func ParseTLEBatch(data string) ([]*TLE, error) {
	var (
		tles []*TLE
		name string
		l1   string
	)

	for n, raw := range strings.Split(data, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
			continue
		case line[0] == '1' && len(line) >= TLELineLength:
			l1 = line
		case line[0] == '2' && len(line) >= TLELineLength:
			if l1 == "" {
				return nil, fmt.Errorf("%w: line %d: Line2 without Line1", ErrInvalidTLEFormat, n+1)
			}
			tle, err := parseLines(name, l1, line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n+1, err)
			}
			tles = append(tles, tle)
			name, l1 = "", ""
		default:
			if l1 != "" {
				return nil, fmt.Errorf("%w: line %d: expected Line2", ErrInvalidTLEFormat, n+1)
			}
			name = strings.TrimPrefix(line, "0 ")
		}
	}

	if l1 != "" {
		return nil, fmt.Errorf("%w: trailing Line1 without Line2", ErrInvalidTLEFormat)
	}

	return tles, nil
}

func parseLines(name, line1, line2 string) (*TLE, error) {
	for i, line := range []string{line1, line2} {
		num := byte('1' + i)
		if len(line) < TLELineLength {
			return nil, fmt.Errorf("%w: Line%c length %d, need %d", ErrLineTooShort, num, len(line), TLELineLength)
		}
		if line[0] != num {
			return nil, fmt.Errorf("%w: Line%c starts with %c", ErrInvalidLineNumber, num, line[0])
		}
		if !validateChecksum(line) {
			return nil, fmt.Errorf("%w: Line%c", ErrInvalidChecksum, num)
		}
	}

	tle := &TLE{Name: name, Line1: line1, Line2: line2}
	if err := tle.parseLine1(line1); err != nil {
		return nil, fmt.Errorf("parsing Line1: %w", err)
	}
	if err := tle.parseLine2(line2); err != nil {
		return nil, fmt.Errorf("parsing Line2: %w", err)
	}

	return tle, nil
}

func (tle *TLE) parseLine1(line string) error {
	var err error

	if tle.NoradID, err = parseNoradID(colSatNum.slice(line)); err != nil {
		return fmt.Errorf("%s: %w", colSatNum.name, err)
	}
	tle.Classification = colClass.slice(line)
	tle.IntlDesignator = colIntlDes.slice(line)

	if tle.Epoch, err = parseEpoch(colEpoch.slice(line)); err != nil {
		return fmt.Errorf("%s: %w", colEpoch.name, err)
	}
	if tle.MeanMotionDot, err = parseFloat(line, colNdot); err != nil {
		return err
	}
	if tle.MeanMotionDot2, err = parseExponent(colNddot.slice(line)); err != nil {
		return fmt.Errorf("%s: %w", colNddot.name, err)
	}
	if tle.Bstar, err = parseExponent(colBstar.slice(line)); err != nil {
		return fmt.Errorf("%s: %w", colBstar.name, err)
	}

	// Необязательные поля.
	tle.EphemerisType, _ = strconv.Atoi(colEphType.slice(line))
	tle.ElementSetNo, _ = strconv.Atoi(colElSet.slice(line))

	return nil
}

func (tle *TLE) parseLine2(line string) error {
	id, err := parseNoradID(colSatNum.slice(line))
	if err != nil {
		return fmt.Errorf("%s: %w", colSatNum.name, err)
	}
	if id != tle.NoradID {
		return fmt.Errorf("%w: Line1=%d, Line2=%d", ErrNoradIDMismatch, tle.NoradID, id)
	}

	targets := []struct {
		col field
		dst *float64
	}{
		{colIncl, &tle.Inclination},
		{colRAAN, &tle.RAAN},
		{colArgPer, &tle.ArgOfPerigee},
		{colMeanAnom, &tle.MeanAnomaly},
		{colMeanMot, &tle.MeanMotion},
	}
	for _, t := range targets {
		if *t.dst, err = parseFloat(line, t.col); err != nil {
			return err
		}
	}

	// Десятичная точка эксцентриситета подразумевается.
	if tle.Eccentricity, err = strconv.ParseFloat("0."+colEcc.slice(line), 64); err != nil {
		return fmt.Errorf("%s: %w", colEcc.name, err)
	}
	tle.RevNumber, _ = strconv.Atoi(colRevNum.slice(line))

	return nil
}

func parseFloat(line string, f field) (float64, error) {
	v, err := strconv.ParseFloat(f.slice(line), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", f.name, err)
	}

	return v, nil
}

// validateChecksum проверяет контрольную цифру по модулю 10: цифры
// складываются, минус считается единицей.
func validateChecksum(line string) bool {
	if len(line) < TLELineLength {
		return false
	}

	return calculateChecksum(line[:TLELineLength-1]) == int(line[TLELineLength-1]-'0')
}

func calculateChecksum(line string) int {
	sum := 0
	for _, c := range []byte(line) {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}

	return sum % 10
}

// parseNoradID понимает и пятизначный номер, и Alpha-5 (A0000..Z9999,
// буквы I и O пропускаются).
func parseNoradID(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidAlpha5)
	}

	c := s[0]
	if c < 'A' || c > 'Z' {
		id, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid NORAD ID: %w", err)
		}

		return id, nil
	}

	if c == 'I' || c == 'O' {
		return 0, fmt.Errorf("%w: invalid letter %c (I and O not allowed)", ErrInvalidAlpha5, c)
	}
	if len(s) < 5 {
		return 0, fmt.Errorf("%w: too short", ErrInvalidAlpha5)
	}

	prefix := int(c-'A') + 10
	if c > 'I' {
		prefix--
	}
	if c > 'O' {
		prefix--
	}

	rest, err := strconv.Atoi(s[1:5])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAlpha5, err)
	}

	return prefix*10000 + rest, nil
}

// parseExponent разбирает запись вида ±NNNNN±E, означающую ±0.NNNNN·10^±E.
func parseExponent(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}

	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}

	exp := 0
	if i := strings.LastIndexAny(s, "+-"); i > 0 {
		var err error
		if exp, err = strconv.Atoi(s[i:]); err != nil {
			return 0, err
		}
		s = s[:i]
	}

	mantissa, err := strconv.ParseFloat("0."+strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}

	return sign * mantissa * math.Pow10(exp), nil
}

// parseEpoch разбирает эпоху YYDDD.DDDDDDDD; годы 57..99 относятся к XX веку.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 7 {
		return time.Time{}, fmt.Errorf("epoch string too short: %s", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing year: %w", err)
	}
	if year < 57 {
		year += 2000
	} else {
		year += 1900
	}

	day, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing day of year: %w", err)
	}

	return norad.TimeFromMJD(norad.MJD(year, 1, day)), nil
}

// EpochMJD возвращает эпоху в сутках от 1950-01-01 00:00 UTC. Эпоха
// пересчитывается из исходной строки, чтобы не терять точность time.Time.
func (tle *TLE) EpochMJD() float64 {
	if len(tle.Line1) >= TLELineLength {
		s := colEpoch.slice(tle.Line1)
		year, errY := strconv.Atoi(s[:2])
		day, errD := strconv.ParseFloat(s[2:], 64)
		if errY == nil && errD == nil {
			if year < 57 {
				year += 2000
			} else {
				year += 1900
			}

			return norad.MJD(year, 1, day)
		}
	}

	return norad.MJDFromTime(tle.Epoch)
}

// Elements переводит запись в элементы движка: углы в радианах, эпоха в MJD.
func (tle *TLE) Elements() norad.Elements {
	return norad.Elements{
		Epoch:          tle.EpochMJD(),
		Inclination:    tle.Inclination * Deg2Rad,
		RAAN:           tle.RAAN * Deg2Rad,
		ArgPerigee:     tle.ArgOfPerigee * Deg2Rad,
		MeanAnomaly:    tle.MeanAnomaly * Deg2Rad,
		Eccentricity:   tle.Eccentricity,
		MeanMotion:     tle.MeanMotion,
		MeanMotionDot:  tle.MeanMotionDot,
		MeanMotionDDot: tle.MeanMotionDot2,
		BStar:          tle.Bstar,
	}
}

// OrbitalPeriod возвращает период по среднему движению из записи, мин.
func (tle *TLE) OrbitalPeriod() float64 {
	return tle.Elements().Period()
}

// Orbit возвращает производные константы для модели гравитации g.
func (tle *TLE) Orbit(g norad.Gravity) (*norad.Derived, error) {
	return norad.Derive(tle.Elements(), g)
}

// Perigee возвращает высоту перигея над экватором, км.
func (tle *TLE) Perigee() float64 {
	d, err := tle.Orbit(norad.GravityWGS72)
	if err != nil {
		return 0
	}

	return d.PerigeeKm()
}

// Apogee возвращает высоту апогея над экватором, км.
func (tle *TLE) Apogee() float64 {
	d, err := tle.Orbit(norad.GravityWGS72)
	if err != nil {
		return 0
	}
	g := d.Gravity()

	return (d.SemiMajorAxis()*(1+tle.Eccentricity) - 1) * g.RadiusKm
}

// Age возвращает возраст элементов относительно now.
func (tle *TLE) Age(now time.Time) time.Duration {
	return now.Sub(tle.Epoch)
}

// IsStale сообщает, старше ли элементы maxAgeDays суток.
func (tle *TLE) IsStale(now time.Time, maxAgeDays float64) bool {
	return tle.Age(now).Hours()/24 > maxAgeDays
}

func (tle *TLE) String() string {
	if tle.Name != "" {
		return tle.Name + "\n" + tle.Line1 + "\n" + tle.Line2
	}

	return tle.Line1 + "\n" + tle.Line2
}
