package angle

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/seeing-things/point"
)

// Style selects a sexagesimal text layout.
type Style int

// The layouts used by LX200 style commands.
const (
	// StyleHMS is HH:MM:SS, used for right ascension and times.
	StyleHMS Style = iota

	// StyleDMS is sDD*MM:SS, used for declination.
	StyleDMS

	// StyleLatitude is sDD*MM.
	StyleLatitude

	// StyleLongitude is sDDD*MM.
	StyleLongitude
)

// degreeSign is the byte LX200 controllers send for the degree symbol.
const degreeSign = 0xDF

// Sexagesimal is a base-60 value (hours or degrees) held as a sign and a whole
// number of seconds.
type Sexagesimal struct {
	Negative bool
	Seconds  int64
}

// FromValue rounds hours or degrees to the nearest second.
func FromValue(v float64) Sexagesimal {
	s := int64(math.Round(math.Abs(v) * 3600.0))

	return Sexagesimal{Negative: v < 0 && s != 0, Seconds: s}
}

// Value returns the value in its whole unit.
func (x Sexagesimal) Value() float64 {
	v := float64(x.Seconds) / 3600.0

	if x.Negative {
		return -v
	}

	return v
}

// Parts splits the value into whole units, minutes and seconds.
func (x Sexagesimal) Parts() (whole, minutes, seconds int64) {
	return x.Seconds / 3600, x.Seconds / 60 % 60, x.Seconds % 60
}

// Format renders the value in the given layout. Layouts without a seconds
// field round to the nearest minute.
func (x Sexagesimal) Format(style Style) string {
	sign := "+"

	if x.Negative {
		sign = "-"
	}

	switch style {
	case StyleDMS:
		w, m, s := x.Parts()
		return fmt.Sprintf("%s%02d*%02d:%02d", sign, w, m, s)
	case StyleLatitude, StyleLongitude:
		total := (x.Seconds + 30) / 60
		width := 2

		if style == StyleLongitude {
			width = 3
		}

		return fmt.Sprintf("%s%0*d*%02d", sign, width, total/60, total%60)
	default:
		w, m, s := x.Parts()
		return fmt.Sprintf("%02d:%02d:%02d", w, m, s)
	}
}

func (x Sexagesimal) String() string {
	return x.Format(StyleDMS)
}

// ParseSexagesimal reads HH:MM:SS, sDD*MM:SS, sDD*MM'SS, sDDD*MM and the low
// precision HH:MM.T layout. Fields may be separated by ':', '*', '\'', the
// degree sign or the LX200 degree byte.
func ParseSexagesimal(s string) (Sexagesimal, error) {
	str := strings.TrimSpace(s)
	str = strings.ReplaceAll(str, "°", ":")

	b := []byte(str)

	for i, c := range b {
		switch c {
		case '*', '\'', degreeSign:
			b[i] = ':'
		}
	}

	str = strings.TrimSuffix(string(b), "\"")

	x := Sexagesimal{}

	if strings.HasPrefix(str, "-") || strings.HasPrefix(str, "+") {
		x.Negative = str[0] == '-'
		str = str[1:]
	}

	fields := strings.Split(str, ":")

	if len(fields) < 2 || len(fields) > 3 {
		return Sexagesimal{}, fmt.Errorf("%w: malformed sexagesimal value %q", point.ErrFraming, s)
	}

	whole, err := parseField(fields[0], math.MaxInt32)

	if err != nil {
		return Sexagesimal{}, fmt.Errorf("%w: malformed sexagesimal value %q", point.ErrFraming, s)
	}

	var minutes, seconds int64

	if len(fields) == 2 && strings.Contains(fields[1], ".") {
		parts := strings.SplitN(fields[1], ".", 2)

		if len(parts[1]) != 1 {
			return Sexagesimal{}, fmt.Errorf("%w: malformed sexagesimal value %q", point.ErrFraming, s)
		}

		minutes, err = parseField(parts[0], 59)

		if err == nil {
			seconds, err = parseField(parts[1], 9)
			seconds *= 6
		}
	} else {
		minutes, err = parseField(fields[1], 59)

		if err == nil && len(fields) == 3 {
			seconds, err = parseField(fields[2], 59)
		}
	}

	if err != nil {
		return Sexagesimal{}, fmt.Errorf("%w: malformed sexagesimal value %q", point.ErrFraming, s)
	}

	x.Seconds = whole*3600 + minutes*60 + seconds

	if x.Seconds == 0 {
		x.Negative = false
	}

	return x, nil
}

func parseField(f string, limit int64) (int64, error) {
	if f == "" {
		return 0, strconv.ErrSyntax
	}

	v, err := strconv.ParseUint(f, 10, 32)

	if err != nil {
		return 0, err
	}

	if int64(v) > limit {
		return 0, strconv.ErrRange
	}

	return int64(v), nil
}

// ParseCoordinate reads a reply that is either sexagesimal or a plain decimal
// number, as sent by controllers in double precision mode.
func ParseCoordinate(s string) (float64, error) {
	str := strings.TrimSpace(s)

	if strings.ContainsAny(str, ":*'°") || strings.IndexByte(str, degreeSign) >= 0 {
		x, err := ParseSexagesimal(str)

		if err != nil {
			return 0, err
		}

		return x.Value(), nil
	}

	v, err := strconv.ParseFloat(str, 64)

	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: malformed coordinate %q", point.ErrFraming, s)
	}

	return v, nil
}
