// Package angle converts mount positions between degrees and the fixed-point
// wire representations used by mount protocols.
//
// A position is a fraction of one revolution stored as an integer number of
// ticks. Conversion from floating point happens only at the boundary
// (FromDegrees, FromRevolutions); encoding and decoding are exact integer
// operations, so a decoded angle always encodes back to the same bytes.
package angle

import (
	"fmt"
	"math"
	"strconv"

	"github.com/seeing-things/point"
)

// Form selects how the ticks of an encoding appear on the wire.
type Form int

// The supported wire forms.
const (
	// FormHex writes ticks as upper case hexadecimal ASCII digits.
	FormHex Form = iota

	// FormBinary writes ticks as big-endian bytes.
	FormBinary
)

// Encoding describes a fixed-point representation of a fraction of a
// revolution.
type Encoding struct {
	Name   string
	Bits   uint
	Form   Form
	Signed bool
}

// The encodings spoken by supported mounts.
var (
	// Hex16 is the 16-bit representation of the legacy NexStar commands.
	Hex16 = Encoding{Name: "hex16", Bits: 16, Form: FormHex}

	// Hex32 is the 32-bit representation of the precise NexStar commands.
	Hex32 = Encoding{Name: "hex32", Bits: 32, Form: FormHex}

	// Bin24 is the 24-bit representation of motor controller positions.
	Bin24 = Encoding{Name: "bin24", Bits: 24, Form: FormBinary}

	// Bin32 is a 32-bit big-endian binary representation.
	Bin32 = Encoding{Name: "bin32", Bits: 32, Form: FormBinary}
)

// AsSigned returns the two's complement twin of the encoding. Signed
// encodings cover [-0.5, 0.5) revolutions instead of [0, 1).
func (e Encoding) AsSigned() Encoding {
	if e.Signed {
		return e
	}

	e.Signed = true
	e.Name = "s" + e.Name

	return e
}

// AsUnsigned returns the unsigned twin of the encoding.
func (e Encoding) AsUnsigned() Encoding {
	if !e.Signed {
		return e
	}

	e.Signed = false
	e.Name = e.Name[1:]

	return e
}

// Width returns the number of bytes an encoded angle occupies.
func (e Encoding) Width() int {
	if e.Form == FormHex {
		return int(e.Bits / 4)
	}

	return int(e.Bits / 8)
}

// Modulus returns the number of ticks in one revolution.
func (e Encoding) Modulus() int64 {
	return int64(1) << e.Bits
}

// Min returns the smallest representable tick value.
func (e Encoding) Min() int64 {
	if e.Signed {
		return -(e.Modulus() / 2)
	}

	return 0
}

// Max returns the largest representable tick value.
func (e Encoding) Max() int64 {
	if e.Signed {
		return e.Modulus()/2 - 1
	}

	return e.Modulus() - 1
}

func (e Encoding) String() string {
	return e.Name
}

// FromTicks returns the angle for a raw tick value.
func (e Encoding) FromTicks(ticks int64) (Angle, error) {
	if ticks < e.Min() || ticks > e.Max() {
		return Angle{}, fmt.Errorf("%w: %d ticks outside %s range [%d, %d]", point.ErrEncoding, ticks, e, e.Min(), e.Max())
	}

	return Angle{Ticks: ticks, Encoding: e}, nil
}

// FromRevolutions rounds a fraction of a revolution to the nearest tick.
// A value that rounds up to a full turn wraps to the equivalent minimum.
func (e Encoding) FromRevolutions(rev float64) (Angle, error) {
	lo, hi := 0.0, 1.0

	if e.Signed {
		lo, hi = -0.5, 0.5
	}

	if math.IsNaN(rev) || rev < lo || rev >= hi {
		return Angle{}, fmt.Errorf("%w: %v revolutions outside %s range [%v, %v)", point.ErrEncoding, rev, e, lo, hi)
	}

	ticks := int64(math.Round(rev * float64(e.Modulus())))

	if ticks > e.Max() {
		ticks -= e.Modulus()
	}

	return Angle{Ticks: ticks, Encoding: e}, nil
}

// FromDegrees is FromRevolutions for an angle in degrees.
func (e Encoding) FromDegrees(deg float64) (Angle, error) {
	return e.FromRevolutions(deg / 360.0)
}

// Encode writes the angle in this encoding.
func (e Encoding) Encode(a Angle) ([]byte, error) {
	if a.Encoding != e {
		return nil, fmt.Errorf("%w: %s angle passed to %s encoder", point.ErrEncoding, a.Encoding, e)
	}

	if a.Ticks < e.Min() || a.Ticks > e.Max() {
		return nil, fmt.Errorf("%w: %d ticks outside %s range", point.ErrEncoding, a.Ticks, e)
	}

	u := uint64(a.Ticks) & uint64(e.Modulus()-1)

	if e.Form == FormHex {
		return []byte(fmt.Sprintf("%0*X", e.Width(), u)), nil
	}

	b := make([]byte, e.Width())

	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(u)
		u >>= 8
	}

	return b, nil
}

// Decode reads an angle in this encoding. Hex digits may be of either case.
func (e Encoding) Decode(b []byte) (Angle, error) {
	if len(b) != e.Width() {
		return Angle{}, fmt.Errorf("%w: %s angle needs %d bytes, got %d", point.ErrFraming, e, e.Width(), len(b))
	}

	var u uint64

	if e.Form == FormHex {
		v, err := strconv.ParseUint(string(b), 16, int(e.Bits))

		if err != nil {
			return Angle{}, fmt.Errorf("%w: bad %s digits %q", point.ErrFraming, e, b)
		}

		u = v
	} else {
		for _, c := range b {
			u = u<<8 | uint64(c)
		}
	}

	ticks := int64(u)

	if e.Signed && ticks > e.Max() {
		ticks -= e.Modulus()
	}

	return Angle{Ticks: ticks, Encoding: e}, nil
}

// Angle is a position expressed in ticks of a specific encoding.
type Angle struct {
	Ticks    int64
	Encoding Encoding
}

// Revolutions returns the angle as a fraction of a revolution.
func (a Angle) Revolutions() float64 {
	return float64(a.Ticks) / float64(a.Encoding.Modulus())
}

// Degrees returns the angle in degrees.
func (a Angle) Degrees() float64 {
	return a.Revolutions() * 360.0
}

// Signed reinterprets the angle in the signed twin of its encoding, e.g.
// 270 degrees becomes -90 degrees.
func (a Angle) Signed() Angle {
	e := a.Encoding.AsSigned()
	t := a.Ticks

	if t > e.Max() {
		t -= e.Modulus()
	}

	return Angle{Ticks: t, Encoding: e}
}

// Unsigned reinterprets the angle in the unsigned twin of its encoding.
func (a Angle) Unsigned() Angle {
	e := a.Encoding.AsUnsigned()
	t := a.Ticks

	if t < 0 {
		t += e.Modulus()
	}

	return Angle{Ticks: t, Encoding: e}
}

func (a Angle) String() string {
	return fmt.Sprintf("%.6f deg (%s %d)", a.Degrees(), a.Encoding, a.Ticks)
}

// WrapDegrees maps any angle onto [0, 360).
func WrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360.0)

	if deg < 0 {
		deg += 360.0
	}

	if deg >= 360.0 {
		deg = 0
	}

	return deg
}

// WrapSignedDegrees maps any angle onto [-180, 180).
func WrapSignedDegrees(deg float64) float64 {
	deg = WrapDegrees(deg)

	if deg >= 180.0 {
		deg -= 360.0
	}

	return deg
}
