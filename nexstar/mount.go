package nexstar

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/seeing-things/point"
	"github.com/seeing-things/point/angle"
)

// Precision selects between the legacy and precise position commands.
type Precision int

// The position precisions.
const (
	Legacy Precision = iota
	Precise
)

// TrackingMode is the tracking mode of the mount.
type TrackingMode byte

// The tracking modes.
const (
	TrackingOff TrackingMode = iota
	TrackingAltAz
	TrackingEquatorialNorth
	TrackingEquatorialSouth
)

// Device is the address of a device on the AUX bus, used by pass through
// commands.
type Device byte

// Motor controllers and other AUX devices.
const (
	DeviceAzmRA  Device = 16
	DeviceAltDec Device = 17
	DeviceGPS    Device = 176
	DeviceRTC    Device = 178
)

// Motor controller message identifiers.
const (
	mcGetPosition   = 0x01
	mcGotoFast      = 0x02
	mcSetPosRate    = 0x06
	mcSetNegRate    = 0x07
	mcMovePositive  = 0x24
	mcMoveNegative  = 0x25
	mcGetVersion    = 0xFE
	maxVariableRate = 0xFFFF
	maxFixedRate    = 9
)

// Location is a site position in degrees, north and east positive.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Mount is a NexStar hand controller.
type Mount struct {
	session *point.Session
}

// NewMount returns a mount that sends commands over session.
func NewMount(session *point.Session) *Mount {
	return &Mount{session: session}
}

// Session returns the session of the mount.
func (m *Mount) Session() *point.Session {
	return m.session
}

// Close the session of the mount.
func (m *Mount) Close() error {
	return m.session.Close()
}

func (m *Mount) send(op Op, params []byte) ([]byte, error) {
	cmd, err := NewCommand(op, params)

	if err != nil {
		return nil, err
	}

	r, err := m.session.Send(cmd)

	if err != nil {
		return nil, err
	}

	return r.Payload, nil
}

func pick(p Precision, legacy, precise Op) Op {
	if p == Precise {
		return precise
	}

	return legacy
}

func (m *Mount) getPosition(op Op) (angle.Angle, angle.Angle, error) {
	payload, err := m.send(op, nil)

	if err != nil {
		return angle.Angle{}, angle.Angle{}, err
	}

	enc, _ := Encoding(op)
	parts := bytes.Split(payload, []byte{','})

	if len(parts) != 2 {
		return angle.Angle{}, angle.Angle{}, fmt.Errorf("%w: position %q is not a pair", point.ErrFraming, payload)
	}

	first, err := enc.Decode(parts[0])

	if err != nil {
		return angle.Angle{}, angle.Angle{}, err
	}

	second, err := enc.Decode(parts[1])

	if err != nil {
		return angle.Angle{}, angle.Angle{}, err
	}

	return first, second, nil
}

func (m *Mount) sendPosition(op Op, first, second float64) error {
	enc, _ := Encoding(op)

	a, err := enc.FromDegrees(angle.WrapDegrees(first))

	if err != nil {
		return err
	}

	b, err := enc.FromDegrees(angle.WrapDegrees(second))

	if err != nil {
		return err
	}

	x, _ := enc.Encode(a)
	y, _ := enc.Encode(b)

	params := append(append(x, ','), y...)

	_, err = m.send(op, params)

	return err
}

// GetRaDec returns right ascension and declination in degrees. Declination is
// in [-180, 180).
func (m *Mount) GetRaDec(p Precision) (float64, float64, error) {
	ra, dec, err := m.getPosition(pick(p, OpGetRaDec, OpGetRaDecPrecise))

	if err != nil {
		return 0, 0, err
	}

	return ra.Degrees(), dec.Signed().Degrees(), nil
}

// GetAzAlt returns azimuth and altitude in degrees. Altitude is in
// [-180, 180).
func (m *Mount) GetAzAlt(p Precision) (float64, float64, error) {
	az, alt, err := m.getPosition(pick(p, OpGetAzAlt, OpGetAzAltPrecise))

	if err != nil {
		return 0, 0, err
	}

	return az.Degrees(), alt.Signed().Degrees(), nil
}

// GotoRaDec slews to the given right ascension and declination in degrees.
func (m *Mount) GotoRaDec(ra, dec float64, p Precision) error {
	return m.sendPosition(pick(p, OpGotoRaDec, OpGotoRaDecPrecise), ra, dec)
}

// GotoAzAlt slews to the given azimuth and altitude in degrees.
func (m *Mount) GotoAzAlt(az, alt float64, p Precision) error {
	return m.sendPosition(pick(p, OpGotoAzAlt, OpGotoAzAltPrecise), az, alt)
}

// Sync tells the mount it is pointing at the given right ascension and
// declination.
func (m *Mount) Sync(ra, dec float64, p Precision) error {
	return m.sendPosition(pick(p, OpSync, OpSyncPrecise), ra, dec)
}

// GetTrackingMode returns the current tracking mode.
func (m *Mount) GetTrackingMode() (TrackingMode, error) {
	payload, err := m.send(OpGetTrackingMode, nil)

	if err != nil {
		return 0, err
	}

	return TrackingMode(payload[0]), nil
}

// SetTrackingMode changes the tracking mode.
func (m *Mount) SetTrackingMode(mode TrackingMode) error {
	if mode > TrackingEquatorialSouth {
		return fmt.Errorf("%w: tracking mode %d", point.ErrEncoding, mode)
	}

	_, err := m.send(OpSetTrackingMode, []byte{byte(mode)})

	return err
}

func (m *Mount) passThrough(dev Device, msg byte, data []byte, replyLen int) ([]byte, error) {
	params := []byte{byte(len(data) + 1), byte(dev), msg, 0, 0, 0, byte(replyLen)}
	copy(params[3:6], data)

	return m.send(OpPassThrough, params)
}

// SlewVariable moves an axis at rate arcseconds per second. The sign of rate
// selects the direction; zero stops the axis.
func (m *Mount) SlewVariable(dev Device, rate float64) error {
	msg := byte(mcSetPosRate)

	if rate < 0 {
		msg = mcSetNegRate
	}

	quarters := math.Round(math.Abs(rate) * 4)

	if math.IsNaN(quarters) || quarters > maxVariableRate {
		return fmt.Errorf("%w: slew rate %v arcsec/s", point.ErrEncoding, rate)
	}

	q := uint16(quarters)

	_, err := m.passThrough(dev, msg, []byte{byte(q >> 8), byte(q)}, 0)

	return err
}

// SlewFixed moves an axis at one of the hand controller rates, -9 to 9.
func (m *Mount) SlewFixed(dev Device, rate int) error {
	if rate < -maxFixedRate || rate > maxFixedRate {
		return fmt.Errorf("%w: fixed slew rate %d", point.ErrEncoding, rate)
	}

	msg := byte(mcMovePositive)

	if rate < 0 {
		msg = mcMoveNegative
		rate = -rate
	}

	_, err := m.passThrough(dev, msg, []byte{byte(rate)}, 0)

	return err
}

// GetAxisPosition reads the position of a motor controller.
func (m *Mount) GetAxisPosition(dev Device) (angle.Angle, error) {
	payload, err := m.passThrough(dev, mcGetPosition, nil, 3)

	if err != nil {
		return angle.Angle{}, err
	}

	return angle.Bin24.Decode(payload)
}

// GotoAxisFast slews a motor controller to a position in degrees.
func (m *Mount) GotoAxisFast(dev Device, deg float64) error {
	a, err := angle.Bin24.FromDegrees(angle.WrapDegrees(deg))

	if err != nil {
		return err
	}

	data, err := angle.Bin24.Encode(a)

	if err != nil {
		return err
	}

	_, err = m.passThrough(dev, mcGotoFast, data, 0)

	return err
}

// GetDeviceVersion returns the firmware version of an AUX device.
func (m *Mount) GetDeviceVersion(dev Device) (int, int, error) {
	payload, err := m.passThrough(dev, mcGetVersion, nil, 2)

	if err != nil {
		return 0, 0, err
	}

	return int(payload[0]), int(payload[1]), nil
}

// GetLocation returns the site location.
func (m *Mount) GetLocation() (Location, error) {
	payload, err := m.send(OpGetLocation, nil)

	if err != nil {
		return Location{}, err
	}

	lat, err := decodeDMS(payload[0:4], 90)

	if err != nil {
		return Location{}, err
	}

	lon, err := decodeDMS(payload[4:8], 180)

	if err != nil {
		return Location{}, err
	}

	return Location{Latitude: lat, Longitude: lon}, nil
}

// SetLocation changes the site location.
func (m *Mount) SetLocation(loc Location) error {
	lat, err := encodeDMS(loc.Latitude, 90)

	if err != nil {
		return err
	}

	lon, err := encodeDMS(loc.Longitude, 180)

	if err != nil {
		return err
	}

	_, err = m.send(OpSetLocation, append(lat, lon...))

	return err
}

// encodeDMS writes degrees, minutes, seconds and a hemisphere byte (1 for
// south or west).
func encodeDMS(deg float64, limit int64) ([]byte, error) {
	x := angle.FromValue(deg)
	d, mi, s := x.Parts()

	if math.IsNaN(deg) || x.Seconds > limit*3600 {
		return nil, fmt.Errorf("%w: %v degrees outside [-%d, %d]", point.ErrEncoding, deg, limit, limit)
	}

	hemisphere := byte(0)

	if x.Negative {
		hemisphere = 1
	}

	return []byte{byte(d), byte(mi), byte(s), hemisphere}, nil
}

func decodeDMS(b []byte, limit int64) (float64, error) {
	if int64(b[0]) > limit || b[1] > 59 || b[2] > 59 || b[3] > 1 {
		return 0, fmt.Errorf("%w: bad location bytes % X", point.ErrFraming, b)
	}

	x := angle.Sexagesimal{
		Negative: b[3] == 1,
		Seconds:  int64(b[0])*3600 + int64(b[1])*60 + int64(b[2]),
	}

	return x.Value(), nil
}

// GetTime returns the time of the hand controller, in its own time zone.
func (m *Mount) GetTime() (time.Time, error) {
	payload, err := m.send(OpGetTime, nil)

	if err != nil {
		return time.Time{}, err
	}

	hour, minute, second := int(payload[0]), int(payload[1]), int(payload[2])
	month, day, year := int(payload[3]), int(payload[4]), 2000+int(payload[5])
	offset := int(int8(payload[6])) + int(payload[7])

	if hour > 23 || minute > 59 || second > 59 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: bad time bytes % X", point.ErrFraming, payload)
	}

	zone := time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*3600)

	return time.Date(year, time.Month(month), day, hour, minute, second, 0, zone), nil
}

// SetTime sets the hand controller clock. The time is sent in UTC.
func (m *Mount) SetTime(t time.Time) error {
	t = t.UTC()

	if t.Year() < 2000 || t.Year() > 2255 {
		return fmt.Errorf("%w: year %d", point.ErrEncoding, t.Year())
	}

	params := []byte{
		byte(t.Hour()),
		byte(t.Minute()),
		byte(t.Second()),
		byte(t.Month()),
		byte(t.Day()),
		byte(t.Year() - 2000),
		0,
		0,
	}

	_, err := m.send(OpSetTime, params)

	return err
}

// GetVersion returns the hand controller firmware version.
func (m *Mount) GetVersion() (int, int, error) {
	payload, err := m.send(OpGetVersion, nil)

	if err != nil {
		return 0, 0, err
	}

	return int(payload[0]), int(payload[1]), nil
}

// GetModel returns the mount model number.
func (m *Mount) GetModel() (int, error) {
	payload, err := m.send(OpGetModel, nil)

	if err != nil {
		return 0, err
	}

	return int(payload[0]), nil
}

// Echo sends a byte and returns the byte the hand controller sent back.
func (m *Mount) Echo(c byte) (byte, error) {
	payload, err := m.send(OpEcho, []byte{c})

	if err != nil {
		return 0, err
	}

	return payload[0], nil
}

// AlignmentComplete reports whether the mount has been aligned.
func (m *Mount) AlignmentComplete() (bool, error) {
	payload, err := m.send(OpAlignmentComplete, nil)

	if err != nil {
		return false, err
	}

	return payload[0] == 1, nil
}

// GotoInProgress reports whether a goto is still running.
func (m *Mount) GotoInProgress() (bool, error) {
	payload, err := m.send(OpGotoInProgress, nil)

	if err != nil {
		return false, err
	}

	switch payload[0] {
	case '0':
		return false, nil
	case '1':
		return true, nil
	default:
		return false, fmt.Errorf("%w: goto state %q", point.ErrFraming, payload)
	}
}

// CancelGoto aborts a running goto.
func (m *Mount) CancelGoto() error {
	_, err := m.send(OpCancelGoto, nil)

	return err
}
