package gemini

import (
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"

	"github.com/seeing-things/point"
	"github.com/seeing-things/point/angle"
)

// Axis is a mount axis.
type Axis int

// The mount axes.
const (
	AxisRA Axis = iota
	AxisDec
)

func (a Axis) String() string {
	if a == AxisDec {
		return "dec"
	}

	return "ra"
}

// Servo constants that relate divisors to slew rates.
const (
	servoClock      = 12e6
	stepsPerDegree  = 6400.0
	secondsPerDay   = 24 * 3600
	maxDivisor      = math.MaxInt32
	startStopMoving = "0"
	startStopHalted = "1"
	maxStoredSite   = 3
)

// Mount is a Gemini 2 controller. A Mount is not safe for concurrent use.
type Mount struct {
	session *point.Session

	// Last divisor commanded by Slew, per axis. known is false until the
	// first Slew and after anything else touches the axis.
	divisors [2]int
	known    [2]bool
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

func (m *Mount) send(cmd point.Command) (string, error) {
	r, err := m.session.Send(cmd)

	if err != nil {
		return "", err
	}

	return string(r.Payload), nil
}

func (m *Mount) coordinate(mnemonic string) (float64, error) {
	s, err := m.send(LX200(mnemonic, ""))

	if err != nil {
		return 0, err
	}

	return angle.ParseCoordinate(s)
}

// StartupCheck returns the startup state character of the controller.
func (m *Mount) StartupCheck() (string, error) {
	return m.send(StartupCheck())
}

// SelectStartupMode starts a controller that is waiting for a startup mode.
func (m *Mount) SelectStartupMode(mode StartupMode) error {
	cmd, err := SelectStartupMode(mode)

	if err != nil {
		return err
	}

	_, err = m.send(cmd)

	return err
}

// SyncToObject makes the selected object the current position. It returns
// the message of the controller.
func (m *Mount) SyncToObject() (string, error) {
	return m.send(LX200("CM", ""))
}

// AlignToObject adds the selected object to the pointing model. It returns
// the message of the controller.
func (m *Mount) AlignToObject() (string, error) {
	return m.send(LX200("Cm", ""))
}

// Echo sends a character and returns the character sent back.
func (m *Mount) Echo(c byte) (byte, error) {
	s, err := m.send(LX200("CE", string([]byte{c})))

	if err != nil {
		return 0, err
	}

	if len(s) != 1 {
		return 0, fmt.Errorf("%w: echo returned %q", point.ErrFraming, s)
	}

	return s[0], nil
}

// GetRA returns the apparent right ascension in hours.
func (m *Mount) GetRA() (float64, error) {
	return m.coordinate("GR")
}

// GetDec returns the apparent declination in degrees.
func (m *Mount) GetDec() (float64, error) {
	return m.coordinate("GD")
}

// GetAltitude returns the altitude in degrees.
func (m *Mount) GetAltitude() (float64, error) {
	return m.coordinate("GA")
}

// GetAzimuth returns the azimuth in degrees.
func (m *Mount) GetAzimuth() (float64, error) {
	return m.coordinate("GZ")
}

// GetHourAngle returns the hour angle.
func (m *Mount) GetHourAngle() (float64, error) {
	return m.coordinate("GH")
}

// GetSiderealTime returns the local sidereal time in hours.
func (m *Mount) GetSiderealTime() (float64, error) {
	return m.coordinate("GS")
}

// GetMeridianSide returns "E" or "W".
func (m *Mount) GetMeridianSide() (string, error) {
	return m.send(LX200("Gm", ""))
}

// GetPrecision returns the coordinate precision, e.g. "DBL  PRECISION".
func (m *Mount) GetPrecision() (string, error) {
	return m.send(LX200("P", ""))
}

// TogglePrecision switches between high and low precision.
func (m *Mount) TogglePrecision() error {
	_, err := m.send(LX200("U", ""))

	return err
}

// SetDoublePrecision makes the controller report coordinates as decimals.
func (m *Mount) SetDoublePrecision() error {
	_, err := m.send(LX200("u", ""))

	return err
}

// SetObjectRA selects the right ascension, in hours, of the next goto.
func (m *Mount) SetObjectRA(hours float64) error {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return fmt.Errorf("%w: right ascension %v", point.ErrEncoding, hours)
	}

	x := angle.FromValue(math.Mod(math.Mod(hours, 24)+24, 24))
	x.Seconds %= secondsPerDay

	_, err := m.send(LX200("Sr", x.Format(angle.StyleHMS)))

	return err
}

// SetObjectDec selects the declination, in degrees, of the next goto.
func (m *Mount) SetObjectDec(deg float64) error {
	if math.IsNaN(deg) || deg < -90 || deg > 90 {
		return fmt.Errorf("%w: declination %v", point.ErrEncoding, deg)
	}

	_, err := m.send(LX200("Sd", angle.FromValue(deg).Format(angle.StyleDMS)))

	return err
}

// SetObjectName names the object of the next goto.
func (m *Mount) SetObjectName(name string) error {
	_, err := m.send(LX200("ON", name))

	return err
}

// SetObject selects the equatorial position and name of the next goto.
func (m *Mount) SetObject(hours, deg float64, name string) error {
	err := m.SetObjectRA(hours)

	if err != nil {
		return err
	}

	err = m.SetObjectDec(deg)

	if err != nil {
		return err
	}

	if name == "" {
		return nil
	}

	return m.SetObjectName(name)
}

// SetSiteLongitude sets the site longitude in degrees, in the sign
// convention of the controller.
func (m *Mount) SetSiteLongitude(deg float64) error {
	if math.IsNaN(deg) || deg < -180 || deg > 180 {
		return fmt.Errorf("%w: longitude %v", point.ErrEncoding, deg)
	}

	_, err := m.send(LX200("Sg", angle.FromValue(deg).Format(angle.StyleLongitude)))

	return err
}

// SetSiteLatitude sets the site latitude in degrees.
func (m *Mount) SetSiteLatitude(deg float64) error {
	if math.IsNaN(deg) || deg < -90 || deg > 90 {
		return fmt.Errorf("%w: latitude %v", point.ErrEncoding, deg)
	}

	_, err := m.send(LX200("St", angle.FromValue(deg).Format(angle.StyleLatitude)))

	return err
}

// SetStoredSite selects one of the sites stored in the controller, 0 to 3.
func (m *Mount) SetStoredSite(site int) error {
	if site < 0 || site > maxStoredSite {
		return fmt.Errorf("%w: stored site %d", point.ErrEncoding, site)
	}

	_, err := m.send(LX200("W", strconv.Itoa(site)))

	return err
}

// GetStoredSite returns the selected stored site.
func (m *Mount) GetStoredSite() (int, error) {
	s, err := m.send(LX200("W?", ""))

	if err != nil {
		return 0, err
	}

	site, err := strconv.Atoi(s)

	if err != nil || site < 0 || site > maxStoredSite {
		return 0, fmt.Errorf("%w: stored site %q", point.ErrFraming, s)
	}

	return site, nil
}

// GotoObject slews to the selected object. A refusal is returned as a
// *point.ProtocolError carrying the reason.
func (m *Mount) GotoObject() error {
	_, err := m.send(LX200("MS", ""))

	return err
}

// StopMotion stops all motion except tracking.
func (m *Mount) StopMotion() error {
	_, err := m.send(LX200("Q", ""))

	return err
}

// SetDivisor sets the servo divisor of an axis. The sign selects the
// direction.
func (m *Mount) SetDivisor(axis Axis, div int) error {
	err := m.forget(axis)

	if err != nil {
		return err
	}

	return m.setDivisor(axis, div)
}

// SetMoving starts or halts an axis.
func (m *Mount) SetMoving(axis Axis, moving bool) error {
	err := m.forget(axis)

	if err != nil {
		return err
	}

	return m.setMoving(axis, moving)
}

func (m *Mount) forget(axis Axis) error {
	if axis != AxisRA && axis != AxisDec {
		return fmt.Errorf("%w: axis %d", point.ErrEncoding, int(axis))
	}

	m.known[axis] = false

	return nil
}

func (m *Mount) setDivisor(axis Axis, div int) error {
	id := NativeRADivisor

	if axis == AxisDec {
		id = NativeDecDivisor
	}

	_, err := m.send(NativeSet(id, strconv.Itoa(div)))

	return err
}

func (m *Mount) setMoving(axis Axis, moving bool) error {
	id := NativeRAStartStop

	if axis == AxisDec {
		id = NativeDecStartStop
	}

	state := startStopHalted

	if moving {
		state = startStopMoving
	}

	_, err := m.send(NativeSet(id, state))

	return err
}

// GetPECStatus returns the periodic error correction status bits.
func (m *Mount) GetPECStatus() (int, error) {
	s, err := m.send(NativeGet(NativePECStatus, ""))

	if err != nil {
		return 0, err
	}

	status, err := strconv.Atoi(strings.TrimSpace(s))

	if err != nil {
		return 0, fmt.Errorf("%w: PEC status %q", point.ErrFraming, s)
	}

	return status, nil
}

// SetPECStatus changes the periodic error correction status bits.
func (m *Mount) SetPECStatus(status int) error {
	_, err := m.send(NativeSet(NativePECStatus, strconv.Itoa(status)))

	return err
}

// GetPECBootPlayback reports whether PEC playback starts at power up.
func (m *Mount) GetPECBootPlayback() (bool, error) {
	s, err := m.send(NativeGet(NativePECBoot, ""))

	if err != nil {
		return false, err
	}

	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}

	return false, fmt.Errorf("%w: PEC boot playback %q", point.ErrFraming, s)
}

// SetPECBootPlayback selects whether PEC playback starts at power up.
func (m *Mount) SetPECBootPlayback(enable bool) error {
	value := "0"

	if enable {
		value = "1"
	}

	_, err := m.send(NativeSet(NativePECBoot, value))

	return err
}

// SetPECReplay turns PEC playback on or off.
func (m *Mount) SetPECReplay(enable bool) error {
	id := NativePECReplayOff

	if enable {
		id = NativePECReplayOn
	}

	_, err := m.send(NativeSet(id, ""))

	return err
}

// GetNTPServer returns the IPv4 address of the NTP server of the controller.
func (m *Mount) GetNTPServer() (netip.Addr, error) {
	s, err := m.send(NativeGet(NativeNTPServer, ""))

	if err != nil {
		return netip.Addr{}, err
	}

	addr, err := netip.ParseAddr(s)

	if err != nil || !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: NTP server address %q", point.ErrFraming, s)
	}

	return addr, nil
}

// SetNTPServer sets the IPv4 address of the NTP server of the controller.
func (m *Mount) SetNTPServer(addr netip.Addr) error {
	if !addr.Is4() {
		return fmt.Errorf("%w: NTP server address %v is not IPv4", point.ErrEncoding, addr)
	}

	_, err := m.send(NativeSet(NativeNTPServer, addr.String()))

	return err
}

// SlewRateToDivisor returns the divisor closest to rate degrees per second.
// A rate of zero maps to divisor zero.
func SlewRateToDivisor(rate float64) (int, error) {
	if rate == 0 {
		return 0, nil
	}

	div := math.Trunc(servoClock / (stepsPerDegree * rate))

	if math.IsNaN(div) || math.Abs(div) > maxDivisor {
		return 0, fmt.Errorf("%w: slew rate %v deg/s", point.ErrEncoding, rate)
	}

	return int(div), nil
}

// DivisorToSlewRate returns the slew rate in degrees per second of a divisor.
func DivisorToSlewRate(div int) float64 {
	if div == 0 {
		return 0
	}

	return servoClock / (stepsPerDegree * float64(div))
}

// Slew moves an axis at rate degrees per second, in a single step. It returns
// the rate the divisor actually achieves. RA is started or halted only when
// the divisor changes between zero and non-zero.
func (m *Mount) Slew(axis Axis, rate float64) (float64, error) {
	if axis != AxisRA && axis != AxisDec {
		return 0, fmt.Errorf("%w: axis %d", point.ErrEncoding, int(axis))
	}

	div, err := SlewRateToDivisor(rate)

	if err != nil {
		return 0, err
	}

	last, known := m.divisors[axis], m.known[axis]

	// Unknown until the commands below have all gone through.
	m.known[axis] = false

	if axis == AxisDec {
		err = m.setDivisor(AxisDec, div)
	} else {
		switch {
		case div == 0 && (!known || last != 0):
			err = m.setMoving(AxisRA, false)
		case div != 0 && (!known || last == 0):
			err = m.setMoving(AxisRA, true)
		}

		// A zero RA divisor advances one servo step per command, so RA is
		// halted instead.
		if err == nil && div != 0 {
			// Negated to match the direction of the Dec axis.
			err = m.setDivisor(AxisRA, -div)
		}
	}

	if err != nil {
		return 0, err
	}

	m.divisors[axis], m.known[axis] = div, true

	return DivisorToSlewRate(div), nil
}

// SlewRate returns the rate in degrees per second last commanded by Slew.
// The controller cannot report it, so it is zero until Slew succeeds and
// after SetDivisor or SetMoving touch the axis.
func (m *Mount) SlewRate(axis Axis) float64 {
	if axis != AxisRA && axis != AxisDec || !m.known[axis] {
		return 0
	}

	return DivisorToSlewRate(m.divisors[axis])
}
