package gemini_test

import (
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeing-things/point"
	"github.com/seeing-things/point/gemini"
	"github.com/seeing-things/point/internal/logging"
	"github.com/seeing-things/point/internal/simulator"
	"github.com/seeing-things/point/transport"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

func newStreamMount(t *testing.T, sim *simulator.Gemini) *gemini.Mount {
	t.Helper()

	server := simulator.NewServer()
	t.Cleanup(func() { server.Close() })

	session := point.NewSession(transport.NewStream(server.Stream(sim)), gemini.Codec{})
	m := gemini.NewMount(session)
	t.Cleanup(func() { m.Close() })

	return m
}

func newUDPMount(t *testing.T, sim *simulator.Gemini, options ...point.Option) (*gemini.Mount, *simulator.Server) {
	t.Helper()

	server := simulator.NewServer()
	t.Cleanup(func() { server.Close() })

	addr, err := server.UDP(sim, "127.0.0.1:0")
	require.NoError(t, err)

	udp, err := transport.DialUDP(transport.UDPConfig{Remote: addr.String(), Local: "127.0.0.1:0"})
	require.NoError(t, err)

	options = append([]point.Option{
		point.WithEnvelope(gemini.UDPEnvelope{}),
		point.WithTimeout(100 * time.Millisecond),
	}, options...)

	m := gemini.NewMount(point.NewSession(udp, gemini.Codec{}, options...))
	t.Cleanup(func() { m.Close() })

	return m, server
}

func TestUDPGetRA(t *testing.T) {
	sim := simulator.NewGemini()
	sim.RA = 12.5822222

	m, _ := newUDPMount(t, sim, point.WithSequence(7))

	ra, err := m.GetRA()
	require.NoError(t, err)
	assert.InDelta(t, 12+34/60.0+56/3600.0, ra, 1e-9)
	assert.Equal(t, uint16(8), m.Session().Sequence())
}

func TestUDPRetry(t *testing.T) {
	m, server := newUDPMount(t, simulator.NewGemini())

	server.SetFaults(simulator.Faults{Drop: 2})

	side, err := m.GetMeridianSide()
	require.NoError(t, err)
	assert.Equal(t, "W", side)
	assert.Equal(t, uint16(1), m.Session().Sequence())

	server.SetFaults(simulator.Faults{WrongSequence: 1, CorruptChecksum: 1})

	side, err = m.GetMeridianSide()
	require.NoError(t, err)
	assert.Equal(t, "W", side)
}

func TestUDPTimeout(t *testing.T) {
	m, server := newUDPMount(t, simulator.NewGemini(), point.WithRetries(1))

	server.SetFaults(simulator.Faults{Drop: 2})

	_, err := m.GetMeridianSide()
	assert.ErrorIs(t, err, point.ErrTimeout)
}

func TestUDPChecksum(t *testing.T) {
	m, server := newUDPMount(t, simulator.NewGemini(), point.WithRetries(2))

	server.SetFaults(simulator.Faults{CorruptChecksum: 3})

	_, err := m.GetMeridianSide()

	var checksumErr *point.ChecksumError
	assert.ErrorAs(t, err, &checksumErr)
}

func TestUDPSequenceMismatch(t *testing.T) {
	m, server := newUDPMount(t, simulator.NewGemini(), point.WithRetries(0), point.WithSequence(7))

	server.SetFaults(simulator.Faults{WrongSequence: 1})

	_, err := m.GetMeridianSide()

	var seqErr *point.SequenceMismatchError
	require.ErrorAs(t, err, &seqErr)
	assert.Equal(t, uint16(7), seqErr.Sent)
	assert.Equal(t, uint16(8), seqErr.Got)
}

func TestUDPAcknowledged(t *testing.T) {
	sim := simulator.NewGemini()
	m, _ := newUDPMount(t, sim)

	require.NoError(t, m.StopMotion())
	require.NoError(t, m.SetPECStatus(3))

	status, err := m.GetPECStatus()
	require.NoError(t, err)
	assert.Equal(t, 3, status)
}

func TestCoordinates(t *testing.T) {
	sim := simulator.NewGemini()
	sim.RA = 12.5822222
	sim.Dec = -5.5
	sim.Alt = 30.25
	sim.Az = 200
	sim.HourAngle = 1.5
	sim.Sidereal = 14

	m := newStreamMount(t, sim)

	c, err := m.StartupCheck()
	require.NoError(t, err)
	assert.Equal(t, "G", c)

	ra, err := m.GetRA()
	require.NoError(t, err)
	assert.InDelta(t, 12.582222, ra, 1e-6)

	dec, err := m.GetDec()
	require.NoError(t, err)
	assert.InDelta(t, -5.5, dec, 1e-9)

	alt, err := m.GetAltitude()
	require.NoError(t, err)
	assert.InDelta(t, 30.25, alt, 1e-9)

	az, err := m.GetAzimuth()
	require.NoError(t, err)
	assert.InDelta(t, 200, az, 1e-9)

	ha, err := m.GetHourAngle()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, ha, 1e-9)

	lst, err := m.GetSiderealTime()
	require.NoError(t, err)
	assert.InDelta(t, 14, lst, 1e-9)

	echo, err := m.Echo('x')
	require.NoError(t, err)
	assert.Equal(t, byte('x'), echo)
}

func TestPrecision(t *testing.T) {
	sim := simulator.NewGemini()
	sim.RA = 12.5822222

	m := newStreamMount(t, sim)

	p, err := m.GetPrecision()
	require.NoError(t, err)
	assert.Equal(t, "HIGH PRECISION", p)

	require.NoError(t, m.TogglePrecision())

	ra, err := m.GetRA()
	require.NoError(t, err)
	assert.InDelta(t, 12+34.9/60, ra, 1e-9)

	require.NoError(t, m.SetDoublePrecision())

	p, err = m.GetPrecision()
	require.NoError(t, err)
	assert.Equal(t, "DBL  PRECISION", p)

	ra, err = m.GetRA()
	require.NoError(t, err)
	assert.InDelta(t, 12.582222, ra, 1e-9)
}

func TestGotoObject(t *testing.T) {
	sim := simulator.NewGemini()
	m := newStreamMount(t, sim)

	require.NoError(t, m.SetSiteLatitude(52.25))
	require.NoError(t, m.SetSiteLongitude(-4.5))
	require.NoError(t, m.SetObject(6.7525, -16.716111, "Sirius"))
	require.NoError(t, m.GotoObject())

	state := sim.Snapshot()
	assert.InDelta(t, 52.25, state.Latitude, 1e-9)
	assert.InDelta(t, -4.5, state.Longitude, 1e-9)
	assert.InDelta(t, 6.7525, state.RA, 1e-6)
	assert.InDelta(t, -16.716111, state.Dec, 1e-6)
	assert.Equal(t, "Sirius", state.ObjectName)

	assert.ErrorIs(t, m.SetObjectDec(91), point.ErrEncoding)
	assert.ErrorIs(t, m.SetSiteLongitude(181), point.ErrEncoding)
}

func TestGotoRefused(t *testing.T) {
	sim := simulator.NewGemini()
	sim.BelowHorizon = true

	m := newStreamMount(t, sim)

	err := m.GotoObject()

	var protocolErr *point.ProtocolError
	require.ErrorAs(t, err, &protocolErr)
	assert.Equal(t, "Object below horizon.", protocolErr.Message)
}

func TestSetObjectRAWraps(t *testing.T) {
	sim := simulator.NewGemini()
	m := newStreamMount(t, sim)

	require.NoError(t, m.SetObjectRA(-1))
	assert.Equal(t, []string{"Sr23:00:00"}, sim.Commands())

	require.NoError(t, m.SetObjectRA(23.99999999))
	assert.Equal(t, "Sr00:00:00", sim.Commands()[1])
}

func TestSlew(t *testing.T) {
	sim := simulator.NewGemini()
	m, _ := newUDPMount(t, sim)

	rate, err := m.Slew(gemini.AxisRA, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1, rate, 1e-9)

	state := sim.Snapshot()
	assert.True(t, state.Moving[gemini.NativeRAStartStop])
	assert.Equal(t, -1875, state.Divisors[gemini.NativeRADivisor])

	rate, err = m.Slew(gemini.AxisDec, -0.5)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, rate, 1e-9)
	assert.Equal(t, -3750, sim.Snapshot().Divisors[gemini.NativeDecDivisor])

	rate, err = m.Slew(gemini.AxisRA, 0)
	require.NoError(t, err)
	assert.Zero(t, rate)
	assert.False(t, sim.Snapshot().Moving[gemini.NativeRAStartStop])
}

func TestSlewStartsRAOnce(t *testing.T) {
	sim := simulator.NewGemini()
	m, _ := newUDPMount(t, sim)

	assert.Zero(t, m.SlewRate(gemini.AxisRA))

	for _, rate := range []float64{1, 0.5, 0, 0, 2} {
		_, err := m.Slew(gemini.AxisRA, rate)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{
		">221:0", ">411:-1875",
		">411:-3750",
		">221:1",
		">221:0", ">411:-937",
	}, sim.Commands())

	assert.InDelta(t, 12e6/(6400*937.0), m.SlewRate(gemini.AxisRA), 1e-9)
	assert.Zero(t, m.SlewRate(gemini.AxisDec))
}

func TestSlewRate(t *testing.T) {
	sim := simulator.NewGemini()
	m, _ := newUDPMount(t, sim)

	_, err := m.Slew(gemini.AxisDec, -0.5)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, m.SlewRate(gemini.AxisDec), 1e-9)

	// Anything else touching the axis makes the cached rate unknown, so the
	// next slew starts RA again.
	_, err = m.Slew(gemini.AxisRA, 1)
	require.NoError(t, err)
	require.NoError(t, m.SetMoving(gemini.AxisRA, false))
	assert.Zero(t, m.SlewRate(gemini.AxisRA))

	_, err = m.Slew(gemini.AxisRA, 1)
	require.NoError(t, err)
	assert.True(t, sim.Snapshot().Moving[gemini.NativeRAStartStop])
	assert.InDelta(t, 1, m.SlewRate(gemini.AxisRA), 1e-9)

	_, err = m.Slew(gemini.Axis(2), 1)
	assert.ErrorIs(t, err, point.ErrEncoding)
	assert.ErrorIs(t, m.SetDivisor(gemini.Axis(-1), 1), point.ErrEncoding)
}

func TestSlewFailureForgetsRate(t *testing.T) {
	sim := simulator.NewGemini()
	m, server := newUDPMount(t, sim)

	_, err := m.Slew(gemini.AxisRA, 1)
	require.NoError(t, err)

	server.SetFaults(simulator.Faults{Drop: 100})

	_, err = m.Slew(gemini.AxisRA, 2)
	assert.ErrorIs(t, err, point.ErrTimeout)
	assert.Zero(t, m.SlewRate(gemini.AxisRA))
}

func TestSyncAndAlign(t *testing.T) {
	sim := simulator.NewGemini()
	m := newStreamMount(t, sim)

	require.NoError(t, m.SetObject(6.7525, -16.716111, ""))

	msg, err := m.SyncToObject()
	require.NoError(t, err)
	assert.Equal(t, "Coordinates matched.", msg)

	msg, err = m.AlignToObject()
	require.NoError(t, err)
	assert.Equal(t, "Object aligned.", msg)

	state := sim.Snapshot()
	assert.InDelta(t, 6.7525, state.RA, 1e-6)
	assert.InDelta(t, -16.716111, state.Dec, 1e-6)
	assert.Equal(t, 1, state.Alignments)
}

func TestStoredSite(t *testing.T) {
	sim := simulator.NewGemini()
	m, _ := newUDPMount(t, sim)

	require.NoError(t, m.SetStoredSite(2))

	site, err := m.GetStoredSite()
	require.NoError(t, err)
	assert.Equal(t, 2, site)

	assert.ErrorIs(t, m.SetStoredSite(4), point.ErrEncoding)
	assert.ErrorIs(t, m.SetStoredSite(-1), point.ErrEncoding)
	assert.Equal(t, []string{"W2", "W?"}, sim.Commands())
}

func TestSelectStartupMode(t *testing.T) {
	sim := simulator.NewGemini()
	sim.Startup = 'b'

	m, _ := newUDPMount(t, sim)

	state, err := m.StartupCheck()
	require.NoError(t, err)
	assert.Equal(t, "b", state)

	require.NoError(t, m.SelectStartupMode(gemini.WarmStart))

	state, err = m.StartupCheck()
	require.NoError(t, err)
	assert.Equal(t, "G", state)
	assert.Equal(t, []string{"ACK", "bW", "ACK"}, sim.Commands())

	assert.ErrorIs(t, m.SelectStartupMode(gemini.StartupMode('X')), point.ErrEncoding)
}

func TestPEC(t *testing.T) {
	sim := simulator.NewGemini()
	m, _ := newUDPMount(t, sim)

	require.NoError(t, m.SetPECStatus(1))

	status, err := m.GetPECStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, status)

	boot, err := m.GetPECBootPlayback()
	require.NoError(t, err)
	assert.False(t, boot)

	require.NoError(t, m.SetPECBootPlayback(true))

	boot, err = m.GetPECBootPlayback()
	require.NoError(t, err)
	assert.True(t, boot)

	require.NoError(t, m.SetPECReplay(true))
	assert.True(t, sim.Snapshot().PECReplay)

	require.NoError(t, m.SetPECReplay(false))
	assert.False(t, sim.Snapshot().PECReplay)
}

func TestNTPServer(t *testing.T) {
	sim := simulator.NewGemini()
	m, _ := newUDPMount(t, sim)

	addr := netip.MustParseAddr("192.168.0.10")
	require.NoError(t, m.SetNTPServer(addr))

	got, err := m.GetNTPServer()
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	assert.ErrorIs(t, m.SetNTPServer(netip.MustParseAddr("::1")), point.ErrEncoding)

	named := simulator.NewGemini()
	named.NTPServer = "pool.ntp.org"

	m, _ = newUDPMount(t, named)

	_, err = m.GetNTPServer()
	assert.ErrorIs(t, err, point.ErrFraming)
}

func TestSlewRateToDivisor(t *testing.T) {
	var tests = []struct {
		rate float64
		div  int
	}{
		{0, 0},
		{1, 1875},
		{-1, -1875},
		{0.7, 2678},
		{4, 468},
	}

	for _, test := range tests {
		div, err := gemini.SlewRateToDivisor(test.rate)
		require.NoError(t, err)
		assert.Equal(t, test.div, div, "%v", test.rate)
	}

	_, err := gemini.SlewRateToDivisor(1e-9)
	assert.ErrorIs(t, err, point.ErrEncoding)
}
