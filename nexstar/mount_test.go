package nexstar_test

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeing-things/point"
	"github.com/seeing-things/point/internal/logging"
	"github.com/seeing-things/point/internal/simulator"
	"github.com/seeing-things/point/nexstar"
	"github.com/seeing-things/point/transport"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

func newMount(t *testing.T, sim *simulator.NexStar) *nexstar.Mount {
	t.Helper()

	server := simulator.NewServer()
	t.Cleanup(func() { server.Close() })

	session := point.NewSession(transport.NewStream(server.Stream(sim)), nexstar.Codec{})
	m := nexstar.NewMount(session)
	t.Cleanup(func() { m.Close() })

	return m
}

func TestReplyOverrun(t *testing.T) {
	client, device := transport.Pipe()
	t.Cleanup(func() { device.Close() })

	session := point.NewSession(transport.NewStream(client), nexstar.Codec{}, point.WithTimeout(time.Second))
	t.Cleanup(func() { session.Close() })

	go func() {
		req := make([]byte, 1)

		_, err := io.ReadFull(device, req)

		if err != nil {
			return
		}

		// No terminator where the nine byte position reply should end.
		device.Write([]byte("1234,56789ABC#"))
	}()

	cmd, err := nexstar.NewCommand(nexstar.OpGetAzAlt, nil)
	require.NoError(t, err)

	start := time.Now()

	_, err = session.Send(cmd)
	assert.ErrorIs(t, err, point.ErrFraming)
	assert.NotErrorIs(t, err, point.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLateAckRejected(t *testing.T) {
	client, device := transport.Pipe()
	t.Cleanup(func() { device.Close() })

	session := point.NewSession(transport.NewStream(client), nexstar.Codec{}, point.WithTimeout(time.Second))
	t.Cleanup(func() { session.Close() })

	go func() {
		req := make([]byte, 1)

		_, err := io.ReadFull(device, req)

		if err != nil {
			return
		}

		// Acknowledgement of an earlier command, arriving after the discard.
		device.Write([]byte("#"))
	}()

	cmd, err := nexstar.NewCommand(nexstar.OpGetRaDec, nil)
	require.NoError(t, err)

	_, err = session.Send(cmd)
	assert.ErrorIs(t, err, point.ErrFraming)
}

func TestGetRaDec(t *testing.T) {
	sim := simulator.NewNexStar()
	sim.RA = 0x40000000
	sim.Dec = 0xF0000000

	m := newMount(t, sim)

	for _, p := range []nexstar.Precision{nexstar.Legacy, nexstar.Precise} {
		ra, dec, err := m.GetRaDec(p)
		require.NoError(t, err)
		assert.InDelta(t, 90, ra, 1e-6)
		assert.InDelta(t, -22.5, dec, 1e-6)
	}

	assert.Equal(t, []nexstar.Op{nexstar.OpGetRaDec, nexstar.OpGetRaDecPrecise}, sim.Ops())
}

func TestGotoAndSync(t *testing.T) {
	sim := simulator.NewNexStar()
	m := newMount(t, sim)

	require.NoError(t, m.GotoRaDec(45, -30, nexstar.Precise))

	ra, dec, err := m.GetRaDec(nexstar.Precise)
	require.NoError(t, err)
	assert.InDelta(t, 45, ra, 1e-6)
	assert.InDelta(t, -30, dec, 1e-6)

	require.NoError(t, m.GotoAzAlt(180, 45, nexstar.Legacy))

	az, alt, err := m.GetAzAlt(nexstar.Legacy)
	require.NoError(t, err)
	assert.InDelta(t, 180, az, 0.01)
	assert.InDelta(t, 45, alt, 0.01)

	require.NoError(t, m.Sync(370, 10, nexstar.Legacy))

	state := sim.Snapshot()
	assert.Equal(t, uint32(0x071C0000), state.RA)
}

func TestTrackingMode(t *testing.T) {
	m := newMount(t, simulator.NewNexStar())

	require.NoError(t, m.SetTrackingMode(nexstar.TrackingEquatorialNorth))

	mode, err := m.GetTrackingMode()
	require.NoError(t, err)
	assert.Equal(t, nexstar.TrackingEquatorialNorth, mode)

	assert.ErrorIs(t, m.SetTrackingMode(7), point.ErrEncoding)
}

func TestSlew(t *testing.T) {
	sim := simulator.NewNexStar()
	m := newMount(t, sim)

	require.NoError(t, m.SlewVariable(nexstar.DeviceAzmRA, 10))
	require.NoError(t, m.SlewVariable(nexstar.DeviceAltDec, -2.5))

	state := sim.Snapshot()
	assert.Equal(t, 40, state.Rates[nexstar.DeviceAzmRA])
	assert.Equal(t, -10, state.Rates[nexstar.DeviceAltDec])

	require.NoError(t, m.SlewFixed(nexstar.DeviceAltDec, -5))
	assert.Equal(t, -5, sim.Snapshot().Rates[nexstar.DeviceAltDec])

	require.NoError(t, m.SlewFixed(nexstar.DeviceAzmRA, 0))
	assert.Equal(t, 0, sim.Snapshot().Rates[nexstar.DeviceAzmRA])

	assert.ErrorIs(t, m.SlewFixed(nexstar.DeviceAzmRA, 10), point.ErrEncoding)
	assert.ErrorIs(t, m.SlewVariable(nexstar.DeviceAzmRA, 20000), point.ErrEncoding)
}

func TestAxisPosition(t *testing.T) {
	m := newMount(t, simulator.NewNexStar())

	require.NoError(t, m.GotoAxisFast(nexstar.DeviceAltDec, 90))

	a, err := m.GetAxisPosition(nexstar.DeviceAltDec)
	require.NoError(t, err)
	assert.InDelta(t, 90, a.Degrees(), 1e-6)

	major, minor, err := m.GetDeviceVersion(nexstar.DeviceAltDec)
	require.NoError(t, err)
	assert.Equal(t, 7, major)
	assert.Equal(t, 11, minor)
}

func TestAuxDevices(t *testing.T) {
	sim := simulator.NewNexStar()
	delete(sim.Devices, nexstar.DeviceRTC)

	server := simulator.NewServer()
	t.Cleanup(func() { server.Close() })

	session := point.NewSession(transport.NewStream(server.Stream(sim)), nexstar.Codec{}, point.WithTimeout(100*time.Millisecond))
	m := nexstar.NewMount(session)
	t.Cleanup(func() { m.Close() })

	major, minor, err := m.GetDeviceVersion(nexstar.DeviceGPS)
	require.NoError(t, err)
	assert.Equal(t, 1, major)
	assert.Equal(t, 6, minor)

	_, _, err = m.GetDeviceVersion(nexstar.DeviceRTC)
	assert.ErrorIs(t, err, point.ErrTimeout)

	// The mount still answers after a device stayed silent.
	major, _, err = m.GetDeviceVersion(nexstar.DeviceAzmRA)
	require.NoError(t, err)
	assert.Equal(t, 7, major)
}

func TestLocation(t *testing.T) {
	m := newMount(t, simulator.NewNexStar())

	loc := nexstar.Location{Latitude: -33.5, Longitude: 151.2125}
	require.NoError(t, m.SetLocation(loc))

	got, err := m.GetLocation()
	require.NoError(t, err)
	assert.InDelta(t, loc.Latitude, got.Latitude, 1e-6)
	assert.InDelta(t, loc.Longitude, got.Longitude, 1e-6)

	assert.ErrorIs(t, m.SetLocation(nexstar.Location{Latitude: 91}), point.ErrEncoding)
}

func TestTime(t *testing.T) {
	m := newMount(t, simulator.NewNexStar())

	now := time.Date(2024, time.March, 9, 21, 15, 42, 0, time.UTC)
	require.NoError(t, m.SetTime(now))

	got, err := m.GetTime()
	require.NoError(t, err)
	assert.True(t, now.Equal(got), "%v != %v", now, got)

	assert.ErrorIs(t, m.SetTime(time.Date(1999, time.January, 1, 0, 0, 0, 0, time.UTC)), point.ErrEncoding)
}

func TestInformation(t *testing.T) {
	sim := simulator.NewNexStar()
	sim.GotoActive = true

	m := newMount(t, sim)

	major, minor, err := m.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, 4, major)
	assert.Equal(t, 21, minor)

	model, err := m.GetModel()
	require.NoError(t, err)
	assert.Equal(t, 12, model)

	c, err := m.Echo('#')
	require.NoError(t, err)
	assert.Equal(t, byte('#'), c)

	aligned, err := m.AlignmentComplete()
	require.NoError(t, err)
	assert.True(t, aligned)

	active, err := m.GotoInProgress()
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, m.CancelGoto())

	active, err = m.GotoInProgress()
	require.NoError(t, err)
	assert.False(t, active)
}

func TestClosed(t *testing.T) {
	m := newMount(t, simulator.NewNexStar())

	require.NoError(t, m.Close())

	_, err := m.GetModel()
	assert.ErrorIs(t, err, point.ErrClosed)
}
