package simulator

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/seeing-things/point/nexstar"
)

// NexStarState is the state of an emulated hand controller.
type NexStarState struct {
	// Positions as 32-bit fractions of a revolution.
	RA, Dec uint32
	Az, Alt uint32

	Tracking   nexstar.TrackingMode
	Location   [8]byte
	Time       [8]byte
	Version    [2]byte
	Model      byte
	Aligned    bool
	GotoActive bool

	// Motor controller positions (24-bit) and rates.
	Axes  map[nexstar.Device]uint32
	Rates map[nexstar.Device]int

	// Firmware versions of the AUX devices present. Others do not answer.
	Devices map[nexstar.Device][2]byte
}

// NexStar emulates a NexStar hand controller. The state may be changed
// before the mount is served.
type NexStar struct {
	NexStarState

	lock sync.Mutex
	ops  []nexstar.Op
}

// NewNexStar returns an aligned hand controller pointing at zero.
func NewNexStar() *NexStar {
	return &NexStar{
		NexStarState: NexStarState{
			Version: [2]byte{4, 21},
			Model:   12,
			Aligned: true,
			Axes:    map[nexstar.Device]uint32{},
			Rates:   map[nexstar.Device]int{},
			Devices: map[nexstar.Device][2]byte{
				nexstar.DeviceAzmRA:  {7, 11},
				nexstar.DeviceAltDec: {7, 11},
				nexstar.DeviceGPS:    {1, 6},
				nexstar.DeviceRTC:    {1, 2},
			},
		},
	}
}

// Ops returns the commands handled so far.
func (n *NexStar) Ops() []nexstar.Op {
	n.lock.Lock()
	defer n.lock.Unlock()

	return append([]nexstar.Op{}, n.ops...)
}

// Snapshot returns a copy of the mount state.
func (n *NexStar) Snapshot() NexStarState {
	n.lock.Lock()
	defer n.lock.Unlock()

	c := n.NexStarState
	c.Axes = map[nexstar.Device]uint32{}
	c.Rates = map[nexstar.Device]int{}
	c.Devices = map[nexstar.Device][2]byte{}

	for k, v := range n.Axes {
		c.Axes[k] = v
	}

	for k, v := range n.Rates {
		c.Rates[k] = v
	}

	for k, v := range n.Devices {
		c.Devices[k] = v
	}

	return c
}

// HandleStream implements StreamHandler.
func (n *NexStar) HandleStream(r *bufio.Reader) ([]byte, error) {
	c, err := r.ReadByte()

	if err != nil {
		return nil, err
	}

	op := nexstar.Op(c)
	size, ok := nexstar.ParamLen(op)

	if !ok {
		log.Warnf("Simulator ignoring unknown command %q.", c)
		return nil, nil
	}

	params := make([]byte, size)

	_, err = io.ReadFull(r, params)

	if err != nil {
		return nil, err
	}

	n.lock.Lock()
	defer n.lock.Unlock()

	n.ops = append(n.ops, op)

	return n.handle(op, params), nil
}

func (n *NexStar) handle(op nexstar.Op, p []byte) []byte {
	switch op {
	case nexstar.OpGetRaDec:
		return []byte(fmt.Sprintf("%04X,%04X#", n.RA>>16, n.Dec>>16))
	case nexstar.OpGetRaDecPrecise:
		return []byte(fmt.Sprintf("%08X,%08X#", n.RA, n.Dec))
	case nexstar.OpGetAzAlt:
		return []byte(fmt.Sprintf("%04X,%04X#", n.Az>>16, n.Alt>>16))
	case nexstar.OpGetAzAltPrecise:
		return []byte(fmt.Sprintf("%08X,%08X#", n.Az, n.Alt))
	case nexstar.OpGotoRaDec, nexstar.OpGotoRaDecPrecise, nexstar.OpSync, nexstar.OpSyncPrecise:
		if a, b, ok := parsePair(p); ok {
			n.RA, n.Dec = a, b
		}

		return []byte("#")
	case nexstar.OpGotoAzAlt, nexstar.OpGotoAzAltPrecise:
		if a, b, ok := parsePair(p); ok {
			n.Az, n.Alt = a, b
		}

		return []byte("#")
	case nexstar.OpGetTrackingMode:
		return []byte{byte(n.Tracking), '#'}
	case nexstar.OpSetTrackingMode:
		n.Tracking = nexstar.TrackingMode(p[0])
		return []byte("#")
	case nexstar.OpPassThrough:
		return n.passThrough(p)
	case nexstar.OpGetLocation:
		return append(n.Location[:], '#')
	case nexstar.OpSetLocation:
		copy(n.Location[:], p)
		return []byte("#")
	case nexstar.OpGetTime:
		return append(n.Time[:], '#')
	case nexstar.OpSetTime:
		copy(n.Time[:], p)
		return []byte("#")
	case nexstar.OpGetVersion:
		return append(n.Version[:], '#')
	case nexstar.OpGetModel:
		return []byte{n.Model, '#'}
	case nexstar.OpEcho:
		return []byte{p[0], '#'}
	case nexstar.OpAlignmentComplete:
		if n.Aligned {
			return []byte{1, '#'}
		}

		return []byte{0, '#'}
	case nexstar.OpGotoInProgress:
		if n.GotoActive {
			return []byte("1#")
		}

		return []byte("0#")
	case nexstar.OpCancelGoto:
		n.GotoActive = false
		return []byte("#")
	}

	return []byte("#")
}

func (n *NexStar) passThrough(p []byte) []byte {
	dev := nexstar.Device(p[1])
	msg := p[2]
	version, ok := n.Devices[dev]

	if !ok {
		log.Warnf("Simulator has no AUX device %d.", dev)
		return nil
	}

	reply := make([]byte, int(p[6]))
	data := make([]byte, 3)

	if size := int(p[0]) - 1; size > 0 && size <= 3 {
		copy(data, p[3:3+size])
	}

	switch msg {
	case 0x01:
		pos := n.Axes[dev]
		copy(reply, []byte{byte(pos >> 16), byte(pos >> 8), byte(pos)})
	case 0x02:
		n.Axes[dev] = uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2])
	case 0x06, 0x07:
		rate := int(data[0])<<8 | int(data[1])

		if msg == 0x07 {
			rate = -rate
		}

		n.Rates[dev] = rate
	case 0x24, 0x25:
		rate := int(data[0])

		if msg == 0x25 {
			rate = -rate
		}

		n.Rates[dev] = rate
	case 0xFE:
		copy(reply, version[:])
	}

	return append(reply, '#')
}

func parsePair(p []byte) (uint32, uint32, bool) {
	parts := strings.Split(string(p), ",")

	if len(parts) != 2 || len(parts[0]) != len(parts[1]) {
		return 0, 0, false
	}

	a, err := strconv.ParseUint(parts[0], 16, 32)

	if err != nil {
		return 0, 0, false
	}

	b, err := strconv.ParseUint(parts[1], 16, 32)

	if err != nil {
		return 0, 0, false
	}

	// Legacy positions carry the upper 16 bits.
	if len(parts[0]) == 4 {
		a <<= 16
		b <<= 16
	}

	return uint32(a), uint32(b), true
}
