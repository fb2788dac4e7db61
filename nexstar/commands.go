package nexstar

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/seeing-things/point"
	"github.com/seeing-things/point/angle"
)

// Op is a hand controller command letter.
type Op byte

// The hand controller commands. Lower case position commands are the precise
// variants of their upper case counterparts.
const (
	OpGetRaDec          Op = 'E'
	OpGetRaDecPrecise   Op = 'e'
	OpGetAzAlt          Op = 'Z'
	OpGetAzAltPrecise   Op = 'z'
	OpGotoRaDec         Op = 'R'
	OpGotoRaDecPrecise  Op = 'r'
	OpGotoAzAlt         Op = 'B'
	OpGotoAzAltPrecise  Op = 'b'
	OpSync              Op = 'S'
	OpSyncPrecise       Op = 's'
	OpGetTrackingMode   Op = 't'
	OpSetTrackingMode   Op = 'T'
	OpPassThrough       Op = 'P'
	OpGetLocation       Op = 'w'
	OpSetLocation       Op = 'W'
	OpGetTime           Op = 'h'
	OpSetTime           Op = 'H'
	OpGetVersion        Op = 'V'
	OpGetModel          Op = 'm'
	OpEcho              Op = 'K'
	OpAlignmentComplete Op = 'J'
	OpGotoInProgress    Op = 'L'
	OpCancelGoto        Op = 'M'
)

type paramForm int

const (
	paramNone paramForm = iota
	paramASCII
	paramBinary
)

// descriptor fixes the layout of one command. Parameters of a command are
// either all ASCII or all binary.
type descriptor struct {
	name       string
	params     paramForm
	paramLen   int
	reply      point.Shape
	asciiReply bool
	encoding   angle.Encoding
}

var descriptors = map[Op]descriptor{
	OpGetRaDec:          {name: "get RA/Dec", reply: point.Fixed(9), asciiReply: true, encoding: angle.Hex16},
	OpGetRaDecPrecise:   {name: "get precise RA/Dec", reply: point.Fixed(17), asciiReply: true, encoding: angle.Hex32},
	OpGetAzAlt:          {name: "get Az/Alt", reply: point.Fixed(9), asciiReply: true, encoding: angle.Hex16},
	OpGetAzAltPrecise:   {name: "get precise Az/Alt", reply: point.Fixed(17), asciiReply: true, encoding: angle.Hex32},
	OpGotoRaDec:         {name: "goto RA/Dec", params: paramASCII, paramLen: 9, reply: point.Ack(), encoding: angle.Hex16},
	OpGotoRaDecPrecise:  {name: "goto precise RA/Dec", params: paramASCII, paramLen: 17, reply: point.Ack(), encoding: angle.Hex32},
	OpGotoAzAlt:         {name: "goto Az/Alt", params: paramASCII, paramLen: 9, reply: point.Ack(), encoding: angle.Hex16},
	OpGotoAzAltPrecise:  {name: "goto precise Az/Alt", params: paramASCII, paramLen: 17, reply: point.Ack(), encoding: angle.Hex32},
	OpSync:              {name: "sync", params: paramASCII, paramLen: 9, reply: point.Ack(), encoding: angle.Hex16},
	OpSyncPrecise:       {name: "precise sync", params: paramASCII, paramLen: 17, reply: point.Ack(), encoding: angle.Hex32},
	OpGetTrackingMode:   {name: "get tracking mode", reply: point.Fixed(1)},
	OpSetTrackingMode:   {name: "set tracking mode", params: paramBinary, paramLen: 1, reply: point.Ack()},
	OpPassThrough:       {name: "pass through", params: paramBinary, paramLen: 7},
	OpGetLocation:       {name: "get location", reply: point.Fixed(8)},
	OpSetLocation:       {name: "set location", params: paramBinary, paramLen: 8, reply: point.Ack()},
	OpGetTime:           {name: "get time", reply: point.Fixed(8)},
	OpSetTime:           {name: "set time", params: paramBinary, paramLen: 8, reply: point.Ack()},
	OpGetVersion:        {name: "get version", reply: point.Fixed(2)},
	OpGetModel:          {name: "get model", reply: point.Fixed(1)},
	OpEcho:              {name: "echo", params: paramBinary, paramLen: 1, reply: point.Fixed(1)},
	OpAlignmentComplete: {name: "alignment complete", reply: point.Fixed(1)},
	OpGotoInProgress:    {name: "goto in progress", reply: point.Fixed(1), asciiReply: true},
	OpCancelGoto:        {name: "cancel goto", reply: point.Ack()},
}

// ParamLen returns the number of parameter bytes following op.
func ParamLen(op Op) (int, bool) {
	d, ok := descriptors[op]

	return d.paramLen, ok
}

// Encoding returns the angle encoding used by a position command.
func Encoding(op Op) (angle.Encoding, bool) {
	d, ok := descriptors[op]

	if !ok || d.encoding.Bits == 0 {
		return angle.Encoding{}, false
	}

	return d.encoding, true
}

// passThroughReply derives the reply of a pass through command from the
// response length in its last parameter byte.
func passThroughReply(params []byte) point.Shape {
	if n := int(params[len(params)-1]); n > 0 {
		return point.Fixed(n)
	}

	return point.Ack()
}

// replyFor returns the reply shape of op with params, which must have
// passed check.
func (d descriptor) replyFor(op Op, params []byte) point.Shape {
	if op == OpPassThrough {
		return passThroughReply(params)
	}

	return d.reply
}

func (d descriptor) check(params []byte) error {
	if len(params) != d.paramLen {
		return fmt.Errorf("%w: %s takes %d parameter bytes, got %d", point.ErrEncoding, d.name, d.paramLen, len(params))
	}

	if d.params == paramASCII {
		for _, c := range params {
			if c < 0x20 || c >= utf8.RuneSelf {
				return fmt.Errorf("%w: %s parameters must be printable ASCII, got 0x%02X", point.ErrEncoding, d.name, c)
			}
		}
	}

	return nil
}

func lookup(opcode string) (Op, descriptor, error) {
	if len(opcode) != 1 {
		return 0, descriptor{}, fmt.Errorf("%w: bad opcode %q", point.ErrEncoding, opcode)
	}

	op := Op(opcode[0])
	d, ok := descriptors[op]

	if !ok {
		return 0, descriptor{}, fmt.Errorf("%w: unknown opcode %q", point.ErrEncoding, opcode)
	}

	return op, d, nil
}

// NewCommand builds a command from its letter and encoded parameters.
func NewCommand(op Op, params []byte) (point.Command, error) {
	d, ok := descriptors[op]

	if !ok {
		return point.Command{}, fmt.Errorf("%w: unknown opcode %q", point.ErrEncoding, byte(op))
	}

	err := d.check(params)

	if err != nil {
		return point.Command{}, err
	}

	return point.Command{
		Name:   d.name,
		Opcode: string([]byte{byte(op)}),
		Params: params,
		Reply:  d.replyFor(op, params),
	}, nil
}

// ParseLine turns console input into a command: the command letter followed
// by parameters. Parameters written as 0x.. are bytes, anything else is sent
// as text, so "T 0x02" and "R 4000,2000" are both valid.
func ParseLine(line string) (point.Command, error) {
	line = strings.TrimSpace(line)

	if line == "" {
		return point.Command{}, fmt.Errorf("%w: empty command", point.ErrEncoding)
	}

	var params []byte

	for _, field := range strings.Fields(line[1:]) {
		if !strings.HasPrefix(field, "0x") {
			params = append(params, field...)
			continue
		}

		b, err := strconv.ParseUint(field[2:], 16, 8)

		if err != nil {
			return point.Command{}, fmt.Errorf("%w: bad byte %q", point.ErrEncoding, field)
		}

		params = append(params, byte(b))
	}

	return NewCommand(Op(line[0]), params)
}
