package gemini

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/seeing-things/point"
)

// MaxReply is the longest terminated reply accepted from the controller.
const MaxReply = 255

// Native command identifiers.
const (
	NativeRAStartStop  = 221
	NativeDecStartStop = 222
	NativeRADivisor    = 411
	NativeDecDivisor   = 412
	NativePECBoot      = 508
	NativePECStatus    = 509
	NativePECReplayOn  = 531
	NativePECReplayOff = 532
	NativeNTPServer    = 816
)

// StartupMode selects how the controller starts after power up.
type StartupMode byte

// The startup modes accepted after the startup check reports 'b'.
const (
	ColdStart   StartupMode = 'C'
	WarmStart   StartupMode = 'W'
	WarmRestart StartupMode = 'R'
)

// startupOpcode is the opcode of the startup mode selection, sent without
// the LX200 prefix.
const startupOpcode = "b"

type descriptor struct {
	name  string
	reply point.Shape

	// validated replies start with '1' when the controller accepted the
	// command and '0' when it did not.
	validated bool
}

var lx200Commands = map[string]descriptor{
	"CE": {name: "echo", reply: point.Terminated(1)},
	"CM": {name: "sync to object", reply: point.Terminated(MaxReply)},
	"Cm": {name: "align to object", reply: point.Terminated(MaxReply)},
	"GA": {name: "get altitude", reply: point.Terminated(MaxReply)},
	"GD": {name: "get Dec", reply: point.Terminated(MaxReply)},
	"GH": {name: "get hour angle", reply: point.Terminated(MaxReply)},
	"GR": {name: "get RA", reply: point.Terminated(MaxReply)},
	"GS": {name: "get sidereal time", reply: point.Terminated(MaxReply)},
	"GZ": {name: "get azimuth", reply: point.Terminated(MaxReply)},
	"Gm": {name: "get meridian side", reply: point.Terminated(1)},
	"MS": {name: "goto object", reply: point.Status(MaxReply)},
	"ON": {name: "set object name", reply: point.NoReply()},
	"P":  {name: "get precision", reply: point.Terminated(14)},
	"Q":  {name: "stop motion", reply: point.NoReply()},
	"Sd": {name: "set object Dec", reply: point.Raw(1), validated: true},
	"Sg": {name: "set site longitude", reply: point.Raw(1), validated: true},
	"Sr": {name: "set object RA", reply: point.Raw(1), validated: true},
	"St": {name: "set site latitude", reply: point.Raw(1), validated: true},
	"U":  {name: "toggle precision", reply: point.NoReply()},
	"u":  {name: "set double precision", reply: point.NoReply()},
	"W":  {name: "select stored site", reply: point.NoReply()},
	"W?": {name: "get stored site", reply: point.Terminated(1)},
}

var nativeNames = map[int]string{
	NativeRAStartStop:  "RA start/stop",
	NativeDecStartStop: "Dec start/stop",
	NativeRADivisor:    "RA divisor",
	NativeDecDivisor:   "Dec divisor",
	NativePECBoot:      "PEC boot playback",
	NativePECStatus:    "PEC status",
	NativePECReplayOn:  "PEC replay on",
	NativePECReplayOff: "PEC replay off",
	NativeNTPServer:    "NTP server address",
}

// StartupCheck returns the command that asks for the startup state.
func StartupCheck() point.Command {
	return point.Command{
		Name:   "startup check",
		Opcode: string([]byte{ACK}),
		Reply:  point.Terminated(1),
	}
}

// SelectStartupMode returns the command that answers a startup check
// reply of 'b'.
func SelectStartupMode(mode StartupMode) (point.Command, error) {
	switch mode {
	case ColdStart, WarmStart, WarmRestart:
	default:
		return point.Command{}, fmt.Errorf("%w: startup mode %q", point.ErrEncoding, byte(mode))
	}

	return point.Command{
		Name:   "select startup mode",
		Opcode: startupOpcode,
		Params: []byte{byte(mode)},
		Reply:  point.NoReply(),
	}, nil
}

// LX200 returns an LX200 command with ASCII parameters.
func LX200(mnemonic string, params string) point.Command {
	d, ok := lx200Commands[mnemonic]

	if !ok {
		d = descriptor{name: ":" + mnemonic, reply: point.Terminated(MaxReply)}
	}

	return point.Command{
		Name:   d.name,
		Opcode: mnemonic,
		Params: []byte(params),
		Reply:  d.reply,
	}
}

// NativeGet returns a native command that reads value id.
func NativeGet(id int, params string) point.Command {
	return point.Command{
		Name:   nativeName("get", id),
		Opcode: fmt.Sprintf("<%d", id),
		Params: []byte(params),
		Reply:  point.Terminated(MaxReply),
	}
}

// NativeSet returns a native command that writes value id.
func NativeSet(id int, params string) point.Command {
	return point.Command{
		Name:   nativeName("set", id),
		Opcode: fmt.Sprintf(">%d", id),
		Params: []byte(params),
		Reply:  point.NoReply(),
	}
}

func nativeName(verb string, id int) string {
	if name, ok := nativeNames[id]; ok {
		return verb + " " + name
	}

	return fmt.Sprintf("%s native %d", verb, id)
}

// ParseLine turns console input into a command. LX200 commands start with
// ':' and native commands with '<' or '>'; the checksum of a native command
// is added when it is encoded. ACK sends the startup check and bC#, bW# or
// bR# select the startup mode.
func ParseLine(line string) (point.Command, error) {
	line = strings.TrimSpace(line)

	switch {
	case line == "ACK":
		return StartupCheck(), nil
	case strings.HasPrefix(line, startupOpcode):
		mode := strings.TrimSuffix(line[1:], "#")

		if len(mode) != 1 {
			return point.Command{}, fmt.Errorf("%w: startup mode %q", point.ErrEncoding, line)
		}

		return SelectStartupMode(StartupMode(mode[0]))
	case strings.HasPrefix(line, "<"), strings.HasPrefix(line, ">"):
		i := strings.IndexByte(line, ':')

		if i < 0 {
			return point.Command{}, fmt.Errorf("%w: native command %q has no ':'", point.ErrEncoding, line)
		}

		id, err := strconv.Atoi(line[1:i])

		if err != nil || id < 0 {
			return point.Command{}, fmt.Errorf("%w: native command %q has no numeric identifier", point.ErrEncoding, line)
		}

		params := strings.TrimSuffix(line[i+1:], "#")

		if line[0] == '<' {
			return NativeGet(id, params), nil
		}

		return NativeSet(id, params), nil
	case strings.HasPrefix(line, ":"):
		text := strings.TrimSuffix(line[1:], "#")

		if text == "" {
			return point.Command{}, fmt.Errorf("%w: empty LX200 command", point.ErrEncoding)
		}

		mnemonic := text

		for known := range lx200Commands {
			if strings.HasPrefix(text, known) && (mnemonic == text || len(known) > len(mnemonic)) {
				mnemonic = known
			}
		}

		return LX200(mnemonic, text[len(mnemonic):]), nil
	default:
		return point.Command{}, fmt.Errorf("%w: %q must start with ':', '<', '>' or 'b'", point.ErrEncoding, line)
	}
}
