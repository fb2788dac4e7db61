package simulator

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/seeing-things/point/angle"
	"github.com/seeing-things/point/gemini"
)

// Precision is the coordinate precision of an emulated Gemini controller.
type Precision string

// The precision modes, as reported by :P#.
const (
	PrecisionHigh   Precision = "HIGH PRECISION"
	PrecisionLow    Precision = "LOW  PRECISION"
	PrecisionDouble Precision = "DBL  PRECISION"
)

// GeminiState is the state of an emulated Gemini controller.
type GeminiState struct {
	// RA, HourAngle and Sidereal in hours, the others in degrees.
	RA, Dec   float64
	Alt, Az   float64
	HourAngle float64
	Sidereal  float64

	Side      string
	Precision Precision

	// Startup is the startup check reply, 'b' while waiting for a startup
	// mode.
	Startup byte
	Site    int

	// Alignments counts the objects added to the pointing model.
	Alignments int

	ObjectRA, ObjectDec float64
	ObjectName          string

	Latitude, Longitude float64

	// BelowHorizon makes goto requests fail.
	BelowHorizon bool

	// Native values by identifier.
	Divisors  map[int]int
	Moving    map[int]bool
	PEC       int
	PECBoot   bool
	PECReplay bool
	NTPServer string
}

// Gemini emulates a Gemini 2 controller.
type Gemini struct {
	GeminiState

	lock     sync.Mutex
	commands []string
}

// NewGemini returns a controller in high precision mode, west of the pier.
func NewGemini() *Gemini {
	return &Gemini{
		GeminiState: GeminiState{
			Side:      "W",
			Precision: PrecisionHigh,
			Startup:   'G',
			NTPServer: "0.0.0.0",
			Divisors:  map[int]int{},
			Moving:    map[int]bool{},
		},
	}
}

// Commands returns the commands handled so far, without framing characters.
func (g *Gemini) Commands() []string {
	g.lock.Lock()
	defer g.lock.Unlock()

	return append([]string{}, g.commands...)
}

// Snapshot returns a copy of the controller state.
func (g *Gemini) Snapshot() GeminiState {
	g.lock.Lock()
	defer g.lock.Unlock()

	c := g.GeminiState
	c.Divisors = map[int]int{}
	c.Moving = map[int]bool{}

	for k, v := range g.Divisors {
		c.Divisors[k] = v
	}

	for k, v := range g.Moving {
		c.Moving[k] = v
	}

	return c
}

// HandleStream implements StreamHandler.
func (g *Gemini) HandleStream(r *bufio.Reader) ([]byte, error) {
	c, err := r.ReadByte()

	if err != nil {
		return nil, err
	}

	switch c {
	case gemini.ACK:
		return g.HandleCommand([]byte{c}), nil
	case ':', '<', '>', 'b':
		rest, err := r.ReadBytes(gemini.Terminator)

		if err != nil {
			return nil, err
		}

		return g.HandleCommand(append([]byte{c}, rest...)), nil
	}

	log.Warnf("Simulator skipping unexpected byte %q.", c)

	return nil, nil
}

// HandleCommand handles one encoded command and returns the reply, or nil
// when the command has none.
func (g *Gemini) HandleCommand(req []byte) []byte {
	g.lock.Lock()
	defer g.lock.Unlock()

	if len(req) == 1 && req[0] == gemini.ACK {
		g.commands = append(g.commands, "ACK")
		return []byte{g.Startup, gemini.Terminator}
	}

	if len(req) < 2 || req[len(req)-1] != gemini.Terminator {
		log.Warnf("Simulator ignoring malformed command %q.", req)
		return nil
	}

	switch req[0] {
	case ':':
		return g.lx200(string(req))
	case '<', '>':
		return g.native(req)
	case 'b':
		return g.startup(string(req))
	}

	log.Warnf("Simulator ignoring malformed command %q.", req)

	return nil
}

func (g *Gemini) lx200(line string) []byte {
	cmd, err := gemini.ParseLine(line)

	if err != nil {
		log.Warnf("Simulator ignoring command: %v", err)
		return nil
	}

	g.commands = append(g.commands, cmd.Opcode+string(cmd.Params))
	params := string(cmd.Params)

	switch cmd.Opcode {
	case "CE":
		return []byte(params + "#")
	case "GR":
		return g.hours(g.RA)
	case "GS":
		return g.hours(g.Sidereal)
	case "GH":
		return g.hours(g.HourAngle)
	case "GD":
		return g.degrees(g.Dec)
	case "GA":
		return g.degrees(g.Alt)
	case "GZ":
		return g.degrees(g.Az)
	case "Gm":
		return []byte(g.Side + "#")
	case "P":
		return []byte(string(g.Precision) + "#")
	case "U":
		if g.Precision == PrecisionLow {
			g.Precision = PrecisionHigh
		} else {
			g.Precision = PrecisionLow
		}

		return nil
	case "u":
		g.Precision = PrecisionDouble
		return nil
	case "Sr":
		return g.validate(params, 0, 24, &g.ObjectRA)
	case "Sd":
		return g.validate(params, -90, 90, &g.ObjectDec)
	case "Sg":
		return g.validate(params, -180, 180, &g.Longitude)
	case "St":
		return g.validate(params, -90, 90, &g.Latitude)
	case "ON":
		g.ObjectName = params
		return nil
	case "MS":
		if g.BelowHorizon {
			return []byte("1Object below horizon.#")
		}

		g.RA, g.Dec = g.ObjectRA, g.ObjectDec

		return []byte("0")
	case "Q":
		return nil
	case "CM":
		g.RA, g.Dec = g.ObjectRA, g.ObjectDec
		return []byte("Coordinates matched.#")
	case "Cm":
		g.RA, g.Dec = g.ObjectRA, g.ObjectDec
		g.Alignments++

		return []byte("Object aligned.#")
	case "W":
		site, err := strconv.Atoi(params)

		if err == nil && site >= 0 && site <= 3 {
			g.Site = site
		}

		return nil
	case "W?":
		return []byte(strconv.Itoa(g.Site) + "#")
	}

	log.Warnf("Simulator ignoring unknown command %q.", line)

	return nil
}

func (g *Gemini) startup(line string) []byte {
	g.commands = append(g.commands, strings.TrimSuffix(line, "#"))

	if g.Startup != 'b' {
		log.Warnf("Simulator ignoring startup mode %q, already started.", line)
		return nil
	}

	switch line {
	case "bC#", "bW#", "bR#":
		g.Startup = 'G'
	default:
		log.Warnf("Simulator ignoring unknown startup mode %q.", line)
	}

	return nil
}

func (g *Gemini) validate(params string, lo, hi float64, dst *float64) []byte {
	x, err := angle.ParseSexagesimal(params)

	if err != nil {
		return []byte("0")
	}

	v := x.Value()

	if v < lo || v > hi {
		return []byte("0")
	}

	*dst = v

	return []byte("1")
}

func (g *Gemini) hours(v float64) []byte {
	switch g.Precision {
	case PrecisionDouble:
		return []byte(fmt.Sprintf("%.6f#", v))
	case PrecisionLow:
		tenths := int64(math.Round(math.Abs(v) * 600))
		return []byte(fmt.Sprintf("%02d:%02d.%d#", tenths/600, tenths/10%60, tenths%10))
	}

	return []byte(angle.FromValue(v).Format(angle.StyleHMS) + "#")
}

func (g *Gemini) degrees(v float64) []byte {
	switch g.Precision {
	case PrecisionDouble:
		return []byte(fmt.Sprintf("%.6f#", v))
	case PrecisionLow:
		return []byte(angle.FromValue(v).Format(angle.StyleLatitude) + "#")
	}

	// High precision uses the degree byte between degrees and minutes.
	s := strings.Replace(angle.FromValue(v).Format(angle.StyleDMS), "*", "\xDF", 1)

	return []byte(s + "#")
}

func (g *Gemini) native(req []byte) []byte {
	body, sum := req[:len(req)-2], req[len(req)-2]

	if gemini.Checksum(body) != sum {
		log.Warnf("Simulator ignoring native command %q with bad checksum.", req)
		return nil
	}

	text := string(body)
	i := strings.IndexByte(text, ':')

	if i < 0 {
		return nil
	}

	id, err := strconv.Atoi(text[1:i])

	if err != nil {
		return nil
	}

	params := text[i+1:]
	g.commands = append(g.commands, text)

	if text[0] == '>' {
		g.set(id, params)
		return nil
	}

	var value string

	switch id {
	case gemini.NativeRADivisor, gemini.NativeDecDivisor:
		value = strconv.Itoa(g.Divisors[id])
	case gemini.NativeRAStartStop, gemini.NativeDecStartStop:
		value = "1"

		if g.Moving[id] {
			value = "0"
		}
	case gemini.NativePECStatus:
		value = strconv.Itoa(g.PEC)
	case gemini.NativePECBoot:
		value = "0"

		if g.PECBoot {
			value = "1"
		}
	case gemini.NativeNTPServer:
		value = g.NTPServer
	default:
		log.Warnf("Simulator has no native value %d.", id)
		return nil
	}

	out := []byte(value)

	return append(out, gemini.Checksum(out), gemini.Terminator)
}

func (g *Gemini) set(id int, params string) {
	switch id {
	case gemini.NativeRAStartStop, gemini.NativeDecStartStop:
		g.Moving[id] = params == "0"
	case gemini.NativePECBoot:
		g.PECBoot = params == "1"
	case gemini.NativePECReplayOn, gemini.NativePECReplayOff:
		g.PECReplay = id == gemini.NativePECReplayOn
	case gemini.NativeNTPServer:
		g.NTPServer = params
	case gemini.NativeRADivisor, gemini.NativeDecDivisor, gemini.NativePECStatus:
		v, err := strconv.Atoi(params)

		if err != nil {
			log.Warnf("Simulator ignoring native value %q.", params)
			return
		}

		if id == gemini.NativePECStatus {
			g.PEC = v
		} else {
			g.Divisors[id] = v
		}
	default:
		log.Warnf("Simulator has no native value %d.", id)
	}
}
