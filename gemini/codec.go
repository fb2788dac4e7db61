// Package gemini speaks the Losmandy Gemini 2 protocol: LX200 style commands,
// Gemini native commands and the startup check, over serial ports or inside
// UDP datagrams.
package gemini

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/seeing-things/point"
)

// Protocol characters.
const (
	ACK        = 0x06
	Terminator = '#'
)

// Checksum returns the checksum character of a native command or reply.
func Checksum(chars []byte) byte {
	var sum byte

	for _, c := range chars {
		sum ^= c
	}

	return sum%128 + 64
}

func isNative(cmd point.Command) bool {
	return strings.HasPrefix(cmd.Opcode, "<") || strings.HasPrefix(cmd.Opcode, ">")
}

func isStartupMode(cmd point.Command) bool {
	return cmd.Opcode == startupOpcode
}

func isControl(cmd point.Command) bool {
	return cmd.Opcode == string([]byte{ACK})
}

// Codec encodes Gemini commands and frames their replies.
type Codec struct{}

// Name implements point.Codec.
func (Codec) Name() string {
	return "gemini"
}

// Encode implements point.Codec.
func (Codec) Encode(cmd point.Command) ([]byte, error) {
	if isControl(cmd) {
		if len(cmd.Params) != 0 {
			return nil, fmt.Errorf("%w: startup check takes no parameters", point.ErrEncoding)
		}

		return []byte{ACK}, nil
	}

	if cmd.Opcode == "" {
		return nil, fmt.Errorf("%w: empty command", point.ErrEncoding)
	}

	text := cmd.Opcode + string(cmd.Params)

	if strings.ContainsAny(text, "#\x00\x06") {
		return nil, fmt.Errorf("%w: %s contains a reserved character: %q", point.ErrEncoding, cmd, text)
	}

	if isStartupMode(cmd) {
		return []byte(text + "#"), nil
	}

	if !isNative(cmd) {
		return []byte(":" + text + "#"), nil
	}

	if len(cmd.Opcode) < 2 {
		return nil, fmt.Errorf("%w: bad native identifier %q", point.ErrEncoding, cmd.Opcode)
	}

	for _, c := range cmd.Opcode[1:] {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w: bad native identifier %q", point.ErrEncoding, cmd.Opcode)
		}
	}

	out := []byte(cmd.Opcode + ":" + string(cmd.Params))
	out = append(out, Checksum(out), Terminator)

	return out, nil
}

// Frame implements point.Codec.
func (Codec) Frame(buf []byte, cmd point.Command) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	switch cmd.Reply.Kind {
	case point.ReplyNone:
		// Datagram transports acknowledge commands without reply.
		if buf[0] != ACK {
			return 0, fmt.Errorf("%w: %s expected ACK, got %q", point.ErrFraming, cmd, buf[0])
		}

		return 1, nil
	case point.ReplyRaw:
		n := cmd.Reply.Len
		head := buf

		if len(head) > n {
			head = head[:n]
		}

		if bytes.IndexByte(head, Terminator) >= 0 {
			return 0, fmt.Errorf("%w: %s fixed length reply %q contains a terminator", point.ErrFraming, cmd, head)
		}

		if len(buf) < n {
			return 0, nil
		}

		return n, nil
	case point.ReplyTerminated:
		limit := cmd.Reply.Len

		if isNative(cmd) {
			limit++
		}

		return frameTerminated(buf, limit, cmd)
	case point.ReplyStatus:
		if buf[0] == '0' {
			return 1, nil
		}

		return frameTerminated(buf, cmd.Reply.Len+1, cmd)
	default:
		return 0, fmt.Errorf("%w: %s cannot frame %s replies", point.ErrFraming, cmd, cmd.Reply)
	}
}

func frameTerminated(buf []byte, limit int, cmd point.Command) (int, error) {
	i := bytes.IndexByte(buf, Terminator)

	if i > limit || (i < 0 && len(buf) > limit) {
		return 0, fmt.Errorf("%w: %s reply has no terminator within %d bytes", point.ErrFraming, cmd, limit+1)
	}

	if i < 0 {
		return 0, nil
	}

	return i + 1, nil
}

// Decode implements point.Codec.
func (c Codec) Decode(frame []byte, cmd point.Command) (point.Response, error) {
	n, err := c.Frame(frame, cmd)

	if err != nil {
		return point.Response{}, err
	}

	if n == 0 || n != len(frame) {
		return point.Response{}, fmt.Errorf("%w: %s frame of %d bytes, expected %d", point.ErrFraming, cmd, len(frame), n)
	}

	r := point.Response{Raw: frame}

	switch cmd.Reply.Kind {
	case point.ReplyNone:
		r.NoData = true
	case point.ReplyRaw:
		if d, ok := lx200Commands[cmd.Opcode]; ok && d.validated && frame[0] != '1' {
			return point.Response{}, &point.ProtocolError{Command: cmd.String(), Token: string(frame[:1]), Message: "invalid value"}
		}

		r.Payload = frame
	case point.ReplyStatus:
		if frame[0] != '0' {
			return point.Response{}, &point.ProtocolError{
				Command: cmd.String(),
				Token:   string(frame[:1]),
				Message: string(frame[1 : len(frame)-1]),
			}
		}

		r.Payload = frame
	default:
		payload := frame[:len(frame)-1]

		if isNative(cmd) {
			if len(payload) == 0 {
				return point.Response{}, fmt.Errorf("%w: %s reply has no checksum", point.ErrFraming, cmd)
			}

			value := payload[:len(payload)-1]
			want, got := Checksum(value), payload[len(payload)-1]

			if want != got {
				return point.Response{}, &point.ChecksumError{Want: uint16(want), Got: uint16(got)}
			}

			payload = value
		}

		r.Payload = payload
		r.NoData = len(payload) == 0
	}

	return r, nil
}
