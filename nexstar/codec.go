// Package nexstar speaks the Celestron NexStar hand controller protocol.
//
// Commands are a single letter followed by ASCII or binary parameters. Every
// reply ends with '#'. Positions come in a legacy 16-bit and a precise 32-bit
// flavour; both are available and the caller picks one with Precision.
package nexstar

import (
	"bytes"
	"fmt"

	"github.com/seeing-things/point"
)

// Terminator ends every reply.
const Terminator = '#'

// Codec encodes hand controller commands and frames their replies.
type Codec struct{}

// Name implements point.Codec.
func (Codec) Name() string {
	return "nexstar"
}

// Encode implements point.Codec.
func (Codec) Encode(cmd point.Command) ([]byte, error) {
	err := checkReply(cmd)

	if err != nil {
		return nil, err
	}

	return append([]byte(cmd.Opcode), cmd.Params...), nil
}

// checkReply fails unless cmd expects the reply its opcode is defined with.
func checkReply(cmd point.Command) error {
	op, d, err := lookup(cmd.Opcode)

	if err != nil {
		return err
	}

	err = d.check(cmd.Params)

	if err != nil {
		return err
	}

	if want := d.replyFor(op, cmd.Params); cmd.Reply != want {
		return fmt.Errorf("%w: %s replies are %s, not %s", point.ErrEncoding, d.name, want, cmd.Reply)
	}

	return nil
}

// Frame implements point.Codec. Binary replies may contain the terminator
// byte, so only its expected position is checked.
func (Codec) Frame(buf []byte, cmd point.Command) (int, error) {
	err := checkReply(cmd)

	if err != nil {
		return 0, err
	}

	if len(buf) == 0 {
		return 0, nil
	}

	switch cmd.Reply.Kind {
	case point.ReplyAck:
		if buf[0] != Terminator {
			return 0, fmt.Errorf("%w: %s expected %q, got %q", point.ErrFraming, cmd, Terminator, buf[0])
		}

		return 1, nil
	case point.ReplyFixed:
		n := cmd.Reply.Len

		if asciiReply(cmd) {
			head := buf

			if len(head) > n {
				head = head[:n]
			}

			if bytes.IndexByte(head, Terminator) >= 0 {
				return 0, fmt.Errorf("%w: %s reply %q is short", point.ErrFraming, cmd, buf)
			}
		}

		if len(buf) <= n {
			return 0, nil
		}

		if buf[n] != Terminator {
			return 0, fmt.Errorf("%w: %s reply has no terminator after %d bytes", point.ErrFraming, cmd, n)
		}

		return n + 1, nil
	default:
		return 0, fmt.Errorf("%w: %s cannot frame %s replies", point.ErrFraming, cmd, cmd.Reply)
	}
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

	payload := frame[:n-1]

	return point.Response{
		Raw:     frame,
		Payload: payload,
		NoData:  len(payload) == 0,
	}, nil
}

func asciiReply(cmd point.Command) bool {
	_, d, err := lookup(cmd.Opcode)

	return err == nil && d.asciiReply
}
