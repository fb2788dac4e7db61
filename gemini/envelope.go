package gemini

import (
	"encoding/binary"
	"fmt"

	"github.com/seeing-things/point"
)

// DefaultPort is the UDP port of the controller.
const DefaultPort = 11110

// MaxPayload is the longest payload a datagram may carry.
const MaxPayload = 255

// headerSize covers the sequence number and the length field.
const headerSize = 4

// UDPEnvelope frames a command as
//
//	[seq:uint16][length:uint16][payload][checksum:uint8]
//
// in network byte order. The checksum is the XOR of the length bytes and
// every payload byte, so any single flipped bit is detected.
type UDPEnvelope struct{}

func envelopeChecksum(b []byte) byte {
	var sum byte

	for _, c := range b {
		sum ^= c
	}

	return sum
}

// Wrap implements point.Envelope.
func (UDPEnvelope) Wrap(seq uint16, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", point.ErrEncoding, len(payload), MaxPayload)
	}

	out := make([]byte, headerSize, headerSize+len(payload)+1)

	binary.BigEndian.PutUint16(out[0:2], seq)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(payload)))

	out = append(out, payload...)

	return append(out, envelopeChecksum(out[2:])), nil
}

// Unwrap implements point.Envelope.
func (UDPEnvelope) Unwrap(datagram []byte) (uint16, []byte, error) {
	if len(datagram) < headerSize+1 {
		return 0, nil, fmt.Errorf("%w: datagram of %d bytes is too short", point.ErrFraming, len(datagram))
	}

	seq := binary.BigEndian.Uint16(datagram[0:2])
	length := int(binary.BigEndian.Uint16(datagram[2:4]))

	if length != len(datagram)-headerSize-1 {
		return 0, nil, fmt.Errorf("%w: length field %d, datagram carries %d bytes", point.ErrFraming, length, len(datagram)-headerSize-1)
	}

	end := len(datagram) - 1
	want, got := envelopeChecksum(datagram[2:end]), datagram[end]

	if want != got {
		return 0, nil, &point.ChecksumError{Want: uint16(want), Got: uint16(got)}
	}

	return seq, datagram[headerSize:end], nil
}
