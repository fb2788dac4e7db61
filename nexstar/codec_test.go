package nexstar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seeing-things/point"
	"github.com/seeing-things/point/angle"
)

func TestEncode(t *testing.T) {
	var tests = []struct {
		op     Op
		params []byte
		out    []byte
	}{
		{OpGetRaDec, nil, []byte("E")},
		{OpGetAzAltPrecise, nil, []byte("z")},
		{OpGotoRaDec, []byte("4000,2000"), []byte("R4000,2000")},
		{OpSetTrackingMode, []byte{2}, []byte{'T', 2}},
		{OpPassThrough, []byte{3, 16, 6, 0, 40, 0, 0}, []byte{'P', 3, 16, 6, 0, 40, 0, 0}},
		{OpEcho, []byte{'#'}, []byte("K#")},
	}

	for _, test := range tests {
		cmd, err := NewCommand(test.op, test.params)
		require.NoError(t, err)

		out, err := Codec{}.Encode(cmd)
		require.NoError(t, err)
		assert.Equal(t, test.out, out)
	}
}

func TestEncodeInvalid(t *testing.T) {
	_, err := NewCommand(OpGotoRaDec, []byte("4000"))
	assert.ErrorIs(t, err, point.ErrEncoding)

	_, err = NewCommand(OpGotoRaDec, []byte("4000,20\x01\x02"))
	assert.ErrorIs(t, err, point.ErrEncoding)

	_, err = NewCommand(Op('X'), nil)
	assert.ErrorIs(t, err, point.ErrEncoding)

	_, err = Codec{}.Encode(point.Command{Opcode: "EE", Reply: point.Fixed(9)})
	assert.ErrorIs(t, err, point.ErrEncoding)

	_, err = Codec{}.Encode(point.Command{Opcode: "E", Reply: point.Terminated(9)})
	assert.ErrorIs(t, err, point.ErrEncoding)

	// The reply length must match the last pass through byte.
	_, err = Codec{}.Encode(point.Command{
		Opcode: "P",
		Params: []byte{1, 16, 1, 0, 0, 0, 3},
		Reply:  point.Ack(),
	})
	assert.ErrorIs(t, err, point.ErrEncoding)
}

func TestPassThroughReply(t *testing.T) {
	cmd, err := NewCommand(OpPassThrough, []byte{1, 16, 1, 0, 0, 0, 3})
	require.NoError(t, err)
	assert.Equal(t, point.Fixed(3), cmd.Reply)

	cmd, err = NewCommand(OpPassThrough, []byte{3, 16, 6, 0, 40, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, point.Ack(), cmd.Reply)
}

func TestFrame(t *testing.T) {
	getRaDec, _ := NewCommand(OpGetRaDec, nil)
	getTime, _ := NewCommand(OpGetTime, nil)
	gotoCmd, _ := NewCommand(OpGotoRaDec, []byte("4000,2000"))

	var tests = []struct {
		cmd point.Command
		buf []byte
		n   int
		err error
	}{
		{getRaDec, nil, 0, nil},
		{getRaDec, []byte("1234,"), 0, nil},
		{getRaDec, []byte("1234,5678"), 0, nil},
		{getRaDec, []byte("1234,5678#"), 10, nil},
		{getRaDec, []byte("1234,5678#junk"), 10, nil},
		{getRaDec, []byte("12#"), 0, point.ErrFraming},
		{getRaDec, []byte("1234,56789"), 0, point.ErrFraming},
		{gotoCmd, []byte("#"), 1, nil},
		{gotoCmd, []byte("x"), 0, point.ErrFraming},

		// Binary replies may carry the terminator byte.
		{getTime, []byte{1, 2, '#', 4, 5, 6, 7, 8, '#'}, 9, nil},
	}

	for _, test := range tests {
		n, err := Codec{}.Frame(test.buf, test.cmd)

		if test.err != nil {
			assert.ErrorIs(t, err, test.err, "%q", test.buf)
			continue
		}

		require.NoError(t, err, "%q", test.buf)
		assert.Equal(t, test.n, n, "%q", test.buf)
	}
}

func TestDecode(t *testing.T) {
	cmd, _ := NewCommand(OpGetRaDec, nil)

	r, err := Codec{}.Decode([]byte("1234,5678#"), cmd)
	require.NoError(t, err)
	assert.Equal(t, []byte("1234,5678"), r.Payload)
	assert.False(t, r.NoData)

	gotoCmd, _ := NewCommand(OpGotoRaDec, []byte("4000,2000"))

	r, err = Codec{}.Decode([]byte("#"), gotoCmd)
	require.NoError(t, err)
	assert.True(t, r.NoData)

	_, err = Codec{}.Decode([]byte("1234,5678#x"), cmd)
	assert.ErrorIs(t, err, point.ErrFraming)

	_, err = Codec{}.Decode(nil, cmd)
	assert.ErrorIs(t, err, point.ErrFraming)
}

func TestDecodeBinaryAngle(t *testing.T) {
	// Pass through position request answered with four binary bytes.
	cmd, err := NewCommand(OpPassThrough, []byte{1, byte(DeviceAzmRA), mcGetPosition, 0, 0, 0, 4})
	require.NoError(t, err)
	assert.Equal(t, point.Fixed(4), cmd.Reply)

	r, err := Codec{}.Decode([]byte("1234#"), cmd)
	require.NoError(t, err)

	a, err := angle.Bin32.Decode(r.Payload)
	require.NoError(t, err)
	assert.Equal(t, int64(0x31323334), a.Ticks)
}

func TestReplyShapeFixedByOpcode(t *testing.T) {
	var tests = []point.Command{
		{Opcode: "E", Reply: point.Fixed(4)},
		{Opcode: "Z", Reply: point.Fixed(4)},
		{Opcode: "R", Params: []byte("4000,2000"), Reply: point.Fixed(9)},
		{Opcode: "M", Reply: point.Fixed(1)},
		{Opcode: "t", Reply: point.Ack()},
	}

	for _, cmd := range tests {
		_, err := Codec{}.Encode(cmd)
		assert.ErrorIs(t, err, point.ErrEncoding, cmd.Opcode)

		_, err = Codec{}.Frame([]byte("1234#"), cmd)
		assert.ErrorIs(t, err, point.ErrEncoding, cmd.Opcode)

		_, err = Codec{}.Decode([]byte("1234#"), cmd)
		assert.ErrorIs(t, err, point.ErrEncoding, cmd.Opcode)
	}
}

func TestParseLine(t *testing.T) {
	var tests = []struct {
		line   string
		params []byte
		reply  point.Shape
	}{
		{"E", nil, point.Fixed(9)},
		{"T 0x02", []byte{2}, point.Ack()},
		{"R 4000,2000", []byte("4000,2000"), point.Ack()},
		{"P 0x01 0x10 0x01 0x00 0x00 0x00 0x03", []byte{1, 16, 1, 0, 0, 0, 3}, point.Fixed(3)},
	}

	for _, test := range tests {
		cmd, err := ParseLine(test.line)
		require.NoError(t, err, test.line)
		assert.Equal(t, test.line[:1], cmd.Opcode, test.line)
		assert.Equal(t, test.params, cmd.Params, test.line)
		assert.Equal(t, test.reply, cmd.Reply, test.line)
	}

	for _, line := range []string{"", "X", "T 0xZZ", "T 0x100", "R 4000"} {
		_, err := ParseLine(line)
		assert.ErrorIs(t, err, point.ErrEncoding, line)
	}
}
