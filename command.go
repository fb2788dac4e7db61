package point

import "fmt"

// ReplyKind describes how the reply to a command is delimited.
type ReplyKind int

// The different reply kinds.
const (
	// ReplyNone means the mount sends nothing back over a stream transport.
	// Datagram transports still acknowledge the command.
	ReplyNone ReplyKind = iota

	// ReplyAck is a bare terminator.
	ReplyAck

	// ReplyFixed is exactly Len payload bytes followed by the terminator.
	ReplyFixed

	// ReplyTerminated is up to Len ASCII bytes followed by the terminator.
	ReplyTerminated

	// ReplyRaw is exactly Len bytes without a terminator.
	ReplyRaw

	// ReplyStatus is one status character. A status other than success is
	// followed by a message and the terminator.
	ReplyStatus
)

var replyKindNames = map[ReplyKind]string{
	ReplyNone:       "none",
	ReplyAck:        "ack",
	ReplyFixed:      "fixed",
	ReplyTerminated: "terminated",
	ReplyRaw:        "raw",
	ReplyStatus:     "status",
}

func (k ReplyKind) String() string {
	if name, ok := replyKindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("ReplyKind(%d)", int(k))
}

// Shape is the expected layout of a reply.
type Shape struct {
	Kind ReplyKind
	Len  int
}

// NoReply returns the shape of a command without a reply.
func NoReply() Shape {
	return Shape{Kind: ReplyNone}
}

// Ack returns the shape of an acknowledgement-only reply.
func Ack() Shape {
	return Shape{Kind: ReplyAck}
}

// Fixed returns the shape of a reply with n payload bytes and a terminator.
func Fixed(n int) Shape {
	return Shape{Kind: ReplyFixed, Len: n}
}

// Terminated returns the shape of a terminated reply of at most limit bytes.
func Terminated(limit int) Shape {
	return Shape{Kind: ReplyTerminated, Len: limit}
}

// Raw returns the shape of a reply of exactly n bytes without terminator.
func Raw(n int) Shape {
	return Shape{Kind: ReplyRaw, Len: n}
}

// Status returns the shape of a status reply with a message of at most limit
// bytes.
func Status(limit int) Shape {
	return Shape{Kind: ReplyStatus, Len: limit}
}

func (s Shape) String() string {
	switch s.Kind {
	case ReplyNone, ReplyAck:
		return s.Kind.String()
	default:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Len)
	}
}

// Command is a single request to a mount. Commands are built by the protocol
// packages and are not modified after construction.
type Command struct {
	// Name identifies the command in logs.
	Name string

	// Opcode is the command letter or mnemonic.
	Opcode string

	// Params holds the encoded parameter bytes.
	Params []byte

	// Reply is the expected reply layout.
	Reply Shape
}

func (c Command) String() string {
	if c.Name != "" {
		return c.Name
	}

	return fmt.Sprintf("%q", c.Opcode)
}

// Response is a validated reply to a command.
type Response struct {
	// Raw holds the reply frame as it was read.
	Raw []byte

	// Payload holds the reply with terminator, markers and checksum removed.
	Payload []byte

	// NoData is set when the mount acknowledged the command without data.
	NoData bool
}
