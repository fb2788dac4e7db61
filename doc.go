// Package point sends commands to telescope mounts and validates their
// replies.
//
// A Session ties a Transport (serial port, UDP socket, in-memory stream) to
// the Codec of one mount protocol. Stream sessions write a command and read
// until the codec reports a complete reply. Datagram sessions wrap every
// command in an Envelope with a sequence number, resend it when no valid
// reply arrives and discard replies that fail validation.
//
// The protocol packages (nexstar, gemini) build commands and interpret
// replies; the angle package converts the values they carry.
package point
