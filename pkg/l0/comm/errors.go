package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrBadHeaderCRC indicates the header check byte mismatched.
	ErrBadHeaderCRC = errors.New("bad header crc")
	// ErrBadFrameCRC indicates the frame trailer mismatched.
	ErrBadFrameCRC = errors.New("bad frame crc")
	// ErrTimeout indicates a frame was abandoned after inactivity.
	ErrTimeout = errors.New("frame timeout")
	// ErrOverflow indicates more bytes arrived than a frame may hold.
	ErrOverflow = errors.New("frame overflow")
	// ErrUnknownCommand indicates an unsupported command was addressed to the node.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrAddressOutOfRange indicates a parameter address outside the table.
	ErrAddressOutOfRange = errors.New("address out of range")
	// ErrPayloadTooLarge indicates a frame can't be encoded.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrNoTimer indicates the timer service has no free timer.
	ErrNoTimer = errors.New("no timer available")
	// ErrNoReply indicates no reply received from peer.
	// This happens when a reply is received for a latter command, and all
	// previous commands fail with this error.
	ErrNoReply = errors.New("no reply")
)

// ResponseError reports a reply which doesn't match the request.
type ResponseError struct {
	Command Command
	Reason  string
}

// Error implements error.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected %v response: %s", e.Command, e.Reason)
}
