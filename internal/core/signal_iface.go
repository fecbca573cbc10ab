package core

import "errors"

// Frame is a raw outbound payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// TrySend must not block: frames for one connection leave in the order they were accepted.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)
