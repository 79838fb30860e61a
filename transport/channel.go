// Package transport defines the unreliable datagram channel the protocol
// runs over, and a UDP implementation of it.
package transport

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by Receive when no datagram arrived in time.
	ErrTimeout = errors.New("transport: receive timeout")
	// ErrClosed is returned once the channel has been closed.
	ErrClosed = errors.New("transport: channel closed")
)

// Channel is a point-to-point datagram path with no delivery or ordering
// guarantee. Each Receive returns at most one datagram.
type Channel interface {
	// Send transmits one datagram.
	Send(datagram []byte) error
	// Receive waits up to timeout for the next datagram. A timeout <= 0
	// blocks until a datagram arrives or the channel is closed.
	Receive(timeout time.Duration) ([]byte, error)
	Close() error
}

// IsTimeout reports whether err is a recoverable receive timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
