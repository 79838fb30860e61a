package rdt

import (
	"fmt"
	"time"

	"github.com/kasader/rdt/pkg/segment"
)

// Config holds protocol parameters. Both ends must agree on MaxDatagram.
type Config struct {
	// MaxDatagram is the largest datagram either end sends, header included.
	MaxDatagram int
	// WindowSize bounds the number of unacknowledged segments in flight.
	WindowSize int

	// InitialRTT and InitialDeviation seed the retransmission timer.
	InitialRTT       time.Duration
	InitialDeviation time.Duration
	// MinTimeout and MaxTimeout clamp the retransmission timeout; zero
	// disables the bound.
	MinTimeout time.Duration
	MaxTimeout time.Duration

	// FinTimeoutFactor scales the retransmission timeout while waiting
	// for FIN-ACK.
	FinTimeoutFactor float64
	// MaxRetries is the number of consecutive unanswered retransmissions
	// after which Send gives up. Zero retries forever.
	MaxRetries int

	// Linger keeps the receiver answering repeated FINs for this long
	// after its first FIN-ACK. Zero returns immediately.
	Linger time.Duration
}

// DefaultConfig returns the parameters used when none are supplied.
func DefaultConfig() Config {
	return Config{
		MaxDatagram:      1024,
		WindowSize:       2,
		InitialRTT:       time.Second,
		InitialDeviation: 500 * time.Millisecond,
		FinTimeoutFactor: 2,
	}
}

// ChunkSize is the payload carried by each full data segment.
func (c Config) ChunkSize() int {
	return segment.ChunkSize(c.MaxDatagram)
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.MaxDatagram <= segment.HeaderSize:
		return fmt.Errorf("%w: max datagram %d must exceed header size %d", ErrInvalidConfig, c.MaxDatagram, segment.HeaderSize)
	case c.WindowSize < 1:
		return fmt.Errorf("%w: window size %d", ErrInvalidConfig, c.WindowSize)
	case c.InitialRTT <= 0:
		return fmt.Errorf("%w: initial rtt must be positive", ErrInvalidConfig)
	case c.InitialDeviation <= 0:
		return fmt.Errorf("%w: initial deviation must be positive", ErrInvalidConfig)
	case c.MinTimeout < 0 || c.MaxTimeout < 0:
		return fmt.Errorf("%w: negative timeout bound", ErrInvalidConfig)
	case c.MaxTimeout > 0 && c.MaxTimeout < c.MinTimeout:
		return fmt.Errorf("%w: max timeout %s below min timeout %s", ErrInvalidConfig, c.MaxTimeout, c.MinTimeout)
	case c.FinTimeoutFactor <= 0:
		return fmt.Errorf("%w: fin timeout factor must be positive", ErrInvalidConfig)
	case c.MaxRetries < 0:
		return fmt.Errorf("%w: max retries %d", ErrInvalidConfig, c.MaxRetries)
	case c.Linger < 0:
		return fmt.Errorf("%w: negative linger", ErrInvalidConfig)
	}
	return nil
}
