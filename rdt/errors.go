package rdt

import "errors"

var (
	ErrInvalidConfig = errors.New("rdt: invalid config")
	// ErrTooLarge is returned when the input needs more sequence numbers
	// than the wire format can carry.
	ErrTooLarge = errors.New("rdt: input too large for sequence space")
	// ErrDeliveryFailed is returned when Config.MaxRetries consecutive
	// retransmissions went unanswered.
	ErrDeliveryFailed = errors.New("rdt: delivery failed")
)
