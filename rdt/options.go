package rdt

import "github.com/rs/zerolog"

type options struct {
	log     zerolog.Logger
	metrics *Metrics
}

// Option customises a Sender or Receiver.
type Option func(*options)

// WithLogger sets the progress event sink. The default discards events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records protocol counters into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
