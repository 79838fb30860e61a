package rdt

import (
	"fmt"
	"io"
	"time"

	"github.com/kasader/rdt/pkg/segment"
	"github.com/kasader/rdt/transport"
	"github.com/rs/zerolog"
)

// flusher is implemented by buffered sinks such as *bufio.Writer.
type flusher interface {
	Flush() error
}

// Receiver reassembles a stream from a channel into a sink.
type Receiver struct {
	ch      transport.Channel
	cfg     Config
	log     zerolog.Logger
	metrics *Metrics
}

// NewReceiver validates cfg and binds a receiver to ch.
func NewReceiver(ch transport.Channel, cfg Config, opts ...Option) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Receiver{
		ch:      ch,
		cfg:     cfg,
		log:     o.log,
		metrics: o.metrics,
	}, nil
}

// Recv writes the incoming stream to w until the sender's FIN and returns
// the number of bytes written.
func Recv(ch transport.Channel, w io.Writer, opts ...Option) (int64, error) {
	r, err := NewReceiver(ch, DefaultConfig(), opts...)
	if err != nil {
		return 0, err
	}
	return r.Recv(w)
}

// Recv writes the incoming stream to w until the sender's FIN and returns
// the number of bytes written.
func (r *Receiver) Recv(w io.Writer) (int64, error) {
	loop := &recvLoop{
		Receiver: r,
		w:        w,
		pending:  make(map[uint32][]byte),
	}
	return loop.run()
}

// recvLoop is the state of one Recv call. Every key in pending is >= expected.
type recvLoop struct {
	*Receiver
	w        io.Writer
	expected uint32
	pending  map[uint32][]byte
	written  int64
}

func (l *recvLoop) run() (int64, error) {
	for {
		datagram, err := l.ch.Receive(0)
		if transport.IsTimeout(err) {
			continue
		}
		if err != nil {
			return l.written, fmt.Errorf("rdt: receive: %w", err)
		}
		if len(datagram) == 0 {
			continue
		}

		seg, err := segment.Decode(datagram)
		if err != nil {
			l.metrics.malformed()
			l.log.Debug().Int("len", len(datagram)).Msg("discarded malformed datagram")
			continue
		}

		if seg.Kind == segment.KindFin {
			l.log.Info().Int64("bytes", l.written).Msg("received FIN, sending FIN-ACK")
			if err := l.ch.Send(segment.Encode(segment.Fin())); err != nil {
				return l.written, fmt.Errorf("rdt: send fin-ack: %w", err)
			}
			l.linger()
			return l.written, nil
		}

		if err := l.onData(seg); err != nil {
			return l.written, err
		}
		if err := l.ack(); err != nil {
			return l.written, err
		}
	}
}

// onData buffers seg and delivers every segment now contiguous with expected.
func (l *recvLoop) onData(seg segment.Segment) error {
	if seg.Seq < l.expected {
		l.metrics.duplicate()
		l.log.Debug().Uint32("seq", seg.Seq).Msg("duplicate segment")
		return nil
	}
	l.pending[seg.Seq] = seg.Payload

	for {
		payload, ok := l.pending[l.expected]
		if !ok {
			return nil
		}
		delete(l.pending, l.expected)
		n, err := l.w.Write(payload)
		l.written += int64(n)
		if err != nil {
			return fmt.Errorf("rdt: write segment %d: %w", l.expected, err)
		}
		if f, ok := l.w.(flusher); ok {
			if err := f.Flush(); err != nil {
				return fmt.Errorf("rdt: flush segment %d: %w", l.expected, err)
			}
		}
		l.metrics.delivered(n)
		l.log.Debug().Uint32("seq", l.expected).Int("len", n).Msg("segment delivered")
		l.expected++
	}
}

// ack reports the highest in-order sequence number. Before anything has
// been delivered there is nothing to acknowledge: expected-1 would wrap to
// the FIN sentinel.
func (l *recvLoop) ack() error {
	if l.expected == 0 {
		return nil
	}
	if err := l.ch.Send(segment.EncodeAck(l.expected - 1)); err != nil {
		return fmt.Errorf("rdt: send ack %d: %w", l.expected-1, err)
	}
	return nil
}

// linger answers retransmitted FINs until Config.Linger passes quietly, in
// case the FIN-ACK was lost. Channel errors end it early.
func (l *recvLoop) linger() {
	if l.cfg.Linger <= 0 {
		return
	}
	deadline := time.Now().Add(l.cfg.Linger)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		datagram, err := l.ch.Receive(remaining)
		if err != nil {
			return
		}
		if !segment.IsFin(datagram) {
			continue
		}
		if err := l.ch.Send(segment.Encode(segment.Fin())); err != nil {
			return
		}
		deadline = time.Now().Add(l.cfg.Linger)
		l.log.Debug().Msg("repeated FIN, resent FIN-ACK")
	}
}
