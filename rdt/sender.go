package rdt

import (
	"fmt"
	"time"

	"github.com/kasader/rdt/pkg/segment"
	"github.com/kasader/rdt/transport"
	"github.com/rs/zerolog"
)

// Sender transmits byte buffers over a channel.
type Sender struct {
	ch      transport.Channel
	cfg     Config
	log     zerolog.Logger
	metrics *Metrics
}

// NewSender validates cfg and binds a sender to ch.
func NewSender(ch transport.Channel, cfg Config, opts ...Option) (*Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Sender{
		ch:      ch,
		cfg:     cfg,
		log:     o.log,
		metrics: o.metrics,
	}, nil
}

// Send delivers data and then closes the stream with a FIN handshake. It
// returns once the receiver has acknowledged the FIN.
func Send(ch transport.Channel, data []byte, opts ...Option) error {
	s, err := NewSender(ch, DefaultConfig(), opts...)
	if err != nil {
		return err
	}
	return s.Send(data)
}

// Send delivers data and then closes the stream with a FIN handshake.
func (s *Sender) Send(data []byte) error {
	chunks, err := newChunker(data, s.cfg.ChunkSize())
	if err != nil {
		return err
	}
	loop := &sendLoop{
		Sender: s,
		chunks: chunks,
		win:    newWindow(s.cfg.WindowSize),
		rtt:    NewEstimator(s.cfg),
	}
	s.log.Info().Int("bytes", len(data)).Int("segments", chunks.total).Msg("send started")
	if err := loop.transfer(); err != nil {
		return err
	}
	return loop.finish()
}

// sendLoop is the state of one Send call.
type sendLoop struct {
	*Sender
	chunks *chunker
	win    *window
	rtt    *Estimator

	deadline time.Time
	retries  int
}

func (l *sendLoop) transfer() error {
	for l.chunks.remaining() || !l.win.empty() {
		if err := l.fill(); err != nil {
			return err
		}

		wait := time.Until(l.deadline)
		if wait <= 0 {
			if err := l.retransmit(); err != nil {
				return err
			}
			continue
		}

		datagram, err := l.ch.Receive(wait)
		if transport.IsTimeout(err) {
			if err := l.retransmit(); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("rdt: await ack: %w", err)
		}
		l.onAck(datagram, time.Now())
	}
	return nil
}

// fill sends new chunks until the window is full or the input is exhausted.
func (l *sendLoop) fill() error {
	for l.chunks.remaining() && !l.win.full() {
		seq, chunk := l.chunks.take()
		packet := segment.Encode(segment.Data(seq, chunk))
		if err := l.ch.Send(packet); err != nil {
			return fmt.Errorf("rdt: send segment %d: %w", seq, err)
		}
		now := time.Now()
		if l.win.empty() {
			l.deadline = now.Add(l.rtt.TimeoutDuration())
		}
		l.win.push(inflight{seq: seq, packet: packet, sentAt: now})
		l.metrics.segmentSent()
		l.log.Debug().Uint32("seq", seq).Int("len", len(chunk)).Msg("segment sent")
	}
	return nil
}

// onAck applies one cumulative ACK.
func (l *sendLoop) onAck(datagram []byte, now time.Time) {
	seg, err := segment.Decode(datagram)
	if err != nil {
		l.metrics.malformed()
		l.log.Debug().Int("len", len(datagram)).Msg("discarded malformed datagram")
		return
	}
	if seg.Kind == segment.KindFin {
		return
	}
	removed := l.win.ackThrough(seg.Seq)
	if len(removed) == 0 {
		l.log.Debug().Uint32("ack", seg.Seq).Msg("stale ack")
		return
	}
	l.metrics.ackReceived()

	oldest := removed[0]
	if !oldest.retransmitted {
		sample := now.Sub(oldest.sentAt).Seconds()
		l.rtt.Observe(sample)
		l.metrics.rttSample(sample, l.rtt.Timeout())
	}
	l.retries = 0
	l.deadline = now.Add(l.rtt.TimeoutDuration())
	l.log.Debug().
		Uint32("ack", seg.Seq).
		Int("retired", len(removed)).
		Float64("rto", l.rtt.Timeout()).
		Msg("ack received")
}

// retransmit resends the whole window in order.
func (l *sendLoop) retransmit() error {
	if l.win.empty() {
		return nil
	}
	l.retries++
	if l.cfg.MaxRetries > 0 && l.retries > l.cfg.MaxRetries {
		return fmt.Errorf("%w: segment %d unacknowledged after %d retransmissions",
			ErrDeliveryFailed, l.win.entries[0].seq, l.cfg.MaxRetries)
	}
	for _, e := range l.win.entries {
		if err := l.ch.Send(e.packet); err != nil {
			return fmt.Errorf("rdt: retransmit segment %d: %w", e.seq, err)
		}
	}
	l.win.markRetransmitted()
	l.metrics.retransmitted(l.win.len())
	l.rtt.Backoff()
	l.deadline = time.Now().Add(l.rtt.TimeoutDuration())
	l.log.Info().
		Uint32("first", l.win.entries[0].seq).
		Int("count", l.win.len()).
		Dur("rto", l.rtt.TimeoutDuration()).
		Msg("timeout, retransmitted window")
	return nil
}

// finish runs the FIN handshake. Anything other than FIN-ACK is ignored.
func (l *sendLoop) finish() error {
	fin := segment.Encode(segment.Fin())
	wait := l.finWait()

	if err := l.ch.Send(fin); err != nil {
		return fmt.Errorf("rdt: send fin: %w", err)
	}
	l.log.Info().Msg("sent FIN")

	attempts := 0
	deadline := time.Now().Add(wait)
	for {
		if remaining := time.Until(deadline); remaining > 0 {
			datagram, err := l.ch.Receive(remaining)
			if err == nil {
				if segment.IsFin(datagram) {
					l.log.Info().Msg("received FIN-ACK, closing")
					return nil
				}
				continue
			}
			if !transport.IsTimeout(err) {
				return fmt.Errorf("rdt: await fin-ack: %w", err)
			}
		}

		attempts++
		if l.cfg.MaxRetries > 0 && attempts > l.cfg.MaxRetries {
			return fmt.Errorf("%w: FIN unacknowledged after %d retransmissions", ErrDeliveryFailed, l.cfg.MaxRetries)
		}
		if err := l.ch.Send(fin); err != nil {
			return fmt.Errorf("rdt: resend fin: %w", err)
		}
		l.metrics.retransmitted(1)
		l.rtt.Backoff()
		wait = l.finWait()
		deadline = time.Now().Add(wait)
		l.log.Info().Int("attempt", attempts).Dur("wait", wait).Msg("timeout, resent FIN")
	}
}

// finWait is how long to wait for FIN-ACK before resending FIN.
func (l *sendLoop) finWait() time.Duration {
	rto := l.rtt.TimeoutDuration()
	wait := time.Duration(l.cfg.FinTimeoutFactor * float64(rto))
	if wait <= 0 {
		wait = rto
	}
	return wait
}
