// Package simnet joins two transport.Channel endpoints with Go channels and
// injects loss, duplication, delay and reordering between them.
package simnet

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasader/rdt/transport"
)

// LinkConfig describes the impairments applied to every datagram, in both
// directions.
type LinkConfig struct {
	Loss      float64       // probability a datagram is dropped
	Duplicate float64       // probability a delivered datagram is delivered twice
	Delay     time.Duration // base one-way delay
	Jitter    time.Duration // extra uniform random delay; reorders datagrams
	Seed      int64
	QueueLen  int // per-direction inbox size; full inboxes drop
}

// Perfect is a lossless, in-order link.
func Perfect() LinkConfig {
	return LinkConfig{QueueLen: 256}
}

// Validate checks probabilities and sizes.
func (c LinkConfig) Validate() error {
	if c.Loss < 0 || c.Loss >= 1 {
		return fmt.Errorf("simnet: loss %v must be in [0,1)", c.Loss)
	}
	if c.Duplicate < 0 || c.Duplicate > 1 {
		return fmt.Errorf("simnet: duplicate %v must be in [0,1]", c.Duplicate)
	}
	if c.Delay < 0 || c.Jitter < 0 {
		return fmt.Errorf("simnet: negative delay")
	}
	return nil
}

type link struct {
	cfg LinkConfig

	mu  sync.Mutex
	rng *rand.Rand
}

func (l *link) roll() (drop, dup bool, delays [2]time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	drop = l.rng.Float64() < l.cfg.Loss
	dup = l.rng.Float64() < l.cfg.Duplicate
	for i := range delays {
		delays[i] = l.cfg.Delay
		if l.cfg.Jitter > 0 {
			delays[i] += time.Duration(l.rng.Int63n(int64(l.cfg.Jitter)))
		}
	}
	return drop, dup, delays
}

// Endpoint is one side of a Pipe.
type Endpoint struct {
	link  *link
	inbox chan []byte
	peer  *Endpoint

	closed    chan struct{}
	closeOnce sync.Once

	sent    atomic.Int64
	dropped atomic.Int64
}

// Pipe returns two connected endpoints.
func Pipe(cfg LinkConfig) (*Endpoint, *Endpoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 256
	}
	l := &link{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
	a := newEndpoint(l)
	b := newEndpoint(l)
	a.peer, b.peer = b, a
	return a, b, nil
}

func newEndpoint(l *link) *Endpoint {
	return &Endpoint{
		link:   l,
		inbox:  make(chan []byte, l.cfg.QueueLen),
		closed: make(chan struct{}),
	}
}

// Send hands a copy of datagram to the link. Loss is silent, as on a real
// network.
func (e *Endpoint) Send(datagram []byte) error {
	select {
	case <-e.closed:
		return transport.ErrClosed
	default:
	}
	e.sent.Add(1)

	drop, dup, delays := e.link.roll()
	if drop {
		e.dropped.Add(1)
		return nil
	}
	copies := 1
	if dup {
		copies = 2
	}
	for i := 0; i < copies; i++ {
		data := make([]byte, len(datagram))
		copy(data, datagram)
		if delays[i] <= 0 {
			e.deliver(data)
			continue
		}
		time.AfterFunc(delays[i], func() { e.deliver(data) })
	}
	return nil
}

// deliver queues data on the peer. A full peer queue counts as a drop here,
// on the sending side.
func (e *Endpoint) deliver(data []byte) {
	select {
	case <-e.peer.closed:
		return
	default:
	}
	select {
	case e.peer.inbox <- data:
	default:
		e.dropped.Add(1)
	}
}

// Receive waits for the next datagram.
func (e *Endpoint) Receive(timeout time.Duration) ([]byte, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case data := <-e.inbox:
		return data, nil
	case <-e.closed:
		return nil, transport.ErrClosed
	case <-expired:
		return nil, transport.ErrTimeout
	}
}

// Close shuts this endpoint. The peer keeps running; its datagrams are lost.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() { close(e.closed) })
	return nil
}

// Sent is the number of datagrams handed to Send.
func (e *Endpoint) Sent() int64 { return e.sent.Load() }

// Dropped is the number of datagrams sent from this endpoint that the link
// lost, either to the loss roll or to a full peer queue. Datagrams arriving
// after the peer closed are discarded without being counted.
func (e *Endpoint) Dropped() int64 { return e.dropped.Load() }
