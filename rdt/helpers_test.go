package rdt

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/kasader/rdt/internal/simnet"
	"github.com/kasader/rdt/pkg/segment"
	"github.com/kasader/rdt/transport"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fastConfig keeps timers short so lossy transfers finish quickly.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxDatagram = 68
	cfg.WindowSize = 4
	cfg.InitialRTT = 20 * time.Millisecond
	cfg.InitialDeviation = 5 * time.Millisecond
	cfg.MinTimeout = 5 * time.Millisecond
	cfg.MaxTimeout = 80 * time.Millisecond
	cfg.Linger = time.Second
	return cfg
}

type transferResult struct {
	out     []byte
	n       int64
	sendErr error
	recvErr error
}

// transfer runs a Sender and a Receiver over a simnet pipe and waits for both.
func transfer(t *testing.T, cfg Config, link simnet.LinkConfig, data []byte, log zerolog.Logger) transferResult {
	t.Helper()
	a, b, err := simnet.Pipe(link)
	require.NoError(t, err)
	return transferOver(t, cfg, a, b, data, log)
}

func transferOver(t *testing.T, cfg Config, sendCh, recvCh transport.Channel, data []byte, log zerolog.Logger) transferResult {
	t.Helper()
	sender, err := NewSender(sendCh, cfg, WithLogger(log.With().Str("role", "sender").Logger()))
	require.NoError(t, err)
	receiver, err := NewReceiver(recvCh, cfg, WithLogger(log.With().Str("role", "receiver").Logger()))
	require.NoError(t, err)

	var (
		res transferResult
		out bytes.Buffer
		wg  sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.n, res.recvErr = receiver.Recv(&out)
	}()
	go func() {
		defer wg.Done()
		res.sendErr = sender.Send(data)
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		sendCh.Close()
		recvCh.Close()
		<-done
		t.Fatal("transfer did not terminate")
	}
	res.out = out.Bytes()
	return res
}

// recorder wraps a sender-side channel and tracks the peak number of
// unacknowledged data segments.
type recorder struct {
	transport.Channel

	mu      sync.Mutex
	sent    []segment.Segment
	maxSent int64
	acked   int64
	peak    int64
}

func newRecorder(ch transport.Channel) *recorder {
	return &recorder{Channel: ch, maxSent: -1, acked: -1}
}

func (r *recorder) Send(datagram []byte) error {
	seg, err := segment.Decode(datagram)
	if err == nil {
		r.mu.Lock()
		r.sent = append(r.sent, seg)
		if seg.Kind == segment.KindData && int64(seg.Seq) > r.maxSent {
			r.maxSent = int64(seg.Seq)
		}
		if inflight := r.maxSent - r.acked; inflight > r.peak {
			r.peak = inflight
		}
		r.mu.Unlock()
	}
	return r.Channel.Send(datagram)
}

func (r *recorder) Receive(timeout time.Duration) ([]byte, error) {
	datagram, err := r.Channel.Receive(timeout)
	if err == nil {
		if seg, derr := segment.Decode(datagram); derr == nil && seg.Kind == segment.KindData {
			r.mu.Lock()
			if int64(seg.Seq) > r.acked {
				r.acked = int64(seg.Seq)
			}
			r.mu.Unlock()
		}
	}
	return datagram, err
}

func (r *recorder) segments() []segment.Segment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]segment.Segment, len(r.sent))
	copy(out, r.sent)
	return out
}

// scripted is a Channel fed from a fixed list of datagrams; it records
// everything sent through it.
type scripted struct {
	in     chan []byte
	closed chan struct{}

	mu   sync.Mutex
	sent [][]byte
}

func newScripted(datagrams ...[]byte) *scripted {
	s := &scripted{in: make(chan []byte, len(datagrams)+1), closed: make(chan struct{})}
	for _, d := range datagrams {
		s.in <- d
	}
	return s
}

func (s *scripted) Send(datagram []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, datagram)
	return nil
}

func (s *scripted) Receive(timeout time.Duration) ([]byte, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		expired = time.After(timeout)
	}
	select {
	case d := <-s.in:
		return d, nil
	case <-s.closed:
		return nil, transport.ErrClosed
	case <-expired:
		return nil, transport.ErrTimeout
	}
}

func (s *scripted) Close() error {
	close(s.closed)
	return nil
}

func (s *scripted) outbox() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}
