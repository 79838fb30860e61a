package rdt

import (
	"bytes"
	crand "crypto/rand"
	"testing"
	"time"

	"github.com/kasader/rdt/internal/simnet"
	"github.com/kasader/rdt/internal/testutil/testlog"
	"github.com/kasader/rdt/pkg/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := crand.Read(buf)
	require.NoError(t, err)
	return buf
}

func TestRoundTripSizes(t *testing.T) {
	log := testlog.Start(t)
	cfg := fastConfig()
	chunk := cfg.ChunkSize()

	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"single byte", 1},
		{"exactly one chunk", chunk},
		{"multi chunk", 3*chunk + 7},
		{"larger than window", 4*cfg.WindowSize*chunk + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := randomBytes(t, tt.size)
			res := transfer(t, cfg, simnet.Perfect(), want, log)
			require.NoError(t, res.sendErr)
			require.NoError(t, res.recvErr)
			assert.Equal(t, int64(len(want)), res.n)
			assert.True(t, bytes.Equal(want, res.out), "output differs from input")
		})
	}
}

func TestRoundTripImpairedLinks(t *testing.T) {
	log := testlog.Start(t)
	cfg := fastConfig()
	want := randomBytes(t, 40*cfg.ChunkSize()+13)

	tests := []struct {
		name string
		link simnet.LinkConfig
	}{
		{"loss", simnet.LinkConfig{Loss: 0.2, Seed: 1}},
		{"heavy loss", simnet.LinkConfig{Loss: 0.3, Seed: 2}},
		{"duplication", simnet.LinkConfig{Duplicate: 0.3, Seed: 3}},
		{"reordering", simnet.LinkConfig{Delay: time.Millisecond, Jitter: 8 * time.Millisecond, Seed: 4}},
		{"everything", simnet.LinkConfig{Loss: 0.15, Duplicate: 0.15, Delay: time.Millisecond, Jitter: 5 * time.Millisecond, Seed: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := transfer(t, cfg, tt.link, want, log)
			require.NoError(t, res.sendErr)
			require.NoError(t, res.recvErr)
			assert.Equal(t, int64(len(want)), res.n)
			assert.Equal(t, want, res.out)
		})
	}
}

func TestWindowBoundUnderLoss(t *testing.T) {
	log := testlog.Start(t)
	cfg := fastConfig()
	cfg.WindowSize = 3
	a, b, err := simnet.Pipe(simnet.LinkConfig{Loss: 0.25, Jitter: 3 * time.Millisecond, Seed: 11})
	require.NoError(t, err)

	rec := newRecorder(a)
	want := randomBytes(t, 25*cfg.ChunkSize())
	res := transferOver(t, cfg, rec, b, want, log)
	require.NoError(t, res.sendErr)
	require.NoError(t, res.recvErr)
	assert.Equal(t, want, res.out)
	assert.LessOrEqual(t, rec.peak, int64(cfg.WindowSize))
}

// 10,000 bytes in 1024-byte datagrams is ten segments, 0 through 9.
func TestTenThousandByteScenario(t *testing.T) {
	log := testlog.Start(t)
	cfg := DefaultConfig()
	a, b, err := simnet.Pipe(simnet.Perfect())
	require.NoError(t, err)

	rec := newRecorder(a)
	want := randomBytes(t, 10000)
	res := transferOver(t, cfg, rec, b, want, log)
	require.NoError(t, res.sendErr)
	require.NoError(t, res.recvErr)
	assert.Equal(t, want, res.out)
	assert.Equal(t, int64(10000), res.n)

	sent := rec.segments()
	require.Len(t, sent, 11)
	for i, seg := range sent[:10] {
		assert.Equal(t, segment.KindData, seg.Kind)
		assert.Equal(t, uint32(i), seg.Seq)
	}
	assert.Len(t, sent[9].Payload, 10000-9*1020)
	assert.Equal(t, segment.KindFin, sent[10].Kind)
	assert.LessOrEqual(t, rec.peak, int64(2))
}
