package rdt

import (
	"testing"

	"github.com/kasader/rdt/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqs(entries []inflight) []uint32 {
	out := make([]uint32, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.seq)
	}
	return out
}

func TestWindowCumulativeAck(t *testing.T) {
	testlog.Start(t)
	w := newWindow(4)
	for seq := uint32(3); seq < 7; seq++ {
		require.False(t, w.full())
		w.push(inflight{seq: seq})
	}
	assert.True(t, w.full())

	removed := w.ackThrough(4)
	assert.Equal(t, []uint32{3, 4}, seqs(removed))
	assert.Equal(t, []uint32{5, 6}, seqs(w.entries))
	assert.False(t, w.full())
}

func TestWindowIgnoresStaleAndFutureAcks(t *testing.T) {
	testlog.Start(t)
	w := newWindow(2)
	w.push(inflight{seq: 5})
	w.push(inflight{seq: 6})

	assert.Empty(t, w.ackThrough(4))
	assert.Empty(t, w.ackThrough(7))
	assert.Empty(t, w.ackThrough(0xFFFFFFFF))
	assert.Equal(t, 2, w.len())

	assert.Equal(t, []uint32{5, 6}, seqs(w.ackThrough(6)))
	assert.True(t, w.empty())
	assert.Empty(t, w.ackThrough(6))
}

func TestWindowMarkRetransmitted(t *testing.T) {
	testlog.Start(t)
	w := newWindow(2)
	w.push(inflight{seq: 0})
	w.push(inflight{seq: 1})
	w.markRetransmitted()
	for _, e := range w.entries {
		assert.True(t, e.retransmitted)
	}
}
