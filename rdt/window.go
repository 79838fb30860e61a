package rdt

import "time"

// inflight is one sent, unacknowledged segment.
type inflight struct {
	seq           uint32
	packet        []byte
	sentAt        time.Time
	retransmitted bool
}

// window holds in-flight segments in increasing sequence order.
type window struct {
	size    int
	entries []inflight
}

func newWindow(size int) *window {
	return &window{size: size, entries: make([]inflight, 0, size)}
}

func (w *window) len() int    { return len(w.entries) }
func (w *window) empty() bool { return len(w.entries) == 0 }
func (w *window) full() bool  { return len(w.entries) >= w.size }

func (w *window) push(e inflight) {
	w.entries = append(w.entries, e)
}

// ackThrough retires every entry with seq <= ack and returns them oldest
// first. An ack below the window is stale and one beyond the newest entry
// names data never sent; both retire nothing.
func (w *window) ackThrough(ack uint32) []inflight {
	if w.empty() || ack < w.entries[0].seq || ack > w.entries[len(w.entries)-1].seq {
		return nil
	}
	n := 0
	for n < len(w.entries) && w.entries[n].seq <= ack {
		n++
	}
	removed := make([]inflight, n)
	copy(removed, w.entries[:n])
	w.entries = append(w.entries[:0], w.entries[n:]...)
	return removed
}

// markRetransmitted flags every entry as ineligible for RTT sampling.
func (w *window) markRetransmitted() {
	for i := range w.entries {
		w.entries[i].retransmitted = true
	}
}
