package rdt

import (
	"fmt"

	"github.com/kasader/rdt/pkg/segment"
)

// chunker hands out consecutive slices of the input, each at most size
// bytes, numbered from 0. Slices alias the input; encoding copies them.
type chunker struct {
	data  []byte
	size  int
	next  uint32
	total int
}

func newChunker(data []byte, size int) (*chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, size)
	}
	total := len(data) / size
	if len(data)%size != 0 {
		total++
	}
	if uint64(total) >= uint64(segment.Sentinel) {
		return nil, fmt.Errorf("%w: %d chunks", ErrTooLarge, total)
	}
	return &chunker{data: data, size: size, total: total}, nil
}

func (c *chunker) remaining() bool {
	return len(c.data) > 0
}

// take returns the next chunk and its sequence number. It must only be
// called while remaining reports true.
func (c *chunker) take() (uint32, []byte) {
	end := c.size
	if end > len(c.data) {
		end = len(c.data)
	}
	chunk := c.data[:end]
	c.data = c.data[end:]
	seq := c.next
	c.next++
	return seq, chunk
}
