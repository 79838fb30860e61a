package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// Header constants – keep protocol‐level knowledge in one place.
const (
	offsetSeq  = 0             // uint32, big-endian
	HeaderSize = offsetSeq + 4 // 4 bytes
)

// Sentinel is the reserved sequence number carried by FIN and FIN-ACK.
// It never labels data.
const Sentinel uint32 = 0xFFFFFFFF

var ErrTruncated = errors.New("segment: datagram shorter than header")

// Kind distinguishes data-bearing segments from the termination marker.
type Kind uint8

const (
	// KindData is a sequenced data segment or a cumulative ACK (empty payload).
	KindData Kind = iota
	// KindFin is the termination marker, used for both FIN and FIN-ACK.
	KindFin
)

// String implements the Stringer interface for printing [Kind] values.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindFin:
		return "FIN"
	default:
		return "INVALID"
	}
}

// Segment is the in-memory representation of one datagram.
type Segment struct {
	Kind    Kind
	Seq     uint32
	Payload []byte
}

// Data returns a data segment.
func Data(seq uint32, payload []byte) Segment {
	return Segment{Kind: KindData, Seq: seq, Payload: payload}
}

// Fin returns the termination segment.
func Fin() Segment {
	return Segment{Kind: KindFin, Seq: Sentinel}
}

// String provides a human-readable representation of a Segment for debugging.
func (s Segment) String() string {
	if s.Kind == KindFin {
		return "Segment{FIN}"
	}
	return fmt.Sprintf("Segment{Seq:%d, DataLen:%d}", s.Seq, len(s.Payload))
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Segment) MarshalBinary() ([]byte, error) {
	if s.Kind == KindData && s.Seq == Sentinel {
		return nil, fmt.Errorf("segment: sequence %#x is reserved", Sentinel)
	}
	return Encode(s), nil
}

// Encode serialises s into the on-the-wire format. A FIN segment always
// encodes to the bare sentinel header, whatever Seq and Payload hold.
func Encode(s Segment) []byte {
	if s.Kind == KindFin {
		return EncodeAck(Sentinel)
	}
	buf := make([]byte, HeaderSize+len(s.Payload))
	binary.BigEndian.PutUint32(buf[offsetSeq:], s.Seq)
	copy(buf[HeaderSize:], s.Payload)
	return buf
}

// EncodeAck builds a control segment carrying only a sequence number.
func EncodeAck(seq uint32) []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[offsetSeq:], seq)
	return buf
}

// Decode parses a wire-format datagram. The payload is copied, so the caller
// may reuse its read buffer.
func Decode(datagram []byte) (Segment, error) {
	if len(datagram) < HeaderSize {
		return Segment{}, ErrTruncated
	}
	seq := binary.BigEndian.Uint32(datagram[offsetSeq:])
	if seq == Sentinel {
		return Fin(), nil
	}
	return Segment{
		Kind:    KindData,
		Seq:     seq,
		Payload: slices.Clone(datagram[HeaderSize:]),
	}, nil
}

// IsFin reports whether datagram is exactly the encoded termination marker.
func IsFin(datagram []byte) bool {
	return len(datagram) == HeaderSize && binary.BigEndian.Uint32(datagram) == Sentinel
}

// ChunkSize is the largest payload that fits a datagram of maxDatagram bytes.
func ChunkSize(maxDatagram int) int {
	return maxDatagram - HeaderSize
}
