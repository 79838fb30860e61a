// Package rdt delivers a byte buffer reliably, exactly once and in order
// over a transport.Channel that may drop, duplicate, delay or reorder
// datagrams.
//
// Every datagram carries a 4-byte big-endian sequence number followed by
// payload. Data chunks are numbered 0, 1, 2, ... The receiver answers each
// data segment with a payload-less cumulative ACK naming the highest
// sequence number it has delivered in order. The value 0xFFFFFFFF never
// labels data: on its own it is FIN from the sender and FIN-ACK from the
// receiver.
//
// Sliding window:
//
// The sender keeps at most Config.WindowSize unacknowledged segments in
// flight. An ACK for n retires every in-flight segment numbered <= n. When
// the retransmission timer fires the whole window is resent in order.
//
// The timer follows Jacobson/Karels: a smoothed RTT and its mean deviation,
// timeout = srtt + 4*rttvar. Samples are taken only from segments that were
// never retransmitted (Karn's rule).
//
// Sender and Receiver each run one blocking loop and own all of their
// state; they share nothing but the channel. Closing the channel is the
// only way to abort either loop early.
package rdt
