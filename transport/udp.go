package transport

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// RecvBufferSize bounds a single read. It is well above any sane datagram
// limit so oversized datagrams are never silently truncated into valid ones.
var RecvBufferSize = 64 * 1024

// UDPChannel is a Channel over a UDP socket bound to one peer.
//
// A dialed channel knows its peer up front. A listening channel adopts the
// first address it hears from and ignores every other sender afterwards.
type UDPChannel struct {
	conn *net.UDPConn
	buf  []byte

	mu   sync.Mutex
	peer *net.UDPAddr
}

// Dial opens a channel to addr from an ephemeral local port.
func Dial(addr string) (*UDPChannel, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}
	return newUDPChannel(conn, raddr), nil
}

// Listen binds addr and waits for a peer to speak first.
func Listen(addr string) (*UDPChannel, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return newUDPChannel(conn, nil), nil
}

func newUDPChannel(conn *net.UDPConn, peer *net.UDPAddr) *UDPChannel {
	return &UDPChannel{
		conn: conn,
		buf:  make([]byte, RecvBufferSize),
		peer: peer,
	}
}

// LocalAddr returns the bound socket address.
func (c *UDPChannel) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Peer returns the remote address, or nil if none has been heard from yet.
func (c *UDPChannel) Peer() *net.UDPAddr {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// Send writes one datagram to the peer. Sending before a listening channel
// has a peer is an error.
func (c *UDPChannel) Send(datagram []byte) error {
	peer := c.Peer()
	if peer == nil {
		return errors.New("transport: no peer yet")
	}
	if _, err := c.conn.WriteToUDP(datagram, peer); err != nil {
		return mapErr(err)
	}
	return nil
}

// Receive reads the next datagram from the peer.
func (c *UDPChannel) Receive(timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, mapErr(err)
	}
	for {
		n, addr, err := c.conn.ReadFromUDP(c.buf)
		if err != nil {
			return nil, mapErr(err)
		}
		if !c.accept(addr) {
			continue
		}
		// Make a copy of the data as buf is reused.
		data := make([]byte, n)
		copy(data, c.buf[:n])
		return data, nil
	}
}

func (c *UDPChannel) accept(addr *net.UDPAddr) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer == nil {
		c.peer = addr
		return true
	}
	return c.peer.IP.Equal(addr.IP) && c.peer.Port == addr.Port
}

// Close releases the socket. Blocked Receive calls return ErrClosed.
func (c *UDPChannel) Close() error {
	return c.conn.Close()
}

func mapErr(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}
	return err
}
