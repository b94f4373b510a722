package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	applog "levelmeter/internal/log"
)

var logger = applog.Named("udp")

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("UDP sender is closed")

// UDPSender writes datagrams to a single connected peer.
type UDPSender struct {
	conn       *net.UDPConn
	targetAddr *net.UDPAddr
	mu         sync.Mutex // Protects conn during Close
	closed     bool

	packets atomic.Uint64
	bytes   atomic.Uint64
}

// NewUDPSender creates a new UDPSender targeting the specified address.
// The address should be in the format "host:port", e.g., "127.0.0.1:9090".
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	logger.Infof("sending to %s", conn.RemoteAddr())

	return &UDPSender{
		conn:       conn,
		targetAddr: udpAddr,
	}, nil
}

// Send transmits data as one datagram.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSenderClosed
	}
	n, err := s.conn.Write(data)
	if err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
	return nil
}

// Sent returns the number of datagrams and bytes written so far.
func (s *UDPSender) Sent() (packets, bytes uint64) {
	return s.packets.Load(), s.bytes.Load()
}

// Close closes the underlying UDP connection. Further calls do nothing.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	packets, bytes := s.packets.Load(), s.bytes.Load()
	logger.Infof("closing connection to %s after %d packets (%d bytes)", s.targetAddr, packets, bytes)
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}
