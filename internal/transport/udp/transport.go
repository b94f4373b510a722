// SPDX-License-Identifier: MIT
// Package udp sends meter snapshots as compact binary datagrams.
package udp

import (
	"fmt"
	"time"

	"levelmeter/internal/meter"
	"levelmeter/internal/transport"
)

// Transport encodes each *meter.Snapshot it is sent into one datagram.
// It is driven from the refresh goroutine and is not safe for concurrent Send.
type Transport struct {
	sender *UDPSender
	seq    uint32
	packet []byte // Reused between sends.
	now    func() time.Time
}

// NewTransport wraps sender. The Transport owns it and closes it on Close.
func NewTransport(sender *UDPSender) (*Transport, error) {
	if sender == nil {
		return nil, fmt.Errorf("udp transport: sender cannot be nil")
	}
	return &Transport{
		sender: sender,
		packet: make([]byte, 0, PacketSize(8)),
		now:    time.Now,
	}, nil
}

// Dial resolves targetAddress and returns a ready Transport.
func Dial(targetAddress string) (*Transport, error) {
	sender, err := NewUDPSender(targetAddress)
	if err != nil {
		return nil, err
	}
	return NewTransport(sender)
}

// Send encodes and transmits a snapshot. Other values are rejected.
func (t *Transport) Send(data any) error {
	var snap *meter.Snapshot
	switch v := data.(type) {
	case *meter.Snapshot:
		snap = v
	case meter.Snapshot:
		snap = &v
	default:
		return fmt.Errorf("udp transport: unsupported payload %T", data)
	}

	t.seq++
	t.packet = EncodePacket(t.packet[:0], t.seq, t.now().UnixNano(), snap)
	if err := t.sender.Send(t.packet); err != nil {
		return err
	}
	logger.Debugf("sent packet %d (%d bytes)", t.seq, len(t.packet))
	return nil
}

// Sent returns the datagram and byte counts of the underlying sender.
func (t *Transport) Sent() (packets, bytes uint64) {
	return t.sender.Sent()
}

// Close closes the underlying sender.
func (t *Transport) Close() error {
	return t.sender.Close()
}

var _ transport.Transport = (*Transport)(nil)
