// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"levelmeter/internal/meter"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Scale             | float32        | 4            | Meter extent in pixels  |
| Port Count        | uint16         | 2            | Number of ports (N)     |
| Ports             | N × record     | N * 9        | See below               |
+-----------------------------------------------------------------------------+

Port record:

|<-- 4 Bytes -->|<-- 4 Bytes -->|<- 1 Byte ->|
+---------------+---------------+------------+
|  Value (i32)  |  Peak (i32)   | Band (u8)  |
+---------------+---------------+------------+
*/

const (
	headerSize     = 4 + 8 + 4 + 2
	portRecordSize = 4 + 4 + 1
	// MaxPorts keeps packets under a typical 1500 byte MTU.
	MaxPorts = (1472 - headerSize) / portRecordSize
)

var ErrShortPacket = errors.New("udp: short packet")

// Packet is the decoded form of one datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Scale     float32
	Ports     []meter.PortSnapshot
}

// PacketSize returns the encoded size of a packet with ports ports.
func PacketSize(ports int) int {
	return headerSize + ports*portRecordSize
}

// EncodePacket appends the packet for snap to dst and returns the extended
// buffer. Ports beyond MaxPorts are not encoded.
func EncodePacket(dst []byte, seq uint32, timestamp int64, snap *meter.Snapshot) []byte {
	ports := min(len(snap.Ports), MaxPorts)

	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(snap.Scale)))
	dst = binary.BigEndian.AppendUint16(dst, uint16(ports))

	for _, p := range snap.Ports[:ports] {
		dst = binary.BigEndian.AppendUint32(dst, uint32(clampInt32(p.Value)))
		dst = binary.BigEndian.AppendUint32(dst, uint32(clampInt32(p.Peak)))
		dst = append(dst, byte(p.Band))
	}
	return dst
}

// DecodePacket parses a datagram produced by EncodePacket.
func DecodePacket(b []byte) (Packet, error) {
	var p Packet
	if len(b) < headerSize {
		return p, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}

	p.Seq = binary.BigEndian.Uint32(b[0:])
	p.Timestamp = int64(binary.BigEndian.Uint64(b[4:]))
	p.Scale = math.Float32frombits(binary.BigEndian.Uint32(b[12:]))
	ports := int(binary.BigEndian.Uint16(b[16:]))

	if len(b) < PacketSize(ports) {
		return p, fmt.Errorf("%w: %d bytes for %d ports", ErrShortPacket, len(b), ports)
	}

	p.Ports = make([]meter.PortSnapshot, ports)
	off := headerSize
	for i := range p.Ports {
		p.Ports[i] = meter.PortSnapshot{
			Value: int(int32(binary.BigEndian.Uint32(b[off:]))),
			Peak:  int(int32(binary.BigEndian.Uint32(b[off+4:]))),
			Band:  meter.Band(b[off+8]),
		}
		off += portRecordSize
	}
	return p, nil
}

func clampInt32(v int) int32 {
	return int32(max(math.MinInt32, min(v, math.MaxInt32)))
}
