// SPDX-License-Identifier: MIT
package meter

// PortSnapshot is the display state of one port at a refresh tick.
type PortSnapshot struct {
	Value int  `json:"value"` // Value bar height in pixels
	Peak  int  `json:"peak"`  // Peak line height in pixels
	Band  Band `json:"band"`  // Band of the topmost lit row
}

// Snapshot is a copy of the meter state handed to presentation and
// transport collaborators.
type Snapshot struct {
	Seq         uint64          `json:"seq"`
	Scale       float64         `json:"scale"`
	Levels      [LevelCount]int `json:"levels"`
	PeakFalloff bool            `json:"peak_falloff"`
	Ports       []PortSnapshot  `json:"ports"`
}

// Snapshot copies the current state into dst, reusing dst.Ports when it has
// enough capacity. It must be called from the goroutine that calls Refresh.
func (m *Meter) Snapshot(dst *Snapshot) {
	dst.Seq = m.seq
	dst.Scale = m.scaler.Scale()
	dst.Levels = m.scaler.Levels()
	dst.PeakFalloff = m.peakFalloff.Load()

	if cap(dst.Ports) < len(m.values) {
		dst.Ports = make([]PortSnapshot, len(m.values))
	}
	dst.Ports = dst.Ports[:len(m.values)]

	for i := range m.values {
		v := &m.values[i]
		dst.Ports[i] = PortSnapshot{
			Value: v.ValueHold(),
			Peak:  v.PeakHold(),
			Band:  topBand(v.ValueHold(), dst.Levels),
		}
	}
}

// Clone returns a deep copy, for handing a snapshot to another goroutine.
func (s *Snapshot) Clone() Snapshot {
	c := *s
	c.Ports = append([]PortSnapshot(nil), s.Ports...)
	return c
}

// topBand is the band of the highest painted row; rows 0..hold-1 are lit.
func topBand(hold int, levels [LevelCount]int) Band {
	if hold <= 0 {
		return Band10dB
	}
	return ClassifyPosition(hold-1, levels)
}
