// SPDX-License-Identifier: MIT
package meter

import "sync/atomic"

// DefaultScale is the extent used until the first Resize, matching a
// 100 pixel tall control.
const DefaultScale = 100.0

// Meter owns a fixed set of independent ports that share one Scaler.
type Meter struct {
	scaler Scaler
	values []Value

	peakFalloff atomic.Bool
	dirty       atomic.Bool

	seq uint64 // Refresh counter, consumer-owned
}

// New creates a meter with the given number of ports. Peak falloff starts
// enabled. A negative port count is treated as zero.
func New(ports int) *Meter {
	if ports < 0 {
		ports = 0
	}

	m := &Meter{
		values: make([]Value, ports),
	}
	for i := range m.values {
		m.values[i].init()
	}
	m.scaler.SetScale(DefaultScale)
	m.peakFalloff.Store(true)

	return m
}

// PortCount returns the number of ports.
func (m *Meter) PortCount() int {
	return len(m.values)
}

// SetValue stores the latest level of a port. Safe to call from the audio
// callback; out-of-range ports are ignored.
func (m *Meter) SetValue(port int, dB float64) {
	if port >= 0 && port < len(m.values) {
		m.values[port].SetLevel(dB)
	}
}

// Value returns the latest level set on a port, or SilenceDB when out of range.
func (m *Meter) Value(port int) float64 {
	if port >= 0 && port < len(m.values) {
		return m.values[port].Level()
	}
	return SilenceDB
}

// Refresh advances every port by one display frame and flags a redraw.
func (m *Meter) Refresh() {
	falloff := m.peakFalloff.Load()
	for i := range m.values {
		m.values[i].Tick(&m.scaler, falloff)
	}
	m.seq++
	m.dirty.Store(true)
}

// PeakReset drops every peak line to zero and flags a redraw.
func (m *Meter) PeakReset() {
	for i := range m.values {
		m.values[i].ResetPeak()
	}
	m.dirty.Store(true)
}

// Resize recalibrates the shared scaler to a new display extent.
func (m *Meter) Resize(scale float64) {
	m.scaler.SetScale(scale)
	m.dirty.Store(true)
}

// Scale returns the current display extent.
func (m *Meter) Scale() float64 {
	return m.scaler.Scale()
}

// SetPeakFalloff enables or disables peak decay for all ports.
func (m *Meter) SetPeakFalloff(enabled bool) {
	m.peakFalloff.Store(enabled)
}

// PeakFalloff reports whether peak decay is enabled.
func (m *Meter) PeakFalloff() bool {
	return m.peakFalloff.Load()
}

// IECScale maps dB to a position using the meter's calibration.
func (m *Meter) IECScale(dB float64) int {
	return m.scaler.IECScale(dB)
}

// IECLevel returns the position of reference mark i, or 0 when out of range.
func (m *Meter) IECLevel(i int) int {
	return m.scaler.Level(i)
}

// ValueHold returns the value bar height of a port, or 0 when out of range.
func (m *Meter) ValueHold(port int) int {
	if port >= 0 && port < len(m.values) {
		return m.values[port].ValueHold()
	}
	return 0
}

// PeakHold returns the peak line height of a port, or 0 when out of range.
func (m *Meter) PeakHold(port int) int {
	if port >= 0 && port < len(m.values) {
		return m.values[port].PeakHold()
	}
	return 0
}

// ColorBand classifies row y against the current reference marks.
func (m *Meter) ColorBand(y int) Band {
	return ClassifyPosition(y, m.scaler.Levels())
}

// NeedsRedraw reports whether anything changed since the last call and
// clears the flag.
func (m *Meter) NeedsRedraw() bool {
	return m.dirty.Swap(false)
}
