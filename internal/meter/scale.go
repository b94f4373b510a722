// SPDX-License-Identifier: MIT
/*
Package meter implements the numeric model behind the level meters: an
IEC 60268-18 style scaler that maps decibels to display positions, and the
per-port value/peak hold state that decays once per refresh tick.

The package has no knowledge of how the bars are drawn. Producers feed
instantaneous levels with SetValue at audio rate, a single consumer calls
Refresh at the display rate and reads positions back out.

Thread Safety:
  - SetValue may be called from any goroutine (lock-free, latest wins)
  - Refresh, PeakReset, Resize and Snapshot belong to one consumer goroutine
  - No operation blocks or allocates
*/
package meter

import "math"

// Indices of the reference marks kept by a Scaler.
const (
	Level0dB = iota
	Level3dB
	Level6dB
	Level10dB
	Level20dB
	LevelCount
)

// referenceDB holds the loudness of each reference mark.
var referenceDB = [LevelCount]float64{0, -3, -6, -10, -20}

// Scaler converts decibel values into integer display positions along a
// piecewise-linear approximation of the IEC normalized loudness curve.
type Scaler struct {
	scale  float64
	levels [LevelCount]int
}

// NewScaler returns a Scaler calibrated to the given extent in pixels.
func NewScaler(scale float64) *Scaler {
	s := &Scaler{}
	s.SetScale(scale)
	return s
}

// SetScale changes the display extent and recomputes the reference marks.
// Non-positive (or NaN) extents collapse every position to zero.
func (s *Scaler) SetScale(scale float64) {
	if !(scale > 0) {
		scale = 0
	}
	s.scale = scale

	for i, dB := range referenceDB {
		s.levels[i] = s.IECScale(dB)
	}
}

// Scale returns the current display extent.
func (s *Scaler) Scale() float64 {
	return s.scale
}

// IECScale maps dB onto [0, scale]. Levels above 0 dB extrapolate past the
// extent without clamping; holders clamp only at zero.
//
// The level, the fraction and the product are rounded to single precision,
// the precision meter positions are defined in, so truncation lands on the
// same pixel as single-precision meter code.
func (s *Scaler) IECScale(dB float64) int {
	f := float32(IECFraction(float64(float32(dB))))
	return position(float64(f * float32(s.scale)))
}

// Level returns the position of reference mark i, or 0 when i is out of range.
func (s *Scaler) Level(i int) int {
	if i >= 0 && i < LevelCount {
		return s.levels[i]
	}
	return 0
}

// Levels returns a copy of all reference mark positions, loudest first.
func (s *Scaler) Levels() [LevelCount]int {
	return s.levels
}

// IECFraction returns the normalized curve position for dB. Each band
// meets its neighbour at the breakpoint, so the curve is continuous and
// non-decreasing. NaN is treated as silence.
//
//	dB        fraction
//	< -70     0
//	-60       0.025
//	-50       0.075
//	-40       0.15
//	-30       0.3
//	-20       0.5
//	0         1.0
func IECFraction(dB float64) float64 {
	switch {
	case math.IsNaN(dB) || dB < -70:
		return 0
	case dB < -60:
		return (dB + 70) * 0.0025
	case dB < -50:
		return (dB+60)*0.005 + 0.025
	case dB < -40:
		return (dB+50)*0.0075 + 0.075
	case dB < -30:
		return (dB+40)*0.015 + 0.15
	case dB < -20:
		return (dB+30)*0.02 + 0.3
	default:
		return (dB+20)*0.025 + 0.5
	}
}

// position truncates toward zero, saturating so +Inf stays defined.
func position(v float64) int {
	if v >= math.MaxInt32 {
		return math.MaxInt32
	}
	if !(v > 0) {
		return 0
	}
	return int(v)
}
