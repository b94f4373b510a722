// SPDX-License-Identifier: MIT
package meter

import (
	"math"
	"sync/atomic"
)

// SilenceDB is the level a port reports before any value has been set.
const SilenceDB = -100.0

const (
	valueDecayStep = 1.0  // Added to the value accumulator per falling tick
	valueDecayRate = 0.1  // Accumulator-to-pixels factor for the value bar
	peakDecayStep  = 0.05 // Added to the peak accumulator per falling tick
)

// Value is the hold state of a single meter port.
//
// level is written by the producer and read by Tick; every other field is
// owned by the consumer goroutine that calls Tick and ResetPeak.
type Value struct {
	level atomic.Uint64 // math.Float64bits of the latest dB value

	valueHold  int
	valueDecay float64
	peakHold   int
	peakDecay  float64
}

// NewValue returns a port at rest: silent input, both holds at zero.
func NewValue() *Value {
	v := &Value{}
	v.init()
	return v
}

func (v *Value) init() {
	v.level.Store(math.Float64bits(SilenceDB))
}

// SetLevel stores the latest instantaneous level. Only the most recent value
// before a tick is observed.
func (v *Value) SetLevel(dB float64) {
	v.level.Store(math.Float64bits(dB))
}

// Level returns the latest stored level in dB.
func (v *Value) Level() float64 {
	return math.Float64frombits(v.level.Load())
}

// Tick advances the value and peak holds by one refresh frame.
//
// Both tracks rise instantly. The value bar falls by floor(n*0.1) pixels on
// the n-th consecutive falling tick; the peak line falls by floor(n*0.05)
// and only while peakFalloff is set.
func (v *Value) Tick(s *Scaler, peakFalloff bool) {
	target := s.IECScale(v.Level())

	if target > v.valueHold {
		v.valueHold = target
		v.valueDecay = 0
	} else {
		v.valueDecay += valueDecayStep
		v.valueHold -= int(v.valueDecay * valueDecayRate)
		if v.valueHold < 0 {
			v.valueHold = 0
		}
	}

	if target > v.peakHold {
		v.peakHold = target
		v.peakDecay = 0
	} else if peakFalloff {
		v.peakDecay += peakDecayStep
		v.peakHold -= int(v.peakDecay)
		if v.peakHold < 0 {
			v.peakHold = 0
		}
	}
}

// ResetPeak drops the peak line to zero. The decay accumulator is left as is.
func (v *Value) ResetPeak() {
	v.peakHold = 0
}

// ValueHold returns the current height of the value bar.
func (v *Value) ValueHold() int {
	return v.valueHold
}

// PeakHold returns the current height of the peak line.
func (v *Value) PeakHold() int {
	return v.peakHold
}
