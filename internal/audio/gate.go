// SPDX-License-Identifier: MIT
package audio

import "levelmeter/internal/meter"

// gate maps block levels below floor to silence.
func gate(db, floor float64) float64 {
	if db < floor {
		return meter.SilenceDB
	}
	return db
}

// NoiseFloor returns the level in dBFS below which blocks report silence,
// taken from audio.noise_floor_db. At or below meter.SilenceDB the gate is open.
func (e *Engine) NoiseFloor() float64 {
	return e.noiseFloor
}
