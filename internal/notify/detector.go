// SPDX-License-Identifier: MIT
package notify

import (
	"time"

	"levelmeter/internal/meter"
)

// OverConfig holds the hysteresis windows of the over detector.
type OverConfig struct {
	Duration time.Duration // Continuous over before alerting
	Recovery time.Duration // Continuous clean signal before recovering
}

// OverEvent is the result of one detector update.
type OverEvent struct {
	InOver        bool          // True while in the confirmed alert state
	JustEntered   bool          // Set on the update that entered the alert state
	JustRecovered bool          // Set on the update that left it
	Duration      time.Duration // Time spent over so far, while InOver
	TotalDuration time.Duration // Length of the alert period, on JustRecovered
	Ports         []int         // Ports in the over band, on JustEntered
}

// OverDetector tracks whether any port's value bar sits in the over band.
// It only reports the alert after Duration of continuous over, and only
// recovers after Recovery of continuous clean signal. Not safe for
// concurrent use; it runs on the refresh goroutine.
type OverDetector struct {
	cfg           OverConfig
	overStart     time.Time // When the current over stretch started
	recoveryStart time.Time // When the signal came back under
	enteredAt     time.Time // When the alert state was entered
	inOver        bool
}

func NewOverDetector(cfg OverConfig) *OverDetector {
	return &OverDetector{cfg: cfg}
}

// Update classifies snap and advances the state machine.
func (d *OverDetector) Update(snap *meter.Snapshot, now time.Time) OverEvent {
	var event OverEvent

	if anyOver(snap) {
		d.recoveryStart = time.Time{}
		if d.overStart.IsZero() {
			d.overStart = now
		}

		if !d.inOver && now.Sub(d.overStart) >= d.cfg.Duration {
			d.inOver = true
			d.enteredAt = d.overStart
			event.JustEntered = true
			event.Ports = overPorts(snap)
		}
	} else {
		d.overStart = time.Time{}

		if d.inOver {
			if d.recoveryStart.IsZero() {
				d.recoveryStart = now
			}
			if now.Sub(d.recoveryStart) >= d.cfg.Recovery {
				event.JustRecovered = true
				event.TotalDuration = d.recoveryStart.Sub(d.enteredAt)
				d.inOver = false
				d.recoveryStart = time.Time{}
			}
		}
	}

	event.InOver = d.inOver
	if d.inOver {
		event.Duration = now.Sub(d.enteredAt)
	}
	return event
}

// InOver reports whether the detector is in the alert state.
func (d *OverDetector) InOver() bool {
	return d.inOver
}

// Reset clears the detection state.
func (d *OverDetector) Reset() {
	*d = OverDetector{cfg: d.cfg}
}

func anyOver(snap *meter.Snapshot) bool {
	for _, p := range snap.Ports {
		if p.Band == meter.BandOver {
			return true
		}
	}
	return false
}

func overPorts(snap *meter.Snapshot) []int {
	var ports []int
	for i, p := range snap.Ports {
		if p.Band == meter.BandOver {
			ports = append(ports, i)
		}
	}
	return ports
}
