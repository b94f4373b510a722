// SPDX-License-Identifier: MIT
package refresh

import (
	"errors"
	"testing"
	"time"

	"levelmeter/internal/meter"
	"levelmeter/pkg/utils"
)

type countingObserver struct {
	seqs  []uint64
	times []time.Time
}

func (c *countingObserver) Observe(snap *meter.Snapshot, now time.Time) {
	c.seqs = append(c.seqs, snap.Seq)
	c.times = append(c.times, now)
}

func TestStepPublishes(t *testing.T) {
	m := meter.New(2)
	r := New(m, time.Second/30)
	mock := &utils.MockTransport{}
	obs := &countingObserver{}
	r.AddTransport(mock)
	r.AddObserver(obs)

	m.SetValue(0, 0)
	m.SetValue(1, -20)
	now := time.Unix(1700000000, 0)
	snap := r.Step(now)

	if snap.Seq != 1 || snap.Ports[0].Value != 100 || snap.Ports[1].Value != 50 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.Ports[0].Band != meter.Band0dB {
		t.Errorf("port 0 band = %s, want 0dB", snap.Ports[0].Band)
	}

	last, ok := mock.Last()
	if !ok || last.Seq != 1 || last.Ports[1].Value != 50 {
		t.Errorf("transport got %+v", last)
	}
	if len(obs.seqs) != 1 || !obs.times[0].Equal(now) {
		t.Errorf("observer calls = %v at %v", obs.seqs, obs.times)
	}

	r.Step(now.Add(time.Second))
	if mock.Len() != 2 || obs.seqs[1] != 2 {
		t.Errorf("second step: transport %d snapshots, observer seqs %v", mock.Len(), obs.seqs)
	}
}

func TestQueuedRequests(t *testing.T) {
	m := meter.New(1)
	r := New(m, time.Second/30)

	m.SetValue(0, 0)
	r.StepNow()
	m.SetValue(0, meter.SilenceDB)

	if !r.ResetPeak() || !r.Resize(200) || !r.SetPeakFalloff(false) {
		t.Fatal("requests should be accepted")
	}

	// Nothing applies until the next step.
	if m.PeakHold(0) != 100 || m.Scale() != meter.DefaultScale || !m.PeakFalloff() {
		t.Fatal("requests applied outside the refresh goroutine")
	}

	snap := r.StepNow()
	if snap.Scale != 200 || snap.PeakFalloff {
		t.Errorf("scale = %v falloff = %v, want 200 and false", snap.Scale, snap.PeakFalloff)
	}
	if snap.Levels[meter.Level0dB] != 200 {
		t.Errorf("0 dB level = %d, want 200", snap.Levels[meter.Level0dB])
	}
	if snap.Ports[0].Peak != 0 {
		t.Errorf("peak = %d, want 0 after reset", snap.Ports[0].Peak)
	}

	r.TogglePeakFalloff()
	if snap := r.StepNow(); !snap.PeakFalloff {
		t.Error("toggle should re-enable falloff")
	}
}

func TestRequestQueueFull(t *testing.T) {
	r := New(meter.New(1), time.Second/30)
	for i := range requestQueueSize {
		if !r.ResetPeak() {
			t.Fatalf("request %d rejected before the queue was full", i)
		}
	}
	if r.ResetPeak() {
		t.Error("request accepted past the queue size")
	}
	r.StepNow()
	if !r.ResetPeak() {
		t.Error("queue should drain on Step")
	}
}

func TestTransportErrorsDoNotStopPublishing(t *testing.T) {
	m := meter.New(1)
	r := New(m, time.Second/30)
	broken := &utils.MockTransport{SendErr: errors.New("unreachable")}
	healthy := &utils.MockTransport{}
	r.AddTransport(broken)
	r.AddTransport(healthy)

	for range 3 {
		r.StepNow()
	}
	if healthy.Len() != 3 {
		t.Errorf("healthy transport got %d snapshots, want 3", healthy.Len())
	}

	broken.SendErr = nil
	r.StepNow()
	if broken.Len() != 1 || r.failing[0] {
		t.Errorf("broken transport did not recover: %d snapshots, failing=%v", broken.Len(), r.failing[0])
	}
}

func TestStartStop(t *testing.T) {
	m := meter.New(2)
	r := New(m, 5*time.Millisecond)
	mock := &utils.MockTransport{}
	r.AddTransport(mock)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(); !errors.Is(err, ErrRunning) {
		t.Errorf("second Start = %v, want ErrRunning", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for mock.Len() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mock.Len() < 3 {
		t.Fatalf("got %d snapshots, want at least 3", mock.Len())
	}

	r.Stop()
	r.Stop() // Idempotent.
	n := mock.Len()
	time.Sleep(20 * time.Millisecond)
	if mock.Len() != n {
		t.Error("snapshots published after Stop")
	}

	// Restartable.
	if err := r.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !mock.Closed {
		t.Error("Close should close transports")
	}
}

func TestNewDefaultsInterval(t *testing.T) {
	r := New(meter.New(1), 0)
	if r.Interval() != time.Second/30 {
		t.Errorf("Interval() = %s, want %s", r.Interval(), time.Second/30)
	}
}
