// SPDX-License-Identifier: MIT
/*
Package refresh runs the display-rate side of the meter.

A Refresher is the single consumer of a meter.Meter: it ticks every port's
ballistics, captures a snapshot and hands it to the configured transports and
observers. Requests that touch the holds (peak reset, resize) may come from any
goroutine; they are queued and applied on the refresh goroutine before the
next tick.

The loop either runs on its own ticker (Start/Stop) or is driven by a caller
that already owns a frame clock, such as the terminal UI, through Step.
*/
package refresh

import (
	"errors"
	"sync"
	"time"

	applog "levelmeter/internal/log"
	"levelmeter/internal/meter"
	"levelmeter/internal/transport"
)

// requestQueueSize bounds the number of pending control requests.
const requestQueueSize = 16

var logger = applog.Named("refresh")

// ErrRunning is returned by Start when the loop is already running.
var ErrRunning = errors.New("refresher already running")

// Observer inspects every snapshot on the refresh goroutine. The snapshot is
// reused after Observe returns.
type Observer interface {
	Observe(snap *meter.Snapshot, now time.Time)
}

type Refresher struct {
	meter      *meter.Meter
	interval   time.Duration
	transports []transport.Transport
	observers  []Observer
	now        func() time.Time

	requests chan func(*meter.Meter)
	snapshot meter.Snapshot
	failing  []bool // Per transport, so failures are logged on change only.

	ticker   *time.Ticker   // Ticker that triggers refreshes.
	doneChan chan struct{}  // Signals the loop goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the loop goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.
}

// New creates a Refresher for m ticking every interval. Non-positive
// intervals fall back to 30 Hz.
func New(m *meter.Meter, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = time.Second / 30
		logger.Warnf("invalid interval, defaulting to %s", interval)
	}

	return &Refresher{
		meter:    m,
		interval: interval,
		now:      time.Now,
		requests: make(chan func(*meter.Meter), requestQueueSize),
	}
}

// AddTransport registers t to receive a *meter.Snapshot on every tick.
// Call before Start.
func (r *Refresher) AddTransport(t transport.Transport) {
	r.transports = append(r.transports, t)
	r.failing = append(r.failing, false)
}

// AddObserver registers o to inspect every snapshot. Call before Start.
func (r *Refresher) AddObserver(o Observer) {
	r.observers = append(r.observers, o)
}

// Interval returns the tick period.
func (r *Refresher) Interval() time.Duration {
	return r.interval
}

// Start launches the ticker goroutine, calling Step on each tick until Stop.
func (r *Refresher) Start() error {
	r.mu.Lock()
	if r.ticker != nil {
		r.mu.Unlock()
		return ErrRunning
	}

	r.ticker = time.NewTicker(r.interval)
	r.doneChan = make(chan struct{})
	r.stopOnce = sync.Once{}

	ticker := r.ticker
	doneChan := r.doneChan
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		logger.Infof("started (interval %s, %d ports)", r.interval, r.meter.PortCount())
		for {
			select {
			case now := <-ticker.C:
				r.Step(now)
			case <-doneChan:
				logger.Debugf("stop signal received")
				return
			}
		}
	}()

	return nil
}

// Stop signals the loop goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.ticker == nil {
		r.mu.Unlock()
		return
	}

	r.stopOnce.Do(func() {
		close(r.doneChan)
		r.ticker.Stop()
		r.ticker = nil
	})
	r.mu.Unlock()

	r.wg.Wait()
	logger.Infof("stopped")
}

// Step applies pending requests, advances the meter by one tick and
// publishes the result. The returned snapshot stays valid until the next Step.
// Step must only be called from one goroutine at a time, and not while the
// loop started by Start is running.
func (r *Refresher) Step(now time.Time) *meter.Snapshot {
	r.drainRequests()

	r.meter.Refresh()
	r.meter.Snapshot(&r.snapshot)

	for i, t := range r.transports {
		err := t.Send(&r.snapshot)
		switch {
		case err != nil && !r.failing[i]:
			r.failing[i] = true
			logger.Warnf("transport %T failing, dropping frames: %v", t, err)
		case err == nil && r.failing[i]:
			r.failing[i] = false
			logger.Infof("transport %T recovered", t)
		}
	}

	for _, o := range r.observers {
		o.Observe(&r.snapshot, now)
	}

	return &r.snapshot
}

// StepNow is Step at the current time.
func (r *Refresher) StepNow() *meter.Snapshot {
	return r.Step(r.now())
}

// ResetPeak queues a peak reset of every port.
func (r *Refresher) ResetPeak() bool {
	return r.enqueue(func(m *meter.Meter) { m.PeakReset() })
}

// Resize queues a change of the meter's pixel extent.
func (r *Refresher) Resize(scale float64) bool {
	return r.enqueue(func(m *meter.Meter) { m.Resize(scale) })
}

// SetPeakFalloff queues a change of the peak falloff setting.
func (r *Refresher) SetPeakFalloff(enabled bool) bool {
	return r.enqueue(func(m *meter.Meter) { m.SetPeakFalloff(enabled) })
}

// TogglePeakFalloff queues an inversion of the peak falloff setting.
func (r *Refresher) TogglePeakFalloff() bool {
	return r.enqueue(func(m *meter.Meter) { m.SetPeakFalloff(!m.PeakFalloff()) })
}

// enqueue reports false when the queue is full and the request was dropped.
func (r *Refresher) enqueue(req func(*meter.Meter)) bool {
	select {
	case r.requests <- req:
		return true
	default:
		logger.Warnf("request queue full, dropping request")
		return false
	}
}

func (r *Refresher) drainRequests() {
	for {
		select {
		case req := <-r.requests:
			req(r.meter)
		default:
			return
		}
	}
}

// Close stops the loop and closes every transport.
func (r *Refresher) Close() error {
	r.Stop()

	var errs []error
	for _, t := range r.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
