// SPDX-License-Identifier: MIT
package notify

import (
	"sync"
	"time"

	"levelmeter/internal/config"
	applog "levelmeter/internal/log"
	"levelmeter/internal/meter"
)

var logger = applog.Named("alert")

// Senders used by OverNotifier, replaced in tests.
var (
	sendOverEmail     = SendOverAlert
	sendRecoveryEmail = SendRecoveryAlert
)

// OverNotifier turns snapshots into over alerts. It runs an OverDetector on
// the refresh goroutine and delivers each configured notification once per
// alert period from its own goroutine.
type OverNotifier struct {
	cfg      config.AlertConfig
	detector *OverDetector

	// mu protects the notification state fields below
	mu        sync.Mutex
	emailSent bool
	logSent   bool

	wg sync.WaitGroup // Pending deliveries
}

// NewOverNotifier returns an OverNotifier configured from cfg.
func NewOverNotifier(cfg config.AlertConfig) *OverNotifier {
	return &OverNotifier{
		cfg: cfg,
		detector: NewOverDetector(OverConfig{
			Duration: cfg.OverDuration,
			Recovery: cfg.RecoveryDuration,
		}),
	}
}

// Observe feeds one snapshot to the detector and handles the outcome.
func (n *OverNotifier) Observe(snap *meter.Snapshot, now time.Time) {
	n.HandleEvent(n.detector.Update(snap, now), now)
}

// HandleEvent triggers notifications for a detector event.
func (n *OverNotifier) HandleEvent(event OverEvent, now time.Time) {
	if event.JustEntered {
		logger.Warnf("over for %s on ports %s", event.Duration, formatPorts(event.Ports))
		n.handleOverStart(event, now)
	}

	if event.JustRecovered {
		logger.Infof("recovered after %s", event.TotalDuration)
		n.handleOverEnd(event.TotalDuration, now)
	}
}

func (n *OverNotifier) handleOverStart(event OverEvent, now time.Time) {
	n.trySend(&n.emailSent, n.cfg.HasEmail(), func() error {
		return sendOverEmail(n.cfg.Email, event.Duration, event.Ports, now)
	}, "over email")
	n.trySend(&n.logSent, n.cfg.HasLogPath(), func() error {
		return LogOverStart(n.cfg.LogPath, event.Duration, event.Ports, now)
	}, "over log")
}

// handleOverEnd sends recovery notifications for the channels that alerted.
func (n *OverNotifier) handleOverEnd(total time.Duration, now time.Time) {
	n.mu.Lock()
	sendEmail := n.emailSent
	sendLog := n.logSent
	n.emailSent = false
	n.logSent = false
	n.mu.Unlock()

	if sendEmail {
		n.deliver(func() error { return sendRecoveryEmail(n.cfg.Email, total, now) }, "recovery email")
	}
	if sendLog {
		n.deliver(func() error { return LogOverEnd(n.cfg.LogPath, total, now) }, "recovery log")
	}
}

// trySend atomically checks and sets a notification flag, then spawns the sender if needed.
func (n *OverNotifier) trySend(sent *bool, condition bool, send func() error, what string) {
	n.mu.Lock()
	shouldSend := !*sent && condition
	if shouldSend {
		*sent = true
	}
	n.mu.Unlock()
	if shouldSend {
		n.deliver(send, what)
	}
}

func (n *OverNotifier) deliver(send func() error, what string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := send(); err != nil {
			logger.Errorf("%s failed: %v", what, err)
			return
		}
		logger.Infof("%s sent", what)
	}()
}

// Wait blocks until every pending notification has been delivered.
func (n *OverNotifier) Wait() {
	n.wg.Wait()
}

// Reset clears the detector and notification state.
func (n *OverNotifier) Reset() {
	n.detector.Reset()
	n.mu.Lock()
	n.emailSent = false
	n.logSent = false
	n.mu.Unlock()
}
