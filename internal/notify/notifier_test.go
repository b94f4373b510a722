// SPDX-License-Identifier: MIT
package notify

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"levelmeter/internal/config"

	"github.com/wneessen/go-mail"
)

type mailRecorder struct {
	mu        sync.Mutex
	overs     []time.Duration
	recovered []time.Duration
}

func stubEmail(t *testing.T) *mailRecorder {
	t.Helper()
	rec := &mailRecorder{}
	origOver, origRecovery := sendOverEmail, sendRecoveryEmail
	t.Cleanup(func() { sendOverEmail, sendRecoveryEmail = origOver, origRecovery })

	sendOverEmail = func(_ config.EmailConfig, d time.Duration, _ []int, _ time.Time) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.overs = append(rec.overs, d)
		return nil
	}
	sendRecoveryEmail = func(_ config.EmailConfig, d time.Duration, _ time.Time) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.recovered = append(rec.recovered, d)
		return nil
	}
	return rec
}

func readLog(t *testing.T, path string) []LogEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var entries []LogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e LogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("bad log line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func testAlertConfig(t *testing.T) config.AlertConfig {
	return config.AlertConfig{
		OverDuration:     time.Second,
		RecoveryDuration: time.Second,
		LogPath:          filepath.Join(t.TempDir(), "over.log"),
		Email: config.EmailConfig{
			Host:       "smtp.example.com",
			Port:       587,
			Username:   "meter@example.com",
			Recipients: "ops@example.com",
		},
	}
}

func TestOverNotifierCycle(t *testing.T) {
	mails := stubEmail(t)
	cfg := testAlertConfig(t)
	n := NewOverNotifier(cfg)
	t0 := time.Unix(2000, 0)

	// Two alert periods.
	for cycle := range 2 {
		base := t0.Add(time.Duration(cycle) * 10 * time.Second)
		n.Observe(over, base)
		n.Observe(over, base.Add(time.Second))   // Enter
		n.Observe(over, base.Add(2*time.Second)) // Still over; no repeat
		n.Wait()
		n.Observe(clean, base.Add(3*time.Second))
		n.Observe(clean, base.Add(4*time.Second)) // Recover
		n.Wait()
	}

	if len(mails.overs) != 2 || len(mails.recovered) != 2 {
		t.Fatalf("emails: %d over, %d recovery; want 2 each", len(mails.overs), len(mails.recovered))
	}
	if mails.overs[0] != time.Second || mails.recovered[0] != 3*time.Second {
		t.Errorf("durations: over %s, recovery %s", mails.overs[0], mails.recovered[0])
	}

	entries := readLog(t, cfg.LogPath)
	if len(entries) != 4 {
		t.Fatalf("log has %d entries, want 4", len(entries))
	}
	events := make([]string, len(entries))
	for i, e := range entries {
		events[i] = e.Event
	}
	if strings.Join(events, ",") != "over_start,over_end,over_start,over_end" {
		t.Errorf("log events = %v", events)
	}
	if !slices.Equal(entries[0].Ports, []int{1}) || entries[1].DurationSec != 3 {
		t.Errorf("log entries = %+v", entries[:2])
	}
}

func TestOverNotifierUnconfigured(t *testing.T) {
	mails := stubEmail(t)
	n := NewOverNotifier(config.AlertConfig{})

	n.Observe(over, time.Unix(0, 0))
	n.Observe(clean, time.Unix(1, 0))
	n.Wait()

	if len(mails.overs) != 0 || len(mails.recovered) != 0 {
		t.Error("no email should be sent without SMTP settings")
	}
}

func TestOverNotifierSendFailure(t *testing.T) {
	stubEmail(t)
	sendOverEmail = func(config.EmailConfig, time.Duration, []int, time.Time) error {
		return errors.New("smtp down")
	}

	cfg := testAlertConfig(t)
	cfg.LogPath = ""
	n := NewOverNotifier(cfg)
	n.Observe(over, time.Unix(0, 0))
	n.Observe(over, time.Unix(1, 0))
	n.Wait() // Failure is logged, not fatal.
}

func TestAppendLogEntryErrors(t *testing.T) {
	if err := LogOverEnd("", time.Second, time.Now()); err != nil {
		t.Errorf("empty path should be skipped, got %v", err)
	}
	bad := filepath.Join(t.TempDir(), "missing", "dir", "over.log")
	if err := LogOverEnd(bad, time.Second, time.Now()); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestNewMessage(t *testing.T) {
	cfg := config.EmailConfig{
		Username:   "meter@example.com",
		FromName:   "Level Meter",
		Recipients: " ops@example.com, ,eng@example.com ",
	}

	m, err := newMessage(cfg, "subject line", "body")
	if err != nil {
		t.Fatalf("newMessage: %v", err)
	}
	if got := m.GetGenHeader(mail.HeaderSubject); len(got) != 1 || got[0] != "subject line" {
		t.Errorf("subject = %v", got)
	}
	if got := splitRecipients(cfg.Recipients); len(got) != 2 || got[1] != "eng@example.com" {
		t.Errorf("recipients = %v", got)
	}

	cfg.Recipients = " , "
	if _, err := newMessage(cfg, "s", "b"); err == nil {
		t.Error("expected error without recipients")
	}
}

func TestSendSkipsUnconfigured(t *testing.T) {
	if err := SendOverAlert(config.EmailConfig{}, time.Second, nil, time.Now()); err != nil {
		t.Errorf("SendOverAlert without config = %v", err)
	}
	if err := SendRecoveryAlert(config.EmailConfig{Host: "h"}, time.Second, time.Now()); err != nil {
		t.Errorf("SendRecoveryAlert without config = %v", err)
	}
}

func TestFormatPorts(t *testing.T) {
	if got := formatPorts([]int{0, 3}); got != "1, 4" {
		t.Errorf("formatPorts = %q, want 1-based list", got)
	}
	if got := formatPorts(nil); got != "-" {
		t.Errorf("formatPorts(nil) = %q", got)
	}
}
