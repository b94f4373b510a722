package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// LogEntry is one JSON line in the alert log.
type LogEntry struct {
	Timestamp   string  `json:"timestamp"`
	Event       string  `json:"event"`
	DurationSec float64 `json:"duration_sec,omitempty"`
	Ports       []int   `json:"ports,omitempty"`
}

const (
	EventOverStart = "over_start"
	EventOverEnd   = "over_end"
)

// LogOverStart records the beginning of an over alert.
func LogOverStart(logPath string, duration time.Duration, ports []int, now time.Time) error {
	return appendLogEntry(logPath, LogEntry{
		Timestamp:   now.UTC().Format(time.RFC3339),
		Event:       EventOverStart,
		DurationSec: duration.Seconds(),
		Ports:       ports,
	})
}

// LogOverEnd records the end of an over alert with its total duration.
func LogOverEnd(logPath string, total time.Duration, now time.Time) error {
	return appendLogEntry(logPath, LogEntry{
		Timestamp:   now.UTC().Format(time.RFC3339),
		Event:       EventOverEnd,
		DurationSec: total.Seconds(),
	})
}

// appendLogEntry appends a JSON log entry to the file.
func appendLogEntry(logPath string, entry LogEntry) error {
	if logPath == "" {
		return nil
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	jsonData = append(jsonData, '\n')

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(jsonData); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	return nil
}
