package transport

import (
	applog "levelmeter/internal/log"
	"levelmeter/internal/meter"
)

// LoggingTransport implements the Transport interface by logging snapshots at
// debug level, every Nth one.
type LoggingTransport struct {
	every uint64
	log   applog.Logger
}

// NewLoggingTransport creates a LoggingTransport that logs every Nth
// snapshot. Values below 1 log every snapshot.
func NewLoggingTransport(every int) *LoggingTransport {
	if every < 1 {
		every = 1
	}
	lt := &LoggingTransport{every: uint64(every), log: applog.Named("snapshot")}
	lt.log.Infof("using logging transport (every %d)", every)
	return lt
}

// Send logs the received data. It never fails.
func (lt *LoggingTransport) Send(data any) error {
	if applog.GetLevel() > applog.LevelDebug {
		return nil
	}

	switch snap := data.(type) {
	case *meter.Snapshot:
		if snap.Seq%lt.every != 0 {
			return nil
		}
		lt.log.Debugf("seq=%d scale=%.0f falloff=%v ports=%v", snap.Seq, snap.Scale, snap.PeakFalloff, snap.Ports)
	default:
		lt.log.Debugf("received (%T): %+v", data, data)
	}
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.log.Debugf("close called")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
