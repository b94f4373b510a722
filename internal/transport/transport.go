// Package transport publishes meter snapshots to collaborators outside the
// process.
package transport

// Transport defines a generic interface for sending snapshots or events.
// Send is called from the refresh goroutine with a value that is reused
// after Send returns, so implementations must copy or encode it before
// returning. Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}
