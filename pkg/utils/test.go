// Package utils holds test helpers shared by several packages: signal
// generators and recording stand-ins for the meter and its transports.
package utils

import (
	"math"
	"sync"

	"levelmeter/internal/meter"
)

// AmplitudeDB converts dBFS to a linear amplitude, 0 dBFS being 1.0.
func AmplitudeDB(dB float64) float64 {
	return math.Pow(10, dB/20)
}

// GenerateSineWave returns size full-range int32 samples of a sine at
// frequency Hz peaking at 0.9 of full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []int32 {
	return GenerateToneDB(size, 1, sampleRate, frequency, 20*math.Log10(0.9))
}

// GenerateToneDB returns frames interleaved frames with every channel
// carrying the same sine peaking at dBFS.
func GenerateToneDB(frames, channels int, sampleRate, frequency, dBFS float64) []int32 {
	amp := AmplitudeDB(dBFS)
	buffer := make([]int32, frames*channels)
	for i := range frames {
		t := float64(i) / sampleRate
		s := int32(math.Sin(2*math.Pi*frequency*t) * amp * math.MaxInt32)
		for ch := range channels {
			buffer[i*channels+ch] = s
		}
	}
	return buffer
}

// GenerateSquareDB returns frames interleaved frames where channel ch holds a
// constant-magnitude square wave at levels[ch] dBFS. NaN or -Inf entries
// produce digital silence.
func GenerateSquareDB(frames int, levels []float64) []int32 {
	channels := len(levels)
	buffer := make([]int32, frames*channels)
	for ch, dB := range levels {
		if math.IsNaN(dB) || math.IsInf(dB, -1) {
			continue
		}
		s := int32(math.Min(AmplitudeDB(dB), 1) * math.MaxInt32)
		for i := range frames {
			v := s
			if i%2 == 1 {
				v = -s
			}
			buffer[i*channels+ch] = v
		}
	}
	return buffer
}

// LevelRecorder stands in for a meter and remembers every level it is given.
type LevelRecorder struct {
	mu     sync.Mutex
	last   map[int]float64
	max    map[int]float64
	counts map[int]int
}

func NewLevelRecorder() *LevelRecorder {
	return &LevelRecorder{
		last:   make(map[int]float64),
		max:    make(map[int]float64),
		counts: make(map[int]int),
	}
}

func (r *LevelRecorder) SetValue(port int, dB float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.counts[port]; n == 0 || dB > r.max[port] {
		r.max[port] = dB
	}
	r.last[port] = dB
	r.counts[port]++
}

// Last returns the most recent level of port and whether one was set.
func (r *LevelRecorder) Last(port int) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.last[port]
	return v, ok
}

// Max returns the loudest level seen on port.
func (r *LevelRecorder) Max(port int) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max[port]
}

// Count returns how many levels port received.
func (r *LevelRecorder) Count(port int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[port]
}

// MockTransport implements transport.Transport for testing by keeping a deep
// copy of every snapshot it is sent.
type MockTransport struct {
	mu        sync.Mutex
	Snapshots []meter.Snapshot
	Others    []any
	SendErr   error
	Closed    bool
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	switch v := data.(type) {
	case *meter.Snapshot:
		m.Snapshots = append(m.Snapshots, v.Clone())
	case meter.Snapshot:
		m.Snapshots = append(m.Snapshots, v.Clone())
	default:
		m.Others = append(m.Others, data)
	}
	return nil
}

func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Len returns the number of snapshots received.
func (m *MockTransport) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Snapshots)
}

// Last returns a copy of the most recent snapshot.
func (m *MockTransport) Last() (meter.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Snapshots) == 0 {
		return meter.Snapshot{}, false
	}
	return m.Snapshots[len(m.Snapshots)-1].Clone(), true
}
