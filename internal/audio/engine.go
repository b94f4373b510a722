// SPDX-License-Identifier: MIT
/*
Package audio feeds level meters from audio sources:
- Live capture from a PortAudio input device
- Block-paced replay of WAV files
- Per-channel peak dBFS with a configurable noise floor
- WAV recording of the captured input with atomic state management

Thread Safety:
- The capture callback only writes levels through LevelSink.SetValue
- Pre-allocates buffers to avoid GC in hot path
- Locks OS thread during audio processing
*/
package audio

import (
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"levelmeter/internal/config"
	applog "levelmeter/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

var logger = applog.Named("audio")

// LevelSink receives one level in dBFS per port. *meter.Meter implements it.
type LevelSink interface {
	SetValue(port int, dB float64)
}

type Engine struct {
	// Core configuration and state.
	config *config.Config
	sink   LevelSink

	// Audio input handling.
	inputBuffer  []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Per-channel level detection.
	channelBufs [][]float64
	noiseFloor  float64

	// Recording state and buffers.
	isRecording atomic.Bool
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
	sampleShift uint             // int32 to recorded bit depth
}

// NewEngine resolves the configured input device and prepares an engine that
// reports one level per input channel to sink.
func NewEngine(cfg *config.Config, sink LevelSink) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.Audio.InputDevice)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg, sink)
	engine.inputDevice = inputDevice

	if cfg.Audio.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	return engine, nil
}

func newEngine(cfg *config.Config, sink LevelSink) *Engine {
	// Pre-allocate I/O buffers sized for frames × channels.
	inputSize := cfg.Audio.FramesPerBuffer * cfg.Audio.InputChannels

	return &Engine{
		config:      cfg,
		sink:        sink,
		inputBuffer: make([]int32, inputSize),
		channelBufs: channelBuffers(cfg.Audio.InputChannels, cfg.Audio.FramesPerBuffer),
		noiseFloor:  cfg.Audio.NoiseFloorDB,
	}
}

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.Audio.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.Audio.FramesPerBuffer,
		SampleRate:      e.config.Audio.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}

	logger.Infof("capturing %d channels from %q at %.0f Hz, %d frames per buffer",
		e.config.Audio.InputChannels, e.inputDevice.Name, e.config.Audio.SampleRate, e.config.Audio.FramesPerBuffer)
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer[:n])

	if e.isRecording.Load() && e.wavEncoder != nil {
		e.writeRecording(e.inputBuffer[:n])
	}
}

// processBuffer reports the peak of every channel in buffer to the sink.
// Performance Critical (Hot Path): no allocations.
func (e *Engine) processBuffer(buffer []int32) {
	frames := Deinterleave(e.channelBufs, buffer)
	for ch, samples := range e.channelBufs {
		e.sink.SetValue(ch, gate(PeakDB(samples[:frames]), e.noiseFloor))
	}
}
