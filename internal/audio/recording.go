package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// RecordingFileName returns a timestamped WAV path inside dir.
func RecordingFileName(dir string, now time.Time) string {
	return filepath.Join(dir, "levelmeter-"+now.Format("20060102-150405")+".wav")
}

// StartRecording writes the captured input to filename as PCM WAV at the
// configured bit depth until StopRecording is called.
func (e *Engine) StartRecording(filename string) error {
	if e.isRecording.Load() {
		return fmt.Errorf("already recording")
	}

	bitDepth := e.config.Recording.BitDepth
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return fmt.Errorf("unsupported recording bit depth: %d", bitDepth)
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create recording directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	e.outputFile = file

	channels := e.config.Audio.InputChannels
	sampleRate := int(e.config.Audio.SampleRate)

	e.wavEncoder = wav.NewEncoder(file, sampleRate, bitDepth, channels, 1)
	e.sampleShift = uint(32 - bitDepth)
	e.sampleBuf = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, e.config.Audio.FramesPerBuffer*channels),
		SourceBitDepth: bitDepth,
	}

	e.isRecording.Store(true)
	logger.Infof("recording input to %s (%d-bit)", filename, bitDepth)

	return nil
}

func (e *Engine) StopRecording() error {
	if !e.isRecording.Swap(false) {
		return nil
	}

	if e.wavEncoder != nil {
		if err := e.wavEncoder.Close(); err != nil {
			return err
		}
		e.wavEncoder = nil
	}

	if e.outputFile != nil {
		if err := e.outputFile.Close(); err != nil {
			return err
		}
		e.outputFile = nil
	}

	return nil
}

// IsRecording reports whether input is currently written to disk.
func (e *Engine) IsRecording() bool {
	return e.isRecording.Load()
}

func (e *Engine) writeRecording(buffer []int32) {
	data := e.sampleBuf.Data[:cap(e.sampleBuf.Data)]
	n := min(len(buffer), len(data))
	for i := range n {
		data[i] = int(buffer[i] >> e.sampleShift)
	}
	e.sampleBuf.Data = data[:n]

	if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
		logger.Errorf("error writing to WAV file: %v", err)
	}
}
