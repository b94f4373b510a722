// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"levelmeter/internal/meter"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM format tag.
const wavFormatPCM = 1

var (
	ErrInvalidWAV     = errors.New("not a valid WAV file")
	ErrUnsupportedWAV = errors.New("unsupported WAV encoding")
)

// ReplayOptions control how a file is fed to the meter.
type ReplayOptions struct {
	FramesPerBuffer int     // Frames per level update.
	NoiseFloorDB    float64 // Levels below this report silence.
	Fast            bool    // Skip real-time pacing.
}

// ReplayStats describes a finished or interrupted replay.
type ReplayStats struct {
	Channels   int
	SampleRate int
	BitDepth   int
	Frames     int
	Blocks     int
}

// Duration is the audio time covered by the replayed frames.
func (s ReplayStats) Duration() time.Duration {
	if s.SampleRate == 0 {
		return 0
	}
	return time.Duration(s.Frames) * time.Second / time.Duration(s.SampleRate)
}

// Replay decodes the PCM WAV file at path block by block and reports the
// peak of each channel to sink, paced at the file's sample rate unless
// opts.Fast is set. When the file ends every channel is set back to silence.
// Cancelling ctx stops the replay and returns ctx.Err().
func Replay(ctx context.Context, path string, sink LevelSink, opts ReplayOptions) (ReplayStats, error) {
	var stats ReplayStats

	file, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return stats, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return stats, fmt.Errorf("%s: format tag %d: %w", path, decoder.WavAudioFormat, ErrUnsupportedWAV)
	}

	stats.Channels = int(decoder.NumChans)
	stats.SampleRate = int(decoder.SampleRate)
	stats.BitDepth = int(decoder.BitDepth)
	if stats.Channels == 0 || stats.SampleRate == 0 {
		return stats, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}

	frames := opts.FramesPerBuffer
	if frames <= 0 {
		frames = 512
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: stats.Channels,
			SampleRate:  stats.SampleRate,
		},
		Data:           make([]int, frames*stats.Channels),
		SourceBitDepth: stats.BitDepth,
	}
	channelBufs := channelBuffers(stats.Channels, frames)

	var tick <-chan time.Time
	if !opts.Fast {
		ticker := time.NewTicker(time.Duration(frames) * time.Second / time.Duration(stats.SampleRate))
		defer ticker.Stop()
		tick = ticker.C
	}

	logger.Infof("replaying %s: %d channels, %d Hz, %d-bit", path, stats.Channels, stats.SampleRate, stats.BitDepth)

	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return stats, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if n == 0 {
			break
		}

		got := DeinterleaveInts(channelBufs, buf.Data[:n], stats.BitDepth)
		for ch, samples := range channelBufs {
			sink.SetValue(ch, gate(PeakDB(samples[:got]), opts.NoiseFloorDB))
		}
		stats.Frames += got
		stats.Blocks++

		if tick == nil {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-tick:
		}
	}

	for ch := range stats.Channels {
		sink.SetValue(ch, meter.SilenceDB)
	}

	logger.Infof("replay finished: %d frames (%s)", stats.Frames, stats.Duration())
	return stats, nil
}
