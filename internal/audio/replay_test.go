package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"levelmeter/internal/meter"
	"levelmeter/pkg/utils"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV writes frames of 16-bit PCM where channel ch is a square wave
// at levels[ch] dBFS.
func writeTestWAV(t *testing.T, frames int, levels []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	channels := len(levels)
	src := utils.GenerateSquareDB(frames, levels)
	data := make([]int, len(src))
	for i, s := range src {
		data[i] = int(s >> 16)
	}

	enc := wav.NewEncoder(f, testSampleRate, 16, channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: testSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

// writeRawWAV writes a canonical 44-byte header followed by data, so format
// tags and bit depths the encoder does not produce can be exercised.
func writeRawWAV(t *testing.T, formatTag, bitDepth, channels int, data []byte) string {
	t.Helper()
	blockAlign := channels * bitDepth / 8

	b := make([]byte, 0, 44+len(data))
	b = append(b, "RIFF"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(36+len(data)))
	b = append(b, "WAVEfmt "...)
	b = binary.LittleEndian.AppendUint32(b, 16)
	b = binary.LittleEndian.AppendUint16(b, uint16(formatTag))
	b = binary.LittleEndian.AppendUint16(b, uint16(channels))
	b = binary.LittleEndian.AppendUint32(b, testSampleRate)
	b = binary.LittleEndian.AppendUint32(b, uint32(testSampleRate*blockAlign))
	b = binary.LittleEndian.AppendUint16(b, uint16(blockAlign))
	b = binary.LittleEndian.AppendUint16(b, uint16(bitDepth))
	b = append(b, "data"...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(data)))
	b = append(b, data...)

	path := filepath.Join(t.TempDir(), "raw.wav")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestReplay8Bit(t *testing.T) {
	const frames = 4 * testFrameSize

	// Channel 0 sits on the unsigned midpoint, channel 1 swings ±64 around it.
	data := make([]byte, 2*frames)
	for i := range frames {
		data[2*i] = 128
		data[2*i+1] = 192
		if i%2 == 1 {
			data[2*i+1] = 64
		}
	}
	path := writeRawWAV(t, wavFormatPCM, 8, 2, data)
	rec := utils.NewLevelRecorder()

	stats, err := Replay(context.Background(), path, rec, ReplayOptions{
		FramesPerBuffer: testFrameSize,
		NoiseFloorDB:    -90,
		Fast:            true,
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if stats.BitDepth != 8 || stats.Frames != frames {
		t.Errorf("stats = %+v", stats)
	}
	if got := rec.Max(0); got != meter.SilenceDB {
		t.Errorf("silent 8-bit channel peak = %.2f dBFS, want silence", got)
	}
	if got := rec.Max(1); math.Abs(got+6.02) > 0.05 {
		t.Errorf("half-scale 8-bit channel peak = %.2f dBFS, want -6.02", got)
	}
}

func TestReplayFast(t *testing.T) {
	path := writeTestWAV(t, 10*testFrameSize+17, []float64{-3, -20})
	rec := utils.NewLevelRecorder()

	stats, err := Replay(context.Background(), path, rec, ReplayOptions{
		FramesPerBuffer: testFrameSize,
		NoiseFloorDB:    -90,
		Fast:            true,
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if stats.Channels != 2 || stats.SampleRate != testSampleRate || stats.BitDepth != 16 {
		t.Errorf("format = %+v", stats)
	}
	if stats.Frames != 10*testFrameSize+17 || stats.Blocks != 11 {
		t.Errorf("frames = %d blocks = %d, want %d and 11", stats.Frames, stats.Blocks, 10*testFrameSize+17)
	}
	wantDuration := time.Duration(stats.Frames) * time.Second / testSampleRate
	if stats.Duration() != wantDuration {
		t.Errorf("Duration() = %s, want %s", stats.Duration(), wantDuration)
	}

	if got := rec.Max(0); math.Abs(got+3) > 0.05 {
		t.Errorf("port 0 peak = %.3f, want -3", got)
	}
	if got := rec.Max(1); math.Abs(got+20) > 0.05 {
		t.Errorf("port 1 peak = %.3f, want -20", got)
	}
	if rec.Count(0) != 12 {
		t.Errorf("port 0 updates = %d, want 11 blocks plus the final silence", rec.Count(0))
	}
	for port := range 2 {
		if v, _ := rec.Last(port); v != meter.SilenceDB {
			t.Errorf("port %d ends at %v, want silence", port, v)
		}
	}
}

func TestReplayPaced(t *testing.T) {
	const blocks = 4
	path := writeTestWAV(t, blocks*testFrameSize, []float64{-6})

	start := time.Now()
	_, err := Replay(context.Background(), path, utils.NewLevelRecorder(), ReplayOptions{
		FramesPerBuffer: testFrameSize,
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	block := time.Duration(testFrameSize) * time.Second / testSampleRate
	if elapsed := time.Since(start); elapsed < (blocks-1)*block {
		t.Errorf("paced replay took %s, want at least %s", elapsed, (blocks-1)*block)
	}
}

func TestReplayCancelled(t *testing.T) {
	path := writeTestWAV(t, 100*testFrameSize, []float64{-6})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, fast := range []bool{false, true} {
		stats, err := Replay(ctx, path, utils.NewLevelRecorder(), ReplayOptions{
			FramesPerBuffer: testFrameSize,
			Fast:            fast,
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("fast=%v: err = %v, want context.Canceled", fast, err)
		}
		if stats.Blocks != 1 {
			t.Errorf("fast=%v: blocks = %d, want to stop after the first", fast, stats.Blocks)
		}
	}
}

func TestReplayErrors(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(garbage, []byte("this is not a riff file at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		path   string
		target error
	}{
		{"Missing file", filepath.Join(t.TempDir(), "missing.wav"), os.ErrNotExist},
		{"Not a WAV", garbage, ErrInvalidWAV},
		{"Float samples", writeRawWAV(t, 3, 32, 1, make([]byte, 4*testFrameSize)), ErrUnsupportedWAV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Replay(context.Background(), tt.path, utils.NewLevelRecorder(), ReplayOptions{Fast: true})
			if !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
		})
	}
}
