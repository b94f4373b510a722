// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"levelmeter/pkg/utils"
)

func TestRecordingFileName(t *testing.T) {
	now := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	got := RecordingFileName("out", now)
	want := filepath.Join("out", "levelmeter-20250314-150926.wav")
	if got != want {
		t.Errorf("RecordingFileName = %q, want %q", got, want)
	}
}

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nested", "take.wav")
	engine := newEngine(newTestConfig(2), utils.NewLevelRecorder())

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if !engine.IsRecording() {
		t.Error("Engine should be in recording state")
	}
	if engine.sampleBuf.Format.NumChannels != 2 {
		t.Errorf("Buffer channels mismatch: got %d, want 2", engine.sampleBuf.Format.NumChannels)
	}
	if len(engine.sampleBuf.Data) != testFrameSize*2 {
		t.Errorf("Buffer size mismatch: got %d, want %d", len(engine.sampleBuf.Data), testFrameSize*2)
	}

	if err := engine.StartRecording(filename); err == nil || !strings.Contains(err.Error(), "already recording") {
		t.Errorf("expected already recording error, got %v", err)
	}

	if err := engine.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if engine.IsRecording() || engine.outputFile != nil || engine.wavEncoder != nil {
		t.Error("Recording state should be cleared after stopping")
	}

	// Stopping twice is a no-op.
	if err := engine.StopRecording(); err != nil {
		t.Errorf("second StopRecording: %v", err)
	}

	if _, err := os.Stat(filename); err != nil {
		t.Errorf("recording file missing: %v", err)
	}
}

func TestRecordingBitDepth(t *testing.T) {
	cfg := newTestConfig(1)
	cfg.Recording.BitDepth = 12
	engine := newEngine(cfg, utils.NewLevelRecorder())

	err := engine.StartRecording(filepath.Join(t.TempDir(), "x.wav"))
	if err == nil || !strings.Contains(err.Error(), "bit depth") {
		t.Errorf("expected bit depth error, got %v", err)
	}
}

// Capture with recording enabled, then replay the file and expect the same
// levels back.
func TestRecordingRoundTrip(t *testing.T) {
	for _, bitDepth := range []int{16, 24, 32} {
		t.Run(fmt.Sprintf("%d-bit", bitDepth), func(t *testing.T) {
			cfg := newTestConfig(2)
			cfg.Recording.BitDepth = bitDepth
			engine := newEngine(cfg, utils.NewLevelRecorder())

			filename := filepath.Join(t.TempDir(), "take.wav")
			if err := engine.StartRecording(filename); err != nil {
				t.Fatalf("StartRecording: %v", err)
			}
			input := utils.GenerateSquareDB(testFrameSize, []float64{-6, -40})
			for range 8 {
				engine.processInputStream(input)
			}
			if err := engine.StopRecording(); err != nil {
				t.Fatalf("StopRecording: %v", err)
			}

			rec := utils.NewLevelRecorder()
			stats, err := Replay(context.Background(), filename, rec, ReplayOptions{
				FramesPerBuffer: testFrameSize,
				NoiseFloorDB:    -100,
				Fast:            true,
			})
			if err != nil {
				t.Fatalf("Replay: %v", err)
			}
			if stats.Frames != 8*testFrameSize || stats.BitDepth != bitDepth {
				t.Errorf("stats = %+v", stats)
			}
			if got := rec.Max(0); math.Abs(got+6) > 0.05 {
				t.Errorf("port 0 peak = %.3f dB, want -6", got)
			}
			if got := rec.Max(1); math.Abs(got+40) > 0.05 {
				t.Errorf("port 1 peak = %.3f dB, want -40", got)
			}
		})
	}
}
