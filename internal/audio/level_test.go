// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"

	"levelmeter/internal/meter"
)

func TestPeakDB(t *testing.T) {
	tests := []struct {
		name     string
		samples  []float64
		expected float64
	}{
		{"Full scale", []float64{0.2, -1.0, 0.5}, 0},
		{"Half scale", []float64{0.5, -0.25}, 20 * math.Log10(0.5)},
		{"Tenth", []float64{-0.1, 0.05}, -20},
		{"Hot signal", []float64{2}, 20 * math.Log10(2)},
		{"Silence", []float64{0, 0, 0}, meter.SilenceDB},
		{"Empty", nil, meter.SilenceDB},
		{"Below floor", []float64{1e-9}, meter.SilenceDB},
		{"NaN", []float64{math.NaN()}, meter.SilenceDB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PeakDB(tt.samples)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("PeakDB(%v) = %v, want %v", tt.samples, got, tt.expected)
			}
		})
	}
}

func TestDeinterleave(t *testing.T) {
	src := []int32{math.MaxInt32, 0, math.MinInt32, 1 << 30, 0, -(1 << 30)}
	dst := channelBuffers(2, 3)

	frames := Deinterleave(dst, src)
	if frames != 3 {
		t.Fatalf("frames = %d, want 3", frames)
	}

	wantL := []float64{float64(math.MaxInt32) / (1 << 31), -1, 0}
	wantR := []float64{0, 0.5, -0.5}
	for i := range 3 {
		if dst[0][i] != wantL[i] || dst[1][i] != wantR[i] {
			t.Errorf("frame %d = (%v, %v), want (%v, %v)", i, dst[0][i], dst[1][i], wantL[i], wantR[i])
		}
	}
}

func TestDeinterleaveShortBuffers(t *testing.T) {
	src := make([]int32, 10) // Five stereo frames
	dst := channelBuffers(2, 4)

	if got := Deinterleave(dst, src); got != 4 {
		t.Errorf("frames = %d, want capped at destination length 4", got)
	}
	if got := Deinterleave(nil, src); got != 0 {
		t.Errorf("frames with no channels = %d, want 0", got)
	}
	if got := Deinterleave(dst, src[:3]); got != 1 {
		t.Errorf("frames with partial frame = %d, want 1", got)
	}
}

func TestDeinterleaveInts(t *testing.T) {
	tests := []struct {
		bitDepth int
		sample   int
		expected float64
	}{
		{16, 16384, 0.5},
		{16, -32768, -1},
		{24, 1 << 22, 0.5},
		{32, -(1 << 30), -0.5},
		{8, 128, 0},
		{8, 0, -1},
		{8, 192, 0.5},
		{0, 100, 0},
		{33, 100, 0},
	}

	for _, tt := range tests {
		dst := channelBuffers(1, 1)
		DeinterleaveInts(dst, []int{tt.sample}, tt.bitDepth)
		if dst[0][0] != tt.expected {
			t.Errorf("%d-bit %d = %v, want %v", tt.bitDepth, tt.sample, dst[0][0], tt.expected)
		}
	}
}

func TestGate(t *testing.T) {
	if gate(-95, -90) != meter.SilenceDB {
		t.Error("level below the floor should read as silence")
	}
	if gate(-90, -90) != -90 {
		t.Error("level at the floor should pass")
	}
	if gate(-99, meter.SilenceDB) != -99 {
		t.Error("floor at silence should not gate")
	}
}

func TestPeakDBHotPath(t *testing.T) {
	src := make([]int32, 1024)
	for i := range src {
		src[i] = int32(i * 1000)
	}
	dst := channelBuffers(2, 512)

	allocs := testing.AllocsPerRun(100, func() {
		frames := Deinterleave(dst, src)
		for _, ch := range dst {
			_ = PeakDB(ch[:frames])
		}
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in level detection, got %.1f", allocs)
	}
}

func BenchmarkHotPath(b *testing.B) {
	src := make([]int32, 1024)
	for i := range src {
		src[i] = int32((i % 100) * 10000000)
	}
	dst := channelBuffers(2, 512)

	b.ReportAllocs()
	for b.Loop() {
		frames := Deinterleave(dst, src)
		for _, ch := range dst {
			_ = PeakDB(ch[:frames])
		}
	}
}
