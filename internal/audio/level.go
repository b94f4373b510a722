// SPDX-License-Identifier: MIT
package audio

import (
	"math"

	"levelmeter/internal/meter"

	"gonum.org/v1/gonum/floats"
)

// int32Scale normalizes full-range int32 samples to [-1, 1).
const int32Scale = 1.0 / (1 << 31)

// PeakDB returns the sample peak of one channel block in dBFS. Empty blocks,
// digital silence and anything below meter.SilenceDB read as meter.SilenceDB.
func PeakDB(samples []float64) float64 {
	if len(samples) == 0 {
		return meter.SilenceDB
	}

	peak := math.Max(floats.Max(samples), -floats.Min(samples))
	if !(peak > 0) {
		return meter.SilenceDB
	}

	db := 20 * math.Log10(peak)
	if db < meter.SilenceDB {
		return meter.SilenceDB
	}
	return db
}

// Deinterleave splits interleaved full-range int32 frames into dst, one
// normalized slice per channel. It returns the number of whole frames written.
func Deinterleave(dst [][]float64, src []int32) int {
	return deinterleave(dst, src, 0, int32Scale)
}

// DeinterleaveInts is Deinterleave for go-audio IntBuffer data decoded at
// bitDepth bits per sample. 8-bit PCM is unsigned and centred on 128.
func DeinterleaveInts(dst [][]float64, src []int, bitDepth int) int {
	if bitDepth < 1 || bitDepth > 32 {
		return 0
	}
	half := float64(uint64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		return deinterleave(dst, src, half, 1/half)
	}
	return deinterleave(dst, src, 0, 1/half)
}

func deinterleave[T int | int32](dst [][]float64, src []T, offset, scale float64) int {
	channels := len(dst)
	if channels == 0 {
		return 0
	}

	frames := len(src) / channels
	for ch := range dst {
		frames = min(frames, len(dst[ch]))
	}

	for ch, out := range dst {
		for i := range frames {
			out[i] = (float64(src[i*channels+ch]) - offset) * scale
		}
	}
	return frames
}

// channelBuffers allocates one frames-long buffer per channel.
func channelBuffers(channels, frames int) [][]float64 {
	bufs := make([][]float64, channels)
	for ch := range bufs {
		bufs[ch] = make([]float64, frames)
	}
	return bufs
}
