// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture engine and the meter.
const (
	// Audio defaults
	DefaultDeviceID        = MinDeviceID // System default input device
	DefaultChannels        = 2           // Stereo metering
	DefaultSampleRate      = 48000       // Broadcast sample rate
	DefaultFramesPerBuffer = 512         // ~10ms at 48kHz
	DefaultLowLatency      = false       // Standard latency mode
	DefaultNoiseFloorDB    = -90.0       // Anything quieter reads as silence

	// Meter defaults
	DefaultRefreshRate = 30    // Display refresh ticks per second
	DefaultPeakFalloff = true  // Peak line decays back to zero
	DefaultHeight      = 100.0 // Initial meter extent in pixels/rows

	// Recording defaults
	DefaultRecordInputStream = false
	DefaultOutputDir         = "./recordings"
	DefaultBitDepth          = 32

	// Transport defaults
	DefaultWebSocketAddress = ":8080"
	DefaultUDPTarget        = "127.0.0.1:9090"

	// Alert defaults
	DefaultOverDuration     = 2 * time.Second
	DefaultRecoveryDuration = 5 * time.Second
	DefaultSMTPPort         = 587

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxChannels     = 32     // Maximum metered ports
	MaxRefreshRate  = 240    // Maximum display refresh rate (Hz)
)
