// SPDX-License-Identifier: MIT
package meter

import "fmt"

// Band is a loudness zone of the meter, ordered from quietest to loudest.
type Band uint8

const (
	Band10dB Band = iota // Below the -10 dB mark
	Band6dB              // -10 dB to -6 dB
	Band3dB              // -6 dB to -3 dB
	Band0dB              // -3 dB to 0 dB
	BandOver             // At or above 0 dB
	BandCount
)

var bandNames = [BandCount]string{"10dB", "6dB", "3dB", "0dB", "over"}

// String returns the short name of the band.
func (b Band) String() string {
	if b < BandCount {
		return bandNames[b]
	}
	return "unknown"
}

// MarshalText encodes the band by name, so JSON snapshots stay readable.
func (b Band) MarshalText() ([]byte, error) {
	if b >= BandCount {
		return nil, fmt.Errorf("invalid band %d", uint8(b))
	}
	return []byte(bandNames[b]), nil
}

// UnmarshalText decodes a band name produced by MarshalText.
func (b *Band) UnmarshalText(text []byte) error {
	for i, name := range bandNames {
		if name == string(text) {
			*b = Band(i)
			return nil
		}
	}
	return fmt.Errorf("unknown band %q", text)
}

// ClassifyPosition returns the band of row y, measured in pixels from the
// bottom of the meter. Lower bounds are inclusive. The -20 dB mark does not
// split a band.
func ClassifyPosition(y int, levels [LevelCount]int) Band {
	switch {
	case y >= levels[Level0dB]:
		return BandOver
	case y >= levels[Level3dB]:
		return Band0dB
	case y >= levels[Level6dB]:
		return Band3dB
	case y >= levels[Level10dB]:
		return Band6dB
	default:
		return Band10dB
	}
}
