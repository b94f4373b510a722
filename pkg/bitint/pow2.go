// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size audio
buffers. Both functions are branch-light, allocation free and safe to call
from the audio callback.

Usage:

	// Round a requested buffer size up to something PortAudio hosts accept
	frames := bitint.NextPowerOfTwo(1000) // Returns 1024

	// Validate a configured buffer size
	ok := bitint.IsPowerOfTwo(frames)

NextPowerOfTwo works on size-1 so that exact powers of two map to
themselves: for 8, bits.Len(7) = 3 and 1<<3 = 8, whereas bits.Len(8) = 4
would double it.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size.
// Zero and negative sizes return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
// A power of two has a single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
