package ring

import "math/bits"

func fls(x uint32) int {
	if x == 0 {
		return 0
	}
	return 32 - bits.LeadingZeros32(x)
}

func roundupPow2(depth uint32) uint32 {
	if depth <= 1 {
		return 1
	}
	return 1 << fls(depth-1)
}
