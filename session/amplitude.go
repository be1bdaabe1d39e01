package session

import "math"

// NormalizedAmplitude converts an average power in dB to a linear amplitude. For
// power <= 0 the result is in (0, 1], with exactly 1 at 0 dB.
func NormalizedAmplitude(powerDB float64) float64 {
	return math.Pow(10, powerDB/20)
}
