package train

import "math"

// weight evaluates the neighbourhood function at grid distance d for the given radius.
func (c Config) weight(d, radius float64) float64 {
	switch c.Kernel {
	case Bubble:
		if d <= radius {
			return 1
		}
		return 0
	default:
		if c.Support == Compact && d > radius {
			return 0
		}
		return math.Exp(-(d * d) / (2 * radius * radius))
	}
}
