package adapter

import "math"

// QuantizeLevel maps a level on the 0-100 command scale to a port's
// native scale of discrete steps.
//
// A fan with 10 native steps maps 47 to step 5; a percentage dimmer
// (100 steps) passes levels through unchanged. Rounding is
// half-away-from-zero, so 45 on a 10-step scale rounds up to 5.
//
// Parameters:
//   - level: Commanded level, 0-100
//   - steps: Native steps above off the hardware accepts (e.g. 10)
//
// Returns the native step in [0, steps]. Scales with fewer than one
// step degenerate to on/off: any non-zero level becomes step 1.
func QuantizeLevel(level, steps int) int {
	if level <= 0 {
		return 0
	}
	if level > 100 {
		level = 100
	}
	if steps <= 1 {
		return 1
	}

	native := int(math.Round(float64(level) * float64(steps) / 100))
	if native < 1 {
		// A non-zero command never quantizes to fully off.
		native = 1
	}
	return native
}

// NativeToLevel converts a native step back to the 0-100 scale, for
// reporting the level that was actually applied.
func NativeToLevel(native, steps int) int {
	if native <= 0 || steps <= 0 {
		return 0
	}
	if native > steps {
		native = steps
	}
	return int(math.Round(float64(native) * 100 / float64(steps)))
}
