package curve

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind selects the shape function for a ramp.
type Kind string

const (
	KindLinear      Kind = "linear"
	KindSigmoid     Kind = "sigmoid"
	KindExponential Kind = "exponential"
)

// Event distinguishes the two ramp directions.
type Event string

const (
	EventSunrise Event = "sunrise"
	EventSunset  Event = "sunset"
)

const minutesPerDay = 1440

// ErrInvalidClock is returned when a clock string is not "HH:MM".
var ErrInvalidClock = errors.New("curve: invalid clock time")

// Progress returns elapsed fraction of a ramp window in [0, 1].
//
// Elapsed time is measured from startMinute, wrapped across midnight,
// and clamped to the window length: a window starting at 23:30 with a
// 60-minute duration is 75% complete at 00:15.
func Progress(currentMinute, startMinute, durationMinutes int) float64 {
	if durationMinutes <= 0 {
		return 1
	}

	elapsed := (currentMinute - startMinute + minutesPerDay) % minutesPerDay
	p := float64(elapsed) / float64(durationMinutes)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Shape maps linear progress through a curve kind, returning a value
// in [0, 1].
//
// Boundaries are pinned for every kind: Shape(0, k) = 0 and
// Shape(1, k) = 1, so a ramp always starts fully off and ends fully at
// target regardless of shape. Unknown kinds fall back to linear.
func Shape(progress float64, kind Kind) float64 {
	if progress <= 0 {
		return 0
	}
	if progress >= 1 {
		return 1
	}

	switch kind {
	case KindSigmoid:
		// Logistic curve centered at the window midpoint.
		return 1 / (1 + math.Exp(-10*(progress-0.5)))
	case KindExponential:
		// Square root reads as a perceptually linear brightness ramp.
		return math.Sqrt(progress)
	default:
		return progress
	}
}

// Intensity converts shaped progress to a dimmer level in [0, 100].
//
// Sunrise ramps toward target; sunset ramps away from it.
func Intensity(event Event, shapedProgress float64, targetIntensity int) int {
	if targetIntensity < 0 {
		targetIntensity = 0
	}
	if targetIntensity > 100 {
		targetIntensity = 100
	}

	fraction := shapedProgress
	if event == EventSunset {
		fraction = 1 - shapedProgress
	}
	return int(math.Round(fraction * float64(targetIntensity)))
}

// InWindow reports whether a minute-of-day falls within
// [start, start+duration], modulo 1440. Both boundaries are inclusive,
// and windows crossing midnight are handled.
func InWindow(currentMinute, startMinute, durationMinutes int) bool {
	if durationMinutes < 0 {
		return false
	}
	if durationMinutes >= minutesPerDay {
		return true
	}
	elapsed := (currentMinute - startMinute + minutesPerDay) % minutesPerDay
	return elapsed <= durationMinutes
}

// MinuteOfDay returns t's minute-of-day in its own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseClock parses an "HH:MM" string into a minute-of-day.
func ParseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}
