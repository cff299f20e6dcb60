// Package curve computes sunrise and sunset brightness ramps.
//
// The engine itself is three pure functions over minute-of-day
// arithmetic: Progress (elapsed fraction of a window, wrapping across
// midnight), Shape (linear, sigmoid, or exponential easing), and
// Intensity (shaped progress scaled to a target level, inverted for
// sunset). DimmerConfig ties the functions to a controller port and is
// persisted in SQLite; the sunlight job evaluates active configs each
// run and pushes the resulting levels through a device adapter.
package curve
