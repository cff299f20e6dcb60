package curve

import "time"

// DimmerConfig describes one dimmer port's daily sunrise and sunset
// ramps. This matches the dimmer_configs table in the initial schema
// migration.
type DimmerConfig struct {
	ID           string `json:"id"`
	ControllerID string `json:"controller_id"`
	DimmerPort   int    `json:"dimmer_port"`

	SunriseTime     string `json:"sunrise_time"` // "HH:MM"
	SunriseDuration int    `json:"sunrise_duration"` // minutes
	SunriseCurve    Kind   `json:"sunrise_curve"`

	SunsetTime     string `json:"sunset_time"`
	SunsetDuration int    `json:"sunset_duration"`
	SunsetCurve    Kind   `json:"sunset_curve"`

	TargetIntensity int  `json:"target_intensity"` // 0-100
	IsActive        bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Evaluation is the result of evaluating a DimmerConfig at an instant.
type Evaluation struct {
	Event     Event
	Progress  float64
	Intensity int
}

// Evaluate computes the intensity a dimmer should hold at time now.
//
// Returns false when neither ramp window is active. When the sunrise
// and sunset windows overlap, sunrise takes precedence; overlapping
// windows are a configuration smell, but the engine's behavior for
// them is fixed rather than undefined.
func (c DimmerConfig) Evaluate(now time.Time) (Evaluation, bool, error) {
	minute := MinuteOfDay(now)

	sunriseStart, err := ParseClock(c.SunriseTime)
	if err != nil {
		return Evaluation{}, false, err
	}
	sunsetStart, err := ParseClock(c.SunsetTime)
	if err != nil {
		return Evaluation{}, false, err
	}

	if InWindow(minute, sunriseStart, c.SunriseDuration) {
		p := Progress(minute, sunriseStart, c.SunriseDuration)
		return Evaluation{
			Event:     EventSunrise,
			Progress:  p,
			Intensity: Intensity(EventSunrise, Shape(p, c.SunriseCurve), c.TargetIntensity),
		}, true, nil
	}

	if InWindow(minute, sunsetStart, c.SunsetDuration) {
		p := Progress(minute, sunsetStart, c.SunsetDuration)
		return Evaluation{
			Event:     EventSunset,
			Progress:  p,
			Intensity: Intensity(EventSunset, Shape(p, c.SunsetCurve), c.TargetIntensity),
		}, true, nil
	}

	return Evaluation{}, false, nil
}
