package poller

import "time"

// Status classifies one controller's poll attempt.
type Status string

const (
	// StatusSuccess: connect and sensor read both succeeded.
	StatusSuccess Status = "success"

	// StatusDegraded: the session connected but the sensor read
	// failed. The controller is reachable, so it stays online.
	StatusDegraded Status = "degraded"

	// StatusFailed: credentials could not be decrypted, the connect
	// failed, or the attempt panicked or timed out.
	StatusFailed Status = "failed"

	// StatusSkipped: the controller was not eligible this run.
	StatusSkipped Status = "skipped"
)

// Outcome is the terminal record of one controller's poll attempt.
// Exactly one Outcome exists per controller per run; it is immutable
// once created.
type Outcome struct {
	ControllerID string `json:"controller_id"`
	Status       Status `json:"status"`
	Readings     int    `json:"readings"`
	Error        string `json:"error,omitempty"`

	// Domain is the rate-limit domain the controller was polled under.
	Domain string `json:"domain,omitempty"`
}

// Summary aggregates one scheduler run.
type Summary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Degraded  int           `json:"degraded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Readings  int           `json:"readings"`
	Duration  time.Duration `json:"duration"`

	Outcomes []Outcome `json:"outcomes"`
}

// OK reports whether the run had no hard failures. Degraded and
// skipped controllers do not fail a run.
func (s Summary) OK() bool {
	return s.Failed == 0
}

func (s *Summary) tally(o Outcome) {
	s.Total++
	s.Readings += o.Readings
	switch o.Status {
	case StatusSuccess:
		s.Succeeded++
	case StatusDegraded:
		s.Degraded++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
}
