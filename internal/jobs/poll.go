package jobs

import (
	"context"
	"fmt"
)

// RunPoll executes one poll scheduler invocation and publishes its
// outcomes.
//
// The returned summary is complete even when individual controllers
// failed; the error is reserved for the run not starting at all.
func (r *Runner) RunPoll(ctx context.Context) (PollSummary, error) {
	summary, err := r.scheduler.Run(ctx)
	result := PollSummary{Summary: summary, OK: summary.OK()}
	if err != nil {
		result.OK = false
		return result, fmt.Errorf("poll run: %w", err)
	}

	for _, o := range summary.Outcomes {
		r.publish(r.topics.PollOutcome(o.ControllerID), o)
	}
	r.publish(r.topics.JobSummary("poll"), result)

	return result, nil
}
