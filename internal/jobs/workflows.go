package jobs

import (
	"context"
	"fmt"

	"github.com/verdantops/canopy-core/internal/activity"
	"github.com/verdantops/canopy-core/internal/workflow"
)

// RunWorkflows walks every active workflow against each of its bound
// controllers, one independent walk per pair.
//
// Walks execute sequentially: workflow actions hit the same
// rate-limited vendor APIs the poll scheduler guards, and a serial
// pass is the simplest way to stay inside those limits without
// duplicating the domain partitioning here.
func (r *Runner) RunWorkflows(ctx context.Context) (WorkflowSummary, error) {
	start := r.now()
	var summary WorkflowSummary

	workflows, err := r.workflows.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("loading workflows: %w", err)
	}
	summary.Workflows = len(workflows)

	for i := range workflows {
		wf := &workflows[i]
		for _, ctlID := range wf.ControllerIDs {
			result := r.walkOne(ctx, wf, ctlID)
			summary.Results = append(summary.Results, result)
			summary.Runs++
			summary.Actions += result.Actions
			summary.Skipped += result.Skipped

			switch {
			case result.Err != nil:
				summary.Failed++
			case !result.Fired:
				summary.NotFired++
			default:
				summary.Succeeded++
			}

			r.recordWalk(ctx, result)
			r.publish(r.topics.WorkflowRun(wf.ID), result)
		}
	}

	summary.Duration = r.now().Sub(start)
	summary.OK = summary.Failed == 0
	r.publish(r.topics.JobSummary("workflows"), summary)

	r.logger.Info("workflow run complete",
		"workflows", summary.Workflows, "runs", summary.Runs,
		"succeeded", summary.Succeeded, "failed", summary.Failed,
		"not_fired", summary.NotFired, "actions", summary.Actions,
		"duration", summary.Duration)
	return summary, nil
}

// walkOne prepares a session and walks one (workflow, controller)
// pair. Failures to even reach the walk become failed results, so
// every pair yields exactly one RunResult.
func (r *Runner) walkOne(ctx context.Context, wf *workflow.Workflow, ctlID string) workflow.RunResult {
	ctl, err := r.controllers.GetByID(ctx, ctlID)
	if err != nil {
		return workflow.RunResult{
			WorkflowID:   wf.ID,
			ControllerID: ctlID,
			Err:          fmt.Errorf("loading controller: %w", err),
		}
	}
	if !ctl.IsActive {
		// Binding outlived the controller; treat as a clean no-op.
		return workflow.RunResult{WorkflowID: wf.ID, ControllerID: ctlID}
	}

	session, release, err := r.sessionFor(ctx, ctl)
	if err != nil {
		return workflow.RunResult{
			WorkflowID:   wf.ID,
			ControllerID: ctlID,
			Err:          err,
		}
	}
	defer release()

	return r.walker.Run(ctx, wf, ctlID, session)
}

func (r *Runner) recordWalk(ctx context.Context, result workflow.RunResult) {
	res := activity.ResultSuccess
	metadata := map[string]any{
		"fired":   result.Fired,
		"actions": result.Actions,
		"skipped": result.Skipped,
	}
	switch {
	case result.Err != nil:
		res = activity.ResultFailed
		metadata["error"] = result.Err.Error()
	case !result.Fired:
		res = activity.ResultSkipped
	}

	r.recorder.Record(ctx, activity.KindWorkflow, result.ControllerID, result.WorkflowID, res, metadata)
}
