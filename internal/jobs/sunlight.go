package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/verdantops/canopy-core/internal/activity"
	"github.com/verdantops/canopy-core/internal/curve"
)

// RunSunlight evaluates every active dimmer config at the current
// instant and pushes the resulting level to its controller port.
//
// The job is idempotent: re-running inside the same minute re-applies
// the same intensity, which the hardware treats as a no-op.
func (r *Runner) RunSunlight(ctx context.Context) (SunlightSummary, error) {
	start := r.now()
	var summary SunlightSummary

	configs, err := r.dimmers.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("loading dimmer configs: %w", err)
	}
	summary.Configs = len(configs)

	for i := range configs {
		detail := r.applyOne(ctx, &configs[i], start)
		summary.Details = append(summary.Details, detail)

		switch detail.Status {
		case SunlightApplied:
			summary.Applied++
		case SunlightInactive:
			summary.Inactive++
		case SunlightFailed:
			summary.Failed++
		}
		r.recordSunlight(ctx, detail)
	}

	summary.Duration = r.now().Sub(start)
	summary.OK = summary.Failed == 0
	r.publish(r.topics.SunlightRun(), summary)
	r.publish(r.topics.JobSummary("sunlight"), summary)

	r.logger.Info("sunlight run complete",
		"configs", summary.Configs, "applied", summary.Applied,
		"inactive", summary.Inactive, "failed", summary.Failed,
		"duration", summary.Duration)
	return summary, nil
}

// applyOne evaluates one config and, when a ramp window is active,
// applies the computed intensity. Every failure is contained to this
// config's detail record.
func (r *Runner) applyOne(ctx context.Context, cfg *curve.DimmerConfig, now time.Time) SunlightDetail {
	detail := SunlightDetail{
		ConfigID:     cfg.ID,
		ControllerID: cfg.ControllerID,
		Port:         cfg.DimmerPort,
	}

	eval, active, err := cfg.Evaluate(now)
	if err != nil {
		detail.Status = SunlightFailed
		detail.Error = err.Error()
		return detail
	}
	if !active {
		detail.Status = SunlightInactive
		return detail
	}

	detail.Event = string(eval.Event)
	detail.Intensity = eval.Intensity

	ctl, err := r.controllers.GetByID(ctx, cfg.ControllerID)
	if err != nil {
		detail.Status = SunlightFailed
		detail.Error = fmt.Sprintf("loading controller: %v", err)
		return detail
	}

	session, release, err := r.sessionFor(ctx, ctl)
	if err != nil {
		detail.Status = SunlightFailed
		detail.Error = err.Error()
		return detail
	}
	defer release()

	if err := session.ControlDevice(ctx, cfg.DimmerPort, eval.Intensity); err != nil {
		detail.Status = SunlightFailed
		detail.Error = fmt.Sprintf("setting level: %v", err)
		return detail
	}

	detail.Status = SunlightApplied
	if r.sink != nil {
		r.sink.WriteDimmerIntensity(cfg.ControllerID, cfg.DimmerPort, detail.Event, eval.Intensity)
	}

	r.logger.Debug("dimmer level applied",
		"config_id", cfg.ID, "controller_id", cfg.ControllerID,
		"port", cfg.DimmerPort, "event", detail.Event, "intensity", eval.Intensity)
	return detail
}

func (r *Runner) recordSunlight(ctx context.Context, detail SunlightDetail) {
	res := activity.ResultSuccess
	metadata := map[string]any{
		"config_id": detail.ConfigID,
		"port":      detail.Port,
	}
	switch detail.Status {
	case SunlightInactive:
		res = activity.ResultSkipped
	case SunlightFailed:
		res = activity.ResultFailed
		metadata["error"] = detail.Error
	default:
		metadata["event"] = detail.Event
		metadata["intensity"] = detail.Intensity
	}

	r.recorder.Record(ctx, activity.KindSunlight, detail.ControllerID, "", res, metadata)
}
