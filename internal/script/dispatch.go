package script

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/neobot/internal/observability"
	"github.com/haasonsaas/neobot/pkg/models"
)

// Report summarizes one dispatch pass.
type Report struct {
	PassID    string
	ChannelID string
	Hook      string

	// Invoked counts instances whose hook was called.
	Invoked  int
	Executed int
	Faulted  int
	// Skipped counts disabled instances.
	Skipped int
	// NotFound counts enabled instances without the hook.
	NotFound int

	Faults []*RuntimeFault
}

// Dispatch calls hook with payload on every enabled instance of channelID.
// A fault in one instance is logged, shown as fault feedback and does not
// stop the pass.
func (e *Engine) Dispatch(ctx context.Context, channelID, hook string, payload *models.Message) Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := Report{PassID: uuid.NewString(), ChannelID: channelID, Hook: hook}
	instances := e.registry.Partition(channelID)
	if len(instances) == 0 {
		return report
	}

	ctx = observability.WithPassID(ctx, report.PassID)
	ctx = observability.WithChannelID(ctx, channelID)
	ctx, span := e.tracer.TraceDispatch(ctx, channelID, hook)
	defer span.End()

	for _, inst := range instances {
		if !inst.Enabled {
			report.Skipped++
			e.metrics.RecordHook(hook, "skipped", 0)
			continue
		}
		e.invoke(ctx, inst, hook, payload, &report)
	}

	e.logger.DebugContext(ctx, "dispatch complete",
		"hook", hook,
		"invoked", report.Invoked,
		"faulted", report.Faulted,
		"skipped", report.Skipped)
	return report
}

func (e *Engine) invoke(ctx context.Context, inst *Instance, hook string, payload *models.Message, report *Report) {
	if !inst.sandbox.Has(hook) {
		report.NotFound++
		e.metrics.RecordHook(hook, OutcomeHookNotFound.String(), 0)
		return
	}

	ctx, span := e.tracer.TraceHook(ctx, inst.ID, inst.Origin.String(), hook)
	defer span.End()

	start := time.Now()
	outcome, err := inst.sandbox.Invoke(hook, inst.scope.Message(payload))
	elapsed := time.Since(start).Seconds()
	e.metrics.RecordHook(hook, outcome.String(), elapsed)

	switch outcome {
	case OutcomeHookNotFound:
		report.NotFound++
	case OutcomeOK:
		report.Invoked++
		report.Executed++
		e.feedback.Signal(ctx, inst.Origin, KindExecuted)
	case OutcomeFault:
		report.Invoked++
		report.Faulted++
		fault := &RuntimeFault{Origin: inst.Origin, InstanceID: inst.ID, Hook: hook, Err: err}
		report.Faults = append(report.Faults, fault)
		e.tracer.RecordError(span, fault)
		e.logger.ErrorContext(ctx, "script hook faulted",
			"origin", inst.Origin.String(),
			"instance_id", inst.ID,
			"hook", hook,
			"error", err)
		e.feedback.Signal(ctx, inst.Origin, KindFault)
	}
}
