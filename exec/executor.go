// Package exec implements the pipeline executor (spec §2.F, §4.5): it
// drives a Run through Ready -> Running(op_i) -> ... -> Completed|Failed,
// dispatching each operation in ascending order to the matching kernel,
// expanding selector tokens first, emitting trace events, and recording
// metrics and structured logs along the way. It never reads wall-clock
// time for anything that reaches the data (every kernel call is pinned to
// spec.RunTimestamp); time.Now() here is used only for span/metric
// instrumentation, which is an observability concern, not a data one.
package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/latticerun/engine/columnar"
	"github.com/latticerun/engine/errs"
	"github.com/latticerun/engine/expr"
	"github.com/latticerun/engine/iface"
	"github.com/latticerun/engine/kernel"
	"github.com/latticerun/engine/model"
	"github.com/latticerun/engine/trace"
)

// Deps bundles the kernel's own collaborators plus the trace sink the
// executor drives between kernel calls. Kernels never talk to the trace
// writer directly (spec §4.6: only the executor knows which step is
// running).
type Deps struct {
	Kernel kernel.Deps
	Trace  iface.TraceWriter
}

func (d Deps) logger() *logrus.Entry {
	if d.Kernel.Log != nil {
		return d.Kernel.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// Run drives one Run to completion or failure (spec §4.5). It returns an
// error only when the run slot could not be acquired; a failure to load
// the input dataset, and every operation failure once running, is
// recorded on the returned Failed Run instead of being returned as a Go
// error, since a failed run is still a complete, inspectable result
// (spec §7).
func Run(ctx context.Context, deps Deps, spec iface.RunSpec) (model.Run, error) {
	run := model.Run{
		ID:                    spec.RunID,
		ProjectSnapshot:       spec.ProjectSnapshot,
		Period:                spec.Period,
		RunTimestamp:          spec.RunTimestamp,
		Status:                model.RunReady,
		SandboxOutputOverride: spec.SandboxOutputOverride,
	}

	log := deps.logger().WithFields(logrus.Fields{
		"run_id":     run.ID,
		"project_id": spec.ProjectSnapshot.ID,
		"period":     spec.Period.Identifier,
	})

	projectID := spec.ProjectSnapshot.ID
	periodID := spec.Period.Identifier
	acquired, err := deps.Kernel.Metadata.AcquireRunSlot(ctx, projectID, periodID)
	if err != nil {
		runsTotal.WithLabelValues("slot_error").Inc()
		return run, err
	}
	if !acquired {
		runsTotal.WithLabelValues("slot_unavailable").Inc()
		return run, errs.Internal.New(fmt.Sprintf("a run is already active for project %s period %s", projectID, periodID))
	}
	defer func() {
		if releaseErr := deps.Kernel.Metadata.ReleaseRunSlot(ctx, projectID, periodID); releaseErr != nil {
			log.WithError(releaseErr).Warn("failed to release run slot")
		}
	}()

	frame, schema, err := kernel.LoadDataset(ctx, deps.Kernel, spec.ProjectSnapshot.InputDatasetID, spec.ProjectSnapshot.InputVersion, spec.Period)
	if err != nil {
		run.Status = model.RunFailed
		run.ErrorDetail = &model.ErrorDetail{Kind: errs.KindName(err), Detail: err.Error()}
		runsTotal.WithLabelValues("failed").Inc()
		return run, nil
	}

	run.Status = model.RunRunning
	ops := spec.ProjectSnapshot.OrderedOperations()

	for _, op := range ops {
		order := op.Order
		opLog := log.WithFields(logrus.Fields{"order": order, "kind": op.Kind.String()})

		select {
		case <-ctx.Done():
			run.Status = model.RunFailed
			run.ErrorDetail = &model.ErrorDetail{Order: order, Kind: errs.KindName(errs.Cancelled.New()), Detail: ctx.Err().Error()}
			opLog.Warn("run cancelled")
			runsTotal.WithLabelValues("cancelled").Inc()
			return run, nil
		default:
		}

		span, spanCtx := opentracing.StartSpanFromContext(ctx, fmt.Sprintf("operation.%s", op.Kind.String()))
		span.SetTag("run_id", run.ID)
		span.SetTag("order", order)
		started := time.Now()

		expanded, err := expandOperation(op, spec.ProjectSnapshot.Selectors)
		if err != nil {
			span.Finish()
			run.Status = model.RunFailed
			run.ErrorDetail = &model.ErrorDetail{Order: order, Kind: errs.KindName(err), Detail: err.Error()}
			opLog.WithError(err).Error("selector expansion failed")
			operationsTotal.WithLabelValues(op.Kind.String(), "error").Inc()
			runsTotal.WithLabelValues("failed").Inc()
			return run, nil
		}
		if expanded.Kind == model.KindOutput && expanded.Output != nil && spec.SandboxOutputOverride != nil {
			redirected := *expanded.Output
			redirected.Destination = *spec.SandboxOutputOverride
			expanded.Output = &redirected
		}

		var before []model.Row
		if op.Kind != model.KindOutput && deps.Trace != nil {
			before, err = frame.Rows(spanCtx)
			if err != nil {
				span.Finish()
				run.Status = model.RunFailed
				run.ErrorDetail = &model.ErrorDetail{Order: order, Kind: errs.KindName(err), Detail: err.Error()}
				operationsTotal.WithLabelValues(op.Kind.String(), "error").Inc()
				runsTotal.WithLabelValues("failed").Inc()
				return run, nil
			}
		}

		newFrame, newSchema, write, err := dispatch(spanCtx, deps.Kernel, frame, schema, expanded, spec.Period, spec.RunTimestamp)
		operationDuration.WithLabelValues(op.Kind.String()).Observe(time.Since(started).Seconds())
		if err != nil {
			span.Finish()
			run.Status = model.RunFailed
			run.ErrorDetail = &model.ErrorDetail{Order: order, Kind: errs.KindName(err), Detail: err.Error()}
			opLog.WithError(err).Error("operation failed")
			operationsTotal.WithLabelValues(op.Kind.String(), "error").Inc()
			runsTotal.WithLabelValues("failed").Inc()
			return run, nil
		}

		if op.Kind == model.KindOutput {
			run.OutputWrites = append(run.OutputWrites, model.OutputWrite{
				Order:       order,
				Destination: resolveDestination(expanded, spec.SandboxOutputOverride),
				RowCount:    write.RowCount,
			})
		} else {
			if deps.Trace != nil {
				after, rowsErr := newFrame.Rows(spanCtx)
				if rowsErr != nil {
					span.Finish()
					run.Status = model.RunFailed
					run.ErrorDetail = &model.ErrorDetail{Order: order, Kind: errs.KindName(rowsErr), Detail: rowsErr.Error()}
					operationsTotal.WithLabelValues(op.Kind.String(), "error").Inc()
					runsTotal.WithLabelValues("failed").Inc()
					return run, nil
				}
				if emitErr := trace.Emit(spanCtx, deps.Trace, run.ID, order, before, after); emitErr != nil {
					span.Finish()
					run.Status = model.RunFailed
					run.ErrorDetail = &model.ErrorDetail{Order: order, Kind: errs.KindName(emitErr), Detail: emitErr.Error()}
					operationsTotal.WithLabelValues(op.Kind.String(), "error").Inc()
					runsTotal.WithLabelValues("failed").Inc()
					return run, nil
				}
			}
			newFrame = &columnar.Filter{
				Parent: newFrame,
				Pred: func(row model.Row) (bool, error) {
					del := row[model.ColDeleted]
					return del.Null || !del.Bool, nil
				},
			}
		}

		frame = newFrame
		schema = newSchema
		o := order
		run.LastCompletedOrder = &o
		span.Finish()
		operationsTotal.WithLabelValues(op.Kind.String(), "ok").Inc()
		opLog.Debug("operation completed")
	}

	run.Status = model.RunCompleted
	runsTotal.WithLabelValues("completed").Inc()
	log.WithField("output_writes", len(run.OutputWrites)).Info("run completed")
	return run, nil
}

// dispatch routes one expanded operation to its kernel, returning the new
// working frame/schema and (for `output` only) the write outcome.
func dispatch(ctx context.Context, deps kernel.Deps, frame columnar.LazyFrame, schema model.Schema, op model.Operation, runPeriod model.Period, runTimestamp time.Time) (columnar.LazyFrame, model.Schema, iface.WriteResult, error) {
	switch op.Kind {
	case model.KindUpdate:
		f, s, err := kernel.Update(ctx, deps, frame, schema, *op.Update, runPeriod, runTimestamp)
		return f, s, iface.WriteResult{}, err
	case model.KindDelete:
		f, s, err := kernel.Delete(deps, frame, schema, op.Delete.Selector, runTimestamp)
		return f, s, iface.WriteResult{}, err
	case model.KindAggregate:
		f, s, err := kernel.Aggregate(deps, frame, schema, *op.Aggregate, runTimestamp)
		return f, s, iface.WriteResult{}, err
	case model.KindAppend:
		f, s, err := kernel.Append(ctx, deps, frame, schema, *op.Append, runPeriod, runTimestamp)
		return f, s, iface.WriteResult{}, err
	case model.KindOutput:
		res, err := kernel.Output(ctx, deps, frame, schema, *op.Output, runPeriod, runTimestamp)
		return frame, schema, res, err
	default:
		return nil, nil, iface.WriteResult{}, errs.Internal.New(fmt.Sprintf("unknown operation kind %d", op.Kind))
	}
}

// resolveDestination applies the sandbox output override (spec §6 "Run
// specification": draft-project runs transparently redirect every output
// destination) for the recorded OutputWrite.
func resolveDestination(op model.Operation, override *string) string {
	if override != nil {
		return *override
	}
	return op.Output.Destination
}

func interpolate(source string, selectors map[string]string) (string, error) {
	return expr.InterpolateSelectors(source, selectors)
}
