// Package pipeline runs configured flows of table stages.
//
// An Engine executes compiled flows strictly in order over an Env of named
// tables; a Runner adds the I/O edge around it (sources, parsers, sinks,
// metrics). Stages never run concurrently: each consumes the previous
// stage's complete output.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"phenoetl/internal/config"
	"phenoetl/internal/logging"
	"phenoetl/internal/metrics"
	"phenoetl/internal/table"
)

// Flow is a compiled config.Flow.
type Flow struct {
	Name  string
	Input string
	Steps []Step
}

// CompileFlows compiles every flow, failing on the first bad step.
func CompileFlows(flows []config.Flow) ([]Flow, error) {
	out := make([]Flow, 0, len(flows))
	for i, f := range flows {
		cf := Flow{Name: f.Name, Input: f.Input, Steps: make([]Step, 0, len(f.Steps))}
		for j, tr := range f.Steps {
			st, err := Compile(tr)
			if err != nil {
				return nil, fmt.Errorf("flows[%d] %s: steps[%d]: %w", i, f.Name, j, err)
			}
			cf.Steps = append(cf.Steps, st)
		}
		out = append(out, cf)
	}
	return out, nil
}

// Engine executes flows.
type Engine struct {
	Logger *zap.Logger

	// DebugTimings logs stage completions at info instead of debug.
	DebugTimings bool
}

// Run executes flows in order, starting from inputs, and returns an Env
// holding the inputs plus every flow's output. inputs is not modified.
//
// The first stage error aborts the run; it is returned wrapped with the flow
// name and step index and still matches the table sentinels via errors.Is.
func (e *Engine) Run(ctx context.Context, flows []Flow, inputs Env) (Env, error) {
	log := logging.OrNop(e.Logger)

	env := make(Env, len(inputs)+len(flows))
	for k, v := range inputs {
		env[k] = v
	}

	for _, f := range flows {
		if _, dup := env[f.Name]; dup {
			return nil, fmt.Errorf("flow %s: name already defined", f.Name)
		}
		t, ok := env[f.Input]
		if !ok {
			return nil, fmt.Errorf("flow %s: unknown input %q", f.Name, f.Input)
		}

		flowStart := time.Now()
		for i, st := range f.Steps {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			start := time.Now()
			out, err := st.Apply(t, env)
			dur := time.Since(start)
			if err != nil {
				metrics.RecordStep(st.Kind, "error", dur)
				log.Error("stage failed",
					zap.String("flow", f.Name),
					zap.Int("step", i),
					zap.String("stage", st.Kind),
					zap.Int("rows_in", t.Len()),
					zap.Error(err),
				)
				return nil, fmt.Errorf("flow %s: step %d (%s): %w", f.Name, i, st.Kind, err)
			}
			metrics.RecordStep(st.Kind, "ok", dur)

			fields := []zap.Field{
				zap.String("flow", f.Name),
				zap.String("stage", st.Kind),
				zap.Int("rows_in", t.Len()),
				zap.Int("rows_out", out.Len()),
				zap.Duration("duration", dur),
			}
			if e.DebugTimings {
				log.Info("stage done", fields...)
			} else {
				log.Debug("stage done", fields...)
			}
			t = out
		}

		env[f.Name] = t
		log.Info("flow done",
			zap.String("flow", f.Name),
			zap.Int("rows", t.Len()),
			zap.Strings("columns", t.Schema().Names()),
			zap.Duration("duration", time.Since(flowStart)),
		)
	}
	return env, nil
}

// RunFlow is a convenience for a single flow over one table.
func (e *Engine) RunFlow(ctx context.Context, f Flow, in *table.Table) (*table.Table, error) {
	env, err := e.Run(ctx, []Flow{f}, Env{f.Input: in})
	if err != nil {
		return nil, err
	}
	return env[f.Name], nil
}
