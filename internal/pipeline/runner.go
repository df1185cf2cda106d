package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"phenoetl/internal/config"
	"phenoetl/internal/datasource"
	"phenoetl/internal/logging"
	"phenoetl/internal/metrics"
	csvparser "phenoetl/internal/parser/csv"
	jsonparser "phenoetl/internal/parser/json"
	"phenoetl/internal/sink"
	"phenoetl/internal/table"
)

// Runner executes a whole pipeline config: load inputs, run flows, write
// outputs.
type Runner struct {
	Logger *zap.Logger
	Opener datasource.Opener

	// Sink writes outputs. Its BatchSize is overridden by
	// config.Runtime.BatchSize when that is set.
	Sink sink.Writer

	// NewRunID defaults to a random UUID.
	NewRunID func() string
}

// Result summarizes a run.
type Result struct {
	RunID string
	// Tables holds inputs and flow outputs by name.
	Tables Env
	// Written is rows written per output, indexed like config outputs.
	Written []int64
}

// ValidationError carries the error-severity issues that stopped a run.
type ValidationError struct {
	Issues []config.Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, iss := range e.Issues {
		msgs = append(msgs, iss.String())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// Run validates p and executes it. Nothing is read when validation fails.
func (r *Runner) Run(ctx context.Context, p config.Pipeline) (Result, error) {
	newID := r.NewRunID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	res := Result{RunID: newID()}
	log := logging.OrNop(r.Logger).With(zap.String("run_id", res.RunID), zap.String("job", p.Job))

	issues := config.Validate(p)
	var errs []config.Issue
	for _, iss := range issues {
		if iss.Severity == config.SeverityError {
			errs = append(errs, iss)
		} else {
			log.Warn("config warning", zap.String("path", iss.Path), zap.String("message", iss.Message))
		}
	}
	if len(errs) > 0 {
		return res, &ValidationError{Issues: errs}
	}

	flows, err := CompileFlows(p.Flows)
	if err != nil {
		return res, err
	}

	start := time.Now()
	inputs, err := r.LoadInputs(ctx, log, p.Inputs)
	if err != nil {
		return res, err
	}

	engine := &Engine{Logger: log, DebugTimings: p.Runtime.DebugTimings}
	env, err := engine.Run(ctx, flows, inputs)
	if err != nil {
		return res, err
	}
	res.Tables = env

	w := r.Sink
	if p.Runtime.BatchSize > 0 {
		w.BatchSize = p.Runtime.BatchSize
	}
	res.Written = make([]int64, len(p.Outputs))
	for i, o := range p.Outputs {
		t := env[o.Flow]
		n, err := w.Write(ctx, o.Sink, t)
		if err != nil {
			return res, fmt.Errorf("outputs[%d] %s -> %s: %w", i, o.Flow, o.Sink.Kind, err)
		}
		res.Written[i] = n
		metrics.RecordRows("written", n)
		log.Info("output written",
			zap.String("flow", o.Flow),
			zap.String("sink", o.Sink.Kind),
			zap.String("target", sinkTarget(o.Sink)),
			zap.Int64("rows", n),
		)
	}

	log.Info("run done", zap.Duration("duration", time.Since(start)))
	return res, nil
}

// LoadInputs reads all inputs concurrently. The first failure cancels the
// rest.
func (r *Runner) LoadInputs(ctx context.Context, log *zap.Logger, ins []config.Input) (Env, error) {
	log = logging.OrNop(log)
	tables := make([]*table.Table, len(ins))

	g, gctx := errgroup.WithContext(ctx)
	for i, in := range ins {
		g.Go(func() error {
			start := time.Now()
			t, err := r.LoadInput(gctx, in)
			if err != nil {
				return fmt.Errorf("input %s: %w", in.Name, err)
			}
			tables[i] = t
			metrics.RecordRows("read", int64(t.Len()))
			log.Info("input loaded",
				zap.String("input", in.Name),
				zap.String("parser", in.Parser.Kind),
				zap.Int("rows", t.Len()),
				zap.Strings("columns", t.Schema().Names()),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	env := make(Env, len(ins))
	for i, in := range ins {
		env[in.Name] = tables[i]
	}
	return env, nil
}

// LoadInput opens and parses one input.
func (r *Runner) LoadInput(ctx context.Context, in config.Input) (t *table.Table, err error) {
	rc, err := r.Opener.Open(ctx, in.Source)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, rc.Close())
	}()

	switch in.Parser.Kind {
	case "csv":
		return csvparser.ReadTable(ctx, rc, in.Parser.Options)
	case "json":
		return jsonparser.ReadTable(ctx, rc, in.Parser.Options)
	default:
		return nil, fmt.Errorf("unsupported parser %q", in.Parser.Kind)
	}
}

func sinkTarget(s config.Sink) string {
	switch {
	case s.Path != "":
		return s.Path
	case s.S3 != nil:
		return "s3://" + s.S3.Bucket + "/" + s.S3.Key
	default:
		return s.Table
	}
}
