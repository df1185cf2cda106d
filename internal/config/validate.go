package config

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding from Validate. Path is a dotted location such as
// "flows[1].steps[0].options.key".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message) }

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks a pipeline before anything is read or written.
//
// It checks names and references only; column names are checked by the
// stages themselves when the tables exist.
func Validate(p Pipeline) []Issue {
	var v validator

	if strings.TrimSpace(p.Job) == "" {
		v.warn("job", "job name is empty; metrics will use a default")
	}
	if len(p.Inputs) == 0 {
		v.err("inputs", "at least one input is required")
	}

	// names holds every table name visible so far, in declaration order.
	names := map[string]string{}

	for i, in := range p.Inputs {
		path := fmt.Sprintf("inputs[%d]", i)
		if in.Name == "" {
			v.err(path+".name", "input name is required")
		} else if prev, dup := names[in.Name]; dup {
			v.err(path+".name", fmt.Sprintf("name %q already used by %s", in.Name, prev))
		} else {
			names[in.Name] = path
		}
		v.source(path+".source", in.Source)
		switch in.Parser.Kind {
		case "csv", "json":
		default:
			v.err(path+".parser.kind", fmt.Sprintf("unsupported parser %q (want csv or json)", in.Parser.Kind))
		}
	}

	for i, f := range p.Flows {
		path := fmt.Sprintf("flows[%d]", i)
		if f.Input == "" {
			v.err(path+".input", "flow input is required")
		} else if _, ok := names[f.Input]; !ok {
			v.err(path+".input", fmt.Sprintf("unknown input or earlier flow %q", f.Input))
		}
		for j, st := range f.Steps {
			v.step(fmt.Sprintf("%s.steps[%d]", path, j), st, names)
		}
		if f.Name == "" {
			v.err(path+".name", "flow name is required")
		} else if prev, dup := names[f.Name]; dup {
			v.err(path+".name", fmt.Sprintf("name %q already used by %s", f.Name, prev))
		} else {
			names[f.Name] = path
		}
	}

	if len(p.Outputs) == 0 {
		v.warn("outputs", "no outputs configured; results are discarded")
	}
	for i, o := range p.Outputs {
		path := fmt.Sprintf("outputs[%d]", i)
		if _, ok := names[o.Flow]; !ok {
			v.err(path+".flow", fmt.Sprintf("unknown flow %q", o.Flow))
		}
		v.sink(path+".sink", o.Sink)
	}

	if p.Runtime.BatchSize < 0 {
		v.err("runtime.batch_size", "must be >= 0")
	}
	return v.issues
}

type validator struct {
	issues []Issue
}

func (v *validator) err(path, msg string) {
	v.issues = append(v.issues, Issue{Severity: SeverityError, Path: path, Message: msg})
}

func (v *validator) warn(path, msg string) {
	v.issues = append(v.issues, Issue{Severity: SeverityWarning, Path: path, Message: msg})
}

func (v *validator) source(path string, s Source) {
	switch s.Kind {
	case "file":
		if s.File == nil || s.File.Path == "" {
			v.err(path+".file.path", "file source requires a path")
		}
	case "s3":
		v.s3(path+".s3", s.S3)
	default:
		v.err(path+".kind", fmt.Sprintf("unsupported source %q (want file or s3)", s.Kind))
	}
}

func (v *validator) s3(path string, loc *S3Location) {
	if loc == nil {
		v.err(path, "s3 location is required")
		return
	}
	if loc.Bucket == "" {
		v.err(path+".bucket", "bucket is required")
	}
	if loc.Key == "" {
		v.err(path+".key", "key is required")
	}
}

func (v *validator) sink(path string, s Sink) {
	switch s.Kind {
	case "tsv", "csv", "xlsx":
		if s.Path == "" {
			v.err(path+".path", s.Kind+" sink requires a path")
		}
	case "s3":
		v.s3(path+".s3", s.S3)
	case "sqlite", "postgres", "mssql":
		if s.DSN == "" {
			v.err(path+".dsn", s.Kind+" sink requires a dsn")
		}
		if s.Table == "" {
			v.err(path+".table", s.Kind+" sink requires a table")
		}
	default:
		v.err(path+".kind", fmt.Sprintf("unsupported sink %q", s.Kind))
	}
}

func (v *validator) step(path string, st Transform, names map[string]string) {
	opt := st.Options
	need := func(keys ...string) {
		for _, k := range keys {
			if !opt.Has(k) {
				v.err(path+".options."+k, fmt.Sprintf("%s step requires %q", st.Kind, k))
			}
		}
	}

	switch st.Kind {
	case StepFilter:
		need("column", "exclude")
	case StepDrop, StepSelect, StepReorder:
		need("columns")
		if opt.Has("columns") && len(opt.Strings("columns")) == 0 {
			v.err(path+".options.columns", "columns must not be empty")
		}
	case StepRename:
		need("mapping")
		if opt.Has("mapping") && len(opt.StringMap("mapping")) == 0 {
			v.err(path+".options.mapping", "mapping must not be empty")
		}
	case StepDeriveThreshold:
		need("target", "source", "limit")
	case StepGroupMean:
		need("key", "value")
	case StepLeftJoin:
		need("right", "key")
		if r := opt.String("right", ""); r != "" {
			if _, ok := names[r]; !ok {
				v.err(path+".options.right", fmt.Sprintf("unknown input or earlier flow %q", r))
			}
		}
	case StepRowHash:
		need("fields", "target")
	default:
		v.err(path+".kind", fmt.Sprintf("unknown step kind %q", st.Kind))
	}
}
