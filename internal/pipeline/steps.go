package pipeline

import (
	"fmt"
	"math"

	"phenoetl/internal/config"
	"phenoetl/internal/table"
	"phenoetl/internal/transformer/builtin"
)

// Env holds every table produced so far in a run, by input or flow name.
type Env map[string]*table.Table

// Step is one compiled stage of a flow.
type Step struct {
	Kind string

	// Right is the table a left_join reads from Env.
	Right string

	apply func(t *table.Table, env Env) (*table.Table, error)
}

// Apply runs the step on t.
func (s Step) Apply(t *table.Table, env Env) (*table.Table, error) {
	return s.apply(t, env)
}

// Compile turns a configured transform into a Step. Option shapes are
// checked here; column references are checked when the step runs.
func Compile(tr config.Transform) (Step, error) {
	opt := tr.Options
	st := Step{Kind: tr.Kind}

	switch tr.Kind {
	case config.StepFilter:
		col := opt.String("column", "")
		if col == "" {
			return Step{}, optErr(tr.Kind, "column")
		}
		excluded := opt.Strings("exclude")
		dropMissing := opt.Bool("drop_missing", false)
		st.apply = func(t *table.Table, _ Env) (*table.Table, error) {
			out, err := table.FilterNotIn(t, col, excluded)
			if err != nil || !dropMissing {
				return out, err
			}
			return table.DropMissing(out, col)
		}

	case config.StepDrop:
		cols := opt.Strings("columns")
		if len(cols) == 0 {
			return Step{}, optErr(tr.Kind, "columns")
		}
		if opt.Bool("ignore_missing", false) {
			st.apply = func(t *table.Table, _ Env) (*table.Table, error) {
				return table.DropIfPresent(t, cols...), nil
			}
		} else {
			st.apply = func(t *table.Table, _ Env) (*table.Table, error) {
				return table.Drop(t, cols...)
			}
		}

	case config.StepSelect:
		cols := opt.Strings("columns")
		if len(cols) == 0 {
			return Step{}, optErr(tr.Kind, "columns")
		}
		st.apply = func(t *table.Table, _ Env) (*table.Table, error) {
			return table.Select(t, cols...)
		}

	case config.StepReorder:
		cols := opt.Strings("columns")
		if len(cols) == 0 {
			return Step{}, optErr(tr.Kind, "columns")
		}
		st.apply = func(t *table.Table, _ Env) (*table.Table, error) {
			return table.Reorder(t, cols...)
		}

	case config.StepRename:
		mapping := opt.StringMap("mapping")
		if len(mapping) == 0 {
			return Step{}, optErr(tr.Kind, "mapping")
		}
		st.apply = func(t *table.Table, _ Env) (*table.Table, error) {
			return table.Rename(t, mapping)
		}

	case config.StepDeriveThreshold:
		target, source := opt.String("target", ""), opt.String("source", "")
		if target == "" {
			return Step{}, optErr(tr.Kind, "target")
		}
		if source == "" {
			return Step{}, optErr(tr.Kind, "source")
		}
		limit := opt.Float("limit", math.NaN())
		if math.IsNaN(limit) {
			return Step{}, optErr(tr.Kind, "limit")
		}
		st.apply = func(t *table.Table, _ Env) (*table.Table, error) {
			return table.DeriveThreshold(t, target, source, limit)
		}

	case config.StepGroupMean:
		spec := table.GroupMeanSpec{
			Key:       opt.String("key", ""),
			Value:     opt.String("value", ""),
			CountName: opt.String("count_name", ""),
			MeanName:  opt.String("mean_name", ""),
		}
		if spec.Key == "" {
			return Step{}, optErr(tr.Kind, "key")
		}
		if spec.Value == "" {
			return Step{}, optErr(tr.Kind, "value")
		}
		st.apply = func(t *table.Table, _ Env) (*table.Table, error) {
			return table.GroupMean(t, spec)
		}

	case config.StepLeftJoin:
		right, key := opt.String("right", ""), opt.String("key", "")
		if right == "" {
			return Step{}, optErr(tr.Kind, "right")
		}
		if key == "" {
			return Step{}, optErr(tr.Kind, "key")
		}
		st.Right = right
		st.apply = func(t *table.Table, env Env) (*table.Table, error) {
			r, ok := env[right]
			if !ok {
				return nil, &table.StageError{
					Stage:  table.StageJoin,
					Column: key,
					Rows:   t.Len(),
					Err:    fmt.Errorf("%w: right table %q not available", table.ErrTableNotFound, right),
				}
			}
			return table.LeftJoin(t, r, key)
		}

	case config.StepRowHash:
		h := builtin.Hash{
			Fields:            opt.Strings("fields"),
			TargetField:       opt.String("target", ""),
			IncludeFieldNames: opt.Bool("include_field_names", false),
			Separator:         opt.String("separator", ""),
			Overwrite:         opt.Bool("overwrite", false),
			TrimSpace:         opt.Bool("trim_space", false),
		}
		if len(h.Fields) == 0 {
			return Step{}, optErr(tr.Kind, "fields")
		}
		if h.TargetField == "" {
			return Step{}, optErr(tr.Kind, "target")
		}
		st.apply = func(t *table.Table, _ Env) (*table.Table, error) {
			return h.Apply(t)
		}

	default:
		return Step{}, fmt.Errorf("unknown step kind %q", tr.Kind)
	}
	return st, nil
}

func optErr(kind, key string) error {
	return fmt.Errorf("%s step: option %q missing or invalid", kind, key)
}
