package table

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// GroupMeanSpec names the columns of a grouped mean.
type GroupMeanSpec struct {
	Key       string // grouping column
	Value     string // numeric column to average
	CountName string // defaults to "count"
	MeanName  string // defaults to "mean." + Value
}

func (s GroupMeanSpec) withDefaults() GroupMeanSpec {
	if s.CountName == "" {
		s.CountName = "count"
	}
	if s.MeanName == "" {
		s.MeanName = "mean." + s.Value
	}
	return s
}

// GroupMean partitions rows by Key and emits one row per group:
// key, count of non-missing Value cells, and their arithmetic mean.
//
// Groups appear in first-seen key order. All rows with a missing key form a
// single group whose key is missing. A group with count 0 gets a missing
// mean; it is never a division fault.
func GroupMean(t *Table, spec GroupMeanSpec) (*Table, error) {
	spec = spec.withDefaults()

	kj := t.schema.Index(spec.Key)
	if kj < 0 {
		return nil, stageErr(StageAggregate, t, spec.Key, ErrColumnNotFound)
	}
	vj := t.schema.Index(spec.Value)
	if vj < 0 {
		return nil, stageErr(StageAggregate, t, spec.Value, ErrColumnNotFound)
	}
	if !t.schema[vj].Kind.Numeric() {
		return nil, stageErr(StageAggregate, t, spec.Value, fmt.Errorf("%w: %s column", ErrKindMismatch, t.schema[vj].Kind))
	}

	schema, err := NewSchema(
		t.schema[kj],
		Column{Name: spec.CountName, Kind: KindInt},
		Column{Name: spec.MeanName, Kind: KindFloat},
	)
	if err != nil {
		return nil, stageErr(StageAggregate, t, "", fmt.Errorf("%w: %v", ErrNameCollision, err))
	}

	type group struct {
		key  Value
		vals []float64
	}
	var (
		order   []*group
		byKey   = make(map[string]*group)
		missing *group
	)

	for _, r := range t.rows {
		k := r[kj]
		var g *group
		if k.IsMissing() {
			if missing == nil {
				missing = &group{key: k}
				order = append(order, missing)
			}
			g = missing
		} else {
			g = byKey[k.Text()]
			if g == nil {
				g = &group{key: k}
				byKey[k.Text()] = g
				order = append(order, g)
			}
		}
		if f, ok := r[vj].Float64(); ok {
			g.vals = append(g.vals, f)
		}
	}

	out := make([][]Value, 0, len(order))
	for _, g := range order {
		mean := Missing(KindFloat)
		if len(g.vals) > 0 {
			mean = Float(stat.Mean(g.vals, nil))
		}
		out = append(out, []Value{g.key, Int(int64(len(g.vals))), mean})
	}
	return build(schema, out), nil
}
