package table

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrColumnNotFound reports a reference to a column absent from the schema.
	ErrColumnNotFound = errors.New("column not found")

	// ErrNameCollision reports a new column name that is already taken.
	ErrNameCollision = errors.New("name collision")

	// ErrAmbiguousJoin reports a key that occurs more than once on the right
	// side of a left join.
	ErrAmbiguousJoin = errors.New("ambiguous join")

	// ErrKindMismatch reports a numeric operation on a non-numeric column or a
	// value whose kind differs from its column.
	ErrKindMismatch = errors.New("kind mismatch")

	// ErrSchema reports a malformed schema or row shape.
	ErrSchema = errors.New("invalid schema")

	// ErrTableNotFound reports a join against a table that no input or
	// earlier flow produced.
	ErrTableNotFound = errors.New("table not found")
)

// StageError attributes a failure to the stage that raised it.
//
// Rows is the stage's input row count at the time of failure. Column and Key
// are set when the failure concerns a specific column or join key.
type StageError struct {
	Stage  string
	Column string
	Key    string
	Rows   int
	Err    error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString("stage=")
	b.WriteString(e.Stage)
	if e.Column != "" {
		b.WriteString(" column=")
		b.WriteString(e.Column)
	}
	if e.Key != "" {
		fmt.Fprintf(&b, " key=%q", e.Key)
	}
	fmt.Fprintf(&b, " rows=%d: %v", e.Rows, e.Err)
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, t *Table, column string, err error) error {
	return &StageError{Stage: stage, Column: column, Rows: t.Len(), Err: err}
}
