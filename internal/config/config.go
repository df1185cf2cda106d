// Package config defines the pipeline configuration file: named inputs,
// ordered flows of table steps, and outputs. Files are YAML or JSON,
// selected by suffix.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step kinds understood by the pipeline engine.
const (
	StepFilter          = "filter"
	StepDrop            = "drop"
	StepSelect          = "select"
	StepReorder         = "reorder"
	StepRename          = "rename"
	StepDeriveThreshold = "derive_threshold"
	StepGroupMean       = "group_mean"
	StepLeftJoin        = "left_join"
	StepRowHash         = "row_hash"
)

type Pipeline struct {
	Job     string   `json:"job" yaml:"job"`
	Inputs  []Input  `json:"inputs" yaml:"inputs"`
	Flows   []Flow   `json:"flows" yaml:"flows"`
	Outputs []Output `json:"outputs" yaml:"outputs"`
	Runtime Runtime  `json:"runtime" yaml:"runtime"`
}

// Input is a named raw record set.
type Input struct {
	Name   string `json:"name" yaml:"name"`
	Source Source `json:"source" yaml:"source"`
	Parser Parser `json:"parser" yaml:"parser"`
}

type Source struct {
	// Kind: "file" | "s3"
	Kind string      `json:"kind" yaml:"kind"`
	File *FileSource `json:"file,omitempty" yaml:"file,omitempty"`
	S3   *S3Location `json:"s3,omitempty" yaml:"s3,omitempty"`
}

type FileSource struct {
	Path string `json:"path" yaml:"path"`
}

// S3Location addresses one object. Endpoint and PathStyle are for
// S3-compatible stores such as MinIO.
type S3Location struct {
	Bucket    string `json:"bucket" yaml:"bucket"`
	Key       string `json:"key" yaml:"key"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	PathStyle bool   `json:"path_style,omitempty" yaml:"path_style,omitempty"`
}

type Parser struct {
	// Kind: "csv" | "json"
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Flow is an ordered list of steps applied to Input, which names either an
// Input or an earlier Flow.
type Flow struct {
	Name  string      `json:"name" yaml:"name"`
	Input string      `json:"input" yaml:"input"`
	Steps []Transform `json:"steps" yaml:"steps"`
}

type Transform struct {
	Kind    string  `json:"kind" yaml:"kind"`
	Options Options `json:"options" yaml:"options"`
}

// Output writes a flow's final table to a sink.
type Output struct {
	Flow string `json:"flow" yaml:"flow"`
	Sink Sink   `json:"sink" yaml:"sink"`
}

type Sink struct {
	// Kind: "tsv" | "csv" | "xlsx" | "s3" | "sqlite" | "postgres" | "mssql"
	Kind string `json:"kind" yaml:"kind"`

	// Path is used by file sinks.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// S3 is used by the s3 sink.
	S3 *S3Location `json:"s3,omitempty" yaml:"s3,omitempty"`

	// DSN and Table are used by database sinks. DSN is expanded with
	// os.ExpandEnv before use.
	DSN   string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Table string `json:"table,omitempty" yaml:"table,omitempty"`

	Options Options `json:"options,omitempty" yaml:"options,omitempty"`
}

// Runtime controls execution behavior at the I/O edge.
type Runtime struct {
	// BatchSize bounds rows per INSERT for database sinks. Defaults to 500.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// DebugTimings logs per-step durations at info level instead of debug.
	DebugTimings bool `json:"debug_timings" yaml:"debug_timings"`
}

// Load reads a pipeline file. ".yaml" and ".yml" decode as YAML, anything
// else as JSON. Unknown fields are rejected.
func Load(path string) (Pipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw, filepath.Ext(path))
}

// Parse decodes raw config bytes; ext selects the format as in Load.
func Parse(raw []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, fmt.Errorf("decode json config: %w", err)
		}
	}
	return p, nil
}

// InputByName returns the named input.
func (p Pipeline) InputByName(name string) (Input, bool) {
	for _, in := range p.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return Input{}, false
}
