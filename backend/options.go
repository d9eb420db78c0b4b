// Package backend is C8, the back-end façade (spec.md §6). It turns a
// lowered plan.Plan plus a set of Options into rendered Go source: one
// package per table (C6), one method per query on a generated Datastore
// facade type (C7), and — when requested — a Collaborator Hook interface
// describing that facade's public surface.
package backend

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/syssam/emdbc/codegen/table"
	"github.com/syssam/emdbc/diag"
	"github.com/syssam/emdbc/frontend"
)

// Options is spec.md §6's `impl X as Serialized { ... }` option set,
// loaded per SPEC_FULL.md §1.3: functional options for library callers,
// a YAML file for the CLI, CLI flags overriding the file.
type Options struct {
	// Name is the backend declaration's own name (`impl NAME as ...`).
	Name string

	Selector table.Selector
	// Profile selects one of runtime's four minister profiles by name
	// ("basic", "iter", "parallel", "chunk" — spec.md's `op_impl`).
	Profile string
	// Workers bounds Parallel/Chunk; <= 0 defaults to GOMAXPROCS(0).
	Workers int
	// ChunkSize sizes Chunk's batches; <= 0 defaults to 64.
	ChunkSize int

	// DebugFile is accepted from every option source, but no generator
	// reads it: setting it writes no dump file.
	DebugFile string
	// Interface, if non-empty, also emits a Go interface named Interface
	// listing the Datastore's query method signatures (the Collaborator
	// Hook of spec.md §6). Table key types are not part of it.
	Interface string
	// Pub controls whether the generated Datastore type and its fields
	// are exported.
	Pub bool
	// DSName overrides the generated datastore type's name; defaults to
	// "Datastore".
	DSName string
	// AggressiveInlining is accepted from every option source, but no
	// generator reads it: generated methods carry no inlining annotation.
	AggressiveInlining bool

	// ElideTrivialCommits (default false) is accepted but no generator
	// reads it: commit/abort emission is the same whatever its value.
	ElideTrivialCommits bool

	// Workers bounding codegen's own file-rendering fan-out (distinct
	// from the runtime Profile's Workers above).
	CodegenWorkers int

	// Log receives structured diagnostics from every pipeline stage
	// (spec.md §1.1's ambient stack). Defaults to slog.Default() when nil.
	Log *slog.Logger
}

// Option mutates an Options value under construction.
type Option func(*Options)

// defaultOptions matches spec.md §6's stated defaults: mutability
// selector, basic profile, private (unexported) datastore named
// "Datastore", four-way codegen fan-out.
func defaultOptions() Options {
	return Options{
		Selector:       table.SelectorMutability,
		Profile:        "basic",
		DSName:         "Datastore",
		Pub:            false,
		CodegenWorkers: 4,
	}
}

// New builds an Options value from defaultOptions, applying opts in order.
func New(opts ...Option) Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	return o
}

func WithSelector(s table.Selector) Option { return func(o *Options) { o.Selector = s } }
func WithProfile(name string) Option       { return func(o *Options) { o.Profile = name } }
func WithWorkers(n int) Option             { return func(o *Options) { o.Workers = n } }
func WithChunkSize(n int) Option           { return func(o *Options) { o.ChunkSize = n } }
func WithDebugFile(path string) Option     { return func(o *Options) { o.DebugFile = path } }
func WithInterface(name string) Option     { return func(o *Options) { o.Interface = name } }
func WithPub(pub bool) Option              { return func(o *Options) { o.Pub = pub } }
func WithDSName(name string) Option        { return func(o *Options) { o.DSName = name } }
func WithAggressiveInlining(b bool) Option { return func(o *Options) { o.AggressiveInlining = b } }
func WithElideTrivialCommits(b bool) Option {
	return func(o *Options) { o.ElideTrivialCommits = b }
}
func WithCodegenWorkers(n int) Option { return func(o *Options) { o.CodegenWorkers = n } }
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Log = l }
}

// yamlOptions mirrors Options' CLI-facing fields for gopkg.in/yaml.v3
// unmarshalling; Options itself stays the internal, fully-typed shape so
// the YAML tag surface doesn't leak into library-caller code.
type yamlOptions struct {
	Selector            string `yaml:"selector"`
	Profile             string `yaml:"profile"`
	Workers             int    `yaml:"workers"`
	ChunkSize           int    `yaml:"chunk_size"`
	DebugFile           string `yaml:"debug_file"`
	Interface           string `yaml:"interface"`
	Pub                 bool   `yaml:"pub"`
	DSName              string `yaml:"ds_name"`
	AggressiveInlining  bool   `yaml:"aggressive_inlining"`
	ElideTrivialCommits bool   `yaml:"elide_trivial_commits"`
	CodegenWorkers      int    `yaml:"codegen_workers"`
}

// LoadYAML reads an emdbc.yaml-style config file (SPEC_FULL.md §1.3) into
// an Options value, starting from defaultOptions so a partial file is
// valid.
func LoadYAML(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("backend: reading %s: %w", path, err)
	}
	var y yamlOptions
	if err := yaml.Unmarshal(data, &y); err != nil {
		return Options{}, fmt.Errorf("backend: parsing %s: %w", path, err)
	}
	o := defaultOptions()
	if y.Selector != "" {
		sel, ok := table.ParseSelector(y.Selector)
		if !ok {
			return Options{}, fmt.Errorf("backend: %s: unknown selector %q", path, y.Selector)
		}
		o.Selector = sel
	}
	if y.Profile != "" {
		o.Profile = y.Profile
	}
	o.Workers = y.Workers
	o.ChunkSize = y.ChunkSize
	o.DebugFile = y.DebugFile
	o.Interface = y.Interface
	o.Pub = y.Pub
	if y.DSName != "" {
		o.DSName = y.DSName
	}
	o.AggressiveInlining = y.AggressiveInlining
	o.ElideTrivialCommits = y.ElideTrivialCommits
	if y.CodegenWorkers > 0 {
		o.CodegenWorkers = y.CodegenWorkers
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	return o, nil
}

// Override returns a copy of o with every non-zero field of cli applied
// on top, the "flags > file > defaults" precedence of SPEC_FULL.md §1.3.
// Bool fields have no zero-value signal, so WithPub/WithAggressiveInlining
// style flags are expected to be applied via functional Option instead
// when the caller needs to force them off; Override only ever turns
// values on or replaces non-empty strings/positive numbers. Selector is
// excluded: its zero value (SelectorMutability) is also its meaningful
// default, so a CLI layer wanting to force it must use WithSelector
// directly on the result rather than going through Override.
func (o Options) Override(cli Options) Options {
	if cli.Profile != "" {
		o.Profile = cli.Profile
	}
	if cli.Workers > 0 {
		o.Workers = cli.Workers
	}
	if cli.ChunkSize > 0 {
		o.ChunkSize = cli.ChunkSize
	}
	if cli.DebugFile != "" {
		o.DebugFile = cli.DebugFile
	}
	if cli.Interface != "" {
		o.Interface = cli.Interface
	}
	if cli.Pub {
		o.Pub = true
	}
	if cli.DSName != "" {
		o.DSName = cli.DSName
	}
	if cli.AggressiveInlining {
		o.AggressiveInlining = true
	}
	if cli.CodegenWorkers > 0 {
		o.CodegenWorkers = cli.CodegenWorkers
	}
	return o
}

// FromBackendDecl parses one `impl NAME as Serialized { options }`
// declaration (SPEC_FULL.md §12's options.rs-style typed backend-option
// parsing — frontend.parseOptionList produces the raw map, this function
// gives each key its typed meaning) into an Options value. Unknown
// backends (anything but "Serialized") and unknown/malformed option keys
// are reported as diagnostics rather than errors, matching diag's
// "parser keeps going" philosophy (spec.md §4.4).
func FromBackendDecl(bd frontend.BackendDecl) (Options, diag.List) {
	var diags diag.List
	o := defaultOptions()
	o.Name = bd.Name

	if bd.Backend != "Serialized" {
		diags = append(diags, diag.New(diag.Error, diag.CodeUnknownBackendName, bd.Span,
			"unknown backend %q, only \"Serialized\" is implemented", bd.Backend))
		return o, diags
	}

	keys := make([]string, 0, len(bd.Options))
	for k := range bd.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := bd.Options[key]
		switch key {
		case "debug_file":
			o.DebugFile = value
		case "interface":
			o.Interface = value
		case "ds_name":
			o.DSName = value
		case "pub":
			b, err := parseOnOff(value)
			if err != nil {
				diags = append(diags, diag.New(diag.Error, diag.CodeBadBackendOptionKind, bd.Span,
					"option %q: %v", key, err))
				continue
			}
			o.Pub = b
		case "aggressive_inlining":
			b, err := parseOnOff(value)
			if err != nil {
				diags = append(diags, diag.New(diag.Error, diag.CodeBadBackendOptionKind, bd.Span,
					"option %q: %v", key, err))
				continue
			}
			o.AggressiveInlining = b
		case "op_impl":
			switch value {
			case "Basic", "Iter", "Parallel", "Chunk":
				o.Profile = value
			default:
				diags = append(diags, diag.New(diag.Error, diag.CodeUnknownRuntimeProfile, bd.Span,
					"unknown op_impl %q", value))
			}
		default:
			diags = append(diags, diag.New(diag.Error, diag.CodeUnknownBackendOption, bd.Span,
				"unknown backend option %q", key))
		}
	}

	if o.Log == nil {
		o.Log = slog.Default()
	}
	return o, diags
}

func parseOnOff(v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, nil
		}
		return false, fmt.Errorf("expected on|off, found %q", v)
	}
}
