// Command emdbc is the CLI entry point for the embedded relational
// compiler (SPEC_FULL.md §1.5): it reads one or more .edb source files,
// runs the front end (frontend.Parse), semantic lowering (sem.Lower),
// and the back-end façade (backend.Facade.Generate), then writes the
// rendered Go source tree to disk. It is deliberately thin — every real
// step lives in an importable package so the pipeline can also be driven
// from tests or embedded in another generator, matching the teacher's
// own testgen/main.go shape (compiler/gen/cmd/testgen/main.go).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/syssam/emdbc/backend"
	"github.com/syssam/emdbc/codegen/table"
	"github.com/syssam/emdbc/diag"
	"github.com/syssam/emdbc/frontend"
	"github.com/syssam/emdbc/sem"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("emdbc", flag.ContinueOnError)
	var (
		modulePath = fs.String("module", "", "module path the generated tree will live under (required)")
		outDir     = fs.String("out", "", "output directory for generated Go source (required)")
		configPath = fs.String("config", "", "optional emdbc.yaml config file")
		selector   = fs.String("selector", "", "table storage selector override (mutability|thunderdome|columnar|copy)")
		profile    = fs.String("profile", "", "runtime profile override (basic|iter|parallel|chunk)")
		iface      = fs.String("interface", "", "also emit a Collaborator Hook interface with this name")
		pub        = fs.Bool("pub", false, "export the generated datastore type")
		dsName     = fs.String("ds-name", "", "override the generated datastore type name")
		workers    = fs.Int("workers", 0, "codegen fan-out worker count (default 4)")
		dumpPlan   = fs.Bool("dump-plan", false, "print the lowered plan's textual dump instead of generating code")
		verbose    = fs.Bool("v", false, "enable debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	srcFiles := fs.Args()
	if len(srcFiles) == 0 {
		fmt.Fprintln(os.Stderr, "emdbc: at least one .edb source file is required")
		return 2
	}
	if *modulePath == "" && !*dumpPlan {
		fmt.Fprintln(os.Stderr, "emdbc: -module is required")
		return 2
	}
	if *outDir == "" && !*dumpPlan {
		fmt.Fprintln(os.Stderr, "emdbc: -out is required")
		return 2
	}

	opts := backend.New(backend.WithLogger(log))
	if *configPath != "" {
		fileOpts, err := backend.LoadYAML(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "emdbc: %v\n", err)
			return 1
		}
		fileOpts.Log = log
		opts = fileOpts
	}
	cliOpts := backend.Options{}
	if *selector != "" {
		sel, ok := table.ParseSelector(*selector)
		if !ok {
			fmt.Fprintf(os.Stderr, "emdbc: unknown -selector %q\n", *selector)
			return 2
		}
		opts.Selector = sel
	}
	cliOpts.Profile = *profile
	cliOpts.Interface = *iface
	cliOpts.Pub = *pub
	cliOpts.DSName = *dsName
	cliOpts.CodegenWorkers = *workers
	opts = opts.Override(cliOpts)

	var allDiags diag.List
	var files []*frontend.File
	for _, path := range srcFiles {
		log.Debug("emdbc: parsing", "file", path)
		src, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "emdbc: %v\n", err)
			return 1
		}
		f, diags := frontend.Parse(src, path)
		allDiags = append(allDiags, diags...)
		if f != nil {
			files = append(files, f)
		}
	}
	if allDiags.HasErrors() {
		printDiags(allDiags)
		return 1
	}

	merged := mergeFiles(files)

	log.Debug("emdbc: lowering")
	p, diags := sem.Lower(merged)
	allDiags = append(allDiags, diags...)
	if allDiags.HasErrors() {
		printDiags(allDiags)
		return 1
	}

	if *dumpPlan {
		fmt.Print(p.Dump())
		return 0
	}

	// The `impl NAME as Serialized { ... }` declaration, when present, is
	// the lowest-precedence option source — flags and an -config file both
	// override it (SPEC_FULL.md §1.3).
	if len(merged.Backends) > 0 {
		declOpts, declDiags := backend.FromBackendDecl(merged.Backends[0])
		allDiags = append(allDiags, declDiags...)
		declOpts.Log = opts.Log
		cliSelector := opts.Selector
		opts = declOpts.Override(opts)
		if *selector != "" {
			// Override never touches Selector (its zero value is also its
			// default); re-apply an explicit CLI choice on top of the decl.
			opts.Selector = cliSelector
		}
	}

	out, diags := backend.Facade{}.Generate(p, *modulePath, opts)
	allDiags = append(allDiags, diags...)
	if allDiags.HasErrors() {
		printDiags(allDiags)
		return 1
	}

	if err := backend.WriteOutput(out, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "emdbc: %v\n", err)
		return 1
	}
	log.Info("emdbc: generated", "dir", *outDir, "tables", len(out.TableFiles), "queries", len(out.QueryFiles))
	return 0
}

// mergeFiles concatenates every parsed source file's declarations in
// argument order, so sem.Lower sees one logical File the way it would if
// every .edb argument had been pasted into one source unit.
func mergeFiles(files []*frontend.File) *frontend.File {
	merged := &frontend.File{}
	for _, f := range files {
		merged.Tables = append(merged.Tables, f.Tables...)
		merged.Queries = append(merged.Queries, f.Queries...)
		merged.Backends = append(merged.Backends, f.Backends...)
	}
	return merged
}

func printDiags(diags diag.List) {
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s: %s: %s [%s]\n", d.Primary, d.Severity, d.Message, d.Code)
	}
}
