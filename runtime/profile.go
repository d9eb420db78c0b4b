package runtime

import "runtime"

// Profile selects the execution strategy a generated query's operator
// chain runs under (spec.md §4.7's "minister" profiles). The element
// type of a stream is carried by the generic operator functions in this
// package (Map, Filter, Fold, ...), not by Profile itself — Go interface
// methods cannot introduce their own type parameters, so Profile stays a
// small strategy-selection value passed alongside each generic call.
type Profile interface {
	// Concurrent reports whether this profile parallelizes independent
	// element processing at all.
	Concurrent() bool
	// Workers is the bounded worker count Parallel/Chunk run with; Basic
	// and Iter always report 1.
	Workers() int
	// ChunkSize is the batch size Chunk divides a stream into; every
	// other profile reports 0 (no chunking).
	ChunkSize() int
}

// Basic runs every operator sequentially over a materialized slice, the
// simplest and default profile — the runtime analogue of the teacher's
// un-parallelized single-writer generation path.
type Basic struct{}

func (Basic) Concurrent() bool { return false }
func (Basic) Workers() int     { return 1 }
func (Basic) ChunkSize() int   { return 0 }

// Iter also runs sequentially. Every operator in this package treats it
// exactly like Basic: both walk materialized slices with index-based
// loops, and no operator pulls its input lazily under Iter.
type Iter struct{}

func (Iter) Concurrent() bool { return false }
func (Iter) Workers() int     { return 1 }
func (Iter) ChunkSize() int   { return 0 }

// Parallel distributes independent element processing (Map, Filter,
// PredicateJoin; EquiJoin stays sequential) across a bounded errgroup worker pool sized to
// GOMAXPROCS by default, the idiomatic analogue of the teacher's
// `runtime.GOMAXPROCS(0)` worker count (wiring golang.org/x/sync per
// SPEC_FULL.md §2). MapSeq always ignores this and runs sequentially
// (spec.md §5's ordering guarantee for mutating operators).
type Parallel struct {
	workers int
}

// NewParallel returns a Parallel profile bounded to n workers; n <= 0
// defaults to GOMAXPROCS(0).
func NewParallel(n int) Parallel {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return Parallel{workers: n}
}

func (p Parallel) Concurrent() bool { return true }
func (p Parallel) Workers() int     { return p.workers }
func (p Parallel) ChunkSize() int   { return 0 }

// Chunk divides a stream into fixed-size batches and runs one goroutine
// per batch (bounded the same way Parallel is), trading per-item
// scheduling overhead for coarser-grained parallelism on cheap per-item
// work.
type Chunk struct {
	workers int
	size    int
}

// NewChunk returns a Chunk profile with the given batch size, bounded to
// n workers; n <= 0 defaults to GOMAXPROCS(0); size <= 0 defaults to 64.
func NewChunk(n, size int) Chunk {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if size <= 0 {
		size = 64
	}
	return Chunk{workers: n, size: size}
}

func (c Chunk) Concurrent() bool { return true }
func (c Chunk) Workers() int     { return c.workers }
func (c Chunk) ChunkSize() int   { return c.size }
