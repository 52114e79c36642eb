package analysis

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Mode selects the execution strategy for a batch operation.
type Mode uint8

const (
	// Deterministic evaluates strictly in index order with a fixed
	// reduction order, giving bit-reproducible results. Required for
	// audit and regression comparisons.
	Deterministic Mode = iota

	// Parallel fans the batch out over a worker pool sized to the
	// available hardware parallelism. Each worker owns a contiguous
	// index chunk and a disjoint region of the output, so no locking is
	// needed. Summation order is not fixed; floating results may differ
	// from Deterministic within a sqrt(N)-scaled tolerance.
	Parallel
)

func (m Mode) String() string {
	if m == Parallel {
		return "parallel"
	}
	return "deterministic"
}

// Batches smaller than this run sequentially even in Parallel mode; the
// fan-out overhead dominates below it.
const minParallelBatch = 256

// forEach applies fn to every index in [0, n). fn must only write to its
// own output slot; inputs are shared read-only across workers.
func forEach(mode Mode, n int, fn func(i int)) {
	if mode == Deterministic || n < minParallelBatch {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := min(start+chunk, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	// Workers never return errors; the join point is the only blocking
	// operation in a batch call.
	_ = g.Wait()
}

// maxReduce returns the maximum of xs, seeded with -Inf. NaN propagates so
// that a poisoned batch is detected by the caller rather than masked.
func maxReduce(mode Mode, xs []float64) float64 {
	if mode == Deterministic || len(xs) < minParallelBatch {
		m := math.Inf(-1)
		for _, x := range xs {
			m = math.Max(m, x)
		}
		return m
	}
	partials := chunkReduce(xs, func(chunk []float64) float64 {
		m := math.Inf(-1)
		for _, x := range chunk {
			m = math.Max(m, x)
		}
		return m
	})
	m := math.Inf(-1)
	for _, p := range partials {
		m = math.Max(m, p)
	}
	return m
}

// sumExpShifted computes sum(exp(xs[i] - shift)). In Parallel mode partial
// sums are accumulated per chunk and combined in chunk order.
func sumExpShifted(mode Mode, xs []float64, shift float64) float64 {
	if mode == Deterministic || len(xs) < minParallelBatch {
		var s float64
		for _, x := range xs {
			s += math.Exp(x - shift)
		}
		return s
	}
	partials := chunkReduce(xs, func(chunk []float64) float64 {
		var s float64
		for _, x := range chunk {
			s += math.Exp(x - shift)
		}
		return s
	})
	var s float64
	for _, p := range partials {
		s += p
	}
	return s
}

// chunkReduce evaluates reduce over GOMAXPROCS contiguous chunks of xs in
// parallel, returning one partial per chunk in positional order.
func chunkReduce(xs []float64, reduce func([]float64) float64) []float64 {
	workers := runtime.GOMAXPROCS(0)
	n := len(xs)
	chunk := (n + workers - 1) / workers
	partials := make([]float64, 0, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := min(start+chunk, n)
		slot := len(partials)
		partials = append(partials, 0)
		g.Go(func() error {
			partials[slot] = reduce(xs[start:end])
			return nil
		})
	}
	_ = g.Wait()
	return partials
}
