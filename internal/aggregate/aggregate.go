// Package aggregate folds per-file sampling results into run totals.
package aggregate

import (
	"math/big"
	"sync"

	"github.com/objectfs/l2refresh/internal/dispatch"
	"github.com/objectfs/l2refresh/internal/sampler"
)

// FileEntry is one row of per-file detail. Err is set for failed files.
type FileEntry struct {
	Path   string
	Result sampler.Result
	Err    error
}

// Aggregate is the reduction over a set of sampling results. Only successful
// results contribute to Checksum and TotalBytes.
type Aggregate struct {
	Checksum   *big.Int
	TotalBytes int64
	Succeeded  int
	Files      []FileEntry
	Failures   []dispatch.Failure
}

// New returns an empty aggregate.
func New() *Aggregate {
	return &Aggregate{Checksum: new(big.Int)}
}

// Add folds one successful result.
func (a *Aggregate) Add(r sampler.Result) {
	if r.Checksum != nil {
		a.Checksum.Add(a.Checksum, r.Checksum)
	}
	a.TotalBytes += r.Size
	a.Succeeded++
	a.Files = append(a.Files, FileEntry{Path: r.Path, Result: r})
}

// AddFailure records a failed file. Totals are unchanged.
func (a *Aggregate) AddFailure(f dispatch.Failure) {
	a.Failures = append(a.Failures, f)
	a.Files = append(a.Files, FileEntry{Path: f.Path, Err: f.Err})
}

// Merge folds other into a. Totals commute; per-file detail is appended in
// call order.
func (a *Aggregate) Merge(other *Aggregate) {
	if other == nil {
		return
	}
	a.Checksum.Add(a.Checksum, other.Checksum)
	a.TotalBytes += other.TotalBytes
	a.Succeeded += other.Succeeded
	a.Files = append(a.Files, other.Files...)
	a.Failures = append(a.Failures, other.Failures...)
}

// Total reports the number of files seen, successful or not.
func (a *Aggregate) Total() int {
	return a.Succeeded + len(a.Failures)
}

// AllFailed reports whether files were attempted and none succeeded.
func (a *Aggregate) AllFailed() bool {
	return a.Succeeded == 0 && len(a.Failures) > 0
}

// Reduce folds results sequentially.
func Reduce(results []sampler.Result) *Aggregate {
	a := New()
	for _, r := range results {
		a.Add(r)
	}
	return a
}

// ReduceParallel splits results into up to parts contiguous chunks, reduces
// them concurrently and merges the partials in chunk order, so totals and
// per-file order match Reduce.
func ReduceParallel(results []sampler.Result, parts int) *Aggregate {
	if parts <= 1 || len(results) <= 1 {
		return Reduce(results)
	}
	if parts > len(results) {
		parts = len(results)
	}

	chunk := (len(results) + parts - 1) / parts
	partials := make([]*Aggregate, 0, parts)
	for lo := 0; lo < len(results); lo += chunk {
		partials = append(partials, nil)
	}

	var wg sync.WaitGroup
	for i := range partials {
		lo := i * chunk
		hi := lo + chunk
		if hi > len(results) {
			hi = len(results)
		}
		wg.Add(1)
		go func(i int, rs []sampler.Result) {
			defer wg.Done()
			partials[i] = Reduce(rs)
		}(i, results[lo:hi])
	}
	wg.Wait()

	out := New()
	for _, p := range partials {
		out.Merge(p)
	}
	return out
}

// FromBatch builds the run aggregate from dispatcher outcomes. When keepFiles
// is false per-file detail is dropped and only totals and failures remain.
func FromBatch(b dispatch.Batch, keepFiles bool) *Aggregate {
	a := New()
	for _, o := range b.Outcomes {
		if o.Err != nil {
			a.AddFailure(dispatch.Failure{Index: o.Index, Path: o.Path, Err: o.Err})
			continue
		}
		a.Add(o.Result)
	}
	if !keepFiles {
		a.Files = nil
	}
	return a
}
