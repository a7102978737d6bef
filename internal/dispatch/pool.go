package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/objectfs/l2refresh/internal/sampler"
	"github.com/objectfs/l2refresh/pkg/errors"
	"github.com/objectfs/l2refresh/pkg/utils"
)

// FileSampler samples one file. *sampler.Sampler implements it.
type FileSampler interface {
	Sample(path string) (sampler.Result, error)
}

// Observer is notified around every file. Calls may come from several
// workers at once.
type Observer interface {
	OnFileStart(path string)
	OnFileDone(path string, res sampler.Result, err error, d time.Duration)
}

// Outcome is the raw result of one input path.
type Outcome struct {
	Index    int
	Path     string
	Result   sampler.Result
	Err      error
	Duration time.Duration
}

// Failure is a path whose sampling failed.
type Failure struct {
	Index int
	Path  string
	Err   error
}

// Batch holds the outcomes of one RunAll call in input order.
type Batch struct {
	Outcomes []Outcome
	Results  []sampler.Result
	Failures []Failure
}

// Pool runs a FileSampler over a list of paths with a fixed number of workers.
type Pool struct {
	sampler   FileSampler
	jobs      int
	observers []Observer
	logger    *utils.StructuredLogger
}

// Option customizes a Pool.
type Option func(*Pool)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(p *Pool) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

// WithLogger sets the pool logger.
func WithLogger(l *utils.StructuredLogger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool creates a pool with jobs workers. jobs < 1 is treated as 1.
func NewPool(s FileSampler, jobs int, opts ...Option) *Pool {
	if jobs < 1 {
		jobs = 1
	}
	p := &Pool{
		sampler: s,
		jobs:    jobs,
		logger:  utils.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("dispatch")
	return p
}

// Jobs returns the configured worker count.
func (p *Pool) Jobs() int {
	return p.jobs
}

// RunAll samples every path and returns the outcomes in input order. A failed
// file never stops the batch. Once ctx is done no new file is started; files
// already being sampled run to completion and the rest are reported as
// canceled.
func (p *Pool) RunAll(ctx context.Context, paths []string) Batch {
	outcomes := make([]Outcome, len(paths))

	if len(paths) <= 1 || p.jobs <= 1 {
		p.logger.Debug("sampling sequentially", map[string]interface{}{"files": len(paths)})
		for i, path := range paths {
			outcomes[i] = p.runOne(ctx, i, path)
		}
		return collect(outcomes)
	}

	workers := p.jobs
	if workers > len(paths) {
		workers = len(paths)
	}
	p.logger.Debug("sampling in parallel", map[string]interface{}{"files": len(paths), "workers": workers})

	// Each index is written by exactly one worker and read only after Wait.
	tasks := make(chan int, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range tasks {
				outcomes[i] = p.runOne(ctx, i, paths[i])
			}
			return nil
		})
	}

	sent := 0
feed:
	for sent < len(paths) {
		select {
		case tasks <- sent:
			sent++
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	_ = g.Wait()

	for i := sent; i < len(paths); i++ {
		outcomes[i] = canceled(ctx, i, paths[i])
	}
	return collect(outcomes)
}

func (p *Pool) runOne(ctx context.Context, i int, path string) Outcome {
	if ctx.Err() != nil {
		return canceled(ctx, i, path)
	}

	for _, o := range p.observers {
		o.OnFileStart(path)
	}
	start := time.Now()
	res, err := p.sampler.Sample(path)
	d := time.Since(start)
	for _, o := range p.observers {
		o.OnFileDone(path, res, err, d)
	}

	if err != nil {
		p.logger.Warn("file sampling failed", map[string]interface{}{
			"path":  path,
			"code":  errors.GetCode(err),
			"error": err.Error(),
		})
	} else {
		p.logger.Debug("file sampled", map[string]interface{}{
			"path":    path,
			"samples": res.Samples,
			"size":    res.Size,
			"stop":    res.StopReason,
			"elapsed": d,
		})
	}
	return Outcome{Index: i, Path: path, Result: res, Err: err, Duration: d}
}

func canceled(ctx context.Context, i int, path string) Outcome {
	err := errors.Wrap(errors.ErrCodeOperationCanceled, "sampling not started", ctx.Err()).
		WithComponent("dispatch").
		WithContext("path", path)
	return Outcome{Index: i, Path: path, Err: err}
}

func collect(outcomes []Outcome) Batch {
	b := Batch{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			b.Failures = append(b.Failures, Failure{Index: o.Index, Path: o.Path, Err: o.Err})
			continue
		}
		b.Results = append(b.Results, o.Result)
	}
	return b
}
