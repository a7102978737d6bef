package sampler

import (
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/big"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/edsrzf/mmap-go"

	"github.com/objectfs/l2refresh/pkg/errors"
)

// ProgressMode selects how the read counter advances per sample.
type ProgressMode string

const (
	// ProgressPerSample counts one per sample, so MaxReads is a sample count.
	ProgressPerSample ProgressMode = "per-sample"
	// ProgressByteValue advances by the value of the byte read. Zero bytes do
	// not advance the counter, leaving the time budget as the only bound.
	ProgressByteValue ProgressMode = "byte-value"
)

// ParseProgressMode parses a mode name; the empty string selects ProgressPerSample.
func ParseProgressMode(s string) (ProgressMode, error) {
	switch ProgressMode(strings.ToLower(s)) {
	case "", ProgressPerSample:
		return ProgressPerSample, nil
	case ProgressByteValue:
		return ProgressByteValue, nil
	default:
		return "", fmt.Errorf("invalid progress_mode: %s (must be one of: %s, %s)", s, ProgressPerSample, ProgressByteValue)
	}
}

// StopReason records which bound ended a sampling run.
type StopReason string

const (
	StopCap     StopReason = "cap"
	StopTimeout StopReason = "timeout"
)

// Config is the explicit per-run configuration shared by every Sample call.
type Config struct {
	// MaxReads caps the read counter. Negative means "the file's byte length".
	MaxReads     int64
	ReadTimeout  time.Duration
	ProgressMode ProgressMode
}

// Request is the input to one sampling run.
type Request struct {
	Path        string
	MaxReads    int64
	ReadTimeout time.Duration
}

// Result is the output of one sampling run.
type Result struct {
	Path     string
	Checksum *big.Int
	Size     int64

	Samples    int64
	Progress   int64
	Elapsed    time.Duration
	StopReason StopReason
}

// Source draws offsets. *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// Sampler runs the random read loop over single files. It holds no mutable
// state and is safe for concurrent use as long as the injected source
// factory returns a fresh Source per call.
type Sampler struct {
	cfg       Config
	newSource func() Source
	now       func() time.Time
}

// Option customizes a Sampler.
type Option func(*Sampler)

// WithSource overrides the offset generator factory.
func WithSource(f func() Source) Option {
	return func(s *Sampler) { s.newSource = f }
}

// WithClock overrides the clock used for the time budget.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) { s.now = now }
}

// New creates a Sampler.
func New(cfg Config, opts ...Option) *Sampler {
	if cfg.ProgressMode == "" {
		cfg.ProgressMode = ProgressPerSample
	}
	s := &Sampler{
		cfg: cfg,
		newSource: func() Source {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the sampler configuration.
func (s *Sampler) Config() Config {
	return s.cfg
}

// Request builds the request for path from the sampler configuration.
func (s *Sampler) Request(path string) Request {
	return Request{Path: path, MaxReads: s.cfg.MaxReads, ReadTimeout: s.cfg.ReadTimeout}
}

// Sample runs the read loop over path with the sampler configuration.
func (s *Sampler) Sample(path string) (Result, error) {
	return s.Run(s.Request(path))
}

// Sample is a convenience wrapper for one-off runs.
func Sample(path string, cfg Config) (Result, error) {
	return New(cfg).Sample(path)
}

// Transform is the fixed per-byte transform folded into the checksum.
func Transform(b byte) uint64 {
	return uint64(b)*2 + 4
}

// Run samples req.Path. The mapping is released before the file handle on
// every return path.
func (s *Sampler) Run(req Request) (res Result, err error) {
	f, err := os.OpenFile(req.Path, os.O_RDONLY, 0)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return Result{}, fileError(errors.ErrCodePathNotFound, "open", req.Path, "file does not exist", err)
		}
		return Result{}, fileError(errors.ErrCodeIO, "open", req.Path, "failed to open file", err)
	}
	defer f.Close()

	if info, statErr := f.Stat(); statErr == nil && info.IsDir() {
		return Result{}, fileError(errors.ErrCodeIO, "open", req.Path, "path is a directory", nil)
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return Result{}, fileError(errors.ErrCodeIO, "seek", req.Path, "failed to determine file length", err)
	}
	if size == 0 {
		return Result{}, fileError(errors.ErrCodeEmptyFile, "map", req.Path, "cannot map a zero-length file", nil)
	}
	if size > math.MaxInt {
		return Result{}, fileError(errors.ErrCodeIO, "map", req.Path, "file too large to map", nil)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return Result{}, fileError(errors.ErrCodeIO, "map", req.Path, "failed to map file", err)
	}
	defer func() {
		if uerr := m.Unmap(); uerr != nil && err == nil {
			err = fileError(errors.ErrCodeIO, "unmap", req.Path, "failed to unmap file", uerr)
		}
	}()
	adviseRandom(m)

	limit := req.MaxReads
	if limit < 0 {
		limit = size
	}

	var (
		sum      checksum
		samples  int64
		progress int64
		reason   = StopCap
		n        = len(m)
		src      = s.newSource()
		byteMode = s.cfg.ProgressMode == ProgressByteValue
		start    = s.now()
		elapsed  time.Duration
	)
	for progress < limit {
		b := m[src.IntN(n)]
		sum.add(Transform(b))
		samples++
		if byteMode {
			progress += int64(b)
		} else {
			progress++
		}

		elapsed = s.now().Sub(start)
		if elapsed > req.ReadTimeout {
			reason = StopTimeout
			break
		}
	}

	return Result{
		Path:       req.Path,
		Checksum:   sum.value(),
		Size:       size,
		Samples:    samples,
		Progress:   progress,
		Elapsed:    elapsed,
		StopReason: reason,
	}, nil
}

func fileError(code errors.ErrorCode, op, path, msg string, cause error) error {
	e := errors.NewError(code, msg).
		WithComponent("sampler").
		WithOperation(op).
		WithContext("path", path)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// checksum keeps a uint64 fast path and spills into a big.Int before it
// would overflow.
type checksum struct {
	total   big.Int
	pending uint64
}

func (c *checksum) add(v uint64) {
	if c.pending > math.MaxUint64-v {
		c.flush()
	}
	c.pending += v
}

func (c *checksum) flush() {
	if c.pending == 0 {
		return
	}
	c.total.Add(&c.total, new(big.Int).SetUint64(c.pending))
	c.pending = 0
}

func (c *checksum) value() *big.Int {
	c.flush()
	return new(big.Int).Set(&c.total)
}
