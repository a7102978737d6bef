// Command l2refresh warms a read cache (such as a ZFS L2ARC) by issuing
// random single-byte reads against memory-mapped files.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/objectfs/l2refresh/internal/aggregate"
	"github.com/objectfs/l2refresh/internal/config"
	"github.com/objectfs/l2refresh/internal/discovery"
	"github.com/objectfs/l2refresh/internal/dispatch"
	"github.com/objectfs/l2refresh/internal/metrics"
	"github.com/objectfs/l2refresh/internal/report"
	"github.com/objectfs/l2refresh/internal/sampler"
	"github.com/objectfs/l2refresh/internal/status"
	"github.com/objectfs/l2refresh/pkg/errors"
	"github.com/objectfs/l2refresh/pkg/utils"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130

	// Above this many inputs the read banner prints a count instead of names.
	maxListedFiles = 10
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type globalFlags struct {
	configFile      string
	jobs            int
	maxReads        int64
	randomize       bool
	readTimeout     float64
	progressMode    string
	table           bool
	tableFormat     string
	output          string
	progressEvery   time.Duration
	logLevel        string
	logFormat       string
	logFile         string
	metricsTextfile string
	metricsPort     int
}

func newGlobalFlagSet(stderr io.Writer) (*flag.FlagSet, *globalFlags) {
	g := &globalFlags{}
	def := config.NewDefault()

	fs := flag.NewFlagSet("l2refresh", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&g.configFile, "config", "", "path to a YAML configuration file")
	fs.IntVar(&g.jobs, "jobs", def.Dispatch.Jobs, "number of files sampled concurrently")
	fs.IntVar(&g.jobs, "njobs", def.Dispatch.Jobs, "alias for --jobs")
	fs.Int64Var(&g.maxReads, "max-reads", def.Sampling.MaxReads, "max reads per file; negative means the file size")
	fs.Int64Var(&g.maxReads, "M", def.Sampling.MaxReads, "shorthand for --max-reads")
	fs.BoolVar(&g.randomize, "random-max-reads", false, "randomize per-file read caps (not implemented yet)")
	fs.BoolVar(&g.randomize, "R", false, "shorthand for --random-max-reads")
	fs.Float64Var(&g.readTimeout, "read-timeout", def.Sampling.ReadTimeout.Seconds(), "max seconds spent sampling one file")
	fs.Float64Var(&g.readTimeout, "T", def.Sampling.ReadTimeout.Seconds(), "shorthand for --read-timeout")
	fs.StringVar(&g.progressMode, "progress-mode", def.Sampling.ProgressMode, "read counter mode: per-sample or byte-value")
	fs.BoolVar(&g.table, "table", false, "print a table of the files touched")
	fs.StringVar(&g.tableFormat, "table-format", def.Report.TableFormat, "table style: single, ascii or markdown")
	fs.StringVar(&g.tableFormat, "table-fmt", def.Report.TableFormat, "alias for --table-format")
	fs.StringVar(&g.output, "output", def.Report.Output, "report format: text or json")
	fs.DurationVar(&g.progressEvery, "progress-interval", def.Report.ProgressInterval, "log progress this often; 0 disables")
	fs.StringVar(&g.logLevel, "log-level", def.Global.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&g.logFormat, "log-format", def.Global.LogFormat, "log format: text or json")
	fs.StringVar(&g.logFile, "log-file", "", "write logs to this file instead of stderr")
	fs.StringVar(&g.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file at exit")
	fs.IntVar(&g.metricsPort, "metrics-port", 0, "serve Prometheus metrics on this port while running")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage:
  l2refresh [flags] read <path>...
  l2refresh [flags] deep-read --start <dir> [--glob <pattern>]

Flags:
`)
		fs.PrintDefaults()
	}
	return fs, g
}

// loadConfig layers defaults, the config file, the environment and the flags
// that were set explicitly, in that order.
func loadConfig(fs *flag.FlagSet, g *globalFlags) (*config.Configuration, error) {
	cfg := config.NewDefault()
	if g.configFile != "" {
		if err := cfg.LoadFromFile(g.configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "jobs", "njobs":
			cfg.Dispatch.Jobs = g.jobs
		case "max-reads", "M":
			cfg.Sampling.MaxReads = g.maxReads
		case "random-max-reads", "R":
			cfg.Sampling.RandomizeReads = g.randomize
		case "read-timeout", "T":
			cfg.Sampling.ReadTimeout = time.Duration(g.readTimeout * float64(time.Second))
		case "progress-mode":
			cfg.Sampling.ProgressMode = g.progressMode
		case "table":
			cfg.Report.Table = g.table
		case "table-format", "table-fmt":
			cfg.Report.TableFormat = g.tableFormat
		case "output":
			cfg.Report.Output = g.output
		case "progress-interval":
			cfg.Report.ProgressInterval = g.progressEvery
		case "log-level":
			cfg.Global.LogLevel = strings.ToUpper(g.logLevel)
		case "log-format":
			cfg.Global.LogFormat = g.logFormat
		case "log-file":
			cfg.Global.LogFile = g.logFile
		case "metrics-textfile":
			cfg.Metrics.Textfile = g.metricsTextfile
		case "metrics-port":
			cfg.Metrics.Port = g.metricsPort
		}
	})

	return cfg, cfg.Validate()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, g := newGlobalFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(fs, g)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeUnimplementedFeature) {
			fmt.Fprintln(stderr, "Read size randomization is not implemented yet")
			return exitFailure
		}
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitFailure
	}

	logger, closer, err := utils.SetupLoggingTo(stderr, cfg.Global.LogLevel, cfg.Global.LogFormat, cfg.Global.LogFile)
	if err != nil {
		fmt.Fprintf(stderr, "logging setup failed: %v\n", err)
		return exitFailure
	}
	defer closer.Close()

	app := &app{
		cfg:    cfg,
		logger: logger,
		stdout: stdout,
		stderr: stderr,
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "read":
		return app.read(ctx, cmdArgs)
	case "deep-read", "deep_read":
		return app.deepRead(ctx, cmdArgs)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return exitUsage
	}
}

type app struct {
	cfg    *config.Configuration
	logger *utils.StructuredLogger
	stdout io.Writer
	stderr io.Writer
}

func (a *app) read(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	paths := fs.Args()
	if a.textOutput() {
		if len(paths) > maxListedFiles {
			fmt.Fprintf(a.stdout, "Reading %d files\n", len(paths))
		} else {
			fmt.Fprintf(a.stdout, "Reading the following files:\n %s\n", strings.Join(paths, "\n"))
		}
	}

	files, err := discovery.Explicit(paths, a.logger)
	if err != nil {
		return a.fail(err)
	}
	return a.sample(ctx, "read", files)
}

func (a *app) deepRead(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("deep-read", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var start, pattern string
	fs.StringVar(&start, "start", "", "folder to refresh")
	fs.StringVar(&start, "start-loc", "", "alias for --start")
	fs.StringVar(&pattern, "glob", a.cfg.Discovery.Glob, "glob pattern for file discovery")
	fs.StringVar(&pattern, "glob-pattern", a.cfg.Discovery.Glob, "alias for --glob")
	if err := fs.Parse(args); err != nil {
		if stderrors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if start == "" {
		fmt.Fprintln(a.stderr, "deep-read requires --start")
		fs.Usage()
		return exitUsage
	}

	if a.textOutput() {
		fmt.Fprintf(a.stdout, "Reading files in %s...\n", start)
	}
	files, err := discovery.Walk(start, pattern, a.cfg.Discovery.MinFileSize, a.logger)
	if err != nil {
		return a.fail(err)
	}
	if a.textOutput() {
		fmt.Fprintf(a.stdout, "Reading in %d files...\n", len(files))
	}
	return a.sample(ctx, "deep-read", files)
}

func (a *app) sample(ctx context.Context, command string, files []string) int {
	runID := uuid.NewString()
	logger := a.logger.WithField("run_id", runID)

	reporter, err := report.New(a.stdout, report.Options{
		Table:       a.cfg.Report.Table,
		TableFormat: a.cfg.Report.TableFormat,
		Output:      a.cfg.Report.Output,
	})
	if err != nil {
		return a.fail(err)
	}

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   a.cfg.Metrics.Enabled,
		Port:      a.cfg.Metrics.Port,
		Namespace: a.cfg.Metrics.Namespace,
	})
	if err != nil {
		return a.fail(errors.Wrap(errors.ErrCodeInternalError, "metrics setup failed", err))
	}
	if err := collector.Start(ctx); err != nil {
		logger.Warn("metrics endpoint unavailable", map[string]interface{}{"error": err.Error()})
	} else if addr := collector.Addr(); addr != "" {
		logger.Info("serving metrics", map[string]interface{}{"addr": addr})
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = collector.Stop(stopCtx)
	}()

	tracker := status.NewTracker(len(files), logger)
	progressCtx, cancelProgress := context.WithCancel(ctx)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		tracker.Run(progressCtx, a.cfg.Report.ProgressInterval)
	}()
	stopProgress := func() {
		cancelProgress()
		<-progressDone
	}
	defer stopProgress()

	s := sampler.New(a.cfg.SamplerConfig())
	pool := dispatch.NewPool(s, a.cfg.Dispatch.Jobs,
		dispatch.WithObserver(collector),
		dispatch.WithObserver(tracker),
		dispatch.WithLogger(logger),
	)

	logger.Info("sampling started", map[string]interface{}{
		"command":   command,
		"files":     len(files),
		"jobs":      pool.Jobs(),
		"max_reads": a.cfg.Sampling.MaxReads,
		"timeout":   a.cfg.Sampling.ReadTimeout.String(),
		"progress":  a.cfg.Sampling.ProgressMode,
	})

	started := time.Now()
	batch := pool.RunAll(ctx, files)
	elapsed := time.Since(started)
	stopProgress()

	agg := aggregate.FromBatch(batch, reporter.NeedsFiles())

	logger.Info("sampling finished", map[string]interface{}{
		"succeeded":   agg.Succeeded,
		"failed":      len(agg.Failures),
		"total_bytes": agg.TotalBytes,
		"elapsed":     elapsed.String(),
	})

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			logger.Error("failed to write metrics textfile", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		}
	}

	if err := reporter.Render(agg, report.Meta{
		RunID:     runID,
		Command:   command,
		Jobs:      pool.Jobs(),
		StartedAt: started,
		Elapsed:   elapsed,
	}); err != nil {
		logger.Error("failed to write report", map[string]interface{}{"error": err.Error()})
		return exitFailure
	}

	switch {
	case ctx.Err() != nil:
		logger.Warn("run interrupted, results are partial")
		return exitInterrupted
	case agg.AllFailed():
		return exitFailure
	default:
		return exitOK
	}
}

func (a *app) textOutput() bool {
	return a.cfg.Report.Output != report.OutputJSON
}

// fail stops a run before sampling. Configuration and input errors are the
// caller's to fix; anything else reaching here is unexpected and logged as
// such. JSON output gets the error document on stdout.
func (a *app) fail(err error) int {
	code := errors.GetCode(err)
	fields := map[string]interface{}{
		"code":     code,
		"category": errors.GetCategory(code),
		"error":    err.Error(),
	}
	if errors.IsFatal(err) {
		a.logger.Error("cannot start sampling", fields)
	} else {
		a.logger.Error("unexpected error before sampling", fields)
	}

	var re *errors.RefreshError
	if !stderrors.As(err, &re) {
		return exitFailure
	}
	if !a.textOutput() {
		fmt.Fprintln(a.stdout, re.JSON())
	}
	fmt.Fprintln(a.stderr, re.GetRecommendation())
	return exitFailure
}
