// Package report renders a run aggregate for humans or machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/objectfs/l2refresh/internal/aggregate"
	"github.com/objectfs/l2refresh/pkg/errors"
	"github.com/objectfs/l2refresh/pkg/utils"
)

// Table styles.
const (
	StyleASCII    = "ascii"
	StyleMarkdown = "markdown"
	StyleSingle   = "single"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Options selects what Render writes.
type Options struct {
	Table       bool
	TableFormat string
	Output      string
}

// Meta describes the run that produced an aggregate.
type Meta struct {
	RunID     string
	Command   string
	Jobs      int
	StartedAt time.Time
	Elapsed   time.Duration
}

// Reporter writes reports to a single writer.
type Reporter struct {
	out  io.Writer
	opts Options
}

// New creates a reporter. Empty options fall back to single-style text.
func New(out io.Writer, opts Options) (*Reporter, error) {
	if opts.TableFormat == "" {
		opts.TableFormat = StyleSingle
	}
	if opts.Output == "" {
		opts.Output = OutputText
	}
	switch opts.TableFormat {
	case StyleASCII, StyleMarkdown, StyleSingle:
	default:
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "unknown table style").
			WithComponent("report").
			WithContext("table_format", opts.TableFormat)
	}
	switch opts.Output {
	case OutputText, OutputJSON:
	default:
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "unknown output format").
			WithComponent("report").
			WithContext("output", opts.Output)
	}
	return &Reporter{out: out, opts: opts}, nil
}

// NeedsFiles reports whether Render uses per-file detail.
func (r *Reporter) NeedsFiles() bool {
	return r.opts.Table || r.opts.Output == OutputJSON
}

// Render writes the report for a.
func (r *Reporter) Render(a *aggregate.Aggregate, meta Meta) error {
	if r.opts.Output == OutputJSON {
		return WriteJSON(r.out, a, meta)
	}

	if err := WriteSummary(r.out, a); err != nil {
		return err
	}
	if r.opts.Table {
		if err := WriteTable(r.out, a, r.opts.TableFormat); err != nil {
			return err
		}
	}
	return WriteFailures(r.out, a)
}

// WriteSummary writes the two total lines.
func WriteSummary(w io.Writer, a *aggregate.Aggregate) error {
	_, err := fmt.Fprintf(w, "Read %s\nGBG Res: %s\n",
		utils.FormatBytes(a.TotalBytes),
		utils.FormatBigBytes(a.Checksum))
	return err
}

// WriteTable renders one row per file. Failed files show their error code in
// place of the checksum.
func WriteTable(w io.Writer, a *aggregate.Aggregate, style string) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Filename", "Bytes Read", "Filesize"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	switch style {
	case StyleASCII:
	case StyleMarkdown:
		table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
		table.SetCenterSeparator("|")
	case StyleSingle:
		// tablewriter has no corner glyphs; an open frame keeps ┼ on inner junctions only.
		table.SetBorder(false)
		table.SetCenterSeparator("┼")
		table.SetColumnSeparator("│")
		table.SetRowSeparator("─")
	default:
		return errors.NewError(errors.ErrCodeInvalidConfig, "unknown table style").
			WithComponent("report").
			WithContext("table_format", style)
	}

	for _, f := range a.Files {
		name := filepath.Base(f.Path)
		if f.Err != nil {
			table.Append([]string{name, "error: " + string(errors.GetCode(f.Err)), "-"})
			continue
		}
		checksum := "0"
		if f.Result.Checksum != nil {
			checksum = f.Result.Checksum.String()
		}
		table.Append([]string{name, checksum, utils.FormatBytes(f.Result.Size)})
	}
	table.Render()
	return nil
}

// WriteFailures lists failed paths, one per line.
func WriteFailures(w io.Writer, a *aggregate.Aggregate) error {
	if len(a.Failures) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%d of %d files failed:\n", len(a.Failures), a.Total()); err != nil {
		return err
	}
	for _, f := range a.Failures {
		if _, err := fmt.Fprintf(w, "  %s [%s] %s\n", f.Path, errors.GetCode(f.Err), f.Err); err != nil {
			return err
		}
	}
	return nil
}

type jsonFile struct {
	Path       string  `json:"path"`
	Checksum   string  `json:"checksum,omitempty"`
	Size       int64   `json:"size,omitempty"`
	Samples    int64   `json:"samples,omitempty"`
	StopReason string  `json:"stop_reason,omitempty"`
	Elapsed    float64 `json:"elapsed_seconds,omitempty"`
	ErrorCode  string  `json:"error_code,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type jsonReport struct {
	RunID          string     `json:"run_id"`
	Command        string     `json:"command,omitempty"`
	Jobs           int        `json:"jobs,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	Files          int        `json:"files"`
	Succeeded      int        `json:"succeeded"`
	Failed         int        `json:"failed"`
	TotalBytes     int64      `json:"total_bytes"`
	Checksum       string     `json:"checksum"`
	Entries        []jsonFile `json:"entries,omitempty"`
}

// WriteJSON encodes the aggregate as one indented JSON document. The
// checksum is a decimal string since it may exceed 64 bits.
func WriteJSON(w io.Writer, a *aggregate.Aggregate, meta Meta) error {
	doc := jsonReport{
		RunID:          meta.RunID,
		Command:        meta.Command,
		Jobs:           meta.Jobs,
		StartedAt:      meta.StartedAt.UTC(),
		ElapsedSeconds: meta.Elapsed.Seconds(),
		Files:          a.Total(),
		Succeeded:      a.Succeeded,
		Failed:         len(a.Failures),
		TotalBytes:     a.TotalBytes,
		Checksum:       a.Checksum.String(),
	}

	entries := a.Files
	if entries == nil {
		// Per-file detail was dropped; still list the failures.
		for _, f := range a.Failures {
			entries = append(entries, aggregate.FileEntry{Path: f.Path, Err: f.Err})
		}
	}
	for _, f := range entries {
		if f.Err != nil {
			doc.Entries = append(doc.Entries, jsonFile{
				Path:      f.Path,
				ErrorCode: string(errors.GetCode(f.Err)),
				Error:     f.Err.Error(),
			})
			continue
		}
		jf := jsonFile{
			Path:       f.Path,
			Checksum:   "0",
			Size:       f.Result.Size,
			Samples:    f.Result.Samples,
			StopReason: string(f.Result.StopReason),
			Elapsed:    f.Result.Elapsed.Seconds(),
		}
		if f.Result.Checksum != nil {
			jf.Checksum = f.Result.Checksum.String()
		}
		doc.Entries = append(doc.Entries, jf)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
