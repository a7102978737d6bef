/*
Package metrics exports per-run sampling metrics for l2refresh.

# Overview

Collector owns a private Prometheus registry and implements dispatch.Observer,
so registering it with a dispatch.Pool is all that is needed to record
activity:

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Namespace: "l2refresh",
	})
	pool := dispatch.NewPool(s, jobs, dispatch.WithObserver(collector))

# Exported Metrics

	l2refresh_files_total{status}             ok | error
	l2refresh_errors_total{code}              per-file error codes
	l2refresh_samples_total                   single-byte reads issued
	l2refresh_mapped_bytes_total              bytes of files mapped
	l2refresh_stop_reason_total{reason}       cap | timeout
	l2refresh_file_sample_duration_seconds    per-file wall time
	l2refresh_active_samplers                 files in flight
	l2refresh_last_run_timestamp_seconds      set on textfile export

# Export

l2refresh is a short-lived batch tool, so the usual export path is
WriteTextfile, which writes the registry atomically for the node_exporter
textfile collector. Start additionally serves the registry over HTTP when a
port is configured, which is useful for long deep-read runs.

A disabled collector keeps the in-process Summary but registers nothing and
exports nothing.
*/
package metrics
