/*
Package config provides layered configuration for l2refresh.

Sources are applied in increasing order of precedence:

	┌─────────────────────────────────────────────┐
	│          Command line flags                 │ ← Highest Priority
	│     (only flags set explicitly)             │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│        Environment Variables                │
	│           (L2REFRESH_*)                     │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File                  │
	│            (YAML format)                    │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

# Configuration File

	global:
	  log_level: INFO        # DEBUG, INFO, WARN, ERROR
	  log_format: text       # text or json
	  log_file: ""           # stderr when empty

	sampling:
	  max_reads: 4096        # negative: the file's byte length
	  read_timeout: 60s
	  randomize_reads: false # recognized, rejected as not implemented
	  progress_mode: per-sample

	dispatch:
	  jobs: 16

	discovery:
	  glob: ""               # empty: every file below the start directory
	  min_file_size: 100     # files this size or smaller are skipped

	report:
	  table: false
	  table_format: single   # single, ascii, markdown
	  output: text           # text or json
	  progress_interval: 30s # 0 disables periodic progress logs

	metrics:
	  enabled: true
	  textfile: ""           # node_exporter textfile collector target
	  port: 0                # serve /metrics while running when > 0
	  namespace: l2refresh

# Environment Variables

	L2REFRESH_LOG_LEVEL, L2REFRESH_LOG_FILE, L2REFRESH_LOG_FORMAT
	L2REFRESH_JOBS, L2REFRESH_MAX_READS, L2REFRESH_READ_TIMEOUT
	L2REFRESH_PROGRESS_MODE
	L2REFRESH_METRICS_TEXTFILE, L2REFRESH_METRICS_ENABLED

# Validation

Validate reports the randomize option first, as ErrCodeUnimplementedFeature,
so callers can print a dedicated message. All other problems are
ErrCodeInvalidConfig.
*/
package config
