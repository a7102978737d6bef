package utils

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s", level)
	}
}

// ParseLogFormat parses "text" or "json".
func ParseLogFormat(format string) (LogFormat, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("invalid log format: %s", format)
	}
}

// SetupLogging builds the process logger. Logs go to stderr unless logFile is
// set, so stdout stays reserved for the report.
func SetupLogging(levelStr, formatStr, logFile string) (*StructuredLogger, io.Closer, error) {
	return SetupLoggingTo(os.Stderr, levelStr, formatStr, logFile)
}

// SetupLoggingTo is SetupLogging with an explicit fallback writer.
func SetupLoggingTo(w io.Writer, levelStr, formatStr, logFile string) (*StructuredLogger, io.Closer, error) {
	level, err := ParseLogLevel(levelStr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := ParseLogFormat(formatStr)
	if err != nil {
		return nil, nil, err
	}

	output := w
	var closer io.Closer = nopCloser{}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = file
	}

	logger, err := NewStructuredLogger(&StructuredLoggerConfig{
		Level:  level,
		Output: output,
		Format: format,
	})
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// FormatBytes formats a byte count with binary prefixes (KiB, MiB, ...).
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatBigBytes formats an unbounded count with binary prefixes up to YiB.
func FormatBigBytes(n *big.Int) string {
	if n == nil {
		return humanize.IBytes(0)
	}
	return humanize.BigIBytes(n)
}
