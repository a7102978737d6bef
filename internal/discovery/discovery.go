// Package discovery turns command line input into the list of files to sample.
package discovery

import (
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/objectfs/l2refresh/pkg/errors"
	"github.com/objectfs/l2refresh/pkg/utils"
)

const (
	// DefaultPattern matches every entry below the start directory.
	DefaultPattern = "**/*"
	// DefaultMinSize excludes files too small to be worth sampling.
	DefaultMinSize int64 = 100
)

// Explicit checks user-listed paths. A missing path fails the whole call;
// directories are skipped with a warning. Files keep their input order.
func Explicit(paths []string, logger *utils.StructuredLogger) ([]string, error) {
	if logger == nil {
		logger = utils.NopLogger()
	}
	logger = logger.WithComponent("discovery")

	files := make([]string, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			code := errors.ErrCodeIO
			if stderrors.Is(err, fs.ErrNotExist) {
				code = errors.ErrCodePathNotFound
			}
			return nil, errors.Wrap(code, "cannot access input path", err).
				WithComponent("discovery").
				WithContext("path", p)
		}
		if info.IsDir() {
			logger.Warn("skipping directory, use deep-read to sample its contents", map[string]interface{}{"path": p})
			continue
		}
		if !info.Mode().IsRegular() {
			// Devices and FIFOs cannot be mapped and may block on open.
			logger.Warn("skipping non-regular file", map[string]interface{}{
				"path": p,
				"mode": info.Mode().String(),
			})
			continue
		}
		files = append(files, p)
	}

	if len(files) == 0 {
		return nil, errors.NewError(errors.ErrCodeNoInputPaths, "no files to read").WithComponent("discovery")
	}
	return files, nil
}

// Walk enumerates regular files below start whose slash-separated relative
// path matches pattern and whose size is greater than minSize. Symlinks are
// followed when checking type and size.
func Walk(start, pattern string, minSize int64, logger *utils.StructuredLogger) ([]string, error) {
	if logger == nil {
		logger = utils.NopLogger()
	}
	logger = logger.WithComponent("discovery")
	if pattern == "" {
		pattern = DefaultPattern
	}

	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "invalid glob pattern").
			WithComponent("discovery").
			WithContext("pattern", pattern)
	}

	info, err := os.Stat(start)
	if err != nil {
		code := errors.ErrCodeIO
		if stderrors.Is(err, fs.ErrNotExist) {
			code = errors.ErrCodePathNotFound
		}
		return nil, errors.Wrap(code, "cannot access start directory", err).
			WithComponent("discovery").
			WithContext("path", start)
	}
	if !info.IsDir() {
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "start location is not a directory").
			WithComponent("discovery").
			WithContext("path", start)
	}

	fsys := os.DirFS(start)
	var files []string
	var skippedSmall int
	err = doublestar.GlobWalk(fsys, pattern, func(p string, _ fs.DirEntry) error {
		st, err := fs.Stat(fsys, p)
		if err != nil {
			logger.Warn("skipping unreadable entry", map[string]interface{}{"path": p, "error": err.Error()})
			return nil
		}
		if st.IsDir() || !st.Mode().IsRegular() {
			return nil
		}
		if st.Size() <= minSize {
			skippedSmall++
			return nil
		}
		full, err := utils.JoinWithin(start, p)
		if err != nil {
			logger.Warn("skipping entry outside start directory", map[string]interface{}{"path": p, "error": err.Error()})
			return nil
		}
		files = append(files, full)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, "directory walk failed", err).
			WithComponent("discovery").
			WithContext("path", start)
	}

	logger.Debug("discovery finished", map[string]interface{}{
		"start":         start,
		"pattern":       pattern,
		"files":         len(files),
		"skipped_small": skippedSmall,
	})

	if len(files) == 0 {
		return nil, errors.NewError(errors.ErrCodeNoInputPaths, "no files matched").
			WithComponent("discovery").
			WithContext("path", start).
			WithContext("pattern", pattern)
	}
	return files, nil
}
