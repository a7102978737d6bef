package discovery

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/l2refresh/pkg/errors"
	"github.com/objectfs/l2refresh/pkg/utils"
)

func makeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]int{
		"big.bin":              500,
		"tiny.txt":             10,
		"exactly100.dat":       100,
		"sub/video.mkv":        2048,
		"sub/notes.txt":        101,
		"sub/deeper/photo.jpg": 4096,
	}
	for rel, size := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{'x'}, size), 0o600))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty-dir"), 0o755))
	return root
}

func TestWalk_DefaultPatternSkipsSmallFilesAndDirs(t *testing.T) {
	root := makeTree(t)

	got, err := Walk(root, DefaultPattern, DefaultMinSize, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(root, "big.bin"),
		filepath.Join(root, "sub", "video.mkv"),
		filepath.Join(root, "sub", "notes.txt"),
		filepath.Join(root, "sub", "deeper", "photo.jpg"),
	}, got)
}

func TestWalk_Pattern(t *testing.T) {
	root := makeTree(t)

	got, err := Walk(root, "**/*.{mkv,jpg}", DefaultMinSize, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "sub", "video.mkv"),
		filepath.Join(root, "sub", "deeper", "photo.jpg"),
	}, got)

	got, err = Walk(root, "*", DefaultMinSize, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "big.bin")}, got)
}

func TestWalk_NoMatches(t *testing.T) {
	root := makeTree(t)

	_, err := Walk(root, "**/*.iso", DefaultMinSize, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoInputPaths, errors.GetCode(err))
}

func TestWalk_BadStart(t *testing.T) {
	root := makeTree(t)

	_, err := Walk(filepath.Join(root, "missing"), DefaultPattern, DefaultMinSize, nil)
	assert.Equal(t, errors.ErrCodePathNotFound, errors.GetCode(err))

	_, err = Walk(filepath.Join(root, "big.bin"), DefaultPattern, DefaultMinSize, nil)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.GetCode(err))
}

func TestWalk_InvalidPattern(t *testing.T) {
	_, err := Walk(t.TempDir(), "[", DefaultMinSize, nil)
	assert.Equal(t, errors.ErrCodeInvalidConfig, errors.GetCode(err))
}

func TestExplicit(t *testing.T) {
	root := makeTree(t)
	var buf bytes.Buffer
	logger, err := utils.NewStructuredLogger(&utils.StructuredLoggerConfig{Level: utils.DEBUG, Output: &buf})
	require.NoError(t, err)

	in := []string{
		filepath.Join(root, "tiny.txt"),
		filepath.Join(root, "sub"),
		filepath.Join(root, "big.bin"),
	}
	got, err := Explicit(in, logger)
	require.NoError(t, err)

	// Explicit paths are not size-filtered.
	assert.Equal(t, []string{in[0], in[2]}, got)
	assert.Contains(t, buf.String(), "skipping directory")
}

func TestExplicit_MissingPathIsFatal(t *testing.T) {
	root := makeTree(t)

	_, err := Explicit([]string{filepath.Join(root, "big.bin"), filepath.Join(root, "gone")}, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePathNotFound, errors.GetCode(err))
	assert.True(t, errors.IsFatal(err))
}

func TestExplicit_OnlyDirectories(t *testing.T) {
	root := makeTree(t)

	_, err := Explicit([]string{root}, nil)
	assert.Equal(t, errors.ErrCodeNoInputPaths, errors.GetCode(err))
}
