//go:build linux || darwin || freebsd

package discovery

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/objectfs/l2refresh/pkg/errors"
	"github.com/objectfs/l2refresh/pkg/utils"
)

func TestExplicit_SkipsFIFO(t *testing.T) {
	root := makeTree(t)
	fifo := filepath.Join(root, "pipe")
	require.NoError(t, unix.Mkfifo(fifo, 0o600))

	var buf bytes.Buffer
	logger, err := utils.NewStructuredLogger(&utils.StructuredLoggerConfig{Level: utils.DEBUG, Output: &buf})
	require.NoError(t, err)

	big := filepath.Join(root, "big.bin")
	got, err := Explicit([]string{fifo, big}, logger)
	require.NoError(t, err)
	assert.Equal(t, []string{big}, got)
	assert.Contains(t, buf.String(), "skipping non-regular file")
	assert.Contains(t, buf.String(), fifo)
}

func TestExplicit_OnlyFIFO(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "pipe")
	require.NoError(t, unix.Mkfifo(fifo, 0o600))

	_, err := Explicit([]string{fifo}, nil)
	assert.Equal(t, errors.ErrCodeNoInputPaths, errors.GetCode(err))
}

func TestWalk_SkipsFIFO(t *testing.T) {
	root := makeTree(t)
	require.NoError(t, unix.Mkfifo(filepath.Join(root, "pipe"), 0o600))

	got, err := Walk(root, DefaultPattern, 0, nil)
	require.NoError(t, err)
	for _, p := range got {
		assert.NotEqual(t, "pipe", filepath.Base(p))
	}
}
