//go:build linux || darwin || freebsd

package sampler

import "golang.org/x/sys/unix"

// adviseRandom tells the kernel the mapping is read at random offsets so it
// skips readahead and each sample costs one page fault. Best effort.
func adviseRandom(m []byte) {
	_ = unix.Madvise(m, unix.MADV_RANDOM)
}
