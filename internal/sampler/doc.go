/*
Package sampler implements the random read loop that pulls a file's pages
through the storage tier's read cache.

A run opens the file, maps it read-only and draws uniformly random offsets,
reading one byte per draw. Each byte goes through a fixed affine transform
(b*2 + 4) that is folded into an unbounded checksum so the reads cannot be
elided. A run stops when the read counter reaches the cap or when the
wall-clock budget is exceeded, whichever happens first; the budget is checked
between reads.

The cap is interpreted through ProgressMode:

	per-sample   counter += 1 per read (default)
	byte-value   counter += value of the byte read

byte-value is the legacy counting scheme, kept for compatibility. On
zero-heavy files the counter barely moves and the time budget ends the run.

A negative MaxReads sets the cap to the file length in bytes. That is a cap on
the counter, not a promise to read every byte.

	s := sampler.New(sampler.Config{MaxReads: 4096, ReadTimeout: time.Minute})
	res, err := s.Sample("/tank/media/a.mkv")
*/
package sampler
