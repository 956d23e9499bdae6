// Package compress turns the staged database copy into the final gzip
// artifact and back again for restore.
//
// The compressed stream is written to <dst>.partial and renamed into place
// only after a successful fsync, so a crash or a full disk never leaves a
// half-written file at the final artifact name. A BLAKE2b-256 digest of the
// compressed bytes is computed in the same pass; verify recomputes it
// against the catalog without a second read of the source.
package compress

import (
	"compress/gzip"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// DefaultLevel is the gzip compression level used when none is configured.
// Level 6 is gzip's own default: a reasonable size/CPU trade-off for
// nightly database snapshots.
const DefaultLevel = 6

// ErrExists is returned by Decompress when the destination already exists
// and overwriting was not requested.
var ErrExists = errors.New("destination already exists")

// Result describes a completed compression.
type Result struct {
	Size     int64  // compressed size in bytes
	Checksum string // hex BLAKE2b-256 of the compressed artifact
}

// File gzips src into dst at the given level (1-9). On any failure the
// partial output is removed and dst is left untouched; src is never
// modified or deleted.
func File(src, dst string, level int) (Result, error) {
	var res Result

	if level < gzip.BestSpeed || level > gzip.BestCompression {
		return res, fmt.Errorf("compression level must be 1-9, got %d", level)
	}

	in, err := os.Open(src)
	if err != nil {
		return res, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	partial := dst + ".partial"
	out, err := os.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return res, fmt.Errorf("create %s: %w", partial, err)
	}

	fail := func(err error) (Result, error) {
		out.Close()
		os.Remove(partial)
		return res, err
	}

	hash, err := blake2b.New256(nil)
	if err != nil {
		return fail(fmt.Errorf("init checksum: %w", err))
	}

	// The hash sees exactly the bytes that land in the file.
	counter := &countingWriter{w: io.MultiWriter(out, hash)}
	gz, err := gzip.NewWriterLevel(counter, level)
	if err != nil {
		return fail(fmt.Errorf("gzip level %d: %w", level, err))
	}

	if _, err := io.Copy(gz, in); err != nil {
		return fail(fmt.Errorf("compress %s: %w", src, err))
	}
	if err := gz.Close(); err != nil {
		return fail(fmt.Errorf("finish gzip stream: %w", err))
	}
	if err := out.Sync(); err != nil {
		return fail(fmt.Errorf("sync %s: %w", partial, err))
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return res, fmt.Errorf("close %s: %w", partial, err)
	}

	if err := os.Rename(partial, dst); err != nil {
		os.Remove(partial)
		return res, fmt.Errorf("finalise %s: %w", dst, err)
	}

	res.Size = counter.n
	res.Checksum = hex.EncodeToString(hash.Sum(nil))
	return res, nil
}

// Decompress gunzips src to dst. An existing dst is refused unless force
// is set. A failed decompression removes the partial destination.
func Decompress(src, dst string, force bool) error {
	if !force {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, dst)
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("read gzip %s: %w", src, err)
	}
	defer gz.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, gz); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("decompress %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

// Checksum computes the hex BLAKE2b-256 digest of an existing file.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hash, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("init checksum: %w", err)
	}
	if _, err := io.Copy(hash, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
