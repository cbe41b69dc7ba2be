// Package fsutil provides file helpers that enforce an explicit
// permission policy. Plain os.WriteFile honors the process umask and a
// copy does not inherit its source's mode, so every write and copy here
// chmods the target after the bytes land.
package fsutil

import (
	"fmt"
	"io"
	"os"
)

// EnsureDir creates dir (and parents) if absent. An existing directory
// is success, not an error.
func EnsureDir(dir string, mode os.FileMode) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// WriteFile writes data to path and applies mode explicitly. An
// existing file is replaced even when a previous run left it
// unwritable (e.g. a 0400 private key), keeping re-runs idempotent.
func WriteFile(path string, data []byte, mode os.FileMode) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst and applies mode to dst.
func CopyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replacing %s: %w", dst, err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	if err := os.Chmod(dst, mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", dst, err)
	}
	return nil
}
