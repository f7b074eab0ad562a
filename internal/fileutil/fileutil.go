package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams r into path via a temp file in the same directory and a
// final rename, so readers never observe a partial file. It returns the byte
// count and the hex SHA256 of what was written.
func WriteAtomic(path string, r io.Reader, mode os.FileMode) (int64, string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", fmt.Errorf("ensure directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return 0, "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return 0, "", fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, "", fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return written, hex.EncodeToString(hasher.Sum(nil)), nil
}

// WriteFileAtomic is WriteAtomic for an in-memory payload.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	_, _, err := WriteAtomic(path, bytes.NewReader(data), mode)
	return err
}

// CopyFileAtomic copies src to dst atomically and verifies the size against
// the source. dst is left untouched on failure.
func CopyFileAtomic(src, dst string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	written, sum, err := WriteAtomic(dst, in, 0o644)
	if err != nil {
		return "", err
	}
	if written != info.Size() {
		_ = os.Remove(dst)
		return "", fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written)
	}
	return sum, nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
