// Package fsutil holds the file copy and hashing helpers shared by the walker,
// the transformers and the publisher.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// CopyFile copies src to dst, preserving the source permission bits.
// It returns the number of bytes written.
func CopyFile(src, dst string) (int64, error) {
	srcFile, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return 0, err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(dstFile, srcFile)
	if err != nil {
		_ = dstFile.Close()
		return n, err
	}
	if err := dstFile.Close(); err != nil {
		return n, err
	}
	return n, os.Chmod(dst, srcInfo.Mode().Perm())
}

// HashFile returns the xxhash64 digest of a file's bytes.
func HashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// FormatHash renders a digest the way manifests record it.
func FormatHash(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

// SameContent reports whether dst exists and holds the same bytes as src.
// Sizes are compared before hashing.
func SameContent(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !dstInfo.Mode().IsRegular() || srcInfo.Size() != dstInfo.Size() {
		return false, nil
	}
	a, err := HashFile(src)
	if err != nil {
		return false, err
	}
	b, err := HashFile(dst)
	if err != nil {
		return false, err
	}
	return a == b, nil
}

// WalkFiles calls fn for every regular file below root with its slash-separated relative path.
func WalkFiles(root string, fn func(rel, abs string, info os.FileInfo) error) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), path, info)
	})
}
