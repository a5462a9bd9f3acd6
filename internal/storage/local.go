// Package storage manages the on-disk copies of uploaded images. The local copy
// is a cache of the externally hosted image and is never authoritative.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"memeshare/api/internal/media/sniffer"
)

const maxSuffix = 10000

type LocalStore struct {
	uncheckedDir string
	checkedDir   string
}

func NewLocalStore(uncheckedDir, checkedDir string) *LocalStore {
	return &LocalStore{
		uncheckedDir: filepath.Clean(uncheckedDir),
		checkedDir:   filepath.Clean(checkedDir),
	}
}

func (s *LocalStore) EnsureDirs() error {
	for _, dir := range []string{s.uncheckedDir, s.checkedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// Dir returns the area for the given moderation state.
func (s *LocalStore) Dir(checked bool) string {
	if checked {
		return s.checkedDir
	}
	return s.uncheckedDir
}

// Stored names must fit the 255-character file_name and file_path columns
// with room for the directory and a collision suffix.
const (
	maxStemBytes = 150
	maxExtBytes  = 10
)

// SanitizeFileName keeps the base name characters [A-Za-z0-9._-] and caps the
// length. An empty result falls back to <hash><ext>.
func SanitizeFileName(name, hash, contentType string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	clean := strings.TrimLeft(b.String(), ".")
	if clean == "" {
		return hash + sniffer.Extension(contentType)
	}

	ext := filepath.Ext(clean)
	stem := strings.TrimSuffix(clean, ext)
	if ext == "" || len(ext) > maxExtBytes {
		stem, ext = clean, sniffer.Extension(contentType)
	}
	if len(stem) > maxStemBytes {
		stem = stem[:maxStemBytes]
	}
	return stem + ext
}

// SuffixName inserts _n before the extension of name.
func SuffixName(name string, n int) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(n) + ext
}

// UniquePath returns path, or the first free variant with _1, _2, ... before
// the extension.
func UniquePath(path string) (string, error) {
	if !exists(path) {
		return path, nil
	}
	for i := 1; i <= maxSuffix; i++ {
		candidate := SuffixName(path, i)
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s", path)
}

// SaveUnchecked writes data under the unchecked area and returns the path it
// was written to. Existing files are never overwritten.
func (s *LocalStore) SaveUnchecked(name string, data []byte) (string, error) {
	return s.save(s.uncheckedDir, name, data)
}

// Save writes data into the area matching checked.
func (s *LocalStore) Save(checked bool, name string, data []byte) (string, error) {
	return s.save(s.Dir(checked), name, data)
}

func (s *LocalStore) save(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	base := filepath.Join(dir, name)
	for i := 0; i <= maxSuffix; i++ {
		path := base
		if i > 0 {
			path = SuffixName(base, i)
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free name for %s", base)
}

// Relocate moves the file at path into the area matching checked and returns
// the new path. A file already in the right area is left alone.
func (s *LocalStore) Relocate(path string, checked bool) (string, error) {
	if path == "" {
		return "", fmt.Errorf("relocate: %w", fs.ErrNotExist)
	}
	target := s.Dir(checked)
	if filepath.Clean(filepath.Dir(path)) == target {
		return path, nil
	}
	if !exists(path) {
		return "", fmt.Errorf("relocate %s: %w", path, fs.ErrNotExist)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", target, err)
	}

	dest, err := UniquePath(filepath.Join(target, filepath.Base(path)))
	if err != nil {
		return "", err
	}
	// A fresh mtime keeps the sweep off the file until its record points
	// at the new path. Rename preserves it.
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return "", fmt.Errorf("touch %s: %w", path, err)
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move %s: %w", path, err)
	}
	return dest, nil
}

// Remove deletes path. A missing file is not an error.
func (s *LocalStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	if !s.owns(path) {
		return fmt.Errorf("remove %s: outside image storage", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) Read(path string) ([]byte, error) {
	if path == "" || !s.owns(path) {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (s *LocalStore) Exists(path string) bool {
	return path != "" && s.owns(path) && exists(path)
}

// Sweep deletes files older than minAge that no record references. It returns
// the number of files removed.
func (s *LocalStore) Sweep(ctx context.Context, inUse func(ctx context.Context, path string) (bool, error), minAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-minAge)
	removed := 0

	for _, dir := range []string{s.uncheckedDir, s.checkedDir} {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if path != dir {
					return filepath.SkipDir
				}
				return nil
			}
			info, err := d.Info()
			if err != nil || !info.Mode().IsRegular() || info.ModTime().After(cutoff) {
				return nil
			}

			used, err := inUse(ctx, path)
			if err != nil {
				return fmt.Errorf("check %s: %w", path, err)
			}
			if used {
				return nil
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove %s: %w", path, err)
			}
			removed++
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("sweep %s: %w", dir, err)
		}
	}
	return removed, nil
}

func (s *LocalStore) owns(path string) bool {
	dir := filepath.Clean(filepath.Dir(path))
	return dir == s.uncheckedDir || dir == s.checkedDir
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
