// Package storage keeps generated report files on disk and signs download links for them.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrOutsideRoot is returned for paths that escape the storage directory.
var ErrOutsideRoot = errors.New("path escapes storage root")

// Disk stores files below a root directory. Paths are always relative to root.
type Disk struct {
	root string
}

func NewDisk(root string) (*Disk, error) {
	if root == "" {
		root = "./storage/reports"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Disk{root: abs}, nil
}

func (d *Disk) Root() string {
	return d.root
}

// Write stores data at rel, creating parent directories.
func (d *Disk) Write(rel string, data []byte) error {
	path, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare %s: %w", rel, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// Open returns the file at rel for reading.
func (d *Disk) Open(rel string) (*os.File, error) {
	path, err := d.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes rel; a missing file is not an error.
func (d *Disk) Remove(rel string) error {
	path, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", rel, err)
	}
	return nil
}

// Sweep deletes regular files last modified before now-age and returns their relative paths.
func (d *Disk) Sweep(age time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-age)
	var removed []string
	err := filepath.WalkDir(d.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, _ := filepath.Rel(d.root, path)
		removed = append(removed, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("sweep storage: %w", err)
	}
	return removed, nil
}

func (d *Disk) resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", ErrOutsideRoot
	}
	path := filepath.Join(d.root, filepath.FromSlash(rel))
	if path != d.root && !strings.HasPrefix(path, d.root+string(os.PathSeparator)) {
		return "", ErrOutsideRoot
	}
	return path, nil
}
