package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FS implements Provider on a local directory.
type FS struct {
	root string
}

// NewFS returns a provider rooted at root, which must be an existing
// directory.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	switch {
	case err != nil:
		return nil, fmt.Errorf("storage: stat root: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute directory path.
func (f *FS) Root() string { return f.root }

// abs maps a relative document path into the root. Absolute paths and
// paths climbing out of the root are rejected.
func (f *FS) abs(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	rel = filepath.FromSlash(rel)
	if filepath.IsAbs(rel) || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("storage: path outside seed directory: %s", rel)
	}
	return filepath.Join(f.root, rel), nil
}

// List walks dir for event documents. Hidden files, including in-flight
// temp files, are skipped.
func (f *FS) List(dir string) ([]FileMeta, error) {
	base, err := f.abs(dir)
	if err != nil {
		return nil, err
	}
	var out []FileMeta
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		switch {
		case walkErr != nil:
			return walkErr
		case d.IsDir():
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		case !IsEventDocument(d.Name()):
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		out = append(out, FileMeta{Path: filepath.ToSlash(rel), Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read returns the raw bytes of a document.
func (f *FS) Read(path string) ([]byte, error) {
	p, err := f.abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write replaces path through a synced temp file and a rename.
func (f *FS) Write(path string, content []byte) error {
	return f.put(path, content, os.Rename)
}

// Create publishes path only if nothing is there yet. The hard link fails
// atomically when the target exists.
func (f *FS) Create(path string, content []byte) error {
	err := f.put(path, content, os.Link)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}
	return err
}

func (f *FS) put(path string, content []byte, publish func(tmp, dst string) error) error {
	dst, err := f.abs(path)
	if err != nil {
		return err
	}
	if !IsEventDocument(filepath.Base(dst)) {
		return fmt.Errorf("storage: not an event document: %s", path)
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".agenda-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	// After a rename the temp name is gone; after a link it must go.
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := publish(tmp.Name(), dst); err != nil {
		return fmt.Errorf("storage: publish %s: %w", path, err)
	}
	return nil
}
