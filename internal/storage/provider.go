// Package storage is the seed-directory abstraction: a tree of YAML event
// documents that the directory source reads and the MCP server writes.
package storage

import (
	"errors"
	"strings"
	"time"
)

// ErrExists is returned by Create when the document is already there.
var ErrExists = errors.New("storage: document exists")

// FileMeta describes one event document on disk.
type FileMeta struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for seed-directory file operations. All paths
// are relative to the directory root and use forward slashes.
type Provider interface {
	// List returns every event document under dir, sorted by path.
	List(dir string) ([]FileMeta, error)
	Read(path string) ([]byte, error)
	// Write atomically replaces the document at path.
	Write(path string, content []byte) error
	// Create is Write that fails with ErrExists instead of replacing.
	Create(path string, content []byte) error
}

// IsEventDocument reports whether name is a visible YAML file.
func IsEventDocument(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
