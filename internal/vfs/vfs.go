// Package vfs provides the read-only file system abstraction the registry
// builder and module loaders consume.
//
// The FS interface allows swapping the underlying implementation: OSFS for
// the real handler tree and MemFS for tests.
package vfs

import (
	"io/fs"
	"time"
)

// FS is a read-only virtual file system.
type FS interface {
	// ReadFile reads the entire file content.
	ReadFile(path string) ([]byte, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// ReadDir reads a directory and returns its entries sorted by name.
	// A missing directory yields an error wrapping fs.ErrNotExist.
	ReadDir(path string) ([]FileInfo, error)

	// EvalSymlinks returns the path with all symbolic links resolved.
	EvalSymlinks(path string) (string, error)

	// Abs returns the absolute path.
	Abs(path string) (string, error)

	// Join joins path elements.
	Join(elem ...string) string

	// Base returns the last element of a path.
	Base(path string) string

	// Ext returns the file extension.
	Ext(path string) string
}

// FileInfo describes a file or directory.
type FileInfo struct {
	path    string
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

// NewFileInfo creates a FileInfo from the given parameters.
func NewFileInfo(path, name string, size int64, mode fs.FileMode, modTime time.Time, isDir bool) FileInfo {
	return FileInfo{
		path:    path,
		name:    name,
		size:    size,
		mode:    mode,
		modTime: modTime,
		isDir:   isDir,
	}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Name returns the base name.
func (fi FileInfo) Name() string { return fi.name }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode.
func (fi FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.isDir }

// IsSymlink returns true if this is a symbolic link.
func (fi FileInfo) IsSymlink() bool { return fi.mode&fs.ModeSymlink != 0 }
