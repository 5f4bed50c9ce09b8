package mockfs

import (
	"io/fs"
	"path"
	"path/filepath"
)

// subFS is a live view of a MockFS subtree. Every call is performed by the
// parent under the full path, so events, injected errors and counters are
// the parent's.
type subFS struct {
	parent *MockFS
	dir    string
}

// Ensure interface implementations.
var (
	_ fs.SubFS      = (*MockFS)(nil)
	_ fs.ReadDirFS  = (*subFS)(nil)
	_ fs.ReadFileFS = (*subFS)(nil)
	_ fs.StatFS     = (*subFS)(nil)
	_ fs.SubFS      = (*subFS)(nil)
)

// Sub returns a view of the subtree rooted at dir. Unlike a copy, the view
// tracks later changes to m, and operations through it raise events on m's
// bus with paths relative to m's root.
// It implements the fs.SubFS interface.
func (m *MockFS) Sub(dir string) (fs.FS, error) {
	cleanDir, err := m.validateSubdir(dir)
	if err != nil {
		return nil, err
	}

	return &subFS{parent: m, dir: cleanDir}, nil
}

// validateSubdir cleans dir and checks that it names an existing directory.
func (m *MockFS) validateSubdir(dir string) (string, error) {
	cleanDir := filepath.Clean(dir)
	if !fs.ValidPath(cleanDir) || cleanDir == "." {
		return "", &fs.PathError{Op: "sub", Path: dir, Err: fs.ErrInvalid}
	}

	info, err := m.Stat(cleanDir)
	if err != nil {
		return "", &fs.PathError{Op: "sub", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return "", &fs.PathError{Op: "sub", Path: dir, Err: ErrNotDir}
	}

	return cleanDir, nil
}

// full maps name inside the view to a path in the parent.
func (s *subFS) full(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}

	return path.Join(s.dir, name), nil
}

func (s *subFS) Open(name string) (fs.File, error) {
	full, err := s.full("open", name)
	if err != nil {
		return nil, err
	}

	return s.parent.Open(full)
}

func (s *subFS) ReadFile(name string) ([]byte, error) {
	full, err := s.full("readfile", name)
	if err != nil {
		return nil, err
	}

	return s.parent.ReadFile(full)
}

func (s *subFS) ReadDir(name string) ([]fs.DirEntry, error) {
	full, err := s.full("readdir", name)
	if err != nil {
		return nil, err
	}

	return s.parent.ReadDir(full)
}

func (s *subFS) Stat(name string) (fs.FileInfo, error) {
	full, err := s.full("stat", name)
	if err != nil {
		return nil, err
	}

	return s.parent.Stat(full)
}

func (s *subFS) Sub(dir string) (fs.FS, error) {
	full, err := s.full("sub", dir)
	if err != nil {
		return nil, err
	}
	if full == s.dir {
		return s, nil
	}

	return s.parent.Sub(full)
}
