package mockfs

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// InterceptFs is an afero.Fs decorator that runs every operation of the
// source filesystem through an EventBus. It lets the same subscribers that
// observe a MockFS observe code written against afero.
type InterceptFs struct {
	source afero.Fs
	bus    *EventBus
}

// Ensure interface implementations.
var (
	_ afero.Fs   = (*InterceptFs)(nil)
	_ afero.File = (*InterceptFile)(nil)
)

// NewInterceptFs wraps source. A nil bus gets a new, disabled one.
func NewInterceptFs(source afero.Fs, bus *EventBus) *InterceptFs {
	if bus == nil {
		bus = NewEventBus()
	}

	return &InterceptFs{source: source, bus: bus}
}

// EventBus returns the bus the filesystem publishes to.
func (i *InterceptFs) EventBus() *EventBus {
	return i.bus
}

// Name implements afero.Fs.
func (i *InterceptFs) Name() string {
	return "InterceptFs(" + i.source.Name() + ")"
}

// Create implements afero.Fs, raising OpCreate events.
func (i *InterceptFs) Create(name string) (afero.File, error) {
	cleanName := filepath.Clean(name)

	return WithEventsValue(i.bus, cleanName, OpCreate, ResourceFile, func() (afero.File, error) {
		f, err := i.source.Create(name)
		if err != nil {
			return nil, err
		}
		return i.wrap(f, cleanName), nil
	})
}

// Mkdir implements afero.Fs, raising OpCreate events for a directory.
func (i *InterceptFs) Mkdir(name string, perm os.FileMode) error {
	return i.bus.WithEvents(filepath.Clean(name), OpCreate, ResourceDirectory, func() error {
		return i.source.Mkdir(name, perm)
	})
}

// MkdirAll implements afero.Fs, raising OpCreate events for a directory.
func (i *InterceptFs) MkdirAll(path string, perm os.FileMode) error {
	return i.bus.WithEvents(filepath.Clean(path), OpCreate, ResourceDirectory, func() error {
		return i.source.MkdirAll(path, perm)
	})
}

// Open implements afero.Fs, raising OpOpen events.
func (i *InterceptFs) Open(name string) (afero.File, error) {
	cleanName := filepath.Clean(name)

	return WithEventsValue(i.bus, cleanName, OpOpen, i.resourceOf(name), func() (afero.File, error) {
		f, err := i.source.Open(name)
		if err != nil {
			return nil, err
		}
		return i.wrap(f, cleanName), nil
	})
}

// OpenFile implements afero.Fs. Opening a missing file with os.O_CREATE
// raises OpCreate events, any other call raises OpOpen events.
func (i *InterceptFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	cleanName := filepath.Clean(name)

	op := OpOpen
	if flag&os.O_CREATE != 0 {
		if _, err := i.source.Stat(name); os.IsNotExist(err) {
			op = OpCreate
		}
	}

	return WithEventsValue(i.bus, cleanName, op, i.resourceOf(name), func() (afero.File, error) {
		f, err := i.source.OpenFile(name, flag, perm)
		if err != nil {
			return nil, err
		}
		return i.wrap(f, cleanName), nil
	})
}

// Remove implements afero.Fs, raising OpDelete events.
func (i *InterceptFs) Remove(name string) error {
	return i.bus.WithEvents(filepath.Clean(name), OpDelete, i.resourceOf(name), func() error {
		return i.source.Remove(name)
	})
}

// RemoveAll implements afero.Fs, raising OpDelete events.
func (i *InterceptFs) RemoveAll(path string) error {
	return i.bus.WithEvents(filepath.Clean(path), OpDelete, i.resourceOf(path), func() error {
		return i.source.RemoveAll(path)
	})
}

// Rename implements afero.Fs, raising OpMove events for oldname.
func (i *InterceptFs) Rename(oldname, newname string) error {
	return i.bus.WithEvents(filepath.Clean(oldname), OpMove, i.resourceOf(oldname), func() error {
		return i.source.Rename(oldname, newname)
	})
}

// Stat implements afero.Fs. It is not intercepted.
func (i *InterceptFs) Stat(name string) (os.FileInfo, error) {
	return i.source.Stat(name)
}

// Chmod implements afero.Fs, raising OpSetPermissions events.
func (i *InterceptFs) Chmod(name string, mode os.FileMode) error {
	return i.bus.WithEvents(filepath.Clean(name), OpSetPermissions, i.resourceOf(name), func() error {
		return i.source.Chmod(name, mode)
	})
}

// Chown implements afero.Fs, raising OpSetAttributes events.
func (i *InterceptFs) Chown(name string, uid, gid int) error {
	return i.bus.WithEvents(filepath.Clean(name), OpSetAttributes, i.resourceOf(name), func() error {
		return i.source.Chown(name, uid, gid)
	})
}

// Chtimes implements afero.Fs, raising OpSetTimes events.
func (i *InterceptFs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return i.bus.WithEvents(filepath.Clean(name), OpSetTimes, i.resourceOf(name), func() error {
		return i.source.Chtimes(name, atime, mtime)
	})
}

// Copy copies the file src to dst as a single OpCopy occurrence for src.
// The copy keeps the permission bits of src.
func (i *InterceptFs) Copy(src, dst string) error {
	return i.bus.WithEvents(filepath.Clean(src), OpCopy, ResourceFile, func() error {
		info, err := i.source.Stat(src)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return &os.PathError{Op: "copy", Path: src, Err: ErrIsDir}
		}

		data, err := afero.ReadFile(i.source, src)
		if err != nil {
			return err
		}

		return afero.WriteFile(i.source, dst, data, info.Mode().Perm())
	})
}

// resourceOf stats name when events are enabled. Missing entries count as files.
func (i *InterceptFs) resourceOf(name string) ResourceKind {
	if !i.bus.Enabled() {
		return ResourceFile
	}
	if info, err := i.source.Stat(name); err == nil && info.IsDir() {
		return ResourceDirectory
	}

	return ResourceFile
}

func (i *InterceptFs) wrap(f afero.File, cleanName string) afero.File {
	return &InterceptFile{File: f, name: cleanName, bus: i.bus}
}

// InterceptFile is an afero.File whose reads and writes raise events.
// Methods not overridden here pass straight through.
type InterceptFile struct {
	afero.File
	name string
	bus  *EventBus
}

// Read raises OpRead events.
func (f *InterceptFile) Read(p []byte) (int, error) {
	return f.read(func() (int, error) { return f.File.Read(p) })
}

// ReadAt raises OpRead events.
func (f *InterceptFile) ReadAt(p []byte, off int64) (int, error) {
	return f.read(func() (int, error) { return f.File.ReadAt(p, off) })
}

// Readdir raises OpRead events for a directory.
func (f *InterceptFile) Readdir(count int) ([]os.FileInfo, error) {
	return WithEventsValue(f.bus, f.name, OpRead, ResourceDirectory, func() ([]os.FileInfo, error) {
		return f.File.Readdir(count)
	})
}

// Readdirnames raises OpRead events for a directory.
func (f *InterceptFile) Readdirnames(n int) ([]string, error) {
	return WithEventsValue(f.bus, f.name, OpRead, ResourceDirectory, func() ([]string, error) {
		return f.File.Readdirnames(n)
	})
}

// Write raises OpWrite events.
func (f *InterceptFile) Write(p []byte) (int, error) {
	return WithEventsValue(f.bus, f.name, OpWrite, ResourceFile, func() (int, error) {
		return f.File.Write(p)
	})
}

// WriteAt raises OpWrite events.
func (f *InterceptFile) WriteAt(p []byte, off int64) (int, error) {
	return WithEventsValue(f.bus, f.name, OpWrite, ResourceFile, func() (int, error) {
		return f.File.WriteAt(p, off)
	})
}

// WriteString raises OpWrite events.
func (f *InterceptFile) WriteString(s string) (int, error) {
	return WithEventsValue(f.bus, f.name, OpWrite, ResourceFile, func() (int, error) {
		return f.File.WriteString(s)
	})
}

// Truncate raises OpWrite events.
func (f *InterceptFile) Truncate(size int64) error {
	return f.bus.WithEvents(f.name, OpWrite, ResourceFile, func() error {
		return f.File.Truncate(size)
	})
}

// read runs a read through the bus, treating io.EOF as a completed read.
func (f *InterceptFile) read(fn func() (int, error)) (int, error) {
	res, err := WithEventsValue(f.bus, f.name, OpRead, ResourceFile, func() (readResult, error) {
		n, err := fn()
		if err == io.EOF {
			return readResult{n: n, eof: true}, nil
		}
		return readResult{n: n}, err
	})
	if err != nil {
		return res.n, err
	}
	if res.eof {
		return res.n, io.EOF
	}

	return res.n, nil
}
