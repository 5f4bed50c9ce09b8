package mockfs

import (
	"io"
	"io/fs"
	"sync"
)

// MockFile wraps an fs.File so that reads and writes go through an EventBus.
// Stat and Close are not intercepted.
type MockFile struct {
	file         fs.File                   // The underlying fs.File.
	name         string                    // Cleaned name used to open this file (relative to its MockFS).
	mu           sync.Mutex                // Protects closed flag and serializes access to underlying file; not held during callbacks.
	closed       bool                      // Tracks if the file has been closed.
	writeHandler func([]byte) (int, error) // Write handler if configured.
	bus          *EventBus                 // Operation events; nil raises none.
	counters     *Counters                 // Optional call counters.
	origin       any                       // MockFS that opened the file, if any.
}

// Ensure interface implementations.
var (
	_ fs.File        = (*MockFile)(nil)
	_ fs.ReadDirFile = (*MockFile)(nil)
	_ io.Writer      = (*MockFile)(nil)
)

// NewMockFile constructs a MockFile.
//
// Parameters:
//   - underlyingFile: the fs.File returned by the underlying fs implementation.
//   - name: cleaned path reported in events.
//   - bus: bus to publish OpRead and OpWrite events to (may be nil).
//   - counters: counters to increment (may be nil).
//   - writeHandler: optional write handler; if nil and underlyingFile implements io.Writer,
//     that implementation is used.
func NewMockFile(
	underlyingFile fs.File,
	name string,
	bus *EventBus,
	counters *Counters,
	writeHandler func([]byte) (int, error),
) *MockFile {
	f := &MockFile{
		file:     underlyingFile,
		name:     name,
		bus:      bus,
		counters: counters,
	}

	if writeHandler != nil {
		f.writeHandler = writeHandler
	} else if wf, ok := underlyingFile.(io.Writer); ok {
		f.writeHandler = wf.Write
	}

	return f
}

// Name returns the cleaned path the file was opened with.
func (f *MockFile) Name() string {
	return f.name
}

// readResult carries a partial read through the bus. Reaching the end of the
// file completes a read, so io.EOF travels here instead of as a work error.
type readResult struct {
	n   int
	eof bool
}

// Read implements io.Reader for MockFile, raising OpRead events.
func (f *MockFile) Read(b []byte) (int, error) {
	if f.isClosed() {
		return 0, fs.ErrClosed
	}

	f.inc(OpRead)

	res, err := withEventsValue(f.bus, f.origin, f.name, OpRead, ResourceFile, func() (readResult, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.closed {
			return readResult{}, fs.ErrClosed
		}
		n, err := f.file.Read(b)
		if err == io.EOF {
			return readResult{n: n, eof: true}, nil
		}
		return readResult{n: n}, err
	})
	if err != nil {
		return res.n, err
	}
	if f.counters != nil {
		f.counters.addRead(res.n)
	}
	if res.eof {
		return res.n, io.EOF
	}

	return res.n, nil
}

// Write implements io.Writer for MockFile, raising OpWrite events.
func (f *MockFile) Write(b []byte) (int, error) {
	if f.isClosed() {
		return 0, fs.ErrClosed
	}

	f.inc(OpWrite)

	if f.writeHandler == nil {
		return 0, &fs.PathError{Op: "write", Path: f.name, Err: fs.ErrInvalid}
	}

	n, err := withEventsValue(f.bus, f.origin, f.name, OpWrite, ResourceFile, func() (int, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.closed {
			return 0, fs.ErrClosed
		}
		return f.writeHandler(b)
	})
	if err == nil && f.counters != nil {
		f.counters.addWritten(n)
	}

	return n, err
}

// ReadDir implements fs.ReadDirFile, raising OpRead events for a directory.
func (f *MockFile) ReadDir(n int) ([]fs.DirEntry, error) {
	if f.isClosed() {
		return nil, fs.ErrClosed
	}

	dir, ok := f.file.(fs.ReadDirFile)
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: f.name, Err: ErrNotDir}
	}

	f.inc(OpRead)

	return withEventsValue(f.bus, f.origin, f.name, OpRead, ResourceDirectory, func() ([]fs.DirEntry, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.closed {
			return nil, fs.ErrClosed
		}
		return dir.ReadDir(n)
	})
}

// Stat implements fs.File.Stat.
func (f *MockFile) Stat() (fs.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fs.ErrClosed
	}

	return f.file.Stat()
}

// Close implements io.Closer for MockFile.
// Closing an already closed file returns fs.ErrClosed.
func (f *MockFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fs.ErrClosed
	}

	f.closed = true

	return f.file.Close()
}

// isClosed reports whether Close has been called. Callbacks run without f.mu
// held, so they may use the handle themselves.
func (f *MockFile) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

func (f *MockFile) inc(op Operation) {
	if f.counters != nil {
		f.counters.inc(op)
	}
}
