package mockfs

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing/fstest"
	"time"
)

// A MapFile describes a single file in a MapFS.
// See [testing/fstest.MapFile].
type MapFile = fstest.MapFile

// Owner is stored in MapFile.Sys by Chown and returned by FileInfo.Sys.
type Owner struct {
	UID int
	GID int
}

// WritableFS is an extension of fs.FS that supports write operations.
// It mirrors the mutating side of the [os] standard package.
type WritableFS interface {
	fs.FS

	// Mkdir creates a directory in the filesystem.
	Mkdir(path string, perm fs.FileMode) error

	// MkdirAll creates a directory path and all parents if needed.
	MkdirAll(path string, perm fs.FileMode) error

	// Remove removes a file or an empty directory from the filesystem.
	Remove(path string) error

	// RemoveAll removes a path and any children recursively.
	RemoveAll(path string) error

	// Rename renames a file or directory in the filesystem.
	// If the destination already exists, it will be overwritten.
	Rename(oldpath, newpath string) error

	// WriteFile writes data to a file in the filesystem.
	WriteFile(path string, data []byte, perm fs.FileMode) error
}

// MockFS is an in-memory filesystem whose operations run through an EventBus.
//
// Create, Open, Read, Write, Delete, Move, Copy and the Ch* metadata
// operations each raise a Before event, perform the change only if no
// subscriber vetoed it, and raise an After event on success. Stat and
// Close are not intercepted.
type MockFS struct {
	fsys         fstest.MapFS                         // Internal MapFS.
	mu           sync.RWMutex                         // Mutex for concurrent file structure operations.
	bus          *EventBus                            // Operation events.
	injector     ErrorInjector                        // Error injector, subscribed to bus.
	latency      LatencySimulator                     // Simulated latency, subscribed to bus if set.
	counters     *Counters                            // Call counts.
	allowWrites  bool                                 // Flag to enable simulated writes.
	writeHandler func(path string, data []byte) error // Callback for write operations.
	eventsOptIn  bool                                 // WithOperationEvents was given.
}

// Ensure interface implementations.
var (
	_ fs.FS         = (*MockFS)(nil)
	_ fs.ReadDirFS  = (*MockFS)(nil)
	_ fs.ReadFileFS = (*MockFS)(nil)
	_ fs.StatFS     = (*MockFS)(nil)
	_ WritableFS    = (*MockFS)(nil)
)

// Option is a function type for configuring MockFS.
type Option func(*MockFS)

// WithEventBus makes MockFS publish to bus instead of a private one.
// Several filesystems may share a bus. Subscribers added through the bus see
// every filesystem's events; injected errors, latency and CancelOp stay with
// the filesystem they were configured on.
func WithEventBus(bus *EventBus) Option {
	return func(m *MockFS) {
		if bus != nil {
			m.bus = bus
		}
	}
}

// WithOperationEvents enables the event bus at construction.
func WithOperationEvents() Option {
	return func(m *MockFS) {
		m.eventsOptIn = true
	}
}

// WithInjector sets the error injector for the MockFS.
func WithInjector(i ErrorInjector) Option {
	return func(m *MockFS) {
		if i != nil {
			m.injector = i
		}
	}
}

// WithWritesEnabled allows write operations, simulating them by modifying the internal MapFS.
// If handler is nil, a default handler that updates the internal map is used.
func WithWritesEnabled(handler func(path string, data []byte) error) Option {
	return func(m *MockFS) {
		m.allowWrites = true

		if handler == nil {
			m.writeHandler = m.defaultWriteHandler
		} else {
			m.writeHandler = handler
		}
	}
}

// WithLatency delays every intercepted operation by d. It enables the event bus.
func WithLatency(d time.Duration) Option {
	return func(m *MockFS) {
		m.latency = NewLatencySimulator(d)
	}
}

// WithPerOperationLatency delays each listed operation by its duration.
// It enables the event bus.
func WithPerOperationLatency(durations map[Operation]time.Duration) Option {
	return func(m *MockFS) {
		m.latency = NewLatencySimulatorPerOp(durations)
	}
}

// NewMockFS creates a new MockFS with the given MapFS data and options.
func NewMockFS(initial map[string]*MapFile, opts ...Option) *MockFS {
	mapFS := make(fstest.MapFS)

	// Create a copy of the input map to avoid external modifications
	for path, file := range initial {
		cleanPath := filepath.Clean(path)
		if file != nil {
			newFile := *file
			newFile.Data = append([]byte(nil), file.Data...)
			mapFS[cleanPath] = &newFile
		} else {
			mapFS[cleanPath] = nil
		}
	}

	m := &MockFS{
		fsys:     mapFS,
		injector: NewErrorInjector(),
		counters: NewCounters(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.bus == nil {
		m.bus = NewEventBus()
	}

	// The injector subscribes first so that explicit faults win over
	// subscribers added later. Subscribing cannot fail for a non-nil callback.
	_, _ = m.bus.Subscribe(m.ownEvents(InjectorCallback(m.injector)))
	if m.latency != nil {
		_, _ = m.bus.Subscribe(m.ownEvents(LatencyCallback(m.latency)))
		m.eventsOptIn = true
	}
	if m.eventsOptIn {
		m.bus.Enable()
	}

	return m
}

// ownEvents restricts cb to events raised by m and its open files, so that
// filesystems sharing a bus keep their injected errors and latency apart.
func (m *MockFS) ownEvents(cb Callback) Callback {
	return func(ev Event) error {
		if ev.origin != m {
			return nil
		}
		return cb(ev)
	}
}

// EventBus returns the bus MockFS publishes to.
func (m *MockFS) EventBus() *EventBus {
	return m.bus
}

// EnableEvents switches on the event bus.
func (m *MockFS) EnableEvents() {
	m.bus.Enable()
}

// Subscribe enables events and registers cb for every operation.
func (m *MockFS) Subscribe(cb Callback) (*Subscription, error) {
	m.bus.Enable()
	return m.bus.Subscribe(cb)
}

// SubscribeOp enables events and registers cb for op.
func (m *MockFS) SubscribeOp(op Operation, cb Callback) (*Subscription, error) {
	m.bus.Enable()
	return m.bus.SubscribeOp(op, cb)
}

// SubscribeOps enables events and registers cb for ops.
func (m *MockFS) SubscribeOps(ops []Operation, cb Callback) (*Subscription, error) {
	m.bus.Enable()
	return m.bus.SubscribeOps(ops, cb)
}

// ErrorInjector returns the error injector for advanced configuration.
// Injected errors are delivered through the event bus, so this enables it.
func (m *MockFS) ErrorInjector() ErrorInjector {
	m.bus.Enable()
	return m.injector
}

// Counters returns a copy of the current call counts.
func (m *MockFS) Counters() *Counters {
	return m.counters.Clone()
}

// ResetCounters resets all call counts to zero.
func (m *MockFS) ResetCounters() {
	m.counters.ResetAll()
}

// Stat returns file info for name. It is not intercepted.
// It implements the fs.StatFS interface.
func (m *MockFS) Stat(name string) (fs.FileInfo, error) {
	cleanName := filepath.Clean(name)

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.fsys.Stat(cleanName)
}

// Open opens name for reading, raising OpOpen events.
// It implements the fs.FS interface.
func (m *MockFS) Open(name string) (fs.File, error) {
	cleanName := filepath.Clean(name)

	m.counters.inc(OpOpen)

	f, err := withEventsValue(m.bus, m, cleanName, OpOpen, m.resourceOf(cleanName), func() (*MockFile, error) {
		return m.openFile(cleanName)
	})
	if err != nil {
		return nil, err
	}

	return f, nil
}

// Create creates or truncates the named file, raising OpCreate events, and
// returns it open. Writes to the returned file need WithWritesEnabled.
func (m *MockFS) Create(name string) (*MockFile, error) {
	cleanName := filepath.Clean(name)

	m.counters.inc(OpCreate)

	return withEventsValue(m.bus, m, cleanName, OpCreate, ResourceFile, func() (*MockFile, error) {
		if err := m.createFile(name, cleanName); err != nil {
			return nil, err
		}
		return m.openFile(cleanName)
	})
}

// ReadFile reads the named file as one OpRead occurrence.
// It implements the fs.ReadFileFS interface.
func (m *MockFS) ReadFile(name string) ([]byte, error) {
	cleanName := filepath.Clean(name)

	m.counters.inc(OpRead)

	data, err := withEventsValue(m.bus, m, cleanName, OpRead, ResourceFile, func() ([]byte, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		return m.fsys.ReadFile(cleanName)
	})
	if err != nil {
		return nil, err
	}
	m.counters.addRead(len(data))

	return data, nil
}

// ReadDir lists the named directory as an OpRead occurrence on a directory.
// It implements the fs.ReadDirFS interface.
func (m *MockFS) ReadDir(name string) ([]fs.DirEntry, error) {
	cleanName := filepath.Clean(name)

	m.counters.inc(OpRead)

	return withEventsValue(m.bus, m, cleanName, OpRead, ResourceDirectory, func() ([]fs.DirEntry, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		return m.fsys.ReadDir(cleanName)
	})
}

// --- File/Directory Management ---
// These helpers prepare fixtures. They mutate the tree directly and raise no events.

// AddFileString adds a text file to the mock filesystem. Overwrites if exists.
func (m *MockFS) AddFileString(path string, content string, mode fs.FileMode) {
	m.AddFileBytes(path, []byte(content), mode)
}

// AddFileBytes adds a binary file to the mock filesystem. Overwrites if exists.
func (m *MockFS) AddFileBytes(path string, content []byte, mode fs.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleanPath := filepath.Clean(path)
	if !fs.ValidPath(cleanPath) || cleanPath == "." {
		return
	}
	m.fsys[cleanPath] = &fstest.MapFile{
		Data:    append([]byte(nil), content...),
		Mode:    mode &^ fs.ModeDir,
		ModTime: time.Now(),
	}
}

// AddDirectory adds a directory to the mock filesystem. Overwrites if exists.
func (m *MockFS) AddDirectory(path string, mode fs.FileMode) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleanPath := filepath.Clean(path)
	if !fs.ValidPath(cleanPath) || cleanPath == "." {
		return
	}
	m.fsys[cleanPath] = &fstest.MapFile{
		Mode:    (mode & fs.ModePerm) | fs.ModeDir,
		ModTime: time.Now(),
	}
}

// RemovePath removes a file or directory from the mock filesystem.
// Note: This does not recursively remove directory contents.
func (m *MockFS) RemovePath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.fsys, filepath.Clean(path))
}

// --- Error Injection Configuration (Convenience Methods) ---

// FailCreate makes every Create of path fail with err.
func (m *MockFS) FailCreate(path string, err error) {
	m.ErrorInjector().AddExact(OpCreate, filepath.Clean(path), err, ErrorModeAlways, 0)
}

// FailOpen makes every Open of path fail with err.
func (m *MockFS) FailOpen(path string, err error) {
	m.ErrorInjector().AddExact(OpOpen, filepath.Clean(path), err, ErrorModeAlways, 0)
}

// FailOpenOnce makes the next Open of path fail with err.
func (m *MockFS) FailOpenOnce(path string, err error) {
	m.ErrorInjector().AddExact(OpOpen, filepath.Clean(path), err, ErrorModeOnce, 0)
}

// FailRead makes every read of path fail with err.
func (m *MockFS) FailRead(path string, err error) {
	m.ErrorInjector().AddExact(OpRead, filepath.Clean(path), err, ErrorModeAlways, 0)
}

// FailReadAfter lets successes reads of path through, then fails with err.
func (m *MockFS) FailReadAfter(path string, err error, successes int) {
	m.ErrorInjector().AddExact(OpRead, filepath.Clean(path), err, ErrorModeAfterSuccesses, successes)
}

// FailWrite makes every write to path fail with err.
func (m *MockFS) FailWrite(path string, err error) {
	m.ErrorInjector().AddExact(OpWrite, filepath.Clean(path), err, ErrorModeAlways, 0)
}

// FailDelete makes every Remove or RemoveAll of path fail with err.
func (m *MockFS) FailDelete(path string, err error) {
	m.ErrorInjector().AddExact(OpDelete, filepath.Clean(path), err, ErrorModeAlways, 0)
}

// CancelOp cancels every op on path until the returned subscription is released.
func (m *MockFS) CancelOp(op Operation, path string) (*Subscription, error) {
	cleanPath := filepath.Clean(path)

	return m.SubscribeOp(op, m.ownEvents(func(ev Event) error {
		if ev.Phase != PhaseBefore || ev.Path != cleanPath {
			return nil
		}
		if _, responded := ev.Response(); responded {
			return nil
		}
		return ev.Cancel()
	}))
}

// MarkNonExistent removes the given paths and injects ErrNotExist for all operations on them.
func (m *MockFS) MarkNonExistent(paths ...string) {
	for _, path := range paths {
		cleanPath := filepath.Clean(path)
		m.RemovePath(cleanPath)
		m.ErrorInjector().AddExactForAllOps(cleanPath, ErrNotExist, ErrorModeAlways, 0)
	}
}

// ClearErrors removes all configured errors for all operations.
func (m *MockFS) ClearErrors() {
	m.injector.Clear()
}

// --- WritableFS Implementation ---

// Mkdir creates a directory, raising OpCreate events for a directory.
func (m *MockFS) Mkdir(path string, perm fs.FileMode) error {
	cleanPath := filepath.Clean(path)

	m.counters.inc(OpCreate)

	return m.bus.withEvents(m, cleanPath, OpCreate, ResourceDirectory, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		if _, exists := m.fsys[cleanPath]; exists {
			return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
		}
		if err := m.checkParentLocked("mkdir", path, cleanPath); err != nil {
			return err
		}

		m.fsys[cleanPath] = &fstest.MapFile{
			Mode:    (perm & fs.ModePerm) | fs.ModeDir,
			ModTime: time.Now(),
		}
		return nil
	})
}

// MkdirAll creates a directory path and all parents if needed, as a single
// OpCreate occurrence for the leaf directory.
func (m *MockFS) MkdirAll(path string, perm fs.FileMode) error {
	cleanPath := filepath.Clean(path)

	m.counters.inc(OpCreate)

	return m.bus.withEvents(m, cleanPath, OpCreate, ResourceDirectory, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		if existing, exists := m.fsys[cleanPath]; exists && existing != nil {
			if !existing.Mode.IsDir() {
				return &fs.PathError{Op: "mkdir", Path: path, Err: ErrNotDir}
			}
			return nil
		}

		currentPath := ""
		for _, part := range strings.Split(cleanPath, "/") {
			if part == "" || part == "." {
				continue
			}
			if currentPath == "" {
				currentPath = part
			} else {
				currentPath = currentPath + "/" + part
			}

			existing, exists := m.fsys[currentPath]
			if !exists || existing == nil {
				m.fsys[currentPath] = &fstest.MapFile{
					Mode:    (perm & fs.ModePerm) | fs.ModeDir,
					ModTime: time.Now(),
				}
				continue
			}
			if !existing.Mode.IsDir() {
				return &fs.PathError{Op: "mkdir", Path: path, Err: ErrNotDir}
			}
		}

		return nil
	})
}

// Remove removes a file or an empty directory, raising OpDelete events.
func (m *MockFS) Remove(path string) error {
	cleanPath := filepath.Clean(path)

	m.counters.inc(OpDelete)

	return m.bus.withEvents(m, cleanPath, OpDelete, m.resourceOf(cleanPath), func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		file, exists := m.fsys[cleanPath]
		if !exists && !m.hasChildrenLocked(cleanPath) {
			return &fs.PathError{Op: "remove", Path: path, Err: fs.ErrNotExist}
		}
		if (file == nil || file.Mode.IsDir()) && m.hasChildrenLocked(cleanPath) {
			return &fs.PathError{Op: "remove", Path: path, Err: ErrNotEmpty}
		}

		delete(m.fsys, cleanPath)
		return nil
	})
}

// RemoveAll removes a path and any children recursively, raising OpDelete events.
// Removing a path that does not exist is not an error.
func (m *MockFS) RemoveAll(path string) error {
	cleanPath := filepath.Clean(path)

	m.counters.inc(OpDelete)

	return m.bus.withEvents(m, cleanPath, OpDelete, m.resourceOf(cleanPath), func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		prefix := cleanPath + "/"
		for p := range m.fsys {
			if p == cleanPath || strings.HasPrefix(p, prefix) {
				delete(m.fsys, p)
			}
		}

		return nil
	})
}

// Rename moves oldpath to newpath, raising OpMove events for oldpath.
func (m *MockFS) Rename(oldpath, newpath string) error {
	cleanOld := filepath.Clean(oldpath)
	cleanNew := filepath.Clean(newpath)

	m.counters.inc(OpMove)

	return m.bus.withEvents(m, cleanOld, OpMove, m.resourceOf(cleanOld), func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		oldFile, exists := m.fsys[cleanOld]
		if !exists || oldFile == nil {
			return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
		}
		if cleanOld == cleanNew {
			return nil
		}
		if oldFile.Mode.IsDir() && strings.HasPrefix(cleanNew, cleanOld+"/") {
			return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrInvalid}
		}
		if err := m.checkParentLocked("rename", newpath, cleanNew); err != nil {
			return err
		}

		moved := map[string]*fstest.MapFile{cleanNew: cloneMapFile(oldFile)}
		if oldFile.Mode.IsDir() {
			oldPrefix := cleanOld + "/"
			for p, f := range m.fsys {
				if strings.HasPrefix(p, oldPrefix) {
					if f != nil {
						f = cloneMapFile(f)
					}
					moved[cleanNew+"/"+p[len(oldPrefix):]] = f
					delete(m.fsys, p)
				}
			}
		}

		delete(m.fsys, cleanOld)
		for p, f := range moved {
			m.fsys[p] = f
		}
		return nil
	})
}

// Copy copies the file src to dst, raising OpCopy events for src.
// An existing dst is overwritten. Directories cannot be copied.
func (m *MockFS) Copy(src, dst string) error {
	cleanSrc := filepath.Clean(src)
	cleanDst := filepath.Clean(dst)

	m.counters.inc(OpCopy)

	return m.bus.withEvents(m, cleanSrc, OpCopy, ResourceFile, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		srcFile, exists := m.fsys[cleanSrc]
		if !exists || srcFile == nil {
			if m.hasChildrenLocked(cleanSrc) {
				return &fs.PathError{Op: "copy", Path: src, Err: ErrIsDir}
			}
			return &fs.PathError{Op: "copy", Path: src, Err: fs.ErrNotExist}
		}
		if srcFile.Mode.IsDir() {
			return &fs.PathError{Op: "copy", Path: src, Err: ErrIsDir}
		}
		if existing, ok := m.fsys[cleanDst]; ok && existing != nil && existing.Mode.IsDir() {
			return &fs.PathError{Op: "copy", Path: dst, Err: ErrIsDir}
		}
		if err := m.checkParentLocked("copy", dst, cleanDst); err != nil {
			return err
		}

		copied := cloneMapFile(srcFile)
		copied.ModTime = time.Now()
		m.fsys[cleanDst] = copied

		return nil
	})
}

// WriteFile writes data to a file, raising OpWrite events.
// It requires WithWritesEnabled.
func (m *MockFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	if !m.allowWrites {
		return &fs.PathError{Op: "writefile", Path: path, Err: fs.ErrInvalid}
	}

	cleanPath := filepath.Clean(path)

	m.counters.inc(OpWrite)

	err := m.bus.withEvents(m, cleanPath, OpWrite, ResourceFile, func() error {
		return m.writeHandler(cleanPath, data)
	})
	if err != nil {
		return err
	}
	m.counters.addWritten(len(data))

	return nil
}

// Chmod changes the permission bits of name, raising OpSetPermissions events.
func (m *MockFS) Chmod(name string, mode fs.FileMode) error {
	cleanName := filepath.Clean(name)

	m.counters.inc(OpSetPermissions)

	return m.bus.withEvents(m, cleanName, OpSetPermissions, m.resourceOf(cleanName), func() error {
		return m.updateEntry("chmod", name, cleanName, func(f *fstest.MapFile) {
			f.Mode = (f.Mode &^ fs.ModePerm) | (mode & fs.ModePerm)
		})
	})
}

// Chtimes changes the modification time of name, raising OpSetTimes events.
// MapFile keeps no access time, so atime is ignored.
func (m *MockFS) Chtimes(name string, atime, mtime time.Time) error {
	cleanName := filepath.Clean(name)

	m.counters.inc(OpSetTimes)

	return m.bus.withEvents(m, cleanName, OpSetTimes, m.resourceOf(cleanName), func() error {
		return m.updateEntry("chtimes", name, cleanName, func(f *fstest.MapFile) {
			f.ModTime = mtime
		})
	})
}

// Chown records ownership of name in its Sys field as an *Owner,
// raising OpSetAttributes events.
func (m *MockFS) Chown(name string, uid, gid int) error {
	cleanName := filepath.Clean(name)

	m.counters.inc(OpSetAttributes)

	return m.bus.withEvents(m, cleanName, OpSetAttributes, m.resourceOf(cleanName), func() error {
		return m.updateEntry("chown", name, cleanName, func(f *fstest.MapFile) {
			f.Sys = &Owner{UID: uid, GID: gid}
		})
	})
}

// --- Internal Helpers ---

// resourceOf reports whether name is a directory. Without events enabled the
// answer is never used, so the lookup is skipped.
func (m *MockFS) resourceOf(name string) ResourceKind {
	if !m.bus.Enabled() {
		return ResourceFile
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "." {
		return ResourceDirectory
	}
	if f, ok := m.fsys[name]; ok && f != nil {
		if f.Mode.IsDir() {
			return ResourceDirectory
		}
		return ResourceFile
	}
	if m.hasChildrenLocked(name) {
		return ResourceDirectory
	}

	return ResourceFile
}

// hasChildrenLocked reports whether any entry lives below dir.
// The caller must hold m.mu.
func (m *MockFS) hasChildrenLocked(dir string) bool {
	prefix := dir + "/"
	if dir == "." {
		return len(m.fsys) > 0
	}
	for p := range m.fsys {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}

	return false
}

// checkParentLocked verifies that the parent of cleanPath exists and is a directory.
// The caller must hold m.mu.
func (m *MockFS) checkParentLocked(op, path, cleanPath string) error {
	parent := filepath.Dir(cleanPath)
	if parent == "." {
		return nil
	}

	parentFile, exists := m.fsys[parent]
	if !exists || parentFile == nil {
		if m.hasChildrenLocked(parent) {
			return nil
		}
		return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
	}
	if !parentFile.Mode.IsDir() {
		return &fs.PathError{Op: op, Path: path, Err: ErrNotDir}
	}

	return nil
}

// createFile creates or truncates cleanName.
func (m *MockFS) createFile(name, cleanName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !fs.ValidPath(cleanName) || cleanName == "." {
		return &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
	}
	if existing, ok := m.fsys[cleanName]; ok && existing != nil {
		if existing.Mode.IsDir() {
			return &fs.PathError{Op: "create", Path: name, Err: ErrIsDir}
		}
		truncated := *existing
		truncated.Data = nil
		truncated.ModTime = time.Now()
		m.fsys[cleanName] = &truncated
		return nil
	}
	if m.hasChildrenLocked(cleanName) {
		return &fs.PathError{Op: "create", Path: name, Err: ErrIsDir}
	}
	if err := m.checkParentLocked("create", name, cleanName); err != nil {
		return err
	}

	m.fsys[cleanName] = &fstest.MapFile{
		Mode:    0o644,
		ModTime: time.Now(),
	}

	return nil
}

// openFile opens cleanName in the underlying MapFS and wraps it.
func (m *MockFS) openFile(cleanName string) (*MockFile, error) {
	m.mu.RLock()
	file, err := m.fsys.Open(cleanName)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	var writeHandler func([]byte) (int, error)
	if m.allowWrites && m.writeHandler != nil {
		writeHandler = func(data []byte) (int, error) {
			if err := m.writeHandler(cleanName, data); err != nil {
				return 0, err
			}
			return len(data), nil
		}
	}

	f := NewMockFile(file, cleanName, m.bus, m.counters, writeHandler)
	f.origin = m

	return f, nil
}

// updateEntry replaces the entry for cleanName with a copy modified by fn.
// A directory that only exists implicitly, through its children, gets an
// explicit entry.
func (m *MockFS) updateEntry(op, name, cleanName string, fn func(*fstest.MapFile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var updated fstest.MapFile
	if f, ok := m.fsys[cleanName]; ok && f != nil {
		updated = *f
	} else {
		if !m.hasChildrenLocked(cleanName) {
			return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		}
		updated = fstest.MapFile{Mode: fs.ModeDir | 0o755, ModTime: time.Now()}
	}
	fn(&updated)
	m.fsys[cleanName] = &updated

	return nil
}

// defaultWriteHandler is the default write callback for MockFS.
// It creates new files or overwrites existing ones with the provided data.
// Entries are replaced, never modified, because open handles read them
// without holding m.mu.
func (m *MockFS) defaultWriteHandler(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cleanPath := filepath.Clean(path)

	existing, ok := m.fsys[cleanPath]
	if !ok || existing == nil {
		if m.hasChildrenLocked(cleanPath) {
			return &fs.PathError{Op: "write", Path: path, Err: ErrIsDir}
		}
		m.fsys[cleanPath] = &fstest.MapFile{
			Data:    append([]byte(nil), data...),
			Mode:    0o644,
			ModTime: time.Now(),
		}
		return nil
	}
	if existing.Mode.IsDir() {
		return &fs.PathError{Op: "write", Path: path, Err: ErrIsDir}
	}

	written := *existing
	written.Data = append([]byte(nil), data...)
	written.ModTime = time.Now()
	m.fsys[cleanPath] = &written

	return nil
}

// cloneMapFile returns a deep copy of f.
func cloneMapFile(f *fstest.MapFile) *fstest.MapFile {
	c := *f
	if f.Data != nil {
		c.Data = append([]byte(nil), f.Data...)
	}
	return &c
}
