// Package mockfs provides a mock filesystem implementation for testing, built
// on [testing/fstest.MapFS], whose operations can be observed, vetoed, or
// failed by test code through an event bus.
//
// MockFS extends the standard library's mock capabilities with:
//   - Before and After events for create, open, read, write, delete, move,
//     copy, and attribute, time and permission changes.
//   - Configurable error injection for any operation and path.
//   - Simulated latency to test timeout and race condition handling.
//   - Operation counters for verifying filesystem access patterns.
//   - [io/fs] interface implementation: fs.FS, fs.ReadDirFS, fs.ReadFileFS, fs.StatFS.
//   - Writable filesystem operations (Create, Mkdir, Remove, Rename, WriteFile, etc.).
//   - An [afero.Fs] decorator, InterceptFs, that publishes to the same kind of bus.
//   - Full concurrency safety.
//
// # Basic Usage
//
// Create a mock filesystem with initial files:
//
//	mfs := mockfs.NewMockFS(map[string]*mockfs.MapFile{
//	    "file.txt": {Data: []byte("content"), Mode: 0o644},
//	})
//
// Use it like any fs.FS:
//
//	data, err := fs.ReadFile(mfs, "file.txt")
//
// # Operation Events
//
// Every intercepted operation runs in three steps. Before subscribers are
// called first and may veto the operation. If nobody vetoed it, the
// operation runs. If it succeeded, After subscribers are called.
//
//	rec := mockfs.NewRecorder()
//	mfs := mockfs.NewMockFS(nil, mockfs.WithOperationEvents())
//	rec.Attach(mfs.EventBus())
//
//	mfs.Subscribe(func(ev mockfs.Event) error {
//	    if ev.Phase == mockfs.PhaseBefore && ev.Op == mockfs.OpDelete {
//	        return ev.Fail(mockfs.ErrPermission)
//	    }
//	    return nil
//	})
//
// A Before callback vetoes by responding once per occurrence:
//   - ev.Fail(err): the caller receives err unchanged.
//   - ev.Cancel(): the caller receives a *CanceledError (errors.Is ErrCanceled).
//
// A callback that returns an error or panics also vetoes the operation.
// Callback failures take precedence over responses. A single failure is
// returned as is, several are joined in a *CallbackErrors. Panics are
// recovered into *PanicError. Failures of After callbacks never reach the
// caller; they are logged at debug level through [log/slog].
//
// A bus starts disabled, and a disabled bus costs nothing: the operation
// runs directly. MockFS enables its bus on WithOperationEvents, a latency
// option, any Fail* helper, ErrorInjector or Subscribe call.
//
// # Error Injection
//
// Inject errors to simulate I/O failures. Use convenience methods for common cases:
//
//	// Always fail specific operations
//	mfs.FailOpen("bad.txt", mockfs.ErrPermission)
//	mfs.FailRead("data.txt", mockfs.ErrCorrupted)
//
//	// Fail once then succeed
//	mfs.FailOpenOnce("flaky.db", mockfs.ErrTimeout)
//
//	// Fail after N successes
//	mfs.FailReadAfter("stream.bin", mockfs.ErrTimeout, 5)
//
// For advanced scenarios, use the ErrorInjector interface directly:
//
//	injector := mfs.ErrorInjector()
//
//	// Glob patterns (uses path.Match semantics)
//	injector.AddGlob(mockfs.OpRead, "*.log", mockfs.ErrTimeout, mockfs.ErrorModeAlways, 0)
//
//	// Regular expressions
//	injector.AddRegexp(mockfs.OpRead, `\.tmp$`, mockfs.ErrCorrupted, mockfs.ErrorModeAlways, 0)
//
//	// All paths for an operation
//	injector.AddAll(mockfs.OpWrite, mockfs.ErrDiskFull, mockfs.ErrorModeAlways, 0)
//
//	// All operations for a path
//	injector.AddExactForAllOps("critical.dat", mockfs.ErrCorrupted, mockfs.ErrorModeAlways, 0)
//
// The injector is itself a Before subscriber, registered first on the
// filesystem's bus. It does not override a response another callback has
// already given. When several filesystems share a bus, each injector only
// acts on events raised by its own filesystem and the files it opened.
//
// Error modes control when errors are returned:
//   - ErrorModeAlways: Error returned on every matching operation
//   - ErrorModeOnce: Error returned once, then rule becomes inactive
//   - ErrorModeAfterSuccesses: Error returned after N successful operations
//
// # Latency Simulation
//
// Add artificial delays to test timeout handling:
//
//	// Global latency for all operations
//	mfs := mockfs.NewMockFS(nil, mockfs.WithLatency(100*time.Millisecond))
//
//	// Per-operation latency
//	mfs = mockfs.NewMockFS(nil, mockfs.WithPerOperationLatency(
//	    map[mockfs.Operation]time.Duration{
//	        mockfs.OpRead:  200 * time.Millisecond,
//	        mockfs.OpWrite: 500 * time.Millisecond,
//	    },
//	))
//
// # Recording Events
//
// A Recorder keeps the events it receives and checks them fluently:
//
//	rec.Expect().
//	    Count(mockfs.OpDelete, mockfs.PhaseBefore, 1).
//	    Incomplete(mockfs.OpDelete, 1).
//	    Assert(t)
//
// # Limitations
//
//   - Symlinks are not supported.
//   - File permissions (MapFile.Mode) are metadata only and not enforced.
//     Use ErrorInjector to simulate permission errors explicitly.
//   - Path cleaning uses lexical processing only.
//   - Events carry a single path: Rename and Copy report their source.
//   - A view returned by Sub raises events with paths relative to the
//     parent's root.
//   - There is no ordering guarantee between operations running on
//     different goroutines.
package mockfs
