package mockfs

import (
	"fmt"
	"sync"
	"time"
)

// LatencySimulator simulates latency for operations and is thread-safe.
// It should be configured at creation time and is immutable thereafter.
//
// The simulator maintains a "seen" state for Once() mode. Call Reset() to clear
// this state when reusing the simulator.
type LatencySimulator interface {
	// Simulate simulates latency for an operation. It is thread-safe.
	//
	// By default, Simulate serializes access (holds lock during sleep) to model
	// blocking I/O. Use Async() to release the lock before sleeping.
	//
	// Use Once() to ensure an operation's latency is simulated at most once.
	Simulate(op Operation, opts ...SimOpt)

	// Reset clears the internal "seen" state for all operations.
	// Must be called when no other goroutines are calling Simulate().
	Reset()
}

type simOptions struct {
	once  bool
	async bool
}

// SimOpt tunes a single Simulate call.
type SimOpt func(*simOptions)

// Once makes Simulate apply latency at most once for the operation type.
// The first call simulates latency; subsequent calls for the same operation return immediately.
func Once() SimOpt { return func(o *simOptions) { o.once = true } }

// Async makes Simulate release the lock before sleeping (non-serialized).
// Use this when operations should not block each other.
func Async() SimOpt { return func(o *simOptions) { o.async = true } }

// OnceAsync is a convenience function that applies Once and Async.
func OnceAsync() SimOpt { return func(o *simOptions) { o.once = true; o.async = true } }

// latencySimulator implements LatencySimulator.
type latencySimulator struct {
	global    time.Duration                // Fallback duration for operations without their own.
	durations [NumOperations]time.Duration // Duration for each operation.
	seen      [NumOperations]bool          // Tracks whether an operation latency has been simulated.
	mu        sync.Mutex                   // Mutex for concurrent access.
}

// NewLatencySimulator returns a LatencySimulator with a global duration for all operations.
// If duration is 0, no latency is simulated.
// Panics if duration is negative.
func NewLatencySimulator(duration time.Duration) LatencySimulator {
	if duration < 0 {
		panic(fmt.Sprintf("mockfs: negative duration not allowed: %v", duration))
	}

	return &latencySimulator{global: duration}
}

// NewLatencySimulatorPerOp creates a simulator that uses per-operation durations.
// Operations missing from the map are not delayed.
// Panics if any duration is negative or any operation is invalid.
func NewLatencySimulatorPerOp(durations map[Operation]time.Duration) LatencySimulator {
	ls := &latencySimulator{}
	for op, dur := range durations {
		if !op.IsValid() {
			panic(fmt.Sprintf("mockfs: invalid operation %d", int(op)))
		}
		if dur < 0 {
			panic(fmt.Sprintf("mockfs: negative duration not allowed for %v: %v", op, dur))
		}
		ls.durations[op] = dur
	}

	return ls
}

// NewNoopLatencySimulator returns a LatencySimulator that does nothing (useful for tests).
func NewNoopLatencySimulator() LatencySimulator {
	return &latencySimulator{}
}

// Simulate simulates latency for an operation. It is thread-safe.
//
// Parameters:
//   - op - the operation to simulate.
//   - opts - optional simulation options. See Once(), Async(), OnceAsync().
func (ls *latencySimulator) Simulate(op Operation, opts ...SimOpt) {
	if !op.IsValid() {
		return
	}

	var so simOptions
	for _, o := range opts {
		o(&so)
	}

	dur := ls.durations[op]
	if dur == 0 {
		dur = ls.global
	}
	if dur == 0 {
		return
	}

	if so.once {
		ls.mu.Lock()
		if ls.seen[op] {
			ls.mu.Unlock()

			return
		}
		ls.seen[op] = true

		if so.async {
			ls.mu.Unlock()
			time.Sleep(dur)

			return
		}

		// Serialized once: hold lock while sleeping
		time.Sleep(dur)
		ls.mu.Unlock()

		return
	}

	if !so.async {
		// Serialized: hold lock during sleep
		ls.mu.Lock()
		time.Sleep(dur)
		ls.mu.Unlock()

		return
	}

	time.Sleep(dur)
}

// Reset clears the internal "seen" state for all operations.
func (ls *latencySimulator) Reset() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.seen = [NumOperations]bool{}
}

// LatencyCallback adapts ls into a Before callback that delays every
// occurrence it receives.
func LatencyCallback(ls LatencySimulator, opts ...SimOpt) Callback {
	return func(ev Event) error {
		if ev.Phase == PhaseBefore {
			ls.Simulate(ev.Op, opts...)
		}
		return nil
	}
}
