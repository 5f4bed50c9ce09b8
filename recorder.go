package mockfs

import (
	"fmt"
	"strings"
	"sync"
)

// TestReporter is a minimal interface for reporting test failures.
// Both [*testing.T] and [*testing.B] satisfy this interface.
type TestReporter interface {
	// Errorf reports a test failure.
	Errorf(format string, args ...any)

	// Helper marks the calling function as a test helper function.
	Helper()
}

// Recorder is a subscriber that keeps every event it receives, in arrival
// order, for later inspection. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Attach subscribes the recorder to bus. With no ops it records every operation.
func (r *Recorder) Attach(bus *EventBus, ops ...Operation) (*Subscription, error) {
	if len(ops) == 0 {
		return bus.Subscribe(r.Callback())
	}

	return bus.SubscribeOps(ops, r.Callback())
}

// Callback returns the callback that records events.
func (r *Recorder) Callback() Callback {
	return func(ev Event) error {
		r.mu.Lock()
		r.events = append(r.events, ev.withoutResponse())
		r.mu.Unlock()

		return nil
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Event, len(r.events))
	copy(out, r.events)

	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.events)
}

// Count returns how many events were recorded for op in phase.
func (r *Recorder) Count(op Operation, phase Phase) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.events {
		if ev.Op == op && ev.Phase == phase {
			n++
		}
	}

	return n
}

// Incomplete returns how many occurrences of op raised Before but not After:
// vetoed operations and operations whose work failed.
func (r *Recorder) Incomplete(op Operation) int {
	return r.Count(op, PhaseBefore) - r.Count(op, PhaseAfter)
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}

// String lists the recorded events, one per line.
func (r *Recorder) String() string {
	var b strings.Builder
	for _, ev := range r.Events() {
		b.WriteString(ev.String())
		b.WriteByte('\n')
	}

	return b.String()
}

// Expect returns a RecorderAssertion for fluent verification in tests.
//
// Usage:
//
//	rec.Expect().
//		Count(OpWrite, PhaseBefore, 1).
//		Completed(OpWrite, 1).
//		Assert(t)
func (r *Recorder) Expect() *RecorderAssertion {
	return &RecorderAssertion{rec: r}
}

// RecorderAssertion accumulates checks against a Recorder and runs them in Assert.
type RecorderAssertion struct {
	rec    *Recorder
	checks []func(TestReporter) // Accumulate checks for deferred execution
}

// Count asserts how many events were recorded for op in phase.
func (ra *RecorderAssertion) Count(op Operation, phase Phase, expected int) *RecorderAssertion {
	ra.checks = append(ra.checks, func(t TestReporter) {
		if got := ra.rec.Count(op, phase); got != expected {
			t.Helper()
			t.Errorf("Count(%s, %s) = %d, want %d", op, phase, got, expected)
		}
	})
	return ra
}

// Completed asserts how many occurrences of op raised an After event.
func (ra *RecorderAssertion) Completed(op Operation, expected int) *RecorderAssertion {
	return ra.Count(op, PhaseAfter, expected)
}

// Incomplete asserts how many occurrences of op raised Before but not After.
func (ra *RecorderAssertion) Incomplete(op Operation, expected int) *RecorderAssertion {
	ra.checks = append(ra.checks, func(t TestReporter) {
		if got := ra.rec.Incomplete(op); got != expected {
			t.Helper()
			t.Errorf("Incomplete(%s) = %d, want %d", op, got, expected)
		}
	})
	return ra
}

// Sequence asserts that exactly the given events were recorded, in order.
// Only Path, Op, Resource and Phase are compared.
func (ra *RecorderAssertion) Sequence(expected ...Event) *RecorderAssertion {
	ra.checks = append(ra.checks, func(t TestReporter) {
		got := ra.rec.Events()
		if !sameEvents(got, expected) {
			t.Helper()
			t.Errorf("recorded events:\n%s\nwant:\n%s", formatEvents(got), formatEvents(expected))
		}
	})
	return ra
}

// Empty asserts that nothing was recorded.
func (ra *RecorderAssertion) Empty() *RecorderAssertion {
	ra.checks = append(ra.checks, func(t TestReporter) {
		if n := ra.rec.Len(); n != 0 {
			t.Helper()
			t.Errorf("expected no events, got %d:\n%s", n, ra.rec)
		}
	})
	return ra
}

// Assert runs the assertions.
func (ra *RecorderAssertion) Assert(t TestReporter) {
	t.Helper()
	for _, check := range ra.checks {
		check(t)
	}
}

func sameEvents(a, b []Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].withoutResponse() != b[i].withoutResponse() {
			return false
		}
	}

	return true
}

func formatEvents(events []Event) string {
	if len(events) == 0 {
		return "  (none)"
	}
	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = fmt.Sprintf("  %d: %s", i, ev)
	}

	return strings.Join(lines, "\n")
}
