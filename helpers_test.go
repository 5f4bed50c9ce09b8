package mockfs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/balinomad/go-mockfs/v3"
)

const (
	testDuration     = 50 * time.Millisecond
	testDurationLong = 100 * time.Millisecond
	tolerance        = 20 * time.Millisecond // Timing tolerance for test flakiness
)

// assertDuration checks if elapsed time is within expected range.
func assertDuration(t *testing.T, start time.Time, expected time.Duration, name string) {
	t.Helper()
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, expected-tolerance, name)
	assert.LessOrEqual(t, elapsed, expected+tolerance, name)
}

// assertNoDuration checks that operation completed quickly (no sleep).
func assertNoDuration(t *testing.T, start time.Time, name string) {
	t.Helper()
	assert.Less(t, time.Since(start), tolerance, name)
}

// enabledBus returns a bus that dispatches events.
func enabledBus(t *testing.T) *mockfs.EventBus {
	t.Helper()
	bus := mockfs.NewEventBus()
	bus.Enable()
	return bus
}

// ev builds an event for sequence assertions.
func ev(phase mockfs.Phase, op mockfs.Operation, res mockfs.ResourceKind, path string) mockfs.Event {
	return mockfs.Event{Path: path, Op: op, Resource: res, Phase: phase}
}
