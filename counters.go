package mockfs

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Counters records how many times MockFS was asked to perform each operation,
// whether or not the operation was later vetoed or failed, and how many bytes
// completed reads and writes transferred. Counting does not depend on the
// event bus. It is safe for concurrent use.
type Counters struct {
	calls        [NumOperations]atomic.Int64
	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
}

// NewCounters returns a Counters instance with all counts at zero.
func NewCounters() *Counters {
	return &Counters{}
}

// Count reports the current count for the given operation.
func (c *Counters) Count(op Operation) int {
	if !op.IsValid() {
		return 0
	}

	return int(c.calls[op].Load())
}

// BytesRead reports the bytes returned by completed reads.
func (c *Counters) BytesRead() int64 {
	return c.bytesRead.Load()
}

// BytesWritten reports the bytes accepted by completed writes.
func (c *Counters) BytesWritten() int64 {
	return c.bytesWritten.Load()
}

// Total reports the sum of all operation counts.
func (c *Counters) Total() int {
	total := 0
	for op := Operation(0); op < NumOperations; op++ {
		total += c.Count(op)
	}

	return total
}

// Snapshot returns a copy of all operation counters.
func (c *Counters) Snapshot() [NumOperations]int {
	var out [NumOperations]int
	for op := Operation(0); op < NumOperations; op++ {
		out[op] = c.Count(op)
	}

	return out
}

// Set sets the counter for op. Invalid operations are ignored.
func (c *Counters) Set(op Operation, count int) {
	if !op.IsValid() {
		return
	}

	c.calls[op].Store(int64(count))
}

// ResetAll resets all operation counters and byte totals to zero.
func (c *Counters) ResetAll() {
	for op := Operation(0); op < NumOperations; op++ {
		c.calls[op].Store(0)
	}
	c.bytesRead.Store(0)
	c.bytesWritten.Store(0)
}

// Clone returns an independent copy of the counters.
func (c *Counters) Clone() *Counters {
	clone := &Counters{}
	for op := Operation(0); op < NumOperations; op++ {
		clone.calls[op].Store(c.calls[op].Load())
	}
	clone.bytesRead.Store(c.bytesRead.Load())
	clone.bytesWritten.Store(c.bytesWritten.Load())

	return clone
}

// Equal reports whether other holds the same counts and byte totals as c.
func (c *Counters) Equal(other *Counters) bool {
	if c == other {
		return true
	}
	if other == nil {
		return false
	}

	return c.Snapshot() == other.Snapshot() &&
		c.BytesRead() == other.BytesRead() &&
		c.BytesWritten() == other.BytesWritten()
}

// String lists the non-zero counts, e.g. "Counters{Create: 1, Write: 2}".
// Byte totals follow when non-zero, e.g. "Counters{Read: 1, BytesRead: 5}".
func (c *Counters) String() string {
	var parts []string
	for op := Operation(0); op < NumOperations; op++ {
		if n := c.Count(op); n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", op, n))
		}
	}
	if n := c.BytesRead(); n > 0 {
		parts = append(parts, fmt.Sprintf("BytesRead: %d", n))
	}
	if n := c.BytesWritten(); n > 0 {
		parts = append(parts, fmt.Sprintf("BytesWritten: %d", n))
	}

	return "Counters{" + strings.Join(parts, ", ") + "}"
}

// inc increments the counter for the given operation.
func (c *Counters) inc(op Operation) {
	if !op.IsValid() {
		return
	}

	c.calls[op].Add(1)
}

func (c *Counters) addRead(n int) {
	c.bytesRead.Add(int64(n))
}

func (c *Counters) addWritten(n int) {
	c.bytesWritten.Add(int64(n))
}
