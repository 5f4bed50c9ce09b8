package mockfs

import (
	"log/slog"
	"sync/atomic"
)

// EventBus publishes operation events to subscribers and lets Before
// subscribers veto operations. It is safe for concurrent use.
//
// A new bus is disabled: operations wrapped with WithEvents run directly and
// no events are built. Enable switches it on for the rest of its lifetime.
type EventBus struct {
	reg     registry
	enabled atomic.Bool
	logger  *slog.Logger
}

// BusOption configures an EventBus.
type BusOption func(*EventBus)

// WithLogger sets the logger used for debug records about vetoes and
// discarded After failures. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *EventBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewEventBus creates a disabled event bus.
func NewEventBus(opts ...BusOption) *EventBus {
	b := &EventBus{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "mockfs")

	return b
}

// Enable turns event dispatch on. It reports true only for the call that
// actually switched the bus on. There is no way to switch it off again.
func (b *EventBus) Enable() bool {
	return b.enabled.CompareAndSwap(false, true)
}

// Enabled reports whether event dispatch is on.
func (b *EventBus) Enabled() bool {
	return b != nil && b.enabled.Load()
}

// Version returns a counter that advances on every subscribe and release.
func (b *EventBus) Version() uint64 {
	return b.reg.version.Load()
}

// Len returns the number of active subscriptions.
func (b *EventBus) Len() int {
	return b.reg.len()
}

// Subscribe registers cb for every operation.
func (b *EventBus) Subscribe(cb Callback) (*Subscription, error) {
	return b.reg.subscribe(cb, nil, false)
}

// SubscribeOp registers cb for a single operation.
func (b *EventBus) SubscribeOp(op Operation, cb Callback) (*Subscription, error) {
	return b.reg.subscribe(cb, []Operation{op}, true)
}

// SubscribeOps registers cb for a set of operations. ops must not be empty.
func (b *EventBus) SubscribeOps(ops []Operation, cb Callback) (*Subscription, error) {
	return b.reg.subscribe(cb, ops, true)
}

// WithEvents runs work wrapped in a Before and an After event.
//
// Before subscribers may veto the operation: a callback failure, a fault
// response or a cancel response is returned instead of running work, and no
// After event is raised. An error from work is returned unchanged, also without
// an After event. Failures of After subscribers are discarded.
func (b *EventBus) WithEvents(path string, op Operation, res ResourceKind, work func() error) error {
	return b.withEvents(nil, path, op, res, work)
}

// WithEventsValue is WithEvents for operations that produce a value.
// On a veto it returns the zero value of T and the veto error. Otherwise
// it returns exactly what work returned.
func WithEventsValue[T any](b *EventBus, path string, op Operation, res ResourceKind, work func() (T, error)) (T, error) {
	return withEventsValue(b, nil, path, op, res, work)
}

// withEvents is WithEvents for events raised on behalf of origin.
func (b *EventBus) withEvents(origin any, path string, op Operation, res ResourceKind, work func() error) error {
	if !b.Enabled() {
		return work()
	}

	if err := b.before(origin, path, op, res); err != nil {
		return err
	}
	if err := work(); err != nil {
		return err
	}
	b.after(origin, path, op, res)

	return nil
}

func withEventsValue[T any](b *EventBus, origin any, path string, op Operation, res ResourceKind, work func() (T, error)) (T, error) {
	if !b.Enabled() {
		return work()
	}

	if err := b.before(origin, path, op, res); err != nil {
		var zero T
		return zero, err
	}
	v, err := work()
	if err != nil {
		return v, err
	}
	b.after(origin, path, op, res)

	return v, nil
}

// before raises the Before event and resolves the veto decision.
func (b *EventBus) before(origin any, path string, op Operation, res ResourceKind) error {
	subs := b.reg.snapshot()
	if len(subs) == 0 {
		return nil
	}

	occ := &occurrence{}
	ev := Event{Path: path, Op: op, Resource: res, Phase: PhaseBefore, occ: occ, origin: origin}
	errs := raise(subs, ev)
	resp := occ.seal()

	if err := collapseErrors(op, path, PhaseBefore, errs); err != nil {
		b.logger.Debug("before callbacks failed", "op", op, "path", path, "error", err)
		return err
	}
	if resp == nil {
		return nil
	}
	if resp.Err != nil {
		b.logger.Debug("operation faulted by subscriber", "op", op, "path", path, "error", resp.Err)
		return resp.Err
	}
	if resp.Cancel {
		b.logger.Debug("operation canceled by subscriber", "op", op, "path", path)
		return &CanceledError{Op: op, Path: path}
	}

	return nil
}

// after raises the After event. Callback failures never reach the caller.
func (b *EventBus) after(origin any, path string, op Operation, res ResourceKind) {
	subs := b.reg.snapshot()
	if len(subs) == 0 {
		return
	}

	ev := Event{Path: path, Op: op, Resource: res, Phase: PhaseAfter, origin: origin}
	if err := collapseErrors(op, path, PhaseAfter, raise(subs, ev)); err != nil {
		b.logger.Debug("after callbacks failed, discarding", "op", op, "path", path, "error", err)
	}
}

// raise invokes every matching, still-active subscription in order and
// collects their failures.
func raise(subs []*Subscription, ev Event) []error {
	var errs []error
	for _, s := range subs {
		if !s.handles(ev.Op) || !s.Active() {
			continue
		}
		if err := s.invoke(ev); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}
