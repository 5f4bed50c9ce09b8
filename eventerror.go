package mockfs

import (
	"errors"
	"fmt"
	"strings"
)

// Operation event errors.
var (
	// ErrCanceled is matched by errors.Is for operations vetoed with a cancel response.
	ErrCanceled = errors.New("operation canceled")

	// ErrCallbackPanic is matched by errors.Is for callbacks that panicked.
	ErrCallbackPanic = errors.New("callback panicked")

	// ErrNilCallback is returned when subscribing without a callback.
	ErrNilCallback = fmt.Errorf("%w: nil callback", ErrInvalid)

	// ErrResponseNotAllowed is returned when a response is attached outside of
	// the Before phase of a live occurrence.
	ErrResponseNotAllowed = errors.New("response not allowed outside the before phase")

	// ErrResponseAlreadySet is returned when a second response is attached to
	// the same occurrence.
	ErrResponseAlreadySet = errors.New("response already set for this occurrence")
)

// CanceledError is returned when a Before callback cancels an operation.
type CanceledError struct {
	Op   Operation
	Path string
}

// Error implements the error interface.
func (e *CanceledError) Error() string {
	return fmt.Sprintf("mockfs: %s %q canceled by subscriber", e.Op, e.Path)
}

// Is allows errors.Is to match CanceledError with ErrCanceled.
func (e *CanceledError) Is(target error) bool {
	return target == ErrCanceled
}

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	// SubscriptionID is the ID of the subscription whose callback panicked.
	SubscriptionID string

	Op    Operation
	Path  string
	Phase Phase

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("mockfs: subscription %s panicked during %s %s %q: %v",
		e.SubscriptionID, e.Phase, e.Op, e.Path, e.Value)
}

// Is allows errors.Is to match PanicError with ErrCallbackPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrCallbackPanic
}

// Unwrap returns the panic value if it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}

	return nil
}

// CallbackErrors aggregates the failures of several callbacks raised for one
// occurrence. errors.Is and errors.As look through every wrapped error.
type CallbackErrors struct {
	Op    Operation
	Path  string
	Phase Phase
	Errs  []error
}

// Error implements the error interface.
func (e *CallbackErrors) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mockfs: %d callbacks failed during %s %s %q", len(e.Errs), e.Phase, e.Op, e.Path)
	for i, err := range e.Errs {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}

	return b.String()
}

// Unwrap returns the aggregated errors.
func (e *CallbackErrors) Unwrap() []error {
	return e.Errs
}

// collapseErrors returns nil for no errors, the error itself for one,
// and a *CallbackErrors for several.
func collapseErrors(op Operation, path string, phase Phase, errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &CallbackErrors{Op: op, Path: path, Phase: phase, Errs: errs}
	}
}
