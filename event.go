package mockfs

import (
	"fmt"
	"sync"
)

// Response is a Before-phase decision attached to an occurrence.
// If both fields are set, Err takes precedence.
type Response struct {
	// Cancel vetoes the operation with a *CanceledError.
	Cancel bool

	// Err vetoes the operation with this exact error.
	Err error
}

// occurrence is the response slot of one Before dispatch. The dispatcher owns
// it and hands it to callbacks through Event.
type occurrence struct {
	mu       sync.Mutex
	response *Response
	sealed   bool
}

// set stores r unless a response already exists or the slot is sealed.
func (o *occurrence) set(r Response) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sealed {
		return ErrResponseNotAllowed
	}
	if o.response != nil {
		return ErrResponseAlreadySet
	}
	o.response = &r

	return nil
}

// get returns the current response, if any.
func (o *occurrence) get() (Response, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.response == nil {
		return Response{}, false
	}

	return *o.response, true
}

// seal closes the slot and returns the final response.
func (o *occurrence) seal() *Response {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sealed = true

	return o.response
}

// Event describes one phase of one attempted filesystem operation.
// Callbacks receive it by value; only Before events accept a response.
type Event struct {
	Path     string
	Op       Operation
	Resource ResourceKind
	Phase    Phase

	occ    *occurrence
	origin any // the MockFS that raised the event, if any
}

// String returns a compact description, e.g. "Before Write File /a.txt".
func (e Event) String() string {
	return fmt.Sprintf("%s %s %s %s", e.Phase, e.Op, e.Resource, e.Path)
}

// Respond attaches r to the occurrence. It may be called at most once per
// occurrence, and only while Before callbacks are running.
func (e Event) Respond(r Response) error {
	if e.Phase != PhaseBefore || e.occ == nil {
		return fmt.Errorf("%w: %s", ErrResponseNotAllowed, e)
	}
	if !r.Cancel && r.Err == nil {
		return fmt.Errorf("%w: empty response", ErrInvalid)
	}
	if err := e.occ.set(r); err != nil {
		return fmt.Errorf("%w: %s", err, e)
	}

	return nil
}

// Cancel vetoes the operation. The caller receives a *CanceledError.
func (e Event) Cancel() error {
	return e.Respond(Response{Cancel: true})
}

// Fail vetoes the operation. The caller receives err unchanged.
func (e Event) Fail(err error) error {
	if err == nil {
		return fmt.Errorf("%w: nil fault", ErrInvalid)
	}

	return e.Respond(Response{Err: err})
}

// Response returns the response attached so far by an earlier callback.
func (e Event) Response() (Response, bool) {
	if e.occ == nil {
		return Response{}, false
	}

	return e.occ.get()
}

// withoutResponse returns a copy detached from the response slot, suitable
// for retaining after the dispatch has finished.
func (e Event) withoutResponse() Event {
	e.occ = nil
	e.origin = nil
	return e
}
