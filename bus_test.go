package mockfs_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balinomad/go-mockfs/v3"
)

var (
	errDiskFull = errors.New("disk full")

	noopWork = func() error { return nil }
	intWork  = func() (int, error) { return 42, nil }
)

func TestEventBus_DisabledRunsWorkDirectly(t *testing.T) {
	t.Parallel()

	workErr := errors.New("work failed")

	for _, op := range mockfs.AllOperations() {
		op := op
		t.Run(op.String(), func(t *testing.T) {
			t.Parallel()

			bus := mockfs.NewEventBus()
			var delivered atomic.Int32
			_, err := bus.Subscribe(func(mockfs.Event) error {
				delivered.Add(1)
				return nil
			})
			require.NoError(t, err)

			v, err := mockfs.WithEventsValue(bus, "/p", op, mockfs.ResourceFile, intWork)
			require.NoError(t, err)
			assert.Equal(t, 42, v)

			err = bus.WithEvents("/p", op, mockfs.ResourceFile, func() error { return workErr })
			assert.Same(t, workErr, err)

			assert.Zero(t, delivered.Load(), "disabled bus must not deliver events")
		})
	}
}

func TestEventBus_NilBusRunsWorkDirectly(t *testing.T) {
	t.Parallel()

	var bus *mockfs.EventBus

	assert.False(t, bus.Enabled())
	require.NoError(t, bus.WithEvents("a", mockfs.OpRead, mockfs.ResourceFile, noopWork))

	v, err := mockfs.WithEventsValue(bus, "a", mockfs.OpRead, mockfs.ResourceFile, intWork)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

// Not parallel: AllocsPerRun counts allocations process-wide.
func TestEventBus_DisabledDoesNotAllocate(t *testing.T) {
	bus := mockfs.NewEventBus()
	_, err := bus.Subscribe(func(mockfs.Event) error { return nil })
	require.NoError(t, err)

	allocs := testing.AllocsPerRun(100, func() {
		_ = bus.WithEvents("a.txt", mockfs.OpWrite, mockfs.ResourceFile, noopWork)
		_, _ = mockfs.WithEventsValue(bus, "a.txt", mockfs.OpRead, mockfs.ResourceFile, intWork)
	})
	assert.Zero(t, allocs)
}

func TestEventBus_Enable(t *testing.T) {
	t.Parallel()

	bus := mockfs.NewEventBus()
	assert.False(t, bus.Enabled())
	assert.True(t, bus.Enable(), "first Enable switches the bus on")
	assert.False(t, bus.Enable(), "second Enable is a no-op")
	assert.True(t, bus.Enabled())
}

func TestEventBus_WriteScenario(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	rec := mockfs.NewRecorder()
	_, err := rec.Attach(bus, mockfs.OpWrite)
	require.NoError(t, err)

	v, err := mockfs.WithEventsValue(bus, "/a.txt", mockfs.OpWrite, mockfs.ResourceFile, intWork)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	rec.Expect().
		Sequence(
			ev(mockfs.PhaseBefore, mockfs.OpWrite, mockfs.ResourceFile, "/a.txt"),
			ev(mockfs.PhaseAfter, mockfs.OpWrite, mockfs.ResourceFile, "/a.txt"),
		).
		Assert(t)
}

func TestEventBus_ReleasedBeforeDispatch(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	rec := mockfs.NewRecorder()
	sub, err := rec.Attach(bus)
	require.NoError(t, err)

	sub.Release()
	require.NoError(t, bus.WithEvents("/x", mockfs.OpCreate, mockfs.ResourceFile, noopWork))

	rec.Expect().Empty().Assert(t)
}

func TestEventBus_FaultPreventsWork(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	_, err := bus.SubscribeOp(mockfs.OpCreate, func(ev mockfs.Event) error {
		if ev.Phase == mockfs.PhaseBefore {
			return ev.Fail(errDiskFull)
		}
		return nil
	})
	require.NoError(t, err)

	created := false
	err = bus.WithEvents("/x", mockfs.OpCreate, mockfs.ResourceFile, func() error {
		created = true
		return nil
	})

	assert.Same(t, errDiskFull, err)
	assert.False(t, created, "work must not run after a fault")
}

func TestEventBus_CancelPreventsWork(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	rec := mockfs.NewRecorder()
	_, err := bus.Subscribe(func(ev mockfs.Event) error {
		if ev.Phase == mockfs.PhaseBefore {
			return ev.Cancel()
		}
		return nil
	})
	require.NoError(t, err)
	_, err = rec.Attach(bus)
	require.NoError(t, err)

	ran := false
	v, err := mockfs.WithEventsValue(bus, "/dir/f", mockfs.OpDelete, mockfs.ResourceFile, func() (int, error) {
		ran = true
		return 1, nil
	})

	require.ErrorIs(t, err, mockfs.ErrCanceled)
	var canceled *mockfs.CanceledError
	require.ErrorAs(t, err, &canceled)
	assert.Equal(t, mockfs.OpDelete, canceled.Op)
	assert.Equal(t, "/dir/f", canceled.Path)
	assert.Zero(t, v)
	assert.False(t, ran)

	rec.Expect().
		Count(mockfs.OpDelete, mockfs.PhaseBefore, 1).
		Completed(mockfs.OpDelete, 0).
		Incomplete(mockfs.OpDelete, 1).
		Assert(t)
}

func TestEventBus_ErrTakesPrecedenceOverCancel(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	_, err := bus.Subscribe(func(ev mockfs.Event) error {
		return ev.Respond(mockfs.Response{Cancel: true, Err: errDiskFull})
	})
	require.NoError(t, err)

	err = bus.WithEvents("f", mockfs.OpWrite, mockfs.ResourceFile, noopWork)
	assert.Same(t, errDiskFull, err)
	assert.NotErrorIs(t, err, mockfs.ErrCanceled)
}

func TestEventBus_CallbackFailures(t *testing.T) {
	t.Parallel()

	errA := errors.New("a failed")
	errB := errors.New("b failed")

	tests := []struct {
		name  string
		cbs   []mockfs.Callback
		check func(t *testing.T, err error)
	}{
		{
			name: "single failure returned as is",
			cbs: []mockfs.Callback{
				func(mockfs.Event) error { return errA },
			},
			check: func(t *testing.T, err error) {
				assert.Same(t, errA, err)
			},
		},
		{
			name: "two failures become one composite",
			cbs: []mockfs.Callback{
				func(mockfs.Event) error { return errA },
				func(mockfs.Event) error { return errB },
			},
			check: func(t *testing.T, err error) {
				var composite *mockfs.CallbackErrors
				require.ErrorAs(t, err, &composite)
				assert.Equal(t, []error{errA, errB}, composite.Errs)
				assert.Equal(t, mockfs.PhaseBefore, composite.Phase)
				assert.ErrorIs(t, err, errA)
				assert.ErrorIs(t, err, errB)
			},
		},
		{
			name: "failure wins over response",
			cbs: []mockfs.Callback{
				func(ev mockfs.Event) error {
					_ = ev.Fail(errDiskFull)
					return nil
				},
				func(mockfs.Event) error { return errA },
			},
			check: func(t *testing.T, err error) {
				assert.Same(t, errA, err)
			},
		},
		{
			name: "panic becomes failure",
			cbs: []mockfs.Callback{
				func(mockfs.Event) error { panic("boom") },
			},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, mockfs.ErrCallbackPanic)
				var pe *mockfs.PanicError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, "boom", pe.Value)
				assert.Equal(t, mockfs.OpRead, pe.Op)
				assert.Equal(t, "p", pe.Path)
				assert.NotEmpty(t, pe.Stack)
			},
		},
		{
			name: "panic with error value unwraps",
			cbs: []mockfs.Callback{
				func(mockfs.Event) error { panic(errB) },
				func(mockfs.Event) error { return errA },
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, mockfs.ErrCallbackPanic)
				assert.ErrorIs(t, err, errB)
				assert.ErrorIs(t, err, errA)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bus := enabledBus(t)
			for _, cb := range tt.cbs {
				cb := cb
				_, err := bus.Subscribe(func(ev mockfs.Event) error {
					if ev.Phase != mockfs.PhaseBefore {
						return nil
					}
					return cb(ev)
				})
				require.NoError(t, err)
			}

			ran := false
			err := bus.WithEvents("p", mockfs.OpRead, mockfs.ResourceFile, func() error {
				ran = true
				return nil
			})

			require.Error(t, err)
			assert.False(t, ran, "work must not run after a callback failure")
			tt.check(t, err)
		})
	}
}

func TestEventBus_AfterFailuresAreDiscarded(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	bus := mockfs.NewEventBus(mockfs.WithLogger(logger))
	bus.Enable()

	_, err := bus.Subscribe(func(ev mockfs.Event) error {
		if ev.Phase == mockfs.PhaseAfter {
			return errors.New("after failed")
		}
		return nil
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(func(ev mockfs.Event) error {
		if ev.Phase == mockfs.PhaseAfter {
			panic("after panicked")
		}
		return nil
	})
	require.NoError(t, err)
	_, err = bus.Subscribe(func(ev mockfs.Event) error {
		if ev.Phase == mockfs.PhaseAfter {
			// Misuse in After is discarded like any other failure.
			return ev.Cancel()
		}
		return nil
	})
	require.NoError(t, err)

	v, err := mockfs.WithEventsValue(bus, "/a.txt", mockfs.OpWrite, mockfs.ResourceFile, intWork)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	assert.Contains(t, logs.String(), "after callbacks failed")
	assert.Contains(t, logs.String(), "component=mockfs")
}

func TestEventBus_WorkErrorSkipsAfter(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	rec := mockfs.NewRecorder()
	_, err := rec.Attach(bus)
	require.NoError(t, err)

	workErr := errors.New("work failed")
	v, err := mockfs.WithEventsValue(bus, "f", mockfs.OpRead, mockfs.ResourceFile, func() (int, error) {
		return 7, workErr
	})

	assert.Same(t, workErr, err)
	assert.Equal(t, 7, v, "work's value is returned alongside its error")
	rec.Expect().
		Count(mockfs.OpRead, mockfs.PhaseBefore, 1).
		Completed(mockfs.OpRead, 0).
		Assert(t)
}

func TestEventBus_WorkPanicPropagates(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	rec := mockfs.NewRecorder()
	_, err := rec.Attach(bus)
	require.NoError(t, err)

	assert.PanicsWithValue(t, "work panicked", func() {
		_ = bus.WithEvents("f", mockfs.OpRead, mockfs.ResourceFile, func() error {
			panic("work panicked")
		})
	})
	rec.Expect().Completed(mockfs.OpRead, 0).Assert(t)
}

func TestEventBus_VetoIsLogged(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	bus := mockfs.NewEventBus(mockfs.WithLogger(logger))
	bus.Enable()
	_, err := bus.Subscribe(func(ev mockfs.Event) error { return ev.Cancel() })
	require.NoError(t, err)

	require.ErrorIs(t, bus.WithEvents("f", mockfs.OpMove, mockfs.ResourceFile, noopWork), mockfs.ErrCanceled)
	assert.Contains(t, logs.String(), "operation canceled by subscriber")
}

func TestEventBus_FilteredDelivery(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)

	all := mockfs.NewRecorder()
	_, err := all.Attach(bus)
	require.NoError(t, err)

	some := mockfs.NewRecorder()
	sub, err := some.Attach(bus, mockfs.OpWrite, mockfs.OpRead)
	require.NoError(t, err)
	assert.Equal(t, []mockfs.Operation{mockfs.OpWrite, mockfs.OpRead}, sub.Operations())

	for _, op := range mockfs.AllOperations() {
		require.NoError(t, bus.WithEvents("p", op, mockfs.ResourceFile, noopWork))
	}

	for _, op := range mockfs.AllOperations() {
		assert.Equal(t, 1, all.Count(op, mockfs.PhaseBefore), "all: %s", op)
		assert.Equal(t, 1, all.Count(op, mockfs.PhaseAfter), "all: %s", op)

		want := 0
		if op == mockfs.OpWrite || op == mockfs.OpRead {
			want = 1
		}
		assert.Equal(t, want, some.Count(op, mockfs.PhaseBefore), "filtered: %s", op)
		assert.Equal(t, want, some.Count(op, mockfs.PhaseAfter), "filtered: %s", op)
	}
}

func TestEventBus_RegistrationOrder(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		_, err := bus.Subscribe(func(ev mockfs.Event) error {
			if ev.Phase == mockfs.PhaseBefore {
				order = append(order, i)
			}
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, bus.WithEvents("p", mockfs.OpOpen, mockfs.ResourceFile, noopWork))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestEventBus_ReleaseDuringDispatch(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	late := mockfs.NewRecorder()

	var lateSub *mockfs.Subscription
	_, err := bus.Subscribe(func(ev mockfs.Event) error {
		lateSub.Release()
		return nil
	})
	require.NoError(t, err)
	lateSub, err = late.Attach(bus)
	require.NoError(t, err)

	require.NoError(t, bus.WithEvents("p", mockfs.OpWrite, mockfs.ResourceFile, noopWork))

	late.Expect().Empty().Assert(t)
	assert.False(t, lateSub.Active())
	assert.Equal(t, 1, bus.Len())
}

func TestEventBus_ReentrantCallbacks(t *testing.T) {
	t.Parallel()

	bus := enabledBus(t)
	added := mockfs.NewRecorder()

	var once sync.Once
	var nestedErr error
	_, err := bus.SubscribeOp(mockfs.OpCopy, func(ev mockfs.Event) error {
		if ev.Phase != mockfs.PhaseBefore {
			return nil
		}
		once.Do(func() {
			// Subscribing and dispatching from inside a callback must not deadlock.
			_, nestedErr = added.Attach(bus)
			if nestedErr == nil {
				nestedErr = bus.WithEvents("nested", mockfs.OpRead, mockfs.ResourceFile, noopWork)
			}
		})
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.WithEvents("outer", mockfs.OpCopy, mockfs.ResourceFile, noopWork))
	require.NoError(t, nestedErr)

	// The new subscription missed the Before of the occurrence that added it.
	added.Expect().
		Sequence(
			ev(mockfs.PhaseBefore, mockfs.OpRead, mockfs.ResourceFile, "nested"),
			ev(mockfs.PhaseAfter, mockfs.OpRead, mockfs.ResourceFile, "nested"),
			ev(mockfs.PhaseAfter, mockfs.OpCopy, mockfs.ResourceFile, "outer"),
		).
		Assert(t)
}

func TestEventBus_SubscribeValidation(t *testing.T) {
	t.Parallel()

	bus := mockfs.NewEventBus()
	cb := func(mockfs.Event) error { return nil }

	tests := []struct {
		name      string
		subscribe func() (*mockfs.Subscription, error)
		wantErr   error
	}{
		{"nil callback", func() (*mockfs.Subscription, error) { return bus.Subscribe(nil) }, mockfs.ErrNilCallback},
		{"nil callback for op", func() (*mockfs.Subscription, error) { return bus.SubscribeOp(mockfs.OpRead, nil) }, mockfs.ErrInvalid},
		{"invalid op", func() (*mockfs.Subscription, error) { return bus.SubscribeOp(mockfs.InvalidOperation, cb) }, mockfs.ErrInvalid},
		{"out of range op", func() (*mockfs.Subscription, error) { return bus.SubscribeOp(mockfs.NumOperations, cb) }, mockfs.ErrInvalid},
		{"empty op set", func() (*mockfs.Subscription, error) { return bus.SubscribeOps(nil, cb) }, mockfs.ErrInvalid},
		{"invalid op in set", func() (*mockfs.Subscription, error) {
			return bus.SubscribeOps([]mockfs.Operation{mockfs.OpRead, mockfs.Operation(99)}, cb)
		}, mockfs.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := tt.subscribe()
			assert.Nil(t, sub)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Zero(t, bus.Len())
	assert.Zero(t, bus.Version(), "rejected subscriptions do not change the registry")
}

func TestEventBus_VersionAndLen(t *testing.T) {
	t.Parallel()

	bus := mockfs.NewEventBus()
	cb := func(mockfs.Event) error { return nil }

	a, err := bus.Subscribe(cb)
	require.NoError(t, err)
	b, err := bus.SubscribeOps([]mockfs.Operation{mockfs.OpRead}, cb)
	require.NoError(t, err)

	assert.Equal(t, uint64(2), bus.Version())
	assert.Equal(t, 2, bus.Len())

	a.Release()
	a.Release()
	assert.Equal(t, uint64(3), bus.Version(), "a repeated release is a no-op")
	assert.Equal(t, 1, bus.Len())
	assert.False(t, a.Active())
	assert.True(t, b.Active())
}

func TestEventBus_Concurrent(t *testing.T) {
	t.Parallel()

	const (
		workers    = 16
		iterations = 200
	)

	bus := enabledBus(t)
	var steady atomic.Int64
	_, err := bus.Subscribe(func(mockfs.Event) error {
		steady.Add(1)
		return nil
	})
	require.NoError(t, err)

	var ran atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				sub, err := bus.Subscribe(func(ev mockfs.Event) error { return nil })
				if err != nil {
					t.Error(err)
					return
				}
				sub.Release()
			}
		}()

		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				err := bus.WithEvents(fmt.Sprintf("w%d/%d", w, i), mockfs.OpWrite, mockfs.ResourceFile, func() error {
					ran.Add(1)
					return nil
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(workers*iterations), ran.Load())
	assert.Equal(t, int64(2*workers*iterations), steady.Load())
	assert.Equal(t, 1, bus.Len())
	assert.Equal(t, uint64(1+2*workers*iterations), bus.Version())
}

func ExampleEventBus() {
	bus := mockfs.NewEventBus()
	bus.Enable()

	sub, _ := bus.SubscribeOp(mockfs.OpCreate, func(ev mockfs.Event) error {
		fmt.Println(ev)
		if ev.Phase == mockfs.PhaseBefore && ev.Path == "/locked" {
			return ev.Fail(mockfs.ErrPermission)
		}
		return nil
	})
	defer sub.Release()

	err := bus.WithEvents("/ok", mockfs.OpCreate, mockfs.ResourceFile, func() error { return nil })
	fmt.Println("ok:", err)

	err = bus.WithEvents("/locked", mockfs.OpCreate, mockfs.ResourceFile, func() error { return nil })
	fmt.Println("locked:", err)
	// Output:
	// Before Create File /ok
	// After Create File /ok
	// ok: <nil>
	// Before Create File /locked
	// locked: permission denied
}
