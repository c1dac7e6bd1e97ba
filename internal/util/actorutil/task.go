package actorutil

import (
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var ErrNilResult = errors.New("background task returned nil")

// SafeBackgroundTask runs a blocking device call off the actor goroutine and
// delivers its result as a message. Errors and timeouts must be turned into
// a message with Recover, otherwise they are only logged by the caller.
type SafeBackgroundTask[T any] struct {
	system  *actor.ActorSystem
	fn      func() (*T, error)
	timeout time.Duration
	recover func(error) T
}

func NewBackgroundTask[T any](ctx actor.Context, fn func() (*T, error)) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{
		system: ctx.ActorSystem(),
		fn:     fn,
	}
}

// WithTimeout bounds the call. A timed out call is recovered like any error.
func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = timeout
	return t
}

func (t *SafeBackgroundTask[T]) Recover(fn func(error) T) *SafeBackgroundTask[T] {
	t.recover = fn
	return t
}

// PipeTo runs the task in its own goroutine and sends the result, or the
// recovered value, to pid.
func (t *SafeBackgroundTask[T]) PipeTo(pid *actor.PID) {
	root := t.system.Root
	go func() {
		if value, ok := t.Run(); ok {
			root.Send(pid, value)
		}
	}()
}

// Run blocks until the task completes or times out. ok is false when the task
// failed and no recover function is set.
func (t *SafeBackgroundTask[T]) Run() (value T, ok bool) {
	bg := io.Map(io.Eval(t.fn), func(a *T) T {
		if a == nil {
			panic(ErrNilResult)
		}
		return *a
	})
	if t.timeout > 0 {
		bg = io.WithTimeout[T](t.timeout)(bg)
	}
	result := io.RunSync(bg)
	if result.Error != nil {
		if t.recover == nil {
			return value, false
		}
		return t.recover(result.Error), true
	}
	return result.Value, true
}
