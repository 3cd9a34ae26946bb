// Package deadline implements a single-shot expiry signal bound to a timer.
//
// A Deadline owns a cancellable context and the timer that cancels it. The
// owner must call Release once the guarded operation is over, whether it
// succeeded, failed or was aborted by the timer itself.
package deadline

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrExpired is the cancellation cause of a Deadline context whose timer fired.
var ErrExpired = errors.New("deadline expired")

// Deadline is a context that is canceled with ErrExpired when its timer fires.
type Deadline struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	timer  *time.Timer
	once   sync.Once
}

// New starts a timer of duration d. When the timer fires, the context
// returned by Context is canceled with cause ErrExpired. The returned
// context is also canceled when parent is.
func New(parent context.Context, d time.Duration) *Deadline {
	ctx, cancel := context.WithCancelCause(parent)
	dl := &Deadline{ctx: ctx, cancel: cancel}
	dl.timer = time.AfterFunc(d, func() {
		cancel(ErrExpired)
	})
	return dl
}

// Context returns the context to hand to the guarded operation.
func (dl *Deadline) Context() context.Context {
	return dl.ctx
}

// Release stops the timer, if still pending, and releases the resources held
// by the context. Release may be called any number of times, including after
// the timer has fired.
func (dl *Deadline) Release() {
	dl.once.Do(func() {
		dl.timer.Stop()
		// A cause set by the timer is kept: only the first cancel counts.
		dl.cancel(context.Canceled)
	})
}

// Expired reports whether the timer fired before Release was called.
func (dl *Deadline) Expired() bool {
	return errors.Is(context.Cause(dl.ctx), ErrExpired)
}
