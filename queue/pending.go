package queue

import (
	"context"
	"sync"
)

// Pending is the eventual outcome of one queued operation. It is resolved exactly once
// by the worker, with either the operation's value or its error.
type Pending[R any] struct {
	id   string
	name string

	once  sync.Once
	done  chan struct{}
	value R
	err   error
}

func newPending[R any](id, name string) *Pending[R] {
	return &Pending[R]{id: id, name: name, done: make(chan struct{})}
}

// ID returns the request id assigned at submission.
func (p *Pending[R]) ID() string {
	return p.id
}

// Name returns the operation name given at submission.
func (p *Pending[R]) Name() string {
	return p.name
}

// Done returns a channel closed once the operation has finished.
func (p *Pending[R]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the operation finishes or ctx is done. Giving up on the wait does
// not cancel the operation: once submitted it runs to completion.
func (p *Pending[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

func (p *Pending[R]) resolve(value R, err error) {
	p.once.Do(func() {
		p.value = value
		p.err = err
		close(p.done)
	})
}
