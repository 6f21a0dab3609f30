package promise

import (
	"context"
	"sync"
)

// Promise holds the single result of an asynchronous computation.
type Promise[T any] struct {
	once sync.Once
	done chan struct{}
	err  error
	res  T
}

func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

func Fulfilled[T any](err error, res T) *Promise[T] {
	p := New[T]()
	p.Done(res, err)
	return p
}

// Done settles the promise. Only the first call has an effect.
func (p *Promise[T]) Done(res T, err error) {
	p.once.Do(func() {
		p.res = res
		p.err = err
		close(p.done)
	})
}

// Get blocks until the promise is settled.
func (p *Promise[T]) Get() (T, error) {
	<-p.done
	return p.res, p.err
}

// Wait is Get that gives up when ctx is done.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.res, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
