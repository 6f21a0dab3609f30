package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/metrico/healpipe/columnar"
	"github.com/metrico/healpipe/metrics"
	"github.com/metrico/healpipe/transport"
	"github.com/metrico/healpipe/utils/promise"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of workers building at the same time.
type Pool struct {
	sem  *semaphore.Weighted
	open Opener
}

func NewPool(size int, open Opener) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), open: open}
}

// Submit starts req as soon as a worker slot is free.
func (p *Pool) Submit(ctx context.Context, req Request) *promise.Promise[*Response] {
	if err := ctx.Err(); err != nil {
		return promise.Fulfilled[*Response](fmt.Errorf("%w: %w", ErrCanceled, err), nil)
	}
	res := promise.New[*Response]()
	go func() {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			res.Done(nil, fmt.Errorf("%w: %w", ErrCanceled, err))
			return
		}
		defer p.sem.Release(1)
		r, err := Go(ctx, req, p.open).Get()
		res.Done(r, err)
	}()
	return res
}

// Result is the caller side view of a response.
type Result struct {
	ID           uuid.UUID
	Data         *transport.Table
	MostProbable *transport.Table
	Line         *columnar.Line
}

func (r *Result) Release() {
	r.Data.Release()
	if r.MostProbable != nil {
		r.MostProbable.Release()
	}
}

// Fetch runs req and rebuilds its tables. When ctx is done first the worker
// is canceled and its buffers are dropped.
func (p *Pool) Fetch(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	resp, err := p.Submit(ctx, req).Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		}
		return nil, err
	}
	return Receive(resp)
}

// Receive reconstructs the tables of a response.
func Receive(resp *Response) (*Result, error) {
	res := &Result{ID: resp.ID, Line: resp.Line}
	var err error
	if res.Data, err = transport.Reconstruct(resp.Data); err != nil {
		return nil, err
	}
	metrics.BytesTransferred.Add(float64(resp.Data.Size()))
	if resp.MostProbable != nil {
		if res.MostProbable, err = transport.Reconstruct(resp.MostProbable); err != nil {
			res.Data.Release()
			return nil, err
		}
		metrics.BytesTransferred.Add(float64(resp.MostProbable.Size()))
	}
	return res, nil
}

// FetchAll fetches every request. The first failure cancels the others.
func (p *Pool) FetchAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	res := make([]*Result, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			r, err := p.Fetch(ctx, req)
			if err != nil {
				return err
			}
			res[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range res {
			if r != nil {
				r.Release()
			}
		}
		return nil, err
	}
	return res, nil
}
