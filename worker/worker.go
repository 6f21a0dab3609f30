// Package worker runs table builds off the calling goroutine. Every request
// gets its own execution context; the only thing shared with the caller is
// the response, which owns the produced buffers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/metrico/healpipe/columnar"
	"github.com/metrico/healpipe/metrics"
	"github.com/metrico/healpipe/model"
	"github.com/metrico/healpipe/source"
	"github.com/metrico/healpipe/transport"
	"github.com/metrico/healpipe/utils"
	"github.com/metrico/healpipe/utils/promise"
)

// ErrCanceled is returned when the caller gives up on a request.
var ErrCanceled = errors.New("worker canceled")

// Opener opens the row source of a dataset.
type Opener func(ctx context.Context, ds model.Dataset) (source.RowSource, error)

// SourceOpener opens datasets with source.Open and applies their limit and
// value expression. base supplies the object store and read settings; a
// dataset engine takes precedence over the base engine.
func SourceOpener(base source.Options) Opener {
	return func(ctx context.Context, ds model.Dataset) (source.RowSource, error) {
		opts := source.OptionsFor(ds)
		opts.S3 = base.S3
		opts.BatchSize = base.BatchSize
		opts.HTTP = base.HTTP
		if opts.Engine == "" {
			opts.Engine = base.Engine
		}
		src, err := source.Open(ctx, ds.URL, opts)
		if err != nil {
			return nil, err
		}
		wrapped, err := source.WithValueExpr(source.Limit(src, ds.Limit), ds.Kind, ds.ValueExpr)
		if err != nil {
			src.Close()
			return nil, err
		}
		return wrapped, nil
	}
}

// Request asks for one dataset. Nside and Limit override the dataset
// settings when positive.
type Request struct {
	ID      uuid.UUID
	Dataset model.Dataset
	Nside   int
	Limit   int
}

func NewRequest(ds model.Dataset) Request {
	return Request{ID: uuid.New(), Dataset: ds}
}

func (r Request) dataset() model.Dataset {
	ds := r.Dataset.WithDefaults()
	if r.Nside > 0 {
		ds.Nside = r.Nside
	}
	if r.Limit > 0 {
		ds.Limit = r.Limit
	}
	return ds
}

// Response is the single message a worker sends back.
type Response struct {
	ID           uuid.UUID
	Kind         model.Kind
	Data         *transport.Message
	MostProbable *transport.Message
	Line         *columnar.Line
	Elapsed      time.Duration
}

// Go starts a worker for req. ctx cancels the build.
func Go(ctx context.Context, req Request, open Opener) *promise.Promise[*Response] {
	p := promise.New[*Response]()
	go func() {
		res, err := run(ctx, req, open)
		p.Done(res, err)
	}()
	return p
}

func run(ctx context.Context, req Request, open Opener) (res *Response, err error) {
	start := time.Now()
	ds := req.dataset()
	log := utils.Logger().With("request", req.ID, "dataset", ds.Name)
	metrics.WorkersBusy.Inc()
	defer func() {
		metrics.WorkersBusy.Dec()
		if err != nil {
			metrics.BuildFailures.WithLabelValues(string(ds.Kind)).Inc()
			log.Error("build failed", "error", err)
		}
	}()

	layout, err := columnar.LayoutFor(ds)
	if err != nil {
		return nil, err
	}
	src, err := open(ctx, ds)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	built, err := columnar.Build(ctx, src, layout)
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	}
	if err != nil {
		return nil, err
	}

	res = &Response{ID: req.ID, Kind: ds.Kind, Line: built.Line}
	rows := built.Data.NumRows()
	if res.Data, err = transport.Encode(built.Data); err != nil {
		return nil, err
	}
	if built.MostProbable != nil {
		if res.MostProbable, err = transport.Encode(built.MostProbable); err != nil {
			return nil, err
		}
	}
	res.Elapsed = time.Since(start)
	metrics.BuildDuration.WithLabelValues(string(ds.Kind)).Observe(res.Elapsed.Seconds())
	metrics.RowsBuilt.WithLabelValues(string(ds.Kind)).Add(float64(rows))
	log.Info("table built", "rows", rows, "elapsed", res.Elapsed)
	return res, nil
}
