package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/metrico/healpipe/columnar"
	"github.com/metrico/healpipe/model"
	"github.com/metrico/healpipe/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fish = model.Dataset{Name: "fish", Kind: model.KindIndividual, URL: "mem://", Nside: 8}

func rows(n int) []model.Row {
	res := make([]model.Row, n)
	for i := range res {
		res[i] = model.Row{Cell: int64(i), Time: int64(i/4) * 1_000_000, Value: float64(i+1) * 1e-4}
		if i%5 == 0 {
			res[i].Aux = &model.Auxiliary{Temperature: 4, Pressure: 20}
		}
	}
	return res
}

func memoryOpener(n int) Opener {
	return func(ctx context.Context, ds model.Dataset) (source.RowSource, error) {
		return source.Limit(source.NewMemory(rows(n)), ds.Limit), nil
	}
}

type stalledSource struct {
	ctx context.Context
}

func (s *stalledSource) RowCount() int { return 100 }
func (s *stalledSource) Close() error  { return nil }
func (s *stalledSource) Next() (model.Row, error) {
	select {
	case <-s.ctx.Done():
		return model.Row{}, s.ctx.Err()
	case <-time.After(time.Millisecond):
		return model.Row{Cell: 1}, nil
	}
}

func TestGo(t *testing.T) {
	resp, err := Go(context.Background(), NewRequest(fish), memoryOpener(20)).Get()
	require.NoError(t, err)
	assert.Equal(t, 20, resp.Data.Rows)
	require.NotNil(t, resp.MostProbable)
	assert.Equal(t, 4, resp.MostProbable.Rows)
	assert.Equal(t, 4, resp.Line.Len())
	assert.Equal(t, model.KindIndividual, resp.Kind)

	res, err := Receive(resp)
	require.NoError(t, err)
	defer res.Release()
	values, err := res.Data.Float32(columnar.ColValue)
	require.NoError(t, err)
	assert.Len(t, values, 20)
	assert.Equal(t, float32(1e-4), values[0])
}

func TestFetchOverrides(t *testing.T) {
	p := NewPool(2, memoryOpener(20))
	req := NewRequest(fish)
	req.Limit = 7
	req.Nside = 2
	res, err := p.Fetch(context.Background(), req)
	require.NoError(t, err)
	defer res.Release()
	assert.Equal(t, req.ID, res.ID)
	assert.Equal(t, 7, res.Data.NumRows())
	assert.Equal(t, 2, res.MostProbable.NumRows())
}

func TestFetchCanceled(t *testing.T) {
	mem := memoryOpener(3)
	p := NewPool(1, func(ctx context.Context, ds model.Dataset) (source.RowSource, error) {
		if ds.Name == "stall" {
			return &stalledSource{ctx: ctx}, nil
		}
		return mem(ctx, ds)
	})
	stall := fish
	stall.Name = "stall"
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Fetch(ctx, NewRequest(stall))
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the slot is handed back once the worker stops
	res, err := p.Fetch(context.Background(), NewRequest(fish))
	require.NoError(t, err)
	res.Release()
}

func TestSubmitCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPool(1, memoryOpener(3)).Submit(ctx, NewRequest(fish)).Get()
	assert.ErrorIs(t, err, ErrCanceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(1, func(ctx context.Context, ds model.Dataset) (source.RowSource, error) {
		return nil, boom
	})
	_, err := p.Fetch(context.Background(), NewRequest(fish))
	assert.ErrorIs(t, err, boom)

	bad := fish
	bad.Nside = 3
	_, err = NewPool(1, memoryOpener(3)).Fetch(context.Background(), NewRequest(bad))
	assert.Error(t, err)
}

func TestSourceOpener(t *testing.T) {
	ds := fish
	ds.URL = filepath.Join(t.TempDir(), "missing.parquet")
	_, err := NewPool(1, SourceOpener(source.Options{})).Fetch(context.Background(), NewRequest(ds))
	assert.ErrorIs(t, err, source.ErrSourceRead)
}

func TestFetchAll(t *testing.T) {
	p := NewPool(2, memoryOpener(12))
	species := model.Dataset{Name: "species", Kind: model.KindSpecies, URL: "mem://", Nside: 8}
	reqs := []Request{NewRequest(fish), NewRequest(species), NewRequest(fish)}
	res, err := p.FetchAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, res, 3)
	for i, r := range res {
		assert.Equal(t, reqs[i].ID, r.ID)
		assert.Equal(t, 12, r.Data.NumRows())
		r.Release()
	}
	assert.Nil(t, res[1].MostProbable)
}
