package promise

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoneOnce(t *testing.T) {
	p := New[int]()
	go p.Done(1, nil)
	res, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, res)

	p.Done(2, errors.New("late"))
	res, err = p.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, res)
}

func TestWaitCanceled(t *testing.T) {
	p := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// giving up does not settle the promise
	p.Done(3, nil)
	res, err := p.Get()
	require.NoError(t, err)
	assert.Equal(t, 3, res)
}

func TestFulfilled(t *testing.T) {
	boom := errors.New("boom")
	p := Fulfilled[string](boom, "")
	_, err := p.Wait(context.Background())
	assert.ErrorIs(t, err, boom)

	res, err := Fulfilled[string](nil, "b").Get()
	require.NoError(t, err)
	assert.Equal(t, "b", res)
}
