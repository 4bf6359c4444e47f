package proc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsSubmittedTasks(t *testing.T) {
	p := NewWorkerPool(3)
	defer p.Close()

	var n atomic.Int32
	done := make(chan struct{}, 10)
	for range 10 {
		require.NoError(t, p.Submit(context.Background(), func() {
			n.Add(1)
			done <- struct{}{}
		}))
	}
	for range 10 {
		<-done
	}
	assert.Equal(t, int32(10), n.Load())
}

func TestWorkerPool_SurvivesPanickingTask(t *testing.T) {
	p := NewWorkerPool(1)
	defer p.Close()

	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))

	ran := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker did not recover from panic")
	}
}

func TestWorkerPool_SubmitHonorsContext(t *testing.T) {
	p := NewWorkerPool(1)
	defer p.Close()

	block := make(chan struct{})
	defer close(block)
	require.NoError(t, p.Submit(context.Background(), func() { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Submit(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPool_RejectsAfterClose(t *testing.T) {
	p := NewWorkerPool(2)
	p.Close()

	err := p.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}
