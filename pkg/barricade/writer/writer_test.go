package writer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himanishpuri/barricade/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoReturnsFnError(t *testing.T) {
	w := New()
	defer w.Close()

	boom := errors.New("boom")
	assert.Equal(t, boom, w.Do(context.Background(), func() error { return boom }))
	assert.NoError(t, w.Do(context.Background(), func() error { return nil }))
}

func TestMutationsNeverOverlap(t *testing.T) {
	w := New()
	defer w.Close()

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Do(context.Background(), func() error {
				n := atomic.AddInt32(&running, 1)
				for {
					m := atomic.LoadInt32(&maxRunning)
					if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxRunning)
}

func TestDoCancelledBeforeStart(t *testing.T) {
	w := New()
	defer w.Close()

	block := make(chan struct{})
	go w.Do(context.Background(), func() error { <-block; return nil })
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := w.Do(ctx, func() error { ran = true; return nil })
	close(block)

	assert.True(t, errors.Is(errors.Canceled, err))
	assert.False(t, ran)
}

func TestDoAfterClose(t *testing.T) {
	w := New()
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func() error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
}
