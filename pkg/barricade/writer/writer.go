// Package writer serializes record store mutations onto a single goroutine.
package writer

import (
	"context"
	"sync"

	"github.com/himanishpuri/barricade/pkg/errors"
)

var ErrClosed = errors.New("writer closed")

type job struct {
	fn   func() error
	done chan error
}

// Writer runs submitted mutations one at a time, in submission order.
type Writer struct {
	jobs chan job
	quit chan struct{}
	wg   sync.WaitGroup

	closeOnce sync.Once
}

func New() *Writer {
	w := &Writer{
		jobs: make(chan job),
		quit: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *Writer) run() {
	defer w.wg.Done()
	for {
		select {
		case j := <-w.jobs:
			j.done <- j.fn()
		case <-w.quit:
			return
		}
	}
}

// Do runs fn on the writer goroutine and returns its error. If ctx ends
// before fn is picked up, fn never runs. Once started fn runs to completion.
func (w *Writer) Do(ctx context.Context, fn func() error) error {
	const op errors.Op = "writer.Do"

	j := job{fn: fn, done: make(chan error, 1)}
	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return errors.E(op, errors.Canceled, ctx.Err())
	case <-w.quit:
		return errors.E(op, errors.PersistenceError, ErrClosed)
	}
	return <-j.done
}

// Close stops the writer after the running mutation, if any, finishes.
func (w *Writer) Close() {
	w.closeOnce.Do(func() {
		close(w.quit)
	})
	w.wg.Wait()
}
