// Package eventpipe decodes a stream of inputs on several workers while
// handing results to a single processor in input order.
package eventpipe

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

type Pipe[In any, Out any] struct {
	// Workers defaults to GOMAXPROCS.
	Workers int
	// QueueSize bounds the number of inputs in flight; defaults to 1000.
	QueueSize int

	// Decode runs concurrently and must not depend on other inputs.
	Decode func(in In) (Out, error)
	// Process sees every input in order together with its decode result.
	// Returning an error stops the pipe.
	Process func(in In, out Out, decodeErr error) error
}

type job[In any, Out any] struct {
	in   In
	out  Out
	err  error
	done chan struct{}
}

// Run consumes src until it is closed, ctx is done or Process fails.
// It returns nil once every input was processed.
func (p *Pipe[In, Out]) Run(ctx context.Context, src <-chan In) error {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := p.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg              sync.WaitGroup
		errCh           = make(chan error, workers+2)
		decodingQueue   = make(chan *job[In, Out], queueSize)
		processingQueue = make(chan *job[In, Out], queueSize)
		finished        = make(chan struct{})
	)

	startRoutine := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- fmt.Errorf("routine '%s' finished with error: %w", name, err)
			}
		}()
	}

	startRoutine("feeder", func() error {
		defer close(decodingQueue)
		defer close(processingQueue)
		for {
			var in In
			var ok bool
			select {
			case <-runCtx.Done():
				return nil
			case in, ok = <-src:
				if !ok {
					return nil
				}
			}

			j := &job[In, Out]{in: in, done: make(chan struct{})}
			select {
			case decodingQueue <- j:
			case <-runCtx.Done():
				return nil
			}
			select {
			case processingQueue <- j:
			case <-runCtx.Done():
				return nil
			}
		}
	})

	for i := 1; i <= workers; i++ {
		startRoutine(fmt.Sprintf("decoder #%d", i), func() error {
			for {
				select {
				case <-runCtx.Done():
					return nil
				case j, ok := <-decodingQueue:
					if !ok {
						return nil
					}
					j.out, j.err = p.Decode(j.in)
					close(j.done)
				}
			}
		})
	}

	startRoutine("processor", func() error {
		for {
			var j *job[In, Out]
			var ok bool
			select {
			case <-runCtx.Done():
				return nil
			case j, ok = <-processingQueue:
				if !ok {
					// the feeder also closes the queue when cancelled
					if runCtx.Err() == nil {
						close(finished)
					}
					return nil
				}
			}

			select {
			case <-j.done:
			case <-runCtx.Done():
				return nil
			}

			if err := p.Process(j.in, j.out, j.err); err != nil {
				return err
			}
		}
	})

	var result error
	select {
	case <-finished:
	case err := <-errCh:
		result = err
	case <-ctx.Done():
		result = ctx.Err()
	}
	cancel()
	wg.Wait()
	return result
}
