package util

import (
	"context"
	"sync"
	"time"
)

// CtxSleep waits for d and reports false if ctx was done first.
func CtxSleep(ctx context.Context, d time.Duration) bool {
	return sleepUntil(ctx.Done(), d)
}

func sleepUntil(done <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return false
	case <-t.C:
		return true
	}
}

// Stopper signals a group of goroutines to stop and waits for them.
// Stop may be called more than once.
type Stopper struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewStopper() *Stopper {
	return &Stopper{stop: make(chan struct{})}
}

func (s *Stopper) Add(n int) {
	s.wg.Add(n)
}

func (s *Stopper) Done() {
	s.wg.Done()
}

func (s *Stopper) Stopped() <-chan struct{} {
	return s.stop
}

func (s *Stopper) IsStopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Sleep waits for d and reports false if the stopper was stopped first.
func (s *Stopper) Sleep(d time.Duration) bool {
	return sleepUntil(s.stop, d)
}

func (s *Stopper) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}
